package cmd

import (
	"strings"
	"testing"
)

func TestPinSet(t *testing.T) {
	env := newTestEnv(t)

	env.run(t, "pin", "set", "1234", "--current", "0720")
	env.expectOK(t)
	if !strings.Contains(env.stdout.String(), "PIN changed") {
		t.Errorf("unexpected output:\n%s", env.stdout.String())
	}

	env.run(t, "bucket", "--pin", "0720")
	env.expectFailure(t, "Incorrect PIN")

	env.run(t, "bucket", "--pin", "1234")
	env.expectOK(t)
}

func TestPinSet_PromptsForCurrent(t *testing.T) {
	env := newTestEnv(t)
	env.setStdin("0720\n")

	env.run(t, "pin", "set", "4321")
	env.expectOK(t)
	if !strings.Contains(env.stderr.String(), "Current PIN: ") {
		t.Error("expected a prompt")
	}
}

func TestPinSet_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"too short", []string{"pin", "set", "12", "--current", "0720"}, "Invalid new PIN"},
		{"letters", []string{"pin", "set", "abcd", "--current", "0720"}, "A PIN is 4 to 8 digits"},
		{"wrong current", []string{"pin", "set", "1234", "--current", "1111"}, "Incorrect current PIN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.run(t, tt.args...)
			env.expectFailure(t, tt.want)
		})
	}
}
