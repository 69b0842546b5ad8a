package clock

import (
	"errors"
	"testing"
	"time"
)

func mustSpec(t *testing.T, ref string, mode Mode) Spec {
	t.Helper()
	spec, err := NewSpec(ref, mode)
	if err != nil {
		t.Fatalf("NewSpec(%q) returned error: %v", ref, err)
	}
	return spec
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("failed to parse %q: %v", s, err)
	}
	return ts
}

func TestNewSpec_Invalid(t *testing.T) {
	inputs := []string{"", "2025-07-01", "not a date", "2025-07-01T00:00:00"}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			_, err := NewSpec(in, CountdownToFuture)
			if !errors.Is(err, ErrInvalidReference) {
				t.Errorf("expected ErrInvalidReference, got %v", err)
			}
		})
	}
}

func TestTick_Countdown(t *testing.T) {
	spec := mustSpec(t, "2025-07-01T00:00:00+09:00", CountdownToFuture)

	tests := []struct {
		name string
		now  string
		want Breakdown
	}{
		{
			name: "half a minute short of an hour",
			now:  "2025-06-30T23:00:30+09:00",
			want: Breakdown{Minutes: 59, Seconds: 30, Mode: CountdownToFuture},
		},
		{
			name: "exactly one hour",
			now:  "2025-06-30T23:00:00+09:00",
			want: Breakdown{Hours: 1, Mode: CountdownToFuture},
		},
		{
			name: "different offset same instant math",
			now:  "2025-06-20T12:34:56Z",
			want: Breakdown{Days: 10, Hours: 2, Minutes: 25, Seconds: 4, Mode: CountdownToFuture},
		},
		{
			name: "more than a year away still days only",
			now:  "2024-06-30T00:00:00+09:00",
			want: Breakdown{Days: 366, Mode: CountdownToFuture},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := spec.Tick(mustTime(t, tt.now))
			if got != tt.want {
				t.Errorf("Tick(%s) = %+v, want %+v", tt.now, got, tt.want)
			}
		})
	}
}

func TestTick_CountdownTotalsMatchDelta(t *testing.T) {
	spec := mustSpec(t, "2025-07-01T00:00:00+09:00", CountdownToFuture)
	start := mustTime(t, "2025-03-14T01:59:26.535+09:00")

	for i := 0; i < 500; i++ {
		now := start.Add(time.Duration(i) * 7919 * time.Second)
		if !now.Before(spec.Reference) {
			break
		}
		b := spec.Tick(now)
		if b.Years != 0 || b.Months != 0 {
			t.Fatalf("countdown produced years/months: %+v", b)
		}
		want := spec.Reference.Sub(now).Truncate(time.Second)
		if got := b.Remaining(); got != want {
			t.Fatalf("at %s remaining = %v, want %v", now, got, want)
		}
	}
}

func TestTick_CountdownFlipsAfterTarget(t *testing.T) {
	spec := mustSpec(t, "2025-07-01T00:00:00+09:00", CountdownToFuture)

	atTarget := spec.Tick(spec.Reference)
	if atTarget.Mode != ElapsedSinceStart {
		t.Errorf("at target expected ElapsedSinceStart, got %v", atTarget.Mode)
	}
	if atTarget != (Breakdown{Mode: ElapsedSinceStart}) {
		t.Errorf("at target expected zero breakdown, got %+v", atTarget)
	}

	later := spec.Tick(spec.Reference.Add(400*24*time.Hour + 5*time.Hour + 6*time.Minute + 7*time.Second))
	want := Breakdown{Years: 1, Months: 1, Days: 4, Hours: 5, Minutes: 6, Seconds: 7, Mode: ElapsedSinceStart}
	if later != want {
		t.Errorf("after flip got %+v, want %+v", later, want)
	}
	if later.Remaining() != 0 {
		t.Errorf("elapsed reading should report zero remaining, got %v", later.Remaining())
	}
}

func TestTick_ElapsedApproximate(t *testing.T) {
	spec := mustSpec(t, "2023-07-20T00:00:00+09:00", ElapsedSinceStart)
	day := 24 * time.Hour

	tests := []struct {
		name    string
		elapsed time.Duration
		want    Breakdown
	}{
		{
			name:    "start instant",
			elapsed: 0,
			want:    Breakdown{Mode: ElapsedSinceStart},
		},
		{
			name:    "400 days and change",
			elapsed: 400*day + 5*time.Hour + 6*time.Minute + 7*time.Second,
			want:    Breakdown{Years: 1, Months: 1, Days: 4, Hours: 5, Minutes: 6, Seconds: 7, Mode: ElapsedSinceStart},
		},
		{
			// Fields are independent: two fixed years read as 2y 11mo 29d.
			name:    "730 days",
			elapsed: 730 * day,
			want:    Breakdown{Years: 2, Months: 11, Days: 29, Mode: ElapsedSinceStart},
		},
		{
			name:    "thirty days",
			elapsed: 30 * day,
			want:    Breakdown{Days: 30, Mode: ElapsedSinceStart},
		},
		{
			name:    "thirty one days",
			elapsed: 31 * day,
			want:    Breakdown{Months: 1, Days: 0, Mode: ElapsedSinceStart},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := spec.Tick(spec.Reference.Add(tt.elapsed))
			if got != tt.want {
				t.Errorf("Tick(+%v) = %+v, want %+v", tt.elapsed, got, tt.want)
			}
		})
	}
}

func TestTick_ElapsedBeforeStartClampsToZero(t *testing.T) {
	spec := mustSpec(t, "2023-07-20T00:00:00+09:00", ElapsedSinceStart)
	got := spec.Tick(spec.Reference.Add(-time.Hour))
	if got != (Breakdown{Mode: ElapsedSinceStart}) {
		t.Errorf("expected zero breakdown before start, got %+v", got)
	}
}

func TestTick_ElapsedFieldsNonNegative(t *testing.T) {
	spec := mustSpec(t, "2023-07-20T00:00:00+09:00", ElapsedSinceStart)
	for _, alg := range []Algorithm{Approximate, Calendar} {
		s := spec.WithAlgorithm(alg)
		for i := 0; i < 1000; i++ {
			now := s.Reference.Add(time.Duration(i) * 104729 * time.Second)
			b := s.Tick(now)
			if b.Years < 0 || b.Months < 0 || b.Days < 0 || b.Hours < 0 || b.Minutes < 0 || b.Seconds < 0 {
				t.Fatalf("%v: negative field at %s: %+v", alg, now, b)
			}
			if b.Months > 11 || b.Hours > 23 || b.Minutes > 59 || b.Seconds > 59 {
				t.Fatalf("%v: field out of range at %s: %+v", alg, now, b)
			}
		}
	}
}

func TestTick_Idempotent(t *testing.T) {
	specs := []Spec{
		mustSpec(t, "2025-07-01T00:00:00+09:00", CountdownToFuture),
		mustSpec(t, "2023-07-20T00:00:00+09:00", ElapsedSinceStart),
		mustSpec(t, "2023-07-20T00:00:00+09:00", ElapsedSinceStart).WithAlgorithm(Calendar),
	}
	now := mustTime(t, "2024-11-02T17:45:12+01:00")
	for _, s := range specs {
		if a, b := s.Tick(now), s.Tick(now); a != b {
			t.Errorf("Tick not idempotent for %+v: %+v vs %+v", s, a, b)
		}
	}
}

func TestTick_ElapsedCalendar(t *testing.T) {
	spec := mustSpec(t, "2023-07-20T00:00:00+09:00", ElapsedSinceStart).WithAlgorithm(Calendar)

	tests := []struct {
		now  string
		want Breakdown
	}{
		{"2023-07-20T00:00:00+09:00", Breakdown{Mode: ElapsedSinceStart}},
		{"2025-08-21T01:02:03+09:00", Breakdown{Years: 2, Months: 1, Days: 1, Hours: 1, Minutes: 2, Seconds: 3, Mode: ElapsedSinceStart}},
		{"2024-07-19T23:59:59+09:00", Breakdown{Months: 11, Days: 29, Hours: 23, Minutes: 59, Seconds: 59, Mode: ElapsedSinceStart}},
		{"2024-07-20T00:00:00+09:00", Breakdown{Years: 1, Mode: ElapsedSinceStart}},
		// Same instant as above expressed in UTC.
		{"2024-07-19T15:00:00Z", Breakdown{Years: 1, Mode: ElapsedSinceStart}},
	}

	for _, tt := range tests {
		t.Run(tt.now, func(t *testing.T) {
			got := spec.Tick(mustTime(t, tt.now))
			if got != tt.want {
				t.Errorf("Tick(%s) = %+v, want %+v", tt.now, got, tt.want)
			}
		})
	}
}

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		in      string
		want    Algorithm
		wantErr bool
	}{
		{"", Approximate, false},
		{"approximate", Approximate, false},
		{"Calendar", Calendar, false},
		{" calendar ", Calendar, false},
		{"lunar", Approximate, true},
	}
	for _, tt := range tests {
		got, err := ParseAlgorithm(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseAlgorithm(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseAlgorithm(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestBreakdown_Fields(t *testing.T) {
	countdown := Breakdown{Days: 3, Hours: 4, Minutes: 5, Seconds: 6, Mode: CountdownToFuture}
	fields := countdown.Fields()
	if len(fields) != 4 {
		t.Fatalf("countdown should render 4 blocks, got %d", len(fields))
	}
	if fields[0].Label != "Days" || fields[0].Padded() != "03" {
		t.Errorf("unexpected first block %+v", fields[0])
	}

	elapsed := Breakdown{Years: 1, Months: 2, Days: 3, Hours: 4, Minutes: 5, Seconds: 6, Mode: ElapsedSinceStart}
	fields = elapsed.Fields()
	if len(fields) != 6 {
		t.Fatalf("elapsed should render 6 blocks, got %d", len(fields))
	}
	if fields[0].Label != "Years" || fields[1].Label != "Months" {
		t.Errorf("unexpected leading blocks %+v", fields[:2])
	}
}

func TestBreakdown_String(t *testing.T) {
	countdown := Breakdown{Days: 12, Hours: 3, Minutes: 4, Seconds: 5, Mode: CountdownToFuture}
	if got := countdown.String(); got != "12d 03h 04m 05s" {
		t.Errorf("countdown String() = %q", got)
	}
	elapsed := Breakdown{Years: 1, Months: 2, Days: 3, Hours: 4, Minutes: 5, Seconds: 6, Mode: ElapsedSinceStart}
	if got := elapsed.String(); got != "01y 02mo 03d 04h 05m 06s" {
		t.Errorf("elapsed String() = %q", got)
	}
}

func TestMode_String(t *testing.T) {
	if CountdownToFuture.String() != "countdown" || ElapsedSinceStart.String() != "elapsed" {
		t.Error("unexpected mode names")
	}
	if Mode(9).String() != "Mode(9)" {
		t.Errorf("unexpected unknown mode name %q", Mode(9).String())
	}
}
