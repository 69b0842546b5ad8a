package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xolan/mondo/internal/gate"
	"github.com/xolan/mondo/internal/service"
)

var currentPINFlag string

var pinCmd = &cobra.Command{
	Use:   "pin",
	Short: "Manage the bucket list PIN",
}

var pinSetCmd = &cobra.Command{
	Use:   "set <new>",
	Short: "Change the bucket list PIN",
	Long: `Change the PIN shared by everyone using the bucket list.

The current PIN is required. Pass it with --current or type it when prompted.
A PIN is 4 to 8 digits.

Example:
  mondo pin set 1234 --current 0720`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setPIN(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(pinCmd)
	pinCmd.AddCommand(pinSetCmd)
	pinSetCmd.Flags().StringVar(&currentPINFlag, "current", "", "current PIN (prompted when empty)")
}

func setPIN(cmd *cobra.Command, next string) {
	if err := gate.ValidatePIN(next); err != nil {
		fail("Invalid new PIN", err, "A PIN is 4 to 8 digits")
		return
	}

	ctx := cmd.Context()
	a, ok := openApp(ctx, false)
	if !ok {
		return
	}
	defer a.Close()

	current := currentPINFlag
	if current == "" {
		var err error
		current, err = prompt("Current PIN: ")
		if err != nil {
			fail("Failed to read the current PIN", err, "Pass --current")
			return
		}
	}

	if err := a.Security.Change(ctx, current, next); err != nil {
		if errors.Is(err, service.ErrWrongPIN) {
			fail("Incorrect current PIN", nil, "The PIN was not changed")
			return
		}
		fail("Failed to change the PIN", err, storeHint(a.Config.Get()))
		return
	}
	_, _ = fmt.Fprintln(deps.Stdout, "PIN changed")
}
