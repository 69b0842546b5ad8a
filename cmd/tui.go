package cmd

import (
	"github.com/spf13/cobra"

	"github.com/xolan/mondo/internal/tui"
)

// tuiCmd represents the tui command
var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch interactive terminal UI",
	Long: `Launch the interactive Terminal User Interface for mondo.

Views available:
  - Countdown: live countdown to the big day
  - Together: live clock since we got together
  - Bucket List: the shared list, unlocked with the PIN

Keyboard shortcuts:
  - Tab/Shift+Tab: Navigate between views
  - 1-3: Jump to specific view
  - j/k or arrows: Navigate within the list
  - T: Next theme
  - ?: Show help
  - q: Quit

Logs go to log_file, or mondo.log next to the config file.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		runTUI(cmd)
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)

	// Add --tui flag to root command for quick access
	rootCmd.PersistentFlags().Bool("tui", false, "Launch interactive terminal UI")
}

// runTUI initializes and runs the TUI application
func runTUI(cmd *cobra.Command) {
	ctx := cmd.Context()
	a, ok := openApp(ctx, true)
	if !ok {
		return
	}
	defer a.Close()

	if err := tui.Run(ctx, a.Services); err != nil {
		fail("Failed to run the TUI", err, "")
	}
}

// CheckTUIFlag checks if the --tui flag is set and runs the TUI if so.
// Returns true if the TUI was launched, false otherwise.
func CheckTUIFlag(cmd *cobra.Command) bool {
	tuiFlag, _ := cmd.Root().PersistentFlags().GetBool("tui")
	if tuiFlag {
		runTUI(cmd)
		return true
	}
	return false
}
