package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xolan/mondo/internal/clock"
	"github.com/xolan/mondo/internal/service"
)

var watchFlag bool

var countdownCmd = &cobra.Command{
	Use:   "countdown",
	Short: "Show the time left until the big day",
	Long: `Show the days, hours, minutes and seconds left until countdown_target.

Once the target has passed the clock counts up from it instead.

Examples:
  mondo countdown            Print the countdown once
  mondo countdown --watch    Keep updating until Ctrl+C`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		runClock(cmd, "Countdown", (*service.ClockService).CountdownSpec, "countdown_target")
	},
}

var togetherCmd = &cobra.Command{
	Use:   "together",
	Short: "Show how long we have been together",
	Long: `Show the years, months, days, hours, minutes and seconds since together_since.

Examples:
  mondo together             Print the clock once
  mondo together --watch     Keep updating until Ctrl+C`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		runClock(cmd, "Together", (*service.ClockService).TogetherSpec, "together_since")
	},
}

func init() {
	rootCmd.AddCommand(countdownCmd)
	rootCmd.AddCommand(togetherCmd)

	countdownCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "update every second until interrupted")
	togetherCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "update every second until interrupted")
}

// runClock prints one clock, or redraws it every second with --watch.
func runClock(cmd *cobra.Command, name string, specFor func(*service.ClockService) (clock.Spec, error), key string) {
	_, cfg, ok := loadConfig()
	if !ok {
		return
	}
	clocks := service.NewClockService(cfg)
	loc := clocks.Location()

	spec, err := specFor(clocks)
	if err != nil {
		fail("Invalid "+key, err, configHint(key))
		return
	}

	watch, _ := cmd.Flags().GetBool("watch")
	if !watch {
		_, _ = fmt.Fprintln(deps.Stdout, formatClockLine(name, spec, deps.Now(), loc))
		return
	}

	ctx := cmd.Context()
	c := clock.New(spec, clock.WithNow(deps.Now))
	err = c.Start(ctx, func(b clock.Breakdown) {
		_, _ = fmt.Fprintf(deps.Stdout, "\r%-10s %-28s %s", name, b.String(), describeReference(spec, b, loc))
	})
	if err != nil {
		fail("Failed to start the clock", err, "")
		return
	}
	<-ctx.Done()
	c.Stop()
	_, _ = fmt.Fprintln(deps.Stdout)
}
