package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/xolan/mondo/internal/clock"
	"github.com/xolan/mondo/internal/config"
	"github.com/xolan/mondo/internal/service"
)

// refLayout formats reference instants in CLI output.
const refLayout = "2006-01-02 15:04 MST"

var rootCmd = &cobra.Command{
	Use:   "mondo",
	Short: "Countdown, together clock and a shared bucket list",
	Long: `mondo keeps two clocks and a bucket list for two people.

Usage:
  mondo                              Show the countdown and the together clock
  mondo countdown [--watch]          Time left until the big day
  mondo together [--watch]           Time since we got together
  mondo bucket                       List the bucket list (PIN protected)
  mondo bucket add <text>            Add a dream
  mondo bucket done <ref>            Toggle a dream done
  mondo bucket edit <ref> <text>     Change a dream
  mondo bucket rm <ref>              Delete a dream
  mondo bucket export                Write the list as JSON or YAML
  mondo pin set <new>                Change the shared PIN
  mondo serve                        Share the store over HTTP
  mondo tui                          Launch the terminal UI

<ref> is the number shown by 'mondo bucket' or the start of an item id.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if CheckTUIFlag(cmd) {
			return
		}
		showClocks()
	},
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(version, commit, date string) {
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(
		"mondo version {{.Version}}\n" +
			"commit: " + commit + "\n" +
			"built: " + date + "\n",
	)
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command
// context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// showClocks prints both clocks once.
func showClocks() {
	_, cfg, ok := loadConfig()
	if !ok {
		return
	}
	clocks := service.NewClockService(cfg)
	loc := clocks.Location()
	now := deps.Now()

	countdown, err := clocks.CountdownSpec()
	if err != nil {
		fail("Invalid countdown_target", err, configHint("countdown_target"))
		return
	}
	together, err := clocks.TogetherSpec()
	if err != nil {
		fail("Invalid together_since", err, configHint("together_since"))
		return
	}

	_, _ = fmt.Fprintln(deps.Stdout, formatClockLine("Countdown", countdown, now, loc))
	_, _ = fmt.Fprintln(deps.Stdout, formatClockLine("Together", together, now, loc))
}

// formatClockLine renders one clock reading with its reference instant.
func formatClockLine(name string, spec clock.Spec, now time.Time, loc *time.Location) string {
	reading := spec.Tick(now)
	return fmt.Sprintf("%-10s %-28s %s", name, reading.String(), describeReference(spec, reading, loc))
}

func describeReference(spec clock.Spec, reading clock.Breakdown, loc *time.Location) string {
	ref := spec.Reference.In(loc).Format(refLayout)
	switch {
	case spec.Mode == clock.CountdownToFuture && reading.Mode == clock.CountdownToFuture:
		return "until " + ref
	case spec.Mode == clock.CountdownToFuture:
		return "since the big day, " + ref
	}
	return "since " + ref
}

func configHint(key string) string {
	return fmt.Sprintf("Set %s to an RFC 3339 timestamp such as %q", key, config.DefaultConfig().CountdownTarget)
}
