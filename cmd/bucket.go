package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xolan/mondo/internal/bucket"
	"github.com/xolan/mondo/internal/gate"
	"github.com/xolan/mondo/internal/service"
	"github.com/xolan/mondo/internal/synced"
)

var (
	pinFlag      string
	yesFlag      bool
	formatFlag   string
	outputFlag   string
	bucketHint   = "Run 'mondo bucket' to see the numbers and ids"
	pinEntryHint = "Pass --pin or type the PIN when prompted"
)

// bucketCmd represents the bucket command
var bucketCmd = &cobra.Command{
	Use:   "bucket",
	Short: "Show the shared bucket list",
	Long: `Show the shared bucket list, newest first.

Every bucket command needs the PIN. Pass it with --pin or type it when
prompted. Items are referred to by the number shown in the list or by the
start of their id.

Examples:
  mondo bucket
  mondo bucket add See the northern lights
  mondo bucket done 2
  mondo bucket edit 2 See the northern lights in Tromsø
  mondo bucket rm 2 --yes
  mondo bucket export --format yaml > bucket.yaml`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		withBucket(cmd, listBucket)
	},
}

var bucketAddCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Add a dream to the bucket list",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withBucket(cmd, func(ctx context.Context, a *app) {
			addBucketItem(ctx, a, strings.Join(args, " "))
		})
	},
}

var bucketDoneCmd = &cobra.Command{
	Use:   "done <ref>",
	Short: "Toggle a dream between done and not done",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withBucket(cmd, func(ctx context.Context, a *app) {
			toggleBucketItem(ctx, a, args[0])
		})
	},
}

var bucketEditCmd = &cobra.Command{
	Use:   "edit <ref> <text>",
	Short: "Change the text of a dream",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		withBucket(cmd, func(ctx context.Context, a *app) {
			editBucketItem(ctx, a, args[0], strings.Join(args[1:], " "))
		})
	},
}

var bucketRmCmd = &cobra.Command{
	Use:     "rm <ref>",
	Aliases: []string{"delete"},
	Short:   "Delete a dream",
	Long: `Delete a dream from the bucket list.
A confirmation prompt will be shown unless --yes is specified.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withBucket(cmd, func(ctx context.Context, a *app) {
			removeBucketItem(ctx, a, args[0])
		})
	},
}

var bucketExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the bucket list as JSON or YAML",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		withBucket(cmd, exportBucket)
	},
}

func init() {
	rootCmd.AddCommand(bucketCmd)
	bucketCmd.AddCommand(bucketAddCmd, bucketDoneCmd, bucketEditCmd, bucketRmCmd, bucketExportCmd)

	bucketCmd.PersistentFlags().StringVar(&pinFlag, "pin", "", "PIN for the bucket list (prompted when empty)")
	bucketRmCmd.Flags().BoolVarP(&yesFlag, "yes", "y", false, "skip confirmation prompt")
	bucketExportCmd.Flags().StringVarP(&formatFlag, "format", "f", service.FormatJSON, "output format: json or yaml")
	bucketExportCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "write to a file instead of stdout")
}

// withBucket opens the services, unlocks the bucket list and runs fn.
func withBucket(cmd *cobra.Command, fn func(ctx context.Context, a *app)) {
	ctx := cmd.Context()
	a, ok := openApp(ctx, false)
	if !ok {
		return
	}
	defer a.Close()

	pin := pinFlag
	if pin == "" {
		var err error
		pin, err = prompt("PIN: ")
		if err != nil {
			fail("Failed to read the PIN", err, pinEntryHint)
			return
		}
	}

	if err := a.Bucket.Unlock(ctx, a.Security, pin); err != nil {
		if errors.Is(err, service.ErrWrongPIN) {
			fail("Incorrect PIN", nil, pinEntryHint)
			return
		}
		fail("Failed to check the PIN", err, storeHint(a.Config.Get()))
		return
	}
	defer a.Bucket.Lock()

	fn(ctx, a)
}

func listBucket(ctx context.Context, a *app) {
	result, err := a.Bucket.List(ctx)
	if err != nil {
		failBucket("Failed to load the bucket list", err)
		return
	}

	if len(result.Items) == 0 {
		_, _ = fmt.Fprintln(deps.Stdout, "The bucket list is empty")
		_, _ = fmt.Fprintln(deps.Stdout, "Add the first dream with: mondo bucket add <text>")
		return
	}

	_, _ = fmt.Fprintf(deps.Stdout, "Bucket list: %d %s, %d done\n\n",
		result.Stats.Total, pluralize("dream", result.Stats.Total), result.Stats.Completed)

	loc := a.Clock.Location()
	indexWidth := len(fmt.Sprintf("[%d]", len(result.Items)))
	for i, item := range result.Items {
		_, _ = fmt.Fprintf(deps.Stdout, "%-*s %s %s  (%s, %s)\n",
			indexWidth, fmt.Sprintf("[%d]", i+1),
			checkbox(item), item.Content, item.DisplayDate(loc), shortID(item.ID))
	}
}

func addBucketItem(ctx context.Context, a *app, content string) {
	item, err := a.Bucket.Add(ctx, content)
	if err != nil {
		failBucket("Failed to add the dream", err)
		return
	}
	_, _ = fmt.Fprintf(deps.Stdout, "Added: %s (%s)\n", item.Content, shortID(item.ID))
}

func toggleBucketItem(ctx context.Context, a *app, ref string) {
	item, err := a.Bucket.Toggle(ctx, ref)
	if err != nil {
		failBucket("Failed to update the dream", err)
		return
	}
	if item.Completed {
		_, _ = fmt.Fprintf(deps.Stdout, "Done: %s\n", item.Content)
		return
	}
	_, _ = fmt.Fprintf(deps.Stdout, "Not done: %s\n", item.Content)
}

func editBucketItem(ctx context.Context, a *app, ref, content string) {
	item, err := a.Bucket.Edit(ctx, ref, content)
	if err != nil {
		failBucket("Failed to edit the dream", err)
		return
	}
	_, _ = fmt.Fprintf(deps.Stdout, "Updated: %s\n", item.Content)
}

func removeBucketItem(ctx context.Context, a *app, ref string) {
	item, err := a.Bucket.Resolve(ctx, ref)
	if err != nil {
		failBucket("Failed to find the dream", err)
		return
	}

	if !yesFlag {
		answer, err := prompt(fmt.Sprintf("Delete %q? [y/N]: ", item.Content))
		if err != nil {
			fail("Failed to read confirmation", err, "Use --yes to skip the prompt")
			return
		}
		if answer != "y" && answer != "Y" && !strings.EqualFold(answer, "yes") {
			_, _ = fmt.Fprintln(deps.Stdout, "Deletion cancelled")
			return
		}
	}

	if _, err := a.Bucket.Remove(ctx, item.ID); err != nil {
		failBucket("Failed to delete the dream", err)
		return
	}
	_, _ = fmt.Fprintf(deps.Stdout, "Deleted: %s\n", item.Content)
}

func exportBucket(ctx context.Context, a *app) {
	w := deps.Stdout
	if outputFlag != "" {
		f, err := os.Create(outputFlag)
		if err != nil {
			fail("Failed to create the output file", err, "Check that the directory exists and is writable")
			return
		}
		defer func() { _ = f.Close() }()
		w = f
	}

	if err := a.Bucket.Export(ctx, w, formatFlag); err != nil {
		if errors.Is(err, service.ErrUnknownFormat) {
			fail(fmt.Sprintf("Unknown format %q", formatFlag), nil, "Use --format json or --format yaml")
			return
		}
		failBucket("Failed to export the bucket list", err)
		return
	}
	if outputFlag != "" {
		_, _ = fmt.Fprintf(deps.Stdout, "Exported to %s\n", outputFlag)
	}
}

// failBucket maps bucket errors to messages and hints.
func failBucket(msg string, err error) {
	switch {
	case errors.Is(err, service.ErrEmptyRef),
		errors.Is(err, service.ErrRefNotFound),
		errors.Is(err, service.ErrIndexOutOfRange),
		errors.Is(err, service.ErrAmbiguousRef),
		synced.IsNotFound(err):
		fail(msg, err, bucketHint)
	case errors.Is(err, bucket.ErrEmptyContent), synced.IsValidation(err):
		fail(msg, err, "The text must not be empty")
	case errors.Is(err, gate.ErrInvalidPIN):
		fail(msg, err, "A PIN is 4 to 8 digits")
	default:
		fail(msg, err, "")
	}
}

func checkbox(item bucket.Item) string {
	if item.Completed {
		return "[x]"
	}
	return "[ ]"
}

// shortID returns the first 8 characters of an id for display.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
