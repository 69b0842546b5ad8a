package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/xolan/mondo/internal/bucket"
	"github.com/xolan/mondo/internal/docstore/jsonlstore"
	"github.com/xolan/mondo/internal/gate"
)

// maxWarningContent limits how much of a corrupted line is printed.
const maxWarningContent = 50

// collections are the store collections mondo writes.
var collections = []string{bucket.Collection, gate.Collection}

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Inspect and repair the local jsonl store",
}

var storeCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the store files for corrupted lines",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		withJSONLStore(cmd, checkStore)
	},
}

var storeRepairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Drop corrupted lines from the store files",
	Long: `Rewrite each store file keeping only the lines that parse.
The original file is backed up first, so 'mondo store restore' can undo it.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		withJSONLStore(cmd, repairStore)
	},
}

var storeRestoreCmd = &cobra.Command{
	Use:   "restore [backup_number]",
	Short: "Restore the bucket list from a backup file",
	Long: `Restore the bucket list file from a backup.

By default, restores from the most recent backup (.bak.1).
Optionally specify a backup number to restore from (1-3).

Examples:
  mondo store restore       Restore from most recent backup
  mondo store restore 2     Restore from backup #2`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		withJSONLStore(cmd, func(cmd *cobra.Command, s *jsonlstore.Store) {
			restoreStore(cmd, s, args)
		})
	},
}

func init() {
	rootCmd.AddCommand(storeCmd)
	storeCmd.AddCommand(storeCheckCmd, storeRepairCmd, storeRestoreCmd)
}

// withJSONLStore runs fn against the jsonl backend; other backends have no
// local files to maintain.
func withJSONLStore(cmd *cobra.Command, fn func(*cobra.Command, *jsonlstore.Store)) {
	a, ok := openApp(cmd.Context(), false)
	if !ok {
		return
	}
	defer a.Close()

	s, isJSONL := a.Store.(*jsonlstore.Store)
	if !isJSONL {
		fail(fmt.Sprintf("The %s backend has no local files", a.Config.Get().Store.Backend), nil,
			"Store maintenance only applies to store.backend = \"jsonl\"")
		return
	}
	fn(cmd, s)
}

func checkStore(_ *cobra.Command, s *jsonlstore.Store) {
	healthy := true
	_, _ = fmt.Fprintf(deps.Stdout, "Store directory: %s\n\n", s.Dir())

	for _, collection := range collections {
		health, err := s.Check(collection)
		if err != nil {
			fail("Failed to check "+collection, err, "Check that the store directory is readable")
			return
		}

		_, _ = fmt.Fprintf(deps.Stdout, "%s: %d %s, %d valid, %d corrupted\n",
			collection, health.TotalLines, pluralize("line", health.TotalLines),
			health.ValidDocuments, health.CorruptedEntries)
		for _, w := range health.Warnings {
			_, _ = fmt.Fprintln(deps.Stdout, formatCorruptionWarning(w))
		}
		if !health.Healthy() {
			healthy = false
		}
	}

	_, _ = fmt.Fprintln(deps.Stdout)
	if healthy {
		_, _ = fmt.Fprintln(deps.Stdout, "Store is healthy")
		return
	}
	_, _ = fmt.Fprintln(deps.Stdout, "Run 'mondo store repair' to drop the corrupted lines")
	deps.Exit(1)
}

func repairStore(_ *cobra.Command, s *jsonlstore.Store) {
	for _, collection := range collections {
		dropped, err := s.Repair(collection)
		if err != nil {
			fail("Failed to repair "+collection, err, "Check that the store directory is writable")
			return
		}
		if dropped == 0 {
			_, _ = fmt.Fprintf(deps.Stdout, "%s: nothing to repair\n", collection)
			continue
		}
		_, _ = fmt.Fprintf(deps.Stdout, "%s: dropped %d corrupted %s (backup saved)\n",
			collection, dropped, pluralize("line", dropped))
	}
}

func restoreStore(cmd *cobra.Command, s *jsonlstore.Store, args []string) {
	backups := s.Backups(bucket.Collection)
	if len(backups) == 0 {
		_, _ = fmt.Fprintln(deps.Stdout, "No backups available")
		deps.Exit(1)
		return
	}

	_, _ = fmt.Fprintln(deps.Stdout, "Available backups:")
	for _, backup := range backups {
		if backup.Number == 1 {
			_, _ = fmt.Fprintf(deps.Stdout, "  %d: %s (most recent)\n", backup.Number, backup.Path)
		} else {
			_, _ = fmt.Fprintf(deps.Stdout, "  %d: %s\n", backup.Number, backup.Path)
		}
	}
	_, _ = fmt.Fprintln(deps.Stdout)

	backupNum := 1
	if len(args) > 0 {
		num, err := strconv.Atoi(args[0])
		if err != nil {
			fail(fmt.Sprintf("Invalid backup number '%s'", args[0]), nil, "")
			return
		}
		if num < 1 || num > jsonlstore.MaxBackupCount {
			fail(fmt.Sprintf("Backup number must be between 1 and %d (got %d)", jsonlstore.MaxBackupCount, num), nil, "")
			return
		}
		backupNum = num
	}

	exists := false
	for _, backup := range backups {
		if backup.Number == backupNum {
			exists = true
			break
		}
	}
	if !exists {
		fail(fmt.Sprintf("Backup %d does not exist", backupNum), nil, "")
		return
	}

	if err := s.Restore(cmd.Context(), bucket.Collection, backupNum); err != nil {
		fail("Failed to restore backup", err, "")
		return
	}
	_, _ = fmt.Fprintf(deps.Stdout, "Successfully restored from backup %d\n", backupNum)
}

// formatCorruptionWarning formats one corrupted line for display.
func formatCorruptionWarning(w jsonlstore.ParseWarning) string {
	content := w.Content
	if len(content) > maxWarningContent {
		content = content[:maxWarningContent] + "..."
	}
	return fmt.Sprintf("  Line %d: %s (error: %s)", w.LineNumber, content, w.Error)
}
