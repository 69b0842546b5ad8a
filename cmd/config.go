package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xolan/mondo/internal/config"
	"github.com/xolan/mondo/internal/service"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Display or manage configuration settings",
	Long: `Display the current effective configuration settings for mondo.

Shows the configuration file location, whether it exists, and all current
settings. Values come from the config file, then MONDO_* environment
variables, then built-in defaults.

Examples:
  mondo config                 Show all current settings
  mondo config init            Write a commented sample config file

Configuration file location:
  ~/.config/mondo/config.toml          Linux/macOS
  %APPDATA%\mondo\config.toml          Windows`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		showConfig()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a sample config file",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		initConfig()
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
}

// showConfig displays the current effective configuration
func showConfig() {
	configPath, cfg, ok := loadConfig()
	if !ok {
		return
	}

	fileExists := false
	if _, err := os.Stat(configPath); err == nil {
		fileExists = true
	}

	_, _ = fmt.Fprintln(deps.Stdout, "Configuration for mondo")
	_, _ = fmt.Fprintln(deps.Stdout, strings.Repeat("=", 60))
	_, _ = fmt.Fprintln(deps.Stdout)

	_, _ = fmt.Fprintf(deps.Stdout, "Config file:       %s\n", configPath)
	if fileExists {
		_, _ = fmt.Fprintln(deps.Stdout, "Status:            File exists (using custom configuration)")
	} else {
		_, _ = fmt.Fprintln(deps.Stdout, "Status:            No config file (using defaults)")
	}
	_, _ = fmt.Fprintln(deps.Stdout)

	_, _ = fmt.Fprintln(deps.Stdout, "Current Settings:")
	_, _ = fmt.Fprintln(deps.Stdout, strings.Repeat("-", 60))
	_, _ = fmt.Fprintf(deps.Stdout, "Timezone:          %s\n", cfg.Timezone)
	_, _ = fmt.Fprintf(deps.Stdout, "Countdown target:  %s\n", cfg.CountdownTarget)
	_, _ = fmt.Fprintf(deps.Stdout, "Together since:    %s\n", cfg.TogetherSince)
	_, _ = fmt.Fprintf(deps.Stdout, "Elapsed algorithm: %s\n", cfg.ElapsedAlgorithm)
	_, _ = fmt.Fprintf(deps.Stdout, "Theme:             %s\n", orDefault(cfg.Theme))
	_, _ = fmt.Fprintf(deps.Stdout, "Log level:         %s\n", cfg.LogLevel)
	_, _ = fmt.Fprintf(deps.Stdout, "Log file:          %s\n", orDefault(cfg.LogFile))
	_, _ = fmt.Fprintln(deps.Stdout)

	_, _ = fmt.Fprintln(deps.Stdout, "Store:")
	_, _ = fmt.Fprintln(deps.Stdout, strings.Repeat("-", 60))
	_, _ = fmt.Fprintf(deps.Stdout, "Backend:           %s\n", cfg.Store.Backend)
	switch cfg.Store.Backend {
	case config.BackendJSONL:
		_, _ = fmt.Fprintf(deps.Stdout, "Path:              %s\n", orDefault(cfg.Store.Path))
		_, _ = fmt.Fprintf(deps.Stdout, "Poll interval:     %s\n", cfg.Store.PollInterval)
	case config.BackendRedis:
		if cfg.Store.RedisURL != "" {
			_, _ = fmt.Fprintf(deps.Stdout, "Redis URL:         %s\n", redact(cfg.Store.RedisURL))
		} else {
			_, _ = fmt.Fprintf(deps.Stdout, "Redis address:     %s (db %d)\n", cfg.Store.RedisAddr, cfg.Store.RedisDB)
		}
	case config.BackendPostgres:
		_, _ = fmt.Fprintf(deps.Stdout, "Postgres DSN:      %s\n", redact(cfg.Store.PostgresDSN))
	case config.BackendRemote:
		_, _ = fmt.Fprintf(deps.Stdout, "Remote URL:        %s\n", cfg.Store.RemoteURL)
	}
	_, _ = fmt.Fprintf(deps.Stdout, "Timeout:           %s\n", cfg.Store.Timeout)
	_, _ = fmt.Fprintf(deps.Stdout, "Server address:    %s\n", cfg.Server.Addr)
	_, _ = fmt.Fprintln(deps.Stdout)

	if !fileExists {
		_, _ = fmt.Fprintln(deps.Stdout, "Tip: Run 'mondo config init' to create a config file you can edit.")
		_, _ = fmt.Fprintln(deps.Stdout)
	}
}

// initConfig writes the sample config file
func initConfig() {
	configPath, cfg, ok := loadConfig()
	if !ok {
		return
	}

	svc := service.NewConfigService(configPath, cfg)
	if svc.Exists() {
		fail("Config file already exists", nil, "Edit "+configPath+" directly or remove it first")
		return
	}
	if err := svc.Init(); err != nil {
		fail("Failed to create config file", err, "Check that the config directory is writable")
		return
	}
	_, _ = fmt.Fprintf(deps.Stdout, "Created config file at %s\n", configPath)
}

func orDefault(s string) string {
	if s == "" {
		return "(default)"
	}
	return s
}

// redact hides the password part of a URL-style connection string.
func redact(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	scheme := strings.Index(dsn, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return dsn
	}
	creds := dsn[scheme+3 : at]
	user, _, hasPassword := strings.Cut(creds, ":")
	if !hasPassword {
		return dsn
	}
	return dsn[:scheme+3] + user + ":****" + dsn[at:]
}
