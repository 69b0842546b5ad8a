package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/xolan/mondo/internal/config"
	"github.com/xolan/mondo/internal/logging"
	"github.com/xolan/mondo/internal/service"
)

// tuiLogFile is used for TUI logs when log_file is not configured.
const tuiLogFile = "mondo.log"

// app is an open set of services plus whatever must be released with them.
type app struct {
	*service.Services
	logCloser io.Closer
}

func (a *app) Close() {
	_ = a.Services.Close()
	if a.logCloser != nil {
		_ = a.logCloser.Close()
	}
}

// printError writes the Error/Details/Hint block used by every command.
func printError(msg string, err error, hint string) {
	_, _ = fmt.Fprintf(deps.Stderr, "Error: %s\n", msg)
	if err != nil {
		_, _ = fmt.Fprintf(deps.Stderr, "Details: %v\n", err)
	}
	if hint != "" {
		_, _ = fmt.Fprintf(deps.Stderr, "Hint: %s\n", hint)
	}
}

// fail prints an error block and exits with status 1.
func fail(msg string, err error, hint string) {
	printError(msg, err, hint)
	deps.Exit(1)
}

// loadConfig loads the effective configuration, reporting failures.
func loadConfig() (string, config.Config, bool) {
	configPath, cfg, err := deps.LoadConfig()
	if err != nil {
		fail("Failed to load configuration", err,
			"Check that your config file is valid TOML; run 'mondo config' to see its location")
		return "", config.Config{}, false
	}
	return configPath, cfg, true
}

// newLogger builds the logger for a command. The TUI owns the terminal, so
// it always logs to a file.
func newLogger(configPath string, cfg config.Config, tui bool) (*slog.Logger, io.Closer, error) {
	path := cfg.LogFile
	if path == "" && tui {
		path = filepath.Join(filepath.Dir(configPath), tuiLogFile)
	}
	if path == "" {
		logger, err := logging.New(cfg.LogLevel, deps.Stderr)
		return logger, nil, err
	}
	return logging.Open(cfg.LogLevel, path)
}

// openApp loads the config and opens the services over the configured
// store. The caller must Close the result.
func openApp(ctx context.Context, tui bool) (*app, bool) {
	configPath, cfg, ok := loadConfig()
	if !ok {
		return nil, false
	}

	logger, closer, err := newLogger(configPath, cfg, tui)
	if err != nil {
		fail("Failed to set up logging", err, "Check log_level and log_file in your config")
		return nil, false
	}

	services, err := deps.OpenServices(ctx, configPath, cfg, logger)
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		fail(fmt.Sprintf("Failed to open the %s store", cfg.Store.Backend), err, storeHint(cfg))
		return nil, false
	}
	return &app{Services: services, logCloser: closer}, true
}

func storeHint(cfg config.Config) string {
	switch cfg.Store.Backend {
	case config.BackendRedis:
		return "Check that Redis is running and store.redis_url or store.redis_addr is correct"
	case config.BackendPostgres:
		return "Check that PostgreSQL is reachable with store.postgres_dsn"
	case config.BackendRemote:
		return "Check that 'mondo serve' is running at store.remote_url"
	case config.BackendJSONL:
		return "Check that the store.path directory is writable"
	}
	return ""
}

// stdin buffers deps.Stdin so consecutive prompts share read-ahead.
var stdin struct {
	src    io.Reader
	reader *bufio.Reader
}

// prompt writes label to stderr and reads one line from stdin.
func prompt(label string) (string, error) {
	_, _ = fmt.Fprint(deps.Stderr, label)
	if stdin.src != deps.Stdin {
		stdin.src = deps.Stdin
		stdin.reader = bufio.NewReader(deps.Stdin)
	}
	line, err := stdin.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func pluralize(word string, count int) string {
	if count == 1 {
		return word
	}
	return word + "s"
}
