package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/xolan/mondo/internal/config"
	"github.com/xolan/mondo/internal/service"
)

// Deps holds external dependencies for CLI commands, enabling testability.
type Deps struct {
	Stdout io.Writer
	Stderr io.Writer
	Stdin  io.Reader
	Exit   func(code int)
	Now    func() time.Time

	// LoadConfig returns the config file path and the effective config.
	LoadConfig func() (string, config.Config, error)
	// OpenServices opens the configured store and builds the services.
	OpenServices func(ctx context.Context, configPath string, cfg config.Config, logger *slog.Logger) (*service.Services, error)
}

// DefaultDeps returns the default production dependencies.
func DefaultDeps() *Deps {
	return &Deps{
		Stdout:       os.Stdout,
		Stderr:       os.Stderr,
		Stdin:        os.Stdin,
		Exit:         os.Exit,
		Now:          time.Now,
		LoadConfig:   service.LoadConfig,
		OpenServices: service.NewServices,
	}
}

// deps is the global dependencies instance used by commands.
// In production, this is DefaultDeps(). Tests can replace it.
var deps = DefaultDeps()

// SetDeps sets the global dependencies (for testing).
func SetDeps(d *Deps) {
	deps = d
}

// ResetDeps resets dependencies to defaults (for testing cleanup).
func ResetDeps() {
	deps = DefaultDeps()
}
