package service

import (
	"context"
	"log/slog"

	"github.com/xolan/mondo/internal/bucket"
	"github.com/xolan/mondo/internal/config"
	"github.com/xolan/mondo/internal/docstore"
	"github.com/xolan/mondo/internal/gate"
	"github.com/xolan/mondo/internal/logging"
	"github.com/xolan/mondo/internal/synced"
)

// Services holds all service instances used by the application
type Services struct {
	Config   *ConfigService
	Clock    *ClockService
	Bucket   *BucketService
	Security *SecurityService

	Store  docstore.Store
	Logger *slog.Logger
}

// LoadConfig resolves the config path and loads the configuration,
// falling back to defaults when the file doesn't exist.
func LoadConfig() (string, config.Config, error) {
	configPath, err := config.GetConfigPath()
	if err != nil {
		return "", config.Config{}, err
	}
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return "", config.Config{}, err
	}
	return configPath, cfg, nil
}

// NewServices opens the configured store and builds every service over it.
func NewServices(ctx context.Context, configPath string, cfg config.Config, logger *slog.Logger) (*Services, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	store, err := OpenStore(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}
	return NewServicesWithStore(configPath, cfg, store, logger), nil
}

// NewServicesWithStore builds the services over an already open store
// (useful for testing). gateOpts are applied after the logger, so tests can
// lower the bcrypt cost.
func NewServicesWithStore(configPath string, cfg config.Config, store docstore.Store, logger *slog.Logger, gateOpts ...gate.Option) *Services {
	if logger == nil {
		logger = logging.Discard()
	}
	g := gate.New(store, append([]gate.Option{gate.WithLogger(logger)}, gateOpts...)...)
	collection := synced.New(store, bucket.Collection,
		synced.WithLogger(logger),
		synced.WithTimeout(cfg.Store.Timeout.Duration()))

	return &Services{
		Config:   NewConfigService(configPath, cfg),
		Clock:    NewClockService(cfg),
		Bucket:   NewBucketService(collection),
		Security: NewSecurityService(g, cfg.Store.Timeout.Duration()),
		Store:    store,
		Logger:   logger,
	}
}

// Close stops the live bucket list and closes the store.
func (s *Services) Close() error {
	s.Bucket.Stop()
	return s.Store.Close()
}
