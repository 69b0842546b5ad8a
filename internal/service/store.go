package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xolan/mondo/internal/config"
	"github.com/xolan/mondo/internal/docstore"
	"github.com/xolan/mondo/internal/docstore/jsonlstore"
	"github.com/xolan/mondo/internal/docstore/pgstore"
	"github.com/xolan/mondo/internal/docstore/redisstore"
	"github.com/xolan/mondo/internal/docstore/remote"
	"github.com/xolan/mondo/internal/logging"
	"github.com/xolan/mondo/internal/osutil"
)

// DataDir is the jsonl directory used when store.path is empty.
const DataDir = "data"

// OpenStore opens the backend selected by cfg.
func OpenStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (docstore.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Discard()
	}

	switch cfg.Backend {
	case config.BackendMemory:
		return docstore.NewMemoryStore(docstore.WithMemoryLogger(logger)), nil

	case config.BackendJSONL:
		dir := cfg.Path
		if dir == "" {
			var err error
			dir, err = osutil.AppDir(DataDir)
			if err != nil {
				return nil, fmt.Errorf("resolve data directory: %w", err)
			}
		}
		store, err := jsonlstore.Open(dir,
			jsonlstore.WithLogger(logger),
			jsonlstore.WithPollInterval(cfg.PollInterval.Duration()))
		if err != nil {
			return nil, err
		}
		return store, nil

	case config.BackendRedis:
		addr, password, db, err := cfg.RedisTarget()
		if err != nil {
			return nil, err
		}
		store, err := redisstore.Open(ctx, redisstore.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
			Logger:   logger,
		})
		if err != nil {
			return nil, err
		}
		return store, nil

	case config.BackendPostgres:
		store, err := pgstore.Open(ctx, pgstore.Options{
			DSN:    cfg.PostgresDSN,
			Logger: logger,
		})
		if err != nil {
			return nil, err
		}
		return store, nil

	case config.BackendRemote:
		store, err := remote.Open(cfg.RemoteURL,
			remote.WithLogger(logger),
			remote.WithTimeout(cfg.Timeout.Duration()))
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}
