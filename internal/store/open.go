package store

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/plusdesk/api/schemas"
	"github.com/xkilldash9x/plusdesk/internal/config"
)

// Open builds the credential store selected by cfg.Driver. The returned
// cleanup func releases the pool or database handle and is never nil on
// success.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (schemas.CredentialStore, func(), error) {
	switch strings.ToLower(cfg.Driver) {
	case config.DriverPostgres, "":
		pool, err := NewPool(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() {
			logger.Debug("Closing PostgreSQL connection pool.")
			pool.Close()
		}
		return New(pool, logger), cleanup, nil

	case config.DriverSQLite:
		s, err := OpenSQLite(cfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() {
			if err := s.Close(); err != nil {
				logger.Warn("Failed to close SQLite store.", zap.Error(err))
			}
		}
		return s, cleanup, nil

	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
