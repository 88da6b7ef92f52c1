package kvstore

import (
	"context"
	"fmt"

	"github.com/nhle/pmcore/internal/model"
)

// Open builds the backend selected by cfg.Backend.
func Open(ctx context.Context, cfg model.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case model.BackendMemory:
		return NewMemoryStore(), nil

	case model.BackendSQLite:
		s, err := NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil

	case model.BackendKeyring:
		s, err := OpenKeyring(cfg.KeyringService, cfg.KeyringDir)
		if err != nil {
			return nil, err
		}
		return s, nil

	case model.BackendRedis:
		s, err := OpenRedis(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.RedisPrefix)
		if err != nil {
			return nil, err
		}
		return s, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
