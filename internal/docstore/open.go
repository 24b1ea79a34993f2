package docstore

import (
	"context"
	"fmt"

	"github.com/firefly-engineering/desklab/internal/config"
	"github.com/firefly-engineering/desklab/internal/runtime"
)

// Open creates the store selected by cfg.Store.Backend. The runtime is only
// used by the image backend.
func Open(ctx context.Context, cfg *config.StoreConfig, rt runtime.Runtime) (Store, error) {
	switch cfg.Backend {
	case config.BackendFile:
		return NewFileStore(cfg.Path)
	case config.BackendImage:
		return NewImageStore(rt), nil
	case config.BackendRedis:
		return OpenRedis(ctx, cfg.RedisURL)
	case config.BackendPostgres:
		return OpenPostgres(ctx, cfg.PostgresDSN)
	case config.BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Backend)
	}
}
