package persistence

import (
	"context"
	"fmt"

	"github.com/LouYuanbo1/smartbills/internal/config"
	"github.com/LouYuanbo1/smartbills/internal/infra/persistence/badger"
	"github.com/LouYuanbo1/smartbills/internal/infra/persistence/es"
	"github.com/LouYuanbo1/smartbills/internal/infra/persistence/memory"
	"github.com/LouYuanbo1/smartbills/internal/infra/persistence/postgres"
	"go.uber.org/zap"
)

// Store 是导出进度使用的持久化键值存储,值为 JSON 文本
type Store interface {
	// Get 键不存在时 ok 为 false 且 err 为 nil
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// InitStore 按 cfg.Store.Backend 打开存储
func InitStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Store, error) {
	switch cfg.Store.Backend {
	case "", "badger":
		return badger.Open(cfg.Store.Dir, logger)
	case "memory":
		return memory.New(), nil
	case "elasticsearch", "es":
		return es.OpenStore(ctx, cfg, logger)
	case "postgres":
		return postgres.Open(ctx, cfg.Store.PostgresDSN, logger)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
