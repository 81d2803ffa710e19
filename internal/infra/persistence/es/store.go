package es

import (
	"context"

	"github.com/LouYuanbo1/smartbills/internal/config"
	"github.com/LouYuanbo1/smartbills/internal/domain/model"
	"go.uber.org/zap"
)

// Store 每个键对应索引中的一个文档
type Store struct {
	client TypedEsClient[*model.StateDoc]
	index  string
}

func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Store, error) {
	schema := &model.StateDoc{}
	schema.SetIndex(cfg.Store.Index)
	client, err := InitTypedEsClient(cfg, schema, logger)
	if err != nil {
		return nil, err
	}
	return newStore(ctx, client, schema.GetIndex(), logger)
}

func newStore(ctx context.Context, client TypedEsClient[*model.StateDoc], index string, logger *zap.Logger) (*Store, error) {
	if err := client.CreateIndexWithMapping(ctx); err != nil {
		return nil, err
	}
	count, err := client.CountDocs(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("状态索引已就绪", zap.String("index", index), zap.Int64("docs", count))
	return &Store{client: client, index: index}, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	doc, err := s.client.GetDoc(ctx, key)
	if err != nil || doc == nil {
		return nil, false, err
	}
	return []byte(doc.Value), true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.client.IndexDocWithID(ctx, model.NewStateDoc(s.index, key, value))
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.client.DeleteDoc(ctx, key)
}

func (s *Store) Close() error {
	return nil
}
