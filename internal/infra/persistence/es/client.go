package es

import (
	"context"

	"github.com/LouYuanbo1/smartbills/internal/domain/model"
)

/*
// 文档结构体要实现以下函数

	type Document interface {
		GetID() string
		GetIndex() string
		GetTypeMapping() *types.TypeMapping
	}
*/
type TypedEsClient[D model.Document] interface {
	CreateIndexWithMapping(ctx context.Context) error
	DeleteIndex(ctx context.Context) error
	IndexDocWithID(ctx context.Context, doc D) error
	// GetDoc 未找到时返回 nil, nil
	GetDoc(ctx context.Context, id string) (D, error)
	CountDocs(ctx context.Context) (int64, error)
	DeleteDoc(ctx context.Context, id string) error
}
