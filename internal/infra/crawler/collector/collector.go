package collector

import (
	"context"

	"github.com/LouYuanbo1/smartbills/internal/infra/crawler/types"
)

// SnapshotCollector 不启动浏览器,直接抓取页面及其框架的 HTML
type SnapshotCollector interface {
	// Collect 返回与浏览器枚举结果相同结构的框架列表,顶层在前
	Collect(ctx context.Context, url string) ([]*types.Frame, error)
}
