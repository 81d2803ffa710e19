package chrome

import (
	"context"
	"fmt"

	"github.com/LouYuanbo1/smartbills/internal/config"
	"github.com/LouYuanbo1/smartbills/internal/infra/crawler/types"
	"go.uber.org/zap"
)

// FrameSelector 同时匹配 frameset 中的 frame 与 iframe
const FrameSelector = "frame, iframe"

// ChromeCrawler 驱动一个标签页,页面内可以嵌套任意层级的框架
type ChromeCrawler interface {
	// InitAndNavigate 打开页面,url 为空时沿用浏览器当前页面
	InitAndNavigate(url string) error
	// Frames 每次调用都重新枚举整棵框架树,顶层在前,按文档顺序深度优先
	Frames(ctx context.Context) ([]*types.Frame, error)
	// PerformClick 在 path 指向的框架内点击第一个匹配 selector 的元素;text 不为空时要求元素文本完全相等
	PerformClick(ctx context.Context, path types.FramePath, selector, text string) (bool, error)
	// NavigateFrame 让 path 指向的框架跳转到 url,顶层 path 为空
	NavigateFrame(ctx context.Context, path types.FramePath, url string) error
	// Reload 整页刷新
	Reload(ctx context.Context) error
	Close()
}

// InitCrawler 按 cfg.Browser 选择 rod 或 chromedp
func InitCrawler(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ChromeCrawler, error) {
	switch cfg.Browser {
	case "", "rod":
		return InitRodCrawler(cfg, logger)
	case "chromedp":
		return InitChromedpCrawler(ctx, cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown browser backend %q", cfg.Browser)
	}
}
