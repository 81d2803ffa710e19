package chrome

import (
	"context"
	"fmt"
	"strings"

	"github.com/LouYuanbo1/smartbills/internal/config"
	"github.com/LouYuanbo1/smartbills/internal/infra/crawler/options"
	"github.com/LouYuanbo1/smartbills/internal/infra/crawler/types"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"
)

type rodCrawler struct {
	browser *rod.Browser
	page    *rod.Page
	stealth bool
	logger  *zap.Logger
}

// InitRodCrawler 配置了 control_url 时连接到已经登录的浏览器,否则按配置启动新的浏览器
func InitRodCrawler(cfg *config.Config, logger *zap.Logger) (ChromeCrawler, error) {
	controlURL := cfg.Rod.ControlURL
	if controlURL == "" {
		l := options.CreateLauncher(cfg.Rod.UserMode,
			options.WithBin(cfg.Rod.Bin),
			options.WithUserDataDir(cfg.Rod.UserDataDir),
			options.WithHeadless(cfg.Rod.Headless),
			options.WithDisableBlinkFeatures(cfg.Rod.DisableBlinkFeatures),
			options.WithIncognito(cfg.Rod.Incognito),
			options.WithDisableDevShmUsage(cfg.Rod.DisableDevShmUsage),
			options.WithNoSandbox(cfg.Rod.NoSandbox),
			options.WithUserAgent(cfg.Rod.UserAgent),
			options.WithLeakless(cfg.Rod.Leakless),
			options.WithRemoteDebuggingPort(cfg.Rod.RemoteDebuggingPort),
		)
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("启动浏览器失败: %w", err)
		}
		controlURL = u
	}
	logger.Info("浏览器连接URL", zap.String("control_url", controlURL))

	browser := rod.New().ControlURL(controlURL).Trace(cfg.Rod.Trace)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("连接浏览器失败: %w", err)
	}
	return &rodCrawler{
		browser: browser,
		stealth: cfg.Rod.Stealth,
		logger:  logger,
	}, nil
}

func (rc *rodCrawler) Close() {
	if err := rc.browser.Close(); err != nil {
		rc.logger.Warn("关闭浏览器失败", zap.Error(err))
	}
}

func (rc *rodCrawler) InitAndNavigate(url string) error {
	if url == "" {
		pages, err := rc.browser.Pages()
		if err != nil {
			return fmt.Errorf("获取页面失败: %w", err)
		}
		if len(pages) == 0 {
			return fmt.Errorf("浏览器中没有打开的页面")
		}
		rc.page = pages.First()
		return nil
	}

	var err error
	if rc.stealth {
		rc.page, err = stealth.Page(rc.browser)
	} else {
		rc.page, err = rc.browser.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		return fmt.Errorf("创建页面失败: %w", err)
	}
	if err := rc.page.Navigate(url); err != nil {
		return fmt.Errorf("导航失败: %w", err)
	}
	return rc.page.WaitLoad()
}

func (rc *rodCrawler) Frames(ctx context.Context) ([]*types.Frame, error) {
	if rc.page == nil {
		return nil, fmt.Errorf("页面未初始化")
	}
	var out []*types.Frame
	var walk func(p *rod.Page, path types.FramePath, parent *types.Frame) error
	walk = func(p *rod.Page, path types.FramePath, parent *types.Frame) error {
		html, err := p.HTML()
		if err != nil {
			return err
		}
		href, err := p.Eval(`() => location.href`)
		if err != nil {
			return err
		}
		f := &types.Frame{Path: path, URL: href.Value.Str(), HTML: html, Parent: parent}
		out = append(out, f)

		els, err := p.Elements(FrameSelector)
		if err != nil {
			return nil
		}
		for i, el := range els {
			child, err := el.Frame()
			if err != nil {
				// 跨域或正在卸载的框架
				continue
			}
			if err := walk(child.Context(p.GetContext()), path.Child(i), f); err != nil {
				rc.logger.Debug("跳过不可访问的框架", zap.String("path", path.Child(i).String()), zap.Error(err))
			}
		}
		return nil
	}
	if err := walk(rc.page.Context(ctx), types.FramePath{}, nil); err != nil {
		return nil, fmt.Errorf("枚举框架失败: %w", err)
	}
	return out, nil
}

// resolve 沿路径重新查找框架,不复用之前的节点
func (rc *rodCrawler) resolve(ctx context.Context, path types.FramePath) (*rod.Page, error) {
	p := rc.page.Context(ctx)
	for depth, idx := range path {
		els, err := p.Elements(FrameSelector)
		if err != nil {
			return nil, err
		}
		if idx >= len(els) {
			return nil, fmt.Errorf("框架不存在: %s", path[:depth+1])
		}
		child, err := els[idx].Frame()
		if err != nil {
			return nil, err
		}
		p = child.Context(ctx)
	}
	return p, nil
}

func (rc *rodCrawler) PerformClick(ctx context.Context, path types.FramePath, selector, text string) (bool, error) {
	p, err := rc.resolve(ctx, path)
	if err != nil {
		return false, err
	}
	els, err := p.Elements(selector)
	if err != nil {
		return false, fmt.Errorf("查找元素失败: %w", err)
	}
	for _, el := range els {
		if text != "" {
			t, err := el.Text()
			if err != nil || normalize(t) != normalize(text) {
				continue
			}
		}
		_ = el.ScrollIntoView()
		if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			// 被遮挡或不可交互时退回到脚本点击
			if _, err := el.Eval(`() => this.click()`); err != nil {
				return false, fmt.Errorf("点击失败: %w", err)
			}
		}
		return true, nil
	}
	return false, nil
}

func (rc *rodCrawler) NavigateFrame(ctx context.Context, path types.FramePath, url string) error {
	if path.IsRoot() {
		return rc.page.Context(ctx).Navigate(url)
	}
	p, err := rc.resolve(ctx, path)
	if err != nil {
		return err
	}
	_, err = p.Eval(`(u) => location.replace(u)`, url)
	return err
}

func (rc *rodCrawler) Reload(ctx context.Context) error {
	p := rc.page.Context(ctx)
	if err := p.Reload(); err != nil {
		return fmt.Errorf("刷新失败: %w", err)
	}
	return p.WaitLoad()
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(s, "\u00a0", " ")), " ")
}
