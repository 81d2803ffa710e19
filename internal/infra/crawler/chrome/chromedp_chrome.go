package chrome

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/LouYuanbo1/smartbills/internal/config"
	"github.com/LouYuanbo1/smartbills/internal/infra/crawler/types"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

type chromedpCrawler struct {
	allocCtx      context.Context
	allocCtxFuc   context.CancelFunc
	pageCtx       context.Context
	pageCtxFuc    context.CancelFunc
	timeoutCtxFuc context.CancelFunc
	logger        *zap.Logger
}

func InitChromedpCrawler(ctx context.Context, cfg *config.Config, logger *zap.Logger) ChromeCrawler {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Chromedp.Headless),
		chromedp.Flag("incognito", cfg.Chromedp.Incognito),
		chromedp.Flag("disable-dev-shm-usage", cfg.Chromedp.DisableDevShmUsage),
		chromedp.Flag("no-sandbox", cfg.Chromedp.NoSandbox),
	)
	if cfg.Chromedp.DisableBlinkFeatures != "" {
		opts = append(opts, chromedp.Flag("disable-blink-features", cfg.Chromedp.DisableBlinkFeatures))
	}
	if cfg.Chromedp.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.Chromedp.UserDataDir))
	}
	if cfg.Chromedp.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.Chromedp.UserAgent))
	}

	cancelTimeout := context.CancelFunc(func() {})
	if cfg.Chromedp.LifeTime > 0 {
		ctx, cancelTimeout = context.WithTimeout(ctx, time.Duration(cfg.Chromedp.LifeTime)*time.Second)
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	pageCtx, cancelPage := chromedp.NewContext(allocCtx)

	return &chromedpCrawler{
		allocCtx:      allocCtx,
		allocCtxFuc:   cancelAlloc,
		pageCtx:       pageCtx,
		pageCtxFuc:    cancelPage,
		timeoutCtxFuc: cancelTimeout,
		logger:        logger,
	}
}

func (cc *chromedpCrawler) Close() {
	cc.pageCtxFuc()
	cc.allocCtxFuc()
	cc.timeoutCtxFuc()
}

func (cc *chromedpCrawler) InitAndNavigate(url string) error {
	if url == "" {
		cc.logger.Warn("chromedp 会启动新的浏览器,未指定入口地址时页面为空白")
		return chromedp.Run(cc.pageCtx)
	}
	return chromedp.Run(cc.pageCtx, chromedp.Navigate(url))
}

// run 在标签页上下文中执行,同时继承调用方的截止时间与取消
func (cc *chromedpCrawler) run(ctx context.Context, fn func(ctx context.Context) error) error {
	runCtx, cancel := context.WithCancel(cc.pageCtx)
	defer cancel()
	if dl, ok := ctx.Deadline(); ok {
		var cancelDl context.CancelFunc
		runCtx, cancelDl = context.WithDeadline(runCtx, dl)
		defer cancelDl()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, chromedp.ActionFunc(fn))
}

// docNode 是一个文档节点及其在框架树中的位置
type docNode struct {
	path types.FramePath
	node *cdp.Node
}

// documents 按文档顺序深度优先列出所有可访问的文档,顶层在前
func documents(root *cdp.Node) []docNode {
	var out []docNode
	var visitDoc func(doc *cdp.Node, path types.FramePath)
	visitDoc = func(doc *cdp.Node, path types.FramePath) {
		out = append(out, docNode{path: path, node: doc})
		idx := 0
		var visit func(n *cdp.Node)
		visit = func(n *cdp.Node) {
			for _, c := range n.Children {
				name := strings.ToUpper(c.NodeName)
				if name == "FRAME" || name == "IFRAME" {
					childPath := path.Child(idx)
					idx++
					if c.ContentDocument != nil {
						visitDoc(c.ContentDocument, childPath)
					}
					continue
				}
				visit(c)
			}
		}
		visit(doc)
	}
	visitDoc(root, types.FramePath{})
	return out
}

func (cc *chromedpCrawler) Frames(ctx context.Context) ([]*types.Frame, error) {
	var out []*types.Frame
	err := cc.run(ctx, func(ctx context.Context) error {
		root, err := dom.GetDocument().WithDepth(-1).WithPierce(true).Do(ctx)
		if err != nil {
			return fmt.Errorf("获取文档失败: %w", err)
		}
		byPath := map[string]*types.Frame{}
		for _, d := range documents(root) {
			html, err := dom.GetOuterHTML().WithNodeID(d.node.NodeID).Do(ctx)
			if err != nil {
				cc.logger.Debug("跳过不可访问的框架", zap.String("path", d.path.String()), zap.Error(err))
				continue
			}
			f := &types.Frame{Path: d.path, URL: d.node.DocumentURL, HTML: html}
			if !d.path.IsRoot() {
				f.Parent = byPath[d.path[:len(d.path)-1].String()]
			}
			byPath[d.path.String()] = f
			out = append(out, f)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("枚举框架失败: %w", err)
	}
	return out, nil
}

// callOnDocument 在 path 指向的文档上执行函数,参数以 JSON 字面量嵌入
func (cc *chromedpCrawler) callOnDocument(ctx context.Context, path types.FramePath, fn string, args ...any) (string, error) {
	lits := make([]string, 0, len(args))
	for _, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return "", err
		}
		lits = append(lits, string(b))
	}
	decl := fmt.Sprintf("function() { return (%s).call(this, %s); }", fn, strings.Join(lits, ", "))

	var value string
	err := cc.run(ctx, func(ctx context.Context) error {
		root, err := dom.GetDocument().WithDepth(-1).WithPierce(true).Do(ctx)
		if err != nil {
			return err
		}
		var target *cdp.Node
		for _, d := range documents(root) {
			if d.path.Equal(path) {
				target = d.node
				break
			}
		}
		if target == nil {
			return fmt.Errorf("框架不存在: %s", path)
		}
		obj, err := dom.ResolveNode().WithNodeID(target.NodeID).Do(ctx)
		if err != nil {
			return err
		}
		res, exc, err := runtime.CallFunctionOn(decl).
			WithObjectID(obj.ObjectID).
			WithReturnByValue(true).
			Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return fmt.Errorf("脚本异常: %s", exc.Text)
		}
		if res != nil {
			value = string(res.Value)
		}
		return nil
	})
	return value, err
}

const clickScript = `function(sel, text) {
	const norm = (s) => (s || "").replace(/\u00a0/g, " ").replace(/\s+/g, " ").trim();
	for (const el of this.querySelectorAll(sel)) {
		if (text && norm(el.textContent) !== norm(text)) continue;
		try { el.scrollIntoView({block: "center"}); } catch (e) {}
		el.click();
		return true;
	}
	return false;
}`

func (cc *chromedpCrawler) PerformClick(ctx context.Context, path types.FramePath, selector, text string) (bool, error) {
	v, err := cc.callOnDocument(ctx, path, clickScript, selector, text)
	if err != nil {
		return false, fmt.Errorf("点击失败: %w", err)
	}
	return v == "true", nil
}

func (cc *chromedpCrawler) NavigateFrame(ctx context.Context, path types.FramePath, url string) error {
	if path.IsRoot() {
		return cc.run(ctx, func(ctx context.Context) error {
			return chromedp.Navigate(url).Do(ctx)
		})
	}
	_, err := cc.callOnDocument(ctx, path, `function(u) { this.defaultView.location.replace(u); return true; }`, url)
	return err
}

func (cc *chromedpCrawler) Reload(ctx context.Context) error {
	return cc.run(ctx, func(ctx context.Context) error {
		return chromedp.Reload().Do(ctx)
	})
}
