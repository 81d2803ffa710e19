package collector

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/LouYuanbo1/smartbills/internal/config"
	"github.com/LouYuanbo1/smartbills/internal/infra/crawler/types"
	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

const frameSelector = "frame, iframe"

type collyCollector struct {
	colly    *colly.Collector
	maxDepth int
	logger   *zap.Logger
}

// InitSnapshotCollector 支持 http(s) 与 file:// 地址,保存到本地的页面可以离线检查
func InitSnapshotCollector(cfg *config.Config, logger *zap.Logger) SnapshotCollector {
	opts := []colly.CollectorOption{
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
	}
	if cfg.Inspect.UserAgent != "" {
		opts = append(opts, colly.UserAgent(cfg.Inspect.UserAgent))
	}
	c := colly.NewCollector(opts...)

	t := &http.Transport{}
	t.RegisterProtocol("file", http.NewFileTransport(http.Dir("/")))
	c.WithTransport(t)

	maxDepth := cfg.Inspect.MaxFrameDepth
	if maxDepth <= 0 {
		maxDepth = 6
	}
	return &collyCollector{colly: c, maxDepth: maxDepth, logger: logger}
}

// ToURL 把本地路径转成 file:// 地址,其他输入原样返回
func ToURL(target string) (string, error) {
	if strings.Contains(target, "://") {
		return target, nil
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		return "", err
	}
	return "file://" + filepath.ToSlash(abs), nil
}

func (cc *collyCollector) fetch(ctx context.Context, rawURL string) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}
	var (
		body     []byte
		finalURL = rawURL
		fetchErr error
	)
	c := cc.colly.Clone()
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
		finalURL = r.Request.URL.String()
	})
	c.OnError(func(r *colly.Response, err error) {
		fetchErr = err
	})
	if err := c.Visit(rawURL); err != nil {
		return "", "", fmt.Errorf("访问URL失败: %w", err)
	}
	c.Wait()
	if fetchErr != nil {
		return "", "", fmt.Errorf("访问URL失败: %w", fetchErr)
	}
	return string(body), finalURL, nil
}

func (cc *collyCollector) Collect(ctx context.Context, rawURL string) ([]*types.Frame, error) {
	var out []*types.Frame
	var walk func(u string, path types.FramePath, parent *types.Frame) error
	walk = func(u string, path types.FramePath, parent *types.Frame) error {
		html, finalURL, err := cc.fetch(ctx, u)
		if err != nil {
			return err
		}
		f := &types.Frame{Path: path, URL: finalURL, HTML: html, Parent: parent}
		out = append(out, f)
		if len(path) >= cc.maxDepth {
			return nil
		}

		doc, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte(html)))
		if err != nil {
			return nil
		}
		base, err := url.Parse(finalURL)
		if err != nil {
			return nil
		}
		doc.Find(frameSelector).Each(func(i int, s *goquery.Selection) {
			src := strings.TrimSpace(s.AttrOr("src", ""))
			if src == "" || strings.HasPrefix(src, "about:") || strings.HasPrefix(src, "javascript:") {
				return
			}
			ref, err := url.Parse(src)
			if err != nil {
				return
			}
			child := base.ResolveReference(ref).String()
			if err := walk(child, path.Child(i), f); err != nil {
				cc.logger.Debug("跳过无法读取的框架", zap.String("path", path.Child(i).String()), zap.String("url", child), zap.Error(err))
			}
		})
		return nil
	}
	if err := walk(rawURL, types.FramePath{}, nil); err != nil {
		return nil, err
	}
	return out, nil
}
