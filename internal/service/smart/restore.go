package smart

import (
	"context"
	"fmt"
	"net/url"

	"github.com/LouYuanbo1/smartbills/internal/errs"
	"github.com/LouYuanbo1/smartbills/internal/infra/crawler/types"
	"go.uber.org/zap"
)

// listingURL 把配置的列表地址解析为绝对地址,相对路径以顶层页面为基准
func (s *smartService) listingURL(rootURL string) string {
	ref, err := url.Parse(s.opts.ListingURL)
	if err != nil || ref.IsAbs() {
		return s.opts.ListingURL
	}
	base, err := url.Parse(rootURL)
	if err != nil || !base.IsAbs() {
		return s.opts.ListingURL
	}
	return base.ResolveReference(ref).String()
}

func (s *smartService) linkSelector(abs string) string {
	sel := fmt.Sprintf(`a[href="%s"]`, cssEscape(s.opts.ListingURL))
	if abs != s.opts.ListingURL {
		sel += fmt.Sprintf(`, a[href="%s"]`, cssEscape(abs))
	}
	return sel
}

// frames 重新枚举当前的框架,失败时返回 nil
func (s *smartService) frames(ctx context.Context) []*types.Frame {
	frames, err := s.crawler.Frames(ctx)
	if err != nil {
		s.logger.Warn("枚举框架失败", zap.Error(err))
		return nil
	}
	return frames
}

// Restore 点击凭证后列表被替换时,依次尝试:祖先框架直接跳转、点击框架内的列表链接、顶层跳转
func (s *smartService) Restore(ctx context.Context, detailPath types.FramePath) (*Listing, error) {
	rootURL := ""
	if frames := s.frames(ctx); len(frames) > 0 {
		rootURL = frames[0].URL
	}
	target := s.listingURL(rootURL)

	chain := Chain[context.Context, *Listing]{
		{Name: "ancestors", Recognize: func(ctx context.Context) (*Listing, bool) {
			return s.restoreViaAncestors(ctx, detailPath, target)
		}},
		{Name: "link", Recognize: func(ctx context.Context) (*Listing, bool) {
			return s.restoreViaLink(ctx, target)
		}},
		{Name: "top", Recognize: func(ctx context.Context) (*Listing, bool) {
			return s.restoreViaTop(ctx, target)
		}},
	}
	l, name, ok := chain.Apply(ctx)
	if !ok {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errs.New(errs.CodeRestorationFailure, "无法恢复账单列表").WithDetails("detail frame %s", detailPath)
	}
	s.logger.Info("列表已恢复", zap.String("strategy", name), zap.String("path", l.Frame.Path.String()))
	return l, nil
}

func hasFrame(frames []*types.Frame, p types.FramePath) bool {
	for _, f := range frames {
		if f.Path.Equal(p) {
			return true
		}
	}
	return false
}

func (s *smartService) restoreViaAncestors(ctx context.Context, detailPath types.FramePath, target string) (*Listing, bool) {
	for _, p := range detailPath.Ancestors() {
		if !hasFrame(s.frames(ctx), p) {
			continue
		}
		s.logger.Debug("恢复列表:框架跳转", zap.String("path", p.String()))
		if err := s.crawler.NavigateFrame(ctx, p, target); err != nil {
			s.logger.Debug("框架跳转失败", zap.String("path", p.String()), zap.Error(err))
			continue
		}
		if l, err := s.WaitListing(ctx, s.opts.RestoreWait); err == nil {
			return l, true
		}
	}
	return nil, false
}

func (s *smartService) restoreViaLink(ctx context.Context, target string) (*Listing, bool) {
	sel := s.linkSelector(target)
	for _, f := range s.frames(ctx) {
		if f.Path.IsRoot() {
			continue
		}
		doc, err := parseHTML(f.HTML)
		if err != nil || doc.Find(sel).Length() == 0 {
			continue
		}
		s.logger.Debug("恢复列表:点击链接", zap.String("path", f.Path.String()))
		clicked, err := s.crawler.PerformClick(ctx, f.Path, sel, "")
		if err != nil || !clicked {
			s.logger.Debug("点击列表链接失败", zap.String("path", f.Path.String()), zap.Error(err))
			continue
		}
		if l, err := s.WaitListing(ctx, s.opts.RestoreWait); err == nil {
			return l, true
		}
	}
	return nil, false
}

func (s *smartService) restoreViaTop(ctx context.Context, target string) (*Listing, bool) {
	s.logger.Warn("恢复列表:顶层跳转", zap.String("url", target))
	if err := s.crawler.NavigateFrame(ctx, types.FramePath{}, target); err != nil {
		s.logger.Warn("顶层跳转失败", zap.Error(err))
	}
	l, err := s.WaitListing(ctx, s.opts.RestoreRootWait)
	if err != nil {
		return nil, false
	}
	return l, true
}
