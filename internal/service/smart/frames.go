package smart

import (
	"context"
	"errors"
	"time"

	"github.com/LouYuanbo1/smartbills/internal/errs"
	"github.com/LouYuanbo1/smartbills/internal/infra/crawler/types"
	"github.com/LouYuanbo1/smartbills/internal/infra/poll"
	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// Listing 是一次定位得到的列表框架快照,不能跨越等待复用
type Listing struct {
	Frame *types.Frame
	Doc   *goquery.Document
	Rows  *goquery.Selection
}

// findListing 依次检查每个框架,返回第一个包含账单行的框架
func (m *matcher) findListing(frames []*types.Frame) *Listing {
	for _, f := range frames {
		doc, err := parseHTML(f.HTML)
		if err != nil {
			continue
		}
		if rows, _, ok := m.listingRows.Apply(doc); ok {
			return &Listing{Frame: f, Doc: doc, Rows: rows}
		}
	}
	return nil
}

// FindListing 只读,找不到时返回 nil, nil
func (s *smartService) FindListing(ctx context.Context) (*Listing, error) {
	frames, err := s.crawler.Frames(ctx)
	if err != nil {
		return nil, err
	}
	return s.m.findListing(frames), nil
}

// WaitListing 按 PollInterval 轮询直到列表出现
func (s *smartService) WaitListing(ctx context.Context, timeout time.Duration) (*Listing, error) {
	l, err := poll.Until(ctx, timeout, s.opts.PollInterval, func(ctx context.Context) (*Listing, bool) {
		l, err := s.FindListing(ctx)
		if err != nil {
			s.logger.Debug("枚举框架失败,稍后重试", zap.Error(err))
			return nil, false
		}
		return l, l != nil
	})
	if errors.Is(err, poll.ErrTimeout) {
		return nil, errs.New(errs.CodeListingWaitTimeout, "等待账单列表超时").WithDetails("timeout=%s", timeout)
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

// relocate 每条记录开始前重新定位列表,之前的文档可能已经被替换
func (s *smartService) relocate(ctx context.Context) (*Listing, error) {
	l, err := s.FindListing(ctx)
	if err == nil && l != nil {
		return l, nil
	}
	return s.WaitListing(ctx, s.opts.ListingWait)
}
