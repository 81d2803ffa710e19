package smart

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/LouYuanbo1/smartbills/internal/domain/entity"
	"github.com/LouYuanbo1/smartbills/internal/errs"
	"github.com/LouYuanbo1/smartbills/internal/infra/crawler/types"
	"github.com/LouYuanbo1/smartbills/internal/infra/poll"
	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// DetailView 是点击凭证后出现的明细视图
type DetailView struct {
	Kind   entity.DetailKind
	Path   types.FramePath
	URL    string
	Header string

	layout layoutMatch
}

type layoutMatch struct {
	kind entity.DetailKind
	// screen4 为明细行,summary 为表头行
	rows *goquery.Selection
}

func screenFourRows(doc *goquery.Document) *goquery.Selection {
	return doc.Find(screenFourRowSelector).FilterFunction(func(_ int, tr *goquery.Selection) bool {
		return strings.Contains(tr.AttrOr("onclick", ""), screenFourMarker)
	})
}

func screenFourLayout(doc *goquery.Document) (layoutMatch, bool) {
	rows := screenFourRows(doc)
	return layoutMatch{kind: entity.DetailScreenFour, rows: rows}, rows.Length() > 0
}

func isSummaryHeader(tr *goquery.Selection) bool {
	t := strings.ToLower(strings.Join(strings.Fields(clean(innerText(tr))), ""))
	for _, w := range summaryWords {
		if !strings.Contains(t, w) {
			return false
		}
	}
	return true
}

// summaryHeaderRow 返回最内层的表头行:外层布局行也会包含这些文字
func summaryHeaderRow(doc *goquery.Document) *goquery.Selection {
	var header *goquery.Selection
	doc.Find("tr").EachWithBreak(func(_ int, tr *goquery.Selection) bool {
		if !isSummaryHeader(tr) {
			return true
		}
		header = tr
		inner := tr.Find("tr").FilterFunction(func(_ int, s *goquery.Selection) bool {
			return isSummaryHeader(s)
		})
		if inner.Length() > 0 {
			header = inner.Last()
		}
		return false
	})
	return header
}

func summaryLayout(doc *goquery.Document) (layoutMatch, bool) {
	header := summaryHeaderRow(doc)
	if header == nil {
		return layoutMatch{}, false
	}
	return layoutMatch{kind: entity.DetailSummary, rows: header}, true
}

// headerMatches 没有期望时直接通过;否则要求表头同时包含市场类型与结算编号
func (m *matcher) headerMatches(doc *goquery.Document, exp *entity.Expectation) (string, bool) {
	hdr := doc.Find(m.headerSelector).First()
	text := collapse(innerText(hdr))
	if exp == nil {
		return text, true
	}
	if hdr.Length() == 0 {
		return "", false
	}
	if exp.MarketType != "" && !strings.Contains(text, "Market Type : "+exp.MarketType) {
		return text, false
	}
	if exp.SettlementNumber != "" && !strings.Contains(text, "Settlement Number : "+exp.SettlementNumber) {
		return text, false
	}
	return text, true
}

// matchDetail 表头校验先于版式识别,旧的明细视图不会被误认
func (m *matcher) matchDetail(frames []*types.Frame, exp *entity.Expectation) (*DetailView, bool) {
	for _, f := range frames {
		doc, err := parseHTML(f.HTML)
		if err != nil {
			continue
		}
		header, ok := m.headerMatches(doc, exp)
		if !ok {
			continue
		}
		if lm, _, ok := m.layouts.Apply(doc); ok {
			return &DetailView{Kind: lm.kind, Path: f.Path, URL: f.URL, Header: header, layout: lm}, true
		}
	}
	return nil, false
}

// WaitDetail 轮询整棵框架树,直到出现与期望一致的明细视图
func (s *smartService) WaitDetail(ctx context.Context, exp *entity.Expectation) (*DetailView, error) {
	v, err := poll.Until(ctx, s.opts.DetailWait, s.opts.DetailPoll, func(ctx context.Context) (*DetailView, bool) {
		frames, err := s.crawler.Frames(ctx)
		if err != nil {
			s.logger.Debug("枚举框架失败,稍后重试", zap.Error(err))
			return nil, false
		}
		return s.m.matchDetail(frames, exp)
	})
	if errors.Is(err, poll.ErrTimeout) {
		return nil, errs.New(errs.CodeDetailNotFound, "未找到匹配的明细视图").WithDetails("%s", describe(exp))
	}
	if err != nil {
		return nil, err
	}
	s.logger.Debug("找到明细视图",
		zap.String("kind", string(v.Kind)),
		zap.String("path", v.Path.String()),
		zap.String("url", v.URL))
	return v, nil
}

func describe(exp *entity.Expectation) string {
	if exp == nil {
		return "no header expectation"
	}
	return fmt.Sprintf("market type %q, settlement %q", exp.MarketType, exp.SettlementNumber)
}
