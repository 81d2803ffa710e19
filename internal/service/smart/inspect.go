package smart

import (
	"github.com/LouYuanbo1/smartbills/internal/domain/entity"
	"github.com/LouYuanbo1/smartbills/internal/infra/crawler/types"
	"github.com/LouYuanbo1/smartbills/internal/service/smart/param"
)

// Report 是对一组框架快照的离线识别结果
type Report struct {
	Frames     int
	Listing    *types.Frame
	Records    []entity.BillRecord
	Duplicates []string
	Detail     *DetailView
	Items      []entity.LineItem
}

// Inspect 不点击、不等待,只用与导出相同的规则识别列表与明细视图,
// 明细视图不做表头校验
func Inspect(frames []*types.Frame, opts *param.Options) (*Report, error) {
	m, err := newMatcher(opts)
	if err != nil {
		return nil, err
	}
	r := &Report{Frames: len(frames)}
	if l := m.findListing(frames); l != nil {
		r.Listing = l.Frame
		r.Records, r.Duplicates = m.buildIndex(l)
	}
	if v, ok := m.matchDetail(frames, nil); ok {
		r.Detail = v
		r.Items = ParseItems(v)
	}
	return r, nil
}
