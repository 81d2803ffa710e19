package smart

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/LouYuanbo1/smartbills/internal/domain/entity"
	"github.com/LouYuanbo1/smartbills/internal/infra/crawler/types"
	"github.com/LouYuanbo1/smartbills/internal/infra/persistence"
	"github.com/LouYuanbo1/smartbills/internal/infra/persistence/memory"
	"github.com/LouYuanbo1/smartbills/internal/service/smart/param"
	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	rootURL    = "https://bo.ftconline.in/WebClient2425/Main.cfm"
	listingRel = "/WebClient2425/Ledger/SmartReport.cfm"
	listingAbs = "https://bo.ftconline.in/WebClient2425/Ledger/SmartReport.cfm"
	detailURL  = "https://bo.ftconline.in/WebClient2425/Ledger/SJTransaction.cfm"
)

var (
	menuPath    = types.FramePath{0}
	mainPath    = types.FramePath{1}
	contentPath = types.FramePath{1, 0}
)

type fixtureItem struct {
	scrip string
	qty   string
	avg   string
	amt   string
}

type fixtureBill struct {
	voucher string
	settle  string
	kind    entity.DetailKind
	items   []fixtureItem
	// onclick 不符合五参数格式
	badTrigger bool
	// 明细页表头中的结算编号,为空时与 settle 相同
	shownSettle string
}

func item(scrip, qty, avg, amt string) fixtureItem {
	return fixtureItem{scrip: scrip, qty: qty, avg: avg, amt: amt}
}

func listingRow(b fixtureBill) string {
	onclick := fmt.Sprintf("CallSJTransaction('NSE_CASH','FT017322','M ','%s','01/04/2024')", b.settle)
	if b.badTrigger {
		onclick = "CallSJTransaction('NSE_CASH','FT017322')"
	}
	return fmt.Sprintf(`<tr><td>01/04/2024</td><td>03/04/2024</td><td onclick="%s">%s</td><td>S</td>`+
		`<td>NSE_CASH</td><td>Bill No %s</td><td>-</td><td>1,234.50</td><td>0.00 CR</td></tr>`,
		onclick, b.voucher, b.voucher)
}

func listingHTML(bills []fixtureBill) string {
	var sb strings.Builder
	sb.WriteString(`<html><body><table><tr><th>Trade Date</th><th>Value Date</th><th>Voucher</th><th></th>` +
		`<th>Segment</th><th>Narration</th><th></th><th>Debit</th><th>Credit</th></tr>`)
	for _, b := range bills {
		sb.WriteString(listingRow(b))
	}
	sb.WriteString(`</table></body></html>`)
	return sb.String()
}

func itemCells(it fixtureItem) string {
	return fmt.Sprintf(`<td>1</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td>`+
		`<td>0</td><td>0</td><td>0</td><td>%s</td><td>%s</td><td>(%s)</td>`,
		it.scrip, it.qty, it.avg, it.amt, it.qty, it.avg, it.amt)
}

func headerTable(settle string) string {
	return fmt.Sprintf(`<table id="TableHeader"><tr><td>Market Type : M</td>`+
		`<td>Settlement Number : %s</td></tr></table>`, settle)
}

func detailHTML(b fixtureBill) string {
	settle := b.settle
	if b.shownSettle != "" {
		settle = b.shownSettle
	}
	var sb strings.Builder
	sb.WriteString(`<html><body>`)
	sb.WriteString(headerTable(settle))
	if b.kind == entity.DetailSummary {
		sb.WriteString(`<table><tr><td>#</td><td>Security</td><td>Bought</td><td>Sold</td><td>Net</td></tr></table>`)
		for _, it := range b.items {
			sb.WriteString(`<table><tr>` + itemCells(it) + `</tr></table>`)
		}
		sb.WriteString(`<table><tr><th>Total</th><td>0</td></tr></table>`)
		sb.WriteString(`<table><tr>` + itemCells(item("AFTER_TOTAL", "1", "1", "1")) + `</tr></table>`)
	} else {
		sb.WriteString(`<table>`)
		for _, it := range b.items {
			sb.WriteString(fmt.Sprintf(`<tr onclick="ShowDetails('ScreenScripSummaryForm','%s')">%s</tr>`, it.scrip, itemCells(it)))
		}
		sb.WriteString(`</table>`)
	}
	sb.WriteString(`</body></html>`)
	return sb.String()
}

const (
	menuWithLink = `<html><body><a href="` + listingRel + `">Smart</a><a href="/WebClient2425/Ledger/Ledger.cfm">Ledger</a></body></html>`
	menuNoLink   = `<html><body><a href="/WebClient2425/Ledger/Ledger.cfm">Ledger</a></body></html>`
)

type fakeFrame struct {
	url      string
	html     string
	children []*fakeFrame
}

// fakeHost 模拟一个框架集页面:top > [menu, main > [content]],列表在 content 中
type fakeHost struct {
	mu sync.Mutex

	root    *fakeFrame
	listing string
	bills   map[string]fixtureBill
	menu    string

	// 拒绝跳转的框架
	navBlocked map[string]bool
	// 为 true 时点击菜单链接不会恢复列表
	linkBroken bool

	clicks  []string
	navs    []string
	reloads int

	// 在页面响应点击之前调用,不持有锁
	beforeClick func(text string)
	onReload    func()
	// 框架跳转时调用,持有锁
	onNav func(p types.FramePath)
	// 返回非空时用它替换点击后显示的明细页
	detailFor func(b fixtureBill) string
}

func newFakeHost(bills []fixtureBill) *fakeHost {
	h := &fakeHost{
		listing:    listingHTML(bills),
		bills:      map[string]fixtureBill{},
		menu:       menuWithLink,
		navBlocked: map[string]bool{},
	}
	for _, b := range bills {
		h.bills[b.voucher] = b
	}
	h.resetLayout()
	return h
}

func (h *fakeHost) resetLayout() {
	h.root = &fakeFrame{url: rootURL, html: `<html><body>top</body></html>`, children: []*fakeFrame{
		{url: rootURL + "#menu", html: h.menu},
		{url: rootURL + "#main", html: `<html><body>main</body></html>`, children: []*fakeFrame{
			{url: listingAbs, html: h.listing},
		}},
	}}
}

func (h *fakeHost) frameAt(p types.FramePath) *fakeFrame {
	f := h.root
	for _, i := range p {
		if f == nil || i >= len(f.children) {
			return nil
		}
		f = f.children[i]
	}
	return f
}

func (h *fakeHost) setContent(url, html string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	f := h.frameAt(contentPath)
	f.url, f.html = url, html
}

func (h *fakeHost) setListing(html string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listing = html
}

func (h *fakeHost) clickCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clicks)
}

func (h *fakeHost) InitAndNavigate(url string) error { return nil }

func (h *fakeHost) Frames(ctx context.Context) ([]*types.Frame, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []*types.Frame
	var walk func(f *fakeFrame, p types.FramePath, parent *types.Frame)
	walk = func(f *fakeFrame, p types.FramePath, parent *types.Frame) {
		tf := &types.Frame{Path: p, URL: f.url, HTML: f.html, Parent: parent}
		out = append(out, tf)
		for i, c := range f.children {
			walk(c, p.Child(i), tf)
		}
	}
	walk(h.root, types.FramePath{}, nil)
	return out, nil
}

func (h *fakeHost) PerformClick(ctx context.Context, p types.FramePath, selector, text string) (bool, error) {
	h.mu.Lock()
	f := h.frameAt(p)
	if f == nil {
		h.mu.Unlock()
		return false, fmt.Errorf("no frame at %s", p)
	}
	doc, err := parseHTML(f.html)
	h.mu.Unlock()
	if err != nil {
		return false, err
	}
	found := doc.Find(selector).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return text == "" || cellText(s) == text
	}).Length() > 0
	if !found {
		return false, nil
	}

	if strings.HasPrefix(selector, "a[") {
		h.mu.Lock()
		h.navs = append(h.navs, "link "+p.String())
		broken := h.linkBroken
		h.mu.Unlock()
		if !broken {
			h.setContent(listingAbs, h.listing)
		}
		return true, nil
	}

	if h.beforeClick != nil {
		h.beforeClick(text)
	}
	h.mu.Lock()
	h.clicks = append(h.clicks, text)
	b := h.bills[text]
	render := detailHTML
	if h.detailFor != nil {
		render = h.detailFor
	}
	// 明细页在被点击的框架中打开,替换掉列表
	f = h.frameAt(p)
	f.url, f.html = detailURL, render(b)
	h.mu.Unlock()
	return true, nil
}

func (h *fakeHost) NavigateFrame(ctx context.Context, p types.FramePath, url string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.navs = append(h.navs, "nav "+p.String())
	if h.onNav != nil {
		h.onNav(p)
	}
	if h.navBlocked[p.String()] {
		return fmt.Errorf("navigation blocked at %s", p)
	}
	if url != listingAbs {
		return fmt.Errorf("unexpected url %s", url)
	}
	switch {
	case p.IsRoot():
		h.resetLayout()
	case p.Equal(mainPath), p.Equal(contentPath):
		f := h.frameAt(contentPath)
		f.url, f.html = listingAbs, h.listing
	default:
		return fmt.Errorf("frame %s cannot host the listing", p)
	}
	return nil
}

func (h *fakeHost) Reload(ctx context.Context) error {
	h.mu.Lock()
	h.reloads++
	h.resetLayout()
	hook := h.onReload
	h.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (h *fakeHost) Close() {}

func testOptions(t *testing.T) *param.Options {
	t.Helper()
	return &param.Options{
		ListingURL:       listingRel,
		RecordMarker:     "Bill",
		TriggerPrefix:    "CallSJTransaction",
		HeaderSelector:   "#TableHeader",
		PollInterval:     time.Millisecond,
		DetailPoll:       time.Millisecond,
		ListingWait:      200 * time.Millisecond,
		DetailWait:       100 * time.Millisecond,
		RestoreWait:      50 * time.Millisecond,
		RestoreRootWait:  200 * time.Millisecond,
		InterRecordDelay: 0,
		AutoResume:       true,
		OutputDir:        t.TempDir(),
		FilePrefix:       "flattrade-smart-bills",
	}
}

func newTestService(t *testing.T, h *fakeHost, store persistence.Store, opts *param.Options) *smartService {
	t.Helper()
	if store == nil {
		store = memory.New()
	}
	if opts == nil {
		opts = testOptions(t)
	}
	svc, err := InitSmartService(h, store, opts, zap.NewNop())
	require.NoError(t, err)
	return svc.(*smartService)
}

func abcBills() []fixtureBill {
	return []fixtureBill{
		{voucher: "A", settle: "2024061", items: []fixtureItem{item("INFY", "10", "1,500.00", "15,000.00")}},
		{voucher: "B", settle: "2024062", kind: entity.DetailSummary, items: []fixtureItem{
			item("TCS", "2", "3,900.50", "7,801.00"),
			item("HDFCBANK", "5", "1,600.00", "8,000.00"),
		}},
		{voucher: "C", settle: "2024063", items: []fixtureItem{item("ITC", "100", "450.25", "45,025.00")}},
	}
}
