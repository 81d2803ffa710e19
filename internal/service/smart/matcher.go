package smart

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/LouYuanbo1/smartbills/internal/service/smart/param"
	"github.com/PuerkitoBio/goquery"
)

const (
	screenFourRowSelector = `tr[onclick*="ShowDetails"]`
	screenFourMarker      = "ScreenScripSummaryForm"
)

var (
	summaryWords = []string{"security", "bought", "sold", "net"}
	totalPattern = regexp.MustCompile(`(?i)Total`)
)

// matcher 持有从配置编译出的页面识别规则,本身无状态
type matcher struct {
	marker         *regexp.Regexp
	triggerSel     string
	triggerArgs    *regexp.Regexp
	headerSelector string

	listingRows Chain[*goquery.Document, *goquery.Selection]
	layouts     Chain[*goquery.Document, layoutMatch]
}

func newMatcher(opts *param.Options) (*matcher, error) {
	marker, err := regexp.Compile("(?i)" + opts.RecordMarker)
	if err != nil {
		return nil, fmt.Errorf("record_marker 不是合法的正则: %w", err)
	}
	prefix := opts.TriggerPrefix
	m := &matcher{
		marker:         marker,
		triggerSel:     fmt.Sprintf(`td[onclick^="%s"]`, cssEscape(prefix)),
		triggerArgs:    regexp.MustCompile(regexp.QuoteMeta(prefix) + `\('([^']+)','([^']+)','([^']+)','([^']+)','([^']+)'\)`),
		headerSelector: opts.HeaderSelector,
	}
	m.listingRows = Chain[*goquery.Document, *goquery.Selection]{
		{Name: "trigger-row", Recognize: m.triggerRows},
	}
	m.layouts = Chain[*goquery.Document, layoutMatch]{
		{Name: "screen4", Recognize: screenFourLayout},
		{Name: "summary", Recognize: summaryLayout},
	}
	return m, nil
}

func cssEscape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

func parseHTML(src string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(src))
}

// triggerRows 选出文本匹配记录标记、且自身带有选择触发单元格的行
func (m *matcher) triggerRows(doc *goquery.Document) (*goquery.Selection, bool) {
	rows := doc.Find("tr").FilterFunction(func(_ int, tr *goquery.Selection) bool {
		return tr.ChildrenFiltered(m.triggerSel).Length() > 0 && m.marker.MatchString(clean(innerText(tr)))
	})
	return rows, rows.Length() > 0
}
