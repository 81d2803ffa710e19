package smart

import (
	"strings"

	"github.com/LouYuanbo1/smartbills/internal/domain/entity"
	"github.com/PuerkitoBio/goquery"
)

// cellAt 取第 i 个单元格的文本,不存在时为空
func cellAt(tds *goquery.Selection, i int) string {
	if i >= tds.Length() {
		return ""
	}
	return cellText(tds.Eq(i))
}

// parseArgs 解析 CallSJTransaction('co','client','mkt','settle','sdate'),不匹配时返回 nil
func (m *matcher) parseArgs(onclick string) *entity.MatchArgs {
	sub := m.triggerArgs.FindStringSubmatch(onclick)
	if sub == nil {
		return nil
	}
	return &entity.MatchArgs{
		CompanyCode:      sub[1],
		Client:           sub[2],
		MarketType:       strings.TrimSpace(sub[3]),
		SettlementNumber: sub[4],
		SettlementDate:   sub[5],
	}
}

// buildIndex 按文档顺序生成账单列表;重复的凭证号只保留第一次出现,返回被丢弃的凭证号
func (m *matcher) buildIndex(l *Listing) ([]entity.BillRecord, []string) {
	var (
		out   []entity.BillRecord
		dupes []string
		seen  = map[string]bool{}
	)
	l.Rows.Each(func(_ int, tr *goquery.Selection) {
		tds := tr.ChildrenFiltered("td")
		trigger := tr.ChildrenFiltered(m.triggerSel).First()
		voucher := cellText(trigger)
		if seen[voucher] {
			dupes = append(dupes, voucher)
			return
		}
		seen[voucher] = true

		out = append(out, entity.BillRecord{
			Index:     len(out),
			TradeDate: cellAt(tds, 0),
			ValueDate: cellAt(tds, 1),
			VoucherNo: voucher,
			Segment:   cellAt(tds, 4),
			Narration: cellAt(tds, 5),
			Debit:     ParseAmount(cellAt(tds, 7)),
			Credit:    ParseAmount(cellAt(tds, 8)),
			Args:      m.parseArgs(trigger.AttrOr("onclick", "")),
		})
	})
	return out, dupes
}

// hasTrigger 检查当前列表中是否还有该凭证的选择单元格
func (m *matcher) hasTrigger(l *Listing, voucherNo string) bool {
	found := false
	l.Doc.Find(m.triggerSel).EachWithBreak(func(_ int, td *goquery.Selection) bool {
		found = cellText(td) == voucherNo
		return !found
	})
	return found
}
