package smart

import (
	"github.com/LouYuanbo1/smartbills/internal/domain/entity"
	"github.com/PuerkitoBio/goquery"
)

const minItemCells = 11

// ParseItems 按固定列位置解析明细行,单元格不足的行直接跳过
func ParseItems(v *DetailView) []entity.LineItem {
	var rows []*goquery.Selection
	switch v.Kind {
	case entity.DetailScreenFour:
		v.layout.rows.Each(func(_ int, tr *goquery.Selection) {
			rows = append(rows, tr)
		})
	case entity.DetailSummary:
		rows = summaryRows(v.layout.rows)
	}

	var out []entity.LineItem
	for _, tr := range rows {
		if item, ok := decodeItem(tr); ok {
			out = append(out, item)
		}
	}
	return out
}

// summaryRows 从表头所在表格开始,依次读取紧随其后的兄弟表格,遇到合计行停止
func summaryRows(header *goquery.Selection) []*goquery.Selection {
	var rows []*goquery.Selection
	collect := func(tbl *goquery.Selection) (stop bool) {
		tbl.Find("tr").EachWithBreak(func(_ int, tr *goquery.Selection) bool {
			if tr.ChildrenFiltered("th").Length() > 0 && totalPattern.MatchString(innerText(tr)) {
				stop = true
				return false
			}
			if tr.ChildrenFiltered("td").Length() >= minItemCells {
				rows = append(rows, tr)
			}
			return true
		})
		return stop
	}

	tbl := header.Closest("table")
	if tbl.Length() == 0 || collect(tbl) {
		return rows
	}
	for sib := tbl.Next(); sib.Is("table"); sib = sib.Next() {
		if collect(sib) {
			break
		}
	}
	return rows
}

func decodeItem(tr *goquery.Selection) (entity.LineItem, bool) {
	td := tr.ChildrenFiltered("td")
	if td.Length() < minItemCells {
		return entity.LineItem{}, false
	}
	num := func(i int) float64 { return ParseAmount(innerText(td.Eq(i))) }
	return entity.LineItem{
		Scrip: clean(innerText(td.Eq(1))),
		Buy:   entity.Trade{Qty: num(2), Avg: num(3), Amount: num(4)},
		Sell:  entity.Trade{Qty: num(5), Avg: num(6), Amount: num(7)},
		Net:   entity.Trade{Qty: num(8), Avg: num(9), Amount: num(10)},
	}, true
}
