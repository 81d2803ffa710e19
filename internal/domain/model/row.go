package model

import (
	"fmt"
	"strconv"

	"github.com/LouYuanbo1/smartbills/internal/domain/entity"
)

const RowTypeItem = "ITEM"

// Columns 是导出文件和持久化元组共用的列顺序
var Columns = []string{
	"tradeDate", "valueDate", "voucherNo", "segment", "scrip",
	"buyQty", "buyAvg", "buyAmt", "sellQty", "sellAvg", "sellAmt", "netQty", "netAvg", "netAmt",
	"debit", "credit", "narration", "rowType",
}

// PackedRow 是一条账单与其一条明细的组合
type PackedRow struct {
	TradeDate string
	ValueDate string
	VoucherNo string
	Segment   string
	Scrip     string
	Buy       entity.Trade
	Sell      entity.Trade
	Net       entity.Trade
	Debit     float64
	Credit    float64
	Narration string
	RowType   string
}

func Pack(bill *entity.BillRecord, item entity.LineItem) PackedRow {
	return PackedRow{
		TradeDate: bill.TradeDate,
		ValueDate: bill.ValueDate,
		VoucherNo: bill.VoucherNo,
		Segment:   bill.Segment,
		Scrip:     item.Scrip,
		Buy:       item.Buy,
		Sell:      item.Sell,
		Net:       item.Net,
		Debit:     bill.Debit,
		Credit:    bill.Credit,
		Narration: bill.Narration,
		RowType:   RowTypeItem,
	}
}

// FormatAmount 金额的规范文本形式
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Tuple 按 Columns 的顺序输出
func (r PackedRow) Tuple() []string {
	return []string{
		r.TradeDate, r.ValueDate, r.VoucherNo, r.Segment, r.Scrip,
		FormatAmount(r.Buy.Qty), FormatAmount(r.Buy.Avg), FormatAmount(r.Buy.Amount),
		FormatAmount(r.Sell.Qty), FormatAmount(r.Sell.Avg), FormatAmount(r.Sell.Amount),
		FormatAmount(r.Net.Qty), FormatAmount(r.Net.Avg), FormatAmount(r.Net.Amount),
		FormatAmount(r.Debit), FormatAmount(r.Credit), r.Narration, r.RowType,
	}
}

// RowFromTuple 是 Tuple 的逆操作
func RowFromTuple(t []string) (PackedRow, error) {
	if len(t) != len(Columns) {
		return PackedRow{}, fmt.Errorf("tuple has %d fields, want %d", len(t), len(Columns))
	}
	nums := make([]float64, 11)
	for i := range nums {
		v, err := strconv.ParseFloat(t[5+i], 64)
		if err != nil {
			return PackedRow{}, fmt.Errorf("column %s: %w", Columns[5+i], err)
		}
		nums[i] = v
	}
	return PackedRow{
		TradeDate: t[0],
		ValueDate: t[1],
		VoucherNo: t[2],
		Segment:   t[3],
		Scrip:     t[4],
		Buy:       entity.Trade{Qty: nums[0], Avg: nums[1], Amount: nums[2]},
		Sell:      entity.Trade{Qty: nums[3], Avg: nums[4], Amount: nums[5]},
		Net:       entity.Trade{Qty: nums[6], Avg: nums[7], Amount: nums[8]},
		Debit:     nums[9],
		Credit:    nums[10],
		Narration: t[16],
		RowType:   t[17],
	}, nil
}
