package entity

// MatchArgs 是从凭证单元格 onclick 中解析出的五个参数
// CallSJTransaction('NSE_CASH','FT017322','M ','2024062','01/04/2024')
type MatchArgs struct {
	CompanyCode      string `json:"companyCode"`
	Client           string `json:"client"`
	MarketType       string `json:"marketType"`
	SettlementNumber string `json:"settlementNumber"`
	SettlementDate   string `json:"settlementDate"`
}

// BillRecord 是列表中的一行账单
type BillRecord struct {
	Index     int        `json:"index"`
	TradeDate string     `json:"tradeDate"`
	ValueDate string     `json:"valueDate"`
	VoucherNo string     `json:"voucherNo"`
	Segment   string     `json:"segment"`
	Narration string     `json:"narration"`
	Debit     float64    `json:"debit"`
	Credit    float64    `json:"credit"`
	Args      *MatchArgs `json:"args,omitempty"`
}

// Expectation 返回明细页表头应满足的条件;onclick 无法解析时返回 nil,不核对表头
func (b *BillRecord) Expectation() *Expectation {
	if b.Args == nil {
		return nil
	}
	return &Expectation{MarketType: b.Args.MarketType, SettlementNumber: b.Args.SettlementNumber}
}

type Expectation struct {
	MarketType       string
	SettlementNumber string
}
