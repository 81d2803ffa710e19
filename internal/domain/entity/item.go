package entity

// Trade 是一组 数量/均价/金额
type Trade struct {
	Qty    float64 `json:"qty"`
	Avg    float64 `json:"avg"`
	Amount float64 `json:"amount"`
}

// LineItem 是明细页中一只证券的买入/卖出/净额
type LineItem struct {
	Scrip string `json:"scrip"`
	Buy   Trade  `json:"buy"`
	Sell  Trade  `json:"sell"`
	Net   Trade  `json:"net"`
}

type DetailKind string

const (
	DetailScreenFour DetailKind = "screen4"
	DetailSummary    DetailKind = "summary"
)
