package exchange

import "time"

// Candle 代表单根K线。
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Quote 为一次实时价格查询的结果。
type Quote struct {
	Symbol    string
	Price     float64
	Timestamp time.Time
}

// OrderResult 描述一次下单的结果。纸面模式下由本地撮合生成。
type OrderResult struct {
	ID     string
	Symbol string
	Side   string
	Price  float64
	Amount float64
	Paper  bool
}
