package indicator

import (
	"math"
	"time"

	"scalp-bot/internal/exchange"
)

// Series 把K线按列展开，talib 的入参直接取对应切片。
type Series struct {
	Timestamps []time.Time
	Open       []float64
	High       []float64
	Low        []float64
	Close      []float64
	Volume     []float64
}

// NewSeries 由升序K线构建 Series。时间统一转为 UTC。
func NewSeries(candles []exchange.Candle) Series {
	s := Series{
		Timestamps: make([]time.Time, 0, len(candles)),
		Open:       make([]float64, 0, len(candles)),
		High:       make([]float64, 0, len(candles)),
		Low:        make([]float64, 0, len(candles)),
		Close:      make([]float64, 0, len(candles)),
		Volume:     make([]float64, 0, len(candles)),
	}
	for _, c := range candles {
		s.Timestamps = append(s.Timestamps, c.Timestamp.UTC())
		s.Open = append(s.Open, c.Open)
		s.High = append(s.High, c.High)
		s.Low = append(s.Low, c.Low)
		s.Close = append(s.Close, c.Close)
		s.Volume = append(s.Volume, c.Volume)
	}
	return s
}

// Len 返回序列长度。
func (s Series) Len() int {
	return len(s.Close)
}

// Lookback 返回距末尾 n 根之前的值，越界时返回 NaN。
func Lookback(values []float64, n int) float64 {
	if n < 0 || len(values) <= n {
		return math.NaN()
	}
	return values[len(values)-1-n]
}

// Last 返回序列最后一个值，空序列返回 NaN。
func Last(values []float64) float64 {
	return Lookback(values, 0)
}

// Prev 返回序列倒数第二个值，不足两个元素时返回 NaN。
func Prev(values []float64) float64 {
	return Lookback(values, 1)
}

// SliceTail 复制序列末尾 n 个值，不足时复制全部。
func SliceTail(values []float64, n int) []float64 {
	if n <= 0 || len(values) == 0 {
		return nil
	}
	if n > len(values) {
		n = len(values)
	}
	return append([]float64(nil), values[len(values)-n:]...)
}

// SafeDivide 除法保护，除数为0时返回0。
func SafeDivide(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
