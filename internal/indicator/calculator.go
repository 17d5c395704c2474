package indicator

import (
	"fmt"
	"math"
	"sync"

	talib "github.com/markcheno/go-talib"

	"scalp-bot/internal/exchange"
)

// minCandles 为指标计算所需的最少K线数，受限于最慢的回看窗口。
const minCandles = 30

// Snapshot 为一次指标计算的汇总，策略直接消费这组扁平字段。
type Snapshot struct {
	Symbol      string
	RSI         float64
	EMA9        float64
	EMA21       float64
	MACD        float64
	MACDSignal  float64
	MACDHist    float64
	BBUpper     float64
	BBMiddle    float64
	BBLower     float64
	ATRPct      float64
	VolumeRatio float64
	Momentum3   float64
	Momentum10  float64
	Close       float64
	PrevClose   float64
}

type cacheEntry struct {
	key      string
	snapshot Snapshot
}

// Calculator 提供技术指标计算并带有简单缓存，键为交易对。
type Calculator struct {
	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewCalculator 创建 Calculator。
func NewCalculator() *Calculator {
	return &Calculator{
		cache: make(map[string]cacheEntry),
	}
}

// Compute 依据给定K线计算策略所需的指标快照。
func (c *Calculator) Compute(symbol string, candles []exchange.Candle) (Snapshot, error) {
	if len(candles) < minCandles {
		return Snapshot{}, fmt.Errorf("计算指标失败: K线不足 %d 根(实际 %d)", minCandles, len(candles))
	}

	series := NewSeries(candles)
	cacheKey := fmt.Sprintf("%s:%d:%d", symbol, series.Len(), series.Timestamps[series.Len()-1].Unix())

	c.mu.Lock()
	if entry, ok := c.cache[symbol]; ok && entry.key == cacheKey {
		c.mu.Unlock()
		return entry.snapshot, nil
	}
	c.mu.Unlock()

	snapshot := c.calculate(symbol, series)

	c.mu.Lock()
	c.cache[symbol] = cacheEntry{key: cacheKey, snapshot: snapshot}
	c.mu.Unlock()

	return snapshot, nil
}

func (c *Calculator) calculate(symbol string, series Series) Snapshot {
	closePrices := series.Close
	highs := series.High
	lows := series.Low
	volumes := series.Volume

	ema9 := talib.Ema(closePrices, 9)
	ema21 := talib.Ema(closePrices, 21)

	macd, macdSignal, macdHist := talib.Macd(closePrices, 12, 26, 9)

	bbUpper, bbMiddle, bbLower := talib.BBands(closePrices, 20, 2, 2, talib.EMA)

	rsi := talib.Rsi(closePrices, 14)

	atr := talib.Atr(highs, lows, closePrices, 14)

	lastClose := Last(closePrices)
	prevClose := Prev(closePrices)

	volumeAvg20 := average(SliceTail(volumes, 20))
	volumeRatio := SafeDivide(Last(volumes), volumeAvg20)

	atrPct := SafeDivide(Last(atr), lastClose) * 100

	return Snapshot{
		Symbol:      symbol,
		RSI:         Last(rsi),
		EMA9:        Last(ema9),
		EMA21:       Last(ema21),
		MACD:        Last(macd),
		MACDSignal:  Last(macdSignal),
		MACDHist:    Last(macdHist),
		BBUpper:     Last(bbUpper),
		BBMiddle:    Last(bbMiddle),
		BBLower:     Last(bbLower),
		ATRPct:      atrPct,
		VolumeRatio: volumeRatio,
		Momentum3:   momentum(closePrices, 3),
		Momentum10:  momentum(closePrices, 10),
		Close:       lastClose,
		PrevClose:   prevClose,
	}
}

// momentum 返回最近 n 根K线的涨跌幅（百分比）。
func momentum(closePrices []float64, n int) float64 {
	last := Last(closePrices)
	base := Lookback(closePrices, n)
	if math.IsNaN(base) || base == 0 {
		return 0
	}
	return (last/base - 1) * 100
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
