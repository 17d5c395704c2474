package ai

import (
	"encoding/json"
	"fmt"
	"math"

	"scalp-bot/internal/indicator"
	"scalp-bot/internal/position"
)

// ReviewRequest 为一次信号复核的输入。
type ReviewRequest struct {
	Symbol     string
	Strategy   string
	Side       position.Side
	Confidence float64
	Reason     string
	Price      float64
	Regime     indicator.Regime
	Snapshot   indicator.Snapshot
}

const promptTemplate = `你是一名加密货币短线交易的风控复核员。系统的规则策略给出了一个开仓信号，
你的任务是基于市场上下文判断该信号是否应该执行。你只能复核，不能改方向、不能给出新信号。

信号与市场上下文（JSON）：
%s

要求：
1. 若指标间存在明显矛盾（如动量信号与市场状态相反），应否决。
2. confidence_delta 表示对信号置信度的修正，取值范围 [-20, 20]，无修正填 0。
3. 严格输出如下 JSON，不要输出其他任何内容：
{"approve": true, "confidence_delta": 0, "reason": "简要说明"}`

func buildPrompt(req ReviewRequest) (string, error) {
	payload := map[string]interface{}{
		"symbol":     req.Symbol,
		"strategy":   req.Strategy,
		"side":       string(req.Side),
		"confidence": req.Confidence,
		"reason":     req.Reason,
		"price":      req.Price,
		"regime":     string(req.Regime),
		"indicators": map[string]float64{
			"rsi":          finite(req.Snapshot.RSI),
			"ema9":         finite(req.Snapshot.EMA9),
			"ema21":        finite(req.Snapshot.EMA21),
			"macd_hist":    finite(req.Snapshot.MACDHist),
			"atr_pct":      finite(req.Snapshot.ATRPct),
			"volume_ratio": finite(req.Snapshot.VolumeRatio),
			"momentum_3":   finite(req.Snapshot.Momentum3),
			"momentum_10":  finite(req.Snapshot.Momentum10),
		},
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("序列化复核上下文失败: %w", err)
	}

	return fmt.Sprintf(promptTemplate, string(data)), nil
}

// JSON 序列化不接受 NaN，未就绪的指标值归零。
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
