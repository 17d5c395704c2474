package ai

import (
	"fmt"
	"math"
	"strings"
)

// Verdict 表示大模型对一个开仓信号的复核结论。
type Verdict struct {
	Approve         bool    `json:"approve"`
	ConfidenceDelta float64 `json:"confidence_delta"`
	Reason          string  `json:"reason"`
}

// Validate 校验结论字段合法性。
func (v Verdict) Validate() error {
	if math.Abs(v.ConfidenceDelta) > 20 {
		return fmt.Errorf("confidence_delta 必须位于 [-20,20]，当前为 %f", v.ConfidenceDelta)
	}
	if strings.TrimSpace(v.Reason) == "" {
		return fmt.Errorf("reason 不能为空")
	}
	return nil
}
