package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"scalp-bot/internal/config"
)

// Validator 把策略信号交给大模型复核。复核只能否决或微调置信度，
// 不能生成新信号。调用失败时上层按放行处理。
type Validator struct {
	cfg    config.AIConfig
	logger *zap.Logger
	sdk    *openai.Client
}

// NewValidator 使用给定配置创建信号复核器。
func NewValidator(cfg config.AIConfig, logger *zap.Logger) (*Validator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("ai api_key 不能为空")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{
		Timeout: cfg.Timeout + 5*time.Second,
	}

	return &Validator{
		cfg:    cfg,
		logger: logger,
		sdk:    openai.NewClientWithConfig(clientCfg),
	}, nil
}

// Review 复核一个开仓信号。
func (v *Validator) Review(ctx context.Context, req ReviewRequest) (Verdict, error) {
	if v.cfg.Model == "" {
		return Verdict{}, errors.New("ai model 不能为空")
	}

	prompt, err := buildPrompt(req)
	if err != nil {
		return Verdict{}, err
	}

	response, err := v.sdk.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: v.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: 0,
	})
	if err != nil {
		v.logger.Error("调用模型复核失败", zap.Error(err))
		return Verdict{}, fmt.Errorf("调用模型复核失败: %w", err)
	}

	if len(response.Choices) == 0 {
		return Verdict{}, errors.New("模型返回结果为空")
	}

	rawContent := strings.TrimSpace(response.Choices[0].Message.Content)
	if rawContent == "" {
		return Verdict{}, errors.New("模型返回内容为空")
	}

	verdict, err := parseVerdict(rawContent)
	if err != nil {
		v.logger.Error("解析复核结论失败",
			zap.Error(err),
			zap.String("raw_content", rawContent),
		)
		return Verdict{}, err
	}

	if err := verdict.Validate(); err != nil {
		return Verdict{}, err
	}

	v.logger.Info("信号复核完成",
		zap.String("symbol", req.Symbol),
		zap.String("strategy", req.Strategy),
		zap.Bool("approve", verdict.Approve),
		zap.Float64("confidence_delta", verdict.ConfidenceDelta),
	)

	return verdict, nil
}

func parseVerdict(content string) (Verdict, error) {
	jsonPayload, err := extractJSON(content)
	if err != nil {
		return Verdict{}, err
	}

	var verdict Verdict
	if err = json.Unmarshal(jsonPayload, &verdict); err != nil {
		return Verdict{}, fmt.Errorf("解析复核JSON失败: %w", err)
	}

	return verdict, nil
}

func extractJSON(content string) ([]byte, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")

	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("模型输出未找到有效JSON: %s", content)
	}

	return []byte(content[start : end+1]), nil
}
