package app

import (
	"context"

	"go.uber.org/zap"

	"scalp-bot/internal/exchange"
)

// priceSource 把交易所客户端适配为监控器的价格来源。失败只降级为
// 跳过本轮，不向上传播。
type priceSource struct {
	client *exchange.Client
	logger *zap.Logger
}

func newPriceSource(client *exchange.Client, logger *zap.Logger) *priceSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &priceSource{client: client, logger: logger}
}

func (p *priceSource) CurrentPrice(ctx context.Context, symbol string) (float64, bool) {
	quote, err := p.client.FetchPrice(ctx, symbol)
	if err != nil {
		p.logger.Debug("获取实时价格失败", zap.String("symbol", symbol), zap.Error(err))
		return 0, false
	}
	return quote.Price, true
}
