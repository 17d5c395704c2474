package exchange

import (
	"context"
	"fmt"
	"strings"
	"time"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderClient 负责下单。纸面模式本地即时成交，实盘模式提交市价单并
// 复用 Client 的重试与错误归一化。
type OrderClient struct {
	client *Client
	paper  bool
	logger *zap.Logger
}

// NewOrderClient 创建下单客户端。
func NewOrderClient(client *Client, paper bool, logger *zap.Logger) *OrderClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderClient{
		client: client,
		paper:  paper,
		logger: logger,
	}
}

// Paper 返回是否处于纸面模式。
func (o *OrderClient) Paper() bool {
	return o.paper
}

// MarketOrder 提交市价单。fillPrice 为纸面模式下的模拟成交价（已含
// 滑点与价差），实盘模式下仅作日志参考。
func (o *OrderClient) MarketOrder(ctx context.Context, symbol, side string, amount, fillPrice float64) (OrderResult, error) {
	if amount <= 0 {
		return OrderResult{}, fmt.Errorf("exchange: 下单数量必须为正: %f", amount)
	}
	side = strings.ToLower(side)
	if side != "buy" && side != "sell" {
		return OrderResult{}, fmt.Errorf("exchange: 下单方向非法: %q", side)
	}

	if o.paper {
		res := OrderResult{
			ID:     "paper-" + uuid.NewString(),
			Symbol: symbol,
			Side:   side,
			Price:  fillPrice,
			Amount: amount,
			Paper:  true,
		}
		o.logger.Debug("纸面成交",
			zap.String("symbol", symbol),
			zap.String("side", side),
			zap.Float64("price", fillPrice),
			zap.Float64("amount", amount),
		)
		return res, nil
	}

	start := time.Now()

	var order ccxt.Order
	err := o.client.callWithRetry(ctx, fmt.Sprintf("create_order_%s_%s", symbol, side), func() error {
		if err := o.client.ensureMarketsLoaded(ctx); err != nil {
			return err
		}

		result, err := o.client.exchange.CreateOrder(symbol, "market", side, amount)
		if err != nil {
			return err
		}

		order = result
		return nil
	})
	if err != nil {
		return OrderResult{}, err
	}

	res := OrderResult{
		ID:     derefString(order.Id),
		Symbol: symbol,
		Side:   side,
		Price:  derefFloat(order.Average),
		Amount: derefFloat(order.Filled),
	}
	if res.Price <= 0 {
		res.Price = fillPrice
	}
	if res.Amount <= 0 {
		res.Amount = amount
	}

	o.logger.Info("市价单已成交",
		zap.String("symbol", symbol),
		zap.String("side", side),
		zap.String("order_id", res.ID),
		zap.Float64("price", res.Price),
		zap.Float64("amount", res.Amount),
		zap.Duration("latency", time.Since(start)),
	)

	return res, nil
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
