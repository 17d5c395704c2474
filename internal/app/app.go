package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"scalp-bot/internal/ai"
	"scalp-bot/internal/compound"
	"scalp-bot/internal/config"
	"scalp-bot/internal/cost"
	"scalp-bot/internal/exchange"
	"scalp-bot/internal/exit"
	"scalp-bot/internal/indicator"
	"scalp-bot/internal/metrics"
	"scalp-bot/internal/position"
	"scalp-bot/internal/risk"
	"scalp-bot/internal/store"
	"scalp-bot/internal/strategy"
)

// App 聚合核心依赖并驱动系统生命周期。
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
}

// New 创建 App 实例。
func New(cfg *config.Config, logger *zap.Logger, store *store.Store) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
		store:  store,
	}
}

// Run 装配全部组件并阻塞运行，ctx 取消后优雅退出。
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("交易系统已初始化",
		zap.String("environment", a.cfg.App.Environment),
		zap.String("exchange", a.cfg.Exchange.Name),
		zap.Strings("symbols", a.cfg.Trading.Symbols),
		zap.Bool("paper", a.cfg.Trading.Paper),
	)

	client, err := exchange.NewClient(a.cfg.Exchange, a.logger)
	if err != nil {
		return err
	}

	trades, err := store.NewTradeStore(a.store)
	if err != nil {
		return err
	}

	tracker, err := risk.NewDailyTracker(a.store)
	if err != nil {
		return err
	}

	gate := risk.NewGate(a.cfg.Risk, a.cfg.Trading.InitialCapital, tracker, a.logger)
	ledger := position.NewManager(a.logger)
	costModel := cost.NewCalculator(a.cfg.Trading, a.cfg.Costs, a.logger)
	compounder := compound.New(a.cfg.Compounding, a.logger)
	indicators := indicator.NewCalculator()
	strategies := strategy.Enabled(a.cfg.Strategies)
	if len(strategies) == 0 {
		return errors.New("app: 未启用任何策略")
	}

	var validator *ai.Validator
	if a.cfg.AI.Enabled {
		validator, err = ai.NewValidator(a.cfg.AI, a.logger)
		if err != nil {
			return fmt.Errorf("app: 初始化信号复核失败: %w", err)
		}
	}

	orders := exchange.NewOrderClient(client, a.cfg.Trading.Paper, a.logger)
	prices := newPriceSource(client, a.logger)

	monitor := exit.NewMonitor(prices, a.cfg.Trading.PriceCheckInterval, a.logger)
	dispatcher := exit.NewDispatcher(exit.Deps{
		Ledger:         ledger,
		Monitor:        monitor,
		Calculator:     costModel,
		Gate:           gate,
		Compounder:     compounder,
		Trades:         trades,
		Orders:         orders,
		PartialEnabled: a.cfg.Trading.PartialProfit,
		PartialPct:     a.cfg.Trading.PartialClosePct,
	}, a.logger)

	orch := &orchestrator{
		cfg:        a.cfg,
		logger:     a.logger,
		client:     client,
		orders:     orders,
		prices:     prices,
		indicators: indicators,
		costModel:  costModel,
		strategies: strategies,
		validator:  validator,
		gate:       gate,
		ledger:     ledger,
		monitor:    monitor,
		dispatcher: dispatcher,
		trades:     trades,
	}

	if err := orch.restore(ctx); err != nil {
		return fmt.Errorf("app: 恢复持仓状态失败: %w", err)
	}

	metrics.Capital.Set(gate.Capital())

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error { return monitor.Run(groupCtx) })
	group.Go(func() error { return dispatcher.Run(groupCtx) })
	group.Go(func() error { return orch.Run(groupCtx) })

	if a.cfg.Dashboard.Enabled {
		startDashboard(groupCtx, dashboardDeps{
			cfg:        a.cfg,
			gate:       gate,
			ledger:     ledger,
			trades:     trades,
			compounder: compounder,
			tracker:    tracker,
		}, a.cfg.Dashboard.Port, a.logger)
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("系统异常退出: %w", err)
	}

	a.logger.Info("系统收到退出信号，已停止")
	return nil
}
