package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"scalp-bot/internal/compound"
	"scalp-bot/internal/config"
	"scalp-bot/internal/position"
	"scalp-bot/internal/risk"
	"scalp-bot/internal/stats"
	"scalp-bot/internal/store"
)

type dashboardDeps struct {
	cfg        *config.Config
	gate       *risk.Gate
	ledger     *position.Manager
	trades     *store.TradeStore
	compounder *compound.Manager
	tracker    *risk.DailyTracker
}

// startDashboard 启动只读监控接口。接口只暴露状态，不提供任何操作。
func startDashboard(ctx context.Context, deps dashboardDeps, port int, logger *zap.Logger) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		state := deps.gate.State()
		writeJSON(w, logger, map[string]interface{}{
			"capital":            state.Capital,
			"initial_capital":    state.InitialCapital,
			"drawdown_pct":       state.DrawdownPct,
			"daily_trades":       state.DailyTrades,
			"daily_pnl":          state.DailyPnL,
			"consecutive_losses": state.ConsecutiveLosses,
			"paused_until":       state.PausedUntil,
			"open_positions":     deps.ledger.List(),
		})
	})

	mux.HandleFunc("/trades", func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if qs := r.URL.Query().Get("limit"); qs != "" {
			if v, err := strconv.Atoi(qs); err == nil && v > 0 {
				if v > 1000 {
					v = 1000
				}
				limit = v
			}
		}
		trades, err := deps.trades.Recent(r.Context(), limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, logger, trades)
	})

	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		trades, err := deps.trades.All(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, logger, stats.Summarize(trades, deps.cfg.Trading.InitialCapital))
	})

	mux.HandleFunc("/performance", func(w http.ResponseWriter, r *http.Request) {
		trades, err := deps.trades.All(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, logger, stats.ByStrategy(trades, deps.cfg.Trading.InitialCapital))
	})

	mux.HandleFunc("/compounding", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, deps.compounder.State())
	})

	mux.HandleFunc("/daily", func(w http.ResponseWriter, r *http.Request) {
		history, err := deps.tracker.History(r.Context(), 30)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, logger, history)
	})

	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
			logger.Warn("关闭监控服务失败", zap.Error(err))
		}
	}()

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("监控服务异常", zap.Error(err))
		}
	}()

	logger.Info("监控接口已启动", zap.String("addr", addr))
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Warn("写入监控响应失败", zap.Error(err))
	}
}
