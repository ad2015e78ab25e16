// internal/strategy/exit.go
package strategy

import (
	"context"
	"sync"
	"time"

	"github.com/mhatey/PumpFun-Pump-Portal/internal/engine"
	"github.com/mhatey/PumpFun-Pump-Portal/internal/events"
	"github.com/mhatey/PumpFun-Pump-Portal/internal/ledger"
	"github.com/mhatey/PumpFun-Pump-Portal/internal/risk"
	"go.uber.org/zap"
)

// Book is the slice of the position ledger the exit strategy consumes.
type Book interface {
	OpenPosition(mint string) (ledger.Position, bool)
	UpdateUnrealizedPnl(prices map[string]float64)
}

// ExitConfig tunes the threshold-based exit strategy.
type ExitConfig struct {
	Enabled       bool
	CheckInterval time.Duration // minimum spacing between evaluations per token
}

// ExitOptions is a partial reconfiguration; nil fields keep the current
// value.
type ExitOptions struct {
	Enabled       *bool
	CheckInterval *time.Duration
}

const (
	defaultExitCheckInterval = 10 * time.Second
	priceSweepInterval       = 5 * time.Minute
	priceRetention           = time.Hour
)

type priceRecord struct {
	price float64
	seen  time.Time
}

// ExitStrategy watches the trade stream for open positions whose price has
// crossed the recorded stop-loss or take-profit threshold and proposes a
// full sell. The sell is expressed as a percentage of live holdings, not the
// ledger's recorded amount; those can diverge and reconciling them is the
// executor's job.
type ExitStrategy struct {
	cfg      ExitConfig
	book     Book
	risk     *risk.Manager
	defaults engine.TradeDefaults
	logger   *zap.Logger

	mu         sync.Mutex
	lastPrices map[string]priceRecord
	lastCheck  map[string]time.Time
	lastSweep  time.Time

	now func() time.Time
}

func NewExitStrategy(cfg ExitConfig, book Book, riskMgr *risk.Manager, defaults engine.TradeDefaults, logger *zap.Logger) *ExitStrategy {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = defaultExitCheckInterval
	}
	return &ExitStrategy{
		cfg:        cfg,
		book:       book,
		risk:       riskMgr,
		defaults:   defaults,
		logger:     logger.Named("exit_strategy"),
		lastPrices: make(map[string]priceRecord),
		lastCheck:  make(map[string]time.Time),
		now:        time.Now,
	}
}

func (s *ExitStrategy) Name() string  { return "exit" }
func (s *ExitStrategy) Enabled() bool { return s.cfg.Enabled }

// Configure merges the supplied options into the current configuration.
func (s *ExitStrategy) Configure(opts ExitOptions) {
	if opts.Enabled != nil {
		s.cfg.Enabled = *opts.Enabled
	}
	if opts.CheckInterval != nil {
		s.cfg.CheckInterval = *opts.CheckInterval
	}
}

// ShouldTrade records the latest observed price for the token, then checks
// whether an open position's stop-loss or take-profit has been crossed. A
// per-token rate limiter keeps the same token from being re-evaluated on
// every tick.
func (s *ExitStrategy) ShouldTrade(_ context.Context, ev events.Event) bool {
	trade, ok := ev.(events.TokenTradeEvent)
	if !ok {
		return false
	}

	s.mu.Lock()
	s.lastPrices[trade.Mint] = priceRecord{price: trade.Price, seen: s.now()}
	s.sweepLocked()
	s.mu.Unlock()

	pos, open := s.book.OpenPosition(trade.Mint)
	if !open {
		return false
	}
	if !s.allowCheck(trade.Mint) {
		return false
	}

	if trade.Price <= pos.StopLoss {
		s.logger.Info("Stop-loss crossed",
			zap.String("mint", trade.Mint),
			zap.Float64("price", trade.Price),
			zap.Float64("stop_loss", pos.StopLoss))
		return true
	}
	if trade.Price >= pos.TakeProfit {
		s.logger.Info("Take-profit crossed",
			zap.String("mint", trade.Mint),
			zap.Float64("price", trade.Price),
			zap.Float64("take_profit", pos.TakeProfit))
		return true
	}
	return false
}

// GetTrade builds a sell proposal for 100% of live holdings after the
// token-holding risk check.
func (s *ExitStrategy) GetTrade(ctx context.Context, ev events.Event) (*engine.TradeProposal, error) {
	trade, ok := ev.(events.TokenTradeEvent)
	if !ok {
		return nil, nil
	}

	check := s.risk.CheckTrade(ctx, events.ActionSell, trade.Mint, 0)
	if !check.Allowed {
		s.logger.Info("Sell rejected by risk gate",
			zap.String("mint", trade.Mint),
			zap.String("reason", check.Reason))
		return nil, nil
	}

	return &engine.TradeProposal{
		Action:           events.ActionSell,
		Mint:             trade.Mint,
		AmountPercent:    "100%",
		DenominatedInSol: false,
		SlippagePercent:  s.defaults.SlippagePercent,
		PriorityFeeSol:   s.defaults.PriorityFeeSol,
		Pool:             s.defaults.Pool,
		SkipPreflight:    s.defaults.SkipPreflight,
		RefPrice:         trade.Price,
		TokenSymbol:      trade.Symbol,
	}, nil
}

// RefreshUnrealizedPnl pushes the latest-known-price map into the ledger.
// It is not event-triggered here; the orchestrating caller invokes it once
// per processed event cycle.
func (s *ExitStrategy) RefreshUnrealizedPnl() {
	s.mu.Lock()
	prices := make(map[string]float64, len(s.lastPrices))
	for mint, rec := range s.lastPrices {
		prices[mint] = rec.price
	}
	s.mu.Unlock()

	s.book.UpdateUnrealizedPnl(prices)
}

// Forget drops the cached price and rate-limiter state for a mint. The
// orchestrating caller invokes it when a position fully closes or the mint's
// trade subscription is dropped, so these maps track live subscriptions only.
func (s *ExitStrategy) Forget(mint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lastPrices, mint)
	delete(s.lastCheck, mint)
}

func (s *ExitStrategy) sweepLocked() {
	now := s.now()
	if now.Sub(s.lastSweep) < priceSweepInterval {
		return
	}
	s.lastSweep = now

	cutoff := now.Add(-priceRetention)
	for mint, rec := range s.lastPrices {
		if rec.seen.Before(cutoff) {
			delete(s.lastPrices, mint)
			delete(s.lastCheck, mint)
		}
	}
	for mint, last := range s.lastCheck {
		if last.Before(cutoff) {
			delete(s.lastCheck, mint)
		}
	}
}

func (s *ExitStrategy) allowCheck(mint string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if last, ok := s.lastCheck[mint]; ok && now.Sub(last) < s.cfg.CheckInterval {
		return false
	}
	s.lastCheck[mint] = now
	return true
}
