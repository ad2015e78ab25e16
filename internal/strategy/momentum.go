// internal/strategy/momentum.go
package strategy

import (
	"context"
	"time"

	"github.com/mhatey/PumpFun-Pump-Portal/internal/engine"
	"github.com/mhatey/PumpFun-Pump-Portal/internal/events"
	"github.com/mhatey/PumpFun-Pump-Portal/internal/risk"
	"go.uber.org/zap"
)

// MomentumConfig tunes the entry-on-momentum strategy.
type MomentumConfig struct {
	Enabled        bool
	Window         time.Duration
	MinTradeCount  int
	MinVolumeSol   float64
	PriceChangePct float64
	Cooldown       time.Duration
	DefaultBuySol  float64
	StopLossPct    float64
	TakeProfitPct  float64
}

// MomentumOptions is a partial reconfiguration; nil fields keep the current
// value.
type MomentumOptions struct {
	Enabled        *bool
	MinTradeCount  *int
	MinVolumeSol   *float64
	PriceChangePct *float64
	Cooldown       *time.Duration
	DefaultBuySol  *float64
	StopLossPct    *float64
	TakeProfitPct  *float64
}

const (
	defaultMomentumWindow   = 5 * time.Minute
	defaultMomentumCooldown = 10 * time.Minute
)

// MomentumStrategy buys into tokens whose recent trade flow shows momentum:
// enough trades, enough SOL volume and a large enough price move inside the
// analysis window. Every trade event is ingested into the per-token window
// first; eligibility itself is a pure read over that state.
type MomentumStrategy struct {
	cfg      MomentumConfig
	window   *Aggregator
	risk     *risk.Manager
	defaults engine.TradeDefaults
	logger   *zap.Logger
}

func NewMomentumStrategy(cfg MomentumConfig, riskMgr *risk.Manager, defaults engine.TradeDefaults, logger *zap.Logger) *MomentumStrategy {
	if cfg.Window <= 0 {
		cfg.Window = defaultMomentumWindow
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = defaultMomentumCooldown
	}
	return &MomentumStrategy{
		cfg:      cfg,
		window:   NewAggregator(cfg.Window),
		risk:     riskMgr,
		defaults: defaults,
		logger:   logger.Named("momentum_strategy"),
	}
}

func (s *MomentumStrategy) Name() string  { return "momentum" }
func (s *MomentumStrategy) Enabled() bool { return s.cfg.Enabled }

// Configure merges the supplied options into the current configuration.
// The analysis window is fixed at construction because the aggregator's
// retention is derived from it.
func (s *MomentumStrategy) Configure(opts MomentumOptions) {
	if opts.Enabled != nil {
		s.cfg.Enabled = *opts.Enabled
	}
	if opts.MinTradeCount != nil {
		s.cfg.MinTradeCount = *opts.MinTradeCount
	}
	if opts.MinVolumeSol != nil {
		s.cfg.MinVolumeSol = *opts.MinVolumeSol
	}
	if opts.PriceChangePct != nil {
		s.cfg.PriceChangePct = *opts.PriceChangePct
	}
	if opts.Cooldown != nil {
		s.cfg.Cooldown = *opts.Cooldown
	}
	if opts.DefaultBuySol != nil {
		s.cfg.DefaultBuySol = *opts.DefaultBuySol
	}
	if opts.StopLossPct != nil {
		s.cfg.StopLossPct = *opts.StopLossPct
	}
	if opts.TakeProfitPct != nil {
		s.cfg.TakeProfitPct = *opts.TakeProfitPct
	}
}

// ShouldTrade ingests the trade into the token's window, then checks the
// momentum conditions. On acceptance the cooldown is stamped immediately,
// before sizing or execution, so back-to-back qualifying trades cannot
// double-trigger while the first proposal is in flight.
func (s *MomentumStrategy) ShouldTrade(_ context.Context, ev events.Event) bool {
	trade, ok := ev.(events.TokenTradeEvent)
	if !ok {
		return false
	}

	s.window.Ingest(trade)

	if s.window.InCooldown(trade.Mint, s.cfg.Cooldown) {
		return false
	}
	stats := s.window.Stats(trade.Mint)
	if stats.TradeCount < s.cfg.MinTradeCount {
		return false
	}
	if stats.VolumeSol < s.cfg.MinVolumeSol {
		return false
	}
	if stats.PriceChangePct < s.cfg.PriceChangePct {
		return false
	}

	s.window.MarkTriggered(trade.Mint)
	s.logger.Info("Momentum detected",
		zap.String("mint", trade.Mint),
		zap.String("symbol", s.window.Symbol(trade.Mint)),
		zap.Int("trades", stats.TradeCount),
		zap.Float64("volume_sol", stats.VolumeSol),
		zap.Float64("price_change_pct", stats.PriceChangePct))
	return true
}

// GetTrade mirrors the new-token sizing: optimal size with a configured
// fallback, validated through the risk gate.
func (s *MomentumStrategy) GetTrade(ctx context.Context, ev events.Event) (*engine.TradeProposal, error) {
	trade, ok := ev.(events.TokenTradeEvent)
	if !ok {
		return nil, nil
	}

	amount := s.risk.OptimalTradeSize(ctx, trade.Mint)
	if amount == 0 {
		amount = s.cfg.DefaultBuySol
	}

	check := s.risk.CheckTrade(ctx, events.ActionBuy, trade.Mint, amount)
	if !check.Allowed {
		s.logger.Info("Buy rejected by risk gate",
			zap.String("mint", trade.Mint),
			zap.Float64("amount_sol", amount),
			zap.String("reason", check.Reason))
		return nil, nil
	}

	symbol := trade.Symbol
	if symbol == "" {
		symbol = s.window.Symbol(trade.Mint)
	}

	return &engine.TradeProposal{
		Action:           events.ActionBuy,
		Mint:             trade.Mint,
		Amount:           amount,
		DenominatedInSol: true,
		SlippagePercent:  s.defaults.SlippagePercent,
		PriorityFeeSol:   s.defaults.PriorityFeeSol,
		Pool:             s.defaults.Pool,
		SkipPreflight:    s.defaults.SkipPreflight,
		RefPrice:         trade.Price,
		TokenSymbol:      symbol,
		StopLossPct:      s.cfg.StopLossPct,
		TakeProfitPct:    s.cfg.TakeProfitPct,
	}, nil
}
