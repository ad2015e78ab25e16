// internal/strategy/newtoken.go
package strategy

import (
	"context"
	"strings"
	"time"

	"github.com/mhatey/PumpFun-Pump-Portal/internal/engine"
	"github.com/mhatey/PumpFun-Pump-Portal/internal/events"
	"github.com/mhatey/PumpFun-Pump-Portal/internal/risk"
	"go.uber.org/zap"
)

// NewTokenConfig tunes the entry-on-new-token strategy. Zero values are
// replaced with defaults at construction.
type NewTokenConfig struct {
	Enabled         bool
	MaxTokenAge     time.Duration
	DefaultBuySol   float64
	StopLossPct     float64
	TakeProfitPct   float64
	BlockedCreators []string
	BlockedPhrases  []string
	MaxSeenTokens   int
}

// NewTokenOptions is a partial reconfiguration; nil fields keep the current
// value.
type NewTokenOptions struct {
	Enabled         *bool
	MaxTokenAge     *time.Duration
	DefaultBuySol   *float64
	StopLossPct     *float64
	TakeProfitPct   *float64
	BlockedCreators []string
	BlockedPhrases  []string
}

const (
	defaultMaxTokenAge   = 30 * time.Second
	defaultSeenTokensCap = 10000
)

// NewTokenStrategy proposes a buy the first time a freshly created token
// passes the age, creator and name filters. It fires at most once per mint:
// accepted tokens are marked processed immediately, and the processed set is
// capacity-bounded so it cannot grow forever.
type NewTokenStrategy struct {
	cfg      NewTokenConfig
	seen     *seenSet
	risk     *risk.Manager
	defaults engine.TradeDefaults
	logger   *zap.Logger

	now func() time.Time
}

func NewNewTokenStrategy(cfg NewTokenConfig, riskMgr *risk.Manager, defaults engine.TradeDefaults, logger *zap.Logger) *NewTokenStrategy {
	if cfg.MaxTokenAge <= 0 {
		cfg.MaxTokenAge = defaultMaxTokenAge
	}
	if cfg.MaxSeenTokens <= 0 {
		cfg.MaxSeenTokens = defaultSeenTokensCap
	}
	return &NewTokenStrategy{
		cfg:      cfg,
		seen:     newSeenSet(cfg.MaxSeenTokens),
		risk:     riskMgr,
		defaults: defaults,
		logger:   logger.Named("new_token_strategy"),
		now:      time.Now,
	}
}

func (s *NewTokenStrategy) Name() string  { return "new-token" }
func (s *NewTokenStrategy) Enabled() bool { return s.cfg.Enabled }

// Configure merges the supplied options into the current configuration.
func (s *NewTokenStrategy) Configure(opts NewTokenOptions) {
	if opts.Enabled != nil {
		s.cfg.Enabled = *opts.Enabled
	}
	if opts.MaxTokenAge != nil {
		s.cfg.MaxTokenAge = *opts.MaxTokenAge
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
	if opts.BlockedCreators != nil {
		s.cfg.BlockedCreators = opts.BlockedCreators
	}
	if opts.BlockedPhrases != nil {
		s.cfg.BlockedPhrases = opts.BlockedPhrases
	}
}

// ShouldTrade accepts token-creation events for unseen tokens that pass the
// age, creator and name filters. Accepted mints are marked processed before
// returning, so the strategy cannot emit twice for the same token.
func (s *NewTokenStrategy) ShouldTrade(_ context.Context, ev events.Event) bool {
	token, ok := ev.(events.NewTokenEvent)
	if !ok {
		return false
	}
	if s.seen.Contains(token.Mint) {
		return false
	}

	if age := s.now().Sub(token.CreatedAt); age > s.cfg.MaxTokenAge {
		s.logger.Debug("Token too old",
			zap.String("mint", token.Mint),
			zap.Duration("age", age))
		return false
	}
	for _, creator := range s.cfg.BlockedCreators {
		if token.CreatorAddress == creator {
			s.logger.Info("Token creator blocked",
				zap.String("mint", token.Mint),
				zap.String("creator", creator))
			return false
		}
	}
	name := strings.ToLower(token.Name + token.Symbol)
	for _, phrase := range s.cfg.BlockedPhrases {
		if strings.Contains(name, strings.ToLower(phrase)) {
			s.logger.Info("Token name blocked",
				zap.String("mint", token.Mint),
				zap.String("phrase", phrase))
			return false
		}
	}

	s.seen.Add(token.Mint)
	return true
}

// GetTrade sizes the buy via the risk gate, falling back to the configured
// default when automatic sizing yields zero, and abstains when the risk
// check rejects.
func (s *NewTokenStrategy) GetTrade(ctx context.Context, ev events.Event) (*engine.TradeProposal, error) {
	token, ok := ev.(events.NewTokenEvent)
	if !ok {
		return nil, nil
	}

	amount := s.risk.OptimalTradeSize(ctx, token.Mint)
	if amount == 0 {
		amount = s.cfg.DefaultBuySol
	}

	check := s.risk.CheckTrade(ctx, events.ActionBuy, token.Mint, amount)
	if !check.Allowed {
		s.logger.Info("Buy rejected by risk gate",
			zap.String("mint", token.Mint),
			zap.Float64("amount_sol", amount),
			zap.String("reason", check.Reason))
		return nil, nil
	}

	return &engine.TradeProposal{
		Action:           events.ActionBuy,
		Mint:             token.Mint,
		Amount:           amount,
		DenominatedInSol: true,
		SlippagePercent:  s.defaults.SlippagePercent,
		PriorityFeeSol:   s.defaults.PriorityFeeSol,
		Pool:             s.defaults.Pool,
		SkipPreflight:    s.defaults.SkipPreflight,
		RefPrice:         token.Price,
		TokenName:        token.Name,
		TokenSymbol:      token.Symbol,
		StopLossPct:      s.cfg.StopLossPct,
		TakeProfitPct:    s.cfg.TakeProfitPct,
	}, nil
}
