// internal/risk/risk.go
package risk

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mhatey/PumpFun-Pump-Portal/internal/events"
	"go.uber.org/zap"
)

// WalletReader is the balance/holdings query capability the gate consumes.
// Both calls hit the chain and may fail; failures degrade conservatively to
// "cannot afford" / "does not hold".
type WalletReader interface {
	Balance(ctx context.Context) (float64, error)
	HoldsToken(ctx context.Context, mint string) (bool, error)
}

// Portfolio is the slice of the ledger the gate needs: current value and
// whether a mint already has an open position.
type Portfolio interface {
	Value() float64
	HasOpenPosition(mint string) bool
}

// CheckResult is a policy decision. Reason is free text for logging only;
// callers branch on Allowed, never on the reason string.
type CheckResult struct {
	Allowed bool
	Reason  string
}

func allowed() CheckResult { return CheckResult{Allowed: true} }
func denied(format string, args ...interface{}) CheckResult {
	return CheckResult{Allowed: false, Reason: fmt.Sprintf(format, args...)}
}

// Config holds the trade limits enforced by the gate.
type Config struct {
	MinTradeSol       float64
	MaxTradeSol       float64
	DailyVolumeCapSol float64
	MaxPositionPct    float64 // percent of portfolio value per position
	FeeBufferSol      float64 // SOL kept aside for fees on every buy
}

// Manager validates trade proposals against the configured limits and tracks
// the rolling daily buy volume. The counter resets lazily: the first
// volume-affecting or volume-querying call after UTC midnight zeroes it.
// It is process-lifetime state; a restart silently resets it.
type Manager struct {
	cfg    Config
	wallet WalletReader
	book   Portfolio
	logger *zap.Logger

	mu          sync.Mutex
	dailyVolume float64
	nextReset   time.Time

	now func() time.Time
}

// NewManager builds a risk gate. The first daily reset is scheduled for the
// next UTC midnight.
func NewManager(cfg Config, wallet WalletReader, book Portfolio, logger *zap.Logger) *Manager {
	m := &Manager{
		cfg:    cfg,
		wallet: wallet,
		book:   book,
		logger: logger.Named("risk"),
		now:    time.Now,
	}
	m.nextReset = nextUTCMidnight(m.now())
	return m
}

// CheckTrade validates a proposed trade. Buy checks run in a fixed order and
// the first failure wins. Sells are only checked for a nonzero wallet
// holding; the requested amount is not validated because sells are sized as
// a percentage of live holdings at execution time.
func (m *Manager) CheckTrade(ctx context.Context, action events.TradeAction, mint string, solAmount float64) CheckResult {
	if action == events.ActionSell {
		return m.checkSell(ctx, mint)
	}
	return m.checkBuy(ctx, solAmount)
}

func (m *Manager) checkBuy(ctx context.Context, solAmount float64) CheckResult {
	balance, err := m.wallet.Balance(ctx)
	if err != nil {
		m.logger.Warn("Balance query failed, treating as zero", zap.Error(err))
		balance = 0
	}
	if balance < solAmount+m.cfg.FeeBufferSol {
		return denied("insufficient balance: have %.4f SOL, need %.4f SOL incl. fee buffer",
			balance, solAmount+m.cfg.FeeBufferSol)
	}

	used := m.dailyUsed()
	if used+solAmount > m.cfg.DailyVolumeCapSol {
		return denied("daily volume cap reached: %.4f of %.4f SOL used", used, m.cfg.DailyVolumeCapSol)
	}

	if solAmount < m.cfg.MinTradeSol {
		return denied("below minimum trade size: %.4f < %.4f SOL", solAmount, m.cfg.MinTradeSol)
	}
	if solAmount > m.cfg.MaxTradeSol {
		return denied("above maximum trade size: %.4f > %.4f SOL", solAmount, m.cfg.MaxTradeSol)
	}

	maxPosition := m.book.Value() * m.cfg.MaxPositionPct / 100
	if solAmount > maxPosition {
		return denied("position size %.4f SOL exceeds %.1f%% of portfolio (%.4f SOL)",
			solAmount, m.cfg.MaxPositionPct, maxPosition)
	}

	return allowed()
}

func (m *Manager) checkSell(ctx context.Context, mint string) CheckResult {
	holds, err := m.wallet.HoldsToken(ctx, mint)
	if err != nil {
		m.logger.Warn("Token holding query failed, treating as not held",
			zap.String("mint", mint), zap.Error(err))
		holds = false
	}
	if !holds {
		return denied("wallet holds no balance of %s", mint)
	}
	return allowed()
}

// OptimalTradeSize computes the largest buy the limits allow right now:
// the minimum of spendable balance, the per-position portfolio share, the
// remaining daily allowance and the global maximum. A result below the
// minimum trade size collapses to zero, signalling the caller to fall back
// to its own default or abstain. When the mint already has an open position
// the size is halved (DCA dampening). The result is a suggestion only;
// callers still pass it through CheckTrade.
func (m *Manager) OptimalTradeSize(ctx context.Context, mint string) float64 {
	balance, err := m.wallet.Balance(ctx)
	if err != nil {
		m.logger.Warn("Balance query failed, sizing from zero", zap.Error(err))
		balance = 0
	}

	size := balance - m.cfg.FeeBufferSol
	if byPortfolio := m.book.Value() * m.cfg.MaxPositionPct / 100; byPortfolio < size {
		size = byPortfolio
	}
	if remaining := m.cfg.DailyVolumeCapSol - m.dailyUsed(); remaining < size {
		size = remaining
	}
	if m.cfg.MaxTradeSol < size {
		size = m.cfg.MaxTradeSol
	}

	if size < m.cfg.MinTradeSol {
		return 0
	}
	if m.book.HasOpenPosition(mint) {
		size /= 2
	}
	return size
}

// TrackTradeVolume adds a confirmed buy to the daily counter. Call it exactly
// once per executed buy, after execution confirmation, never on proposal.
func (m *Manager) TrackTradeVolume(solAmount float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.resetIfDueLocked()
	m.dailyVolume += solAmount
	m.logger.Debug("Daily volume updated",
		zap.Float64("added_sol", solAmount),
		zap.Float64("total_sol", m.dailyVolume))
}

// DailyVolume returns the SOL volume of buys executed since the last UTC
// midnight boundary.
func (m *Manager) DailyVolume() float64 {
	return m.dailyUsed()
}

func (m *Manager) dailyUsed() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetIfDueLocked()
	return m.dailyVolume
}

func (m *Manager) resetIfDueLocked() {
	now := m.now()
	if now.Before(m.nextReset) {
		return
	}
	m.logger.Info("Daily volume counter reset",
		zap.Float64("previous_sol", m.dailyVolume),
		zap.Time("next_reset", nextUTCMidnight(now)))
	m.dailyVolume = 0
	m.nextReset = nextUTCMidnight(now)
}

func nextUTCMidnight(now time.Time) time.Time {
	utc := now.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
}
