// internal/strategy/window.go
package strategy

import (
	"sync"
	"time"

	"github.com/mhatey/PumpFun-Pump-Portal/internal/events"
)

const (
	maxTradesPerToken = 100
	sweepInterval     = 5 * time.Minute
	retentionBuffer   = time.Hour
)

type windowTrade struct {
	price     float64
	amountSol float64
	timestamp time.Time
}

type tokenWindow struct {
	trades      []windowTrade // newest first, capped at maxTradesPerToken
	lastTrigger time.Time
	symbol      string
}

// WindowStats summarizes the trades inside the analysis window for one token.
type WindowStats struct {
	TradeCount     int
	VolumeSol      float64
	PriceChangePct float64 // oldest-in-window to newest-in-window
}

// Aggregator maintains per-token sliding trade-history windows and momentum
// cooldown stamps. Ingestion is an explicit step separate from the pure
// eligibility read, so the state machine can be tested in isolation.
//
// Token state is created lazily on the first trade and dropped by a periodic
// sweep once its entire history predates the analysis window plus a one hour
// retention buffer.
type Aggregator struct {
	mu        sync.Mutex
	window    time.Duration
	tokens    map[string]*tokenWindow
	lastSweep time.Time

	now func() time.Time
}

// NewAggregator creates an aggregator for the given analysis window.
func NewAggregator(window time.Duration) *Aggregator {
	return &Aggregator{
		window: window,
		tokens: make(map[string]*tokenWindow),
		now:    time.Now,
	}
}

// Ingest records a trade into the token's window, updates the display symbol
// when newly known, and opportunistically sweeps stale tokens at most every
// five minutes of wall-clock time.
func (a *Aggregator) Ingest(ev events.TokenTradeEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	tw, ok := a.tokens[ev.Mint]
	if !ok {
		tw = &tokenWindow{}
		a.tokens[ev.Mint] = tw
	}
	if tw.symbol == "" && ev.Symbol != "" {
		tw.symbol = ev.Symbol
	}

	tw.trades = append([]windowTrade{{
		price:     ev.Price,
		amountSol: ev.AmountSol,
		timestamp: ev.Timestamp,
	}}, tw.trades...)
	if len(tw.trades) > maxTradesPerToken {
		tw.trades = tw.trades[:maxTradesPerToken]
	}

	a.sweepLocked()
}

// Stats returns the in-window trade count, SOL volume and price change for
// the token. The zero value is returned for unknown tokens.
func (a *Aggregator) Stats(mint string) WindowStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	tw, ok := a.tokens[mint]
	if !ok {
		return WindowStats{}
	}

	cutoff := a.now().Add(-a.window)
	var stats WindowStats
	var oldest, newest *windowTrade
	for i := range tw.trades {
		tr := &tw.trades[i]
		if tr.timestamp.Before(cutoff) {
			continue
		}
		stats.TradeCount++
		stats.VolumeSol += tr.amountSol
		if newest == nil {
			newest = tr // trades are newest first
		}
		oldest = tr
	}
	if oldest != nil && newest != nil && oldest.price > 0 {
		stats.PriceChangePct = (newest.price - oldest.price) / oldest.price * 100
	}
	return stats
}

// InCooldown reports whether the token triggered within the cooldown window.
func (a *Aggregator) InCooldown(mint string, cooldown time.Duration) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	tw, ok := a.tokens[mint]
	if !ok || tw.lastTrigger.IsZero() {
		return false
	}
	return a.now().Sub(tw.lastTrigger) < cooldown
}

// MarkTriggered stamps the cooldown for the token. Callers stamp immediately
// on acceptance, before sizing or risk checks, so overlapping events cannot
// double-trigger while the first proposal is in flight.
func (a *Aggregator) MarkTriggered(mint string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	tw, ok := a.tokens[mint]
	if !ok {
		tw = &tokenWindow{}
		a.tokens[mint] = tw
	}
	tw.lastTrigger = a.now()
}

// Symbol returns the best-known display symbol for the token.
func (a *Aggregator) Symbol(mint string) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	if tw, ok := a.tokens[mint]; ok {
		return tw.symbol
	}
	return ""
}

// TrackedTokens returns the number of tokens currently holding state.
func (a *Aggregator) TrackedTokens() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.tokens)
}

func (a *Aggregator) sweepLocked() {
	now := a.now()
	if now.Sub(a.lastSweep) < sweepInterval {
		return
	}
	a.lastSweep = now

	cutoff := now.Add(-(a.window + retentionBuffer))
	for mint, tw := range a.tokens {
		if len(tw.trades) == 0 || tw.trades[0].timestamp.Before(cutoff) {
			delete(a.tokens, mint)
		}
	}
}
