// internal/ledger/ledger.go
package ledger

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PositionStatus is the lifecycle state of a position.
type PositionStatus string

const (
	StatusOpen   PositionStatus = "open"
	StatusClosed PositionStatus = "closed"
)

// Position is one open-or-closed lineage of holdings in a single token.
// At most one position per mint is open at any time; a second buy merges
// into the existing open record instead of creating a new one.
type Position struct {
	Mint       string         `json:"mint"`
	Name       string         `json:"name"`
	Symbol     string         `json:"symbol"`
	EntryPrice float64        `json:"entry_price"` // SOL per token unit
	Amount     float64        `json:"amount"`      // token units held
	CreatedAt  time.Time      `json:"created_at"`
	StopLoss   float64        `json:"stop_loss"`
	TakeProfit float64        `json:"take_profit"`
	Status     PositionStatus `json:"status"`
	ExitPrice  *float64       `json:"exit_price,omitempty"`
	Pnl        *float64       `json:"pnl,omitempty"`
}

// IsOpen reports whether the position is still held.
func (p *Position) IsOpen() bool { return p.Status == StatusOpen }

// Snapshot is the persisted portfolio record. It is overwritten wholesale on
// every mutating ledger call.
type Snapshot struct {
	Positions        []*Position `json:"positions"`
	TotalInvestedSol float64     `json:"total_invested_sol"`
	RealizedPnl      float64     `json:"realized_pnl"`
	UnrealizedPnl    float64     `json:"unrealized_pnl"`
}

// Store persists portfolio snapshots. Persistence is advisory: the in-memory
// ledger stays authoritative for the process lifetime and a failed save is
// logged, never rolled back.
type Store interface {
	Save(snap *Snapshot) error
	Load() (*Snapshot, error)
}

// Ledger owns all positions ever created (insertion order preserved) and the
// cumulative invested / realized / unrealized figures derived from them.
type Ledger struct {
	mu            sync.RWMutex
	positions     []*Position
	investedSol   float64
	realizedPnl   float64
	unrealizedPnl float64
	store         Store
	logger        *zap.Logger
}

// New creates a ledger backed by store. When the store holds a previous
// snapshot, open positions and totals are restored from it.
func New(store Store, logger *zap.Logger) *Ledger {
	l := &Ledger{
		store:  store,
		logger: logger.Named("ledger"),
	}

	if store == nil {
		return l
	}
	snap, err := store.Load()
	if err != nil {
		l.logger.Warn("Could not load portfolio snapshot, starting empty", zap.Error(err))
		return l
	}
	if snap != nil {
		l.positions = snap.Positions
		l.investedSol = snap.TotalInvestedSol
		l.realizedPnl = snap.RealizedPnl
		l.unrealizedPnl = snap.UnrealizedPnl
		l.logger.Info("Portfolio snapshot restored",
			zap.Int("positions", len(snap.Positions)),
			zap.Float64("invested_sol", snap.TotalInvestedSol))
	}
	return l
}

// AddPosition records a confirmed buy. With no open position for the mint it
// opens a new one at price; with an existing open position it merges, with
// the new entry price cost-weighted by SOL spent:
//
//	entry' = (amount*entry + solAmount) / (amount + quantity)
//
// Quantity and solAmount are assumed consistent with the fill price; the
// ledger does not cross-check them. Stop-loss and take-profit are recomputed
// from the resulting entry price and the supplied percentages.
func (l *Ledger) AddPosition(mint, name, symbol string, price, quantity, solAmount, stopLossPct, takeProfitPct float64) *Position {
	l.mu.Lock()

	pos := l.openPositionLocked(mint)
	if pos == nil {
		pos = &Position{
			Mint:       mint,
			Name:       name,
			Symbol:     symbol,
			EntryPrice: price,
			Amount:     quantity,
			CreatedAt:  time.Now().UTC(),
			Status:     StatusOpen,
		}
		l.positions = append(l.positions, pos)
		l.logger.Info("Position opened",
			zap.String("mint", mint),
			zap.String("symbol", symbol),
			zap.Float64("entry_price", price),
			zap.Float64("amount", quantity),
			zap.Float64("sol", solAmount))
	} else {
		total := pos.Amount + quantity
		pos.EntryPrice = (pos.Amount*pos.EntryPrice + solAmount) / total
		pos.Amount = total
		l.logger.Info("Position merged",
			zap.String("mint", mint),
			zap.Float64("avg_entry_price", pos.EntryPrice),
			zap.Float64("amount", pos.Amount),
			zap.Float64("added_sol", solAmount))
	}

	pos.StopLoss = pos.EntryPrice * (1 - stopLossPct/100)
	pos.TakeProfit = pos.EntryPrice * (1 + takeProfitPct/100)
	l.investedSol += solAmount

	snap := l.snapshotLocked()
	l.mu.Unlock()

	l.persist(snap)
	return pos
}

// ClosePosition books a confirmed sell against the open position for mint.
// The realized delta (exitPrice-entry)*quantitySold is always added to the
// portfolio's realized P&L. A full close (percentSold >= 100, or quantity
// sold covering the remainder) marks the position closed and stamps its exit
// price and lineage P&L; a partial close just reduces the held amount and
// may repeat.
func (l *Ledger) ClosePosition(mint string, exitPrice, quantitySold, percentSold float64) (*Position, error) {
	l.mu.Lock()

	pos := l.openPositionLocked(mint)
	if pos == nil {
		l.mu.Unlock()
		return nil, fmt.Errorf("no open position for %s", mint)
	}

	delta := (exitPrice - pos.EntryPrice) * quantitySold
	l.realizedPnl += delta

	if percentSold >= 100 || quantitySold >= pos.Amount {
		pos.Status = StatusClosed
		pos.ExitPrice = &exitPrice
		pos.Pnl = &delta
		l.logger.Info("Position closed",
			zap.String("mint", mint),
			zap.Float64("exit_price", exitPrice),
			zap.Float64("pnl_sol", delta))
	} else {
		pos.Amount -= quantitySold
		l.logger.Info("Position partially closed",
			zap.String("mint", mint),
			zap.Float64("sold", quantitySold),
			zap.Float64("remaining", pos.Amount),
			zap.Float64("pnl_sol", delta))
	}

	snap := l.snapshotLocked()
	l.mu.Unlock()

	l.persist(snap)
	return pos, nil
}

// UpdateUnrealizedPnl recomputes mark-to-market P&L across all open positions
// from the supplied latest-price map and overwrites the stored figure with
// the result. Open positions without a known price contribute nothing.
func (l *Ledger) UpdateUnrealizedPnl(prices map[string]float64) {
	l.mu.Lock()

	var total float64
	for _, pos := range l.positions {
		if !pos.IsOpen() {
			continue
		}
		price, ok := prices[pos.Mint]
		if !ok {
			continue
		}
		total += (price - pos.EntryPrice) * pos.Amount
	}
	l.unrealizedPnl = total

	snap := l.snapshotLocked()
	l.mu.Unlock()

	l.persist(snap)
}

// OpenPosition returns a copy of the open position for mint, if any.
func (l *Ledger) OpenPosition(mint string) (Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if pos := l.openPositionLocked(mint); pos != nil {
		return *pos, true
	}
	return Position{}, false
}

// Positions returns copies of every position ever created, in insertion order.
func (l *Ledger) Positions() []Position {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Position, len(l.positions))
	for i, pos := range l.positions {
		out[i] = *pos
	}
	return out
}

// Value returns the mark-to-market portfolio value in SOL: cost basis of the
// open positions plus the latest unrealized P&L snapshot.
func (l *Ledger) Value() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var value float64
	for _, pos := range l.positions {
		if pos.IsOpen() {
			value += pos.EntryPrice * pos.Amount
		}
	}
	return value + l.unrealizedPnl
}

// RealizedPnl returns cumulative realized profit and loss in SOL.
func (l *Ledger) RealizedPnl() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.realizedPnl
}

// UnrealizedPnl returns the last computed mark-to-market P&L in SOL.
func (l *Ledger) UnrealizedPnl() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.unrealizedPnl
}

// TotalInvested returns cumulative SOL spent across all entries ever made.
func (l *Ledger) TotalInvested() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.investedSol
}

func (l *Ledger) openPositionLocked(mint string) *Position {
	for _, pos := range l.positions {
		if pos.Mint == mint && pos.IsOpen() {
			return pos
		}
	}
	return nil
}

func (l *Ledger) snapshotLocked() *Snapshot {
	positions := make([]*Position, len(l.positions))
	for i, pos := range l.positions {
		cp := *pos
		positions[i] = &cp
	}
	return &Snapshot{
		Positions:        positions,
		TotalInvestedSol: l.investedSol,
		RealizedPnl:      l.realizedPnl,
		UnrealizedPnl:    l.unrealizedPnl,
	}
}

func (l *Ledger) persist(snap *Snapshot) {
	if l.store == nil {
		return
	}
	if err := l.store.Save(snap); err != nil {
		l.logger.Error("Failed to persist portfolio snapshot", zap.Error(err))
	}
}
