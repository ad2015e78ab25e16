// internal/ledger/ledger_test.go
package ledger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type memStore struct {
	saves    int
	last     *Snapshot
	failSave bool
	snapshot *Snapshot
}

func (m *memStore) Save(snap *Snapshot) error {
	m.saves++
	if m.failSave {
		return errors.New("disk full")
	}
	m.last = snap
	return nil
}

func (m *memStore) Load() (*Snapshot, error) {
	return m.snapshot, nil
}

func TestAddPositionOpensExactlyOne(t *testing.T) {
	book := New(&memStore{}, zaptest.NewLogger(t))

	pos := book.AddPosition("mint1", "Token One", "ONE", 1.0, 100, 100, 10, 25)

	require.NotNil(t, pos)
	assert.Equal(t, 1.0, pos.EntryPrice)
	assert.Equal(t, 100.0, pos.Amount)
	assert.Equal(t, StatusOpen, pos.Status)
	assert.InDelta(t, 0.9, pos.StopLoss, 1e-9)
	assert.InDelta(t, 1.25, pos.TakeProfit, 1e-9)

	open := 0
	for _, p := range book.Positions() {
		if p.IsOpen() {
			open++
		}
	}
	assert.Equal(t, 1, open)
	assert.Equal(t, 100.0, book.TotalInvested())
}

func TestAddPositionMergesIntoOpenPosition(t *testing.T) {
	book := New(&memStore{}, zaptest.NewLogger(t))

	book.AddPosition("mint1", "Token One", "ONE", 1.0, 100, 100, 10, 25)
	book.AddPosition("mint1", "Token One", "ONE", 1.2, 50, 60, 20, 50)

	pos, ok := book.OpenPosition("mint1")
	require.True(t, ok)
	assert.InDelta(t, (100*1.0+60)/150.0, pos.EntryPrice, 1e-9)
	assert.Equal(t, 150.0, pos.Amount)
	assert.Equal(t, 160.0, book.TotalInvested())

	// Thresholds are recomputed from the merged entry and the supplied pcts.
	assert.InDelta(t, pos.EntryPrice*0.8, pos.StopLoss, 1e-9)
	assert.InDelta(t, pos.EntryPrice*1.5, pos.TakeProfit, 1e-9)

	// Still exactly one record; merges never duplicate.
	assert.Len(t, book.Positions(), 1)
}

func TestClosePositionFull(t *testing.T) {
	book := New(&memStore{}, zaptest.NewLogger(t))
	book.AddPosition("mint1", "Token One", "ONE", 1.0, 100, 100, 10, 25)

	pos, err := book.ClosePosition("mint1", 1.5, 100, 100)
	require.NoError(t, err)

	assert.Equal(t, StatusClosed, pos.Status)
	require.NotNil(t, pos.ExitPrice)
	assert.Equal(t, 1.5, *pos.ExitPrice)
	require.NotNil(t, pos.Pnl)
	assert.InDelta(t, 50.0, *pos.Pnl, 1e-9)
	assert.InDelta(t, 50.0, book.RealizedPnl(), 1e-9)

	_, ok := book.OpenPosition("mint1")
	assert.False(t, ok)
}

func TestClosePositionPartial(t *testing.T) {
	book := New(&memStore{}, zaptest.NewLogger(t))
	book.AddPosition("mint1", "Token One", "ONE", 1.0, 100, 100, 10, 25)

	pos, err := book.ClosePosition("mint1", 1.2, 40, 40)
	require.NoError(t, err)

	assert.Equal(t, StatusOpen, pos.Status)
	assert.Equal(t, 60.0, pos.Amount)
	assert.InDelta(t, (1.2-1.0)*40, book.RealizedPnl(), 1e-9)

	// Partial closes repeat until the remainder is sold.
	pos, err = book.ClosePosition("mint1", 1.1, 60, 100)
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, pos.Status)
	assert.InDelta(t, (1.2-1.0)*40+(1.1-1.0)*60, book.RealizedPnl(), 1e-9)
}

func TestClosePositionWithoutOpenFails(t *testing.T) {
	book := New(&memStore{}, zaptest.NewLogger(t))

	_, err := book.ClosePosition("missing", 1.0, 10, 100)
	assert.Error(t, err)
}

func TestUnrealizedPnlIsOverwrittenWholesale(t *testing.T) {
	book := New(&memStore{}, zaptest.NewLogger(t))
	book.AddPosition("mint1", "Token One", "ONE", 1.0, 100, 100, 10, 25)
	book.AddPosition("mint2", "Token Two", "TWO", 2.0, 50, 100, 10, 25)

	book.UpdateUnrealizedPnl(map[string]float64{"mint1": 1.5, "mint2": 1.0})
	assert.InDelta(t, 0.5*100+(-1.0)*50, book.UnrealizedPnl(), 1e-9)

	// A refresh with only one known price replaces the whole figure; the
	// unknown position contributes nothing.
	book.UpdateUnrealizedPnl(map[string]float64{"mint1": 1.1})
	assert.InDelta(t, 0.1*100, book.UnrealizedPnl(), 1e-9)
}

func TestPersistFailureDoesNotRollBack(t *testing.T) {
	store := &memStore{failSave: true}
	book := New(store, zaptest.NewLogger(t))

	book.AddPosition("mint1", "Token One", "ONE", 1.0, 100, 100, 10, 25)

	_, ok := book.OpenPosition("mint1")
	assert.True(t, ok)
	assert.Equal(t, 1, store.saves)
}

func TestSnapshotRestoredAtStartup(t *testing.T) {
	store := &memStore{}
	book := New(store, zaptest.NewLogger(t))
	book.AddPosition("mint1", "Token One", "ONE", 1.0, 100, 100, 10, 25)

	store.snapshot = store.last
	restored := New(store, zaptest.NewLogger(t))

	pos, ok := restored.OpenPosition("mint1")
	require.True(t, ok)
	assert.Equal(t, 1.0, pos.EntryPrice)
	assert.Equal(t, 100.0, restored.TotalInvested())
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := t.TempDir() + "/portfolio.json"
	store, err := NewFileStore(path)
	require.NoError(t, err)

	// Missing file is not an error.
	snap, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, snap)

	book := New(store, zaptest.NewLogger(t))
	book.AddPosition("mint1", "Token One", "ONE", 0.002, 5000, 10, 10, 25)
	book.UpdateUnrealizedPnl(map[string]float64{"mint1": 0.003})

	snap, err = store.Load()
	require.NoError(t, err)
	require.NotNil(t, snap)
	require.Len(t, snap.Positions, 1)
	assert.Equal(t, "mint1", snap.Positions[0].Mint)
	assert.InDelta(t, 10.0, snap.TotalInvestedSol, 1e-9)
	assert.InDelta(t, 0.001*5000, snap.UnrealizedPnl, 1e-9)
}
