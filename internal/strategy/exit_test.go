// internal/strategy/exit_test.go
package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/mhatey/PumpFun-Pump-Portal/internal/events"
	"github.com/mhatey/PumpFun-Pump-Portal/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeBookkeeper struct {
	positions map[string]ledger.Position
	lastPnl   map[string]float64
}

func (f *fakeBookkeeper) OpenPosition(mint string) (ledger.Position, bool) {
	pos, ok := f.positions[mint]
	return pos, ok
}

func (f *fakeBookkeeper) UpdateUnrealizedPnl(prices map[string]float64) {
	f.lastPnl = prices
}

func newTestExit(t *testing.T, book *fakeBookkeeper, holds bool) *ExitStrategy {
	t.Helper()
	rm := newTestRisk(t, &stubWallet{balance: 10, holds: holds}, &stubBook{value: 10})
	return NewExitStrategy(ExitConfig{Enabled: true, CheckInterval: 10 * time.Second},
		book, rm, testDefaults(), zaptest.NewLogger(t))
}

func openPosition(stopLoss, takeProfit float64) ledger.Position {
	return ledger.Position{
		Mint:       "mint1",
		EntryPrice: 1.0,
		Amount:     100,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
		Status:     ledger.StatusOpen,
	}
}

func TestExitTriggersOnThresholds(t *testing.T) {
	cases := []struct {
		name  string
		price float64
		want  bool
	}{
		{"below stop loss", 0.75, true},
		{"at stop loss", 0.80, true},
		{"inside band", 1.00, false},
		{"at take profit", 1.50, true},
		{"above take profit", 1.60, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			book := &fakeBookkeeper{positions: map[string]ledger.Position{
				"mint1": openPosition(0.80, 1.50),
			}}
			s := newTestExit(t, book, true)

			got := s.ShouldTrade(context.Background(), tradeAt("mint1", tc.price, 0.1, time.Now()))
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestExitIgnoresTokensWithoutOpenPosition(t *testing.T) {
	s := newTestExit(t, &fakeBookkeeper{positions: map[string]ledger.Position{}}, true)
	assert.False(t, s.ShouldTrade(context.Background(), tradeAt("mint1", 0.1, 0.1, time.Now())))
}

func TestExitRateLimitsPerToken(t *testing.T) {
	book := &fakeBookkeeper{positions: map[string]ledger.Position{
		"mint1": openPosition(0.80, 1.50),
	}}
	s := newTestExit(t, book, true)

	base := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	now := base
	s.now = func() time.Time { return now }
	ctx := context.Background()

	assert.True(t, s.ShouldTrade(ctx, tradeAt("mint1", 0.5, 0.1, now)))

	// Within the interval the same token is not re-evaluated, even though
	// the price is still past the threshold.
	now = base.Add(5 * time.Second)
	assert.False(t, s.ShouldTrade(ctx, tradeAt("mint1", 0.4, 0.1, now)))

	now = base.Add(11 * time.Second)
	assert.True(t, s.ShouldTrade(ctx, tradeAt("mint1", 0.4, 0.1, now)))
}

func TestExitGetTradeSellsFullHolding(t *testing.T) {
	book := &fakeBookkeeper{positions: map[string]ledger.Position{
		"mint1": openPosition(0.80, 1.50),
	}}
	s := newTestExit(t, book, true)

	ev := tradeAt("mint1", 0.5, 0.1, time.Now())
	ev.Symbol = "PUMP"
	prop, err := s.GetTrade(context.Background(), ev)
	require.NoError(t, err)
	require.NotNil(t, prop)
	assert.Equal(t, events.ActionSell, prop.Action)
	assert.Equal(t, "100%", prop.AmountPercent)
	assert.False(t, prop.DenominatedInSol)
	assert.InDelta(t, 0.5, prop.RefPrice, 1e-9)
	assert.Equal(t, "PUMP", prop.TokenSymbol)
}

func TestExitGetTradeAbstainsWhenWalletEmpty(t *testing.T) {
	book := &fakeBookkeeper{positions: map[string]ledger.Position{
		"mint1": openPosition(0.80, 1.50),
	}}
	s := newTestExit(t, book, false)

	prop, err := s.GetTrade(context.Background(), tradeAt("mint1", 0.5, 0.1, time.Now()))
	require.NoError(t, err)
	assert.Nil(t, prop)
}

func TestForgetClearsTokenState(t *testing.T) {
	book := &fakeBookkeeper{positions: map[string]ledger.Position{
		"mint1": openPosition(0.80, 1.50),
	}}
	s := newTestExit(t, book, true)
	ctx := context.Background()

	assert.True(t, s.ShouldTrade(ctx, tradeAt("mint1", 0.5, 0.1, time.Now())))
	assert.False(t, s.ShouldTrade(ctx, tradeAt("mint1", 0.5, 0.1, time.Now())),
		"second check lands inside the rate-limit window")

	s.Forget("mint1")

	s.RefreshUnrealizedPnl()
	assert.Empty(t, book.lastPnl, "forgotten mints leave no cached price")

	// The rate limiter state went with it.
	assert.True(t, s.ShouldTrade(ctx, tradeAt("mint1", 0.5, 0.1, time.Now())))
}

func TestStalePriceStateIsSwept(t *testing.T) {
	book := &fakeBookkeeper{positions: map[string]ledger.Position{}}
	s := newTestExit(t, book, true)

	base := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	now := base
	s.now = func() time.Time { return now }
	ctx := context.Background()

	s.ShouldTrade(ctx, tradeAt("stale", 1.0, 0.1, now))

	// Two hours later a fresh trade arrives; the sweep drops the mint
	// that has not traded within the retention window.
	now = base.Add(2 * time.Hour)
	s.ShouldTrade(ctx, tradeAt("fresh", 2.0, 0.1, now))

	s.RefreshUnrealizedPnl()
	require.NotNil(t, book.lastPnl)
	assert.NotContains(t, book.lastPnl, "stale")
	assert.InDelta(t, 2.0, book.lastPnl["fresh"], 1e-9)
}

func TestRefreshUnrealizedPnl(t *testing.T) {
	book := &fakeBookkeeper{positions: map[string]ledger.Position{}}
	s := newTestExit(t, book, true)
	ctx := context.Background()

	// Prices are recorded even for tokens without open positions.
	s.ShouldTrade(ctx, tradeAt("mint1", 1.25, 0.1, time.Now()))
	s.ShouldTrade(ctx, tradeAt("mint2", 0.90, 0.1, time.Now()))

	s.RefreshUnrealizedPnl()
	require.NotNil(t, book.lastPnl)
	assert.InDelta(t, 1.25, book.lastPnl["mint1"], 1e-9)
	assert.InDelta(t, 0.90, book.lastPnl["mint2"], 1e-9)
}
