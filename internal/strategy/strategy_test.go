// internal/strategy/strategy_test.go
package strategy

import (
	"context"
	"testing"

	"github.com/mhatey/PumpFun-Pump-Portal/internal/engine"
	"github.com/mhatey/PumpFun-Pump-Portal/internal/risk"
	"go.uber.org/zap/zaptest"
)

// Shared fakes for the risk gate dependencies.

type stubWallet struct {
	balance float64
	holds   bool
}

func (w *stubWallet) Balance(context.Context) (float64, error) {
	return w.balance, nil
}

func (w *stubWallet) HoldsToken(context.Context, string) (bool, error) {
	return w.holds, nil
}

type stubBook struct {
	value   float64
	hasOpen bool
}

func (b *stubBook) Value() float64              { return b.value }
func (b *stubBook) HasOpenPosition(string) bool { return b.hasOpen }

func newTestRisk(t *testing.T, wallet *stubWallet, book *stubBook) *risk.Manager {
	t.Helper()
	cfg := risk.Config{
		MinTradeSol:       0.01,
		MaxTradeSol:       1,
		DailyVolumeCapSol: 10,
		MaxPositionPct:    10,
		FeeBufferSol:      0.01,
	}
	return risk.NewManager(cfg, wallet, book, zaptest.NewLogger(t))
}

func testDefaults() engine.TradeDefaults {
	return engine.TradeDefaults{
		SlippagePercent: 10,
		PriorityFeeSol:  0.0005,
		Pool:            "pump",
		SkipPreflight:   true,
	}
}
