// internal/portal/types.go
package portal

import (
	"time"

	"github.com/mhatey/PumpFun-Pump-Portal/internal/events"
)

// subscribeRequest is the PumpPortal subscription envelope.
type subscribeRequest struct {
	Method string   `json:"method"`
	Keys   []string `json:"keys,omitempty"`
}

const (
	methodSubscribeNewToken     = "subscribeNewToken"
	methodSubscribeTokenTrade   = "subscribeTokenTrade"
	methodUnsubscribeTokenTrade = "unsubscribeTokenTrade"
)

// frame is the raw PumpPortal stream payload. Creation frames carry txType
// "create" plus the token metadata; trade frames carry "buy" or "sell" plus
// the bonding-curve reserve snapshot the trade left behind.
type frame struct {
	Signature             string  `json:"signature"`
	Mint                  string  `json:"mint"`
	TraderPublicKey       string  `json:"traderPublicKey"`
	TxType                string  `json:"txType"`
	Name                  string  `json:"name"`
	Symbol                string  `json:"symbol"`
	URI                   string  `json:"uri"`
	InitialBuy            float64 `json:"initialBuy"`
	TokenAmount           float64 `json:"tokenAmount"`
	SolAmount             float64 `json:"solAmount"`
	NewTokenBalance       float64 `json:"newTokenBalance"`
	BondingCurveKey       string  `json:"bondingCurveKey"`
	VTokensInBondingCurve float64 `json:"vTokensInBondingCurve"`
	VSolInBondingCurve    float64 `json:"vSolInBondingCurve"`
	MarketCapSol          float64 `json:"marketCapSol"`
	Pool                  string  `json:"pool"`
}

// curvePrice derives SOL per token unit from the virtual reserves.
func (f *frame) curvePrice() float64 {
	if f.VTokensInBondingCurve <= 0 {
		return 0
	}
	return f.VSolInBondingCurve / f.VTokensInBondingCurve
}

// toEvent maps a raw frame onto the typed taxonomy. Frames the engine does
// not understand map to nil and are dropped by the reader.
func (f *frame) toEvent(received time.Time) events.Event {
	switch f.TxType {
	case "create":
		return events.NewTokenEvent{
			Mint:           f.Mint,
			Name:           f.Name,
			Symbol:         f.Symbol,
			URI:            f.URI,
			CreatorAddress: f.TraderPublicKey,
			InitialBuySol:  f.SolAmount,
			MarketCapSol:   f.MarketCapSol,
			Price:          f.curvePrice(),
			CreatedAt:      received,
		}
	case "buy", "sell":
		return events.TokenTradeEvent{
			Mint:      f.Mint,
			Action:    events.TradeAction(f.TxType),
			Price:     f.curvePrice(),
			AmountSol: f.SolAmount,
			Trader:    f.TraderPublicKey,
			Symbol:    f.Symbol,
			Timestamp: received,
		}
	default:
		return nil
	}
}
