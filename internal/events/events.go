// internal/events/events.go
package events

import "time"

// TradeAction is the direction of a trade as reported by the stream.
type TradeAction string

const (
	ActionBuy  TradeAction = "buy"
	ActionSell TradeAction = "sell"
)

// Event is a typed market event consumed by the strategy engine.
// Unrecognized portal payloads never reach this interface; strategies treat
// event types they do not handle as a no-op.
type Event interface {
	EventMint() string
	EventTime() time.Time
}

// NewTokenEvent is emitted once when a token is created on the bonding curve.
type NewTokenEvent struct {
	Mint           string
	Name           string
	Symbol         string
	URI            string
	CreatorAddress string
	InitialBuySol  float64
	MarketCapSol   float64
	Price          float64 // SOL per token unit at creation, from the curve's virtual reserves
	CreatedAt      time.Time
}

func (e NewTokenEvent) EventMint() string    { return e.Mint }
func (e NewTokenEvent) EventTime() time.Time { return e.CreatedAt }

// TokenTradeEvent is emitted for every buy or sell observed on a subscribed
// token. Price is SOL per token unit, derived from the bonding curve's
// virtual reserves at the time of the trade. Symbol may be empty; the stream
// only carries it on some frames.
type TokenTradeEvent struct {
	Mint      string
	Action    TradeAction
	Price     float64
	AmountSol float64
	Trader    string
	Symbol    string
	Timestamp time.Time
}

func (e TokenTradeEvent) EventMint() string    { return e.Mint }
func (e TokenTradeEvent) EventTime() time.Time { return e.Timestamp }
