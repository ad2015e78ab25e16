// internal/portal/types_test.go
package portal

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/mhatey/PumpFun-Pump-Portal/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateFrameToEvent(t *testing.T) {
	raw := `{
		"signature": "5abc",
		"mint": "mint1",
		"traderPublicKey": "creator1",
		"txType": "create",
		"name": "Test Token",
		"symbol": "TEST",
		"uri": "https://ipfs.io/ipfs/xyz",
		"solAmount": 1.5,
		"vTokensInBondingCurve": 1000000000,
		"vSolInBondingCurve": 30,
		"marketCapSol": 28.5,
		"pool": "pump"
	}`
	var f frame
	require.NoError(t, json.Unmarshal([]byte(raw), &f))

	received := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	ev := f.toEvent(received)
	token, ok := ev.(events.NewTokenEvent)
	require.True(t, ok)

	assert.Equal(t, "mint1", token.Mint)
	assert.Equal(t, "Test Token", token.Name)
	assert.Equal(t, "TEST", token.Symbol)
	assert.Equal(t, "creator1", token.CreatorAddress)
	assert.InDelta(t, 1.5, token.InitialBuySol, 1e-9)
	assert.InDelta(t, 28.5, token.MarketCapSol, 1e-9)
	assert.InDelta(t, 30.0/1000000000, token.Price, 1e-15)
	assert.Equal(t, received, token.CreatedAt)
}

func TestTradeFrameToEvent(t *testing.T) {
	for _, txType := range []string{"buy", "sell"} {
		t.Run(txType, func(t *testing.T) {
			f := frame{
				Mint:                  "mint1",
				TraderPublicKey:       "trader1",
				TxType:                txType,
				Symbol:                "TEST",
				SolAmount:             0.25,
				VTokensInBondingCurve: 500000000,
				VSolInBondingCurve:    40,
			}

			received := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
			trade, ok := f.toEvent(received).(events.TokenTradeEvent)
			require.True(t, ok)

			assert.Equal(t, "mint1", trade.Mint)
			assert.Equal(t, events.TradeAction(txType), trade.Action)
			assert.InDelta(t, 40.0/500000000, trade.Price, 1e-15)
			assert.InDelta(t, 0.25, trade.AmountSol, 1e-9)
			assert.Equal(t, "trader1", trade.Trader)
			assert.Equal(t, received, trade.Timestamp)
		})
	}
}

func TestUnknownFrameMapsToNil(t *testing.T) {
	f := frame{Mint: "mint1", TxType: "migrate"}
	assert.Nil(t, f.toEvent(time.Now()))

	// Connection acks carry no txType at all.
	var ack frame
	require.NoError(t, json.Unmarshal([]byte(`{"message":"Successfully subscribed"}`), &ack))
	assert.Nil(t, ack.toEvent(time.Now()))
}

func TestCurvePriceZeroReserves(t *testing.T) {
	f := frame{VSolInBondingCurve: 30}
	assert.Zero(t, f.curvePrice())
}

func TestSubscribeRequestEncoding(t *testing.T) {
	data, err := json.Marshal(subscribeRequest{Method: methodSubscribeTokenTrade, Keys: []string{"mint1"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"method":"subscribeTokenTrade","keys":["mint1"]}`, string(data))

	data, err = json.Marshal(subscribeRequest{Method: methodSubscribeNewToken})
	require.NoError(t, err)
	assert.JSONEq(t, `{"method":"subscribeNewToken"}`, string(data))
}
