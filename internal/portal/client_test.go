// internal/portal/client_test.go
package portal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mhatey/PumpFun-Pump-Portal/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// streamServer upgrades one connection, records the first subscription it
// receives and then plays the given raw frames to the client.
func streamServer(t *testing.T, frames []string, subscribed chan<- subscribeRequest) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var req subscribeRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		select {
		case subscribed <- req:
		default:
		}

		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestRunDeliversCreationEvents(t *testing.T) {
	createFrame := `{"txType":"create","mint":"mint1","name":"Test","symbol":"TST",` +
		`"traderPublicKey":"creator1","solAmount":1.5,` +
		`"vTokensInBondingCurve":1000,"vSolInBondingCurve":30}`

	subscribed := make(chan subscribeRequest, 1)
	srv := streamServer(t, []string{createFrame}, subscribed)
	defer srv.Close()

	c := NewClient(wsURL(srv), zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case req := <-subscribed:
		assert.Equal(t, methodSubscribeNewToken, req.Method)
	case <-time.After(2 * time.Second):
		t.Fatal("client never subscribed")
	}

	select {
	case ev := <-c.Events():
		token, ok := ev.(events.NewTokenEvent)
		require.True(t, ok, "create frames decode to NewTokenEvent")
		assert.Equal(t, "mint1", token.Mint)
		assert.Equal(t, "creator1", token.CreatorAddress)
		assert.InDelta(t, 0.03, token.Price, 1e-9)
	case <-time.After(2 * time.Second):
		t.Fatal("creation event never arrived")
	}

	cancel()
	// The reader is parked in a blocking read; drop the socket so it
	// notices the cancellation.
	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.mu.Unlock()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("client did not stop on cancel")
	}
}

func TestWatchTokenLogsFailedSubscribe(t *testing.T) {
	subscribed := make(chan subscribeRequest, 1)
	srv := streamServer(t, nil, subscribed)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	core, recorded := observer.New(zapcore.WarnLevel)
	c := NewClient(wsURL(srv), zap.New(core))
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.WatchToken("mint1")

	entries := recorded.FilterMessage("Trade subscribe failed, will replay after reconnect").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "mint1", entries[0].ContextMap()["mint"])

	// The mint stays remembered, so the next reconnect replays it.
	c.mu.Lock()
	_, remembered := c.watched["mint1"]
	c.mu.Unlock()
	assert.True(t, remembered)
}
