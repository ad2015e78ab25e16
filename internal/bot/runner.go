// internal/bot/runner.go
package bot

import (
	"context"
	"strconv"
	"strings"

	"github.com/mhatey/PumpFun-Pump-Portal/internal/engine"
	"github.com/mhatey/PumpFun-Pump-Portal/internal/events"
	"github.com/mhatey/PumpFun-Pump-Portal/internal/executor"
	"github.com/mhatey/PumpFun-Pump-Portal/internal/ledger"
	"github.com/mhatey/PumpFun-Pump-Portal/internal/logger"
	"github.com/mhatey/PumpFun-Pump-Portal/internal/risk"
	"github.com/mhatey/PumpFun-Pump-Portal/internal/strategy"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Stream is the market-data transport the runner consumes.
type Stream interface {
	Run(ctx context.Context) error
	Events() <-chan events.Event
	WatchToken(mint string)
	UnwatchToken(mint string)
}

// Trader executes accepted proposals.
type Trader interface {
	Execute(ctx context.Context, p *engine.TradeProposal) executor.Outcome
}

// Runner wires the stream into the strategy engine and reports execution
// outcomes back into the ledger and the risk gate. The engine serializes
// event evaluation; the runner additionally keeps execution and bookkeeping
// on the same goroutine, so every core mutation for one event finishes
// before the next event is processed.
type Runner struct {
	stream  Stream
	engine  *engine.Engine
	trader  Trader
	book    *ledger.Ledger
	risk    *risk.Manager
	exit    *strategy.ExitStrategy
	watches *watchList
	logger  *zap.Logger
}

func NewRunner(
	stream Stream,
	eng *engine.Engine,
	trader Trader,
	book *ledger.Ledger,
	riskMgr *risk.Manager,
	exit *strategy.ExitStrategy,
	log *zap.Logger,
) *Runner {
	return &Runner{
		stream:  stream,
		engine:  eng,
		trader:  trader,
		book:    book,
		risk:    riskMgr,
		exit:    exit,
		watches: newWatchList(maxDiscoveryWatches),
		logger:  log.Named("runner"),
	}
}

// Run blocks until the context is cancelled or the transport fails. Open
// positions restored from the snapshot are re-subscribed before the stream
// starts so their exits keep working across restarts.
func (r *Runner) Run(ctx context.Context) error {
	for _, pos := range r.book.Positions() {
		if pos.IsOpen() {
			r.stream.WatchToken(pos.Mint)
			r.logger.Info("Watching restored position", zap.String("mint", pos.Mint))
		}
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return r.stream.Run(gCtx)
	})

	g.Go(func() error {
		for {
			select {
			case <-gCtx.Done():
				return gCtx.Err()
			case ev, ok := <-r.stream.Events():
				if !ok {
					return nil
				}
				r.handleEvent(gCtx, ev)
			}
		}
	})

	return g.Wait()
}

func (r *Runner) handleEvent(ctx context.Context, ev events.Event) {
	// Every fresh token gets a trade subscription so the momentum window
	// sees its flow before the bot holds anything.
	if token, ok := ev.(events.NewTokenEvent); ok {
		r.watchDiscovered(token.Mint)
	}

	if result := r.engine.ProcessEvent(ctx, ev); result != nil {
		r.executeProposal(ctx, result)
	}

	// Once per event cycle, push the latest prices into the ledger.
	r.exit.RefreshUnrealizedPnl()
}

// watchDiscovered subscribes to a freshly created token's trade stream. The
// discovery list is FIFO-bounded; an evicted mint loses its subscription and
// cached exit state unless a position is open in it.
func (r *Runner) watchDiscovered(mint string) {
	evicted, added := r.watches.add(mint)
	if !added {
		return
	}
	if evicted != "" {
		if _, held := r.book.OpenPosition(evicted); !held {
			r.stream.UnwatchToken(evicted)
			r.exit.Forget(evicted)
			r.logger.Debug("Discovery watch evicted", zap.String("mint", evicted))
		}
	}
	r.stream.WatchToken(mint)
}

func (r *Runner) executeProposal(ctx context.Context, result *engine.Result) {
	p := result.Proposal
	log := logger.WithOperation(r.logger, "execute_trade").With(
		zap.String("strategy", result.Strategy),
		zap.String("mint", p.Mint))

	outcome := r.trader.Execute(ctx, p)
	if !outcome.Success {
		log.Warn("Trade execution failed, skipping bookkeeping",
			zap.String("error", outcome.Err))
		return
	}
	log.Info("Booking confirmed trade",
		zap.String("action", string(p.Action)),
		zap.String("signature", outcome.Signature))

	switch p.Action {
	case events.ActionBuy:
		r.reportBuy(log, p, outcome)
	case events.ActionSell:
		r.reportSell(log, p, outcome)
	}
}

func (r *Runner) reportBuy(log *zap.Logger, p *engine.TradeProposal, outcome executor.Outcome) {
	// Volume is tracked once per confirmed buy, never on proposal.
	r.risk.TrackTradeVolume(p.Amount)

	if p.RefPrice <= 0 {
		log.Warn("Buy confirmed without a reference price, position not recorded",
			zap.String("signature", outcome.Signature))
		return
	}

	quantity := p.Amount / p.RefPrice
	r.book.AddPosition(p.Mint, p.TokenName, p.TokenSymbol,
		p.RefPrice, quantity, p.Amount, p.StopLossPct, p.TakeProfitPct)
	r.stream.WatchToken(p.Mint)
}

func (r *Runner) reportSell(log *zap.Logger, p *engine.TradeProposal, outcome executor.Outcome) {
	pos, ok := r.book.OpenPosition(p.Mint)
	if !ok {
		log.Warn("Sell confirmed without an open position",
			zap.String("signature", outcome.Signature))
		return
	}

	percent := parsePercent(p.AmountPercent)
	quantitySold := pos.Amount * percent / 100

	if _, err := r.book.ClosePosition(p.Mint, p.RefPrice, quantitySold, percent); err != nil {
		log.Error("Failed to book sell", zap.Error(err))
		return
	}
	if percent >= 100 {
		r.stream.UnwatchToken(p.Mint)
		r.watches.remove(p.Mint)
		r.exit.Forget(p.Mint)
	}
}

// parsePercent reads directives like "100%"; a missing or malformed value
// means the entire position.
func parsePercent(s string) float64 {
	if s == "" {
		return 100
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
	if err != nil || v <= 0 {
		return 100
	}
	return v
}
