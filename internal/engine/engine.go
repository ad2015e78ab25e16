// internal/engine/engine.go
package engine

import (
	"context"
	"sync"

	"github.com/mhatey/PumpFun-Pump-Portal/internal/events"
	"go.uber.org/zap"
)

// TradeProposal is the engine's output: a bounded trade action for the
// executor. Amount is an absolute SOL quantity for buys; sells set
// AmountPercent (e.g. "100%") instead and are resolved against live wallet
// balance at send time. RefPrice, token labels and the exit thresholds are
// bookkeeping hints for the caller; they are not part of the wire request.
type TradeProposal struct {
	Action           events.TradeAction
	Mint             string
	Amount           float64
	AmountPercent    string
	DenominatedInSol bool
	SlippagePercent  float64
	PriorityFeeSol   float64
	Pool             string
	SkipPreflight    bool

	RefPrice      float64
	TokenName     string
	TokenSymbol   string
	StopLossPct   float64
	TakeProfitPct float64
}

// TradeDefaults are the execution parameters stamped onto every proposal.
type TradeDefaults struct {
	SlippagePercent float64
	PriorityFeeSol  float64
	Pool            string
	SkipPreflight   bool
}

// Strategy is one independent trade decision maker. ShouldTrade may mutate
// per-strategy state (momentum ingestion, cooldown stamps); it is not a pure
// predicate. GetTrade may suspend on balance queries and returns nil when
// the strategy abstains after all.
type Strategy interface {
	Name() string
	Enabled() bool
	ShouldTrade(ctx context.Context, ev events.Event) bool
	GetTrade(ctx context.Context, ev events.Event) (*TradeProposal, error)
}

// Result pairs an accepted proposal with the strategy that produced it.
type Result struct {
	Strategy string
	Proposal *TradeProposal
}

// Engine dispatches each incoming event to all enabled strategies in
// registration order and returns the first accepted proposal. Events are
// processed strictly serially: ProcessEvent holds the engine lock for the
// whole evaluation, so no event begins processing before the previous one's
// core-mutating phase finishes.
type Engine struct {
	mu         sync.Mutex
	strategies []Strategy
	logger     *zap.Logger
}

func New(logger *zap.Logger) *Engine {
	return &Engine{logger: logger.Named("engine")}
}

// Register appends a strategy; registration order is priority order.
func (e *Engine) Register(s Strategy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.strategies = append(e.strategies, s)
	e.logger.Info("Strategy registered",
		zap.String("strategy", s.Name()),
		zap.Int("priority", len(e.strategies)))
}

// ProcessEvent evaluates the event against every enabled strategy in order.
// The first strategy whose ShouldTrade accepts and whose GetTrade yields a
// proposal wins; lower-priority strategies are never consulted for that
// event. A panic or error inside a strategy is logged and treated as
// abstention for that strategy only.
func (e *Engine) ProcessEvent(ctx context.Context, ev events.Event) *Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, s := range e.strategies {
		if !s.Enabled() {
			continue
		}
		proposal := e.evaluate(ctx, s, ev)
		if proposal != nil {
			e.logger.Info("Proposal accepted",
				zap.String("strategy", s.Name()),
				zap.String("action", string(proposal.Action)),
				zap.String("mint", proposal.Mint))
			return &Result{Strategy: s.Name(), Proposal: proposal}
		}
	}
	return nil
}

func (e *Engine) evaluate(ctx context.Context, s Strategy, ev events.Event) (proposal *TradeProposal) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Strategy panicked, treating as abstention",
				zap.String("strategy", s.Name()),
				zap.Any("panic", r))
			proposal = nil
		}
	}()

	if !s.ShouldTrade(ctx, ev) {
		return nil
	}

	p, err := s.GetTrade(ctx, ev)
	if err != nil {
		e.logger.Error("Strategy failed to build trade, treating as abstention",
			zap.String("strategy", s.Name()),
			zap.Error(err))
		return nil
	}
	return p
}
