// ====================================
// File: cmd/bot/main.go
// ====================================
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/mhatey/PumpFun-Pump-Portal/internal/bot"
	"github.com/mhatey/PumpFun-Pump-Portal/internal/config"
	"github.com/mhatey/PumpFun-Pump-Portal/internal/engine"
	"github.com/mhatey/PumpFun-Pump-Portal/internal/executor"
	"github.com/mhatey/PumpFun-Pump-Portal/internal/export"
	"github.com/mhatey/PumpFun-Pump-Portal/internal/ledger"
	"github.com/mhatey/PumpFun-Pump-Portal/internal/logger"
	"github.com/mhatey/PumpFun-Pump-Portal/internal/portal"
	"github.com/mhatey/PumpFun-Pump-Portal/internal/risk"
	"github.com/mhatey/PumpFun-Pump-Portal/internal/strategy"
	"github.com/mhatey/PumpFun-Pump-Portal/internal/wallet"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	exportFormat := flag.String("export", "", "export position history (csv or json) and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		LogFile:     cfg.LogFile,
		MaxSize:     100,
		MaxAge:      7,
		MaxBackups:  3,
		Compress:    true,
		Development: cfg.DebugLogging,
	})
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to create logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting pump portal bot",
		zap.String("websocket_url", cfg.WebSocketURL),
		zap.Bool("dry_run", cfg.DryRun))

	if *exportFormat != "" {
		if err := exportPositions(cfg, *exportFormat, log.Logger); err != nil {
			log.Error("Export failed", zap.Error(err))
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log.Logger); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Bot stopped with error", zap.Error(err))
		os.Exit(1)
	}
	log.Info("Bot shut down")
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	w, err := wallet.New(cfg.WalletPrivateKey, cfg.RPCEndpoint, log)
	if err != nil {
		return err
	}
	log.Info("Wallet loaded", zap.String("public_key", w.String()))

	store, err := ledger.NewFileStore(cfg.SnapshotPath)
	if err != nil {
		return err
	}
	book := ledger.New(store, log)

	riskMgr := risk.NewManager(risk.Config{
		MinTradeSol:       cfg.Risk.MinTradeSol,
		MaxTradeSol:       cfg.Risk.MaxTradeSol,
		DailyVolumeCapSol: cfg.Risk.DailyVolumeCapSol,
		MaxPositionPct:    cfg.Risk.MaxPositionPct,
		FeeBufferSol:      cfg.Risk.FeeBufferSol,
	}, w, bookAdapter{book}, log)

	defaults := engine.TradeDefaults{
		SlippagePercent: cfg.Trading.SlippagePercent,
		PriorityFeeSol:  cfg.Trading.PriorityFeeSol,
		Pool:            cfg.Trading.Pool,
		SkipPreflight:   cfg.Trading.SkipPreflight,
	}

	exitStrategy := strategy.NewExitStrategy(strategy.ExitConfig{
		Enabled:       cfg.Strategies.Exit.Enabled,
		CheckInterval: cfg.Strategies.Exit.CheckInterval,
	}, book, riskMgr, defaults, log)

	eng := engine.New(log)
	// Exits outrank entries: a threshold crossing must not be shadowed by a
	// momentum buy on the same tick.
	eng.Register(exitStrategy)
	eng.Register(strategy.NewNewTokenStrategy(strategy.NewTokenConfig{
		Enabled:         cfg.Strategies.NewToken.Enabled,
		MaxTokenAge:     cfg.Strategies.NewToken.MaxTokenAge,
		DefaultBuySol:   cfg.Strategies.NewToken.DefaultBuySol,
		StopLossPct:     cfg.Strategies.NewToken.StopLossPct,
		TakeProfitPct:   cfg.Strategies.NewToken.TakeProfitPct,
		BlockedCreators: cfg.Strategies.NewToken.BlockedCreators,
		BlockedPhrases:  cfg.Strategies.NewToken.BlockedPhrases,
		MaxSeenTokens:   cfg.Strategies.NewToken.MaxSeenTokens,
	}, riskMgr, defaults, log))
	eng.Register(strategy.NewMomentumStrategy(strategy.MomentumConfig{
		Enabled:        cfg.Strategies.Momentum.Enabled,
		Window:         cfg.Strategies.Momentum.Window,
		MinTradeCount:  cfg.Strategies.Momentum.MinTradeCount,
		MinVolumeSol:   cfg.Strategies.Momentum.MinVolumeSol,
		PriceChangePct: cfg.Strategies.Momentum.PriceChangePct,
		Cooldown:       cfg.Strategies.Momentum.Cooldown,
		DefaultBuySol:  cfg.Strategies.Momentum.DefaultBuySol,
		StopLossPct:    cfg.Strategies.Momentum.StopLossPct,
		TakeProfitPct:  cfg.Strategies.Momentum.TakeProfitPct,
	}, riskMgr, defaults, log))

	stream := portal.NewClient(cfg.WebSocketURL, log)
	trader := executor.New(cfg.TradeAPIURL, w, cfg.DryRun, log)

	runner := bot.NewRunner(stream, eng, trader, book, riskMgr, exitStrategy, log)
	return runner.Run(ctx)
}

// exportPositions dumps the persisted position history without starting the
// bot or touching the wallet.
func exportPositions(cfg *config.Config, format string, log *zap.Logger) error {
	store, err := ledger.NewFileStore(cfg.SnapshotPath)
	if err != nil {
		return err
	}
	book := ledger.New(store, log)

	path, err := export.NewPositionExporter(log).Export(book.Positions(), export.Options{
		Format:    export.Format(format),
		OutputDir: "exports",
	})
	if err != nil {
		return err
	}
	log.Info("Position history exported", zap.String("path", path))
	return nil
}

// bookAdapter narrows the ledger to the portfolio view the risk gate needs.
type bookAdapter struct {
	*ledger.Ledger
}

func (b bookAdapter) HasOpenPosition(mint string) bool {
	_, ok := b.OpenPosition(mint)
	return ok
}
