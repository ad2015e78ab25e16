// internal/executor/executor.go
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/mhatey/PumpFun-Pump-Portal/internal/engine"
	"github.com/mhatey/PumpFun-Pump-Portal/internal/wallet"
	"go.uber.org/zap"
)

const requestTimeout = 30 * time.Second

// Outcome is the execution report consumed by the ledger bookkeeping. It is
// the only feedback channel from execution back into the core.
type Outcome struct {
	Success   bool
	Signature string
	Err       string
}

// tradeRequest is the trade-local API payload. Amount is either a SOL
// quantity or a percentage string like "100%"; the boolean-ish fields are
// strings because that is what the API expects.
type tradeRequest struct {
	PublicKey        string      `json:"publicKey"`
	Action           string      `json:"action"`
	Mint             string      `json:"mint"`
	Amount           interface{} `json:"amount"`
	DenominatedInSol string      `json:"denominatedInSol"`
	Slippage         float64     `json:"slippage"`
	PriorityFee      float64     `json:"priorityFee"`
	Pool             string      `json:"pool"`
}

// Executor turns an accepted proposal into a settled transaction: it asks
// the trade API to build the transaction, signs it with the wallet and
// submits it over RPC. In dry-run mode nothing leaves the process; the
// outcome still reports success so the ledger bookkeeping can be exercised.
type Executor struct {
	apiURL string
	wallet *wallet.Wallet
	client *http.Client
	dryRun bool
	logger *zap.Logger
}

func New(apiURL string, w *wallet.Wallet, dryRun bool, logger *zap.Logger) *Executor {
	return &Executor{
		apiURL: apiURL,
		wallet: w,
		client: &http.Client{Timeout: requestTimeout},
		dryRun: dryRun,
		logger: logger.Named("executor"),
	}
}

// Execute carries out the proposal and reports the outcome. Failures are
// reported, never panicked; the caller decides what bookkeeping to skip.
func (e *Executor) Execute(ctx context.Context, p *engine.TradeProposal) Outcome {
	if e.dryRun {
		sig := fmt.Sprintf("dryrun_%s_%d", shortMint(p.Mint), time.Now().Unix())
		e.logger.Info("Dry run, skipping execution",
			zap.String("action", string(p.Action)),
			zap.String("mint", p.Mint),
			zap.String("signature", sig))
		return Outcome{Success: true, Signature: sig}
	}

	tx, err := e.buildTransaction(ctx, p)
	if err != nil {
		e.logger.Error("Failed to build transaction",
			zap.String("mint", p.Mint), zap.Error(err))
		return Outcome{Err: err.Error()}
	}

	if err := e.wallet.SignTransaction(tx); err != nil {
		e.logger.Error("Failed to sign transaction",
			zap.String("mint", p.Mint), zap.Error(err))
		return Outcome{Err: fmt.Sprintf("sign transaction: %v", err)}
	}

	sig, err := e.wallet.SendTransaction(ctx, tx, p.SkipPreflight)
	if err != nil {
		e.logger.Error("Failed to send transaction",
			zap.String("mint", p.Mint), zap.Error(err))
		return Outcome{Err: err.Error()}
	}

	e.logger.Info("Trade executed",
		zap.String("action", string(p.Action)),
		zap.String("mint", p.Mint),
		zap.String("signature", sig))
	return Outcome{Success: true, Signature: sig}
}

func (e *Executor) buildTransaction(ctx context.Context, p *engine.TradeProposal) (*solana.Transaction, error) {
	req := tradeRequest{
		PublicKey:        e.wallet.PublicKey.String(),
		Action:           string(p.Action),
		Mint:             p.Mint,
		Amount:           p.Amount,
		DenominatedInSol: fmt.Sprintf("%t", p.DenominatedInSol),
		Slippage:         p.SlippagePercent,
		PriorityFee:      p.PriorityFeeSol,
		Pool:             p.Pool,
	}
	if p.AmountPercent != "" {
		req.Amount = p.AmountPercent
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal trade request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create trade request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call trade API: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read trade API response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("trade API returned %d: %s", resp.StatusCode, string(raw))
	}

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	return tx, nil
}

func shortMint(mint string) string {
	if len(mint) >= 8 {
		return mint[:8]
	}
	return mint
}
