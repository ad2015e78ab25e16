// internal/wallet/wallet.go
package wallet

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/mr-tron/base58"
	"go.uber.org/zap"
)

const lamportsPerSol = 1_000_000_000

// Wallet holds the trading keypair and answers balance / holdings queries
// over RPC. It signs and submits transactions but never decides trades;
// sizing and gating live in the risk manager.
type Wallet struct {
	PrivateKey solana.PrivateKey
	PublicKey  solana.PublicKey

	rpc    *rpc.Client
	logger *zap.Logger
}

// New creates a wallet from a base58-encoded 64-byte private key.
func New(privateKeyBase58, rpcEndpoint string, logger *zap.Logger) (*Wallet, error) {
	privateKeyBytes, err := base58.Decode(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	if len(privateKeyBytes) != 64 {
		return nil, fmt.Errorf("invalid private key length: expected 64 bytes, got %d", len(privateKeyBytes))
	}

	privateKey := solana.PrivateKey(privateKeyBytes)
	return &Wallet{
		PrivateKey: privateKey,
		PublicKey:  privateKey.PublicKey(),
		rpc:        rpc.New(rpcEndpoint),
		logger:     logger.Named("wallet"),
	}, nil
}

// Balance returns the wallet's SOL balance.
func (w *Wallet) Balance(ctx context.Context) (float64, error) {
	out, err := w.rpc.GetBalance(ctx, w.PublicKey, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return float64(out.Value) / lamportsPerSol, nil
}

// HoldsToken reports whether the wallet currently holds a nonzero balance of
// the mint.
func (w *Wallet) HoldsToken(ctx context.Context, mint string) (bool, error) {
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return false, fmt.Errorf("parse mint: %w", err)
	}

	out, err := w.rpc.GetTokenAccountsByOwner(ctx, w.PublicKey,
		&rpc.GetTokenAccountsConfig{Mint: &mintKey},
		&rpc.GetTokenAccountsOpts{Commitment: rpc.CommitmentConfirmed})
	if err != nil {
		return false, fmt.Errorf("get token accounts: %w", err)
	}
	if out == nil || len(out.Value) == 0 {
		return false, nil
	}

	for _, acc := range out.Value {
		balance, err := w.rpc.GetTokenAccountBalance(ctx, acc.Pubkey, rpc.CommitmentConfirmed)
		if err != nil {
			w.logger.Debug("Token account balance query failed",
				zap.String("account", acc.Pubkey.String()),
				zap.Error(err))
			continue
		}
		if balance.Value != nil && balance.Value.Amount != "" && balance.Value.Amount != "0" {
			return true, nil
		}
	}
	return false, nil
}

// SignTransaction signs the transaction with the wallet's private key.
func (w *Wallet) SignTransaction(tx *solana.Transaction) error {
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(w.PublicKey) {
			return &w.PrivateKey
		}
		return nil
	})
	return err
}

// SendTransaction submits a signed transaction and returns its signature.
func (w *Wallet) SendTransaction(ctx context.Context, tx *solana.Transaction, skipPreflight bool) (string, error) {
	sig, err := w.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       skipPreflight,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return "", fmt.Errorf("send transaction: %w", err)
	}
	return sig.String(), nil
}

// String returns the wallet's public key.
func (w *Wallet) String() string {
	return w.PublicKey.String()
}
