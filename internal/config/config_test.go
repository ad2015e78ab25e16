// =================================
// File: internal/config/config_test.go
// =================================
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `
rpc_endpoint: "https://api.mainnet-beta.solana.com"
`

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "wss://pumpportal.fun/api/data", cfg.WebSocketURL)
	assert.Equal(t, "https://pumpportal.fun/api/trade-local", cfg.TradeAPIURL)
	assert.Equal(t, "data/portfolio.json", cfg.SnapshotPath)
	assert.False(t, cfg.DryRun)

	assert.InDelta(t, 10.0, cfg.Trading.SlippagePercent, 1e-9)
	assert.Equal(t, "pump", cfg.Trading.Pool)
	assert.True(t, cfg.Trading.SkipPreflight)

	assert.InDelta(t, 0.01, cfg.Risk.MinTradeSol, 1e-9)
	assert.InDelta(t, 0.5, cfg.Risk.MaxTradeSol, 1e-9)
	assert.InDelta(t, 5.0, cfg.Risk.DailyVolumeCapSol, 1e-9)

	assert.Equal(t, 30*time.Second, cfg.Strategies.NewToken.MaxTokenAge)
	assert.Equal(t, 5*time.Minute, cfg.Strategies.Momentum.Window)
	assert.Equal(t, 10*time.Minute, cfg.Strategies.Momentum.Cooldown)
	assert.Equal(t, 10*time.Second, cfg.Strategies.Exit.CheckInterval)
	assert.True(t, cfg.Strategies.Exit.Enabled)
}

func TestLoadConfigOverrides(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
rpc_endpoint: "https://api.mainnet-beta.solana.com"
dry_run: true
risk:
  max_trade_sol: 1.5
  daily_volume_cap_sol: 20
strategies:
  new_token:
    enabled: true
    max_token_age_ms: 15000
    blocked_phrases: ["rug", "scam"]
  momentum:
    enabled: true
    window_ms: 120000
    min_trade_count: 8
`))
	require.NoError(t, err)

	assert.True(t, cfg.DryRun)
	assert.InDelta(t, 1.5, cfg.Risk.MaxTradeSol, 1e-9)
	assert.InDelta(t, 20.0, cfg.Risk.DailyVolumeCapSol, 1e-9)
	assert.True(t, cfg.Strategies.NewToken.Enabled)
	assert.Equal(t, 15*time.Second, cfg.Strategies.NewToken.MaxTokenAge)
	assert.Equal(t, []string{"rug", "scam"}, cfg.Strategies.NewToken.BlockedPhrases)
	assert.Equal(t, 2*time.Minute, cfg.Strategies.Momentum.Window)
	assert.Equal(t, 8, cfg.Strategies.Momentum.MinTradeCount)
}

func TestLoadConfigValidation(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"missing rpc endpoint", `
websocket_url: "wss://pumpportal.fun/api/data"
`},
		{"bad websocket scheme", `
rpc_endpoint: "https://api.mainnet-beta.solana.com"
websocket_url: "https://pumpportal.fun/api/data"
`},
		{"min above max", `
rpc_endpoint: "https://api.mainnet-beta.solana.com"
risk:
  min_trade_sol: 1
  max_trade_sol: 0.5
`},
		{"bad position pct", `
rpc_endpoint: "https://api.mainnet-beta.solana.com"
risk:
  max_position_pct: 150
`},
		{"momentum without trade count", `
rpc_endpoint: "https://api.mainnet-beta.solana.com"
strategies:
  momentum:
    enabled: true
    min_trade_count: 0
`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tc.content))
			assert.Error(t, err)
		})
	}
}

func TestWalletKeyComesFromEnvironmentOnly(t *testing.T) {
	t.Setenv("PUMPBOT_WALLET_PRIVATE_KEY", "base58secret")
	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	assert.Equal(t, "base58secret", cfg.WalletPrivateKey)
}

func TestRPCEndpointEnvironmentOverride(t *testing.T) {
	t.Setenv("PUMPBOT_RPC_ENDPOINT", "https://rpc.example.com")
	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	assert.Equal(t, "https://rpc.example.com", cfg.RPCEndpoint)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
