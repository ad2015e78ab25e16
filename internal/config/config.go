// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application settings loaded from config.yaml. Interval fields
// are declared twice: the *_ms integer viper reads and the time.Duration the
// rest of the code uses; LoadConfig converts after unmarshal.
type Config struct {
	WebSocketURL string `mapstructure:"websocket_url"`
	TradeAPIURL  string `mapstructure:"trade_api_url"`
	RPCEndpoint  string `mapstructure:"rpc_endpoint"`
	SnapshotPath string `mapstructure:"snapshot_path"`
	LogFile      string `mapstructure:"log_file"`
	DebugLogging bool   `mapstructure:"debug_logging"`
	DryRun       bool   `mapstructure:"dry_run"`

	// WalletPrivateKey comes from the environment only, never the file.
	WalletPrivateKey string `mapstructure:"-"`

	Trading    TradingConfig    `mapstructure:"trading"`
	Risk       RiskConfig       `mapstructure:"risk"`
	Strategies StrategiesConfig `mapstructure:"strategies"`
}

// TradingConfig holds the execution parameters stamped on every proposal.
type TradingConfig struct {
	SlippagePercent float64 `mapstructure:"slippage_percent"`
	PriorityFeeSol  float64 `mapstructure:"priority_fee_sol"`
	Pool            string  `mapstructure:"pool"`
	SkipPreflight   bool    `mapstructure:"skip_preflight"`
}

// RiskConfig holds the limits enforced by the risk gate.
type RiskConfig struct {
	MinTradeSol       float64 `mapstructure:"min_trade_sol"`
	MaxTradeSol       float64 `mapstructure:"max_trade_sol"`
	DailyVolumeCapSol float64 `mapstructure:"daily_volume_cap_sol"`
	MaxPositionPct    float64 `mapstructure:"max_position_pct"`
	FeeBufferSol      float64 `mapstructure:"fee_buffer_sol"`
}

// StrategiesConfig groups the per-strategy sections.
type StrategiesConfig struct {
	NewToken NewTokenConfig `mapstructure:"new_token"`
	Momentum MomentumConfig `mapstructure:"momentum"`
	Exit     ExitConfig     `mapstructure:"exit"`
}

type NewTokenConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	MaxTokenAge     time.Duration `mapstructure:"-"`
	MaxTokenAgeMS   int           `mapstructure:"max_token_age_ms"`
	DefaultBuySol   float64       `mapstructure:"default_buy_sol"`
	StopLossPct     float64       `mapstructure:"stop_loss_pct"`
	TakeProfitPct   float64       `mapstructure:"take_profit_pct"`
	BlockedCreators []string      `mapstructure:"blocked_creators"`
	BlockedPhrases  []string      `mapstructure:"blocked_phrases"`
	MaxSeenTokens   int           `mapstructure:"max_seen_tokens"`
}

type MomentumConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Window         time.Duration `mapstructure:"-"`
	WindowMS       int           `mapstructure:"window_ms"`
	MinTradeCount  int           `mapstructure:"min_trade_count"`
	MinVolumeSol   float64       `mapstructure:"min_volume_sol"`
	PriceChangePct float64       `mapstructure:"price_change_pct"`
	Cooldown       time.Duration `mapstructure:"-"`
	CooldownMS     int           `mapstructure:"cooldown_ms"`
	DefaultBuySol  float64       `mapstructure:"default_buy_sol"`
	StopLossPct    float64       `mapstructure:"stop_loss_pct"`
	TakeProfitPct  float64       `mapstructure:"take_profit_pct"`
}

type ExitConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	CheckInterval   time.Duration `mapstructure:"-"`
	CheckIntervalMS int           `mapstructure:"check_interval_ms"`
}

// LoadConfig reads configuration from the specified file path and performs
// validation.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Defaults
	v.SetDefault("websocket_url", "wss://pumpportal.fun/api/data")
	v.SetDefault("trade_api_url", "https://pumpportal.fun/api/trade-local")
	v.SetDefault("snapshot_path", "data/portfolio.json")
	v.SetDefault("log_file", "logs/bot.log")
	v.SetDefault("debug_logging", false)
	v.SetDefault("dry_run", false)
	v.SetDefault("trading.slippage_percent", 10)
	v.SetDefault("trading.priority_fee_sol", 0.00005)
	v.SetDefault("trading.pool", "pump")
	v.SetDefault("trading.skip_preflight", true)
	v.SetDefault("risk.min_trade_sol", 0.01)
	v.SetDefault("risk.max_trade_sol", 0.5)
	v.SetDefault("risk.daily_volume_cap_sol", 5)
	v.SetDefault("risk.max_position_pct", 5)
	v.SetDefault("risk.fee_buffer_sol", 0.01)
	v.SetDefault("strategies.new_token.max_token_age_ms", 30000)
	v.SetDefault("strategies.new_token.default_buy_sol", 0.05)
	v.SetDefault("strategies.new_token.stop_loss_pct", 10)
	v.SetDefault("strategies.new_token.take_profit_pct", 25)
	v.SetDefault("strategies.new_token.max_seen_tokens", 10000)
	v.SetDefault("strategies.momentum.window_ms", 300000)
	v.SetDefault("strategies.momentum.min_trade_count", 5)
	v.SetDefault("strategies.momentum.min_volume_sol", 0.5)
	v.SetDefault("strategies.momentum.price_change_pct", 5)
	v.SetDefault("strategies.momentum.cooldown_ms", 600000)
	v.SetDefault("strategies.momentum.default_buy_sol", 0.05)
	v.SetDefault("strategies.momentum.stop_loss_pct", 10)
	v.SetDefault("strategies.momentum.take_profit_pct", 25)
	v.SetDefault("strategies.exit.check_interval_ms", 10000)
	v.SetDefault("strategies.exit.enabled", true)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config error: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal error: %w", err)
	}

	// Convert ms to Duration
	cfg.Strategies.NewToken.MaxTokenAge = time.Duration(cfg.Strategies.NewToken.MaxTokenAgeMS) * time.Millisecond
	cfg.Strategies.Momentum.Window = time.Duration(cfg.Strategies.Momentum.WindowMS) * time.Millisecond
	cfg.Strategies.Momentum.Cooldown = time.Duration(cfg.Strategies.Momentum.CooldownMS) * time.Millisecond
	cfg.Strategies.Exit.CheckInterval = time.Duration(cfg.Strategies.Exit.CheckIntervalMS) * time.Millisecond

	loadEnvironmentVariables(v, &cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate checks required fields and numeric sanity.
func (c *Config) validate() error {
	if c.WebSocketURL == "" {
		return fmt.Errorf("websocket_url is required")
	}
	if !strings.HasPrefix(c.WebSocketURL, "ws") {
		return fmt.Errorf("websocket_url must use ws or wss scheme")
	}
	if c.RPCEndpoint == "" {
		return fmt.Errorf("rpc_endpoint is required")
	}
	if c.TradeAPIURL == "" {
		return fmt.Errorf("trade_api_url is required")
	}
	if c.Risk.MinTradeSol < 0 || c.Risk.MaxTradeSol <= 0 {
		return fmt.Errorf("invalid risk trade size limits")
	}
	if c.Risk.MinTradeSol > c.Risk.MaxTradeSol {
		return fmt.Errorf("min_trade_sol exceeds max_trade_sol")
	}
	if c.Risk.DailyVolumeCapSol <= 0 {
		return fmt.Errorf("invalid daily_volume_cap_sol")
	}
	if c.Risk.MaxPositionPct <= 0 || c.Risk.MaxPositionPct > 100 {
		return fmt.Errorf("max_position_pct must be in (0, 100]")
	}
	if c.Strategies.Momentum.Enabled && c.Strategies.Momentum.MinTradeCount <= 0 {
		return fmt.Errorf("invalid momentum min_trade_count")
	}
	return nil
}

func loadEnvironmentVariables(v *viper.Viper, cfg *Config) {
	v.SetEnvPrefix("PUMPBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if key := v.GetString("WALLET_PRIVATE_KEY"); key != "" {
		cfg.WalletPrivateKey = key
	}
	if endpoint := v.GetString("RPC_ENDPOINT"); endpoint != "" {
		cfg.RPCEndpoint = endpoint
	}
}
