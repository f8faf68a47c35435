// Package config defines the simulator's configuration and its
// validation rules. Values come from a TOML file merged over defaults,
// then COPYSIM_* environment overrides.
package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"solana-copysim/internal/solana"
)

// Config is the root configuration structure.
type Config struct {
	Simulation SimulationConfig  `toml:"simulation"`
	WebSocket  WebSocketConfig   `toml:"websocket"`
	Wallets    map[string]string `toml:"wallets"` // address -> display alias; membership subscribes the wallet
	Replay     ReplayConfig      `toml:"replay"`
	Postgres   PostgresConfig    `toml:"postgres"`
	ClickHouse ClickHouseConfig  `toml:"clickhouse"`
	Metrics    MetricsConfig     `toml:"metrics"`
	Notify     NotifyConfig      `toml:"notify"`
	LogLevel   string            `toml:"log_level"`
}

// SimulationConfig holds the parameters of the virtual execution path.
// It is the part of the configuration frozen into each session row.
type SimulationConfig struct {
	InitialSolBalance           float64 `toml:"initial_sol_balance" json:"initial_sol_balance"`
	PositionSizeSol             float64 `toml:"position_size_sol" json:"position_size_sol"`
	ExecutionDelayMs            int     `toml:"execution_delay_ms" json:"execution_delay_ms"`
	BaseSlippageBps             float64 `toml:"base_slippage_bps" json:"base_slippage_bps"`
	PriceImpactFactor           float64 `toml:"price_impact_factor" json:"price_impact_factor"`
	MaxSlippageBps              float64 `toml:"max_slippage_bps" json:"max_slippage_bps"`
	MaxTradesPerWalletPerMinute int     `toml:"max_trades_per_wallet_per_minute" json:"max_trades_per_wallet_per_minute"`
	SnapshotIntervalSeconds     int     `toml:"snapshot_interval_seconds" json:"snapshot_interval_seconds"`
	SkipMigratedTokens          bool    `toml:"skip_migrated_tokens" json:"skip_migrated_tokens"`
}

// WebSocketConfig holds upstream feed connection parameters.
type WebSocketConfig struct {
	URL                   string  `toml:"url"`
	ReconnectBaseDelayMs  int     `toml:"reconnect_base_delay_ms"`
	ReconnectMaxDelayMs   int     `toml:"reconnect_max_delay_ms"`
	ReconnectJitterFactor float64 `toml:"reconnect_jitter_factor"`
	ReceiveBufferSize     int     `toml:"receive_buffer_size"`
	DedupBufferSize       int     `toml:"dedup_buffer_size"`
}

// ReplayConfig drives the historical replay mode. When Enabled, the
// process reads [From, To] from the event log instead of the live feed.
type ReplayConfig struct {
	Enabled       bool     `toml:"enabled"`
	From          string   `toml:"from"` // RFC 3339
	To            string   `toml:"to"`   // RFC 3339
	FilterWallets []string `toml:"filter_wallets"`
	BatchSize     int      `toml:"batch_size"`
}

// Window parses the configured replay range.
func (r ReplayConfig) Window() (from, to time.Time, err error) {
	from, err = time.Parse(time.RFC3339, r.From)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("replay from: %w", err)
	}
	to, err = time.Parse(time.RFC3339, r.To)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("replay to: %w", err)
	}
	return from, to, nil
}

// PostgresConfig holds event-log connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	RunMigrations bool   `toml:"run_migrations"`
}

// ClickHouseConfig holds the optional analytics mirror parameters.
type ClickHouseConfig struct {
	Enabled bool   `toml:"enabled"`
	DSN     string `toml:"dsn"`
}

// MetricsConfig holds the Prometheus endpoint address. Empty disables
// the listener.
type MetricsConfig struct {
	Addr string `toml:"addr"`
}

// NotifyConfig holds Telegram notification credentials.
type NotifyConfig struct {
	Enabled        bool   `toml:"enabled"`
	TelegramToken  string `toml:"telegram_token"`
	TelegramChatID string `toml:"telegram_chat_id"`
}

// Defaults returns a Config populated with working default values.
// These match config.example.toml.
func Defaults() Config {
	return Config{
		Simulation: SimulationConfig{
			InitialSolBalance:           10.0,
			PositionSizeSol:             0.1,
			ExecutionDelayMs:            0,
			BaseSlippageBps:             100,
			PriceImpactFactor:           1.0,
			MaxSlippageBps:              1000,
			MaxTradesPerWalletPerMinute: 10,
			SnapshotIntervalSeconds:     60,
			SkipMigratedTokens:          true,
		},
		WebSocket: WebSocketConfig{
			URL:                   "wss://pumpportal.fun/api/data",
			ReconnectBaseDelayMs:  1000,
			ReconnectMaxDelayMs:   30000,
			ReconnectJitterFactor: 0.2,
			ReceiveBufferSize:     10000,
			DedupBufferSize:       10000,
		},
		Wallets: map[string]string{},
		Replay: ReplayConfig{
			Enabled:   false,
			BatchSize: 500,
		},
		Postgres: PostgresConfig{
			RunMigrations: true,
		},
		ClickHouse: ClickHouseConfig{
			Enabled: false,
		},
		Metrics: MetricsConfig{
			Addr: ":2112",
		},
		LogLevel: "info",
	}
}

// Typed accessors for the decimal execution path. Configuration floats
// are converted once here; all arithmetic downstream stays decimal.

func (s SimulationConfig) InitialBalance() decimal.Decimal {
	return decimal.NewFromFloat(s.InitialSolBalance)
}

func (s SimulationConfig) PositionSize() decimal.Decimal {
	return decimal.NewFromFloat(s.PositionSizeSol)
}

func (s SimulationConfig) BaseSlippage() decimal.Decimal {
	return decimal.NewFromFloat(s.BaseSlippageBps)
}

func (s SimulationConfig) ImpactFactor() decimal.Decimal {
	return decimal.NewFromFloat(s.PriceImpactFactor)
}

func (s SimulationConfig) MaxSlippage() decimal.Decimal {
	return decimal.NewFromFloat(s.MaxSlippageBps)
}

func (s SimulationConfig) ExecutionDelay() time.Duration {
	return time.Duration(s.ExecutionDelayMs) * time.Millisecond
}

func (s SimulationConfig) SnapshotInterval() time.Duration {
	return time.Duration(s.SnapshotIntervalSeconds) * time.Second
}

// JSON returns the simulation section serialized for the session row.
func (s SimulationConfig) JSON() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshal simulation config: %w", err)
	}
	return string(data), nil
}

func (w WebSocketConfig) ReconnectBase() time.Duration {
	return time.Duration(w.ReconnectBaseDelayMs) * time.Millisecond
}

func (w WebSocketConfig) ReconnectMax() time.Duration {
	return time.Duration(w.ReconnectMaxDelayMs) * time.Millisecond
}

// TrackedWallets returns the subscribed wallet addresses.
func (c *Config) TrackedWallets() []string {
	wallets := make([]string, 0, len(c.Wallets))
	for addr := range c.Wallets {
		wallets = append(wallets, addr)
	}
	return wallets
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Simulation ranges
	s := c.Simulation
	if s.InitialSolBalance < 0.01 || s.InitialSolBalance > 10000 {
		errs = append(errs, fmt.Sprintf("simulation: initial_sol_balance must be 0.01-10000, got %g", s.InitialSolBalance))
	}
	if s.PositionSizeSol < 0.001 || s.PositionSizeSol > 1000 {
		errs = append(errs, fmt.Sprintf("simulation: position_size_sol must be 0.001-1000, got %g", s.PositionSizeSol))
	}
	if s.PositionSizeSol > s.InitialSolBalance {
		errs = append(errs, "simulation: position_size_sol must not exceed initial_sol_balance")
	}
	if s.ExecutionDelayMs < 0 || s.ExecutionDelayMs > 30000 {
		errs = append(errs, fmt.Sprintf("simulation: execution_delay_ms must be 0-30000, got %d", s.ExecutionDelayMs))
	}
	if s.BaseSlippageBps < 0 || s.BaseSlippageBps > 5000 {
		errs = append(errs, fmt.Sprintf("simulation: base_slippage_bps must be 0-5000, got %g", s.BaseSlippageBps))
	}
	if s.PriceImpactFactor < 0 || s.PriceImpactFactor > 100 {
		errs = append(errs, fmt.Sprintf("simulation: price_impact_factor must be 0-100, got %g", s.PriceImpactFactor))
	}
	if s.MaxSlippageBps < 0 || s.MaxSlippageBps > 10000 {
		errs = append(errs, fmt.Sprintf("simulation: max_slippage_bps must be 0-10000, got %g", s.MaxSlippageBps))
	}
	if s.MaxTradesPerWalletPerMinute < 1 || s.MaxTradesPerWalletPerMinute > 1000 {
		errs = append(errs, fmt.Sprintf("simulation: max_trades_per_wallet_per_minute must be 1-1000, got %d", s.MaxTradesPerWalletPerMinute))
	}
	if s.SnapshotIntervalSeconds < 10 || s.SnapshotIntervalSeconds > 3600 {
		errs = append(errs, fmt.Sprintf("simulation: snapshot_interval_seconds must be 10-3600, got %d", s.SnapshotIntervalSeconds))
	}

	// WebSocket requirements apply to live mode only.
	w := c.WebSocket
	if !c.Replay.Enabled {
		if w.URL == "" {
			errs = append(errs, "websocket: url must not be empty in live mode")
		}
		if len(c.Wallets) == 0 {
			errs = append(errs, "wallets: at least one tracked wallet is required in live mode")
		}
	}
	if w.ReconnectBaseDelayMs < 1 {
		errs = append(errs, fmt.Sprintf("websocket: reconnect_base_delay_ms must be >= 1, got %d", w.ReconnectBaseDelayMs))
	}
	if w.ReconnectMaxDelayMs < w.ReconnectBaseDelayMs {
		errs = append(errs, "websocket: reconnect_max_delay_ms must be >= reconnect_base_delay_ms")
	}
	if w.ReconnectJitterFactor < 0 || w.ReconnectJitterFactor > 1 {
		errs = append(errs, fmt.Sprintf("websocket: reconnect_jitter_factor must be 0.0-1.0, got %g", w.ReconnectJitterFactor))
	}
	if w.ReceiveBufferSize < 1 {
		errs = append(errs, fmt.Sprintf("websocket: receive_buffer_size must be >= 1, got %d", w.ReceiveBufferSize))
	}
	if w.DedupBufferSize < 1 {
		errs = append(errs, fmt.Sprintf("websocket: dedup_buffer_size must be >= 1, got %d", w.DedupBufferSize))
	}

	// Tracked wallets must be real wallet keys.
	for addr := range c.Wallets {
		if err := solana.ValidateWalletAddress(addr); err != nil {
			errs = append(errs, fmt.Sprintf("wallets: %v", err))
		}
	}

	// Replay window: missing or unparseable endpoints are fatal.
	if c.Replay.Enabled {
		if c.Replay.From == "" || c.Replay.To == "" {
			errs = append(errs, "replay: from and to are required when replay is enabled")
		} else if from, to, err := c.Replay.Window(); err != nil {
			errs = append(errs, fmt.Sprintf("replay: %v", err))
		} else if !from.Before(to) {
			errs = append(errs, fmt.Sprintf("replay: from %s must precede to %s", c.Replay.From, c.Replay.To))
		}
		for _, addr := range c.Replay.FilterWallets {
			if err := solana.ValidateWalletAddress(addr); err != nil {
				errs = append(errs, fmt.Sprintf("replay: filter_wallets: %v", err))
			}
		}
	}
	if c.Replay.BatchSize < 1 {
		errs = append(errs, fmt.Sprintf("replay: batch_size must be >= 1, got %d", c.Replay.BatchSize))
	}

	if c.ClickHouse.Enabled && c.ClickHouse.DSN == "" {
		errs = append(errs, "clickhouse: dsn is required when enabled")
	}

	if c.Notify.Enabled {
		if c.Notify.TelegramToken == "" {
			errs = append(errs, "notify: telegram_token is required when enabled")
		}
		if c.Notify.TelegramChatID == "" {
			errs = append(errs, "notify: telegram_chat_id is required when enabled")
		}
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
