package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// Verified wallet keys (base58, 32 bytes, on-curve).
const (
	walletA = "2cgVz7y7i76WWTbHTqXvsmrHt2FuEFiZkscNr8bEfHQe"
	walletB = "9TeP1hvTCrGxzDnMBNAHmwUo2EZ9Lx5AsJEXTcazQkCR"
	// A canonical encoding that is not an ed25519 point.
	offCurveAddr = "4bgEK6zWUU8waj4xuiRGShqVm1CN2MWoRrV1bkHSymmm"
)

func validLiveConfig() Config {
	cfg := Defaults()
	cfg.Wallets = map[string]string{walletA: "whale-1"}
	return cfg
}

func TestDefaults_ValidWithTrackedWallet(t *testing.T) {
	cfg := validLiveConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidate_SimulationRanges(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "initial balance below minimum",
			mutate:  func(c *Config) { c.Simulation.InitialSolBalance = 0.009 },
			wantErr: "initial_sol_balance",
		},
		{
			name:    "initial balance above maximum",
			mutate:  func(c *Config) { c.Simulation.InitialSolBalance = 10001 },
			wantErr: "initial_sol_balance",
		},
		{
			name:   "initial balance at lower bound",
			mutate: func(c *Config) { c.Simulation.InitialSolBalance = 0.01; c.Simulation.PositionSizeSol = 0.001 },
		},
		{
			name:    "position size below minimum",
			mutate:  func(c *Config) { c.Simulation.PositionSizeSol = 0.0005 },
			wantErr: "position_size_sol",
		},
		{
			name:    "position size exceeds funding",
			mutate:  func(c *Config) { c.Simulation.PositionSizeSol = 20 },
			wantErr: "must not exceed initial_sol_balance",
		},
		{
			name:    "negative delay",
			mutate:  func(c *Config) { c.Simulation.ExecutionDelayMs = -1 },
			wantErr: "execution_delay_ms",
		},
		{
			name:    "delay above maximum",
			mutate:  func(c *Config) { c.Simulation.ExecutionDelayMs = 30001 },
			wantErr: "execution_delay_ms",
		},
		{
			name:    "base slippage above maximum",
			mutate:  func(c *Config) { c.Simulation.BaseSlippageBps = 5001 },
			wantErr: "base_slippage_bps",
		},
		{
			name:    "impact factor above maximum",
			mutate:  func(c *Config) { c.Simulation.PriceImpactFactor = 101 },
			wantErr: "price_impact_factor",
		},
		{
			name:   "zero max slippage is a valid reject-all cap",
			mutate: func(c *Config) { c.Simulation.MaxSlippageBps = 0 },
		},
		{
			name:    "max slippage above maximum",
			mutate:  func(c *Config) { c.Simulation.MaxSlippageBps = 10001 },
			wantErr: "max_slippage_bps",
		},
		{
			name:    "zero trades per minute",
			mutate:  func(c *Config) { c.Simulation.MaxTradesPerWalletPerMinute = 0 },
			wantErr: "max_trades_per_wallet_per_minute",
		},
		{
			name:    "snapshot interval too small",
			mutate:  func(c *Config) { c.Simulation.SnapshotIntervalSeconds = 9 },
			wantErr: "snapshot_interval_seconds",
		},
		{
			name:    "snapshot interval too large",
			mutate:  func(c *Config) { c.Simulation.SnapshotIntervalSeconds = 3601 },
			wantErr: "snapshot_interval_seconds",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validLiveConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	cfg := validLiveConfig()
	cfg.Simulation.InitialSolBalance = 0
	cfg.Simulation.SnapshotIntervalSeconds = 0
	cfg.LogLevel = "verbose"

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	require.Contains(t, msg, "initial_sol_balance")
	require.Contains(t, msg, "snapshot_interval_seconds")
	require.Contains(t, msg, "log_level")
}

func TestValidate_LiveModeRequirements(t *testing.T) {
	cfg := validLiveConfig()
	cfg.WebSocket.URL = ""
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "url must not be empty")

	cfg = Defaults() // no wallets
	err = cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "at least one tracked wallet")
}

func TestValidate_WalletAddresses(t *testing.T) {
	cfg := validLiveConfig()
	cfg.Wallets["not-base58-0OIl"] = "bad"
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "wallets:")

	cfg = validLiveConfig()
	cfg.Wallets[offCurveAddr] = "pda"
	err = cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "not an ed25519 point")
}

func TestValidate_ReplayWindow(t *testing.T) {
	replayConfig := func() Config {
		cfg := Defaults()
		cfg.Replay.Enabled = true
		cfg.Replay.From = "2025-01-01T00:00:00Z"
		cfg.Replay.To = "2025-01-02T00:00:00Z"
		return cfg
	}

	// Replay mode needs no feed URL and no tracked wallets.
	cfg := replayConfig()
	cfg.WebSocket.URL = ""
	require.NoError(t, cfg.Validate())

	cfg = replayConfig()
	cfg.Replay.From = ""
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "from and to are required")

	cfg = replayConfig()
	cfg.Replay.To = "yesterday"
	err = cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "replay to")

	cfg = replayConfig()
	cfg.Replay.From, cfg.Replay.To = cfg.Replay.To, cfg.Replay.From
	err = cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "must precede")

	cfg = replayConfig()
	cfg.Replay.FilterWallets = []string{offCurveAddr}
	err = cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "filter_wallets")
}

func TestValidate_NotifyCredentials(t *testing.T) {
	cfg := validLiveConfig()
	cfg.Notify.Enabled = true
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "telegram_token")
	require.Contains(t, err.Error(), "telegram_chat_id")

	cfg.Notify.TelegramToken = "123:abc"
	cfg.Notify.TelegramChatID = "-100200300"
	require.NoError(t, cfg.Validate())
}

func TestLoad_FileMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := strings.Join([]string{
		`log_level = "debug"`,
		``,
		`[simulation]`,
		`position_size_sol = 0.5`,
		``,
		`[wallets]`,
		`"` + walletA + `" = "whale-1"`,
		`"` + walletB + `" = "sniper"`,
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 0.5, cfg.Simulation.PositionSizeSol)
	// Untouched keys keep their defaults.
	require.Equal(t, 60, cfg.Simulation.SnapshotIntervalSeconds)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "whale-1", cfg.Wallets[walletA])
	require.Equal(t, "sniper", cfg.Wallets[walletB])
	require.ElementsMatch(t, []string{walletA, walletB}, cfg.TrackedWallets())
	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("COPYSIM_SIMULATION_POSITION_SIZE_SOL", "0.25")
	t.Setenv("COPYSIM_WEBSOCKET_URL", "wss://example.test/feed")
	t.Setenv("COPYSIM_REPLAY_FILTER_WALLETS", walletA+", "+walletB)
	t.Setenv("COPYSIM_POSTGRES_DSN", "postgres://copysim:s3cret@db:5432/copysim")

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 0.25, cfg.Simulation.PositionSizeSol)
	require.Equal(t, "wss://example.test/feed", cfg.WebSocket.URL)
	require.Equal(t, []string{walletA, walletB}, cfg.Replay.FilterWallets)
	require.Equal(t, "postgres://copysim:s3cret@db:5432/copysim", cfg.Postgres.DSN)
}

func TestSimulationConfig_TypedAccessors(t *testing.T) {
	s := SimulationConfig{
		PositionSizeSol:         0.1,
		BaseSlippageBps:         100,
		MaxSlippageBps:          1000,
		PriceImpactFactor:       1.0,
		ExecutionDelayMs:        1500,
		SnapshotIntervalSeconds: 60,
	}

	require.True(t, s.PositionSize().Equal(decimal.NewFromFloat(0.1)))
	require.True(t, s.BaseSlippage().Equal(decimal.NewFromInt(100)))
	require.True(t, s.MaxSlippage().Equal(decimal.NewFromInt(1000)))
	require.True(t, s.ImpactFactor().Equal(decimal.NewFromInt(1)))
	require.Equal(t, 1500*time.Millisecond, s.ExecutionDelay())
	require.Equal(t, time.Minute, s.SnapshotInterval())
}

func TestSimulationConfig_JSONRoundTrip(t *testing.T) {
	s := Defaults().Simulation
	data, err := s.JSON()
	require.NoError(t, err)
	require.Contains(t, data, `"initial_sol_balance":10`)
	require.Contains(t, data, `"skip_migrated_tokens":true`)

	var decoded SimulationConfig
	require.NoError(t, json.Unmarshal([]byte(data), &decoded))
	require.Equal(t, s, decoded)
}

func TestReplayConfig_Window(t *testing.T) {
	r := ReplayConfig{From: "2025-01-01T00:00:00Z", To: "2025-01-02T12:30:00Z"}
	from, to, err := r.Window()
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), from.UTC())
	require.Equal(t, time.Date(2025, 1, 2, 12, 30, 0, 0, time.UTC), to.UTC())
}
