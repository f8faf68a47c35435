package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies COPYSIM_* environment variable overrides,
// and returns the final Config. An empty path skips the file and builds
// the config from defaults and environment only. The returned Config has
// NOT been validated; the caller should invoke Config.Validate() after
// Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known COPYSIM_* environment variables and
// overwrites the corresponding Config fields when a variable is set.
// This lets operators inject endpoints and credentials at deploy time
// without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Simulation ──
	setFloat64(&cfg.Simulation.InitialSolBalance, "COPYSIM_SIMULATION_INITIAL_SOL_BALANCE")
	setFloat64(&cfg.Simulation.PositionSizeSol, "COPYSIM_SIMULATION_POSITION_SIZE_SOL")
	setInt(&cfg.Simulation.ExecutionDelayMs, "COPYSIM_SIMULATION_EXECUTION_DELAY_MS")
	setFloat64(&cfg.Simulation.BaseSlippageBps, "COPYSIM_SIMULATION_BASE_SLIPPAGE_BPS")
	setFloat64(&cfg.Simulation.PriceImpactFactor, "COPYSIM_SIMULATION_PRICE_IMPACT_FACTOR")
	setFloat64(&cfg.Simulation.MaxSlippageBps, "COPYSIM_SIMULATION_MAX_SLIPPAGE_BPS")
	setInt(&cfg.Simulation.MaxTradesPerWalletPerMinute, "COPYSIM_SIMULATION_MAX_TRADES_PER_WALLET_PER_MINUTE")
	setInt(&cfg.Simulation.SnapshotIntervalSeconds, "COPYSIM_SIMULATION_SNAPSHOT_INTERVAL_SECONDS")
	setBool(&cfg.Simulation.SkipMigratedTokens, "COPYSIM_SIMULATION_SKIP_MIGRATED_TOKENS")

	// ── WebSocket ──
	setStr(&cfg.WebSocket.URL, "COPYSIM_WEBSOCKET_URL")
	setInt(&cfg.WebSocket.ReconnectBaseDelayMs, "COPYSIM_WEBSOCKET_RECONNECT_BASE_DELAY_MS")
	setInt(&cfg.WebSocket.ReconnectMaxDelayMs, "COPYSIM_WEBSOCKET_RECONNECT_MAX_DELAY_MS")
	setFloat64(&cfg.WebSocket.ReconnectJitterFactor, "COPYSIM_WEBSOCKET_RECONNECT_JITTER_FACTOR")
	setInt(&cfg.WebSocket.ReceiveBufferSize, "COPYSIM_WEBSOCKET_RECEIVE_BUFFER_SIZE")
	setInt(&cfg.WebSocket.DedupBufferSize, "COPYSIM_WEBSOCKET_DEDUP_BUFFER_SIZE")

	// ── Replay ──
	setBool(&cfg.Replay.Enabled, "COPYSIM_REPLAY_ENABLED")
	setStr(&cfg.Replay.From, "COPYSIM_REPLAY_FROM")
	setStr(&cfg.Replay.To, "COPYSIM_REPLAY_TO")
	setStringSlice(&cfg.Replay.FilterWallets, "COPYSIM_REPLAY_FILTER_WALLETS")
	setInt(&cfg.Replay.BatchSize, "COPYSIM_REPLAY_BATCH_SIZE")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "COPYSIM_POSTGRES_DSN")
	setBool(&cfg.Postgres.RunMigrations, "COPYSIM_POSTGRES_RUN_MIGRATIONS")

	// ── ClickHouse ──
	setBool(&cfg.ClickHouse.Enabled, "COPYSIM_CLICKHOUSE_ENABLED")
	setStr(&cfg.ClickHouse.DSN, "COPYSIM_CLICKHOUSE_DSN")

	// ── Metrics ──
	setStr(&cfg.Metrics.Addr, "COPYSIM_METRICS_ADDR")

	// ── Notify ──
	setBool(&cfg.Notify.Enabled, "COPYSIM_NOTIFY_ENABLED")
	setStr(&cfg.Notify.TelegramToken, "COPYSIM_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "COPYSIM_NOTIFY_TELEGRAM_CHAT_ID")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "COPYSIM_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
