// Package main runs the copy-trading simulator. One process, three ways
// to drive it: live feed ingest (default), historical replay when
// replay.enabled is set, and -verify, which replays the configured range
// twice and compares the outcomes.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"solana-copysim/internal/config"
	"solana-copysim/internal/domain"
	"solana-copysim/internal/executor"
	"solana-copysim/internal/feed"
	"solana-copysim/internal/ingest"
	"solana-copysim/internal/metrics"
	"solana-copysim/internal/notify"
	"solana-copysim/internal/observability"
	"solana-copysim/internal/portfolio"
	"solana-copysim/internal/processor"
	"solana-copysim/internal/replay"
	"solana-copysim/internal/storage"
	chstore "solana-copysim/internal/storage/clickhouse"
	"solana-copysim/internal/storage/memory"
	"solana-copysim/internal/storage/migrations"
	pgstore "solana-copysim/internal/storage/postgres"
)

// shutdownGrace bounds the drain after the first signal.
const shutdownGrace = 30 * time.Second

func main() {
	configPath := flag.String("config", "config.toml", "Path to TOML configuration file")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	verify := flag.Bool("verify", false, "Replay the configured range twice and compare the outcomes")
	flag.Parse()

	logger := log.New(os.Stdout, "", log.LstdFlags)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("[simulator] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("[simulator] %v", err)
	}
	if !*useMemory && cfg.Postgres.DSN == "" {
		logger.Fatal("[simulator] postgres.dsn is required (or pass -use-memory)")
	}
	if *verify && !cfg.Replay.Enabled {
		logger.Fatal("[simulator] -verify requires replay.enabled with a configured window")
	}

	if cfg.Metrics.Addr != "" {
		go serveMetrics(cfg.Metrics.Addr, logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go watchSignals(cancel, done, logger)

	err = run(ctx, cfg, *useMemory, *verify, logger)
	close(done)
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("[simulator] %v", err)
	}
	logger.Println("[simulator] shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, useMemory, verify bool, logger *log.Logger) error {
	st, cleanup, err := buildStores(ctx, cfg, useMemory, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	switch {
	case verify:
		return runVerify(ctx, cfg, st, logger)
	case cfg.Replay.Enabled:
		return runReplay(ctx, cfg, st, logger)
	default:
		return runLive(ctx, cfg, st, logger)
	}
}

// runLive connects the feed to the event log and the simulation queue,
// then consumes the queue until shutdown.
func runLive(ctx context.Context, cfg *config.Config, st *stores, logger *log.Logger) error {
	queue := make(chan *domain.TradeEvent, cfg.WebSocket.ReceiveBufferSize)

	feedCfg := feed.DefaultClientConfig()
	feedCfg.DedupCapacity = cfg.WebSocket.DedupBufferSize
	client := feed.NewClient(cfg.WebSocket.URL, &feedCfg, logger)

	driver := ingest.NewDriver(ingest.DriverOptions{
		Feed:    client,
		Store:   st.events,
		Queue:   queue,
		Wallets: cfg.TrackedWallets(),
		Backoff: feed.NewBackoff(cfg.WebSocket.ReconnectBase(), cfg.WebSocket.ReconnectMax(), cfg.WebSocket.ReconnectJitterFactor),
		Logger:  logger,
	})

	proc, notifier, err := buildProcessor(cfg, st, queue, domain.SourceLive, logger)
	if err != nil {
		return err
	}
	defer closeNotifier(notifier)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return driver.Run(gctx) })
	g.Go(func() error { return proc.Run(gctx) })
	return g.Wait()
}

// runReplay streams the configured range from the event log through the
// same queue and processor as the live path.
func runReplay(ctx context.Context, cfg *config.Config, st *stores, logger *log.Logger) error {
	from, to, err := cfg.Replay.Window()
	if err != nil {
		return err
	}
	queue := make(chan *domain.TradeEvent, cfg.WebSocket.ReceiveBufferSize)

	driver := replay.NewDriver(replay.DriverOptions{
		Store:     st.events,
		Queue:     queue,
		From:      from,
		To:        to,
		Wallets:   cfg.Replay.FilterWallets,
		BatchSize: cfg.Replay.BatchSize,
		Logger:    logger,
	})

	proc, notifier, err := buildProcessor(cfg, st, queue, domain.SourceReplay, logger)
	if err != nil {
		return err
	}
	defer closeNotifier(notifier)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := driver.Run(gctx)
		return err
	})
	g.Go(func() error { return proc.Run(gctx) })
	return g.Wait()
}

// runVerify replays the window twice against fresh in-memory state and
// diffs the outcomes. Events are read from the shared log; the derived
// rows of the verification passes never touch it.
func runVerify(ctx context.Context, cfg *config.Config, st *stores, logger *log.Logger) error {
	from, to, err := cfg.Replay.Window()
	if err != nil {
		return err
	}

	pass := func(ctx context.Context) ([]*domain.SimulatedTrade, *domain.VirtualWallet, error) {
		queue := make(chan *domain.TradeEvent, cfg.WebSocket.ReceiveBufferSize)
		wallet := portfolio.NewWallet(cfg.Simulation.InitialBalance(), logger)
		trades := memory.NewSimulatedTradeStore()

		session, err := newSession(cfg, domain.SourceReplay)
		if err != nil {
			return nil, nil, err
		}

		driver := replay.NewDriver(replay.DriverOptions{
			Store:     st.events,
			Queue:     queue,
			From:      from,
			To:        to,
			Wallets:   cfg.Replay.FilterWallets,
			BatchSize: cfg.Replay.BatchSize,
			Logger:    logger,
		})
		proc := processor.New(processor.Options{
			Queue:     queue,
			Executor:  executor.NewSimulated(cfg.Simulation.BaseSlippage(), cfg.Simulation.ImpactFactor()),
			Wallet:    wallet,
			Tracker:   metrics.NewTracker(),
			Trades:    trades,
			Sessions:  memory.NewSessionStore(),
			Snapshots: memory.NewSnapshotStore(),
			Session:   session,
			Settings:  simSettings(cfg),
			Aliases:   cfg.Wallets,
			Logger:    logger,
		})

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			_, err := driver.Run(gctx)
			return err
		})
		g.Go(func() error { return proc.Run(gctx) })
		if err := g.Wait(); err != nil {
			return nil, nil, err
		}

		list, err := trades.GetBySession(ctx, session.ID)
		if err != nil {
			return nil, nil, err
		}
		return list, wallet.State(), nil
	}

	ok, err := replay.NewVerifier(pass, logger).Verify(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("replay verification failed: passes diverged")
	}
	return nil
}

// stores bundles the four persistence interfaces the pipeline writes to.
type stores struct {
	events    storage.TradeEventStore
	trades    storage.SimulatedTradeStore
	sessions  storage.SessionStore
	snapshots storage.SnapshotStore
}

// buildStores selects memory or Postgres backends and, when enabled,
// wraps the derived stores with the ClickHouse mirror. The returned
// cleanup closes every connection it opened.
func buildStores(ctx context.Context, cfg *config.Config, useMemory bool, logger *log.Logger) (*stores, func(), error) {
	st := &stores{
		events:    memory.NewTradeEventStore(),
		trades:    memory.NewSimulatedTradeStore(),
		sessions:  memory.NewSessionStore(),
		snapshots: memory.NewSnapshotStore(),
	}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if !useMemory {
		pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, pool.Close)

		if cfg.Postgres.RunMigrations {
			if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
				cleanup()
				return nil, nil, err
			}
			logger.Println("[simulator] postgres migrations applied")
		}

		st.events = pgstore.NewTradeEventStore(pool)
		st.trades = pgstore.NewSimulatedTradeStore(pool)
		st.sessions = pgstore.NewSessionStore(pool)
		st.snapshots = pgstore.NewSnapshotStore(pool)
	}

	if cfg.ClickHouse.Enabled {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouse.DSN)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, func() { conn.Close() })

		analytics := chstore.NewAnalyticsStore(conn)
		st.trades = chstore.NewMirroredTradeStore(st.trades, analytics, logger)
		st.snapshots = chstore.NewMirroredSnapshotStore(st.snapshots, analytics, logger)
		logger.Println("[simulator] clickhouse mirror enabled")
	}

	return st, cleanup, nil
}

// buildProcessor assembles the execution pipeline around the queue.
func buildProcessor(cfg *config.Config, st *stores, queue chan *domain.TradeEvent, mode domain.EventSource, logger *log.Logger) (*processor.Processor, *notify.Service, error) {
	session, err := newSession(cfg, mode)
	if err != nil {
		return nil, nil, err
	}

	var notifier *notify.Service
	if cfg.Notify.Enabled {
		notifier = notify.NewService([]notify.Sender{
			notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID),
		}, logger)
	}

	opts := processor.Options{
		Queue:     queue,
		Executor:  executor.NewSimulated(cfg.Simulation.BaseSlippage(), cfg.Simulation.ImpactFactor()),
		Wallet:    portfolio.NewWallet(cfg.Simulation.InitialBalance(), logger),
		Tracker:   metrics.NewTracker(),
		Trades:    st.trades,
		Sessions:  st.sessions,
		Snapshots: st.snapshots,
		Session:   session,
		Settings:  simSettings(cfg),
		Aliases:   cfg.Wallets,
		Logger:    logger,
	}
	if notifier != nil {
		opts.Notifier = notifier
	}
	return processor.New(opts), notifier, nil
}

func simSettings(cfg *config.Config) processor.Settings {
	return processor.Settings{
		PositionSizeSol:    cfg.Simulation.PositionSize(),
		ExecutionDelay:     cfg.Simulation.ExecutionDelay(),
		MaxSlippageBps:     cfg.Simulation.MaxSlippage(),
		MaxTradesPerMinute: cfg.Simulation.MaxTradesPerWalletPerMinute,
		SnapshotInterval:   cfg.Simulation.SnapshotInterval(),
		SkipMigratedTokens: cfg.Simulation.SkipMigratedTokens,
	}
}

// newSession builds the session row for one run, freezing the effective
// simulation parameters into it.
func newSession(cfg *config.Config, mode domain.EventSource) (*domain.SimulationSession, error) {
	configJSON, err := cfg.Simulation.JSON()
	if err != nil {
		return nil, err
	}
	return &domain.SimulationSession{
		ID:                uuid.NewString(),
		StartedAt:         time.Now().UTC(),
		Mode:              mode,
		ConfigJSON:        configJSON,
		InitialSolBalance: cfg.Simulation.InitialBalance(),
	}, nil
}

func closeNotifier(n *notify.Service) {
	if n != nil {
		n.Close()
	}
}

func serveMetrics(addr string, logger *log.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	logger.Printf("[simulator] metrics server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Printf("[simulator] metrics server: %v", err)
	}
}

// watchSignals cancels the run context on the first signal and forces
// exit on a second signal or when the drain exceeds its grace period.
func watchSignals(cancel context.CancelFunc, done <-chan struct{}, logger *log.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Printf("[simulator] received %v, draining...", sig)
		cancel()
	case <-done:
		return
	}

	select {
	case sig := <-sigCh:
		logger.Printf("[simulator] received second %v, forcing exit", sig)
		os.Exit(1)
	case <-time.After(shutdownGrace):
		logger.Printf("[simulator] drain exceeded %v, forcing exit", shutdownGrace)
		os.Exit(1)
	case <-done:
	}
}
