// Package processor is the single consumer of the simulation queue: it
// filters events, paces live execution, runs fills through the executor,
// mutates the virtual wallet and persists every result.
package processor

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"solana-copysim/internal/domain"
	"solana-copysim/internal/executor"
	"solana-copysim/internal/metrics"
	"solana-copysim/internal/observability"
	"solana-copysim/internal/portfolio"
	"solana-copysim/internal/storage"
)

// rateLimitWindow is the sliding window of the per-trader trade limit.
const rateLimitWindow = time.Minute

// DefaultSnapshotInterval is used when Settings carries no interval.
const DefaultSnapshotInterval = time.Minute

// Settings are the simulation parameters the processor applies per event.
type Settings struct {
	PositionSizeSol    decimal.Decimal
	ExecutionDelay     time.Duration // applied to live events only
	MaxSlippageBps     decimal.Decimal
	MaxTradesPerMinute int // per tracked wallet; <= 0 disables the limit
	SnapshotInterval   time.Duration
	SkipMigratedTokens bool
}

// Notifier receives fire-and-forget portfolio notifications.
// Implementations must never block.
type Notifier interface {
	TradeExecuted(trade *domain.SimulatedTrade, traderAlias string)
	SessionClosed(session *domain.SimulationSession, final *domain.PerformanceSnapshot)
}

// Processor drains the queue and turns observed trades into simulated
// ones. It is the only goroutine touching the wallet and the curve cache.
type Processor struct {
	queue     <-chan *domain.TradeEvent
	executor  executor.Executor
	wallet    *portfolio.Wallet
	tracker   *metrics.Tracker
	trades    storage.SimulatedTradeStore
	sessions  storage.SessionStore
	snapshots storage.SnapshotStore
	session   *domain.SimulationSession
	settings  Settings
	aliases   map[string]string
	notifier  Notifier
	limiter   *rateLimiter
	logger    *log.Logger
	now       func() time.Time

	// storeCtx is detached from the run context so draining after
	// cancellation can still persist trades and snapshots.
	storeCtx       context.Context
	lastSnapshotAt time.Time
	processed      int64
	executed       int64
	skipped        int64
}

// Options contains configuration for creating a Processor.
type Options struct {
	Queue     <-chan *domain.TradeEvent
	Executor  executor.Executor
	Wallet    *portfolio.Wallet
	Tracker   *metrics.Tracker
	Trades    storage.SimulatedTradeStore
	Sessions  storage.SessionStore
	Snapshots storage.SnapshotStore
	Session   *domain.SimulationSession
	Settings  Settings
	Aliases   map[string]string // wallet address -> display alias, logging only
	Notifier  Notifier          // optional
	Logger    *log.Logger
	Now       func() time.Time // injectable clock; default time.Now
}

// New creates a new processor.
func New(opts Options) *Processor {
	settings := opts.Settings
	if settings.SnapshotInterval <= 0 {
		settings.SnapshotInterval = DefaultSnapshotInterval
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	var limiter *rateLimiter
	if settings.MaxTradesPerMinute > 0 {
		limiter = newRateLimiter(settings.MaxTradesPerMinute, rateLimitWindow)
	}

	return &Processor{
		queue:     opts.Queue,
		executor:  opts.Executor,
		wallet:    opts.Wallet,
		tracker:   opts.Tracker,
		trades:    opts.Trades,
		sessions:  opts.Sessions,
		snapshots: opts.Snapshots,
		session:   opts.Session,
		settings:  settings,
		aliases:   opts.Aliases,
		notifier:  opts.Notifier,
		limiter:   limiter,
		logger:    logger,
		now:       now,
	}
}

// Run registers the session, consumes the queue until it is closed, then
// finalizes the session. Cancellation shortens the live execution delay
// but never skips queued events: the queue is drained completely, and
// store writes run on a context detached from ctx so the drain can
// persist after shutdown begins.
func (p *Processor) Run(ctx context.Context) error {
	if err := p.sessions.Insert(ctx, p.session); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	p.storeCtx = context.WithoutCancel(ctx)
	p.lastSnapshotAt = p.now()
	p.logger.Printf("[processor] session %s started: mode=%s initial_balance=%s SOL",
		p.session.ID, p.session.Mode, p.session.InitialSolBalance)

	for event := range p.queue {
		p.safeProcess(ctx, event)
	}

	p.finalize()
	return nil
}

// safeProcess keeps a per-event panic from escaping the loop.
func (p *Processor) safeProcess(ctx context.Context, event *domain.TradeEvent) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Printf("[processor] panic on event %s: %v", event.Signature, r)
		}
	}()
	p.process(ctx, event)
}

func (p *Processor) process(ctx context.Context, event *domain.TradeEvent) {
	p.processed++
	observability.SetQueueDepth(len(p.queue))

	// Every event feeds the curve cache, filtered or not: later positions
	// are priced from the freshest reserves seen.
	p.tracker.ObserveEvent(event)

	if p.settings.SkipMigratedTokens && !event.OnCurve() {
		p.skip("migrated")
		return
	}

	if p.limiter != nil && !p.limiter.Admit(event.Trader, p.now()) {
		p.skip("rate_limited")
		return
	}

	if event.Source == domain.SourceLive && p.settings.ExecutionDelay > 0 {
		p.pause(ctx, p.settings.ExecutionDelay)
	}

	intent, reason := p.buildIntent(event)
	if intent == nil {
		p.skip(reason)
		return
	}

	result, err := p.executor.Execute(ctx, intent)
	if err != nil {
		p.logger.Printf("[processor] execute %s: %v", event.Signature, err)
		return
	}
	if !result.Success {
		observability.RecordTradeRejected()
		p.logger.Printf("[processor] %s %s rejected for %s: %s",
			event.Side, event.Mint, p.aliasFor(event.Trader), result.ErrorReason)
		return
	}

	trade := p.applyFill(event, intent, result)
	if trade == nil {
		return // wallet precondition no-op, already logged
	}

	if err := p.trades.Insert(p.storeCtx, trade); err != nil {
		p.logger.Printf("[processor] store trade %s: %v", trade.SourceSignature, err)
	}
	observability.RecordTradeExecuted(string(trade.Side))
	p.executed++
	p.logger.Printf("[processor] %s %s for %s: sol=%s tokens=%s price=%s slippage=%s bps",
		trade.Side, trade.Mint, p.aliasFor(event.Trader),
		trade.SolAmount, trade.TokenAmount, trade.SimulatedPrice, trade.SlippageBps)

	if p.notifier != nil {
		p.notifier.TradeExecuted(trade, p.aliasFor(event.Trader))
	}

	p.maybeSnapshot()
}

// buildIntent sizes the copy trade. Buys spend the configured position
// size and fail closed when the balance cannot cover it; sells exit the
// full open position and fail closed when none exists.
func (p *Processor) buildIntent(event *domain.TradeEvent) (*domain.TradeIntent, string) {
	if !event.HasValidReserves() {
		return nil, "invalid_reserves"
	}

	intent := &domain.TradeIntent{
		Mint:            event.Mint,
		Side:            event.Side,
		MaxSlippageBps:  p.settings.MaxSlippageBps,
		VTokens:         event.VTokensPost,
		VSol:            event.VSolPost,
		SourceEventID:   event.ID,
		SourceSignature: event.Signature,
		DelayMs:         p.settings.ExecutionDelay.Milliseconds(),
	}

	switch event.Side {
	case domain.SideBuy:
		if p.wallet.State().SolBalance.LessThan(p.settings.PositionSizeSol) {
			p.logger.Printf("[processor] buy %s skipped for %s: balance %s below position size %s",
				event.Mint, p.aliasFor(event.Trader), p.wallet.State().SolBalance, p.settings.PositionSizeSol)
			return nil, "insufficient_balance"
		}
		intent.SolIn = p.settings.PositionSizeSol
	case domain.SideSell:
		pos := p.wallet.State().Position(event.Mint)
		if pos == nil || !pos.TokenBalance.IsPositive() {
			p.logger.Printf("[processor] sell %s skipped for %s: no open position",
				event.Mint, p.aliasFor(event.Trader))
			return nil, "no_position"
		}
		intent.TokensIn = pos.TokenBalance
	default:
		return nil, "unknown_side"
	}
	return intent, ""
}

// applyFill mutates the wallet with the executed result and builds the
// SimulatedTrade row. The fill time derives from the event time plus the
// configured delay, which keeps replay passes identical.
func (p *Processor) applyFill(event *domain.TradeEvent, intent *domain.TradeIntent, result *domain.TradeExecutionResult) *domain.SimulatedTrade {
	executedAt := event.ReceivedAt.Add(time.Duration(intent.DelayMs) * time.Millisecond)

	var realized *decimal.Decimal
	switch intent.Side {
	case domain.SideBuy:
		if !p.wallet.RecordBuy(event.Mint, result.ActualSolAmount, result.ActualTokenAmount, event.VSolPost, executedAt) {
			return nil
		}
	case domain.SideSell:
		pnl := p.wallet.RecordSell(event.Mint, result.ActualTokenAmount, result.ActualSolAmount, executedAt)
		realized = &pnl
	}

	p.wallet.UpdateDrawdown(p.wallet.TotalValue(p.tracker.ResolveCurrentPrice))

	return &domain.SimulatedTrade{
		SourceEventID:      intent.SourceEventID,
		SourceSignature:    intent.SourceSignature,
		SessionID:          p.session.ID,
		Mint:               event.Mint,
		Side:               intent.Side,
		SolAmount:          result.ActualSolAmount,
		TokenAmount:        result.ActualTokenAmount,
		SimulatedPrice:     result.EffectivePrice,
		SlippageBps:        result.SlippageBps,
		DelayMs:            intent.DelayMs,
		ExecutedAt:         executedAt,
		VTokensAtExecution: intent.VTokens,
		VSolAtExecution:    intent.VSol,
		RealizedPnL:        realized,
	}
}

// pause sleeps for the live execution delay. A canceled ctx skips the
// remaining wait so draining stays fast; the event itself still executes.
func (p *Processor) pause(ctx context.Context, d time.Duration) {
	if ctx.Err() != nil {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (p *Processor) skip(reason string) {
	p.skipped++
	observability.RecordEventSkipped(reason)
}

func (p *Processor) aliasFor(trader string) string {
	if alias, ok := p.aliases[trader]; ok && alias != "" {
		return alias
	}
	return trader
}

func (p *Processor) maybeSnapshot() {
	now := p.now()
	if now.Sub(p.lastSnapshotAt) < p.settings.SnapshotInterval {
		return
	}
	p.takeSnapshot(now)
	p.lastSnapshotAt = now
}

func (p *Processor) takeSnapshot(at time.Time) *domain.PerformanceSnapshot {
	snapshot := p.tracker.TakeSnapshot(p.wallet, p.session.ID, at)
	if err := p.snapshots.Insert(p.storeCtx, snapshot); err != nil {
		p.logger.Printf("[processor] store snapshot: %v", err)
		return snapshot
	}
	observability.RecordSnapshot()
	return snapshot
}

// finalize runs once the queue is drained: final snapshot, session close,
// terminal metrics. Best-effort; failures are logged and swallowed.
func (p *Processor) finalize() {
	now := p.now()
	final := p.takeSnapshot(now)

	state := p.wallet.State()
	if err := p.sessions.CloseSession(p.storeCtx, p.session.ID, now, state.SolBalance); err != nil {
		p.logger.Printf("[processor] close session: %v", err)
	}

	if p.notifier != nil {
		p.notifier.SessionClosed(p.session, final)
	}

	p.logger.Printf("[processor] session %s closed: events=%d executed=%d skipped=%d balance=%s realized_pnl=%s max_drawdown=%s%%",
		p.session.ID, p.processed, p.executed, p.skipped,
		state.SolBalance, state.TotalRealizedPnL, state.MaxDrawdownPercent)
}
