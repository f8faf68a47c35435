// Package notify pushes portfolio events to external channels. Delivery
// is asynchronous: the simulation loop enqueues and moves on, and a
// single worker drains the buffer. A full buffer drops the message
// rather than slowing down execution.
package notify

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"solana-copysim/internal/domain"
	"solana-copysim/internal/observability"
)

const (
	queueCapacity  = 64
	deliverTimeout = 10 * time.Second
)

// Sender is one delivery channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

type message struct {
	title string
	body  string
}

// Service fans notifications out to its senders from a background
// worker. It satisfies the processor's notifier contract: the enqueue
// methods never block.
type Service struct {
	senders []Sender
	queue   chan message
	logger  *log.Logger
	wg      sync.WaitGroup
	closed  atomic.Bool
	once    sync.Once
}

// NewService starts the delivery worker and returns the service.
// Call Close to flush and stop it.
func NewService(senders []Sender, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	s := &Service{
		senders: senders,
		queue:   make(chan message, queueCapacity),
		logger:  logger,
	}
	s.wg.Add(1)
	go s.loop()
	return s
}

// TradeExecuted announces one simulated fill.
func (s *Service) TradeExecuted(trade *domain.SimulatedTrade, traderAlias string) {
	title := fmt.Sprintf("%s %s", strings.ToUpper(string(trade.Side)), shortAddr(trade.Mint))
	lines := []string{
		"trader: " + traderAlias,
		"sol: " + trade.SolAmount.StringFixed(4),
		"tokens: " + trade.TokenAmount.StringFixed(0),
		"price: " + trade.SimulatedPrice.String(),
		"slippage: " + trade.SlippageBps.StringFixed(1) + " bps",
	}
	if trade.RealizedPnL != nil {
		lines = append(lines, "realized pnl: "+trade.RealizedPnL.StringFixed(4)+" SOL")
	}
	s.enqueue(title, strings.Join(lines, "\n"))
}

// SessionClosed announces the end-of-session summary.
func (s *Service) SessionClosed(session *domain.SimulationSession, final *domain.PerformanceSnapshot) {
	lines := []string{"session: " + session.ID}
	if final != nil {
		lines = append(lines,
			fmt.Sprintf("trades: %d (%d wins / %d losses)", final.TotalTrades, final.WinCount, final.LossCount),
			"win rate: "+final.WinRatePercent.StringFixed(1)+"%",
			"realized pnl: "+final.RealizedPnL.StringFixed(4)+" SOL",
			"max drawdown: "+final.MaxDrawdownPercent.StringFixed(2)+"%",
			"final balance: "+final.SolBalance.StringFixed(4)+" SOL",
		)
	} else if session.FinalSolBalance != nil {
		lines = append(lines, "final balance: "+session.FinalSolBalance.StringFixed(4)+" SOL")
	}
	s.enqueue("Session closed", strings.Join(lines, "\n"))
}

// Close delivers what is already queued, then stops the worker.
// Safe to call more than once.
func (s *Service) Close() {
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.queue)
	})
	s.wg.Wait()
}

func (s *Service) enqueue(title, body string) {
	if s.closed.Load() {
		return
	}
	select {
	case s.queue <- message{title: title, body: body}:
	default:
		observability.RecordNotificationDropped()
		s.logger.Printf("[notify] buffer full, dropped %q", title)
	}
}

func (s *Service) loop() {
	defer s.wg.Done()
	for m := range s.queue {
		s.deliver(m)
	}
}

func (s *Service) deliver(m message) {
	ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
	defer cancel()
	for _, sender := range s.senders {
		if err := sender.Send(ctx, m.title, m.body); err != nil {
			s.logger.Printf("[notify] %s: %v", sender.Name(), err)
		}
	}
}

func shortAddr(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:4] + "..." + addr[len(addr)-4:]
}
