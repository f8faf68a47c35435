// Package executor turns trade intents into fills. The simulation variant
// is the default core; the interface is shaped so a live venue executor can
// replace it without touching the rest of the pipeline.
package executor

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"solana-copysim/internal/curve"
	"solana-copysim/internal/domain"
)

const divPrecision = 28

// Executor executes a fully-specified trade intent and reports the fill.
// A rejection (slippage cap, bad preconditions) is a successful execution
// with Success=false; errors are reserved for transport or programming
// failures.
type Executor interface {
	Execute(ctx context.Context, intent *domain.TradeIntent) (*domain.TradeExecutionResult, error)
}

// Simulated computes fills purely from the intent's curve state: no clock,
// no randomness, no I/O. The same intent always produces the same result.
type Simulated struct {
	baseBps           decimal.Decimal
	priceImpactFactor decimal.Decimal
}

var _ Executor = (*Simulated)(nil)

// NewSimulated creates a simulated executor with the configured flat
// slippage and price-impact scaling. The per-intent cap arrives on each
// TradeIntent.
func NewSimulated(baseBps, priceImpactFactor decimal.Decimal) *Simulated {
	return &Simulated{
		baseBps:           baseBps,
		priceImpactFactor: priceImpactFactor,
	}
}

// Execute fills the intent against its carried reserves.
func (e *Simulated) Execute(ctx context.Context, intent *domain.TradeIntent) (*domain.TradeExecutionResult, error) {
	switch intent.Side {
	case domain.SideBuy:
		return e.executeBuy(intent)
	case domain.SideSell:
		return e.executeSell(intent)
	default:
		return nil, fmt.Errorf("execute intent: unknown side %q", intent.Side)
	}
}

func (e *Simulated) executeBuy(intent *domain.TradeIntent) (*domain.TradeExecutionResult, error) {
	model := e.model(intent.MaxSlippageBps)
	capped, uncapped := model.TotalBps(intent.SolIn, intent.VSol)
	if model.Exceeds(uncapped) {
		return rejected(uncapped, intent.MaxSlippageBps), nil
	}

	rawTokens, err := curve.TokensOut(intent.SolIn, intent.VTokens, intent.VSol)
	if err != nil {
		return nil, fmt.Errorf("buy %s: %w", intent.Mint, err)
	}
	actualTokens := curve.ApplySlippage(rawTokens, capped)

	return &domain.TradeExecutionResult{
		Success:           true,
		ActualTokenAmount: actualTokens,
		ActualSolAmount:   intent.SolIn,
		EffectivePrice:    effectivePrice(intent.SolIn, actualTokens),
		SlippageBps:       capped,
	}, nil
}

func (e *Simulated) executeSell(intent *domain.TradeIntent) (*domain.TradeExecutionResult, error) {
	rawSol, err := curve.SolOut(intent.TokensIn, intent.VTokens, intent.VSol)
	if err != nil {
		return nil, fmt.Errorf("sell %s: %w", intent.Mint, err)
	}

	// Impact is driven by the SOL actually moved out of the curve.
	model := e.model(intent.MaxSlippageBps)
	capped, uncapped := model.TotalBps(rawSol, intent.VSol)
	if model.Exceeds(uncapped) {
		return rejected(uncapped, intent.MaxSlippageBps), nil
	}
	actualSol := curve.ApplySlippage(rawSol, capped)

	return &domain.TradeExecutionResult{
		Success:           true,
		ActualTokenAmount: intent.TokensIn,
		ActualSolAmount:   actualSol,
		EffectivePrice:    effectivePrice(actualSol, intent.TokensIn),
		SlippageBps:       capped,
	}, nil
}

func (e *Simulated) model(maxBps decimal.Decimal) curve.SlippageModel {
	return curve.SlippageModel{
		BaseBps:           e.baseBps,
		PriceImpactFactor: e.priceImpactFactor,
		MaxBps:            maxBps,
	}
}

func rejected(uncappedBps, maxBps decimal.Decimal) *domain.TradeExecutionResult {
	return &domain.TradeExecutionResult{
		Success:     false,
		SlippageBps: uncappedBps,
		ErrorReason: fmt.Sprintf("slippage %s bps exceeds cap %s bps", uncappedBps, maxBps),
	}
}

func effectivePrice(sol, tokens decimal.Decimal) decimal.Decimal {
	if !tokens.IsPositive() {
		return decimal.Zero
	}
	return sol.DivRound(tokens, divPrecision)
}
