package feed

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"solana-copysim/internal/domain"
)

// subscribeRequest is the single subscription payload sent after dialing.
type subscribeRequest struct {
	Method string   `json:"method"`
	Keys   []string `json:"keys"`
}

// tradeMessage is the raw upstream trade DTO. Amount fields decode as
// json.Number so decimal parsing never routes through float64. Unknown
// fields are tolerated; frames without a signature (subscription acks and
// service notices) are not trades.
type tradeMessage struct {
	Signature             string      `json:"signature"`
	Mint                  string      `json:"mint"`
	TraderPublicKey       string      `json:"traderPublicKey"`
	TxType                string      `json:"txType"`
	TokenAmount           json.Number `json:"tokenAmount"`
	SolAmount             json.Number `json:"solAmount"`
	NewTokenBalance       json.Number `json:"newTokenBalance"`
	BondingCurveKey       string      `json:"bondingCurveKey"`
	VTokensInBondingCurve json.Number `json:"vTokensInBondingCurve"`
	VSolInBondingCurve    json.Number `json:"vSolInBondingCurve"`
	MarketCapSol          json.Number `json:"marketCapSol"`
	Pool                  *string     `json:"pool"`
}

// hasRequiredFields reports whether the identity fields a trade cannot be
// processed without are all present.
func (m *tradeMessage) hasRequiredFields() bool {
	return m.Signature != "" && m.Mint != "" && m.TraderPublicKey != "" &&
		m.TxType != "" && m.BondingCurveKey != ""
}

// toEvent parses the numeric fields and maps the DTO to a domain event.
func (m *tradeMessage) toEvent(receivedAt time.Time) (*domain.TradeEvent, error) {
	tokenAmount, err := parseAmount(m.TokenAmount, "tokenAmount")
	if err != nil {
		return nil, err
	}
	solAmount, err := parseAmount(m.SolAmount, "solAmount")
	if err != nil {
		return nil, err
	}
	newTokenBalance, err := parseAmount(m.NewTokenBalance, "newTokenBalance")
	if err != nil {
		return nil, err
	}
	vTokens, err := parseAmount(m.VTokensInBondingCurve, "vTokensInBondingCurve")
	if err != nil {
		return nil, err
	}
	vSol, err := parseAmount(m.VSolInBondingCurve, "vSolInBondingCurve")
	if err != nil {
		return nil, err
	}
	marketCap, err := parseAmount(m.MarketCapSol, "marketCapSol")
	if err != nil {
		return nil, err
	}

	side := domain.SideSell
	if strings.EqualFold(m.TxType, "buy") {
		side = domain.SideBuy
	}

	return &domain.TradeEvent{
		Signature:       m.Signature,
		Mint:            m.Mint,
		Trader:          m.TraderPublicKey,
		Side:            side,
		TokenAmount:     tokenAmount,
		SolAmount:       solAmount,
		NewTokenBalance: newTokenBalance,
		CurveKey:        m.BondingCurveKey,
		VTokensPost:     vTokens,
		VSolPost:        vSol,
		MarketCapSol:    marketCap,
		Pool:            m.Pool,
		ReceivedAt:      receivedAt.UTC(),
		Source:          domain.SourceLive,
	}, nil
}

// parseAmount converts a json.Number to a decimal, treating an absent
// field as a parse failure.
func parseAmount(n json.Number, field string) (decimal.Decimal, error) {
	if n == "" {
		return decimal.Decimal{}, fmt.Errorf("missing %s", field)
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse %s: %w", field, err)
	}
	return d, nil
}
