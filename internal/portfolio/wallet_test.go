package portfolio

import (
	"io"
	"log"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestRecordBuy_NewPosition(t *testing.T) {
	w := NewWallet(dec("10"), quietLogger())

	ok := w.RecordBuy("mintA", dec("1"), dec("100"), dec("30"), testTime)
	if !ok {
		t.Fatal("buy should succeed")
	}

	s := w.State()
	if !s.SolBalance.Equal(dec("9")) {
		t.Errorf("expected balance 9, got %s", s.SolBalance)
	}
	if s.TotalTradeCount != 1 {
		t.Errorf("expected 1 trade, got %d", s.TotalTradeCount)
	}
	pos := s.Positions["mintA"]
	if pos == nil {
		t.Fatal("expected open position")
	}
	if !pos.TokenBalance.Equal(dec("100")) {
		t.Errorf("expected 100 tokens, got %s", pos.TokenBalance)
	}
	if !pos.TotalCostBasis.Equal(dec("1")) {
		t.Errorf("expected cost basis 1, got %s", pos.TotalCostBasis)
	}
	if !pos.AvgEntryPrice.Equal(dec("0.01")) {
		t.Errorf("expected avg entry 0.01, got %s", pos.AvgEntryPrice)
	}
	if !pos.VSolAtOpen.Equal(dec("30")) {
		t.Errorf("expected vSolAtOpen 30, got %s", pos.VSolAtOpen)
	}
	if pos.BuyCount != 1 {
		t.Errorf("expected 1 buy, got %d", pos.BuyCount)
	}
}

func TestRecordBuy_MergesVWAP(t *testing.T) {
	w := NewWallet(dec("10"), quietLogger())

	w.RecordBuy("mintA", dec("1"), dec("100"), dec("30"), testTime)
	w.RecordBuy("mintA", dec("1"), dec("50"), dec("31"), testTime.Add(time.Second))

	pos := w.State().Positions["mintA"]
	if !pos.TokenBalance.Equal(dec("150")) {
		t.Errorf("expected 150 tokens, got %s", pos.TokenBalance)
	}
	if !pos.TotalCostBasis.Equal(dec("2")) {
		t.Errorf("expected cost basis 2, got %s", pos.TotalCostBasis)
	}
	// 2 / 150 = 0.0133... VWAP across both fills
	expected := dec("2").DivRound(dec("150"), 28)
	if !pos.AvgEntryPrice.Equal(expected) {
		t.Errorf("expected avg entry %s, got %s", expected, pos.AvgEntryPrice)
	}
	// First fill's reserves stick with the position
	if !pos.VSolAtOpen.Equal(dec("30")) {
		t.Errorf("expected vSolAtOpen 30, got %s", pos.VSolAtOpen)
	}
	if pos.BuyCount != 2 {
		t.Errorf("expected 2 buys, got %d", pos.BuyCount)
	}
}

func TestRecordBuy_ExactBalanceBoundary(t *testing.T) {
	// A balance exactly covering the buy succeeds
	w := NewWallet(dec("1"), quietLogger())
	if !w.RecordBuy("mintA", dec("1"), dec("100"), dec("30"), testTime) {
		t.Error("exact-balance buy should succeed")
	}
	if !w.State().SolBalance.IsZero() {
		t.Errorf("expected zero balance, got %s", w.State().SolBalance)
	}

	// One lamport short fails and changes nothing
	w2 := NewWallet(dec("0.999999999"), quietLogger())
	if w2.RecordBuy("mintA", dec("1"), dec("100"), dec("30"), testTime) {
		t.Error("underfunded buy should fail")
	}
	s := w2.State()
	if s.TotalTradeCount != 0 {
		t.Errorf("failed buy must not count, got %d trades", s.TotalTradeCount)
	}
	if !s.SolBalance.Equal(dec("0.999999999")) {
		t.Errorf("failed buy must not move balance, got %s", s.SolBalance)
	}
	if len(s.Positions) != 0 {
		t.Errorf("failed buy must not open a position")
	}
}

func TestRecordSell_FullPosition(t *testing.T) {
	w := NewWallet(dec("10"), quietLogger())
	w.RecordBuy("mintA", dec("1"), dec("100"), dec("30"), testTime)

	realized := w.RecordSell("mintA", dec("100"), dec("1.5"), testTime.Add(time.Minute))

	if !realized.Equal(dec("0.5")) {
		t.Errorf("expected realized 0.5, got %s", realized)
	}
	s := w.State()
	if !s.SolBalance.Equal(dec("10.5")) {
		t.Errorf("expected balance 10.5, got %s", s.SolBalance)
	}
	if _, open := s.Positions["mintA"]; open {
		t.Error("fully sold position must be removed")
	}
	if s.WinCount != 1 || s.LossCount != 0 {
		t.Errorf("expected 1 win 0 losses, got %d/%d", s.WinCount, s.LossCount)
	}
	if !s.TotalRealizedPnL.Equal(dec("0.5")) {
		t.Errorf("expected total realized 0.5, got %s", s.TotalRealizedPnL)
	}
	// ROI = 0.5 / 1.0 * 100 = 50%
	if !s.CumulativeROIPercent.Equal(dec("50")) {
		t.Errorf("expected cumulative ROI 50, got %s", s.CumulativeROIPercent)
	}
	if s.TotalTradeCount != 2 {
		t.Errorf("expected 2 trades, got %d", s.TotalTradeCount)
	}
}

func TestRecordSell_PartialReleasesProportionalCost(t *testing.T) {
	w := NewWallet(dec("10"), quietLogger())
	w.RecordBuy("mintA", dec("2"), dec("200"), dec("30"), testTime)

	// Sell a quarter of the position
	realized := w.RecordSell("mintA", dec("50"), dec("0.6"), testTime.Add(time.Minute))

	if !realized.Equal(dec("0.1")) {
		t.Errorf("expected realized 0.1, got %s", realized)
	}
	pos := w.State().Positions["mintA"]
	if pos == nil {
		t.Fatal("position must stay open")
	}
	if !pos.TokenBalance.Equal(dec("150")) {
		t.Errorf("expected 150 tokens left, got %s", pos.TokenBalance)
	}
	if !pos.TotalCostBasis.Equal(dec("1.5")) {
		t.Errorf("expected cost basis 1.5, got %s", pos.TotalCostBasis)
	}
	if pos.SellCount != 1 {
		t.Errorf("expected 1 sell, got %d", pos.SellCount)
	}
}

func TestRecordSell_ClampsToHeldBalance(t *testing.T) {
	w := NewWallet(dec("10"), quietLogger())
	w.RecordBuy("mintA", dec("1"), dec("100"), dec("30"), testTime)

	// Request 200 but hold 100: half the requested SOL is credited
	realized := w.RecordSell("mintA", dec("200"), dec("1.6"), testTime.Add(time.Minute))

	if !realized.Equal(dec("-0.2")) {
		t.Errorf("expected realized -0.2, got %s", realized)
	}
	s := w.State()
	// 10 - 1 + 1.6*(100/200) = 9.8
	if !s.SolBalance.Equal(dec("9.8")) {
		t.Errorf("expected balance 9.8, got %s", s.SolBalance)
	}
	if _, open := s.Positions["mintA"]; open {
		t.Error("over-requested sell must close the position")
	}
	if s.LossCount != 1 {
		t.Errorf("expected 1 loss, got %d", s.LossCount)
	}
}

func TestRecordSell_NoPosition(t *testing.T) {
	w := NewWallet(dec("10"), quietLogger())

	realized := w.RecordSell("mintA", dec("100"), dec("1"), testTime)

	if !realized.IsZero() {
		t.Errorf("expected zero realized, got %s", realized)
	}
	s := w.State()
	if s.TotalTradeCount != 0 || s.WinCount != 0 || s.LossCount != 0 {
		t.Error("sell without a position must not touch counters")
	}
	if !s.SolBalance.Equal(dec("10")) {
		t.Errorf("expected untouched balance, got %s", s.SolBalance)
	}
}

func TestRecordSell_LossAccumulatesNegativeROI(t *testing.T) {
	w := NewWallet(dec("10"), quietLogger())
	w.RecordBuy("mintA", dec("2"), dec("200"), dec("30"), testTime)

	// Sold at half the entry value: realized -1, ROI -50%
	realized := w.RecordSell("mintA", dec("200"), dec("1"), testTime.Add(time.Minute))

	if !realized.Equal(dec("-1")) {
		t.Errorf("expected realized -1, got %s", realized)
	}
	s := w.State()
	if s.LossCount != 1 || s.WinCount != 0 {
		t.Errorf("expected 1 loss, got wins=%d losses=%d", s.WinCount, s.LossCount)
	}
	if !s.CumulativeROIPercent.Equal(dec("-50")) {
		t.Errorf("expected cumulative ROI -50, got %s", s.CumulativeROIPercent)
	}
}

func TestConservation_AcrossBuysAndSells(t *testing.T) {
	// Balance plus open cost basis, net of realized PnL, must equal the
	// initial funding after any trade sequence.
	initial := dec("10")
	w := NewWallet(initial, quietLogger())

	w.RecordBuy("mintA", dec("1"), dec("100"), dec("30"), testTime)
	w.RecordBuy("mintB", dec("2.5"), dec("400"), dec("28"), testTime)
	w.RecordBuy("mintA", dec("0.5"), dec("40"), dec("29"), testTime)
	w.RecordSell("mintA", dec("70"), dec("0.9"), testTime)
	w.RecordSell("mintB", dec("400"), dec("2.1"), testTime)
	w.RecordSell("mintA", dec("70"), dec("0.6"), testTime)

	s := w.State()
	sum := s.SolBalance.Sub(s.TotalRealizedPnL)
	for _, pos := range s.Positions {
		sum = sum.Add(pos.TotalCostBasis)
	}
	if !sum.Equal(initial) {
		t.Errorf("conservation violated: got %s, want %s", sum, initial)
	}

	// And with a position still open the same identity holds
	w2 := NewWallet(initial, quietLogger())
	w2.RecordBuy("mintC", dec("3"), dec("500"), dec("25"), testTime)
	w2.RecordSell("mintC", dec("100"), dec("0.7"), testTime)

	s2 := w2.State()
	sum2 := s2.SolBalance.Sub(s2.TotalRealizedPnL)
	for _, pos := range s2.Positions {
		sum2 = sum2.Add(pos.TotalCostBasis)
	}
	if !sum2.Equal(initial) {
		t.Errorf("conservation violated with open position: got %s, want %s", sum2, initial)
	}
}

func TestUnrealizedPnLAndTotalValue(t *testing.T) {
	w := NewWallet(dec("10"), quietLogger())
	w.RecordBuy("mintA", dec("1"), dec("100"), dec("30"), testTime)

	priceFn := func(mint string) decimal.Decimal {
		if mint == "mintA" {
			return dec("0.02")
		}
		return decimal.Zero
	}

	// 100 tokens at 0.02 = 2.0 value vs 1.0 cost
	unrealized := w.UnrealizedPnL(priceFn)
	if !unrealized.Equal(dec("1")) {
		t.Errorf("expected unrealized 1, got %s", unrealized)
	}
	total := w.TotalValue(priceFn)
	if !total.Equal(dec("11")) {
		t.Errorf("expected total value 11, got %s", total)
	}
}

func TestUpdateDrawdown(t *testing.T) {
	w := NewWallet(dec("10"), quietLogger())

	w.UpdateDrawdown(dec("12"))
	s := w.State()
	if !s.HighWaterMark.Equal(dec("12")) {
		t.Errorf("expected HWM 12, got %s", s.HighWaterMark)
	}
	if !s.MaxDrawdownPercent.IsZero() {
		t.Errorf("expected no drawdown at a new peak, got %s", s.MaxDrawdownPercent)
	}

	// (12 - 9) / 12 = 25%
	w.UpdateDrawdown(dec("9"))
	if !w.State().MaxDrawdownPercent.Equal(dec("25")) {
		t.Errorf("expected drawdown 25, got %s", w.State().MaxDrawdownPercent)
	}

	// Recovery must not shrink either the mark or the recorded maximum
	w.UpdateDrawdown(dec("11"))
	s = w.State()
	if !s.HighWaterMark.Equal(dec("12")) {
		t.Errorf("HWM must not decrease, got %s", s.HighWaterMark)
	}
	if !s.MaxDrawdownPercent.Equal(dec("25")) {
		t.Errorf("max drawdown must not decrease, got %s", s.MaxDrawdownPercent)
	}

	w.UpdateDrawdown(dec("13"))
	if !w.State().HighWaterMark.Equal(dec("13")) {
		t.Errorf("expected HWM 13, got %s", w.State().HighWaterMark)
	}
}

func TestReset(t *testing.T) {
	w := NewWallet(dec("10"), quietLogger())
	w.RecordBuy("mintA", dec("1"), dec("100"), dec("30"), testTime)
	w.UpdateDrawdown(dec("5"))

	w.Reset(dec("20"))

	s := w.State()
	if !s.SolBalance.Equal(dec("20")) {
		t.Errorf("expected balance 20, got %s", s.SolBalance)
	}
	if len(s.Positions) != 0 || s.TotalTradeCount != 0 {
		t.Error("reset must clear positions and counters")
	}
	if !s.HighWaterMark.Equal(dec("20")) {
		t.Errorf("expected HWM 20, got %s", s.HighWaterMark)
	}
}
