package backtest

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/quantoshi/hedgefolio/internal/core"
)

func day(s string) time.Time {
	d, err := time.Parse(core.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func obs(date string, index, instrument float64) core.PriceObservation {
	return core.PriceObservation{Date: day(date), IndexPrice: index, InstrumentPrice: instrument}
}

func baseParams(series []core.PriceObservation) Params {
	return Params{
		StartDate:         series[0].Date,
		EndDate:           series[len(series)-1].Date,
		InitialCapital:    1_000_000,
		TargetRatio:       0.8,
		MAPeriod:          2,
		MarginPerContract: 46_000,
		SafetyMultiplier:  1.5,
		EnableRebalance:   true,
	}
}

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-6 {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func TestEngine_Run_ThreeDayScenario(t *testing.T) {
	series := []core.PriceObservation{
		obs("2024-01-02", 22000, 180),
		obs("2024-01-03", 21000, 175),
		obs("2024-01-04", 22500, 182),
	}
	params := baseParams(series)

	result, err := New().Run(context.Background(), series, params)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(result.DailyResults) != 3 {
		t.Fatalf("expected 3 daily results, got %d", len(result.DailyResults))
	}

	// Day 0: initial buy of floor(800000/(180*1000)) = 4 lots; the flooring
	// remainder stays in the reserve so equity starts at capital exactly.
	d0 := result.DailyResults[0]
	if d0.Lots != 4 {
		t.Errorf("day 0 lots = %d, want 4", d0.Lots)
	}
	approx(t, "day 0 instrument value", d0.InstrumentValue, 720_000)
	approx(t, "day 0 reserve", d0.HedgeReserve, 280_000)
	approx(t, "day 0 equity", d0.TotalEquity, 1_000_000)
	if d0.Signal != SignalNone {
		t.Errorf("day 0 signal = %s, want none (MA warming up)", d0.Signal)
	}
	if d0.MovingAverage.Defined {
		t.Error("day 0 MA should be undefined")
	}

	// Day 1: MA = 21500, index 21000 below -> hedge opens with
	// floor(280000/(46000*1.5)) = 4 contracts.
	d1 := result.DailyResults[1]
	if !d1.MovingAverage.Defined || d1.MovingAverage.Value != 21500 {
		t.Errorf("day 1 MA = %+v, want 21500", d1.MovingAverage)
	}
	if d1.HedgeContracts != 4 {
		t.Errorf("day 1 contracts = %d, want 4", d1.HedgeContracts)
	}
	if d1.Signal != SignalHedge {
		t.Errorf("day 1 signal = %s, want hedge", d1.Signal)
	}
	// 4 lots at 175 plus untouched reserve; entry-day unrealized is zero.
	approx(t, "day 1 equity", d1.TotalEquity, 700_000+280_000)

	// Day 2: MA = 21750, index 22500 at/above -> close.
	// Realized P&L = 4 * (21000 - 22500) * 50 = -300000 (losing short).
	d2 := result.DailyResults[2]
	if !d2.MovingAverage.Defined || d2.MovingAverage.Value != 21750 {
		t.Errorf("day 2 MA = %+v, want 21750", d2.MovingAverage)
	}
	if d2.HedgeContracts != 0 {
		t.Errorf("day 2 contracts = %d, want 0 after close", d2.HedgeContracts)
	}
	approx(t, "day 2 realized hedge P&L", d2.HedgePnL, -300_000)
	approx(t, "day 2 reserve", d2.HedgeReserve, -20_000)
	approx(t, "day 2 equity", d2.TotalEquity, 728_000-20_000)
	if d2.Signal != SignalLong {
		t.Errorf("day 2 signal = %s, want long", d2.Signal)
	}

	// Trade log: initial buy, hedge open, hedge close.
	kinds := make([]EventKind, len(result.TradeLogs))
	for i, e := range result.TradeLogs {
		kinds[i] = e.Kind
	}
	want := []EventKind{EventBuy, EventHedgeOpen, EventHedgeClose}
	if !reflect.DeepEqual(kinds, want) {
		t.Errorf("trade log kinds = %v, want %v", kinds, want)
	}
	closeEntry := result.TradeLogs[2]
	approx(t, "close realized P&L", closeEntry.RealizedPnL, -300_000)
	if closeEntry.Quantity != 4 {
		t.Errorf("close quantity = %d, want 4", closeEntry.Quantity)
	}

	// Summary reduction.
	s := result.Summary
	approx(t, "final equity", s.FinalEquity, 708_000)
	approx(t, "total return", s.TotalReturn, -292_000)
	approx(t, "total return percent", s.TotalReturnPercent, -29.2)
	approx(t, "max drawdown percent", s.MaxDrawdownPercent, 29.2)
	approx(t, "total hedge P&L", s.TotalHedgePnL, -300_000)
	if s.HedgeTrades != 1 {
		t.Errorf("hedge trades = %d, want 1", s.HedgeTrades)
	}
	if s.TradingDays != 3 {
		t.Errorf("trading days = %d, want 3", s.TradingDays)
	}
}

func TestEngine_Run_WarmupSuppression(t *testing.T) {
	// Falling index: every post-warm-up day is below its MA, so the only
	// thing keeping the hedge shut early is the warm-up itself.
	series := make([]core.PriceObservation, 20)
	for i := range series {
		series[i] = obs(day("2024-01-01").AddDate(0, 0, i).Format(core.DateLayout),
			22000-float64(i)*100, 180-float64(i))
	}
	params := baseParams(series)
	params.MAPeriod = 13
	params.EnableRebalance = false

	result, err := New().Run(context.Background(), series, params)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for i := 0; i < 12; i++ {
		d := result.DailyResults[i]
		if d.Signal != SignalNone {
			t.Errorf("day %d signal = %s, want none during warm-up", i, d.Signal)
		}
		if d.MovingAverage.Defined {
			t.Errorf("day %d MA should be undefined", i)
		}
		if d.HedgeContracts != 0 {
			t.Errorf("day %d has hedge contracts during warm-up", i)
		}
	}

	for _, e := range result.TradeLogs {
		if e.Kind == EventBuy {
			continue
		}
		if e.Date.Before(series[12].Date) {
			t.Errorf("%s event on %s precedes warm-up end", e.Kind, e.Date.Format(core.DateLayout))
		}
	}

	// Day 12 is the first defined MA; the falling series opens a hedge there.
	if !result.DailyResults[12].MovingAverage.Defined {
		t.Error("day 12 MA should be defined")
	}
	if result.DailyResults[12].HedgeContracts == 0 {
		t.Error("expected hedge open on first post-warm-up below-MA day")
	}
}

func TestEngine_Run_NoRebalanceDuringWarmup(t *testing.T) {
	// A month boundary inside the MA warm-up window. The instrument jumps
	// 100 -> 150, far past the 1% threshold, so only the warm-up gate keeps
	// the rebalance shut.
	series := []core.PriceObservation{
		obs("2024-01-31", 22000, 100),
		obs("2024-02-01", 22000, 150),
	}
	params := baseParams(series)
	params.MAPeriod = 40

	result, err := New().Run(context.Background(), series, params)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for _, e := range result.TradeLogs {
		if e.Kind == EventRebalance {
			t.Errorf("rebalance fired on %s during MA warm-up", e.Date.Format(core.DateLayout))
		}
	}
	if got := result.DailyResults[1].Lots; got != 8 {
		t.Errorf("day 1 lots = %d, want unchanged 8", got)
	}
	if got := result.DailyResults[1].Signal; got != SignalNone {
		t.Errorf("day 1 signal = %s, want none during warm-up", got)
	}
}

func TestEngine_Run_MonthlyRebalance(t *testing.T) {
	// Rising index keeps the hedge shut; instrument rally forces a sell
	// back to 80/20 at the month boundary.
	series := []core.PriceObservation{
		obs("2024-01-02", 100, 100),
		obs("2024-01-03", 110, 100),
		obs("2024-02-01", 120, 150),
	}
	params := baseParams(series)
	params.InitialCapital = 10_000_000
	params.MAPeriod = 3

	result, err := New().Run(context.Background(), series, params)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// 80 lots at 150 = 12M; total 14M; target 11.2M; diff -800k;
	// round(-800000/150000) = -5 lots.
	var rebalance *TradeLogEntry
	for i := range result.TradeLogs {
		if result.TradeLogs[i].Kind == EventRebalance {
			if rebalance != nil {
				t.Fatal("expected a single rebalance entry")
			}
			rebalance = &result.TradeLogs[i]
		}
	}
	if rebalance == nil {
		t.Fatal("expected a rebalance entry at the month boundary")
	}
	if rebalance.Quantity != -5 {
		t.Errorf("rebalance quantity = %d, want -5 (sell)", rebalance.Quantity)
	}
	if rebalance.LotsAfter != 75 {
		t.Errorf("lots after rebalance = %d, want 75", rebalance.LotsAfter)
	}
	approx(t, "reserve after rebalance", rebalance.ReserveAfter, 2_750_000)

	last := result.DailyResults[2]
	if last.Lots != 75 {
		t.Errorf("day 2 lots = %d, want 75", last.Lots)
	}
	approx(t, "day 2 equity", last.TotalEquity, 14_000_000)
	if result.Summary.Rebalances != 1 {
		t.Errorf("summary rebalances = %d, want 1", result.Summary.Rebalances)
	}
}

func TestEngine_Run_SameMonthNoRebalance(t *testing.T) {
	// Large drift, but all dates share a calendar month.
	series := []core.PriceObservation{
		obs("2024-01-02", 100, 100),
		obs("2024-01-03", 110, 100),
		obs("2024-01-15", 120, 150),
	}
	params := baseParams(series)
	params.InitialCapital = 10_000_000
	params.MAPeriod = 3

	result, err := New().Run(context.Background(), series, params)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for _, e := range result.TradeLogs {
		if e.Kind == EventRebalance {
			t.Fatal("rebalance must not fire inside a calendar month")
		}
	}
}

func TestEngine_Run_RebalanceSkippedWhileHedged(t *testing.T) {
	series := []core.PriceObservation{
		obs("2024-01-02", 100, 10),
		obs("2024-01-03", 90, 9),
		obs("2024-02-01", 80, 8),
	}
	params := baseParams(series)
	params.MarginPerContract = 10_000
	params.SafetyMultiplier = 1

	result, err := New().Run(context.Background(), series, params)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// Hedge opens on day 1 (90 < MA 95) and stays open into February.
	if result.DailyResults[1].HedgeContracts != 20 {
		t.Fatalf("day 1 contracts = %d, want 20", result.DailyResults[1].HedgeContracts)
	}
	if result.DailyResults[2].HedgeContracts != 20 {
		t.Fatalf("day 2 contracts = %d, want 20 (still hedged)", result.DailyResults[2].HedgeContracts)
	}

	for _, e := range result.TradeLogs {
		if e.Kind == EventRebalance {
			t.Fatal("rebalance must be skipped while a hedge is open")
		}
	}

	// Mark-to-market: 80 lots * 8 + reserve + 20*(90-80)*50 unrealized.
	approx(t, "day 2 equity", result.DailyResults[2].TotalEquity, 640_000+200_000+10_000)
}

func TestEngine_Run_ZeroLotRebalanceSilent(t *testing.T) {
	// Deviation exceeds 1% of equity but rounds to 0 lots: no trade, no entry.
	series := []core.PriceObservation{
		obs("2024-01-02", 100, 100),
		obs("2024-01-03", 110, 100),
		obs("2024-02-01", 120, 85),
	}
	params := baseParams(series)
	params.InitialCapital = 1_020_000
	params.MAPeriod = 3

	result, err := New().Run(context.Background(), series, params)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// 8 lots at 85 = 680k; total 900k; diff 40k > 9k threshold, but
	// round(40000/85000) = 0.
	for _, e := range result.TradeLogs {
		if e.Kind == EventRebalance {
			t.Fatal("zero-lot rebalance must not be logged")
		}
	}
	if result.DailyResults[2].Lots != 8 {
		t.Errorf("lots = %d, want unchanged 8", result.DailyResults[2].Lots)
	}
}

func TestEngine_Run_ZeroCapacitySuppressed(t *testing.T) {
	series := []core.PriceObservation{
		obs("2024-01-02", 100, 10),
		obs("2024-01-03", 90, 9),
		obs("2024-01-04", 80, 8),
	}
	params := baseParams(series)
	params.MarginPerContract = 1_000_000 // reserve can never carry a contract

	result, err := New().Run(context.Background(), series, params)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for i, d := range result.DailyResults {
		if d.HedgeContracts != 0 {
			t.Errorf("day %d opened a hedge with zero capacity", i)
		}
	}
	for _, e := range result.TradeLogs {
		if e.Kind == EventHedgeOpen {
			t.Fatal("zero-capacity entry must be silent")
		}
	}
	// Below-MA days with no open hedge fall through to the long signal.
	if result.DailyResults[1].Signal != SignalLong {
		t.Errorf("day 1 signal = %s, want long", result.DailyResults[1].Signal)
	}
}

func TestEngine_Run_AtMostOnePosition(t *testing.T) {
	series := []core.PriceObservation{
		obs("2024-01-02", 100, 10),
		obs("2024-01-03", 101, 10),
		obs("2024-01-04", 90, 9),
		obs("2024-01-05", 89, 9),
		obs("2024-01-08", 88, 9),
		obs("2024-01-09", 95, 10),
	}
	params := baseParams(series)

	result, err := New().Run(context.Background(), series, params)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// Contracts only ever change open-from-zero or close-to-zero.
	prev := 0
	for i, d := range result.DailyResults {
		if d.HedgeContracts > 0 && prev > 0 && d.HedgeContracts != prev {
			t.Errorf("day %d contracts changed %d -> %d without a close", i, prev, d.HedgeContracts)
		}
		prev = d.HedgeContracts
	}

	var opens, closes int
	for _, e := range result.TradeLogs {
		switch e.Kind {
		case EventHedgeOpen:
			opens++
		case EventHedgeClose:
			closes++
		}
	}
	if opens != 1 || closes != 1 {
		t.Errorf("opens = %d, closes = %d, want 1 and 1", opens, closes)
	}
}

func TestEngine_Run_Conservation(t *testing.T) {
	series := []core.PriceObservation{
		obs("2024-01-02", 100, 10),
		obs("2024-01-03", 101, 10),
		obs("2024-01-04", 90, 9),
		obs("2024-01-05", 89, 9),
		obs("2024-02-01", 95, 10),
		obs("2024-02-02", 96, 11),
	}
	params := baseParams(series)

	result, err := New().Run(context.Background(), series, params)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// Reconstruct the hedge entry price from the trade log and verify the
	// equity identity on every day.
	entryPrice := 0.0
	entries := map[string]float64{}
	for _, e := range result.TradeLogs {
		if e.Kind == EventHedgeOpen {
			entries[e.Date.Format(core.DateLayout)] = e.Price
		}
	}
	for i, d := range result.DailyResults {
		if p, ok := entries[d.Date.Format(core.DateLayout)]; ok {
			entryPrice = p
		}
		unrealized := 0.0
		if d.HedgeContracts > 0 {
			unrealized = float64(d.HedgeContracts) * (entryPrice - d.IndexPrice) * PointValue
		}
		want := d.InstrumentValue + d.HedgeReserve + unrealized
		if d.TotalEquity != want {
			t.Errorf("day %d equity = %v, want exact %v", i, d.TotalEquity, want)
		}
	}

	// Monotonic drawdown: recomputing the running maximum must match the
	// summary figure.
	peak, maxDD := 0.0, 0.0
	for _, d := range result.DailyResults {
		if d.TotalEquity > peak {
			peak = d.TotalEquity
		}
		if dd := (peak - d.TotalEquity) / peak; dd > maxDD {
			maxDD = dd
		}
	}
	approx(t, "max drawdown", result.Summary.MaxDrawdownPercent, maxDD*100)
}

func TestEngine_Run_Idempotent(t *testing.T) {
	series := []core.PriceObservation{
		obs("2024-01-02", 22000, 180),
		obs("2024-01-03", 21000, 175),
		obs("2024-02-01", 22500, 182),
		obs("2024-02-02", 21800, 179),
	}
	params := baseParams(series)

	first, err := New().Run(context.Background(), series, params)
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	second, err := New().Run(context.Background(), series, params)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Error("identical inputs must produce identical results")
	}
}

func TestEngine_Run_EmptyRange(t *testing.T) {
	series := []core.PriceObservation{obs("2024-01-02", 22000, 180)}
	params := baseParams(series)
	params.StartDate = day("2025-01-01")
	params.EndDate = day("2025-12-31")

	_, err := New().Run(context.Background(), series, params)
	if !errors.Is(err, core.ErrEmptyRange) {
		t.Errorf("expected ErrEmptyRange, got %v", err)
	}
}

func TestEngine_Run_ContextCancelled(t *testing.T) {
	series := []core.PriceObservation{obs("2024-01-02", 22000, 180)}
	params := baseParams(series)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Run(ctx, series, params)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestParams_Validate(t *testing.T) {
	valid := Params{
		StartDate:         day("2024-01-01"),
		EndDate:           day("2024-12-31"),
		InitialCapital:    1_000_000,
		TargetRatio:       0.8,
		MAPeriod:          20,
		MarginPerContract: 46_000,
		SafetyMultiplier:  1.5,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid params rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"zero capital", func(p *Params) { p.InitialCapital = 0 }},
		{"ratio zero", func(p *Params) { p.TargetRatio = 0 }},
		{"ratio one", func(p *Params) { p.TargetRatio = 1 }},
		{"zero MA period", func(p *Params) { p.MAPeriod = 0 }},
		{"zero margin", func(p *Params) { p.MarginPerContract = 0 }},
		{"safety below one", func(p *Params) { p.SafetyMultiplier = 0.9 }},
		{"reversed dates", func(p *Params) { p.StartDate, p.EndDate = p.EndDate, p.StartDate }},
	}

	for _, tt := range tests {
		p := valid
		tt.mutate(&p)
		err := p.Validate()
		if !errors.Is(err, core.ErrInvalidParameter) {
			t.Errorf("%s: expected ErrInvalidParameter, got %v", tt.name, err)
		}
	}
}
