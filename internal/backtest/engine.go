package backtest

import (
	"context"
	"fmt"
	"math"

	"github.com/quantoshi/hedgefolio/internal/allocation"
	"github.com/quantoshi/hedgefolio/internal/core"
	"github.com/quantoshi/hedgefolio/internal/indicator"
)

// Engine runs day-by-day simulations of the 80/20 hedge strategy. It holds
// no per-run state; one Engine is safe for concurrent runs.
type Engine struct{}

// New creates a new Engine
func New() *Engine {
	return &Engine{}
}

// runState is the mutable accumulator for one simulation. It never escapes
// the run that owns it.
type runState struct {
	lots          int
	reserve       float64
	contracts     int
	entryPrice    float64
	peakEquity    float64
	maxDrawdown   float64 // fraction
	totalHedgePnL float64
}

// Run executes one backtest over the supplied daily series. The series must
// be sorted ascending by date; calendar gaps are tolerated. The context is
// checked at the top of every day iteration, so long ranges can be
// interrupted between days.
func (e *Engine) Run(ctx context.Context, series []core.PriceObservation, params Params) (*Result, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	days := core.FilterRange(series, params.StartDate, params.EndDate)
	if len(days) == 0 {
		return nil, core.ErrEmptyRange
	}

	first := days[0]
	if first.IndexPrice <= 0 || first.InstrumentPrice <= 0 {
		return nil, core.WrapError(core.ErrInvalidParameter,
			fmt.Errorf("non-positive price on %s", first.Date.Format(core.DateLayout)))
	}

	// The MA warm-up counts from the start of the filtered range, not the
	// untrimmed input.
	indexPrices := make([]float64, len(days))
	for i, d := range days {
		indexPrices[i] = d.IndexPrice
	}
	ma := indicator.SMA(indexPrices, params.MAPeriod)

	init := allocation.Initial(params.InitialCapital, params.TargetRatio, first.InstrumentPrice)
	st := runState{
		lots: init.Lots,
		// Whole-lot flooring leaves part of the instrument allocation
		// unspent; that remainder stays in the reserve so day-0 equity
		// equals the initial capital exactly.
		reserve: params.InitialCapital - init.InstrumentValue,
	}

	daily := make([]DailyResult, 0, len(days))
	logs := make([]TradeLogEntry, 0, 8)

	logs = append(logs, TradeLogEntry{
		Date: first.Date,
		Kind: EventBuy,
		Description: fmt.Sprintf("initial buy %d lots @ %.2f (%.0f%% of %.0f)",
			st.lots, first.InstrumentPrice, params.TargetRatio*100, params.InitialCapital),
		Quantity:     st.lots,
		Price:        first.InstrumentPrice,
		Amount:       init.InstrumentValue,
		LotsAfter:    st.lots,
		ReserveAfter: st.reserve,
		EquityAfter:  params.InitialCapital,
	})

	for i, day := range days {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		instrumentValue := float64(st.lots) * allocation.LotSize * day.InstrumentPrice

		// 1. Monthly rebalance. Skipped on the first day, during the MA
		// warm-up, while a hedge is open, and inside a calendar month.
		if params.EnableRebalance && i > 0 && ma[i].Defined && st.contracts == 0 &&
			!core.SameMonth(day.Date, days[i-1].Date) {
			if entry, ok := e.rebalance(&st, day, instrumentValue, params.TargetRatio); ok {
				logs = append(logs, entry)
				instrumentValue = float64(st.lots) * allocation.LotSize * day.InstrumentPrice
			}
		}

		// 2. Hedge transition, only once the MA is defined.
		var hedgePnL float64
		if ma[i].Defined {
			below := day.IndexPrice < ma[i].Value
			switch {
			case below && st.contracts == 0:
				if entry, ok := e.openHedge(&st, day, instrumentValue, params); ok {
					logs = append(logs, entry)
				}
			case !below && st.contracts > 0:
				var entry TradeLogEntry
				entry, hedgePnL = e.closeHedge(&st, day, instrumentValue)
				logs = append(logs, entry)
			}
		}

		// 3. Mark-to-market. Unrealized hedge P&L contributes to equity but
		// never mutates the reserve.
		var unrealized float64
		if st.contracts > 0 {
			unrealized = float64(st.contracts) * (st.entryPrice - day.IndexPrice) * PointValue
		}
		equity := instrumentValue + st.reserve + unrealized

		// 4. Drawdown tracking.
		if equity > st.peakEquity {
			st.peakEquity = equity
		}
		if st.peakEquity > 0 {
			if dd := (st.peakEquity - equity) / st.peakEquity; dd > st.maxDrawdown {
				st.maxDrawdown = dd
			}
		}

		// 5. Emit the day, trade or not.
		signal := SignalNone
		if ma[i].Defined {
			if st.contracts > 0 {
				signal = SignalHedge
			} else {
				signal = SignalLong
			}
		}
		daily = append(daily, DailyResult{
			Date:            day.Date,
			IndexPrice:      day.IndexPrice,
			InstrumentPrice: day.InstrumentPrice,
			MovingAverage:   ma[i],
			Lots:            st.lots,
			InstrumentValue: instrumentValue,
			HedgeReserve:    st.reserve,
			HedgeContracts:  st.contracts,
			HedgePnL:        hedgePnL,
			TotalEquity:     equity,
			Signal:          signal,
		})
	}

	return &Result{
		Params:       params,
		DailyResults: daily,
		TradeLogs:    logs,
		Summary:      Summarize(params, daily, logs, st.maxDrawdown),
	}, nil
}

// rebalance restores the target instrument ratio at a month boundary.
// Trades below the 1% deviation threshold, or that round to zero lots,
// perform nothing and log nothing.
func (e *Engine) rebalance(st *runState, day core.PriceObservation, instrumentValue, targetRatio float64) (TradeLogEntry, bool) {
	total := instrumentValue + st.reserve
	target := total * targetRatio
	diff := target - instrumentValue
	if math.Abs(diff) <= total*rebalanceThreshold {
		return TradeLogEntry{}, false
	}

	tradeLots := int(math.Round(diff / (day.InstrumentPrice * allocation.LotSize)))
	if tradeLots == 0 {
		return TradeLogEntry{}, false
	}

	amount := float64(tradeLots) * allocation.LotSize * day.InstrumentPrice
	st.lots += tradeLots
	st.reserve -= amount

	side := "buy"
	if tradeLots < 0 {
		side = "sell"
	}
	newValue := float64(st.lots) * allocation.LotSize * day.InstrumentPrice
	return TradeLogEntry{
		Date: day.Date,
		Kind: EventRebalance,
		Description: fmt.Sprintf("monthly rebalance %s %d lots @ %.2f",
			side, abs(tradeLots), day.InstrumentPrice),
		Quantity:     tradeLots,
		Price:        day.InstrumentPrice,
		Amount:       math.Abs(amount),
		LotsAfter:    st.lots,
		ReserveAfter: st.reserve,
		EquityAfter:  newValue + st.reserve,
	}, true
}

// openHedge shorts as many contracts as the reserve can carry. Zero capacity
// suppresses entry silently; the engine re-evaluates on every later
// below-MA day.
func (e *Engine) openHedge(st *runState, day core.PriceObservation, instrumentValue float64, params Params) (TradeLogEntry, bool) {
	capacity := allocation.Capacity(st.reserve, params.MarginPerContract, params.SafetyMultiplier)
	if capacity.MaxContracts == 0 {
		return TradeLogEntry{}, false
	}

	st.contracts = capacity.MaxContracts
	st.entryPrice = day.IndexPrice

	return TradeLogEntry{
		Date: day.Date,
		Kind: EventHedgeOpen,
		Description: fmt.Sprintf("short %d contracts @ %.2f (index below MA)",
			st.contracts, day.IndexPrice),
		Quantity:     st.contracts,
		Price:        day.IndexPrice,
		Amount:       capacity.MarginRequired,
		LotsAfter:    st.lots,
		ReserveAfter: st.reserve,
		EquityAfter:  instrumentValue + st.reserve,
	}, true
}

// closeHedge covers the open short; only here does hedge P&L become
// realized and enter the reserve.
func (e *Engine) closeHedge(st *runState, day core.PriceObservation, instrumentValue float64) (TradeLogEntry, float64) {
	points := st.entryPrice - day.IndexPrice
	realized := float64(st.contracts) * points * PointValue
	closed := st.contracts

	st.reserve += realized
	st.totalHedgePnL += realized
	st.contracts = 0
	st.entryPrice = 0

	return TradeLogEntry{
		Date: day.Date,
		Kind: EventHedgeClose,
		Description: fmt.Sprintf("cover %d contracts @ %.2f, realized %.0f",
			closed, day.IndexPrice, realized),
		Quantity:     closed,
		Price:        day.IndexPrice,
		RealizedPnL:  realized,
		Amount:       math.Abs(realized),
		LotsAfter:    st.lots,
		ReserveAfter: st.reserve,
		EquityAfter:  instrumentValue + st.reserve,
	}, realized
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
