package backtest

import (
	"fmt"
	"time"

	"github.com/quantoshi/hedgefolio/internal/core"
	"github.com/quantoshi/hedgefolio/internal/indicator"
)

// PointValue is the cash value of one index futures point per contract,
// fixed by the exchange.
const PointValue = 50

// rebalanceThreshold suppresses trades whose deviation is below 1% of
// total equity, avoiding churn from noise-level drift.
const rebalanceThreshold = 0.01

// Signal classifies a simulated day's posture.
type Signal string

const (
	SignalLong  Signal = "long"  // core position only, no hedge
	SignalHedge Signal = "hedge" // short futures position open
	SignalNone  Signal = "none"  // moving average still warming up
)

// EventKind identifies a trade log entry.
type EventKind string

const (
	EventBuy        EventKind = "buy"
	EventRebalance  EventKind = "rebalance"
	EventHedgeOpen  EventKind = "hedge_open"
	EventHedgeClose EventKind = "hedge_close"
)

// Params configures one backtest run. All fields are required; the engine
// injects no defaults.
type Params struct {
	StartDate         time.Time `json:"startDate"`
	EndDate           time.Time `json:"endDate"`
	InitialCapital    float64   `json:"initialCapital"`
	TargetRatio       float64   `json:"targetRatio"`
	MAPeriod          int       `json:"maPeriod"`
	MarginPerContract float64   `json:"marginPerContract"`
	SafetyMultiplier  float64   `json:"safetyMultiplier"`
	EnableRebalance   bool      `json:"enableRebalance"`
}

// Validate rejects malformed parameters before a run starts.
func (p Params) Validate() error {
	switch {
	case p.InitialCapital <= 0:
		return core.WrapError(core.ErrInvalidParameter,
			fmt.Errorf("initial capital must be positive, got %v", p.InitialCapital))
	case p.TargetRatio <= 0 || p.TargetRatio >= 1:
		return core.WrapError(core.ErrInvalidParameter,
			fmt.Errorf("target ratio must be in (0,1), got %v", p.TargetRatio))
	case p.MAPeriod <= 0:
		return core.WrapError(core.ErrInvalidParameter,
			fmt.Errorf("MA period must be positive, got %d", p.MAPeriod))
	case p.MarginPerContract <= 0:
		return core.WrapError(core.ErrInvalidParameter,
			fmt.Errorf("margin per contract must be positive, got %v", p.MarginPerContract))
	case p.SafetyMultiplier < 1:
		return core.WrapError(core.ErrInvalidParameter,
			fmt.Errorf("safety multiplier must be >= 1, got %v", p.SafetyMultiplier))
	case p.EndDate.Before(p.StartDate):
		return core.WrapError(core.ErrInvalidParameter,
			fmt.Errorf("start date %s is after end date %s",
				p.StartDate.Format(core.DateLayout), p.EndDate.Format(core.DateLayout)))
	}
	return nil
}

// DailyResult is one simulated trading day, immutable once emitted.
type DailyResult struct {
	Date            time.Time       `json:"date"`
	IndexPrice      float64         `json:"indexPrice"`
	InstrumentPrice float64         `json:"instrumentPrice"`
	MovingAverage   indicator.Point `json:"movingAverage"`
	Lots            int             `json:"lots"`
	InstrumentValue float64         `json:"instrumentValue"`
	HedgeReserve    float64         `json:"hedgeReserve"`
	HedgeContracts  int             `json:"hedgeContracts"`
	HedgePnL        float64         `json:"hedgePnl"` // realized on a close that day, else 0
	TotalEquity     float64         `json:"totalEquity"`
	Signal          Signal          `json:"signal"`
}

// TradeLogEntry records a state-changing event. Quantity is lots for equity
// events and contracts for hedge events; a negative quantity is a sell.
type TradeLogEntry struct {
	Date         time.Time `json:"date"`
	Kind         EventKind `json:"kind"`
	Description  string    `json:"description"`
	Quantity     int       `json:"quantity"`
	Price        float64   `json:"price"`
	Amount       float64   `json:"amount"` // absolute cash moved
	RealizedPnL  float64   `json:"realizedPnl,omitempty"`
	LotsAfter    int       `json:"lotsAfter"`
	ReserveAfter float64   `json:"reserveAfter"`
	EquityAfter  float64   `json:"equityAfter"`
}

// Summary reduces a run to headline statistics.
type Summary struct {
	StartDate          time.Time `json:"startDate"`
	EndDate            time.Time `json:"endDate"`
	TradingDays        int       `json:"tradingDays"`
	InitialCapital     float64   `json:"initialCapital"`
	FinalEquity        float64   `json:"finalEquity"`
	TotalReturn        float64   `json:"totalReturn"`
	TotalReturnPercent float64   `json:"totalReturnPercent"`
	MaxDrawdownPercent float64   `json:"maxDrawdownPercent"`
	TotalHedgePnL      float64   `json:"totalHedgePnl"`
	HedgeTrades        int       `json:"hedgeTrades"` // closed hedge round-trips
	Rebalances         int       `json:"rebalances"`
	FinalLots          int       `json:"finalLots"`
	FinalReserve       float64   `json:"finalReserve"`
}

// Result holds the complete backtest output. It is owned by the caller
// after return and safe to serialize as-is.
type Result struct {
	Params       Params          `json:"params"`
	DailyResults []DailyResult   `json:"dailyResults"`
	TradeLogs    []TradeLogEntry `json:"tradeLogs"`
	Summary      Summary         `json:"summary"`
}
