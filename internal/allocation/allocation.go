// Package allocation holds the pure sizing math for the 80/20 strategy:
// the initial capital split, hedge contract capacity, and the
// configuration-deviation health rating.
package allocation

import "math"

// LotSize is the number of shares in one tradable lot.
const LotSize = 1000

// Health rates how far the live allocation has drifted from its target.
type Health string

const (
	HealthExcellent Health = "excellent"
	HealthGood      Health = "good"
	HealthWarning   Health = "warning"
	HealthDanger    Health = "danger"
)

// InitialAllocation is the capital split for a fresh position.
type InitialAllocation struct {
	InstrumentAllocation float64 `json:"instrumentAllocation"`
	ReserveAllocation    float64 `json:"reserveAllocation"`
	Lots                 int     `json:"lots"`
	InstrumentValue      float64 `json:"instrumentValue"`
}

// Initial splits capital between the instrument and the hedge reserve.
// Lot count is floored, never rounded, so capital is never over-committed.
func Initial(capital, ratio, price float64) InitialAllocation {
	alloc := capital * ratio
	lots := 0
	if price > 0 {
		lots = int(math.Floor(alloc / (price * LotSize)))
	}
	if lots < 0 {
		lots = 0
	}
	return InitialAllocation{
		InstrumentAllocation: alloc,
		ReserveAllocation:    capital * (1 - ratio),
		Lots:                 lots,
		InstrumentValue:      float64(lots) * LotSize * price,
	}
}

// HedgeCapacity is how many short contracts the reserve can carry.
type HedgeCapacity struct {
	MaxContracts     int     `json:"maxContracts"`
	MarginRequired   float64 `json:"marginRequired"`
	AvailableCapital float64 `json:"availableCapital"`
}

// Capacity computes hedge capacity from the reserve. The safety multiplier
// is a deliberate haircut: realized margin usage never approaches 100% of
// the reserve, so an adverse move cannot wipe the account before a close.
func Capacity(reserve, marginPerContract, safetyMultiplier float64) HedgeCapacity {
	effective := marginPerContract * safetyMultiplier
	if effective <= 0 || reserve <= 0 {
		return HedgeCapacity{AvailableCapital: reserve}
	}
	contracts := int(math.Floor(reserve / effective))
	required := float64(contracts) * effective
	return HedgeCapacity{
		MaxContracts:     contracts,
		MarginRequired:   required,
		AvailableCapital: reserve - required,
	}
}

// HealthOf rates an allocation deviation fraction. Thresholds are policy
// constants, not derived.
func HealthOf(deviationFraction float64) Health {
	pct := math.Abs(deviationFraction * 100)
	switch {
	case pct <= 2:
		return HealthExcellent
	case pct <= 5:
		return HealthGood
	case pct <= 10:
		return HealthWarning
	default:
		return HealthDanger
	}
}
