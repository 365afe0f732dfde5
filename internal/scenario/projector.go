// Package scenario projects hypothetical index moves onto the current
// position, answering "what does my P&L look like if the index moves N
// points from here".
package scenario

import (
	"fmt"

	"github.com/quantoshi/hedgefolio/internal/allocation"
	"github.com/quantoshi/hedgefolio/internal/core"
)

// LeverageFactor is the instrument's daily leverage versus the index.
const LeverageFactor = 2.0

const (
	// DefaultSpan projects +/- 1500 index points around the base.
	DefaultSpan = 1500
	// DefaultStep spaces projection rows 100 points apart.
	DefaultStep = 100
)

// Input describes the position being projected.
type Input struct {
	BaseIndexPrice  float64 `json:"baseIndexPrice"`
	InstrumentPrice float64 `json:"instrumentPrice"`
	Lots            int     `json:"lots"`
	CostBasis       float64 `json:"costBasis"`
}

// Row is one projected index level.
type Row struct {
	DeltaPoints              int     `json:"deltaPoints"`
	ProjectedIndexPrice      float64 `json:"projectedIndexPrice"`
	ProjectedInstrumentPrice float64 `json:"projectedInstrumentPrice"`
	ProjectedPnL             float64 `json:"projectedPnl"`
}

// Project builds the default projection table, DefaultSpan wide at
// DefaultStep spacing.
func Project(in Input) ([]Row, error) {
	return ProjectRange(in, DefaultSpan, DefaultStep)
}

// ProjectRange builds rows from -span to +span points at the given step.
// The leveraged instrument is assumed to move LeverageFactor times the
// index's percentage change; the zero-delta row is always present and
// reproduces the current position exactly.
func ProjectRange(in Input, span, step int) ([]Row, error) {
	if in.BaseIndexPrice <= 0 {
		return nil, core.WrapError(core.ErrInvalidParameter,
			fmt.Errorf("base index price must be positive, got %v", in.BaseIndexPrice))
	}
	if in.InstrumentPrice <= 0 {
		return nil, core.WrapError(core.ErrInvalidParameter,
			fmt.Errorf("instrument price must be positive, got %v", in.InstrumentPrice))
	}
	if span <= 0 || step <= 0 {
		return nil, core.WrapError(core.ErrInvalidParameter,
			fmt.Errorf("span and step must be positive, got span=%d step=%d", span, step))
	}

	// Integer stepping keeps the grid exact; a float accumulator would
	// drift off the zero row.
	n := span / step
	rows := make([]Row, 0, 2*n+1)
	for i := -n; i <= n; i++ {
		delta := i * step
		pctChange := float64(delta) / in.BaseIndexPrice
		projPrice := in.InstrumentPrice * (1 + pctChange*LeverageFactor)

		pnl := 0.0
		if in.Lots > 0 {
			pnl = float64(in.Lots) * allocation.LotSize * (projPrice - in.CostBasis)
		}

		rows = append(rows, Row{
			DeltaPoints:              delta,
			ProjectedIndexPrice:      in.BaseIndexPrice + float64(delta),
			ProjectedInstrumentPrice: projPrice,
			ProjectedPnL:             pnl,
		})
	}
	return rows, nil
}
