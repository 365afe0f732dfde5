package api

import (
	"encoding/json"
	"net/http"

	"github.com/quantoshi/hedgefolio/internal/api/response"
	"github.com/quantoshi/hedgefolio/internal/core"
	"github.com/quantoshi/hedgefolio/internal/metrics"
	"github.com/quantoshi/hedgefolio/internal/scenario"
)

// ScenarioRequest is the request body for a projection table.
type ScenarioRequest struct {
	BaseIndexPrice  float64 `json:"baseIndexPrice"`
	InstrumentPrice float64 `json:"instrumentPrice"`
	Lots            int     `json:"lots"`
	CostBasis       float64 `json:"costBasis"`
	Span            int     `json:"span,omitempty"`
	Step            int     `json:"step,omitempty"`
}

// ScenarioHandler serves what-if projection tables.
type ScenarioHandler struct {
	registry *metrics.Registry
}

// NewScenarioHandler creates a new scenario handler.
func NewScenarioHandler(registry *metrics.Registry) *ScenarioHandler {
	return &ScenarioHandler{registry: registry}
}

// Project computes the projection synchronously; the table is a few dozen
// rows of arithmetic, not worth a job.
func (h *ScenarioHandler) Project(w http.ResponseWriter, r *http.Request) {
	var req ScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrInvalidParameter, err))
		return
	}

	span := req.Span
	if span == 0 {
		span = scenario.DefaultSpan
	}
	step := req.Step
	if step == 0 {
		step = scenario.DefaultStep
	}

	rows, err := scenario.ProjectRange(scenario.Input{
		BaseIndexPrice:  req.BaseIndexPrice,
		InstrumentPrice: req.InstrumentPrice,
		Lots:            req.Lots,
		CostBasis:       req.CostBasis,
	}, span, step)
	if err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}

	h.registry.RecordScenarioProjection()
	response.JSON(w, http.StatusOK, map[string]any{
		"rows": rows,
	})
}
