package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/quantoshi/hedgefolio/internal/allocation"
	"github.com/quantoshi/hedgefolio/internal/api/response"
	"github.com/quantoshi/hedgefolio/internal/core"
)

// AllocationRequest is the request body for allocation math.
type AllocationRequest struct {
	Capital           float64 `json:"capital"`
	TargetRatio       float64 `json:"targetRatio"`
	InstrumentPrice   float64 `json:"instrumentPrice"`
	MarginPerContract float64 `json:"marginPerContract"`
	SafetyMultiplier  float64 `json:"safetyMultiplier"`
	DeviationFraction float64 `json:"deviationFraction"`
}

// AllocationResponse carries the computed split, hedge capacity, and the
// health grade for the supplied deviation.
type AllocationResponse struct {
	Initial  allocation.InitialAllocation `json:"initial"`
	Capacity allocation.HedgeCapacity     `json:"capacity"`
	Health   allocation.Health            `json:"health"`
}

// AllocationHandler serves the stateless allocation calculations.
type AllocationHandler struct{}

// NewAllocationHandler creates a new allocation handler.
func NewAllocationHandler() *AllocationHandler {
	return &AllocationHandler{}
}

// Compute runs the allocation math for one configuration.
func (h *AllocationHandler) Compute(w http.ResponseWriter, r *http.Request) {
	var req AllocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrInvalidParameter, err))
		return
	}

	if req.Capital <= 0 {
		response.Error(w, http.StatusBadRequest, core.WrapError(core.ErrInvalidParameter,
			fmt.Errorf("capital must be positive, got %v", req.Capital)))
		return
	}
	if req.TargetRatio <= 0 || req.TargetRatio >= 1 {
		response.Error(w, http.StatusBadRequest, core.WrapError(core.ErrInvalidParameter,
			fmt.Errorf("target ratio must be in (0,1), got %v", req.TargetRatio)))
		return
	}
	if req.InstrumentPrice <= 0 {
		response.Error(w, http.StatusBadRequest, core.WrapError(core.ErrInvalidParameter,
			fmt.Errorf("instrument price must be positive, got %v", req.InstrumentPrice)))
		return
	}
	if req.SafetyMultiplier < 1 {
		response.Error(w, http.StatusBadRequest, core.WrapError(core.ErrInvalidParameter,
			fmt.Errorf("safety multiplier must be >= 1, got %v", req.SafetyMultiplier)))
		return
	}

	initial := allocation.Initial(req.Capital, req.TargetRatio, req.InstrumentPrice)
	reserve := req.Capital - initial.InstrumentValue

	capacity := allocation.HedgeCapacity{}
	if req.MarginPerContract > 0 {
		capacity = allocation.Capacity(reserve, req.MarginPerContract, req.SafetyMultiplier)
	}

	response.JSON(w, http.StatusOK, AllocationResponse{
		Initial:  initial,
		Capacity: capacity,
		Health:   allocation.HealthOf(req.DeviationFraction),
	})
}
