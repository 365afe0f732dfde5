package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/quantoshi/hedgefolio/internal/api/job"
	"github.com/quantoshi/hedgefolio/internal/api/response"
	"github.com/quantoshi/hedgefolio/internal/backtest"
	"github.com/quantoshi/hedgefolio/internal/config"
	"github.com/quantoshi/hedgefolio/internal/core"
	"github.com/quantoshi/hedgefolio/internal/metrics"
	"github.com/quantoshi/hedgefolio/internal/pricesource"
	"github.com/quantoshi/hedgefolio/internal/storage/archive"
	"github.com/quantoshi/hedgefolio/internal/storage/result"
)

const backtestTimeout = 5 * time.Minute

// BacktestRequest is the request body for starting a backtest. Fields left
// at zero fall back to the configured defaults.
type BacktestRequest struct {
	Start             string   `json:"start"`
	End               string   `json:"end"`
	InitialCapital    float64  `json:"initialCapital,omitempty"`
	TargetRatio       float64  `json:"targetRatio,omitempty"`
	MAPeriod          int      `json:"maPeriod,omitempty"`
	MarginPerContract float64  `json:"marginPerContract,omitempty"`
	SafetyMultiplier  float64  `json:"safetyMultiplier,omitempty"`
	EnableRebalance   *bool    `json:"enableRebalance,omitempty"`
}

// BacktestHandler handles backtest API requests.
type BacktestHandler struct {
	jobStore *job.Store
	engine   *backtest.Engine
	prices   pricesource.Provider
	results  *result.MemoryStore
	archiver *archive.Archiver
	defaults config.BacktestConfig
	registry *metrics.Registry
	logger   *zap.Logger
}

// NewBacktestHandler creates a new backtest handler.
func NewBacktestHandler(
	jobStore *job.Store,
	engine *backtest.Engine,
	prices pricesource.Provider,
	results *result.MemoryStore,
	archiver *archive.Archiver,
	defaults config.BacktestConfig,
	registry *metrics.Registry,
	logger *zap.Logger,
) *BacktestHandler {
	return &BacktestHandler{
		jobStore: jobStore,
		engine:   engine,
		prices:   prices,
		results:  results,
		archiver: archiver,
		defaults: defaults,
		registry: registry,
		logger:   logger,
	}
}

// params merges the request over the configured defaults.
func (h *BacktestHandler) params(req BacktestRequest, start, end time.Time) backtest.Params {
	p := backtest.Params{
		StartDate:         start,
		EndDate:           end,
		InitialCapital:    h.defaults.InitialCapital,
		TargetRatio:       h.defaults.TargetRatio,
		MAPeriod:          h.defaults.MAPeriod,
		MarginPerContract: h.defaults.MarginPerContract,
		SafetyMultiplier:  h.defaults.SafetyMultiplier,
		EnableRebalance:   h.defaults.EnableRebalance,
	}
	if req.InitialCapital > 0 {
		p.InitialCapital = req.InitialCapital
	}
	if req.TargetRatio > 0 {
		p.TargetRatio = req.TargetRatio
	}
	if req.MAPeriod > 0 {
		p.MAPeriod = req.MAPeriod
	}
	if req.MarginPerContract > 0 {
		p.MarginPerContract = req.MarginPerContract
	}
	if req.SafetyMultiplier > 0 {
		p.SafetyMultiplier = req.SafetyMultiplier
	}
	if req.EnableRebalance != nil {
		p.EnableRebalance = *req.EnableRebalance
	}
	return p
}

// Create starts a new backtest job.
func (h *BacktestHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrInvalidParameter, err))
		return
	}

	if req.Start == "" || req.End == "" {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrConfigMissing, nil))
		return
	}
	start, err := time.Parse(core.DateLayout, req.Start)
	if err != nil {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrInvalidParameter, err))
		return
	}
	end, err := time.Parse(core.DateLayout, req.End)
	if err != nil {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrInvalidParameter, err))
		return
	}

	params := h.params(req, start, end)
	if err := params.Validate(); err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}

	j := h.jobStore.Create("backtest")

	// Copy values before starting goroutine to avoid race
	jobID := j.ID
	status := j.Status

	go h.runBacktest(jobID, params)

	response.JSON(w, http.StatusAccepted, map[string]any{
		"job_id": jobID,
		"status": status,
	})
}

// runBacktest executes the backtest and updates job status.
func (h *BacktestHandler) runBacktest(jobID string, params backtest.Params) {
	h.jobStore.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusRunning
	})
	h.registry.SetJobsActive("backtest", h.jobStore.CountActive())

	ctx, cancel := context.WithTimeout(context.Background(), backtestTimeout)
	defer cancel()

	started := time.Now()
	res, err := h.fetchAndRun(ctx, params)
	elapsed := time.Since(started).Seconds()

	if err != nil {
		h.registry.RecordBacktest("error", elapsed, 0)
		h.logger.Warn("backtest failed",
			zap.String("job_id", jobID),
			zap.Error(err))
		h.jobStore.Update(jobID, func(j *job.Job) {
			j.Status = job.StatusFailed
			j.Error = asCoreError(err)
		})
		h.registry.SetJobsActive("backtest", h.jobStore.CountActive())
		return
	}

	h.registry.RecordBacktest("success", elapsed, res.Summary.TradingDays)
	h.results.Save(ctx, jobID, res)
	if h.archiver != nil {
		if err := h.archiver.SaveRun(ctx, jobID, res); err != nil {
			h.logger.Warn("archiving run failed",
				zap.String("job_id", jobID),
				zap.Error(err))
		}
	}

	h.jobStore.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusComplete
		j.Progress = 100
		j.Result = res
	})
	h.registry.SetJobsActive("backtest", h.jobStore.CountActive())

	h.logger.Info("backtest complete",
		zap.String("job_id", jobID),
		zap.Int("trading_days", res.Summary.TradingDays),
		zap.Float64("final_equity", res.Summary.FinalEquity))
}

func (h *BacktestHandler) fetchAndRun(ctx context.Context, params backtest.Params) (*backtest.Result, error) {
	series, err := h.prices.FetchDaily(ctx, params.StartDate, params.EndDate)
	if err != nil {
		h.registry.RecordPriceFetch(h.prices.Name(), "error")
		return nil, err
	}
	h.registry.RecordPriceFetch(h.prices.Name(), "success")

	return h.engine.Run(ctx, series, params)
}

// GetStatus returns the status of a backtest job.
func (h *BacktestHandler) GetStatus(w http.ResponseWriter, r *http.Request, jobID string) {
	j, err := h.jobStore.Get(jobID)
	if err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}

	resp := map[string]any{
		"job_id":   j.ID,
		"status":   j.Status,
		"progress": j.Progress,
	}
	if j.Status == job.StatusComplete {
		resp["result"] = j.Result
	}
	if j.Error != nil {
		resp["error"] = j.Error
	}

	response.JSON(w, http.StatusOK, resp)
}

// Latest returns the most recent completed run.
func (h *BacktestHandler) Latest(w http.ResponseWriter, r *http.Request) {
	run, err := h.results.Latest(r.Context())
	if err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}
	response.JSON(w, http.StatusOK, run)
}

func asCoreError(err error) *core.Error {
	var ce *core.Error
	if errors.As(err, &ce) {
		return ce
	}
	return core.WrapError(core.ErrRunFailed, err)
}
