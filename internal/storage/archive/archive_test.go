package archive

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/quantoshi/hedgefolio/internal/backtest"
	"github.com/quantoshi/hedgefolio/internal/core"
)

func testResult() *backtest.Result {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	return &backtest.Result{
		Params: backtest.Params{
			StartDate:      start,
			EndDate:        start.AddDate(0, 0, 2),
			InitialCapital: 1_000_000,
			TargetRatio:    0.8,
			MAPeriod:       2,
		},
		Summary: backtest.Summary{
			InitialCapital: 1_000_000,
			FinalEquity:    1_050_000,
			TradingDays:    3,
		},
	}
}

func newTestArchiver(t *testing.T) *Archiver {
	t.Helper()
	fs, err := NewLocalFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return NewArchiver(fs)
}

func TestArchiver_SaveLoad(t *testing.T) {
	a := newTestArchiver(t)
	ctx := context.Background()

	if err := a.SaveRun(ctx, "run-1", testResult()); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	got, err := a.LoadRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("LoadRun: %v", err)
	}
	if got.Summary.FinalEquity != 1_050_000 {
		t.Errorf("FinalEquity = %v, want 1050000", got.Summary.FinalEquity)
	}
	if got.Params.MAPeriod != 2 {
		t.Errorf("MAPeriod = %d, want 2", got.Params.MAPeriod)
	}
}

func TestArchiver_LoadMissing(t *testing.T) {
	a := newTestArchiver(t)

	_, err := a.LoadRun(context.Background(), "nope")
	if !errors.Is(err, core.ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestArchiver_ListRuns(t *testing.T) {
	a := newTestArchiver(t)
	ctx := context.Background()

	ids, err := a.ListRuns(ctx)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected empty archive, got %v", ids)
	}

	a.SaveRun(ctx, "run-a", testResult())
	a.SaveRun(ctx, "run-b", testResult())

	ids, err = a.ListRuns(ctx)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 runs, got %v", ids)
	}
	found := map[string]bool{}
	for _, id := range ids {
		found[id] = true
	}
	if !found["run-a"] || !found["run-b"] {
		t.Errorf("missing run IDs in %v", ids)
	}
}

func TestArchiver_DeleteRun(t *testing.T) {
	a := newTestArchiver(t)
	ctx := context.Background()

	a.SaveRun(ctx, "run-1", testResult())

	if err := a.DeleteRun(ctx, "run-1"); err != nil {
		t.Fatalf("DeleteRun: %v", err)
	}
	if _, err := a.LoadRun(ctx, "run-1"); !errors.Is(err, core.ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound after delete, got %v", err)
	}

	if err := a.DeleteRun(ctx, "run-1"); !errors.Is(err, core.ErrRunNotFound) {
		t.Errorf("deleting a missing run should return ErrRunNotFound, got %v", err)
	}
}
