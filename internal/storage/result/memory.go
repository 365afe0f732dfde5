// Package result keeps recent backtest results in memory for the API's
// latest-run endpoint. The archive is the durable copy; this store exists so
// the dashboard does not round-trip to cold storage on every poll.
package result

import (
	"context"
	"sync"
	"time"

	"github.com/quantoshi/hedgefolio/internal/backtest"
	"github.com/quantoshi/hedgefolio/internal/core"
)

// StoredRun pairs a result with its archive identity.
type StoredRun struct {
	ID         string           `json:"id"`
	Result     *backtest.Result `json:"result"`
	FinishedAt time.Time        `json:"finishedAt"`
}

// MemoryStore is an in-memory run cache holding the most recent runs.
type MemoryStore struct {
	runs    []StoredRun
	maxSize int
	mu      sync.RWMutex
}

// NewMemoryStore creates a store keeping at most maxSize recent runs.
func NewMemoryStore(maxSize int) *MemoryStore {
	return &MemoryStore{
		runs:    make([]StoredRun, 0, maxSize),
		maxSize: maxSize,
	}
}

// Save records a finished run as the latest.
func (m *MemoryStore) Save(ctx context.Context, id string, result *backtest.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.runs = append(m.runs, StoredRun{
		ID:         id,
		Result:     result,
		FinishedAt: time.Now().UTC(),
	})

	// Trim if over capacity (remove oldest)
	if len(m.runs) > m.maxSize {
		m.runs = m.runs[len(m.runs)-m.maxSize:]
	}

	return nil
}

// Latest returns the most recently saved run.
func (m *MemoryStore) Latest(ctx context.Context) (*StoredRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.runs) == 0 {
		return nil, core.ErrRunNotFound
	}
	run := m.runs[len(m.runs)-1]
	return &run, nil
}

// Get retrieves a cached run by ID.
func (m *MemoryStore) Get(ctx context.Context, id string) (*StoredRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.runs) - 1; i >= 0; i-- {
		if m.runs[i].ID == id {
			run := m.runs[i]
			return &run, nil
		}
	}
	return nil, core.ErrRunNotFound
}

// List returns the cached runs, newest first.
func (m *MemoryStore) List(ctx context.Context) []StoredRun {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]StoredRun, 0, len(m.runs))
	for i := len(m.runs) - 1; i >= 0; i-- {
		out = append(out, m.runs[i])
	}
	return out
}
