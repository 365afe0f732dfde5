// Package archive persists finished backtest runs as JSON blobs, on the
// local filesystem or any S3-compatible store.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/quantoshi/hedgefolio/internal/backtest"
	"github.com/quantoshi/hedgefolio/internal/core"
)

// Backend is a flat blob store keyed by relative path.
type Backend interface {
	Write(ctx context.Context, path string, data []byte) error
	Read(ctx context.Context, path string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
}

const runPrefix = "runs"

// Archiver stores one JSON document per backtest run under runs/<id>.json.
type Archiver struct {
	backend Backend
}

// NewArchiver creates an Archiver on top of a backend.
func NewArchiver(backend Backend) *Archiver {
	return &Archiver{backend: backend}
}

func runKey(id string) string {
	return path.Join(runPrefix, id+".json")
}

// SaveRun persists a finished run under its ID.
func (a *Archiver) SaveRun(ctx context.Context, id string, result *backtest.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	if err := a.backend.Write(ctx, runKey(id), data); err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	return nil
}

// LoadRun retrieves a run by ID.
func (a *Archiver) LoadRun(ctx context.Context, id string) (*backtest.Result, error) {
	key := runKey(id)

	exists, err := a.backend.Exists(ctx, key)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	if !exists {
		return nil, core.WrapError(core.ErrRunNotFound, fmt.Errorf("run %s", id))
	}

	data, err := a.backend.Read(ctx, key)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}

	var result backtest.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	return &result, nil
}

// ListRuns returns the IDs of all archived runs.
func (a *Archiver) ListRuns(ctx context.Context) ([]string, error) {
	paths, err := a.backend.List(ctx, runPrefix)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}

	ids := make([]string, 0, len(paths))
	for _, p := range paths {
		base := path.Base(p)
		if strings.HasSuffix(base, ".json") {
			ids = append(ids, strings.TrimSuffix(base, ".json"))
		}
	}
	return ids, nil
}

// DeleteRun removes an archived run.
func (a *Archiver) DeleteRun(ctx context.Context, id string) error {
	key := runKey(id)

	exists, err := a.backend.Exists(ctx, key)
	if err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	if !exists {
		return core.WrapError(core.ErrRunNotFound, fmt.Errorf("run %s", id))
	}

	if err := a.backend.Delete(ctx, key); err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	return nil
}
