package job

import (
	"testing"
	"time"
)

func TestStore_CreateAndGet(t *testing.T) {
	store := NewStore(100, time.Hour)

	job := store.Create("backtest")
	if job.ID == "" {
		t.Error("expected job ID")
	}
	if job.Status != StatusPending {
		t.Errorf("expected pending, got %s", job.Status)
	}

	retrieved, err := store.Get(job.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if retrieved.ID != job.ID {
		t.Error("IDs don't match")
	}
}

func TestStore_UniqueIDs(t *testing.T) {
	store := NewStore(100, time.Hour)

	a := store.Create("backtest")
	b := store.Create("backtest")
	if a.ID == b.ID {
		t.Errorf("expected unique IDs, both %s", a.ID)
	}
}

func TestStore_Update(t *testing.T) {
	store := NewStore(100, time.Hour)
	job := store.Create("backtest")

	err := store.Update(job.ID, func(j *Job) {
		j.Status = StatusRunning
		j.Progress = 50
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	retrieved, _ := store.Get(job.ID)
	if retrieved.Status != StatusRunning {
		t.Errorf("expected running, got %s", retrieved.Status)
	}
	if retrieved.Progress != 50 {
		t.Errorf("expected 50, got %d", retrieved.Progress)
	}
}

func TestStore_MaxSize(t *testing.T) {
	store := NewStore(2, time.Hour)

	job1 := store.Create("backtest")
	store.Create("backtest")
	store.Create("backtest") // Should evict job1

	_, err := store.Get(job1.ID)
	if err == nil {
		t.Error("expected job1 to be evicted")
	}
}

func TestStore_NotFound(t *testing.T) {
	store := NewStore(100, time.Hour)

	_, err := store.Get("nonexistent")
	if err == nil {
		t.Error("expected error for nonexistent job")
	}
}

func TestStore_TTLPurge(t *testing.T) {
	store := NewStore(100, 10*time.Millisecond)

	done := store.Create("backtest")
	store.Update(done.ID, func(j *Job) {
		j.Status = StatusComplete
	})
	active := store.Create("backtest")

	time.Sleep(20 * time.Millisecond)
	store.Create("backtest") // Create triggers the purge

	if _, err := store.Get(done.ID); err == nil {
		t.Error("expected finished job to be purged after TTL")
	}
	// Pending jobs survive the TTL.
	if _, err := store.Get(active.ID); err != nil {
		t.Errorf("pending job was purged: %v", err)
	}
}

func TestStore_CountActive(t *testing.T) {
	store := NewStore(100, time.Hour)

	a := store.Create("backtest")
	store.Create("backtest")
	store.Update(a.ID, func(j *Job) { j.Status = StatusComplete })

	if n := store.CountActive(); n != 1 {
		t.Errorf("CountActive = %d, want 1", n)
	}
}
