package registry

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestUpsertPreservesLiveUntilWhenOmitted(t *testing.T) {
	r := New(nil, nil)
	key := Key{ChatID: 1, MessageID: 2}
	until := time.Now().Add(time.Minute).UnixMilli()
	r.Upsert(key, "emp1", "proj", &until, time.Now())

	r.Upsert(key, "emp1", "proj", nil, time.Now())

	entry, ok := r.Get(key)
	if !ok {
		t.Fatal("expected entry to exist")
	}
	if entry.LiveUntilMs == nil || *entry.LiveUntilMs != until {
		t.Fatalf("expected liveUntil to be preserved, got %+v", entry.LiveUntilMs)
	}
}

func TestSweeperFinalizesExpiredEntry(t *testing.T) {
	r := New(nil, nil)
	key := Key{ChatID: 1, MessageID: 1}
	past := time.Now().Add(-time.Hour).UnixMilli()
	r.Upsert(key, "emp1", "proj", &past, time.Now().Add(-time.Hour))

	var finalized sync.WaitGroup
	finalized.Add(1)
	r.finalize = func(ctx context.Context, employeeUID, projectName string, endedAt time.Time) error {
		finalized.Done()
		return nil
	}

	r.sweep(context.Background())

	done := make(chan struct{})
	go func() {
		finalized.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected finalize to be called")
	}

	if _, ok := r.Get(key); ok {
		t.Fatal("expected entry to be removed after successful finalize")
	}
}

func TestSweeperRetainsEntryOnFinalizeError(t *testing.T) {
	r := New(nil, nil)
	key := Key{ChatID: 1, MessageID: 1}
	past := time.Now().Add(-time.Hour).UnixMilli()
	r.Upsert(key, "emp1", "proj", &past, time.Now().Add(-time.Hour))
	r.finalize = func(ctx context.Context, employeeUID, projectName string, endedAt time.Time) error {
		return context.DeadlineExceeded
	}

	r.sweep(context.Background())

	if _, ok := r.Get(key); !ok {
		t.Fatal("expected entry to remain after a failed finalize")
	}
}

func TestStartStopSweeperTerminates(t *testing.T) {
	r := New(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r.StartSweeper(ctx, 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	r.StopSweeper()
}
