// Package registry tracks currently-live location-sharing sessions in
// memory and sweeps expired ones, finalizing them against the document
// store on a best-effort basis.
package registry

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Key identifies a live session by the chat message that's being updated.
type Key struct {
	ChatID    int64
	MessageID int64
}

// Entry is one live-sharing session tracked in memory.
type Entry struct {
	EmployeeUID  string
	ProjectName  string
	LiveUntilMs  *int64
	LastUpdateMs int64
}

// grace bounds how long a session is kept alive after its last update when
// no explicit live-until is known or it's far in the future — matching the
// chat platform's own "consider it dead if nothing arrives for two minutes"
// behavior.
const grace = 120_000

// Finalizer is called by the sweeper when a session expires; it must mark
// the employee's currentLocation as no longer live, idempotently.
type Finalizer func(ctx context.Context, employeeUID, projectName string, endedAt time.Time) error

// Registry is a single-mutex map of live sessions. One mutex over the whole
// map is sufficient at this scale and keeps every mutation atomic per key
// without per-key lock management.
type Registry struct {
	mu      sync.Mutex
	entries map[Key]*Entry

	finalize Finalizer
	logger   *zap.Logger

	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New constructs a Registry. finalize may be nil in tests that don't run
// the sweeper.
func New(finalize Finalizer, logger *zap.Logger) *Registry {
	return &Registry{
		entries:  make(map[Key]*Entry),
		finalize: finalize,
		logger:   logger,
	}
}

// Upsert records or refreshes a live session. liveUntilMs is nil when the
// chat transport didn't report a live_period on this update (the platform
// omits it on incremental edits); the previous value, if any, is kept.
func (r *Registry) Upsert(key Key, employeeUID, projectName string, liveUntilMs *int64, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.entries[key]
	if !ok {
		r.entries[key] = &Entry{
			EmployeeUID:  employeeUID,
			ProjectName:  projectName,
			LiveUntilMs:  liveUntilMs,
			LastUpdateMs: now.UnixMilli(),
		}
		return
	}
	existing.LastUpdateMs = now.UnixMilli()
	if liveUntilMs != nil {
		existing.LiveUntilMs = liveUntilMs
	}
}

// Get returns a copy of the entry for key, if present.
func (r *Registry) Get(key Key) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Delete removes key unconditionally.
func (r *Registry) Delete(key Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key)
}

// ForEach calls fn for a snapshot of every entry. fn must not call back into
// the Registry.
func (r *Registry) ForEach(fn func(Key, Entry)) {
	r.mu.Lock()
	snapshot := make(map[Key]Entry, len(r.entries))
	for k, v := range r.entries {
		snapshot[k] = *v
	}
	r.mu.Unlock()

	for k, v := range snapshot {
		fn(k, v)
	}
}

// Len reports the number of tracked live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// StartSweeper launches the periodic expiry sweep at the given interval
// (60s in production). Stop cancels future sweeps; an in-flight sweep runs
// to completion.
func (r *Registry) StartSweeper(ctx context.Context, interval time.Duration) {
	r.ticker = time.NewTicker(interval)
	r.stopCh = make(chan struct{})
	r.wg.Add(1)

	go func() {
		defer r.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stopCh:
				return
			case <-r.ticker.C:
				r.sweep(ctx)
			}
		}
	}()
}

// StopSweeper cancels future sweeps and waits for any in-flight sweep to
// finish.
func (r *Registry) StopSweeper() {
	if r.ticker == nil {
		return
	}
	r.ticker.Stop()
	close(r.stopCh)
	r.wg.Wait()
}

func (r *Registry) sweep(ctx context.Context) {
	now := time.Now()
	nowMs := now.UnixMilli()

	var expired []Key
	r.ForEach(func(k Key, e Entry) {
		threshold := e.LastUpdateMs + grace
		if e.LiveUntilMs != nil && *e.LiveUntilMs < threshold {
			threshold = *e.LiveUntilMs
		}
		if nowMs >= threshold {
			expired = append(expired, k)
		}
	})

	for _, k := range expired {
		entry, ok := r.Get(k)
		if !ok {
			continue
		}
		if r.finalize == nil {
			r.Delete(k)
			continue
		}
		if err := r.finalize(ctx, entry.EmployeeUID, entry.ProjectName, now); err != nil {
			if r.logger != nil {
				r.logger.Warn("registry: sweeper finalize failed, will retry next tick",
					zap.String("employeeUID", entry.EmployeeUID), zap.Error(err))
			}
			continue
		}
		r.Delete(k)
	}
}
