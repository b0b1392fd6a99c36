// Package progress tracks the live state of a sync run. The Aggregator is the
// single point all workers report through; the Renderer reads snapshots and
// paints a terminal progress line.
package progress

import (
	"sync"
	"sync/atomic"

	"github.com/datallboy/gofetch/internal/domain"
)

// Snapshot is a consistent point-in-time view of the counters.
type Snapshot struct {
	Total     int
	Completed int
	Failed    int
	Skipped   int
	Bytes     uint64
	Current   string
}

// Done is the number of records with a final outcome.
func (s Snapshot) Done() int {
	return s.Completed + s.Failed + s.Skipped
}

// Aggregator holds the shared counters and the per-record attempt tally.
// All mutation happens under a single mutex held only for the duration of
// the update, never across network or disk work.
type Aggregator struct {
	mu        sync.Mutex
	total     int
	completed int
	failed    int
	skipped   int
	current   string
	attempts  map[string]int

	bytes atomic.Uint64
}

func NewAggregator() *Aggregator {
	return &Aggregator{attempts: make(map[string]int)}
}

// Begin records the size of the pending set before dispatch starts.
func (a *Aggregator) Begin(total int) {
	a.mu.Lock()
	a.total = total
	a.mu.Unlock()
}

// Record folds a final outcome into the counters. Exactly one counter is
// incremented per call, so completed+failed+skipped always equals the number
// of outcomes recorded.
func (a *Aggregator) Record(o domain.Outcome) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch o.Status {
	case domain.StatusSuccess:
		a.completed++
	case domain.StatusFailed:
		a.failed++
	case domain.StatusSkipped:
		a.skipped++
	}
	a.attempts[o.RecordID] = o.Attempts
	a.current = o.Filename
}

// SetCurrent updates the filename shown on the live display.
func (a *Aggregator) SetCurrent(name string) {
	a.mu.Lock()
	a.current = name
	a.mu.Unlock()
}

// AddBytes accumulates bytes written to disk.
func (a *Aggregator) AddBytes(n int64) {
	if n > 0 {
		a.bytes.Add(uint64(n))
	}
}

// Snapshot returns a copy of the current counters for display.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	return Snapshot{
		Total:     a.total,
		Completed: a.completed,
		Failed:    a.failed,
		Skipped:   a.skipped,
		Bytes:     a.bytes.Load(),
		Current:   a.current,
	}
}

// Attempts returns a copy of the per-record attempt counts, read for
// reporting after all work completes.
func (a *Aggregator) Attempts() map[string]int {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[string]int, len(a.attempts))
	for id, n := range a.attempts {
		out[id] = n
	}
	return out
}
