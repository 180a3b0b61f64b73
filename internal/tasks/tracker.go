package tasks

import (
	"sync"
	"time"

	"github.com/desertthunder/cadence/internal/services"
)

// TrackState enumerates where a track sits in the scan pipeline.
type TrackState int

const (
	StateQueued TrackState = iota
	StateEstimating
	StateResolved
	StateExhausted // every oracle tier failed
	StateCancelled
	StateMatched
	StateRejected // resolved, but no variant fell in range
)

func (s TrackState) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateEstimating:
		return "estimating"
	case StateResolved:
		return "resolved"
	case StateExhausted:
		return "exhausted"
	case StateCancelled:
		return "cancelled"
	case StateMatched:
		return "matched"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// TrackStatus is a snapshot of one track's progress through the pipeline.
type TrackStatus struct {
	Key       string
	Title     string
	Artist    string
	State     TrackState
	Tier      int     // highest oracle tier attempted so far
	BPM       float64 // last extracted value, valid or not
	Citations int
	Attempts  int // total tier attempts, including transport failures
	UpdatedAt time.Time
}

// StatusTracker is an in-memory map from track identity to per-tier scan
// progress. It exists purely for observability — the TUI and the CLI summary
// read it — and never gates pipeline correctness.
//
// Implements [services.TierObserver] so the oracle can feed it directly from
// scheduler workers.
type StatusTracker struct {
	mu     sync.Mutex
	status map[string]*TrackStatus
	order  []string // insertion order for stable snapshots
}

// NewStatusTracker creates an empty tracker.
func NewStatusTracker() *StatusTracker {
	return &StatusTracker{status: make(map[string]*TrackStatus)}
}

func (t *StatusTracker) upsert(key string) *TrackStatus {
	st, ok := t.status[key]
	if !ok {
		st = &TrackStatus{Key: key, State: StateQueued}
		t.status[key] = st
		t.order = append(t.order, key)
	}
	return st
}

// Enqueue records a track entering the pipeline.
func (t *StatusTracker) Enqueue(key, title, artist string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.upsert(key)
	st.Title = title
	st.Artist = artist
	st.State = StateQueued
	st.UpdatedAt = time.Now()
}

// ObserveTier implements [services.TierObserver].
func (t *StatusTracker) ObserveTier(event services.TierEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.upsert(event.TrackKey)
	st.State = StateEstimating
	if event.Tier > st.Tier {
		st.Tier = event.Tier
	}
	st.Attempts++
	if event.Err == nil {
		st.BPM = event.BPM
		st.Citations = event.Citations
	}
	st.UpdatedAt = time.Now()
}

func (t *StatusTracker) setState(key string, state TrackState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.upsert(key)
	st.State = state
	st.UpdatedAt = time.Now()
}

// MarkResolved records a usable estimate for the track.
func (t *StatusTracker) MarkResolved(key string) { t.setState(key, StateResolved) }

// MarkExhausted records that every oracle tier failed for the track.
func (t *StatusTracker) MarkExhausted(key string) { t.setState(key, StateExhausted) }

// MarkCancelled records that the track's resolution was cut short.
func (t *StatusTracker) MarkCancelled(key string) { t.setState(key, StateCancelled) }

// MarkMatched records acceptance into the selection.
func (t *StatusTracker) MarkMatched(key string) { t.setState(key, StateMatched) }

// MarkRejected records a resolved tempo outside the target range.
func (t *StatusTracker) MarkRejected(key string) { t.setState(key, StateRejected) }

// Snapshot returns a copy of all statuses in insertion order.
func (t *StatusTracker) Snapshot() []TrackStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TrackStatus, 0, len(t.order))
	for _, key := range t.order {
		out = append(out, *t.status[key])
	}
	return out
}

// Counts returns the number of tracks per state.
func (t *StatusTracker) Counts() map[TrackState]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	counts := make(map[TrackState]int)
	for _, st := range t.status {
		counts[st.State]++
	}
	return counts
}

// Len returns the number of tracked tracks.
func (t *StatusTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.status)
}
