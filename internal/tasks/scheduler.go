package tasks

import (
	"context"
	"sync"

	"github.com/desertthunder/cadence/internal/models"
)

const (
	defaultWorkers = 10
	maxWorkers     = 64
)

// ResolveFunc resolves one track's tempo. Implementations are expected to
// honor ctx and return promptly once it is cancelled.
type ResolveFunc func(ctx context.Context, track models.Track) (*models.TempoEstimate, error)

// ScanOutcome couples a track with its settled tempo resolution. Err is
// non-nil only for cancellation; oracle exhaustion arrives as an absent
// estimate instead.
type ScanOutcome struct {
	Track    models.Track
	Estimate *models.TempoEstimate
	Err      error
}

// ScanScheduler runs tempo resolutions with a fixed maximum number of
// concurrently in-flight operations.
//
// A pool of workers pulls tracks from a shared channel, so a completion
// immediately frees its slot for the next queued track — a rolling window,
// never fixed batches. Results are emitted in settlement order; callers
// correlate by track identity.
type ScanScheduler struct {
	workers int
}

// NewScanScheduler creates a scheduler with the given concurrency cap,
// clamped to [1, 64]. Zero or negative selects the default of 10.
func NewScanScheduler(workers int) *ScanScheduler {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if workers > maxWorkers {
		workers = maxWorkers
	}
	return &ScanScheduler{workers: workers}
}

// Workers returns the configured concurrency cap.
func (s *ScanScheduler) Workers() int { return s.workers }

// Run consumes tracks until the channel closes and resolves each via fn.
//
// The returned channel carries every settled outcome and is closed only
// after all workers have exited, so no started operation is abandoned
// silently. Cancellation stops workers from picking up queued tracks;
// operations already in flight run to their next cancellation check inside
// fn, and their (cancelled) outcomes are still reported.
func (s *ScanScheduler) Run(ctx context.Context, tracks <-chan models.Track, fn ResolveFunc) <-chan ScanOutcome {
	out := make(chan ScanOutcome, s.workers)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for track := range tracks {
				if err := ctx.Err(); err != nil {
					out <- ScanOutcome{Track: track, Err: err}
					continue
				}

				estimate, err := fn(ctx, track)
				out <- ScanOutcome{Track: track, Estimate: estimate, Err: err}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}
