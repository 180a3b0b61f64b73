package tasks

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/cadence/internal/models"
)

func feedTracks(n int) chan models.Track {
	tracks := make(chan models.Track, n)
	for i := 0; i < n; i++ {
		tracks <- models.Track{ID: string(rune('a' + i)), Title: "t", Artist: "a", Duration: time.Minute}
	}
	close(tracks)
	return tracks
}

func TestScanScheduler(t *testing.T) {
	t.Run("NewScanScheduler clamps worker count", func(t *testing.T) {
		cases := []struct {
			in, want int
		}{
			{0, 10},
			{-3, 10},
			{4, 4},
			{100, 64},
		}
		for _, c := range cases {
			if got := NewScanScheduler(c.in).Workers(); got != c.want {
				t.Errorf("NewScanScheduler(%d).Workers() = %d, want %d", c.in, got, c.want)
			}
		}
	})

	t.Run("delivers one outcome per track", func(t *testing.T) {
		scheduler := NewScanScheduler(4)
		out := scheduler.Run(context.Background(), feedTracks(20), func(ctx context.Context, track models.Track) (*models.TempoEstimate, error) {
			return &models.TempoEstimate{BPM: 120, Tier: 1}, nil
		})

		seen := map[string]bool{}
		for outcome := range out {
			if outcome.Err != nil {
				t.Errorf("unexpected error for %s: %v", outcome.Track.ID, outcome.Err)
			}
			if seen[outcome.Track.ID] {
				t.Errorf("duplicate outcome for %s", outcome.Track.ID)
			}
			seen[outcome.Track.ID] = true
		}
		if len(seen) != 20 {
			t.Errorf("expected 20 outcomes, got %d", len(seen))
		}
	})

	t.Run("never exceeds the concurrency cap", func(t *testing.T) {
		const limit = 3
		var inFlight, peak int64
		var mu sync.Mutex

		scheduler := NewScanScheduler(limit)
		out := scheduler.Run(context.Background(), feedTracks(24), func(ctx context.Context, track models.Track) (*models.TempoEstimate, error) {
			n := atomic.AddInt64(&inFlight, 1)
			mu.Lock()
			if n > peak {
				peak = n
			}
			mu.Unlock()
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt64(&inFlight, -1)
			return &models.TempoEstimate{BPM: 100, Tier: 1}, nil
		})

		count := 0
		for range out {
			count++
		}
		if count != 24 {
			t.Fatalf("expected 24 outcomes, got %d", count)
		}
		if peak > limit {
			t.Errorf("observed %d concurrent resolutions, cap is %d", peak, limit)
		}
	})

	t.Run("completion frees a slot immediately", func(t *testing.T) {
		// One slow track must not hold back the other worker slot: with 2
		// workers and one resolution parked, the remaining tracks all settle.
		release := make(chan struct{})
		scheduler := NewScanScheduler(2)

		tracks := make(chan models.Track, 6)
		tracks <- models.Track{ID: "slow"}
		for i := 0; i < 5; i++ {
			tracks <- models.Track{ID: string(rune('0' + i))}
		}
		close(tracks)

		out := scheduler.Run(context.Background(), tracks, func(ctx context.Context, track models.Track) (*models.TempoEstimate, error) {
			if track.ID == "slow" {
				<-release
			}
			return &models.TempoEstimate{BPM: 100, Tier: 1}, nil
		})

		fast := 0
		for outcome := range out {
			if outcome.Track.ID != "slow" {
				fast++
				if fast == 5 {
					close(release)
				}
			}
		}
		if fast != 5 {
			t.Errorf("expected 5 fast outcomes, got %d", fast)
		}
	})

	t.Run("cancellation reports queued tracks as errors", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		scheduler := NewScanScheduler(2)
		out := scheduler.Run(ctx, feedTracks(8), func(ctx context.Context, track models.Track) (*models.TempoEstimate, error) {
			t.Error("resolver should not run after cancellation")
			return nil, ctx.Err()
		})

		count := 0
		for outcome := range out {
			if outcome.Err == nil {
				t.Errorf("expected cancellation error for %s", outcome.Track.ID)
			}
			count++
		}
		if count != 8 {
			t.Errorf("expected every queued track reported, got %d of 8", count)
		}
	})

	t.Run("output closes once input is drained", func(t *testing.T) {
		scheduler := NewScanScheduler(2)
		out := scheduler.Run(context.Background(), feedTracks(0), func(ctx context.Context, track models.Track) (*models.TempoEstimate, error) {
			return nil, nil
		})

		select {
		case _, open := <-out:
			if open {
				t.Error("expected closed channel with no outcomes")
			}
		case <-time.After(time.Second):
			t.Error("output channel never closed")
		}
	})
}
