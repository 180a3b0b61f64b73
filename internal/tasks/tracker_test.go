package tasks

import (
	"errors"
	"testing"

	"github.com/desertthunder/cadence/internal/services"
)

func TestStatusTracker(t *testing.T) {
	t.Run("enqueue registers tracks in order", func(t *testing.T) {
		tracker := NewStatusTracker()
		tracker.Enqueue("t1", "First", "Artist A")
		tracker.Enqueue("t2", "Second", "Artist B")

		snapshot := tracker.Snapshot()
		if len(snapshot) != 2 {
			t.Fatalf("expected 2 statuses, got %d", len(snapshot))
		}
		if snapshot[0].Key != "t1" || snapshot[1].Key != "t2" {
			t.Errorf("expected insertion order t1, t2; got %s, %s", snapshot[0].Key, snapshot[1].Key)
		}
		if snapshot[0].State != StateQueued {
			t.Errorf("expected queued state, got %s", snapshot[0].State)
		}
	})

	t.Run("tier events accumulate attempts", func(t *testing.T) {
		tracker := NewStatusTracker()
		tracker.Enqueue("t1", "Song", "Artist")

		tracker.ObserveTier(services.TierEvent{TrackKey: "t1", Tier: 1, Err: errors.New("timeout")})
		tracker.ObserveTier(services.TierEvent{TrackKey: "t1", Tier: 2, BPM: 128, Citations: 2})

		st := tracker.Snapshot()[0]
		if st.State != StateEstimating {
			t.Errorf("expected estimating state, got %s", st.State)
		}
		if st.Attempts != 2 {
			t.Errorf("expected 2 attempts, got %d", st.Attempts)
		}
		if st.Tier != 2 {
			t.Errorf("expected highest tier 2, got %d", st.Tier)
		}
		if st.BPM != 128 {
			t.Errorf("expected BPM from successful tier, got %v", st.BPM)
		}
		if st.Citations != 2 {
			t.Errorf("expected 2 citations, got %d", st.Citations)
		}
	})

	t.Run("failed tier does not clobber last extracted BPM", func(t *testing.T) {
		tracker := NewStatusTracker()
		tracker.ObserveTier(services.TierEvent{TrackKey: "t1", Tier: 1, BPM: 90})
		tracker.ObserveTier(services.TierEvent{TrackKey: "t1", Tier: 2, Err: errors.New("boom")})

		if st := tracker.Snapshot()[0]; st.BPM != 90 {
			t.Errorf("expected BPM 90 retained, got %v", st.BPM)
		}
	})

	t.Run("terminal marks update counts", func(t *testing.T) {
		tracker := NewStatusTracker()
		tracker.Enqueue("a", "", "")
		tracker.Enqueue("b", "", "")
		tracker.Enqueue("c", "", "")
		tracker.Enqueue("d", "", "")

		tracker.MarkMatched("a")
		tracker.MarkRejected("b")
		tracker.MarkExhausted("c")
		tracker.MarkCancelled("d")

		counts := tracker.Counts()
		for state, want := range map[TrackState]int{
			StateMatched: 1, StateRejected: 1, StateExhausted: 1, StateCancelled: 1,
		} {
			if counts[state] != want {
				t.Errorf("expected %d %s, got %d", want, state, counts[state])
			}
		}
		if tracker.Len() != 4 {
			t.Errorf("expected 4 tracked, got %d", tracker.Len())
		}
	})

	t.Run("state strings", func(t *testing.T) {
		if StateQueued.String() != "queued" || StateExhausted.String() != "exhausted" {
			t.Error("unexpected state strings")
		}
		if TrackState(99).String() != "unknown" {
			t.Error("expected unknown for out-of-range state")
		}
	})
}
