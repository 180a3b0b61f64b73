package tasks

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
	tu "github.com/desertthunder/cadence/internal/testing"
)

func TestScanSession(t *testing.T) {
	t.Run("starts in select phase", func(t *testing.T) {
		session := NewScanSession(30 * time.Minute)
		if session.Phase() != PhaseSelect {
			t.Errorf("expected select phase, got %s", session.Phase())
		}
		if session.ID == "" {
			t.Error("expected a generated session ID")
		}
	})

	t.Run("phases only move forward", func(t *testing.T) {
		session := NewScanSession(time.Minute)
		if err := session.advance(PhaseScanningPrimary); err != nil {
			t.Fatalf("forward transition failed: %v", err)
		}
		if err := session.advance(PhaseReview); err != nil {
			t.Fatalf("skipping forward failed: %v", err)
		}
		if err := session.advance(PhaseScanningPrimary); err == nil {
			t.Error("expected backward transition to be rejected")
		}
		if err := session.advance(PhaseReview); err == nil {
			t.Error("expected same-phase transition to be rejected")
		}
		if session.Phase() != PhaseReview {
			t.Errorf("rejected transition mutated phase to %s", session.Phase())
		}
	})

	t.Run("accept is idempotent per track", func(t *testing.T) {
		session := NewScanSession(time.Hour)
		match := models.TempoMatch{Track: tu.NewTrack("t1", "Song", "Artist", 3 * time.Minute), DisplayBPM: 160}

		if !session.Accept(match) {
			t.Fatal("first accept should succeed")
		}
		if session.Accept(match) {
			t.Error("duplicate accept should be a no-op")
		}
		if session.Accumulated() != 3*time.Minute {
			t.Errorf("expected 3m accumulated, got %s", session.Accumulated())
		}
		if len(session.Selection()) != 1 {
			t.Errorf("expected 1 selected match, got %d", len(session.Selection()))
		}
	})

	t.Run("accumulated equals sum of selection durations", func(t *testing.T) {
		session := NewScanSession(time.Hour)
		durations := []time.Duration{3 * time.Minute, 4 * time.Minute, 150 * time.Second}
		for i, d := range durations {
			session.Accept(models.TempoMatch{Track: tu.NewTrack(fmt.Sprintf("t%d", i), "S", "A", d)})
		}

		var sum time.Duration
		for _, match := range session.Selection() {
			sum += match.Track.Duration
		}
		if session.Accumulated() != sum {
			t.Errorf("accumulated %s != selection sum %s", session.Accumulated(), sum)
		}
	})

	t.Run("target reached at exact boundary", func(t *testing.T) {
		session := NewScanSession(6 * time.Minute)
		session.Accept(models.TempoMatch{Track: tu.NewTrack("t1", "S", "A", 3 * time.Minute)})
		if session.TargetReached() {
			t.Error("target should not be reached at 3m of 6m")
		}
		session.Accept(models.TempoMatch{Track: tu.NewTrack("t2", "S", "A", 3 * time.Minute)})
		if !session.TargetReached() {
			t.Error("target should be reached at exactly 6m of 6m")
		}
	})

	t.Run("seen set deduplicates submissions", func(t *testing.T) {
		session := NewScanSession(time.Minute)
		if !session.MarkSeen("t1") {
			t.Error("first sighting should be new")
		}
		if session.MarkSeen("t1") {
			t.Error("second sighting should be a duplicate")
		}
	})
}

func TestScanOptionsValidate(t *testing.T) {
	valid := ScanOptions{Range: models.TempoRange{Min: 150, Max: 170}, Target: 30 * time.Minute}
	if err := valid.Validate(); err != nil {
		t.Errorf("expected valid options, got %v", err)
	}

	cases := []struct {
		name string
		opts ScanOptions
	}{
		{"inverted range", ScanOptions{Range: models.TempoRange{Min: 170, Max: 150}, Target: time.Minute}},
		{"zero target", ScanOptions{Range: models.TempoRange{Min: 150, Max: 170}}},
		{"negative min", ScanOptions{Range: models.TempoRange{Min: -10, Max: 150}, Target: time.Minute}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.opts.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

// trackPage builds n complete tracks with sequential IDs and the given
// duration, for wiring into MockCatalog pages.
func trackPage(prefix string, start, n int, duration time.Duration) []models.Track {
	tracks := make([]models.Track, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%s-%03d", prefix, start+i)
		tracks = append(tracks, tu.NewTrack(id, "Track "+id, "Artist", duration))
	}
	return tracks
}

func newScanFixture(pageSize int) (*tu.MockCatalog, *tu.MockOracle, ScanOptions) {
	catalog := tu.NewMockCatalog()
	oracle := tu.NewMockOracle()
	opts := ScanOptions{
		Range:    models.TempoRange{Min: 150, Max: 170},
		Target:   30 * time.Minute,
		Workers:  4,
		Order:    models.OrderRecent,
		PageSize: pageSize,
	}
	return catalog, oracle, opts
}

func estimateAll(oracle *tu.MockOracle, bpm float64, tracks ...[]models.Track) {
	for _, page := range tracks {
		for _, track := range page {
			oracle.Estimates[track.ID] = &models.TempoEstimate{BPM: bpm, Tier: 1}
		}
	}
}

func TestMixEngineScan(t *testing.T) {
	t.Run("primary short of target falls back to library", func(t *testing.T) {
		catalog, oracle, opts := newScanFixture(10)
		opts.IncludeLibrary = true

		// Primary holds 22 minutes of in-range tracks against a 30 minute
		// target; the library supplies the remainder.
		primaryFull := trackPage("pri", 0, 10, 2*time.Minute)
		primaryTail := trackPage("pri", 10, 1, 2*time.Minute)
		library := trackPage("lib", 0, 8, 2*time.Minute)

		catalog.PlaylistPages[0] = []models.Playlist{{ID: "p1", Name: "Primary"}}
		catalog.TrackPages = map[string]map[int][]models.Track{
			"p1": {0: primaryFull, 10: primaryTail},
		}
		catalog.LibraryPages = map[int][]models.Track{0: library}
		estimateAll(oracle, 160, primaryFull, primaryTail, library)

		engine := NewMixEngine(MixEngineOpts{Catalog: catalog, Oracle: oracle})
		result, err := engine.Scan(context.Background(), nil, opts)
		if err != nil {
			t.Fatalf("scan failed: %v", err)
		}

		if !result.TargetReached {
			t.Errorf("expected target reached, accumulated %s", result.Session.Accumulated())
		}
		if result.Session.Accumulated() < 30*time.Minute {
			t.Errorf("accumulated %s below target", result.Session.Accumulated())
		}
		if result.Session.Phase() != PhaseReview {
			t.Errorf("expected review phase, got %s", result.Session.Phase())
		}

		var sum time.Duration
		seen := map[string]bool{}
		for _, match := range result.Matches {
			if seen[match.Track.ID] {
				t.Errorf("duplicate track %s in selection", match.Track.ID)
			}
			seen[match.Track.ID] = true
			sum += match.Track.Duration
		}
		if sum != result.Session.Accumulated() {
			t.Errorf("selection sum %s != accumulated %s", sum, result.Session.Accumulated())
		}
	})

	t.Run("partial selection without library is valid", func(t *testing.T) {
		catalog, oracle, opts := newScanFixture(10)
		opts.IncludeLibrary = false

		tracks := trackPage("pri", 0, 5, 2*time.Minute) // 10 minutes, target 30
		catalog.PlaylistPages[0] = []models.Playlist{{ID: "p1", Name: "Primary"}}
		catalog.TrackPages = map[string]map[int][]models.Track{"p1": {0: tracks}}
		estimateAll(oracle, 155, tracks)

		engine := NewMixEngine(MixEngineOpts{Catalog: catalog, Oracle: oracle})
		result, err := engine.Scan(context.Background(), nil, opts)
		if err != nil {
			t.Fatalf("partial success must not error: %v", err)
		}
		if result.TargetReached {
			t.Error("10 minutes should not reach a 30 minute target")
		}
		if len(result.Matches) != 5 {
			t.Errorf("expected 5 matches, got %d", len(result.Matches))
		}
	})

	t.Run("tracks shared between sources are analyzed once", func(t *testing.T) {
		catalog, oracle, opts := newScanFixture(10)
		opts.IncludeLibrary = true

		dupTracks := trackPage("dup", 0, 4, 2*time.Minute) // 8 minutes, target stays unmet
		catalog.PlaylistPages[0] = []models.Playlist{{ID: "p1", Name: "Primary"}}
		catalog.TrackPages = map[string]map[int][]models.Track{"p1": {0: dupTracks}}
		catalog.LibraryPages = map[int][]models.Track{0: dupTracks}
		estimateAll(oracle, 160, dupTracks)

		engine := NewMixEngine(MixEngineOpts{Catalog: catalog, Oracle: oracle})
		result, err := engine.Scan(context.Background(), nil, opts)
		if err != nil {
			t.Fatalf("scan failed: %v", err)
		}
		if len(result.Matches) != 4 {
			t.Errorf("expected 4 unique matches, got %d", len(result.Matches))
		}
		if oracle.Calls() != 4 {
			t.Errorf("expected 4 oracle calls (dedup), got %d", oracle.Calls())
		}
	})

	t.Run("unresolvable and out-of-range tracks are counted, not fatal", func(t *testing.T) {
		catalog, oracle, opts := newScanFixture(10)

		inRange := trackPage("ok", 0, 2, 2*time.Minute)
		outOfRange := trackPage("out", 0, 2, 2*time.Minute)
		unresolvable := trackPage("bad", 0, 2, 2*time.Minute)
		page := append(append(append([]models.Track{}, inRange...), outOfRange...), unresolvable...)

		catalog.PlaylistPages[0] = []models.Playlist{{ID: "p1", Name: "Mixed"}}
		catalog.TrackPages = map[string]map[int][]models.Track{"p1": {0: page}}
		estimateAll(oracle, 160, inRange)
		// 100 misses [150,170] at original, half (50), and double (200).
		estimateAll(oracle, 100, outOfRange)
		// Unresolvable tracks return the absent estimate (Tier 0) by default.

		engine := NewMixEngine(MixEngineOpts{Catalog: catalog, Oracle: oracle})
		result, err := engine.Scan(context.Background(), nil, opts)
		if err != nil {
			t.Fatalf("scan failed: %v", err)
		}
		if len(result.Matches) != 2 {
			t.Errorf("expected 2 matches, got %d", len(result.Matches))
		}
		if result.Rejected != 2 {
			t.Errorf("expected 2 rejected, got %d", result.Rejected)
		}
		if result.Failed != 2 {
			t.Errorf("expected 2 failed, got %d", result.Failed)
		}
		if result.Scanned != 6 {
			t.Errorf("expected 6 scanned, got %d", result.Scanned)
		}
	})

	t.Run("empty selection returns sentinel", func(t *testing.T) {
		catalog, oracle, opts := newScanFixture(10)

		tracks := trackPage("bad", 0, 3, 2*time.Minute)
		catalog.PlaylistPages[0] = []models.Playlist{{ID: "p1", Name: "Primary"}}
		catalog.TrackPages = map[string]map[int][]models.Track{"p1": {0: tracks}}
		// No estimates configured: every resolution is exhausted.

		engine := NewMixEngine(MixEngineOpts{Catalog: catalog, Oracle: oracle})
		result, err := engine.Scan(context.Background(), nil, opts)
		if !errors.Is(err, shared.ErrEmptySelection) {
			t.Fatalf("expected ErrEmptySelection, got %v", err)
		}
		if result == nil || len(result.Matches) != 0 {
			t.Error("expected an empty result alongside the sentinel")
		}
		if result.Failed != 3 {
			t.Errorf("expected 3 failures, got %d", result.Failed)
		}
	})

	t.Run("cancellation yields partial result without error", func(t *testing.T) {
		catalog, oracle, opts := newScanFixture(10)
		catalog.PlaylistPages[0] = []models.Playlist{{ID: "p1", Name: "Primary"}}
		catalog.TrackPages = map[string]map[int][]models.Track{"p1": {}}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		engine := NewMixEngine(MixEngineOpts{Catalog: catalog, Oracle: oracle})
		result, err := engine.Scan(ctx, nil, opts)
		if err != nil {
			t.Fatalf("cancellation must not surface as an error: %v", err)
		}
		if !result.Cancelled {
			t.Error("expected result marked cancelled")
		}
	})

	t.Run("cache hits skip the oracle", func(t *testing.T) {
		catalog, oracle, opts := newScanFixture(10)

		tracks := trackPage("c", 0, 2, 2*time.Minute)
		catalog.PlaylistPages[0] = []models.Playlist{{ID: "p1", Name: "Primary"}}
		catalog.TrackPages = map[string]map[int][]models.Track{"p1": {0: tracks}}
		estimateAll(oracle, 160, tracks)

		cache := &memCache{estimates: map[string]*models.TempoEstimate{
			tracks[0].ID: {BPM: 152, Tier: 2},
		}}

		engine := NewMixEngine(MixEngineOpts{Catalog: catalog, Oracle: oracle, Cache: cache})
		result, err := engine.Scan(context.Background(), nil, opts)
		if err != nil {
			t.Fatalf("scan failed: %v", err)
		}
		if result.CacheHits != 1 {
			t.Errorf("expected 1 cache hit, got %d", result.CacheHits)
		}
		if oracle.Calls() != 1 {
			t.Errorf("expected oracle consulted only for the miss, got %d calls", oracle.Calls())
		}
		if len(cache.stored) != 1 {
			t.Errorf("expected the fresh estimate stored, got %d", len(cache.stored))
		}
	})

	t.Run("invalid options rejected before any catalog call", func(t *testing.T) {
		catalog, oracle, opts := newScanFixture(10)
		opts.Target = 0

		engine := NewMixEngine(MixEngineOpts{Catalog: catalog, Oracle: oracle})
		if _, err := engine.Scan(context.Background(), nil, opts); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

// memCache is an in-memory TempoCacher for engine tests.
type memCache struct {
	estimates map[string]*models.TempoEstimate
	stored    []string
}

func (c *memCache) Lookup(trackID string) (*models.TempoEstimate, bool) {
	est, ok := c.estimates[trackID]
	return est, ok
}

func (c *memCache) Store(track models.Track, estimate *models.TempoEstimate) error {
	c.stored = append(c.stored, track.Key())
	return nil
}

func TestCreateMix(t *testing.T) {
	setup := func(t *testing.T) (*tu.MockCatalog, *MixEngine, *ScanSession) {
		t.Helper()
		catalog, oracle, opts := newScanFixture(10)
		tracks := trackPage("m", 0, 3, 2*time.Minute)
		catalog.PlaylistPages[0] = []models.Playlist{{ID: "p1", Name: "Primary"}}
		catalog.TrackPages = map[string]map[int][]models.Track{"p1": {0: tracks}}
		estimateAll(oracle, 160, tracks)

		engine := NewMixEngine(MixEngineOpts{Catalog: catalog, Oracle: oracle})
		result, err := engine.Scan(context.Background(), nil, opts)
		if err != nil {
			t.Fatalf("scan failed: %v", err)
		}
		return catalog, engine, result.Session
	}

	t.Run("publishes selection and completes the session", func(t *testing.T) {
		catalog, engine, session := setup(t)

		playlist, err := engine.CreateMix(context.Background(), nil, session, "Test Mix", "desc")
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
		if playlist.Name != "Test Mix" {
			t.Errorf("unexpected playlist name %q", playlist.Name)
		}
		if playlist.TrackCount != 3 {
			t.Errorf("expected 3 tracks, got %d", playlist.TrackCount)
		}
		if session.Phase() != PhaseComplete {
			t.Errorf("expected complete phase, got %s", session.Phase())
		}
		if got := len(catalog.Added[playlist.ID]); got != 3 {
			t.Errorf("expected 3 URIs added, got %d", got)
		}
	})

	t.Run("empty session refuses creation", func(t *testing.T) {
		_, engine, _ := setup(t)
		empty := NewScanSession(time.Minute)
		if _, err := engine.CreateMix(context.Background(), nil, empty, "Mix", ""); !errors.Is(err, shared.ErrEmptySelection) {
			t.Errorf("expected ErrEmptySelection, got %v", err)
		}
	})

	t.Run("create failure leaves session out of complete", func(t *testing.T) {
		catalog, engine, session := setup(t)
		catalog.CreateErr = errors.New("boom")

		if _, err := engine.CreateMix(context.Background(), nil, session, "Mix", ""); err == nil {
			t.Fatal("expected error")
		}
		if session.Phase() == PhaseComplete {
			t.Error("failed creation must not complete the session")
		}
	})
}
