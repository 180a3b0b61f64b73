// package tasks implements the concurrent mix assembly core.
//
// The central abstraction is MixEngine, which scans catalog sources, drives
// tempo resolution through a bounded worker pool, and accumulates matched
// tracks until a duration target is met. Operations emit progress updates
// via channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/services"
	"github.com/desertthunder/cadence/internal/shared"
)

// ScanPhase tracks a session through its lifecycle. Transitions are forward
// only; "starting over" means discarding the session for a fresh one.
type ScanPhase int

const (
	PhaseSelect ScanPhase = iota
	PhaseScanningPrimary
	PhaseScanningSecondary
	PhaseReview
	PhaseCreating
	PhaseComplete
)

func (p ScanPhase) String() string {
	switch p {
	case PhaseSelect:
		return "select"
	case PhaseScanningPrimary:
		return "scanning-primary"
	case PhaseScanningSecondary:
		return "scanning-secondary"
	case PhaseReview:
		return "review"
	case PhaseCreating:
		return "creating"
	case PhaseComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// ScanSession holds the mutable state of one mix assembly run: the duration
// target, the accumulated selection, and the set of track IDs already
// submitted for analysis (dedup across primary and secondary sources).
//
// All mutation happens from the engine's coordinating loop and the single
// producer goroutine; the mutex keeps the seen-set handoff between them safe.
type ScanSession struct {
	ID     string
	Target time.Duration

	mu          sync.Mutex
	phase       ScanPhase
	accumulated time.Duration
	selection   []models.TempoMatch
	accepted    map[string]struct{}
	seen        map[string]struct{}
}

// NewScanSession creates a session in the select phase.
func NewScanSession(target time.Duration) *ScanSession {
	return &ScanSession{
		ID:       shared.GenerateID(),
		Target:   target,
		phase:    PhaseSelect,
		accepted: make(map[string]struct{}),
		seen:     make(map[string]struct{}),
	}
}

// Phase returns the session's current phase.
func (s *ScanSession) Phase() ScanPhase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// advance moves the session forward. Backward transitions are rejected; a
// new session is the only way back to select.
func (s *ScanSession) advance(next ScanPhase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if next <= s.phase {
		return fmt.Errorf("%w: cannot move session from %s back to %s", shared.ErrInvalidInput, s.phase, next)
	}
	s.phase = next
	return nil
}

// MarkSeen records a track ID as submitted and reports whether it was new.
func (s *ScanSession) MarkSeen(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.seen[key]; dup {
		return false
	}
	s.seen[key] = struct{}{}
	return true
}

// Accept appends a match to the selection and adds its duration to the
// accumulated total. Resubmitting an already accepted track is a no-op, so
// the accumulated total always equals the exact sum of selection durations.
func (s *ScanSession) Accept(match models.TempoMatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := match.Track.Key()
	if _, dup := s.accepted[key]; dup {
		return false
	}
	s.accepted[key] = struct{}{}
	s.selection = append(s.selection, match)
	s.accumulated += match.Track.Duration
	return true
}

// Accumulated returns the summed duration of the selection.
func (s *ScanSession) Accumulated() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accumulated
}

// Selection returns a copy of the accepted matches in acceptance order.
func (s *ScanSession) Selection() []models.TempoMatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.TempoMatch, len(s.selection))
	copy(out, s.selection)
	return out
}

// TargetReached reports whether the accumulated duration meets the target.
func (s *ScanSession) TargetReached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accumulated >= s.Target
}

// TempoCacher persists resolved estimates so repeat scans skip the oracle.
// Implementations must tolerate duplicate stores.
type TempoCacher interface {
	Lookup(trackID string) (*models.TempoEstimate, bool)
	Store(track models.Track, estimate *models.TempoEstimate) error
}

// ScanOptions configures one assembly run.
type ScanOptions struct {
	Range          models.TempoRange
	Target         time.Duration
	Workers        int                // concurrency cap for tempo resolution
	Order          models.SourceOrder // primary source ordering policy
	IncludeLibrary bool               // fall back to the saved-tracks library
	PageSize       int
}

// Validate checks the options are runnable.
func (o ScanOptions) Validate() error {
	if err := o.Range.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	if o.Target <= 0 {
		return fmt.Errorf("%w: target duration must be positive", shared.ErrInvalidInput)
	}
	return nil
}

// ScanResult contains the outcome of one assembly run. A selection short of
// the target is a valid terminal state, not an error.
type ScanResult struct {
	Session       *ScanSession
	Matches       []models.TempoMatch
	TargetReached bool
	Cancelled     bool
	Scanned       int // tracks whose resolution settled
	Failed        int // oracle exhaustion count
	Rejected      int // resolved but out of range
	CacheHits     int
}

// MixEngine assembles a tempo-matched selection from catalog sources.
type MixEngine struct {
	catalog services.Catalog
	oracle  services.TempoOracle
	cache   TempoCacher
	tracker *StatusTracker
	logger  *log.Logger

	mu        sync.Mutex
	cacheHits int
}

// MixEngineOpts contains dependencies for creating a MixEngine.
type MixEngineOpts struct {
	Catalog services.Catalog
	Oracle  services.TempoOracle
	Cache   TempoCacher    // optional
	Tracker *StatusTracker // optional; created when nil
	Logger  *log.Logger
}

// NewMixEngine creates a new engine with the provided dependencies.
func NewMixEngine(opts MixEngineOpts) *MixEngine {
	if opts.Tracker == nil {
		opts.Tracker = NewStatusTracker()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &MixEngine{
		catalog: opts.Catalog,
		oracle:  opts.Oracle,
		cache:   opts.Cache,
		tracker: opts.Tracker,
		logger:  opts.Logger,
	}
}

// Tracker exposes the engine's status tracker for UI layers.
func (e *MixEngine) Tracker() *StatusTracker { return e.tracker }

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *MixEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// resolveTempo is the per-track operation handed to the scheduler: cache
// lookup first, then the oracle chain. Fresh valid estimates are stored
// silently — a cache failure never disrupts a scan.
func (e *MixEngine) resolveTempo(ctx context.Context, track models.Track) (*models.TempoEstimate, error) {
	if e.cache != nil {
		if estimate, ok := e.cache.Lookup(track.Key()); ok {
			e.mu.Lock()
			e.cacheHits++
			e.mu.Unlock()
			return estimate, nil
		}
	}

	estimate, err := e.oracle.EstimateTempo(ctx, track)
	if err != nil {
		return nil, err
	}

	if estimate.Valid() && e.cache != nil {
		if err := e.cache.Store(track, estimate); err != nil {
			e.logger.Debug("failed to cache tempo estimate", "track", track.Key(), "error", err)
		}
	}

	return estimate, nil
}

// listSources fetches all of the user's playlists and applies the ordering
// policy. The catalog returns them most recently modified first, so recency
// ordering preserves catalog order; random is a shuffle.
func (e *MixEngine) listSources(ctx context.Context, opts ScanOptions) ([]models.Playlist, error) {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	var sources []models.Playlist
	offset := 0
	for {
		page, more, err := e.catalog.Playlists(ctx, pageSize, offset)
		if err != nil {
			return nil, err
		}
		sources = append(sources, page...)
		if !more {
			break
		}
		offset += pageSize
	}

	if opts.Order == models.OrderRandom {
		rand.Shuffle(len(sources), func(i, j int) {
			sources[i], sources[j] = sources[j], sources[i]
		})
	}

	return sources, nil
}

// feeder streams tracks into the scheduler's input channel. Implementations
// must return promptly once ctx is cancelled.
type feeder func(ctx context.Context, tracks chan<- models.Track)

// submit filters and forwards one track to the scheduler. Returns false when
// the feed should stop (context cancelled).
func (e *MixEngine) submit(ctx context.Context, session *ScanSession, tracks chan<- models.Track, track models.Track) bool {
	if !track.Complete() {
		return true
	}
	if !session.MarkSeen(track.Key()) {
		return true
	}

	e.tracker.Enqueue(track.Key(), track.Title, track.Artist)
	select {
	case tracks <- track:
		return true
	case <-ctx.Done():
		return false
	}
}

// feedPlaylists paginates each source in order, streaming tracks while
// earlier submissions are still being analyzed — no fetch-all barrier.
func (e *MixEngine) feedPlaylists(session *ScanSession, sources []models.Playlist, opts ScanOptions, progress chan<- ProgressUpdate) feeder {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	return func(ctx context.Context, tracks chan<- models.Track) {
		for i, source := range sources {
			if ctx.Err() != nil {
				return
			}
			e.sendProgress(progress, scanSourceUpdate(i+1, len(sources), source))

			offset := 0
			for {
				page, more, err := e.catalog.PlaylistTracks(ctx, source.ID, pageSize, offset)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					e.logger.Warn("failed to page source, skipping", "playlist", source.ID, "offset", offset, "error", err)
					break
				}

				for _, track := range page {
					if !e.submit(ctx, session, tracks, track) {
						return
					}
				}

				if !more {
					break
				}
				offset += pageSize
			}
		}
	}
}

// feedLibrary streams the user's saved-tracks library.
func (e *MixEngine) feedLibrary(session *ScanSession, opts ScanOptions) feeder {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	return func(ctx context.Context, tracks chan<- models.Track) {
		offset := 0
		for {
			page, more, err := e.catalog.SavedTracks(ctx, pageSize, offset)
			if err != nil {
				if ctx.Err() == nil {
					e.logger.Warn("failed to page library", "offset", offset, "error", err)
				}
				return
			}

			for _, track := range page {
				if !e.submit(ctx, session, tracks, track) {
					return
				}
			}

			if !more {
				return
			}
			offset += pageSize
		}
	}
}

// runPhase wires a feeder into the scheduler and consumes settled outcomes
// until the stream drains. Once the target is met the phase's context is
// cancelled so no new work starts, but in-flight operations are still
// drained — nothing is abandoned.
func (e *MixEngine) runPhase(ctx context.Context, session *ScanSession, feed feeder, opts ScanOptions, progress chan<- ProgressUpdate, result *ScanResult) {
	scanCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	scheduler := NewScanScheduler(opts.Workers)
	tracks := make(chan models.Track, scheduler.Workers())

	go func() {
		defer close(tracks)
		feed(scanCtx, tracks)
	}()

	announced := false
	for outcome := range scheduler.Run(scanCtx, tracks, e.resolveTempo) {
		key := outcome.Track.Key()

		if outcome.Err != nil {
			e.tracker.MarkCancelled(key)
			continue
		}

		result.Scanned++

		if !outcome.Estimate.Valid() {
			result.Failed++
			e.tracker.MarkExhausted(key)
			e.sendProgress(progress, failedUpdate(outcome.Track))
			continue
		}

		e.tracker.MarkResolved(key)
		match, ok := MatchTempo(outcome.Estimate.BPM, opts.Range)
		if !ok {
			result.Rejected++
			e.tracker.MarkRejected(key)
			e.sendProgress(progress, rejectedUpdate(outcome.Track, outcome.Estimate.BPM))
			continue
		}

		match.Track = outcome.Track
		match.Tier = outcome.Estimate.Tier

		if session.Accept(match) {
			e.tracker.MarkMatched(key)
			e.sendProgress(progress, matchedUpdate(match, session.Accumulated(), session.Target))

			if session.TargetReached() {
				if !announced {
					announced = true
					e.sendProgress(progress, targetReachedUpdate(session.Accumulated(), len(session.Selection())))
				}
				cancel()
			}
		}
	}
}

// Scan assembles a tempo-matched selection, scanning playlists first and the
// saved-tracks library as a fallback when the target is unmet.
//
// Cancellation halts cleanly: the partial selection is returned with
// Cancelled set rather than an error. An empty selection (without
// cancellation) returns [shared.ErrEmptySelection] as the "no matches"
// signal; the caller discards the session and starts over.
func (e *MixEngine) Scan(ctx context.Context, progress chan<- ProgressUpdate, opts ScanOptions) (*ScanResult, error) {
	if e.catalog == nil || e.oracle == nil {
		return nil, fmt.Errorf("%w: engine not fully initialized", shared.ErrServiceUnavailable)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	session := NewScanSession(opts.Target)
	result := &ScanResult{Session: session}

	e.mu.Lock()
	e.cacheHits = 0
	e.mu.Unlock()

	if err := session.advance(PhaseScanningPrimary); err != nil {
		return nil, err
	}

	sources, err := e.listSources(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list scan sources: %w", err)
	}
	e.sendProgress(progress, listSourcesUpdate(len(sources)))
	e.logger.Info("scanning sources", "playlists", len(sources), "range", opts.Range.String(),
		"target", opts.Target, "order", opts.Order)

	e.runPhase(ctx, session, e.feedPlaylists(session, sources, opts, progress), opts, progress, result)

	if ctx.Err() == nil && !session.TargetReached() && opts.IncludeLibrary {
		if err := session.advance(PhaseScanningSecondary); err != nil {
			return nil, err
		}
		e.sendProgress(progress, scanLibraryUpdate())
		e.logger.Info("target unmet after playlists, scanning library",
			"accumulated", session.Accumulated(), "target", opts.Target)
		e.runPhase(ctx, session, e.feedLibrary(session, opts), opts, progress, result)
	}

	if err := session.advance(PhaseReview); err != nil {
		return nil, err
	}

	result.Matches = session.Selection()
	result.TargetReached = session.TargetReached()
	result.Cancelled = ctx.Err() != nil

	e.mu.Lock()
	result.CacheHits = e.cacheHits
	e.mu.Unlock()

	e.logger.Info("scan finished",
		"matches", len(result.Matches), "accumulated", session.Accumulated(),
		"scanned", result.Scanned, "failed", result.Failed, "rejected", result.Rejected,
		"cache_hits", result.CacheHits, "cancelled", result.Cancelled)

	if len(result.Matches) == 0 && !result.Cancelled {
		return result, shared.ErrEmptySelection
	}

	return result, nil
}

// CreateMix publishes a reviewed selection as a new private playlist.
func (e *MixEngine) CreateMix(ctx context.Context, progress chan<- ProgressUpdate, session *ScanSession, name, description string) (*models.Playlist, error) {
	matches := session.Selection()
	if len(matches) == 0 {
		return nil, shared.ErrEmptySelection
	}

	if err := session.advance(PhaseCreating); err != nil {
		return nil, err
	}

	e.sendProgress(progress, createPlaylistUpdate(name, len(matches)))

	playlist, err := e.catalog.CreatePlaylist(ctx, name, description)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create playlist: %v", shared.ErrAPIRequest, err)
	}

	uris := make([]string, 0, len(matches))
	for _, match := range matches {
		uris = append(uris, match.Track.URI)
	}

	if err := e.catalog.AddTracks(ctx, playlist.ID, uris); err != nil {
		return nil, fmt.Errorf("%w: failed to add tracks: %v", shared.ErrAPIRequest, err)
	}

	if err := session.advance(PhaseComplete); err != nil {
		return nil, err
	}

	playlist.TrackCount = len(matches)
	return playlist, nil
}
