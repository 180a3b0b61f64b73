// package services defines interfaces for the remote collaborators of the
// scan pipeline: the music catalog and the tempo estimation oracle.
package services

import (
	"context"

	"github.com/desertthunder/cadence/internal/models"
)

// Catalog defines the operations the mix engine needs from a music service.
// Paginated listings report more=true while the returned page is full; a
// short page means the listing is exhausted.
type Catalog interface {
	// CurrentUser retrieves the authenticated user's profile.
	CurrentUser(ctx context.Context) (*models.User, error)

	// Playlists lists the user's playlists, most recently modified first.
	Playlists(ctx context.Context, limit, offset int) ([]models.Playlist, bool, error)

	// PlaylistTracks lists the tracks of a playlist.
	PlaylistTracks(ctx context.Context, playlistID string, limit, offset int) ([]models.Track, bool, error)

	// SavedTracks lists the user's saved-tracks library.
	SavedTracks(ctx context.Context, limit, offset int) ([]models.Track, bool, error)

	// CreatePlaylist creates a new private playlist.
	CreatePlaylist(ctx context.Context, name, description string) (*models.Playlist, error)

	// AddTracks inserts tracks into a playlist, batching per the service's limits.
	AddTracks(ctx context.Context, playlistID string, uris []string) error

	// Name returns the service name (e.g. "Spotify")
	Name() string
}

// TempoOracle resolves a single track's tempo. Implementations return an
// absent estimate (Tier == 0) when resolution fails outright; an error is
// reserved for cancellation and transport faults outside the modeled shape.
type TempoOracle interface {
	EstimateTempo(ctx context.Context, track models.Track) (*models.TempoEstimate, error)
	Name() string
}

// TierEvent is a diagnostic record of one oracle tier attempt.
type TierEvent struct {
	TrackKey  string
	Tier      int
	Model     string
	Raw       string
	BPM       float64 // 0 when no numeric value was extracted
	Citations int
	Err       error // transport fault for this tier, nil otherwise
}

// TierObserver receives per-tier diagnostics. Implementations must be safe
// for concurrent use; events arrive from scheduler workers.
type TierObserver interface {
	ObserveTier(event TierEvent)
}
