package tasks

import (
	"fmt"
	"time"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	ListSources Phase = iota
	ScanSource
	AnalyzeTrack
	TrackMatched
	TrackRejected
	TrackFailed
	TargetReached
	ScanLibrary
	CreatePlaylist
)

func (p Phase) String() string {
	switch p {
	case ListSources:
		return "list_sources"
	case ScanSource:
		return "scan_source"
	case AnalyzeTrack:
		return "analyze_track"
	case TrackMatched:
		return "track_matched"
	case TrackRejected:
		return "track_rejected"
	case TrackFailed:
		return "track_failed"
	case TargetReached:
		return "target_reached"
	case ScanLibrary:
		return "scan_library"
	case CreatePlaylist:
		return "create_playlist"
	default:
		return ""
	}
}

func listSourcesUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ListSources,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found %d playlists to scan", count),
	}
}

func scanSourceUpdate(step, total int, pl models.Playlist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ScanSource,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Scanning: %s (%d tracks)", step, total, pl.Name, pl.TrackCount),
		Data:    pl,
	}
}

func scanLibraryUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   ScanLibrary,
		Step:    1,
		Total:   1,
		Message: "Target not reached, scanning saved-tracks library...",
	}
}

func matchedUpdate(match models.TempoMatch, accumulated, target time.Duration) ProgressUpdate {
	return ProgressUpdate{
		Phase: TrackMatched,
		Message: fmt.Sprintf("✓ %s - %s (%.0f BPM, %s) [%s / %s]",
			match.Track.Artist, match.Track.Title, match.DisplayBPM, match.Variant,
			shared.FormatDuration(accumulated), shared.FormatDuration(target)),
		Data: match,
	}
}

func rejectedUpdate(track models.Track, bpm float64) ProgressUpdate {
	return ProgressUpdate{
		Phase:   TrackRejected,
		Message: fmt.Sprintf("  %s - %s out of range (%.0f BPM)", track.Artist, track.Title, bpm),
		Data:    track,
	}
}

func failedUpdate(track models.Track) ProgressUpdate {
	return ProgressUpdate{
		Phase:   TrackFailed,
		Message: fmt.Sprintf("✗ %s - %s: tempo unresolved", track.Artist, track.Title),
		Data:    track,
	}
}

func targetReachedUpdate(accumulated time.Duration, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   TargetReached,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Target reached: %s across %d tracks", shared.FormatDuration(accumulated), count),
	}
}

func createPlaylistUpdate(name string, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Creating playlist %q with %d tracks...", name, count),
	}
}
