package models

import (
	"fmt"
	"time"
)

// User represents the authenticated Spotify user's profile.
type User struct {
	ID          string
	DisplayName string
	Email       string
	Country     string
	Product     string // premium, free, etc.
}

// Playlist represents a playlist used as a scan source.
type Playlist struct {
	ID          string
	Name        string
	Description string
	Owner       string
	TrackCount  int // advisory; may be stale by the time the source is paginated
	Public      bool
	URI         string
}

// Track represents a song pulled from a catalog source.
type Track struct {
	ID       string
	Title    string
	Artist   string
	Album    string
	Duration time.Duration
	URI      string
	AddedAt  time.Time // when the track entered its source collection
	SourceID string    // playlist (or "library") the track was discovered in
}

// Key returns the identity used for deduplication and status tracking.
func (t Track) Key() string { return t.ID }

// Complete reports whether the track carries the fields the scan pipeline
// requires. Tracks missing any of these are filtered out before analysis.
func (t Track) Complete() bool {
	return t.ID != "" && t.Title != "" && t.Artist != "" && t.Duration > 0
}

// Citation is a grounding reference returned alongside an oracle answer.
type Citation struct {
	URI   string
	Title string
}

// TempoEstimate is the outcome of resolving a single track's BPM through the
// oracle fallback chain. Tier records which tier produced the value (1..3);
// zero means every tier failed and the estimate is absent.
type TempoEstimate struct {
	BPM       float64
	Tier      int
	Citations []Citation
	Raw       string // raw oracle text, kept for diagnostics
}

// Valid reports whether the estimate carries a usable BPM value.
func (e *TempoEstimate) Valid() bool {
	return e != nil && e.Tier > 0 && ValidBPM(e.BPM)
}

// ValidBPM reports whether a raw oracle value is plausible. The open interval
// matches what the oracle tiers themselves accept.
func ValidBPM(bpm float64) bool { return bpm > 0 && bpm < 300 }

// TempoRange is an inclusive target BPM interval.
type TempoRange struct {
	Min float64
	Max float64
}

// Contains reports whether bpm falls inside the inclusive range.
func (r TempoRange) Contains(bpm float64) bool { return bpm >= r.Min && bpm <= r.Max }

// Validate checks the range is usable as a scan target.
func (r TempoRange) Validate() error {
	if r.Min <= 0 || r.Max <= 0 {
		return fmt.Errorf("tempo bounds must be positive, got [%.1f, %.1f]", r.Min, r.Max)
	}
	if r.Min > r.Max {
		return fmt.Errorf("tempo range inverted: min %.1f > max %.1f", r.Min, r.Max)
	}
	return nil
}

func (r TempoRange) String() string {
	return fmt.Sprintf("%.0f-%.0f BPM", r.Min, r.Max)
}

// Variant identifies which multiple of the raw tempo satisfied the range.
type Variant string

const (
	VariantOriginal   Variant = "original"
	VariantHalfTime   Variant = "half-time"
	VariantDoubleTime Variant = "double-time"
)

// TempoMatch is a track accepted into the mix selection. Exactly one of the
// raw tempo, its half, or its double lies inside the configured range;
// DisplayBPM holds that value and Variant names it. OriginalBPM keeps the raw
// oracle value for provenance.
type TempoMatch struct {
	Track       Track
	DisplayBPM  float64
	Variant     Variant
	OriginalBPM float64
	Tier        int // oracle tier the estimate came from (0 for cache hits recorded before tiering)
}

// SourceOrder selects how primary scan sources are ordered.
type SourceOrder string

const (
	OrderRecent SourceOrder = "recent" // catalog order: most recently modified first
	OrderRandom SourceOrder = "random"
)

// ParseSourceOrder validates a user-supplied ordering policy.
func ParseSourceOrder(s string) (SourceOrder, error) {
	switch SourceOrder(s) {
	case OrderRecent, OrderRandom:
		return SourceOrder(s), nil
	case "":
		return OrderRecent, nil
	default:
		return "", fmt.Errorf("unknown source order %q (want %q or %q)", s, OrderRecent, OrderRandom)
	}
}
