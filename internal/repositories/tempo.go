package repositories

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/desertthunder/cadence/internal/models"
)

// TempoRepository persists resolved tempo estimates in the tempo_cache table.
type TempoRepository struct {
	db *sql.DB
}

// NewTempoRepository creates a repository over an open database. The schema
// must already be migrated (shared.RunMigrations).
func NewTempoRepository(db *sql.DB) *TempoRepository {
	return &TempoRepository{db: db}
}

// Get retrieves a cached estimate by track ID. Returns (nil, nil) on a miss.
func (r *TempoRepository) Get(trackID string) (*models.TempoEstimate, error) {
	row := r.db.QueryRow(
		"SELECT bpm, tier, COALESCE(raw, '') FROM tempo_cache WHERE track_id = ?", trackID,
	)

	var estimate models.TempoEstimate
	if err := row.Scan(&estimate.BPM, &estimate.Tier, &estimate.Raw); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query tempo cache: %w", err)
	}

	return &estimate, nil
}

// Put inserts an estimate for a track. Duplicate track IDs are an error;
// use [TempoCacheAdapter] for fire-and-forget semantics.
func (r *TempoRepository) Put(track models.Track, estimate *models.TempoEstimate) error {
	if estimate == nil || !estimate.Valid() {
		return fmt.Errorf("refusing to cache absent estimate for track %s", track.Key())
	}

	_, err := r.db.Exec(
		"INSERT INTO tempo_cache (track_id, title, artist, bpm, tier, raw) VALUES (?, ?, ?, ?, ?, ?)",
		track.Key(), track.Title, track.Artist, estimate.BPM, estimate.Tier, estimate.Raw,
	)
	if err != nil {
		return fmt.Errorf("failed to cache tempo estimate: %w", err)
	}
	return nil
}

// Count returns the number of cached estimates.
func (r *TempoRepository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM tempo_cache").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count tempo cache: %w", err)
	}
	return count, nil
}

// Clear removes every cached estimate and returns the number deleted.
func (r *TempoRepository) Clear() (int, error) {
	res, err := r.db.Exec("DELETE FROM tempo_cache")
	if err != nil {
		return 0, fmt.Errorf("failed to clear tempo cache: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(deleted), nil
}

// TempoCacheAdapter implements tasks.TempoCacher using TempoRepository.
//
// Lookup failures are treated as misses and duplicate stores are silently
// ignored (UNIQUE constraint violations), so the cache can never disturb an
// in-flight scan.
type TempoCacheAdapter struct {
	repo *TempoRepository
}

// NewTempoCacheAdapter creates a new TempoCacheAdapter with the given repository
func NewTempoCacheAdapter(repo *TempoRepository) *TempoCacheAdapter {
	return &TempoCacheAdapter{repo: repo}
}

// Lookup returns a cached estimate for the track, if any.
func (a *TempoCacheAdapter) Lookup(trackID string) (*models.TempoEstimate, bool) {
	estimate, err := a.repo.Get(trackID)
	if err != nil || estimate == nil {
		return nil, false
	}
	return estimate, true
}

// Store caches a freshly resolved estimate.
// Returns nil if the track is already cached (deduplication).
func (a *TempoCacheAdapter) Store(track models.Track, estimate *models.TempoEstimate) error {
	err := a.repo.Put(track, estimate)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint") {
		return nil
	}
	return err
}
