// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/cadence/internal/models"
)

// MockCatalog is a configurable test double for [services.Catalog]. Zero
// values return empty, terminal pages.
type MockCatalog struct {
	mu sync.Mutex

	PlaylistPages map[int][]models.Playlist // keyed by offset
	TrackPages    map[string]map[int][]models.Track
	LibraryPages  map[int][]models.Track
	Created       []models.Playlist
	Added         map[string][]string
	CreateErr     error
	AddErr        error
	ListErr       error
}

func NewMockCatalog() *MockCatalog {
	return &MockCatalog{
		PlaylistPages: make(map[int][]models.Playlist),
		TrackPages:    make(map[string]map[int][]models.Track),
		LibraryPages:  make(map[int][]models.Track),
		Added:         make(map[string][]string),
	}
}

func (m *MockCatalog) CurrentUser(ctx context.Context) (*models.User, error) {
	return &models.User{ID: "mock-user", DisplayName: "Mock User"}, nil
}

func (m *MockCatalog) Playlists(ctx context.Context, limit, offset int) ([]models.Playlist, bool, error) {
	if m.ListErr != nil {
		return nil, false, m.ListErr
	}
	page := m.PlaylistPages[offset]
	return page, len(page) == limit, nil
}

func (m *MockCatalog) PlaylistTracks(ctx context.Context, playlistID string, limit, offset int) ([]models.Track, bool, error) {
	pages, ok := m.TrackPages[playlistID]
	if !ok {
		return nil, false, fmt.Errorf("unknown playlist %s", playlistID)
	}
	page := pages[offset]
	return page, len(page) == limit, nil
}

func (m *MockCatalog) SavedTracks(ctx context.Context, limit, offset int) ([]models.Track, bool, error) {
	page := m.LibraryPages[offset]
	return page, len(page) == limit, nil
}

func (m *MockCatalog) CreatePlaylist(ctx context.Context, name, description string) (*models.Playlist, error) {
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	pl := models.Playlist{ID: fmt.Sprintf("created-%d", len(m.Created)), Name: name, Description: description}
	m.Created = append(m.Created, pl)
	return &pl, nil
}

func (m *MockCatalog) AddTracks(ctx context.Context, playlistID string, uris []string) error {
	if m.AddErr != nil {
		return m.AddErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Added[playlistID] = append(m.Added[playlistID], uris...)
	return nil
}

func (m *MockCatalog) Name() string { return "mock" }

// MockOracle is a test double for [services.TempoOracle]. Estimates are keyed
// by track ID; missing entries return an absent estimate. Calls counts
// invocations across goroutines.
type MockOracle struct {
	mu        sync.Mutex
	Estimates map[string]*models.TempoEstimate
	Errs      map[string]error
	Delay     time.Duration
	calls     int
}

func NewMockOracle() *MockOracle {
	return &MockOracle{Estimates: make(map[string]*models.TempoEstimate), Errs: make(map[string]error)}
}

func (m *MockOracle) EstimateTempo(ctx context.Context, track models.Track) (*models.TempoEstimate, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err := m.Errs[track.Key()]; err != nil {
		return nil, err
	}
	if est, ok := m.Estimates[track.Key()]; ok {
		return est, nil
	}
	return &models.TempoEstimate{Tier: 0}, nil
}

func (m *MockOracle) Name() string { return "mock" }

func (m *MockOracle) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// NewTrack builds a complete track for test fixtures.
func NewTrack(id, title, artist string, duration time.Duration) models.Track {
	return models.Track{
		ID:       id,
		Title:    title,
		Artist:   artist,
		Duration: duration,
		URI:      "spotify:track:" + id,
	}
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// RoundTripFunc adapts a function to http.RoundTripper for per-request
// scripting in tests.
type RoundTripFunc func(*http.Request) (*http.Response, error)

func (f RoundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
