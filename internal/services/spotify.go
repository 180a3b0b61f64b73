// Spotify API implementation of [Catalog]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// Applied when a 429 response carries no Retry-After header.
	defaultRetryAfter = 2 * time.Second

	// Spotify rejects playlist insertions above 100 URIs per call.
	maxTracksPerAdd = 100

	defaultPageLimit = 50
)

var spotifyScopes = []string{
	"user-read-private",
	"user-read-email",
	"playlist-read-private",
	"playlist-read-collaborative",
	"playlist-modify-private",
	"playlist-modify-public",
	"user-library-read",
}

type followers struct {
	Total int `json:"total"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	Country     string    `json:"country"`
	Product     string    `json:"product"` // premium, free, etc.
	Followers   followers `json:"followers"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	URI        string          `json:"uri"`
}

type playlistOwner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type playlistTracksRef struct {
	Total int `json:"total"`
}

// SpotifySimplePlaylist represents a simplified playlist object (used in lists).
type SpotifySimplePlaylist struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Owner       playlistOwner     `json:"owner"`
	Public      bool              `json:"public"`
	Tracks      playlistTracksRef `json:"tracks"`
	URI         string            `json:"uri"`
}

// SpotifyPlaylistTrack represents a track within a playlist context.
type SpotifyPlaylistTrack struct {
	AddedAt string       `json:"added_at"`
	Track   SpotifyTrack `json:"track"`
}

// SpotifySavedTrack represents a track saved in the user's library.
type SpotifySavedTrack struct {
	AddedAt string       `json:"added_at"`
	Track   SpotifyTrack `json:"track"`
}

type paginatedPlaylists struct {
	Items  []SpotifySimplePlaylist `json:"items"`
	Total  int                     `json:"total"`
	Limit  int                     `json:"limit"`
	Offset int                     `json:"offset"`
}

type paginatedPlaylistTracks struct {
	Items  []SpotifyPlaylistTrack `json:"items"`
	Total  int                    `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
}

type paginatedSavedTracks struct {
	Items  []SpotifySavedTrack `json:"items"`
	Total  int                 `json:"total"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}

// SpotifyService implements [Catalog] for the Spotify Web API.
//
// Authentication is OAuth2 Authorization Code with PKCE; the service is a
// public client and never holds a client secret. A [rate.Limiter] throttles
// all outbound requests, and doRequest centralizes the 401-refresh-once and
// 429-backoff-retry policies.
type SpotifyService struct {
	config     *oauth2.Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
	baseURL    string

	// mu guards token and userID. Refresh holds it across the refresh
	// network call so concurrent 401s collapse into a single refresh.
	mu      sync.Mutex
	token   *oauth2.Token
	userID  string
	onToken func(*oauth2.Token)
}

// SpotifyOpts contains configuration for creating a SpotifyService.
type SpotifyOpts struct {
	Config     shared.SpotifyConfig
	HTTPClient *http.Client
	Logger     *log.Logger
	RateLimit  float64 // requests per second; defaults to 5
}

// NewSpotifyService creates a new Spotify service from the given credentials.
func NewSpotifyService(opts SpotifyOpts) (*SpotifyService, error) {
	if opts.Config.ClientID == "" {
		return nil, fmt.Errorf("%w: spotify client_id is not set", shared.ErrMissingCredentials)
	}

	redirectURI := opts.Config.RedirectURI
	if redirectURI == "" {
		redirectURI = "http://127.0.0.1:3000/callback"
	}

	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	config := &oauth2.Config{
		ClientID:    opts.Config.ClientID,
		RedirectURL: redirectURI,
		Scopes:      spotifyScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	svc := &SpotifyService{
		config:     config,
		httpClient: opts.HTTPClient,
		limiter:    rate.NewLimiter(rate.Limit(opts.RateLimit), 1),
		logger:     opts.Logger,
		baseURL:    spotifyBaseURL,
		token:      opts.Config.Token(),
	}

	return svc, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// AuthURL returns the authorization URL for the PKCE flow. The verifier must
// be retained by the caller and passed to [SpotifyService.Exchange].
func (s *SpotifyService) AuthURL(state, verifier string) string {
	return s.config.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
}

// Exchange trades an authorization code (plus the PKCE verifier) for tokens
// and installs them on the service.
func (s *SpotifyService) Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	token, err := s.config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("%w: code exchange: %v", shared.ErrAuthFailed, err)
	}
	s.SetToken(token)
	return token, nil
}

// SetToken installs a token, e.g. one restored from the config file.
func (s *SpotifyService) SetToken(token *oauth2.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Token returns the current token (nil when unauthenticated).
func (s *SpotifyService) Token() *oauth2.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// OnTokenRefresh registers a callback invoked with every refreshed token so
// the caller can persist it.
func (s *SpotifyService) OnTokenRefresh(fn func(*oauth2.Token)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onToken = fn
}

func (s *SpotifyService) accessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == nil {
		return ""
	}
	return s.token.AccessToken
}

// refresh exchanges the refresh token for a new access token. stale is the
// access token the caller saw rejected: if another request already refreshed
// past it, the existing token is reused instead of issuing a duplicate
// refresh call. The mutex is held across the network call on purpose —
// concurrent 401s block here and pick up the first refresh's result.
func (s *SpotifyService) refresh(ctx context.Context, stale string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != nil && s.token.AccessToken != "" && s.token.AccessToken != stale {
		return s.token.AccessToken, nil
	}
	if s.token == nil || s.token.RefreshToken == "" {
		return "", shared.ErrNoRefreshToken
	}

	src := s.config.TokenSource(ctx, &oauth2.Token{RefreshToken: s.token.RefreshToken})
	token, err := src.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}
	if token.RefreshToken == "" {
		token.RefreshToken = s.token.RefreshToken
	}

	s.logger.Debug("refreshed spotify access token", "expiry", token.Expiry)
	s.token = token
	if s.onToken != nil {
		s.onToken(token)
	}
	return token.AccessToken, nil
}

// retryAfter reads the server-provided backoff from a 429 response.
func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultRetryAfter
}

// doRequest performs an authenticated HTTP request against the Spotify API,
// applying the rate limiter, the refresh-once policy for 401s, and uncapped
// Retry-After backoff for 429s.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	refreshed := false
	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}

		access := s.accessToken()
		if access == "" {
			return fmt.Errorf("%w: no spotify token loaded", shared.ErrNotAuthenticated)
		}

		var reader *bytes.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		} else {
			reader = bytes.NewReader(nil)
		}

		req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, reader)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+access)
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			resp.Body.Close()
			if refreshed {
				return fmt.Errorf("%w: request rejected after refresh", shared.ErrTokenExpired)
			}
			refreshed = true
			if _, err := s.refresh(ctx, access); err != nil {
				return err
			}
			continue

		case resp.StatusCode == http.StatusTooManyRequests:
			resp.Body.Close()
			delay := retryAfter(resp)
			s.logger.Debug("rate limited by spotify", "retry_after", delay, "endpoint", endpoint)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			continue

		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			defer resp.Body.Close()
			if result != nil {
				if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
					return fmt.Errorf("failed to decode response: %w", err)
				}
			}
			return nil

		default:
			resp.Body.Close()
			return fmt.Errorf("%w: status %d on %s %s", shared.ErrAPIRequest, resp.StatusCode, method, endpoint)
		}
	}
}

// CurrentUser retrieves the authenticated user's profile.
func (s *SpotifyService) CurrentUser(ctx context.Context) (*models.User, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.userID = user.ID
	s.mu.Unlock()

	return &models.User{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		Country:     user.Country,
		Product:     user.Product,
	}, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultPageLimit
	}
	if limit > defaultPageLimit {
		return defaultPageLimit
	}
	return limit
}

// Playlists lists the user's playlists. Spotify returns them most recently
// modified first, which doubles as the engine's recency ordering. more is
// true while the page comes back full.
func (s *SpotifyService) Playlists(ctx context.Context, limit, offset int) ([]models.Playlist, bool, error) {
	limit = clampLimit(limit)
	endpoint := fmt.Sprintf("/me/playlists?limit=%d&offset=%d", limit, offset)

	var page paginatedPlaylists
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
		return nil, false, err
	}

	playlists := make([]models.Playlist, 0, len(page.Items))
	for _, sp := range page.Items {
		playlists = append(playlists, models.Playlist{
			ID:          sp.ID,
			Name:        sp.Name,
			Description: sp.Description,
			Owner:       sp.Owner.DisplayName,
			TrackCount:  sp.Tracks.Total,
			Public:      sp.Public,
			URI:         sp.URI,
		})
	}

	return playlists, len(page.Items) == limit, nil
}

func trackFromSpotify(st SpotifyTrack, addedAt, sourceID string) models.Track {
	track := models.Track{
		ID:       st.ID,
		Title:    st.Name,
		Album:    st.Album.Name,
		Duration: time.Duration(st.DurationMS) * time.Millisecond,
		URI:      st.URI,
		SourceID: sourceID,
	}
	if len(st.Artists) > 0 {
		track.Artist = st.Artists[0].Name
	}
	if ts, err := time.Parse(time.RFC3339, addedAt); err == nil {
		track.AddedAt = ts
	}
	return track
}

// PlaylistTracks lists the tracks of a playlist page by page.
func (s *SpotifyService) PlaylistTracks(ctx context.Context, playlistID string, limit, offset int) ([]models.Track, bool, error) {
	limit = clampLimit(limit)
	endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=%d&offset=%d", playlistID, limit, offset)

	var page paginatedPlaylistTracks
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
		return nil, false, err
	}

	tracks := make([]models.Track, 0, len(page.Items))
	for _, item := range page.Items {
		tracks = append(tracks, trackFromSpotify(item.Track, item.AddedAt, playlistID))
	}

	return tracks, len(page.Items) == limit, nil
}

// SavedTracks lists the user's saved-tracks library page by page.
func (s *SpotifyService) SavedTracks(ctx context.Context, limit, offset int) ([]models.Track, bool, error) {
	limit = clampLimit(limit)
	endpoint := fmt.Sprintf("/me/tracks?limit=%d&offset=%d", limit, offset)

	var page paginatedSavedTracks
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
		return nil, false, err
	}

	tracks := make([]models.Track, 0, len(page.Items))
	for _, item := range page.Items {
		tracks = append(tracks, trackFromSpotify(item.Track, item.AddedAt, "library"))
	}

	return tracks, len(page.Items) == limit, nil
}

// currentUserID returns the cached user ID, fetching the profile on first use.
func (s *SpotifyService) currentUserID(ctx context.Context) (string, error) {
	s.mu.Lock()
	id := s.userID
	s.mu.Unlock()
	if id != "" {
		return id, nil
	}

	user, err := s.CurrentUser(ctx)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

// CreatePlaylist creates a new private playlist for the authenticated user.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, name, description string) (*models.Playlist, error) {
	userID, err := s.currentUserID(ctx)
	if err != nil {
		return nil, err
	}

	body := map[string]any{
		"name":        name,
		"description": description,
		"public":      false,
	}

	var created SpotifySimplePlaylist
	endpoint := fmt.Sprintf("/users/%s/playlists", userID)
	if err := s.doRequest(ctx, http.MethodPost, endpoint, body, &created); err != nil {
		return nil, err
	}

	return &models.Playlist{
		ID:          created.ID,
		Name:        created.Name,
		Description: created.Description,
		Owner:       created.Owner.DisplayName,
		Public:      created.Public,
		URI:         created.URI,
	}, nil
}

// AddTracks inserts track URIs into a playlist in batches of at most 100.
func (s *SpotifyService) AddTracks(ctx context.Context, playlistID string, uris []string) error {
	endpoint := fmt.Sprintf("/playlists/%s/tracks", playlistID)

	for start := 0; start < len(uris); start += maxTracksPerAdd {
		end := start + maxTracksPerAdd
		if end > len(uris) {
			end = len(uris)
		}

		body := map[string]any{"uris": uris[start:end]}
		if err := s.doRequest(ctx, http.MethodPost, endpoint, body, nil); err != nil {
			return fmt.Errorf("failed to add tracks %d-%d: %w", start, end-1, err)
		}
	}

	return nil
}
