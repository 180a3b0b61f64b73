package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/desertthunder/cadence/internal/server"
	"github.com/desertthunder/cadence/internal/services"
	"github.com/desertthunder/cadence/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Auth performs the OAuth2 Authorization-Code-with-PKCE flow for Spotify.
//
// Starts a local HTTP server, opens the browser for user authorization, and
// exchanges the auth code (plus the PKCE verifier) for tokens.
func (r *Runner) Auth(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	config := r.config
	if config == nil {
		var err error
		if _, statErr := os.Stat(configPath); statErr == nil {
			config, err = shared.LoadConfig(configPath)
			if err != nil {
				r.logger.Warnf("failed to load config, using defaults %v", err)
				config = shared.DefaultConfig()
			}
		} else {
			config = shared.DefaultConfig()
		}
	}

	if config.Credentials.Spotify.ClientID == "" {
		return fmt.Errorf("%w: Spotify client_id must be set in config.toml", shared.ErrInvalidArgument)
	}

	spotify := r.spotify
	if spotify == nil {
		var err error
		spotify, err = services.NewSpotifyService(services.SpotifyOpts{
			Config:    config.Credentials.Spotify,
			Logger:    r.logger,
			RateLimit: config.Scan.RateLimit,
		})
		if err != nil {
			return fmt.Errorf("failed to create Spotify service: %w", err)
		}
		r.spotify = spotify
	}

	token, err := r.doOAuth(ctx, config, spotify)
	if err != nil {
		return err
	}

	spotify.SetToken(token)

	if err := config.Credentials.Spotify.Update(token); err != nil {
		return fmt.Errorf("failed to update spotify configuration: %w", err)
	}

	if err := shared.SaveConfig(configPath, config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Tokens saved to %s\n\n", configPath)
	r.writePlain("You can now use: cadence scan --min-bpm 150 --max-bpm 170\n")

	return nil
}

// doOAuth runs the browser round-trip: generates the state nonce and PKCE
// verifier, serves the callback, and waits for the exchanged token.
func (r *Runner) doOAuth(ctx context.Context, config *shared.Config, spotify *services.SpotifyService) (*oauth2.Token, error) {
	state := shared.GenerateID()
	verifier := oauth2.GenerateVerifier()

	authURL := spotify.AuthURL(state, verifier)
	oauthHandler := server.NewOAuthHandler(spotify, state, verifier)
	router := server.NewBasicRouter()
	router.Use(server.RequestLogger(r.logger))
	router.Handler(oauthHandler)

	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.logger.Infof("starting OAuth callback server at %v", config.Server.Addr())
	serverErrors := server.ListenUntil(serveCtx, config.Server.Addr(), router)

	time.Sleep(100 * time.Millisecond)

	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(2 * time.Minute)
	defer timeout.Stop()

	var result server.OAuthResult

	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	}

	cancel()
	if err := <-serverErrors; err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}

	if result.Token == nil {
		return nil, fmt.Errorf("no token received")
	}

	return result.Token, nil
}
