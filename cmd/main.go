package main

import (
	"context"
	"errors"
	"os"

	"github.com/desertthunder/cadence/internal/repositories"
	"github.com/desertthunder/cadence/internal/services"
	"github.com/desertthunder/cadence/internal/shared"
	"github.com/desertthunder/cadence/internal/tasks"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	configPath := "config.toml"
	if _, err := os.Stat(configPath); err == nil {
		if loadedConfig, err := shared.LoadConfig(configPath); err == nil {
			config = loadedConfig
		}
	}

	var spotify *services.SpotifyService
	if config.Credentials.Spotify.ClientID != "" {
		if svc, err := services.NewSpotifyService(services.SpotifyOpts{
			Config:    config.Credentials.Spotify,
			Logger:    logger,
			RateLimit: config.Scan.RateLimit,
		}); err == nil {
			spotify = svc
			spotify.OnTokenRefresh(func(token *oauth2.Token) {
				if err := config.Credentials.Spotify.Update(token); err != nil {
					return
				}
				if err := shared.SaveConfig(configPath, config); err != nil {
					logger.Warn("failed to persist refreshed token", "error", err)
				}
			})
		} else {
			logger.Debug("spotify service unavailable", "error", err)
		}
	}

	var oracle services.TempoOracle
	if config.Credentials.Gemini.APIKey != "" {
		if svc, err := services.NewGeminiService(services.GeminiOpts{
			Config: config.Credentials.Gemini,
			Logger: logger,
		}); err == nil {
			oracle = svc
		} else {
			logger.Debug("tempo oracle unavailable", "error", err)
		}
	}

	var cache tasks.TempoCacher
	if db, err := shared.NewDatabase(config.Database.Path); err == nil {
		shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)
		if err := shared.RunMigrations(db); err == nil {
			cache = repositories.NewTempoCacheAdapter(repositories.NewTempoRepository(db))
		} else {
			logger.Debug("tempo cache unavailable", "error", err)
			db.Close()
		}
	} else {
		logger.Debug("database unavailable", "error", err)
	}

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		Spotify:    spotify,
		Oracle:     oracle,
		Cache:      cache,
		Logger:     logger,
	})

	app := &cli.Command{
		Name:     "cadence",
		Usage:    "Assemble tempo-matched Spotify playlists",
		Version:  "0.3.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		if errors.Is(err, shared.ErrEmptySelection) {
			logger.Warn("no tracks matched the requested tempo range")
			os.Exit(1)
		}
		logger.Fatalf("application error: %v", err)
	}
}
