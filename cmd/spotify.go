package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
	"github.com/urfave/cli/v3"
)

// Playlists lists the user's Spotify playlists with optional limit.
func (r *Runner) Playlists(ctx context.Context, cmd *cli.Command) error {
	limit := cmd.Int("limit")
	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	if r.spotify == nil {
		return fmt.Errorf("%w: Spotify service not initialized (run 'cadence auth')", shared.ErrServiceUnavailable)
	}

	r.logger.Infof("listing spotify playlists with limit %v", limit)

	pageSize := r.config.Scan.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	var playlists []models.Playlist
	offset := 0
	for {
		page, more, err := r.spotify.Playlists(ctx, pageSize, offset)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}
		playlists = append(playlists, page...)
		if !more || (limit > 0 && len(playlists) >= limit) {
			break
		}
		offset += len(page)
	}

	if limit > 0 && limit < len(playlists) {
		playlists = playlists[:limit]
	}

	if useJSON {
		return r.writeJSON(playlists, pretty)
	}

	r.writePlainHeader(fmt.Sprintf("Spotify Playlists (%d)", len(playlists)))
	for i, pl := range playlists {
		r.writePlain("%2d. %s — %d tracks (%s)\n", i+1, pl.Name, pl.TrackCount, shared.VisibilityString(pl.Public))
	}

	return nil
}
