// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// configFlag is shared by every command that reads or writes config.toml.
func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// setupCommand initializes the config file and the local cache database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Initialize configuration and the local tempo cache database",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Setup,
	}
}

// authCommand runs the Spotify PKCE authorization flow.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "auth",
		Usage:  "Authenticate with Spotify using OAuth2 (PKCE)",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Auth,
	}
}

// playlistsCommand lists the playlists that seed a scan.
func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "playlists",
		Usage: "List Spotify playlists",
		Flags: []cli.Flag{
			configFlag(),
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of playlists to return",
				Value: 50,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
			},
		},
		Action: r.Playlists,
	}
}

// scanCommand runs the tempo scan and optionally creates the playlist.
func scanCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "scan",
		Usage: "Scan playlists for tracks in a tempo range and assemble a mix",
		Flags: []cli.Flag{
			configFlag(),
			&cli.Float64Flag{
				Name:  "min-bpm",
				Usage: "Lower bound of the tempo range (inclusive)",
			},
			&cli.Float64Flag{
				Name:  "max-bpm",
				Usage: "Upper bound of the tempo range (inclusive)",
			},
			&cli.IntFlag{
				Name:    "target",
				Aliases: []string{"t"},
				Usage:   "Target mix duration in minutes",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Concurrent tempo lookups",
			},
			&cli.StringFlag{
				Name:  "order",
				Usage: "Primary source ordering: recent or random",
			},
			&cli.BoolFlag{
				Name:  "library",
				Usage: "Fall back to the saved-tracks library when playlists run dry",
			},
			&cli.BoolFlag{
				Name:  "create",
				Usage: "Create the playlist on Spotify after the scan",
			},
			&cli.StringFlag{
				Name:    "name",
				Aliases: []string{"n"},
				Usage:   "Name for the created playlist",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the selection to a file",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Export format: json, csv, markdown, txt",
				Value: "json",
			},
		},
		Action: r.Scan,
	}
}

// cacheCommand inspects and clears the tempo cache.
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect the local tempo cache",
		Commands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Show cached estimate counts",
				Flags:  []cli.Flag{configFlag()},
				Action: r.CacheStats,
			},
			{
				Name:   "clear",
				Usage:  "Delete all cached tempo estimates",
				Flags:  []cli.Flag{configFlag()},
				Action: r.CacheClear,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for interactive mix assembly.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch interactive TUI for mix assembly",
		Flags: []cli.Flag{
			&cli.Float64Flag{Name: "min-bpm", Usage: "Lower bound of the tempo range"},
			&cli.Float64Flag{Name: "max-bpm", Usage: "Upper bound of the tempo range"},
			&cli.IntFlag{Name: "target", Aliases: []string{"t"}, Usage: "Target mix duration in minutes"},
		},
		Action: r.TUI,
	}
}
