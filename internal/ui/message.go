package ui

import (
	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/tasks"
)

// sourcesFetchedMsg carries the playlists that will seed the scan.
type sourcesFetchedMsg struct {
	playlists []models.Playlist
	err       error
}

// progressUpdateMsg wraps one engine progress event.
type progressUpdateMsg tasks.ProgressUpdate

// scanCompleteMsg carries the terminal scan outcome.
type scanCompleteMsg struct {
	result *tasks.ScanResult
	err    error
}

// mixCreatedMsg carries the created playlist (or the failure).
type mixCreatedMsg struct {
	playlist *models.Playlist
	err      error
}
