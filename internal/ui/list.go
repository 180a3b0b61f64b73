package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
)

var (
	_ list.Item = sourceItem{}
	_ list.Item = matchItem{}
)

// sourceItem wraps [models.Playlist] to implement [list.Item].
type sourceItem struct {
	playlist models.Playlist
}

func (i sourceItem) FilterValue() string { return i.playlist.Name }
func (i sourceItem) Title() string       { return i.playlist.Name }
func (i sourceItem) Description() string {
	desc := fmt.Sprintf("%d tracks", i.playlist.TrackCount)
	if i.playlist.Description != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.playlist.Description)
	}
	return desc
}

// matchItem wraps [models.TempoMatch] to implement [list.Item].
type matchItem struct {
	match models.TempoMatch
}

func (i matchItem) FilterValue() string { return i.match.Track.Title }
func (i matchItem) Title() string {
	return fmt.Sprintf("%s - %s", i.match.Track.Artist, i.match.Track.Title)
}
func (i matchItem) Description() string {
	desc := fmt.Sprintf("%.0f BPM • %s", i.match.DisplayBPM, shared.FormatDuration(i.match.Track.Duration))
	if i.match.Variant != models.VariantOriginal {
		desc = fmt.Sprintf("%s • %s of %.0f", desc, i.match.Variant, i.match.OriginalBPM)
	}
	return desc
}
