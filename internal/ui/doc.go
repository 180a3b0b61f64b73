// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow for assembling a tempo-matched mix:
//  1. [SourceListView] : Browse the playlists that will seed the scan
//  2. [ConfirmView] : Review the tempo range and duration target
//  3. [ScanView] : Monitor real-time scan progress updates
//  4. [ResultView] : Review the selection and optionally create the playlist
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern.
// Progress updates flow through a channel from the MixEngine, providing non-blocking status reporting during scans.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/n, c, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
