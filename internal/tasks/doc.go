// Package tasks orchestrates tempo-matched mix assembly with real-time progress reporting.
//
// # Core Operations
//
// [MixEngine] exposes two operations:
//
//  1. [MixEngine.Scan] : Assemble a selection against a BPM range and duration target
//     - Lists the user's playlists (recency or random order)
//     - Streams unseen tracks into a bounded worker pool as pages arrive
//     - Resolves each track's BPM via the tempo cache or the oracle chain
//     - Applies half-time/double-time matching and accumulates accepted durations
//     - Stops pulling sources once the target is met, then falls back to the
//       saved-tracks library when it is not
//
//  2. [MixEngine.CreateMix] : Publish a reviewed selection as a private playlist
//
// # Scheduling
//
// [ScanScheduler] maintains a rolling window of in-flight resolutions: a
// fixed pool of workers pulls from a shared channel, so completions free
// their slot immediately. Outcomes arrive in settlement order — callers must
// correlate by track identity, never by position.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # Status Tracking
//
// [StatusTracker] mirrors per-track, per-tier progress for display. It is
// observability only and never gates assembly decisions.
//
// # Tempo Caching
//
// The optional [TempoCacher] interface short-circuits oracle calls for
// previously resolved tracks. Stores are silent (errors logged at debug) to
// avoid disrupting scans.
package tasks
