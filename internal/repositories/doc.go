// Package repositories implements SQLite persistence for resolved tempo estimates.
//
// Oracle calls are slow and metered, so estimates that resolved to a valid
// BPM are cached per track ID and reused across scans. Citations and other
// transient diagnostics are not persisted — only the value, the tier that
// produced it, and the raw oracle text for later inspection.
//
// Key Implementations:
//   - [TempoRepository] : CRUD over the tempo_cache table
//   - [TempoCacheAdapter] : adapts the repository to tasks.TempoCacher,
//     swallowing lookup errors and duplicate-row conflicts so cache trouble
//     never disturbs a scan
package repositories
