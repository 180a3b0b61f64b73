// Package models defines domain entities for the cadence mix assembly pipeline.
//
// The package contains two categories of types:
//
// 1. Catalog objects: lightweight structs representing Spotify data
//   - [Playlist] : Playlist metadata used as a scan source
//   - [Track] : Song metadata with duration for target accounting
//   - [User] : Profile of the authenticated catalog user
//
// 2. Tempo objects: the analysis pipeline's value types
//   - [TempoEstimate] : Oracle output with the tier that produced it and its grounding citations
//   - [TempoMatch] : An accepted track, its display BPM, and the [Variant] that put it in range
//   - [TempoRange] : Inclusive target BPM interval
//
// Tempo objects are immutable once created; ownership moves with them through
// the pipeline (oracle → scheduler → engine) and nothing mutates them after
// creation.
package models
