// Package services defines the [Catalog] and [TempoOracle] interfaces and implements them for Spotify and Gemini.
//
// # Catalog
//
// [SpotifyService] is a typed, rate-limited wrapper over the Spotify Web API.
// Authentication is OAuth2 Authorization Code with PKCE (a public client; no
// client secret is ever held).
//
// Every request funnels through one retry loop:
//   - a [rate.Limiter] gates outbound calls,
//   - HTTP 401 triggers exactly one token refresh and a retransmit; a second
//     401 after refresh surfaces [shared.ErrTokenExpired]. Concurrent 401s
//     share a single refresh call — the refresh mutex compares the stale
//     access token against the current one and reuses the first result,
//   - HTTP 429 sleeps for the server's Retry-After (or a fixed default) and
//     retries without a cap; the upstream quota recovers on its own.
//
// Paginated listings return (items, more, err) where more is true while a
// page comes back full: a short page is the termination signal, there is no
// explicit next cursor.
//
// # TempoOracle
//
// [GeminiService] resolves a track's BPM through a fallback chain of three
// [Tier] configurations, escalating model size, token budget, and sampling
// temperature. Each tier issues one generateContent call with web-search
// grounding and extracts the first decimal-looking substring from the reply.
// A tier is valid only for 0 < bpm < 300. Exhausting every tier yields an
// absent estimate, never an error; only cancellation is returned as an error.
// Per-tier diagnostics flow to an optional [TierObserver].
//
// # Error Handling
//
// Services use typed errors from the shared package:
//   - [shared.ErrNotAuthenticated] : no token loaded
//   - [shared.ErrTokenExpired] : 401 persisted after refresh
//   - [shared.ErrRefreshFailed] : the refresh call itself failed; reauthorization required
//   - [shared.ErrAPIRequest] : HTTP request failed with an unexpected status
package services
