// Package server provides HTTP routing, middleware, and the OAuth callback handler for the CLI auth flow.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the Authorization-Code-with-PKCE callback flow.
//
// The handler validates the state parameter (CSRF protection), exchanges the
// authorization code — together with the PKCE verifier generated when the
// flow started — for tokens, and sends the result through a channel.
//
// It only processes one callback to prevent replay attacks.
//
// # Current Usage
//
// When the user runs `cadence auth`, a temporary HTTP server starts on the
// configured localhost address, handles the redirect from Spotify's
// authorization endpoint, and shuts down after delivering the token.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
