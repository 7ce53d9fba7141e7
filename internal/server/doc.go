// Package server runs the short-lived HTTP listener that receives the Spotify authorization callback.
//
// # Router
//
// [BasicRouter] registers handlers on an [http.ServeMux] using method-qualified patterns
// ("GET /callback"). [Middleware] is applied in reverse order, so the first one added is the
// outermost.
//
// # OAuth callback
//
// [OAuthHandler] validates the state parameter, exchanges the authorization code for a token
// and delivers exactly one [OAuthResult]. Later requests are rejected.
//
// [CallbackServer] binds the handler to the configured host and port, waits for the result
// (or a timeout, or cancellation) and shuts the listener down again. The CLI uses it for
// "segue spotify auth" and when a stored token can no longer be refreshed.
package server
