// Package services defines the [Service] interface for music streaming providers and implements it for Spotify.
//
// # Service Interface
//
// A provider lists playlists, exports a playlist's items, fetches audio features for tracks and
// publishes an ordered copy of a playlist. The analysis packages never talk to a provider; the
// tasks package calls into it and hands plain records on.
//
// # Spotify Implementation
//
// [SpotifyService] authenticates in one of two ways:
//   - user token (authorization code flow), refreshed automatically by [oauth2]; required to list the
//     user's private playlists and to publish
//   - client credentials, enough to read the public playlists of the configured username
//
// Requests are paced by a token bucket limiter. A 429 response is retried once after its
// Retry-After delay. Playlist items and playlist lists are followed through their "next" links.
// Audio features are requested 100 IDs at a time and published tracks are added 100 at a time.
//
// # OAuth Service Extension
//
// The [OAuthService] interface extends Service for OAuth providers.
// [SpotifyService] implements it for the local callback flow used by the CLI.
//
// # Error Handling
//
// Services use typed errors from the shared package:
//   - [shared.ErrNotAuthenticated] : Authenticate() not called, or publishing without a user token
//   - [shared.ErrTokenExpired] : HTTP 401, reauthorization needed
//   - [shared.ErrAPIRequest] : any other non-2xx response, see [StatusError]
//   - [shared.ErrPlaylistNotFound] : playlist ID not found
package services
