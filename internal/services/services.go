// package services defines interface Service for interacting with music service HTTP APIs
package services

import (
	"context"

	"github.com/desertthunder/segue/internal/models"
	"golang.org/x/oauth2"
)

// Service defines the operations segue needs from a music service: reading playlists with
// their audio features and publishing a reordered copy.
type Service interface {
	// Authenticate performs OAuth or client credential authentication with the service.
	Authenticate(ctx context.Context, credentials map[string]string) error

	// GetPlaylists retrieves the playlists visible to the configured user.
	GetPlaylists(ctx context.Context) ([]models.Playlist, error)

	// GetPlaylist retrieves a specific playlist by ID.
	GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error)

	// ExportPlaylist retrieves a playlist with all its items.
	ExportPlaylist(ctx context.Context, playlistID string) (*models.PlaylistExport, error)

	// AudioFeatures fetches the audio features of the given tracks, keyed by track ID.
	// Tracks without features are absent from the result.
	AudioFeatures(ctx context.Context, trackIDs []string) (map[string]models.AudioFeatures, error)

	// ImportPlaylist creates a new playlist holding the tracks of playlist in order.
	ImportPlaylist(ctx context.Context, playlist *models.PlaylistExport) (*models.Playlist, error)

	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}

// OAuthService extends [Service] for providers using the authorization code flow.
type OAuthService interface {
	Service
	GetAuthURL(state string) string
	GetOAuthConfig() *oauth2.Config
	OAuthenticate(ctx context.Context, token *oauth2.Token) error
}
