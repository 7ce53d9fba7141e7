// Spotify API implementation of [Service]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/segue/internal/models"
	"github.com/desertthunder/segue/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// DefaultRedirectURI matches the callback server's default address.
	DefaultRedirectURI = "http://127.0.0.1:3000/callback"

	audioFeaturesBatch = 100
	addTracksBatch     = 100
	pageLimit          = 50
	defaultRetryAfter  = time.Second
)

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type externalIDs struct {
	ISRC string `json:"isrc"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	Album       SpotifyAlbum    `json:"album"`
	DurationMS  int             `json:"duration_ms"`
	ExternalIDs externalIDs     `json:"external_ids"`
	Popularity  int             `json:"popularity"`
	IsLocal     bool            `json:"is_local"`
	URI         string          `json:"uri"`
}

// SpotifyPlaylistTrack represents a track within a playlist context. Track is nil for removed items.
type SpotifyPlaylistTrack struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

// Owner is the owner of a playlist.
type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type playlistTracksRef struct {
	Total int `json:"total"`
}

// SpotifyPlaylist represents a playlist object, simplified or full.
type SpotifyPlaylist struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Owner       Owner             `json:"owner"`
	Public      bool              `json:"public"`
	Tracks      playlistTracksRef `json:"tracks"`
	URI         string            `json:"uri"`
}

// SpotifyAudioFeatures represents the audio analysis summary of a track.
type SpotifyAudioFeatures struct {
	ID      string  `json:"id"`
	Key     int     `json:"key"`
	Mode    int     `json:"mode"`
	Tempo   float64 `json:"tempo"`
	Valence float64 `json:"valence"`
	Energy  float64 `json:"energy"`
}

// page is a Spotify paging object.
type page[T any] struct {
	Items  []T     `json:"items"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
	Next   *string `json:"next"`
}

// StatusError is a non-2xx response from the Spotify API.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("spotify API error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("spotify API error: status %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps 401 to [shared.ErrTokenExpired] and everything else to [shared.ErrAPIRequest].
func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return shared.ErrTokenExpired
	}
	return shared.ErrAPIRequest
}

// SpotifyService implements the Service interface for Spotify API interactions.
//
// A user token (authorization code flow) is needed to list the user's own playlists and to
// publish. Without one, the service authenticates as the application with client credentials
// and reads the public playlists of the configured username.
type SpotifyService struct {
	config         *oauth2.Config
	baseURL        string
	username       string
	limiter        *rate.Limiter
	onTokenRefresh func(*oauth2.Token)

	mu         sync.Mutex
	token      *oauth2.Token
	httpClient *http.Client
	appOnly    bool
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = DefaultRedirectURI
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"user-read-private",
			"playlist-read-private",
			"playlist-read-collaborative",
			"playlist-modify-public",
			"playlist-modify-private",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &SpotifyService{
		config:   config,
		baseURL:  spotifyBaseURL,
		username: credentials["username"],
		limiter:  rate.NewLimiter(rate.Every(100*time.Millisecond), 5),
	}, nil
}

// SetBaseURL points the service at another API root.
func (s *SpotifyService) SetBaseURL(u string) {
	s.baseURL = strings.TrimSuffix(u, "/")
}

// SetTokenURL replaces the token endpoint used by both grant types.
func (s *SpotifyService) SetTokenURL(u string) {
	s.config.Endpoint.TokenURL = u
}

// SetRateLimit sets the sustained request rate; rate.Inf disables pacing.
func (s *SpotifyService) SetRateLimit(limit rate.Limit, burst int) {
	s.limiter = rate.NewLimiter(limit, burst)
}

// SetTokenRefreshCallback registers fn to receive every newly issued user token.
func (s *SpotifyService) SetTokenRefreshCallback(fn func(*oauth2.Token)) {
	s.onTokenRefresh = fn
}

// Authenticate authenticates with Spotify.
//
// Recognised keys: "access_token" (with optional "refresh_token" and RFC 3339 "token_expiry"),
// "auth_code", or "grant_type" set to "client_credentials".
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	if accessToken := credentials["access_token"]; accessToken != "" || credentials["refresh_token"] != "" {
		token := &oauth2.Token{
			AccessToken:  accessToken,
			RefreshToken: credentials["refresh_token"],
			TokenType:    "Bearer",
		}
		if expiry := credentials["token_expiry"]; expiry != "" {
			t, err := time.Parse(time.RFC3339, expiry)
			if err != nil {
				return fmt.Errorf("%w: token_expiry: %v", shared.ErrInvalidArgument, err)
			}
			token.Expiry = t
		}
		return s.OAuthenticate(ctx, token)
	}

	if authCode := credentials["auth_code"]; authCode != "" {
		token, err := s.config.Exchange(ctx, authCode)
		if err != nil {
			return fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthFailed, err)
		}
		return s.OAuthenticate(ctx, token)
	}

	if credentials["grant_type"] == "client_credentials" {
		cc := &clientcredentials.Config{
			ClientID:     s.config.ClientID,
			ClientSecret: s.config.ClientSecret,
			TokenURL:     s.config.Endpoint.TokenURL,
		}
		token, err := cc.Token(ctx)
		if err != nil {
			return fmt.Errorf("%w: client credentials: %v", shared.ErrAuthFailed, err)
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		s.token = token
		s.appOnly = true
		s.httpClient = oauth2.NewClient(ctx, oauth2.ReuseTokenSource(token, cc.TokenSource(ctx)))
		return nil
	}

	return fmt.Errorf("%w: missing access_token, auth_code or grant_type", shared.ErrMissingCredentials)
}

// OAuthenticate installs a user token, refreshing it through the token endpoint when it expires.
func (s *SpotifyService) OAuthenticate(ctx context.Context, token *oauth2.Token) error {
	if token == nil {
		return fmt.Errorf("%w: nil token", shared.ErrInvalidArgument)
	}

	source := &refreshableTokenSource{
		source: s.config.TokenSource(ctx, token),
		last:   token,
		callback: func(t *oauth2.Token) {
			s.mu.Lock()
			s.token = t
			s.mu.Unlock()
			if s.onTokenRefresh != nil {
				s.onTokenRefresh(t)
			}
		},
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.appOnly = false
	s.httpClient = oauth2.NewClient(ctx, source)
	return nil
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// GetOAuthConfig returns the authorization code flow configuration.
func (s *SpotifyService) GetOAuthConfig() *oauth2.Config {
	return s.config
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// refreshableTokenSource reports each token that differs from the previous one.
type refreshableTokenSource struct {
	source   oauth2.TokenSource
	callback func(*oauth2.Token)

	mu   sync.Mutex
	last *oauth2.Token
}

func (r *refreshableTokenSource) Token() (*oauth2.Token, error) {
	token, err := r.source.Token()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	changed := r.last == nil || r.last.AccessToken != token.AccessToken
	r.last = token
	r.mu.Unlock()

	if changed && r.callback != nil {
		r.callback(token)
	}
	return token, nil
}

func (s *SpotifyService) client() (*http.Client, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.httpClient, s.appOnly
}

// doRequest performs an authenticated request. endpoint is either a path below the API root
// or an absolute URL such as a paging "next" link. A 429 response is retried once after its Retry-After delay.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	client, _ := s.client()
	if client == nil {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	apiURL := endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		apiURL = s.baseURL + endpoint
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	for attempt := 0; ; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrTimeout, err)
		}

		req, err := http.NewRequestWithContext(ctx, method, apiURL, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt == 0 {
			wait := retryAfter(resp.Header.Get("Retry-After"))
			resp.Body.Close()
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", shared.ErrTimeout, ctx.Err())
			case <-time.After(wait):
			}
			continue
		}

		return decodeResponse(resp, result)
	}
}

func decodeResponse(resp *http.Response, result any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = json.Unmarshal(data, &apiErr)
		return &StatusError{StatusCode: resp.StatusCode, Message: apiErr.Error.Message}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func retryAfter(header string) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || seconds < 0 {
		return defaultRetryAfter
	}
	return time.Duration(seconds) * time.Second
}

// collectPages follows "next" links from endpoint and returns every item.
func collectPages[T any](ctx context.Context, s *SpotifyService, endpoint string) ([]T, error) {
	var items []T
	for endpoint != "" {
		var p page[T]
		if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &p); err != nil {
			return nil, err
		}
		items = append(items, p.Items...)

		endpoint = ""
		if p.Next != nil {
			endpoint = *p.Next
		}
	}
	return items, nil
}

// UserProfile retrieves the current authenticated user's profile.
func (s *SpotifyService) UserProfile(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Playlist retrieves a playlist's metadata by ID.
func (s *SpotifyService) Playlist(ctx context.Context, playlistID string) (*SpotifyPlaylist, error) {
	endpoint := fmt.Sprintf("/playlists/%s?fields=id,name,description,owner,public,tracks.total,uri", url.PathEscape(playlistID))

	var playlist SpotifyPlaylist
	if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &playlist); err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
		}
		return nil, err
	}
	return &playlist, nil
}

// PlaylistItems retrieves every item of a playlist.
func (s *SpotifyService) PlaylistItems(ctx context.Context, playlistID string) ([]SpotifyPlaylistTrack, error) {
	endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=100", url.PathEscape(playlistID))
	return collectPages[SpotifyPlaylistTrack](ctx, s, endpoint)
}

// GetPlaylists lists the user's playlists: all of them with a user token, otherwise the
// public playlists of the configured username.
func (s *SpotifyService) GetPlaylists(ctx context.Context) ([]models.Playlist, error) {
	_, appOnly := s.client()

	var endpoint string
	switch {
	case !appOnly:
		endpoint = fmt.Sprintf("/me/playlists?limit=%d", pageLimit)
	case s.username != "":
		endpoint = fmt.Sprintf("/users/%s/playlists?limit=%d", url.PathEscape(s.username), pageLimit)
	default:
		return nil, fmt.Errorf("%w: username is required without a user token", shared.ErrMissingCredentials)
	}

	items, err := collectPages[SpotifyPlaylist](ctx, s, endpoint)
	if err != nil {
		return nil, err
	}

	playlists := make([]models.Playlist, 0, len(items))
	for _, sp := range items {
		playlists = append(playlists, toPlaylist(sp))
	}
	return playlists, nil
}

// GetPlaylist retrieves a specific playlist by ID.
func (s *SpotifyService) GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	sp, err := s.Playlist(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	p := toPlaylist(*sp)
	return &p, nil
}

// ExportPlaylist retrieves a playlist with all its items. Items without a track ID are counted in Skipped.
func (s *SpotifyService) ExportPlaylist(ctx context.Context, playlistID string) (*models.PlaylistExport, error) {
	sp, err := s.Playlist(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	items, err := s.PlaylistItems(ctx, playlistID)
	if err != nil {
		return nil, err
	}

	export := &models.PlaylistExport{Playlist: toPlaylist(*sp)}
	for _, item := range items {
		if item.Track == nil || item.Track.ID == "" || item.Track.IsLocal {
			export.Skipped++
			continue
		}
		export.Tracks = append(export.Tracks, toCatalogTrack(*item.Track))
	}
	return export, nil
}

// AudioFeatures fetches audio features in batches of 100. Tracks Spotify has no analysis for are left out.
func (s *SpotifyService) AudioFeatures(ctx context.Context, trackIDs []string) (map[string]models.AudioFeatures, error) {
	features := make(map[string]models.AudioFeatures, len(trackIDs))

	for start := 0; start < len(trackIDs); start += audioFeaturesBatch {
		batch := trackIDs[start:min(start+audioFeaturesBatch, len(trackIDs))]
		endpoint := "/audio-features?ids=" + url.QueryEscape(strings.Join(batch, ","))

		var response struct {
			AudioFeatures []*SpotifyAudioFeatures `json:"audio_features"`
		}
		if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
			return nil, err
		}

		for _, f := range response.AudioFeatures {
			if f == nil || f.ID == "" {
				continue
			}
			features[f.ID] = models.AudioFeatures{
				TrackID: f.ID,
				Key:     f.Key,
				Mode:    f.Mode,
				Tempo:   f.Tempo,
				Valence: f.Valence,
				Energy:  f.Energy,
			}
		}
	}

	return features, nil
}

// CreatePlaylist creates an empty playlist owned by userID.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, userID, name, description string, public bool) (*SpotifyPlaylist, error) {
	body := map[string]any{"name": name, "description": description, "public": public}

	var playlist SpotifyPlaylist
	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(userID))
	if err := s.doRequest(ctx, http.MethodPost, endpoint, body, &playlist); err != nil {
		return nil, err
	}
	return &playlist, nil
}

// AddTracks appends tracks to a playlist in batches of 100, keeping their order.
func (s *SpotifyService) AddTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))

	for start := 0; start < len(trackIDs); start += addTracksBatch {
		batch := trackIDs[start:min(start+addTracksBatch, len(trackIDs))]
		uris := make([]string, len(batch))
		for i, id := range batch {
			uris[i] = "spotify:track:" + id
		}
		if err := s.doRequest(ctx, http.MethodPost, endpoint, map[string]any{"uris": uris}, nil); err != nil {
			return fmt.Errorf("failed to add tracks %d-%d: %w", start, start+len(batch), err)
		}
	}
	return nil
}

// ImportPlaylist creates a playlist for the authenticated user holding the tracks of playlist in order.
func (s *SpotifyService) ImportPlaylist(ctx context.Context, playlist *models.PlaylistExport) (*models.Playlist, error) {
	if _, appOnly := s.client(); appOnly {
		return nil, fmt.Errorf("%w: publishing requires a user token, run spotify auth", shared.ErrNotAuthenticated)
	}

	user, err := s.UserProfile(ctx)
	if err != nil {
		return nil, err
	}

	created, err := s.CreatePlaylist(ctx, user.ID, playlist.Playlist.Name, playlist.Playlist.Description, playlist.Playlist.Public)
	if err != nil {
		return nil, fmt.Errorf("failed to create playlist: %w", err)
	}

	ids := make([]string, len(playlist.Tracks))
	for i, t := range playlist.Tracks {
		ids[i] = t.ID
	}
	if err := s.AddTracks(ctx, created.ID, ids); err != nil {
		return nil, err
	}

	result := toPlaylist(*created)
	result.TrackCount = len(ids)
	return &result, nil
}

func toPlaylist(sp SpotifyPlaylist) models.Playlist {
	return models.Playlist{
		ID:          sp.ID,
		Name:        sp.Name,
		Description: sp.Description,
		Owner:       sp.Owner.ID,
		TrackCount:  sp.Tracks.Total,
		Public:      sp.Public,
	}
}

func toCatalogTrack(t SpotifyTrack) models.CatalogTrack {
	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, a.Name)
	}
	return models.CatalogTrack{
		ID:         t.ID,
		Name:       t.Name,
		Artists:    artists,
		Album:      t.Album.Name,
		Duration:   t.DurationMS / 1000,
		ISRC:       t.ExternalIDs.ISRC,
		Popularity: t.Popularity,
	}
}
