package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/desertthunder/segue/internal/models"
	"github.com/desertthunder/segue/internal/server"
	"github.com/desertthunder/segue/internal/services"
	"github.com/desertthunder/segue/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const authTimeout = 2 * time.Minute

// SpotifyAuth performs the OAuth2 authorization code flow and stores the tokens in the config file.
func (r *Runner) SpotifyAuth(ctx context.Context, cmd *cli.Command) error {
	oauthSvc, ok := r.spotify.(services.OAuthService)
	if !ok || r.spotify == nil {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set in %s", shared.ErrInvalidArgument, r.configName())
	}

	token, err := r.doOAuth(ctx, oauthSvc, "authorization")
	if err != nil {
		return err
	}

	if err := r.saveTokens(token); err != nil {
		return err
	}
	if err := oauthSvc.OAuthenticate(ctx, token); err != nil {
		return err
	}
	r.mu.Lock()
	r.authed = true
	r.mu.Unlock()

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Tokens saved to %s\n\n", r.configName())
	r.writePlain("You can now use: segue spotify playlists\n")
	return nil
}

// SpotifyPlaylists lists the playlists visible to the configured user.
func (r *Runner) SpotifyPlaylists(ctx context.Context, cmd *cli.Command) error {
	limit := int(cmd.Int("limit"))

	var playlists []models.Playlist
	err := r.withReauth(ctx, func() error {
		var err error
		playlists, err = r.spotify.GetPlaylists(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	if limit > 0 && limit < len(playlists) {
		playlists = playlists[:limit]
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, cmd.Bool("pretty"))
	}

	r.writeHeader(fmt.Sprintf("%d playlists", len(playlists)))
	rows := make([][]string, len(playlists))
	for i, p := range playlists {
		rows[i] = []string{strconv.Itoa(i + 1), p.Name, p.ID, strconv.Itoa(p.TrackCount), shared.VisibilityString(p.Public)}
	}
	r.writeTable([]string{"#", "Name", "ID", "Tracks", "Visibility"}, rows, 0, 3)
	return nil
}

// SpotifyExport writes a playlist with all its items to JSON.
func (r *Runner) SpotifyExport(ctx context.Context, cmd *cli.Command) error {
	playlistID := cmd.String("id")
	if playlistID == "" {
		return fmt.Errorf("%w: --id flag is required", shared.ErrMissingArgument)
	}

	r.logger.Info("exporting spotify playlist", "id", playlistID)

	engine := r.playlistEngine()
	var export *models.PlaylistExport
	err := r.withReauth(ctx, func() error {
		var err error
		export, err = engine.ResolvePlaylist(ctx, playlistID)
		return err
	})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(export, cmd.Bool("pretty"))
	}

	outputFile := cmd.String("output")
	if outputFile == "" {
		outputFile = fmt.Sprintf("spotify_%s.json", export.Playlist.ID)
	}

	data, err := shared.MarshalJSON(export, true)
	if err != nil {
		return fmt.Errorf("failed to marshal export: %w", err)
	}
	if err := os.WriteFile(outputFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	r.logger.Info("playlist exported", "file", outputFile, "tracks", len(export.Tracks))
	r.writePlain("✓ Playlist exported to %s\n", outputFile)
	r.writePlain("  Playlist: %s\n", export.Playlist.Name)
	r.writePlain("  Tracks: %d\n", len(export.Tracks))
	if export.Skipped > 0 {
		r.writePlain("  Skipped: %d (local files or unavailable)\n", export.Skipped)
	}
	return nil
}

// withReauth authenticates the service, runs fn and, when the stored token can no longer be
// refreshed, runs the authorization flow once and retries.
func (r *Runner) withReauth(ctx context.Context, fn func() error) error {
	if err := r.ensureSpotify(ctx); err != nil {
		return err
	}

	err := fn()
	if !errors.Is(err, shared.ErrTokenExpired) {
		return err
	}

	oauthSvc, ok := r.spotify.(services.OAuthService)
	if !ok {
		return err
	}

	r.writePlainln("⚠ Authentication token expired. Starting reauthorization...")
	token, authErr := r.doOAuth(ctx, oauthSvc, "reauthorization")
	if authErr != nil {
		return fmt.Errorf("reauthorization failed: %w", authErr)
	}
	if err := r.saveTokens(token); err != nil {
		return err
	}
	if err := oauthSvc.OAuthenticate(ctx, token); err != nil {
		return fmt.Errorf("failed to authenticate with new tokens: %w", err)
	}

	r.writePlain("✓ Reauthenticated. Retrying...\n\n")
	return fn()
}

// doOAuth runs the authorization code flow through a local callback server.
func (r *Runner) doOAuth(ctx context.Context, oauthSvc services.OAuthService, purpose string) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	handler := server.NewOAuthHandler(oauthSvc.GetOAuthConfig(), state)
	addr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	srv, err := server.NewCallbackServer(addr, handler, r.logger)
	if err != nil {
		return nil, err
	}
	r.logger.Info("waiting for OAuth callback", "purpose", purpose, "addr", srv.Addr())

	authURL := oauthSvc.GetAuthURL(state)
	r.writePlain("→ Opening browser for Spotify %s...\n", purpose)
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warn("failed to open browser automatically", "error", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (%s timeout)...\n", authTimeout)
	return srv.Wait(ctx, authTimeout)
}

// spotifyCommand handles Spotify operations
func spotifyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "spotify",
		Aliases: []string{"spot"},
		Usage:   "Spotify account and playlist operations",
		Commands: []*cli.Command{
			{
				Name:   "auth",
				Usage:  "Authorize segue to read and create your playlists",
				Action: r.SpotifyAuth,
			},
			{
				Name:  "playlists",
				Usage: "List playlists (your own with a user token, else the configured username's public ones)",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of playlists to show",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print JSON output",
					},
				},
				Action: r.SpotifyPlaylists,
			},
			{
				Name:  "export",
				Usage: "Export a playlist and its items to JSON",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Playlist ID or name",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path (default: spotify_<id>.json)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print JSON instead of writing a file",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print JSON output",
						Value: true,
					},
				},
				Action: r.SpotifyExport,
			},
		},
	}
}
