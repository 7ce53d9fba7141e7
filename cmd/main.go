package main

import (
	"context"
	"errors"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/segue/internal/services"
	"github.com/desertthunder/segue/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

func main() {
	logger := shared.NewLogger(nil)

	configPath := os.Getenv("SEGUE_CONFIG")
	if configPath == "" {
		configPath = "config.toml"
	}

	config := shared.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		loaded, err := shared.LoadConfig(configPath)
		if err != nil {
			logger.Fatalf("failed to load %s: %v", configPath, err)
		}
		config = loaded
	}

	var spotifyService services.Service
	var spotify *services.SpotifyService
	if config.Credentials.Spotify.ClientID != "" && config.Credentials.Spotify.ClientSecret != "" {
		svc, err := services.NewSpotifyService(config.Credentials.Spotify.Map())
		if err != nil {
			logger.Warn("spotify service unavailable", "error", err)
		} else {
			spotify = svc
			spotifyService = svc
		}
	}

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		Spotify:    spotifyService,
		Logger:     logger,
	})
	defer runner.Close()

	if spotify != nil {
		spotify.SetTokenRefreshCallback(func(token *oauth2.Token) {
			if err := runner.saveTokens(token); err != nil {
				logger.Warn("failed to persist refreshed token", "error", err)
			}
		})
	}

	app := &cli.Command{
		Name:    "segue",
		Usage:   "Reorder playlists so every track flows into the next",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool("verbose") {
				shared.SetLogLevel(logger, log.DebugLevel)
			}
			return ctx, nil
		},
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		if errors.Is(err, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			return
		}
		runner.Close()
		logger.Fatalf("application error: %v", err)
	}
}
