package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/segue/internal/repositories"
	"github.com/desertthunder/segue/internal/shared"
	"github.com/desertthunder/segue/internal/store"
	"github.com/urfave/cli/v3"
)

// CachePlaylist fetches playlists and their audio features so later runs can skip the feature lookups.
func (r *Runner) CachePlaylist(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.database(); err != nil {
		return fmt.Errorf("cache unavailable: %w", err)
	}

	progress, stop := r.startProgress(false)
	c, err := r.collect(ctx, cmd, progress)
	stop()
	if err != nil {
		return err
	}

	r.logger.Info("cached playlist tracks", "tracks", c.Store.Len(), "hits", c.Cached)

	r.writePlain("✓ %d tracks cached\n", c.Store.Len())
	r.writePlain("  Already cached: %d\n", c.Cached)
	r.writePlain("  Fetched: %d\n", c.Store.Len()-c.Cached)
	if len(c.Skipped) > 0 {
		r.writePlain("  Without audio features: %d\n", len(c.Skipped))
	}
	return nil
}

// CacheStats prints how many tracks the cache holds.
func (r *Runner) CacheStats(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database()
	if err != nil {
		return fmt.Errorf("cache unavailable: %w", err)
	}

	n, err := repositories.NewTrackRepository(db).Count()
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{"path": r.config.Database.Path, "tracks": n}, false)
	}
	r.writePlain("%s: %d cached tracks\n", r.config.Database.Path, n)
	return nil
}

// CacheExport writes every cached track as a JSON record list that `--input` accepts.
func (r *Runner) CacheExport(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database()
	if err != nil {
		return fmt.Errorf("cache unavailable: %w", err)
	}

	cached, err := repositories.NewTrackRepository(db).List(map[string]any{"service": "spotify"})
	if err != nil {
		return err
	}

	records := make([]store.Record, len(cached))
	for i, t := range cached {
		records[i] = store.FromModel(t.Track())
	}

	output := cmd.String("output")
	if output == "" {
		return r.writeJSON(records, cmd.Bool("pretty"))
	}

	data, err := shared.MarshalJSON(records, true)
	if err != nil {
		return fmt.Errorf("failed to marshal tracks: %w", err)
	}
	if err := os.WriteFile(output, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	r.writePlain("✓ %d tracks written to %s\n", len(records), output)
	return nil
}

// cacheCommand handles the local audio feature cache
func cacheCommand(r *Runner) *cli.Command {
	playlistFlags := sourceFlags()[:3]

	return &cli.Command{
		Name:  "cache",
		Usage: "Manage the local audio feature cache",
		Commands: []*cli.Command{
			{
				Name:   "playlist",
				Usage:  "Fetch and cache the audio features of playlists",
				Flags:  playlistFlags,
				Action: r.CachePlaylist,
			},
			{
				Name:  "stats",
				Usage: "Show the number of cached tracks",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.CacheStats,
			},
			{
				Name:  "export",
				Usage: "Write the cached tracks as JSON records",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path (default: stdout)",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print JSON output",
					},
				},
				Action: r.CacheExport,
			},
		},
	}
}
