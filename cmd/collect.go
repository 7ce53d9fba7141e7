package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/desertthunder/segue/internal/shared"
	"github.com/desertthunder/segue/internal/store"
	"github.com/desertthunder/segue/internal/tasks"
	"github.com/urfave/cli/v3"
)

// sourceFlags select the tracks a command works on.
func sourceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "playlist",
			Aliases: []string{"p"},
			Usage:   "Playlist name, repeatable or comma separated",
		},
		&cli.StringSliceFlag{
			Name:  "id",
			Usage: "Playlist ID, repeatable or comma separated",
		},
		&cli.BoolFlag{
			Name:  "all",
			Usage: "Use every visible playlist",
		},
		&cli.StringFlag{
			Name:    "input",
			Aliases: []string{"i"},
			Usage:   "Read tracks from a JSON file instead of Spotify",
		},
	}
}

// startProgress prints engine progress until stop is called. Quiet runs get a nil channel.
func (r *Runner) startProgress(quiet bool) (chan tasks.ProgressUpdate, func()) {
	if quiet {
		return nil, func() {}
	}

	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for update := range progress {
			switch update.Phase {
			case tasks.FetchPlaylists, tasks.FetchSource:
				r.writePlain("📥 %s\n", update.Message)
			case tasks.FetchFeatures:
				r.writePlain("🎚  %s\n", update.Message)
			case tasks.BuildStore:
				r.writePlain("📦 %s\n", update.Message)
			case tasks.Analyze, tasks.Sequence:
				r.writePlain("🔍 %s\n", update.Message)
			case tasks.CreatePlaylist:
				r.writePlain("📝 %s\n", update.Message)
			}
		}
	}()

	return progress, func() {
		close(progress)
		<-done
	}
}

// collect builds the track collection named by the source flags.
func (r *Runner) collect(ctx context.Context, cmd *cli.Command, progress chan<- tasks.ProgressUpdate) (*tasks.Collection, error) {
	engine := r.playlistEngine()

	if input := cmd.String("input"); input != "" {
		f, err := os.Open(input)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
		}
		defer f.Close()

		records, err := store.ReadRecords(f)
		if err != nil {
			return nil, err
		}
		r.logger.Info("loaded tracks from file", "file", input, "records", len(records))
		return engine.LoadCollection(filepath.Base(input), records), nil
	}

	names := splitAll(cmd.StringSlice("playlist"))
	ids := splitAll(cmd.StringSlice("id"))
	all := cmd.Bool("all")
	if len(names) == 0 && len(ids) == 0 && !all {
		return nil, fmt.Errorf("%w: --playlist, --id, --all or --input", shared.ErrMissingArgument)
	}

	var c *tasks.Collection
	err := r.withReauth(ctx, func() error {
		targets := ids
		if len(names) > 0 || all {
			selected, err := engine.SelectPlaylists(ctx, names, all)
			if err != nil {
				return err
			}
			for _, pl := range selected {
				targets = append(targets, pl.ID)
			}
		}

		var err error
		c, err = engine.Collect(ctx, progress, targets)
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, f := range c.Failures {
		r.logger.Warn("playlist skipped", "playlist", f.PlaylistID, "error", f.Error)
	}
	if c.Unavailable > 0 {
		r.logger.Warn("items without a track id were left out", "count", c.Unavailable)
	}
	return c, nil
}

func splitAll(values []string) []string {
	var out []string
	for _, v := range values {
		out = append(out, shared.SplitList(v)...)
	}
	return out
}
