package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/desertthunder/segue/internal/analysis"
	"github.com/desertthunder/segue/internal/formatter"
	"github.com/desertthunder/segue/internal/models"
	"github.com/desertthunder/segue/internal/shared"
	"github.com/desertthunder/segue/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Rearrange orders the selected tracks so that neighbours are as close as possible, then
// prints, exports and optionally publishes the result.
func (r *Runner) Rearrange(ctx context.Context, cmd *cli.Command) error {
	if n := cmd.Int("candidates"); n > 0 {
		r.config.Sequencer.Candidates = int(n)
	}
	if cmd.Bool("publish") && cmd.String("input") != "" {
		return fmt.Errorf("%w: --publish needs tracks from Spotify, not --input", shared.ErrInvalidArgument)
	}

	progress, stop := r.startProgress(cmd.Bool("json"))
	c, err := r.collect(ctx, cmd, progress)
	if err != nil {
		stop()
		return err
	}

	engine := r.playlistEngine()
	opts := tasks.RearrangeOpts{
		Source:  c.Source(),
		Publish: cmd.Bool("publish"),
		Name:    cmd.String("name"),
		Skipped: len(c.Skipped) + c.Unavailable,
	}

	var result *tasks.RearrangeResult
	rearrange := func() error {
		var err error
		result, err = engine.Rearrange(ctx, progress, c.Store, opts)
		return err
	}
	if opts.Publish {
		err = r.withReauth(ctx, rearrange)
	} else {
		err = rearrange()
	}
	stop()
	if err != nil {
		return err
	}

	rearranged := formatter.NewRearranged(result.Source, result.Tracks, result.Analysis.Report, formatter.Summary{
		InputScore: result.Sequence.InputScore,
		Score:      result.Sequence.Score,
		Improved:   result.Sequence.Improved,
		Skipped:    opts.Skipped,
	})

	chartFiles, err := r.renderCharts(cmd, result.Tracks)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(rearranged, cmd.Bool("pretty"))
	}

	r.writeOrder(result)

	format := cmd.String("format")
	if format == "" && cmd.Bool("export") {
		format = r.config.Output.Format
	}
	if format != "" {
		files, err := formatter.Write(rearranged, format, cmd.String("output"), chartFiles)
		if err != nil {
			return err
		}
		for _, f := range files {
			r.writePlain("✓ Wrote %s\n", f)
		}
	} else {
		for _, f := range chartFiles {
			r.writePlain("✓ Chart written to %s\n", f)
		}
	}

	if result.Published != nil {
		r.writePlain("✓ Created playlist %q (%s)\n", result.Published.Name, result.Published.ID)
	}
	if result.Run != nil {
		r.writePlain("  Run: %s\n", result.Run.ID())
	}
	return nil
}

// writeOrder prints the new order with the distance from each track to the one before it.
func (r *Runner) writeOrder(result *tasks.RearrangeResult) {
	seq := result.Sequence
	weights := analysis.WeightsFromConfig(r.config.Analysis)

	rows := make([][]string, len(result.Tracks))
	for i, t := range result.Tracks {
		step := ""
		if i > 0 {
			step = analysis.Between(result.Tracks[i-1], t, weights).String()
		}
		rows[i] = []string{
			strconv.Itoa(i + 1),
			t.Label(),
			models.Camelot(t.Key, t.Mode),
			strconv.Itoa(t.BPM),
			fmt.Sprintf("%.2f", t.Energy),
			step,
		}
	}

	r.writeHeader(fmt.Sprintf("Rearranged %s", result.Source.Name))
	r.writeTable([]string{"#", "Track", "Camelot", "BPM", "Energy", "Step"}, rows, 0, 3, 4, 5)

	r.writePlain("Input score: %.3f\n", formatter.Finite(seq.InputScore))
	r.writePlain("Score:       %.3f\n", formatter.Finite(seq.Score))
	if seq.Improved {
		r.writePlain("✓ Improved on the input order (candidate %d of %d)\n", seq.Chosen+1, len(seq.Candidates))
	} else {
		r.writePlainln("Input order kept, no candidate beat it")
	}
	if len(result.Analysis.Report.Duplicates) > 0 {
		r.writePlain("⚠ %d duplicate groups, see `segue analyse`\n", len(result.Analysis.Report.Duplicates))
	}
}

func rearrangeCommand(r *Runner) *cli.Command {
	flags := append(sourceFlags(), chartFlags(r)...)
	flags = append(flags,
		&cli.BoolFlag{
			Name:  "publish",
			Usage: "Create the rearranged playlist on Spotify",
		},
		&cli.StringFlag{
			Name:  "name",
			Usage: "Name of the published playlist (default: " + tasks.RearrangedPrefix + "<source>)",
		},
		&cli.BoolFlag{
			Name:  "export",
			Usage: "Export the new order as " + r.config.Output.Format,
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Export format: csv, md, txt or json",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Export path (a directory for md)",
		},
		&cli.IntFlag{
			Name:  "candidates",
			Usage: "Number of closest pairs to try as starting edges",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output the rearranged playlist as JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
		},
	)

	return &cli.Command{
		Name:   "rearrange",
		Usage:  "Reorder a playlist so each track flows into the next",
		Flags:  flags,
		Action: r.Rearrange,
	}
}
