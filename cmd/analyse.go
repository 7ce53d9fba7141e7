package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/desertthunder/segue/internal/analysis"
	"github.com/desertthunder/segue/internal/charts"
	"github.com/desertthunder/segue/internal/formatter"
	"github.com/desertthunder/segue/internal/models"
	"github.com/desertthunder/segue/internal/shared"
	"github.com/urfave/cli/v3"
)

type analysisView struct {
	Source  string          `json:"source"`
	Tracks  int             `json:"tracks"`
	Skipped int             `json:"skipped"`
	Cached  int             `json:"cached"`
	Report  analysis.Report `json:"report"`
	Charts  []string        `json:"charts,omitempty"`
}

// Analyse compares every pair of tracks in the selected playlists and prints the summary report.
func (r *Runner) Analyse(ctx context.Context, cmd *cli.Command) error {
	progress, stop := r.startProgress(cmd.Bool("json"))

	c, err := r.collect(ctx, cmd, progress)
	if err != nil {
		stop()
		return err
	}

	an, err := r.playlistEngine().Analyze(progress, c.Store)
	stop()
	switch {
	case errors.Is(err, shared.ErrEmptyComparisonSet) && an != nil:
		r.logger.Warn("no comparable pairs", "error", err)
	case err != nil:
		return err
	}

	view := analysisView{
		Source:  c.Source().Name,
		Tracks:  c.Store.Len(),
		Skipped: len(c.Skipped) + c.Unavailable,
		Cached:  c.Cached,
		Report:  an.Report,
	}
	view.Report.Min = formatter.Finite(view.Report.Min)
	view.Report.Max = formatter.Finite(view.Report.Max)
	view.Report.Mean = formatter.Finite(view.Report.Mean)

	if view.Charts, err = r.renderCharts(cmd, c.Store.Tracks()); err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(view, cmd.Bool("pretty"))
	}

	r.writeHeader(fmt.Sprintf("Analysis of %s", view.Source))
	r.writeTable(
		[]string{"Tracks", "Skipped", "Cached", "Pairs", "Min", "Max", "Mean"},
		[][]string{{
			strconv.Itoa(view.Tracks),
			strconv.Itoa(view.Skipped),
			strconv.Itoa(view.Cached),
			strconv.Itoa(view.Report.Compared),
			fmt.Sprintf("%.2f", view.Report.Min),
			fmt.Sprintf("%.2f", view.Report.Max),
			fmt.Sprintf("%.2f", view.Report.Mean),
		}},
		0, 1, 2, 3, 4, 5, 6,
	)
	for _, line := range an.Report.Lines() {
		r.writePlain("%s\n", line)
	}
	for _, s := range c.Skipped {
		r.logger.Debug("track skipped", "id", s.TrackID, "error", s.Err)
	}
	for _, f := range view.Charts {
		r.writePlain("✓ Chart written to %s\n", f)
	}
	return nil
}

// renderCharts writes the charts of tracks when --charts or --charts-dir is set.
func (r *Runner) renderCharts(cmd *cli.Command, tracks []models.Track) ([]string, error) {
	dir := cmd.String("charts-dir")
	if dir == "" && cmd.Bool("charts") {
		dir = r.config.Output.ChartsDir
	}
	if dir == "" {
		return nil, nil
	}

	renderer, err := charts.New(dir, cmd.String("chart-format"))
	if err != nil {
		return nil, err
	}
	files, err := renderer.All(tracks)
	if err != nil {
		return nil, fmt.Errorf("failed to render charts: %w", err)
	}
	r.logger.Debug("charts rendered", "dir", renderer.Dir(), "files", len(files))
	return files, nil
}

func chartFlags(r *Runner) []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "charts",
			Usage: "Render popularity, key and valence charts to " + r.config.Output.ChartsDir,
		},
		&cli.StringFlag{
			Name:  "charts-dir",
			Usage: "Render charts to this directory instead",
		},
		&cli.StringFlag{
			Name:  "chart-format",
			Usage: "Chart image format: png, svg or pdf",
			Value: "png",
		},
	}
}

func analyseCommand(r *Runner) *cli.Command {
	flags := append(sourceFlags(), chartFlags(r)...)
	flags = append(flags,
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output the report as JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
		},
	)

	return &cli.Command{
		Name:    "analyse",
		Aliases: []string{"analyze"},
		Usage:   "Report duplicates and how far apart the tracks of one or more playlists are",
		Flags:   flags,
		Action:  r.Analyse,
	}
}
