package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/desertthunder/segue/internal/models"
	"github.com/desertthunder/segue/internal/repositories"
	"github.com/desertthunder/segue/internal/shared"
	"github.com/urfave/cli/v3"
)

type runView struct {
	ID          string     `json:"id"`
	Source      string     `json:"source"`
	SourceID    string     `json:"source_id"`
	Target      string     `json:"target_id,omitempty"`
	Status      string     `json:"status"`
	Tracks      int        `json:"tracks"`
	Skipped     int        `json:"skipped"`
	Duplicates  int        `json:"duplicates"`
	InputScore  float64    `json:"input_score"`
	FinalScore  float64    `json:"final_score"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func newRunView(run *models.Rearrangement) runView {
	return runView{
		ID:          run.ID(),
		Source:      run.SourcePlaylistName(),
		SourceID:    run.SourcePlaylistID(),
		Target:      run.TargetPlaylistID(),
		Status:      string(run.Status()),
		Tracks:      run.TracksTotal(),
		Skipped:     run.TracksSkipped(),
		Duplicates:  run.Duplicates(),
		InputScore:  run.InputScore(),
		FinalScore:  run.FinalScore(),
		Error:       run.ErrorMessage(),
		StartedAt:   run.StartedAt(),
		CompletedAt: run.CompletedAt(),
	}
}

func (r *Runner) runs() (*repositories.RearrangementRepository, error) {
	db, err := r.database()
	if err != nil {
		return nil, fmt.Errorf("history unavailable: %w", err)
	}
	return repositories.NewRearrangementRepository(db), nil
}

// HistoryList prints recorded rearrange runs, newest first.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	repo, err := r.runs()
	if err != nil {
		return err
	}

	runs, err := repo.List(map[string]any{
		"status":             cmd.String("status"),
		"source_playlist_id": cmd.String("source"),
		"limit":              int(cmd.Int("limit")),
	})
	if err != nil {
		return err
	}

	views := make([]runView, len(runs))
	for i, run := range runs {
		views[i] = newRunView(run)
	}

	if cmd.Bool("json") {
		return r.writeJSON(views, cmd.Bool("pretty"))
	}

	if len(views) == 0 {
		r.writePlainln("No runs recorded yet")
		return nil
	}

	rows := make([][]string, len(views))
	for i, v := range views {
		rows[i] = []string{
			v.StartedAt.Local().Format("2006-01-02 15:04"),
			v.Source,
			v.Status,
			strconv.Itoa(v.Tracks),
			fmt.Sprintf("%.3f", v.InputScore),
			fmt.Sprintf("%.3f", v.FinalScore),
			v.ID,
		}
	}
	r.writeHeader(fmt.Sprintf("%d runs", len(views)))
	r.writeTable([]string{"Started", "Source", "Status", "Tracks", "Input", "Final", "ID"}, rows, 3, 4, 5)
	return nil
}

// HistoryShow prints a single run.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.String("id")
	if id == "" {
		return fmt.Errorf("%w: --id flag is required", shared.ErrMissingArgument)
	}

	repo, err := r.runs()
	if err != nil {
		return err
	}
	run, err := repo.Get(id)
	if err != nil {
		return err
	}

	v := newRunView(run)
	if cmd.Bool("json") {
		return r.writeJSON(v, true)
	}

	r.writeHeader(v.Source)
	r.writePlain("ID:          %s\n", v.ID)
	r.writePlain("Status:      %s\n", v.Status)
	r.writePlain("Tracks:      %d (%d skipped, %d duplicate groups)\n", v.Tracks, v.Skipped, v.Duplicates)
	r.writePlain("Input score: %.3f\n", v.InputScore)
	r.writePlain("Final score: %.3f\n", v.FinalScore)
	if v.Target != "" {
		r.writePlain("Published:   %s\n", v.Target)
	}
	if v.Error != "" {
		r.writePlain("Error:       %s\n", v.Error)
	}
	return nil
}

func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show recorded rearrange runs",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List runs, newest first",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs to show",
						Value: 20,
					},
					&cli.StringFlag{
						Name:  "status",
						Usage: "Only runs with this status (pending, completed, failed)",
					},
					&cli.StringFlag{
						Name:  "source",
						Usage: "Only runs of this source playlist ID",
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
				Action: r.HistoryList,
			},
			{
				Name:  "show",
				Usage: "Show one run",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Run ID",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HistoryShow,
			},
		},
	}
}
