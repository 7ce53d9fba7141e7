package tasks

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/segue/internal/analysis"
	"github.com/desertthunder/segue/internal/models"
	"github.com/desertthunder/segue/internal/sequencer"
	"github.com/desertthunder/segue/internal/services"
	"github.com/desertthunder/segue/internal/shared"
	"github.com/desertthunder/segue/internal/store"
)

// RearrangedPrefix is prepended to the name of a published playlist.
const RearrangedPrefix = "Rearranged | "

// FeatureCache persists tracks with their audio features between runs.
//
// Cache failures never abort an operation; they are logged and the tracks refetched.
type FeatureCache interface {
	Lookup(ids []string) (map[string]models.Track, error)
	Save(tracks []models.Track) error
}

// RunRecorder keeps a history of rearrange runs.
type RunRecorder interface {
	Begin(sourceID, sourceName string) (*models.Rearrangement, error)
	End(run *models.Rearrangement) error
}

// EngineOpts configures a [PlaylistEngine]. Zero values fall back to defaults.
type EngineOpts struct {
	Weights   analysis.Weights
	Sequencer sequencer.Options
	Cache     FeatureCache // optional
	History   RunRecorder  // optional
	Logger    *log.Logger
	Workers   int     // concurrent playlist fetches (default: 4, max: 10)
	RateLimit float64 // playlist fetches per second (default: 5)
}

// PlaylistEngine fetches playlists, analyses them and publishes rearranged copies.
type PlaylistEngine struct {
	spotify services.Service
	opts    EngineOpts
	logger  *log.Logger
}

// NewPlaylistEngine creates a new PlaylistEngine backed by the given service.
func NewPlaylistEngine(spotify services.Service, opts EngineOpts) *PlaylistEngine {
	if opts.Weights == (analysis.Weights{}) {
		opts.Weights = analysis.DefaultWeights()
	}
	if opts.Sequencer.Candidates <= 0 {
		opts.Sequencer.Candidates = sequencer.DefaultCandidates
	}
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &PlaylistEngine{
		spotify: spotify,
		opts:    opts,
		logger:  shared.WithLogger(logger, "component", "engine"),
	}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *PlaylistEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// ResolvePlaylist exports a playlist by ID, falling back to a lookup by name.
func (e *PlaylistEngine) ResolvePlaylist(ctx context.Context, idOrName string) (*models.PlaylistExport, error) {
	if e.spotify == nil {
		return nil, fmt.Errorf("%w: Spotify service not initialized", shared.ErrServiceUnavailable)
	}

	export, err := e.spotify.ExportPlaylist(ctx, idOrName)
	if err == nil {
		return export, nil
	}
	e.logger.Debug("export by id failed, trying name", "playlist", idOrName, "error", err)

	selected, selErr := e.SelectPlaylists(ctx, []string{idOrName}, false)
	if selErr != nil {
		return nil, selErr
	}

	export, err = e.spotify.ExportPlaylist(ctx, selected[0].ID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to export playlist: %v", shared.ErrAPIRequest, err)
	}
	return export, nil
}

// SelectPlaylists picks playlists by name from the visible ones, or every playlist when all is set.
//
// Names are matched exactly and returned in the order asked for.
func (e *PlaylistEngine) SelectPlaylists(ctx context.Context, names []string, all bool) ([]models.Playlist, error) {
	if e.spotify == nil {
		return nil, fmt.Errorf("%w: Spotify service not initialized", shared.ErrServiceUnavailable)
	}
	if !all && len(names) == 0 {
		return nil, fmt.Errorf("%w: playlist name or --all", shared.ErrMissingArgument)
	}

	playlists, err := e.spotify.GetPlaylists(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get playlists: %v", shared.ErrAPIRequest, err)
	}
	if all {
		return playlists, nil
	}

	selected := make([]models.Playlist, 0, len(names))
	for _, name := range names {
		i := slices.IndexFunc(playlists, func(pl models.Playlist) bool { return pl.Name == name })
		if i < 0 {
			return nil, fmt.Errorf("%w: no playlist found with name '%s'", shared.ErrPlaylistNotFound, name)
		}
		selected = append(selected, playlists[i])
	}
	return selected, nil
}

// Analysis is the outcome of comparing every pair in a collection.
type Analysis struct {
	Result *analysis.Result
	Report analysis.Report
}

// Analyze compares every pair of tracks in s.
//
// When nothing comparable remains the partial analysis (duplicates, undetectable tracks) is
// returned together with [shared.ErrEmptyComparisonSet].
func (e *PlaylistEngine) Analyze(progress chan<- ProgressUpdate, s *store.Store) (*Analysis, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil store", shared.ErrInvalidArgument)
	}
	e.sendProgress(progress, analyzeUpdate(s.Len()))

	metric := analysis.NewMetric(s, e.opts.Weights)
	res, err := analysis.Analyze(metric, s.IDs())
	if res == nil {
		return nil, err
	}

	out := &Analysis{Result: res, Report: res.Report(s)}
	e.logger.Info("analysed tracks",
		"tracks", s.Len(),
		"pairs", len(res.Pairs),
		"duplicates", len(out.Report.Duplicates),
		"undetectable", len(res.Undetectable),
	)
	return out, err
}

// RearrangeOpts controls a [PlaylistEngine.Rearrange] run.
type RearrangeOpts struct {
	Source  models.Playlist // playlist the tracks came from, used for naming and history
	Publish bool            // create the rearranged playlist on Spotify
	Name    string          // name of the published playlist, RearrangedPrefix + source name when empty
	Skipped int             // tracks dropped before the store, recorded in history
}

// RearrangeResult contains everything produced by a rearrange run.
type RearrangeResult struct {
	Source    models.Playlist
	Analysis  *Analysis
	Sequence  *sequencer.Result
	Tracks    []models.Track   // tracks in their new order
	Published *models.Playlist // nil unless published
	Run       *models.Rearrangement
}

// Rearrange analyses s, sequences it and optionally publishes the new order.
//
// A collection with nothing comparable keeps its input order.
func (e *PlaylistEngine) Rearrange(ctx context.Context, progress chan<- ProgressUpdate, s *store.Store, opts RearrangeOpts) (result *RearrangeResult, err error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil store", shared.ErrInvalidArgument)
	}

	run := e.beginRun(opts.Source)
	defer func() {
		e.endRun(run, result, opts.Skipped, err)
	}()

	result = &RearrangeResult{Source: opts.Source, Run: run}

	an, err := e.Analyze(progress, s)
	switch {
	case errors.Is(err, shared.ErrEmptyComparisonSet):
		e.logger.Warn("nothing to compare, keeping input order", "error", err)
		if an == nil {
			an = &Analysis{Result: &analysis.Result{}}
		}
	case err != nil:
		return nil, err
	}
	result.Analysis = an

	e.sendProgress(progress, sequenceUpdate(min(e.opts.Sequencer.Candidates, len(an.Result.Pairs))))
	metric := analysis.NewMetric(s, e.opts.Weights)
	seq, err := sequencer.Sequence(metric, s.IDs(), an.Result.Pairs, e.opts.Sequencer)
	if err != nil {
		return nil, fmt.Errorf("failed to sequence tracks: %w", err)
	}
	result.Sequence = seq
	e.logger.Info("sequenced tracks",
		"improved", seq.Improved,
		"input_score", seq.InputScore,
		"score", seq.Score,
		"candidate", seq.Chosen,
	)

	result.Tracks = make([]models.Track, 0, len(seq.Order))
	for _, id := range seq.Order {
		track, _ := s.Get(id)
		result.Tracks = append(result.Tracks, track)
	}

	if !opts.Publish {
		return result, nil
	}

	published, err := e.publish(ctx, progress, opts, result.Tracks)
	if err != nil {
		return result, err
	}
	result.Published = published
	return result, nil
}

func (e *PlaylistEngine) publish(ctx context.Context, progress chan<- ProgressUpdate, opts RearrangeOpts, tracks []models.Track) (*models.Playlist, error) {
	if e.spotify == nil {
		return nil, fmt.Errorf("%w: Spotify service not initialized", shared.ErrServiceUnavailable)
	}

	name := opts.Name
	if name == "" {
		name = RearrangedPrefix + opts.Source.Name
	}
	e.sendProgress(progress, createDestinationUpdate(name))

	export := &models.PlaylistExport{
		Playlist: models.Playlist{
			Name:        name,
			Description: fmt.Sprintf("Smoothed ordering of %s", opts.Source.Name),
			Public:      false,
		},
		Tracks: make([]models.CatalogTrack, len(tracks)),
	}
	for i, t := range tracks {
		export.Tracks[i] = models.CatalogTrack{ID: t.ID, Name: t.Name, Artists: t.Artists, Album: t.Album, Popularity: t.Popularity}
	}

	created, err := e.spotify.ImportPlaylist(ctx, export)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create playlist: %v", shared.ErrAPIRequest, err)
	}
	e.sendProgress(progress, createPlaylistUpdate(created))
	return created, nil
}

func (e *PlaylistEngine) beginRun(source models.Playlist) *models.Rearrangement {
	if e.opts.History == nil {
		return nil
	}
	id := source.ID
	if id == "" {
		id = "local"
	}
	run, err := e.opts.History.Begin(id, source.Name)
	if err != nil {
		e.logger.Warn("failed to record run", "error", err)
		return nil
	}
	return run
}

func (e *PlaylistEngine) endRun(run *models.Rearrangement, result *RearrangeResult, skipped int, runErr error) {
	if run == nil {
		return
	}

	if result != nil {
		duplicates := 0
		if result.Analysis != nil {
			duplicates = len(result.Analysis.Result.Duplicates)
		}
		run.SetCounts(len(result.Tracks), skipped, duplicates)
		if result.Sequence != nil {
			run.SetScores(finite(result.Sequence.InputScore), finite(result.Sequence.Score))
		}
		if result.Published != nil {
			run.SetTargetPlaylistID(result.Published.ID)
		}
	}

	if runErr != nil {
		run.Fail(runErr)
	} else {
		run.Complete()
	}

	if err := e.opts.History.End(run); err != nil {
		e.logger.Warn("failed to record run", "run", run.ID(), "error", err)
	}
}

// finite maps the +Inf score of an order without comparable neighbours to 0 for storage.
func finite(v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0
	}
	return v
}
