package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/segue/internal/models"
	"github.com/desertthunder/segue/internal/shared"
	"github.com/desertthunder/segue/internal/store"
	"golang.org/x/time/rate"
)

const (
	defaultWorkers   = 4
	maxWorkers       = 10
	defaultRateLimit = 5.0
)

// PlaylistFailure is a playlist that could not be fetched.
type PlaylistFailure struct {
	PlaylistID string
	Error      error
}

// Collection is the track store built from one or more playlists.
type Collection struct {
	Playlists   []models.Playlist // fetched playlists, in the order asked for
	Store       *store.Store
	Skipped     []store.Skipped   // tracks without usable audio features
	Unavailable int               // playlist items without a track id, such as local files
	Cached      int               // tracks whose features came from the cache
	Failures    []PlaylistFailure // playlists that could not be fetched
}

// Source describes the collection as a single playlist for naming and history.
func (c *Collection) Source() models.Playlist {
	switch len(c.Playlists) {
	case 0:
		return models.Playlist{}
	case 1:
		return c.Playlists[0]
	}
	names := c.Playlists[0].Name
	for _, pl := range c.Playlists[1:] {
		names += ", " + pl.Name
	}
	return models.Playlist{ID: c.Playlists[0].ID, Name: names, TrackCount: c.Store.Len()}
}

type fetchJob struct {
	index      int
	playlistID string
}

type fetchResult struct {
	index      int
	playlistID string
	export     *models.PlaylistExport
	err        error
}

// Collect fetches the given playlists concurrently and builds a store of their tracks.
//
// Tracks are kept in playlist order and then item order; a track appearing in several playlists
// is kept once. Playlists that fail are reported in [Collection.Failures]; Collect only fails
// when none could be fetched.
func (e *PlaylistEngine) Collect(ctx context.Context, progress chan<- ProgressUpdate, playlistIDs []string) (*Collection, error) {
	if e.spotify == nil {
		return nil, fmt.Errorf("%w: Spotify service not initialized", shared.ErrServiceUnavailable)
	}
	if len(playlistIDs) == 0 {
		return nil, fmt.Errorf("%w: no playlists to collect", shared.ErrMissingArgument)
	}

	exports, failures := e.fetchPlaylists(ctx, progress, playlistIDs)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(exports) == 0 {
		return nil, fmt.Errorf("%w: failed to fetch any playlist: %v", shared.ErrAPIRequest, failures[0].Error)
	}

	c := &Collection{Failures: failures}
	var catalog []models.CatalogTrack
	seen := make(map[string]bool)
	for _, export := range exports {
		c.Playlists = append(c.Playlists, export.Playlist)
		c.Unavailable += export.Skipped
		for _, t := range export.Tracks {
			if seen[t.ID] {
				continue
			}
			seen[t.ID] = true
			catalog = append(catalog, t)
		}
	}

	records, cached, err := e.records(ctx, progress, catalog)
	if err != nil {
		return nil, err
	}
	c.Cached = cached

	c.Store, c.Skipped = store.Load(records)
	for _, s := range c.Skipped {
		e.logger.Warn("skipping track", "track", s.TrackID, "error", s.Err)
	}
	e.sendProgress(progress, buildStoreUpdate(c.Store.Len(), len(c.Skipped)))
	return c, nil
}

// LoadCollection builds a collection from records read from a file.
func (e *PlaylistEngine) LoadCollection(name string, records []store.Record) *Collection {
	s, skipped := store.Load(records)
	for _, sk := range skipped {
		e.logger.Warn("skipping track", "track", sk.TrackID, "error", sk.Err)
	}
	return &Collection{
		Playlists: []models.Playlist{{Name: name, TrackCount: s.Len()}},
		Store:     s,
		Skipped:   skipped,
	}
}

// fetchPlaylists runs a bounded worker pool of playlist exports and returns the successful
// exports in input order.
func (e *PlaylistEngine) fetchPlaylists(ctx context.Context, progress chan<- ProgressUpdate, ids []string) ([]*models.PlaylistExport, []PlaylistFailure) {
	workers := e.opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	workers = min(workers, maxWorkers, len(ids))
	limit := e.opts.RateLimit
	if limit <= 0 {
		limit = defaultRateLimit
	}
	limiter := rate.NewLimiter(rate.Limit(limit), 1)

	jobs := make(chan fetchJob, len(ids))
	results := make(chan fetchResult, len(ids))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go e.fetchWorker(ctx, &wg, limiter, jobs, results)
	}

	for i, id := range ids {
		jobs <- fetchJob{index: i, playlistID: id}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	ordered := make([]*models.PlaylistExport, len(ids))
	var failures []PlaylistFailure
	completed := 0
	for res := range results {
		completed++
		if res.err != nil {
			failures = append(failures, PlaylistFailure{PlaylistID: res.playlistID, Error: res.err})
			e.logger.Warn("failed to fetch playlist", "playlist", res.playlistID, "error", res.err)
			e.sendProgress(progress, playlistFailedUpdate(completed, len(ids), res.playlistID, res.err))
			continue
		}
		ordered[res.index] = res.export
		e.sendProgress(progress, foundPlaylistUpdate(completed, len(ids), res.export))
	}

	exports := make([]*models.PlaylistExport, 0, len(ids))
	for _, export := range ordered {
		if export != nil {
			exports = append(exports, export)
		}
	}
	return exports, failures
}

// fetchWorker exports playlists from the jobs channel until it is drained or ctx is done.
func (e *PlaylistEngine) fetchWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	limiter *rate.Limiter,
	jobs <-chan fetchJob,
	results chan<- fetchResult,
) {
	defer wg.Done()

	for job := range jobs {
		res := fetchResult{index: job.index, playlistID: job.playlistID}
		if err := limiter.Wait(ctx); err != nil {
			res.err = err
			results <- res
			continue
		}
		res.export, res.err = e.spotify.ExportPlaylist(ctx, job.playlistID)
		results <- res
	}
}

// records joins catalog tracks with their audio features, reading the cache first and
// storing whatever had to be fetched.
func (e *PlaylistEngine) records(ctx context.Context, progress chan<- ProgressUpdate, catalog []models.CatalogTrack) ([]store.Record, int, error) {
	ids := make([]string, len(catalog))
	for i, t := range catalog {
		ids[i] = t.ID
	}

	cached := e.lookupCache(ids)

	var missing []string
	for _, id := range ids {
		if _, ok := cached[id]; !ok {
			missing = append(missing, id)
		}
	}
	e.sendProgress(progress, fetchFeaturesUpdate(len(cached), len(missing)))

	features := map[string]models.AudioFeatures{}
	if len(missing) > 0 {
		var err error
		features, err = e.spotify.AudioFeatures(ctx, missing)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to fetch audio features: %w", err)
		}
	}

	records := make([]store.Record, 0, len(catalog))
	var fresh []models.Track
	for _, t := range catalog {
		if track, ok := cached[t.ID]; ok {
			track.Popularity = t.Popularity
			records = append(records, store.FromModel(track))
			continue
		}

		var f *models.AudioFeatures
		if feat, ok := features[t.ID]; ok {
			f = &feat
		}
		r := store.FromTrack(t, f)
		records = append(records, r)
		if track, err := r.Track(); err == nil {
			fresh = append(fresh, track)
		}
	}

	e.saveCache(fresh)
	return records, len(cached), nil
}

func (e *PlaylistEngine) lookupCache(ids []string) map[string]models.Track {
	if e.opts.Cache == nil {
		return map[string]models.Track{}
	}
	cached, err := e.opts.Cache.Lookup(ids)
	if err != nil {
		e.logger.Warn("feature cache lookup failed", "error", err)
		return map[string]models.Track{}
	}
	return cached
}

func (e *PlaylistEngine) saveCache(tracks []models.Track) {
	if e.opts.Cache == nil || len(tracks) == 0 {
		return
	}
	if err := e.opts.Cache.Save(tracks); err != nil {
		e.logger.Warn("failed to cache audio features", "error", err)
	}
}
