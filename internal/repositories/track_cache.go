package repositories

import (
	"fmt"

	"github.com/desertthunder/segue/internal/models"
)

// TrackCache implements tasks.FeatureCache using TrackRepository.
//
// Tracks are cached per service; saving an already cached track refreshes its attributes.
type TrackCache struct {
	repo    *TrackRepository
	service string
}

// NewTrackCache creates a new TrackCache storing tracks of the named service
func NewTrackCache(repo *TrackRepository, service string) *TrackCache {
	return &TrackCache{repo: repo, service: service}
}

// Lookup returns the cached tracks among ids, keyed by track ID.
func (c *TrackCache) Lookup(ids []string) (map[string]models.Track, error) {
	found, err := c.repo.GetByServiceIDs(c.service, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to look up cached tracks: %w", err)
	}

	tracks := make(map[string]models.Track, len(found))
	for id, pt := range found {
		tracks[id] = pt.Track()
	}
	return tracks, nil
}

// Save caches tracks, stopping at the first failure.
func (c *TrackCache) Save(tracks []models.Track) error {
	for _, t := range tracks {
		if err := c.repo.Upsert(models.NewPersistedTrack(0, c.service, t)); err != nil {
			return fmt.Errorf("failed to cache track %s: %w", t.ID, err)
		}
	}
	return nil
}

// RunHistory implements tasks.RunRecorder using RearrangementRepository.
type RunHistory struct {
	repo *RearrangementRepository
}

// NewRunHistory creates a new RunHistory with the given repository
func NewRunHistory(repo *RearrangementRepository) *RunHistory {
	return &RunHistory{repo: repo}
}

// Begin stores a pending run for the source playlist.
func (h *RunHistory) Begin(sourceID, sourceName string) (*models.Rearrangement, error) {
	run := models.NewRearrangement(0, sourceID, sourceName)
	if err := h.repo.Create(run); err != nil {
		return nil, err
	}
	return run, nil
}

// End stores the final state of run.
func (h *RunHistory) End(run *models.Rearrangement) error {
	return h.repo.Update(run)
}
