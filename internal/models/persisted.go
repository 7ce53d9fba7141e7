package models

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// record holds the bookkeeping fields common to persisted entities.
type record struct {
	id        string
	sequence  int
	createdAt time.Time
	updatedAt time.Time
	deletedAt *time.Time
}

func newRecord(sequence int) record {
	now := time.Now()
	return record{sequence: sequence, createdAt: now, updatedAt: now}
}

func (r *record) ID() string                  { return r.id }
func (r *record) SetID(id string)             { r.id = id }
func (r *record) Sequence() int               { return r.sequence }
func (r *record) SetSequence(seq int)         { r.sequence = seq }
func (r *record) CreatedAt() time.Time        { return r.createdAt }
func (r *record) SetCreatedAt(t time.Time)    { r.createdAt = t }
func (r *record) UpdatedAt() time.Time        { return r.updatedAt }
func (r *record) SetUpdatedAt(t time.Time)    { r.updatedAt = t }
func (r *record) DeletedAt() *time.Time       { return r.deletedAt }
func (r *record) SetDeletedAt(t *time.Time)   { r.deletedAt = t }
func (r *record) IsDeleted() bool             { return r.deletedAt != nil }

// PersistedTrack is a cached track with its audio features.
type PersistedTrack struct {
	record
	service   string
	serviceID string
	track     Track
}

// NewPersistedTrack wraps a track fetched from service for caching.
func NewPersistedTrack(sequence int, service string, track Track) *PersistedTrack {
	return &PersistedTrack{
		record:    newRecord(sequence),
		service:   service,
		serviceID: track.ID,
		track:     track,
	}
}

func (t *PersistedTrack) Service() string   { return t.service }
func (t *PersistedTrack) ServiceID() string { return t.serviceID }

// Track returns the cached track value.
func (t *PersistedTrack) Track() Track { return t.track }

// SetTrack replaces the cached attributes, keeping the service identity.
func (t *PersistedTrack) SetTrack(track Track) {
	track.ID = t.serviceID
	t.track = track
}

// Validate checks the cached attributes are in range.
func (t *PersistedTrack) Validate() error {
	switch {
	case t.service == "":
		return fmt.Errorf("service is required")
	case t.serviceID == "":
		return fmt.Errorf("service_id is required")
	case strings.TrimSpace(t.track.Name) == "":
		return fmt.Errorf("name is required")
	case t.track.Key < UndetectableKey || t.track.Key > 11:
		return fmt.Errorf("key %d out of range", t.track.Key)
	case t.track.Mode != 0 && t.track.Mode != 1:
		return fmt.Errorf("mode %d out of range", t.track.Mode)
	case !unit(t.track.Valence) || !unit(t.track.Energy):
		return fmt.Errorf("valence and energy must lie in [0,1]")
	}
	return nil
}

func unit(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

// RearrangementStatus is the lifecycle state of a rearrange run.
type RearrangementStatus string

const (
	RearrangementPending   RearrangementStatus = "pending"
	RearrangementCompleted RearrangementStatus = "completed"
	RearrangementFailed    RearrangementStatus = "failed"
)

// Rearrangement records one rearrange run of a playlist.
type Rearrangement struct {
	record
	sourcePlaylistID   string
	sourcePlaylistName string
	targetPlaylistID   string
	status             RearrangementStatus
	tracksTotal        int
	tracksSkipped      int
	duplicates         int
	inputScore         float64
	finalScore         float64
	errorMessage       string
	startedAt          time.Time
	completedAt        *time.Time
}

// NewRearrangement starts a pending run for the given source playlist.
func NewRearrangement(sequence int, sourceID, sourceName string) *Rearrangement {
	r := &Rearrangement{
		record:             newRecord(sequence),
		sourcePlaylistID:   sourceID,
		sourcePlaylistName: sourceName,
		status:             RearrangementPending,
	}
	r.startedAt = r.createdAt
	return r
}

func (r *Rearrangement) SourcePlaylistID() string        { return r.sourcePlaylistID }
func (r *Rearrangement) SourcePlaylistName() string      { return r.sourcePlaylistName }
func (r *Rearrangement) TargetPlaylistID() string        { return r.targetPlaylistID }
func (r *Rearrangement) Status() RearrangementStatus     { return r.status }
func (r *Rearrangement) TracksTotal() int                { return r.tracksTotal }
func (r *Rearrangement) TracksSkipped() int              { return r.tracksSkipped }
func (r *Rearrangement) Duplicates() int                 { return r.duplicates }
func (r *Rearrangement) InputScore() float64             { return r.inputScore }
func (r *Rearrangement) FinalScore() float64             { return r.finalScore }
func (r *Rearrangement) ErrorMessage() string            { return r.errorMessage }
func (r *Rearrangement) StartedAt() time.Time            { return r.startedAt }
func (r *Rearrangement) CompletedAt() *time.Time         { return r.completedAt }
func (r *Rearrangement) SetStartedAt(t time.Time)        { r.startedAt = t }
func (r *Rearrangement) SetCompletedAt(t *time.Time)     { r.completedAt = t }
func (r *Rearrangement) SetStatus(s RearrangementStatus) { r.status = s }
func (r *Rearrangement) SetErrorMessage(msg string)      { r.errorMessage = msg }
func (r *Rearrangement) SetTargetPlaylistID(id string)   { r.targetPlaylistID = id }

// SetCounts records the track counts of the run.
func (r *Rearrangement) SetCounts(total, skipped, duplicates int) {
	r.tracksTotal, r.tracksSkipped, r.duplicates = total, skipped, duplicates
}

// SetScores records the score of the input order and of the returned order.
func (r *Rearrangement) SetScores(input, final float64) {
	r.inputScore, r.finalScore = input, final
}

// Complete marks the run as completed now.
func (r *Rearrangement) Complete() {
	now := time.Now()
	r.status = RearrangementCompleted
	r.completedAt = &now
}

// Fail marks the run as failed with err.
func (r *Rearrangement) Fail(err error) {
	now := time.Now()
	r.status = RearrangementFailed
	r.completedAt = &now
	if err != nil {
		r.errorMessage = err.Error()
	}
}

// Validate checks the run is well formed.
func (r *Rearrangement) Validate() error {
	switch {
	case r.sourcePlaylistID == "":
		return fmt.Errorf("source_playlist_id is required")
	case r.status != RearrangementPending && r.status != RearrangementCompleted && r.status != RearrangementFailed:
		return fmt.Errorf("invalid status %q", r.status)
	case r.tracksTotal < 0 || r.tracksSkipped < 0 || r.duplicates < 0:
		return fmt.Errorf("counts must not be negative")
	case math.IsNaN(r.inputScore) || math.IsNaN(r.finalScore):
		return fmt.Errorf("scores must be numbers")
	}
	return nil
}
