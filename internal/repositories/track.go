package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/segue/internal/models"
	"github.com/desertthunder/segue/internal/shared"
)

const trackColumns = `id, sequence, service, service_id, name, artists, album, musical_key, mode, bpm,
	valence, energy, popularity, created_at, updated_at, deleted_at`

// lookupChunk keeps IN clauses below sqlite's bound parameter limit.
const lookupChunk = 500

// TrackRepository implements models.Repository[*models.PersistedTrack] for the audio feature cache.
//
// Tracks are unique per service and service_id and support soft deletes.
type TrackRepository struct {
	db *sql.DB
}

// NewTrackRepository creates a new TrackRepository with the given database connection
func NewTrackRepository(db *sql.DB) *TrackRepository {
	return &TrackRepository{db: db}
}

// Create inserts a new [models.PersistedTrack] into the database with generated ID and sequence
func (r *TrackRepository) Create(track *models.PersistedTrack) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "tracks")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	track.SetID(id)
	track.SetSequence(sequence)

	artists, err := json.Marshal(track.Track().Artists)
	if err != nil {
		return fmt.Errorf("failed to encode artists: %w", err)
	}

	t := track.Track()
	query := `
		INSERT INTO tracks (id, sequence, service, service_id, name, artists, album, musical_key, mode, bpm,
			valence, energy, popularity, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		track.Service(),
		track.ServiceID(),
		t.Name,
		string(artists),
		t.Album,
		t.Key,
		t.Mode,
		t.BPM,
		t.Valence,
		t.Energy,
		t.Popularity,
		track.CreatedAt(),
		track.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert track: %w", err)
	}

	return nil
}

// Get retrieves a track by ID, excluding soft-deleted tracks
func (r *TrackRepository) Get(id string) (*models.PersistedTrack, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE id = ? AND deleted_at IS NULL`
	return r.scanOne(r.db.QueryRow(query, id), id)
}

// GetByServiceID retrieves a track by service and service_id
func (r *TrackRepository) GetByServiceID(service, serviceID string) (*models.PersistedTrack, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE service = ? AND service_id = ? AND deleted_at IS NULL`
	return r.scanOne(r.db.QueryRow(query, service, serviceID), serviceID)
}

// GetByServiceIDs retrieves every cached track of service among serviceIDs, keyed by service_id.
//
// Unknown ids are absent from the result.
func (r *TrackRepository) GetByServiceIDs(service string, serviceIDs []string) (map[string]*models.PersistedTrack, error) {
	found := make(map[string]*models.PersistedTrack, len(serviceIDs))

	for start := 0; start < len(serviceIDs); start += lookupChunk {
		chunk := serviceIDs[start:min(start+lookupChunk, len(serviceIDs))]

		args := make([]any, 0, len(chunk)+1)
		args = append(args, service)
		for _, id := range chunk {
			args = append(args, id)
		}

		query := `SELECT ` + trackColumns + ` FROM tracks
			WHERE service = ? AND deleted_at IS NULL
			AND service_id IN (` + placeholders(len(chunk)) + `)`

		tracks, err := r.query(query, args...)
		if err != nil {
			return nil, err
		}
		for _, t := range tracks {
			found[t.ServiceID()] = t
		}
	}

	return found, nil
}

// Upsert creates the track or refreshes the cached attributes of an existing one.
func (r *TrackRepository) Upsert(track *models.PersistedTrack) error {
	existing, err := r.GetByServiceID(track.Service(), track.ServiceID())
	switch {
	case errors.Is(err, shared.ErrTrackNotFound):
		return r.Create(track)
	case err != nil:
		return err
	}

	existing.SetTrack(track.Track())
	if err := r.Update(existing); err != nil {
		return err
	}
	track.SetID(existing.ID())
	track.SetSequence(existing.Sequence())
	return nil
}

// Update modifies an existing track in the database
func (r *TrackRepository) Update(track *models.PersistedTrack) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	artists, err := json.Marshal(track.Track().Artists)
	if err != nil {
		return fmt.Errorf("failed to encode artists: %w", err)
	}

	now := time.Now()
	track.SetUpdatedAt(now)

	t := track.Track()
	query := `
		UPDATE tracks
		SET name = ?, artists = ?, album = ?, musical_key = ?, mode = ?, bpm = ?,
			valence = ?, energy = ?, popularity = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		t.Name,
		string(artists),
		t.Album,
		t.Key,
		t.Mode,
		t.BPM,
		t.Valence,
		t.Energy,
		t.Popularity,
		now,
		track.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update track: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: not found or already deleted: %s", shared.ErrTrackNotFound, track.ID())
	}

	return nil
}

// Delete soft-deletes a track by ID
func (r *TrackRepository) Delete(id string) error {
	return softDelete(r.db, "tracks", id)
}

// List retrieves all tracks matching the given criteria, excluding soft-deleted tracks.
//
// Supported criteria: "service" (string), "musical_key" (int).
func (r *TrackRepository) List(criteria map[string]any) ([]*models.PersistedTrack, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE deleted_at IS NULL`
	args := []any{}

	if service, ok := criteria["service"].(string); ok && service != "" {
		query += " AND service = ?"
		args = append(args, service)
	}

	if key, ok := criteria["musical_key"].(int); ok {
		query += " AND musical_key = ?"
		args = append(args, key)
	}

	query += " ORDER BY sequence ASC"
	return r.query(query, args...)
}

// Count returns the number of cached tracks, excluding soft-deleted tracks.
func (r *TrackRepository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM tracks WHERE deleted_at IS NULL").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count tracks: %w", err)
	}
	return n, nil
}

func (r *TrackRepository) query(query string, args ...any) ([]*models.PersistedTrack, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*models.PersistedTrack
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tracks, nil
}

// scanOne scans a single [sql.Row] into a [models.PersistedTrack]
func (r *TrackRepository) scanOne(row *sql.Row, key string) (*models.PersistedTrack, error) {
	track, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, key)
	}
	return track, err
}

func scanTrack(s scanner) (*models.PersistedTrack, error) {
	var (
		id        string
		sequence  int
		service   string
		serviceID string
		artists   string
		t         models.Track
		createdAt time.Time
		updatedAt time.Time
		deletedAt sql.NullTime
	)

	err := s.Scan(&id, &sequence, &service, &serviceID, &t.Name, &artists, &t.Album, &t.Key, &t.Mode, &t.BPM,
		&t.Valence, &t.Energy, &t.Popularity, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan track: %w", err)
	}

	if err := json.Unmarshal([]byte(artists), &t.Artists); err != nil {
		return nil, fmt.Errorf("failed to decode artists of %s: %w", serviceID, err)
	}
	t.ID = serviceID

	track := models.NewPersistedTrack(sequence, service, t)
	track.SetID(id)
	track.SetCreatedAt(createdAt)
	track.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		track.SetDeletedAt(&deletedAt.Time)
	}

	return track, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
