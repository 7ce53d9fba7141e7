package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/segue/internal/models"
	"github.com/desertthunder/segue/internal/shared"
)

const rearrangementColumns = `id, sequence, source_playlist_id, source_playlist_name, target_playlist_id, status,
	tracks_total, tracks_skipped, duplicates, input_score, final_score, error_message,
	started_at, completed_at, created_at, updated_at, deleted_at`

// RearrangementRepository implements models.Repository[*models.Rearrangement] for run history.
type RearrangementRepository struct {
	db *sql.DB
}

// NewRearrangementRepository creates a new RearrangementRepository with the given database connection
func NewRearrangementRepository(db *sql.DB) *RearrangementRepository {
	return &RearrangementRepository{db: db}
}

// Create inserts a new run into the database with generated ID and sequence
func (r *RearrangementRepository) Create(run *models.Rearrangement) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "rearrangements")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	run.SetID(id)
	run.SetSequence(sequence)

	query := `
		INSERT INTO rearrangements (
			id, sequence, source_playlist_id, source_playlist_name, target_playlist_id, status,
			tracks_total, tracks_skipped, duplicates, input_score, final_score, error_message,
			started_at, completed_at, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		run.SourcePlaylistID(),
		run.SourcePlaylistName(),
		nullable(run.TargetPlaylistID()),
		string(run.Status()),
		run.TracksTotal(),
		run.TracksSkipped(),
		run.Duplicates(),
		run.InputScore(),
		run.FinalScore(),
		nullable(run.ErrorMessage()),
		run.StartedAt(),
		run.CompletedAt(),
		run.CreatedAt(),
		run.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert rearrangement: %w", err)
	}

	return nil
}

// Get retrieves a run by ID, excluding soft-deleted runs
func (r *RearrangementRepository) Get(id string) (*models.Rearrangement, error) {
	query := `SELECT ` + rearrangementColumns + ` FROM rearrangements WHERE id = ? AND deleted_at IS NULL`

	run, err := scanRearrangement(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrRunNotFound, id)
	}
	return run, err
}

// Update modifies an existing run in the database
func (r *RearrangementRepository) Update(run *models.Rearrangement) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	run.SetUpdatedAt(now)

	query := `
		UPDATE rearrangements
		SET target_playlist_id = ?, status = ?, tracks_total = ?, tracks_skipped = ?, duplicates = ?,
			input_score = ?, final_score = ?, error_message = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		nullable(run.TargetPlaylistID()),
		string(run.Status()),
		run.TracksTotal(),
		run.TracksSkipped(),
		run.Duplicates(),
		run.InputScore(),
		run.FinalScore(),
		nullable(run.ErrorMessage()),
		run.CompletedAt(),
		now,
		run.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update rearrangement: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrRunNotFound, run.ID())
	}

	return nil
}

// Delete soft-deletes a run by ID
func (r *RearrangementRepository) Delete(id string) error {
	return softDelete(r.db, "rearrangements", id)
}

// List retrieves runs matching the given criteria, newest first.
//
// Supported criteria: "status" ([models.RearrangementStatus] or string),
// "source_playlist_id" (string), "limit" (int).
func (r *RearrangementRepository) List(criteria map[string]any) ([]*models.Rearrangement, error) {
	query := `SELECT ` + rearrangementColumns + ` FROM rearrangements WHERE deleted_at IS NULL`
	args := []any{}

	switch status := criteria["status"].(type) {
	case models.RearrangementStatus:
		query += " AND status = ?"
		args = append(args, string(status))
	case string:
		if status != "" {
			query += " AND status = ?"
			args = append(args, status)
		}
	}

	if source, ok := criteria["source_playlist_id"].(string); ok && source != "" {
		query += " AND source_playlist_id = ?"
		args = append(args, source)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rearrangements: %w", err)
	}
	defer rows.Close()

	var runs []*models.Rearrangement
	for rows.Next() {
		run, err := scanRearrangement(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

func scanRearrangement(s scanner) (*models.Rearrangement, error) {
	var (
		id           string
		sequence     int
		sourceID     string
		sourceName   string
		targetID     sql.NullString
		status       string
		total        int
		skipped      int
		duplicates   int
		inputScore   float64
		finalScore   float64
		errorMessage sql.NullString
		startedAt    time.Time
		completedAt  sql.NullTime
		createdAt    time.Time
		updatedAt    time.Time
		deletedAt    sql.NullTime
	)

	err := s.Scan(&id, &sequence, &sourceID, &sourceName, &targetID, &status,
		&total, &skipped, &duplicates, &inputScore, &finalScore, &errorMessage,
		&startedAt, &completedAt, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan rearrangement: %w", err)
	}

	run := models.NewRearrangement(sequence, sourceID, sourceName)
	run.SetID(id)
	run.SetTargetPlaylistID(targetID.String)
	run.SetStatus(models.RearrangementStatus(status))
	run.SetCounts(total, skipped, duplicates)
	run.SetScores(inputScore, finalScore)
	run.SetErrorMessage(errorMessage.String)
	run.SetStartedAt(startedAt)
	if completedAt.Valid {
		run.SetCompletedAt(&completedAt.Time)
	}
	run.SetCreatedAt(createdAt)
	run.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		run.SetDeletedAt(&deletedAt.Time)
	}

	return run, nil
}
