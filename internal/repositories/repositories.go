package repositories

import (
	"database/sql"
	"fmt"
	"time"
)

// scanner is satisfied by both [sql.Row] and [sql.Rows].
type scanner interface {
	Scan(dest ...any) error
}

// NextSequence bumps and returns the counter kept in table's "_sequence" companion table.
// Runs are numbered with it (run #42), tracks by insertion order.
func NextSequence(db *sql.DB, table string) (int, error) {
	var next int
	query := fmt.Sprintf("UPDATE %s_sequence SET value = value + 1 WHERE id = 1 RETURNING value", table)
	if err := db.QueryRow(query).Scan(&next); err != nil {
		return 0, fmt.Errorf("failed to advance %s sequence: %w", table, err)
	}
	return next, nil
}

// softDelete stamps deleted_at on the row of table with the given id.
func softDelete(db *sql.DB, table, id string) error {
	query := fmt.Sprintf("UPDATE %s SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL", table)

	result, err := db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s row not found or already deleted: %s", table, id)
	}

	return nil
}

// nullable maps the empty string to NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
