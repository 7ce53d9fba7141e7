package shared

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func memoryDatabase(t *testing.T) *sql.DB {
	t.Helper()
	db, err := NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("NewDatabase() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&n); err != nil {
		t.Fatalf("sqlite_master query failed: %v", err)
	}
	return n == 1
}

func TestNewDatabase(t *testing.T) {
	t.Run("creates parent directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cache", "segue.db")
		db, err := NewDatabase(path)
		if err != nil {
			t.Fatalf("NewDatabase() error: %v", err)
		}
		defer db.Close()

		var fk int
		if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil || fk != 1 {
			t.Errorf("foreign_keys = %d, %v", fk, err)
		}
	})

	t.Run("empty path", func(t *testing.T) {
		if _, err := NewDatabase(""); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("pool limits", func(t *testing.T) {
		db := memoryDatabase(t)
		ConfigureDatabase(db, 0, 0)
		if got := db.Stats().MaxOpenConnections; got != 1 {
			t.Errorf("zero limit changed pool: max open = %d", got)
		}
		ConfigureDatabase(db, 4, 2)
		if got := db.Stats().MaxOpenConnections; got != 4 {
			t.Errorf("max open = %d, want 4", got)
		}
	})
}

func TestMigrations(t *testing.T) {
	t.Run("embedded scripts", func(t *testing.T) {
		migrations, err := loadMigrations()
		if err != nil {
			t.Fatalf("loadMigrations() error: %v", err)
		}

		var names []string
		for i, m := range migrations {
			names = append(names, m.Name)
			if m.Version != i {
				t.Errorf("%s has version %d, want %d", m.Name, m.Version, i)
			}
			if m.Up == "" || m.Down == "" {
				t.Errorf("%s is missing a script", m.Name)
			}
		}
		want := []string{"0000_create_tracks", "0001_create_rearrangements"}
		if diff := cmp.Diff(want, names); diff != "" {
			t.Errorf("migrations mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("comments stripped", func(t *testing.T) {
		tests := map[string]string{
			"-- header\nCREATE TABLE t (id INTEGER); -- trailing\n\n": "CREATE TABLE t (id INTEGER);",
			"SELECT 1;":         "SELECT 1;",
			"-- only a comment": "",
		}
		for in, want := range tests {
			if got := removeComments(in); got != want {
				t.Errorf("removeComments(%q) = %q, want %q", in, got, want)
			}
		}
	})

	t.Run("apply, reapply and roll back", func(t *testing.T) {
		db := memoryDatabase(t)

		pending, err := PendingMigrations(db)
		if err != nil {
			t.Fatal(err)
		}
		if len(pending) != 2 {
			t.Fatalf("fresh database pending = %v", pending)
		}

		for range 2 {
			if err := RunMigrations(db); err != nil {
				t.Fatalf("RunMigrations() error: %v", err)
			}
		}
		for _, table := range []string{"tracks", "rearrangements"} {
			if !tableExists(t, db, table) {
				t.Errorf("table %s missing after migrations", table)
			}
		}
		if pending, _ := PendingMigrations(db); len(pending) != 0 {
			t.Errorf("pending after migrate = %v", pending)
		}

		if err := RollbackMigration(db); err != nil {
			t.Fatalf("RollbackMigration() error: %v", err)
		}
		if tableExists(t, db, "rearrangements") {
			t.Error("rearrangements survived rollback")
		}
		if !tableExists(t, db, "tracks") {
			t.Error("rollback went past the latest migration")
		}
		pending, _ = PendingMigrations(db)
		if diff := cmp.Diff([]string{"0001_create_rearrangements"}, pending); diff != "" {
			t.Errorf("pending mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("rollback with nothing applied", func(t *testing.T) {
		db := memoryDatabase(t)
		if err := createMigrationsTable(db); err != nil {
			t.Fatal(err)
		}
		if err := RollbackMigration(db); err == nil {
			t.Error("expected an error")
		}
	})
}
