package store

import (
	"errors"
	"strings"
	"testing"

	"github.com/desertthunder/segue/internal/models"
	"github.com/desertthunder/segue/internal/shared"
	"github.com/google/go-cmp/cmp"
)

func ptr[T any](v T) *T { return &v }

func record(id, name string, key int) Record {
	return Record{
		ID:         id,
		Name:       ptr(name),
		Artists:    []string{"Artist"},
		Key:        ptr(key),
		Mode:       ptr(1),
		BPM:        ptr(120),
		Valence:    ptr(0.5),
		Energy:     ptr(0.5),
		Popularity: ptr(40),
	}
}

func TestRecordTrack(t *testing.T) {
	t.Run("complete record converts", func(t *testing.T) {
		got, err := record("a", "Song", 4).Track()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		want := models.Track{
			ID: "a", Name: "Song", Artists: []string{"Artist"},
			Key: 4, Mode: 1, BPM: 120, Valence: 0.5, Energy: 0.5, Popularity: 40,
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Track() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("undetectable key is accepted", func(t *testing.T) {
		got, err := record("a", "Song", -1).Track()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got.HasKey() {
			t.Error("expected track to have no key")
		}
	})

	missing := []struct {
		name  string
		clear func(*Record)
		attr  string
	}{
		{name: "name", clear: func(r *Record) { r.Name = nil }, attr: "name"},
		{name: "artists", clear: func(r *Record) { r.Artists = nil }, attr: "artists"},
		{name: "key", clear: func(r *Record) { r.Key = nil }, attr: "key"},
		{name: "mode", clear: func(r *Record) { r.Mode = nil }, attr: "mode"},
		{name: "bpm", clear: func(r *Record) { r.BPM = nil }, attr: "bpm"},
		{name: "valence", clear: func(r *Record) { r.Valence = nil }, attr: "valence"},
		{name: "energy", clear: func(r *Record) { r.Energy = nil }, attr: "energy"},
		{name: "popularity", clear: func(r *Record) { r.Popularity = nil }, attr: "popularity"},
	}
	for _, tt := range missing {
		t.Run("missing "+tt.name, func(t *testing.T) {
			r := record("a", "Song", 4)
			tt.clear(&r)

			_, err := r.Track()
			if !errors.Is(err, shared.ErrMissingAttribute) {
				t.Fatalf("expected ErrMissingAttribute, got %v", err)
			}
			var mae *MissingAttributeError
			if !errors.As(err, &mae) {
				t.Fatalf("expected *MissingAttributeError, got %T", err)
			}
			if mae.TrackID != "a" || mae.Attribute != tt.attr {
				t.Errorf("unexpected error fields %+v", mae)
			}
		})
	}

	invalid := []struct {
		name   string
		modify func(*Record)
	}{
		{name: "key too large", modify: func(r *Record) { r.Key = ptr(12) }},
		{name: "key below sentinel", modify: func(r *Record) { r.Key = ptr(-2) }},
		{name: "mode", modify: func(r *Record) { r.Mode = ptr(2) }},
		{name: "valence", modify: func(r *Record) { r.Valence = ptr(1.2) }},
		{name: "energy", modify: func(r *Record) { r.Energy = ptr(-0.1) }},
		{name: "popularity", modify: func(r *Record) { r.Popularity = ptr(101) }},
	}
	for _, tt := range invalid {
		t.Run("invalid "+tt.name, func(t *testing.T) {
			r := record("a", "Song", 4)
			tt.modify(&r)
			if _, err := r.Track(); !errors.Is(err, shared.ErrInvalidAttribute) {
				t.Errorf("expected ErrInvalidAttribute, got %v", err)
			}
		})
	}
}

func TestStore(t *testing.T) {
	t.Run("keeps insertion order", func(t *testing.T) {
		s := New()
		for _, id := range []string{"c", "a", "b"} {
			if err := s.Add(record(id, "Song "+id, 0)); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		}

		if diff := cmp.Diff([]string{"c", "a", "b"}, s.IDs()); diff != "" {
			t.Errorf("IDs() mismatch (-want +got):\n%s", diff)
		}
		if s.Len() != 3 {
			t.Errorf("expected 3 tracks, got %d", s.Len())
		}
		if got := s.Tracks()[0].Name; got != "Song c" {
			t.Errorf("expected first track Song c, got %s", got)
		}
	})

	t.Run("rejects duplicate ids", func(t *testing.T) {
		s := New()
		if err := s.Add(record("a", "Song", 0)); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := s.Add(record("a", "Other", 1)); !errors.Is(err, shared.ErrDuplicateTrack) {
			t.Errorf("expected ErrDuplicateTrack, got %v", err)
		}
	})

	t.Run("Get reports unknown ids", func(t *testing.T) {
		if _, ok := New().Get("missing"); ok {
			t.Error("expected unknown id to be absent")
		}
	})

	t.Run("IDs returns a copy", func(t *testing.T) {
		s := New()
		_ = s.Add(record("a", "Song", 0))
		ids := s.IDs()
		ids[0] = "changed"
		if s.IDs()[0] != "a" {
			t.Error("mutating IDs() result changed the store")
		}
	})
}

func TestLoad(t *testing.T) {
	bad := record("b", "Song b", 0)
	bad.Energy = nil

	s, skipped := Load([]Record{record("a", "Song a", 0), bad, record("c", "Song c", 3)})

	if diff := cmp.Diff([]string{"a", "c"}, s.IDs()); diff != "" {
		t.Errorf("IDs() mismatch (-want +got):\n%s", diff)
	}
	if len(skipped) != 1 || skipped[0].TrackID != "b" {
		t.Fatalf("expected b to be skipped, got %+v", skipped)
	}
	if !errors.Is(skipped[0].Err, shared.ErrMissingAttribute) {
		t.Errorf("expected ErrMissingAttribute, got %v", skipped[0].Err)
	}
}

func TestFromTrack(t *testing.T) {
	item := models.CatalogTrack{ID: "x", Name: "Song", Artists: []string{"A", "B"}, Popularity: 70}

	t.Run("rounds tempo", func(t *testing.T) {
		r := FromTrack(item, &models.AudioFeatures{TrackID: "x", Key: 2, Mode: 0, Tempo: 127.6, Valence: 0.3, Energy: 0.9})
		got, err := r.Track()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got.BPM != 128 {
			t.Errorf("expected bpm 128, got %d", got.BPM)
		}
		if got.JoinedArtists() != "A, B" {
			t.Errorf("unexpected artists %q", got.JoinedArtists())
		}
	})

	t.Run("missing features", func(t *testing.T) {
		_, err := FromTrack(item, nil).Track()
		if !errors.Is(err, shared.ErrMissingAttribute) {
			t.Errorf("expected ErrMissingAttribute, got %v", err)
		}
	})
}

func TestReadRecords(t *testing.T) {
	input := `[
		{"id": "a", "name": "Song", "artists": ["X"], "key": 0, "mode": 1, "bpm": 100, "valence": 0.1, "energy": 0.2, "popularity": 5},
		{"id": "b", "name": "Other", "artists": ["Y"]}
	]`

	records, err := ReadRecords(strings.NewReader(input))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Key == nil || *records[0].Key != 0 {
		t.Error("expected explicit zero key to be present")
	}
	if records[1].Key != nil {
		t.Error("expected absent key to stay nil")
	}

	if _, err := ReadRecords(strings.NewReader("{")); !errors.Is(err, shared.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
