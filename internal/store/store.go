// Package store holds the validated tracks of one analysis run, keyed by id in insertion order.
package store

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"slices"

	"github.com/desertthunder/segue/internal/models"
	"github.com/desertthunder/segue/internal/shared"
)

// Record is the input form of a track. Pointer fields distinguish a missing attribute from a zero value.
type Record struct {
	ID         string   `json:"id"`
	Name       *string  `json:"name"`
	Artists    []string `json:"artists"`
	Key        *int     `json:"key"`
	Mode       *int     `json:"mode"`
	BPM        *int     `json:"bpm"`
	Valence    *float64 `json:"valence"`
	Energy     *float64 `json:"energy"`
	Popularity *int     `json:"popularity"`
}

// MissingAttributeError reports a record that lacks a required attribute.
type MissingAttributeError struct {
	TrackID   string
	Attribute string
}

func (e *MissingAttributeError) Error() string {
	return fmt.Sprintf("%v: track %q has no %s", shared.ErrMissingAttribute, e.TrackID, e.Attribute)
}

func (e *MissingAttributeError) Unwrap() error {
	return shared.ErrMissingAttribute
}

// FromTrack builds a complete record from a catalog item and its audio features.
// A nil features value yields a record missing every audio attribute.
func FromTrack(t models.CatalogTrack, f *models.AudioFeatures) Record {
	name := t.Name
	popularity := t.Popularity
	r := Record{ID: t.ID, Name: &name, Artists: t.Artists, Popularity: &popularity}
	if f == nil {
		return r
	}
	key, mode, bpm := f.Key, f.Mode, int(math.Round(f.Tempo))
	valence, energy := f.Valence, f.Energy
	r.Key, r.Mode, r.BPM, r.Valence, r.Energy = &key, &mode, &bpm, &valence, &energy
	return r
}

// FromModel converts a track back to its record form.
func FromModel(t models.Track) Record {
	return Record{
		ID:         t.ID,
		Name:       &t.Name,
		Artists:    t.Artists,
		Key:        &t.Key,
		Mode:       &t.Mode,
		BPM:        &t.BPM,
		Valence:    &t.Valence,
		Energy:     &t.Energy,
		Popularity: &t.Popularity,
	}
}

// Track validates r and converts it to a [models.Track].
func (r Record) Track() (models.Track, error) {
	if r.ID == "" {
		return models.Track{}, &MissingAttributeError{Attribute: "id"}
	}

	missing := func(attr string) error { return &MissingAttributeError{TrackID: r.ID, Attribute: attr} }
	switch {
	case r.Name == nil:
		return models.Track{}, missing("name")
	case len(r.Artists) == 0:
		return models.Track{}, missing("artists")
	case r.Key == nil:
		return models.Track{}, missing("key")
	case r.Mode == nil:
		return models.Track{}, missing("mode")
	case r.BPM == nil:
		return models.Track{}, missing("bpm")
	case r.Valence == nil:
		return models.Track{}, missing("valence")
	case r.Energy == nil:
		return models.Track{}, missing("energy")
	case r.Popularity == nil:
		return models.Track{}, missing("popularity")
	}

	invalid := func(attr string, v any) error {
		return fmt.Errorf("%w: track %q %s=%v", shared.ErrInvalidAttribute, r.ID, attr, v)
	}
	switch {
	case *r.Key < models.UndetectableKey || *r.Key > 11:
		return models.Track{}, invalid("key", *r.Key)
	case *r.Mode != 0 && *r.Mode != 1:
		return models.Track{}, invalid("mode", *r.Mode)
	case !inUnit(*r.Valence):
		return models.Track{}, invalid("valence", *r.Valence)
	case !inUnit(*r.Energy):
		return models.Track{}, invalid("energy", *r.Energy)
	case *r.Popularity < 0 || *r.Popularity > 100:
		return models.Track{}, invalid("popularity", *r.Popularity)
	}

	return models.Track{
		ID:         r.ID,
		Name:       *r.Name,
		Artists:    slices.Clone(r.Artists),
		Key:        *r.Key,
		Mode:       *r.Mode,
		BPM:        *r.BPM,
		Valence:    *r.Valence,
		Energy:     *r.Energy,
		Popularity: *r.Popularity,
	}, nil
}

func inUnit(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

// Store maps track ids to tracks and remembers insertion order.
type Store struct {
	ids    []string
	tracks map[string]models.Track
}

// New returns an empty store.
func New() *Store {
	return &Store{tracks: make(map[string]models.Track)}
}

// Add validates r and appends it. Ids must be unique.
func (s *Store) Add(r Record) error {
	t, err := r.Track()
	if err != nil {
		return err
	}
	if _, ok := s.tracks[t.ID]; ok {
		return fmt.Errorf("%w: %s", shared.ErrDuplicateTrack, t.ID)
	}
	s.ids = append(s.ids, t.ID)
	s.tracks[t.ID] = t
	return nil
}

// Get returns the track stored under id.
func (s *Store) Get(id string) (models.Track, bool) {
	t, ok := s.tracks[id]
	return t, ok
}

// IDs returns the ids in insertion order.
func (s *Store) IDs() []string {
	return slices.Clone(s.ids)
}

// Tracks returns the tracks in insertion order.
func (s *Store) Tracks() []models.Track {
	out := make([]models.Track, 0, len(s.ids))
	for _, id := range s.ids {
		out = append(out, s.tracks[id])
	}
	return out
}

// Len returns the number of tracks.
func (s *Store) Len() int {
	return len(s.ids)
}

// Skipped describes a record that was left out of the store.
type Skipped struct {
	TrackID string
	Err     error
}

// Load adds every valid record and returns the rejected ones. Invalid records never abort the load.
func Load(records []Record) (*Store, []Skipped) {
	s := New()
	var skipped []Skipped
	for _, r := range records {
		if err := s.Add(r); err != nil {
			skipped = append(skipped, Skipped{TrackID: r.ID, Err: err})
		}
	}
	return s, skipped
}

// ReadRecords decodes a JSON array of records.
func ReadRecords(r io.Reader) ([]Record, error) {
	var records []Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: failed to decode tracks: %v", shared.ErrInvalidInput, err)
	}
	return records, nil
}
