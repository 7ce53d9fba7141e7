// package models defines the data model shared by the analysis, persistence and service layers
package models

import (
	"strings"
	"time"
)

// Model defines the base interface for all persistent models.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new model into the database
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	Update(model T) error                      // Update modifies an existing model in the database
	Delete(id string) error                    // Delete soft-deletes a model by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// UndetectableKey is the key value reported when no key could be detected.
const UndetectableKey = -1

// Track is a track together with the audio attributes used for sequencing.
type Track struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Artists    []string `json:"artists"`
	Album      string   `json:"album,omitempty"`
	Key        int      `json:"key"`   // pitch class 0-11, or UndetectableKey
	Mode       int      `json:"mode"`  // 0 minor, 1 major
	BPM        int      `json:"bpm"`   // rounded tempo
	Valence    float64  `json:"valence"`
	Energy     float64  `json:"energy"`
	Popularity int      `json:"popularity"`
}

// JoinedArtists returns the artists separated by ", ".
func (t Track) JoinedArtists() string {
	return strings.Join(t.Artists, ", ")
}

// Label returns the "<name> - <artists>" display form.
func (t Track) Label() string {
	return t.Name + " - " + t.JoinedArtists()
}

// HasKey reports whether the key was detected.
func (t Track) HasKey() bool {
	return t.Key != UndetectableKey
}

// SharesArtist reports whether the two tracks have at least one artist in common.
func (t Track) SharesArtist(other Track) bool {
	for _, a := range t.Artists {
		for _, b := range other.Artists {
			if a == b {
				return true
			}
		}
	}
	return false
}

// CatalogTrack is playlist item metadata before audio features are known.
type CatalogTrack struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Artists    []string `json:"artists"`
	Album      string   `json:"album,omitempty"`
	Duration   int      `json:"duration"` // seconds
	ISRC       string   `json:"isrc,omitempty"`
	Popularity int      `json:"popularity"`
}

// AudioFeatures are the analysed attributes of one track.
type AudioFeatures struct {
	TrackID string  `json:"id"`
	Key     int     `json:"key"`
	Mode    int     `json:"mode"`
	Tempo   float64 `json:"tempo"`
	Valence float64 `json:"valence"`
	Energy  float64 `json:"energy"`
}

// Playlist represents a playlist's metadata.
type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Owner       string `json:"owner,omitempty"`
	TrackCount  int    `json:"track_count"`
	Public      bool   `json:"public"`
}

// PlaylistExport is a playlist with its items.
type PlaylistExport struct {
	Playlist Playlist       `json:"playlist"`
	Tracks   []CatalogTrack `json:"tracks"`
	Skipped  int            `json:"skipped,omitempty"` // items without a track id, such as local files
}
