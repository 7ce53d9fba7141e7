// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/segue/internal/models"
)

// MockService is a test double for [services.Service].
//
// Exports are keyed by playlist ID and features by track ID. Calls are safe for concurrent use.
type MockService struct {
	Playlists []models.Playlist
	Exports   map[string]*models.PlaylistExport
	Features  map[string]models.AudioFeatures

	PlaylistsErr error
	ExportErr    map[string]error
	FeaturesErr  error
	ImportErr    error

	mu           sync.Mutex
	ExportCalls  []string
	FeatureCalls [][]string
	Imported     []*models.PlaylistExport
}

func (m *MockService) Authenticate(ctx context.Context, credentials map[string]string) error {
	return nil
}

func (m *MockService) GetPlaylists(ctx context.Context) ([]models.Playlist, error) {
	if m.PlaylistsErr != nil {
		return nil, m.PlaylistsErr
	}
	return m.Playlists, nil
}

func (m *MockService) GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	if export, ok := m.Exports[playlistID]; ok {
		return &export.Playlist, nil
	}
	return nil, fmt.Errorf("playlist %s not found", playlistID)
}

func (m *MockService) ExportPlaylist(ctx context.Context, playlistID string) (*models.PlaylistExport, error) {
	m.mu.Lock()
	m.ExportCalls = append(m.ExportCalls, playlistID)
	m.mu.Unlock()

	if err, ok := m.ExportErr[playlistID]; ok {
		return nil, err
	}
	if export, ok := m.Exports[playlistID]; ok {
		return export, nil
	}
	return nil, fmt.Errorf("playlist %s not found", playlistID)
}

func (m *MockService) AudioFeatures(ctx context.Context, trackIDs []string) (map[string]models.AudioFeatures, error) {
	m.mu.Lock()
	m.FeatureCalls = append(m.FeatureCalls, append([]string(nil), trackIDs...))
	m.mu.Unlock()

	if m.FeaturesErr != nil {
		return nil, m.FeaturesErr
	}
	out := make(map[string]models.AudioFeatures)
	for _, id := range trackIDs {
		if f, ok := m.Features[id]; ok {
			out[id] = f
		}
	}
	return out, nil
}

func (m *MockService) ImportPlaylist(ctx context.Context, playlist *models.PlaylistExport) (*models.Playlist, error) {
	if m.ImportErr != nil {
		return nil, m.ImportErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Imported = append(m.Imported, playlist)

	created := playlist.Playlist
	created.ID = fmt.Sprintf("created-%d", len(m.Imported))
	created.TrackCount = len(playlist.Tracks)
	return &created, nil
}

func (m *MockService) Name() string { return "mock" }

// MockFeatureCache is an in-memory [tasks.FeatureCache].
type MockFeatureCache struct {
	Tracks    map[string]models.Track
	LookupErr error
	SaveErr   error
	Saved     []models.Track
}

func (c *MockFeatureCache) Lookup(ids []string) (map[string]models.Track, error) {
	if c.LookupErr != nil {
		return nil, c.LookupErr
	}
	out := make(map[string]models.Track)
	for _, id := range ids {
		if t, ok := c.Tracks[id]; ok {
			out[id] = t
		}
	}
	return out, nil
}

func (c *MockFeatureCache) Save(tracks []models.Track) error {
	if c.SaveErr != nil {
		return c.SaveErr
	}
	c.Saved = append(c.Saved, tracks...)
	return nil
}

// MockRecorder is an in-memory [tasks.RunRecorder].
type MockRecorder struct {
	BeginErr error
	Runs     []*models.Rearrangement
	Ended    []*models.Rearrangement
}

func (r *MockRecorder) Begin(sourceID, sourceName string) (*models.Rearrangement, error) {
	if r.BeginErr != nil {
		return nil, r.BeginErr
	}
	run := models.NewRearrangement(len(r.Runs)+1, sourceID, sourceName)
	run.SetID(fmt.Sprintf("run-%d", len(r.Runs)+1))
	r.Runs = append(r.Runs, run)
	return run, nil
}

func (r *MockRecorder) End(run *models.Rearrangement) error {
	r.Ended = append(r.Ended, run)
	return nil
}

// FWriter fails every write.
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
