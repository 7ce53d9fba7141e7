package charts

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/desertthunder/segue/internal/models"
	"github.com/desertthunder/segue/internal/shared"
	th "github.com/desertthunder/segue/internal/testing"
	"github.com/google/go-cmp/cmp"
)

func sampleTracks() []models.Track {
	return []models.Track{
		{ID: "a", Key: 0, Mode: 1, Valence: 0.2, Energy: 0.4, Popularity: 5},
		{ID: "b", Key: 9, Mode: 0, Valence: 0.8, Energy: 0.9, Popularity: 55},
		{ID: "c", Key: 0, Mode: 1, Valence: 0.5, Energy: 0.1, Popularity: 100},
		{ID: "d", Key: models.UndetectableKey, Mode: 1, Valence: 0.5, Energy: 0.5, Popularity: 59},
	}
}

func TestPopularityBins(t *testing.T) {
	got := PopularityBins(sampleTracks())
	want := [10]int{1, 0, 0, 0, 0, 2, 0, 0, 0, 1}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("bins mismatch (-want +got):\n%s", diff)
	}
}

func TestKeyCounts(t *testing.T) {
	minor, major := KeyCounts(sampleTracks())

	if minor[7] != 1 {
		t.Errorf("expected A minor at 8A, got %v", minor)
	}
	if major[7] != 2 {
		t.Errorf("expected two C major tracks at 8B, got %v", major)
	}

	total := 0
	for i := range 12 {
		total += minor[i] + major[i]
	}
	if total != 3 {
		t.Errorf("expected undetectable key to be left out, counted %d", total)
	}
}

func TestValenceStats(t *testing.T) {
	lo, hi, mean := ValenceStats(sampleTracks())
	if lo != 2 || hi != 8 || math.Abs(mean-5) > 1e-9 {
		t.Errorf("unexpected stats %v %v %v", lo, hi, mean)
	}

	if lo, hi, mean := ValenceStats(nil); lo != 0 || hi != 0 || mean != 0 {
		t.Errorf("expected zeros for no tracks, got %v %v %v", lo, hi, mean)
	}
}

func TestRenderer(t *testing.T) {
	t.Run("renders every chart", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "charts")
		r, err := New(dir, "")
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}

		files, err := r.All(sampleTracks())
		if err != nil {
			t.Fatalf("All failed: %v", err)
		}

		want := []string{
			filepath.Join(dir, "popularity.png"),
			filepath.Join(dir, "keys.png"),
			filepath.Join(dir, "valence.png"),
		}
		if diff := cmp.Diff(want, files); diff != "" {
			t.Errorf("files mismatch (-want +got):\n%s", diff)
		}
		for _, f := range files {
			th.AssertFileExists(t, f)
		}
	})

	t.Run("svg output", func(t *testing.T) {
		r, err := New(t.TempDir(), "svg")
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		file, err := r.KeyWheel(sampleTracks())
		if err != nil {
			t.Fatalf("KeyWheel failed: %v", err)
		}
		if filepath.Ext(file) != ".svg" {
			t.Errorf("expected svg file, got %s", file)
		}
		th.AssertFileExists(t, file)
	})

	t.Run("no tracks", func(t *testing.T) {
		r, _ := New(t.TempDir(), "png")
		if _, err := r.All(nil); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("invalid options", func(t *testing.T) {
		if _, err := New("", "png"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
		if _, err := New(t.TempDir(), "gif"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}
