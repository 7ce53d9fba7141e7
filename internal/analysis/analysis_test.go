package analysis

import (
	"errors"
	"math"
	"testing"

	"github.com/desertthunder/segue/internal/models"
	"github.com/desertthunder/segue/internal/shared"
	"github.com/desertthunder/segue/internal/store"
	"github.com/google/go-cmp/cmp"
)

func track(id, name string, artists []string, key, mode int, valence, energy float64) models.Track {
	return models.Track{ID: id, Name: name, Artists: artists, Key: key, Mode: mode, Valence: valence, Energy: energy, BPM: 120, Popularity: 50}
}

func newStore(t *testing.T, tracks ...models.Track) *store.Store {
	t.Helper()
	s := store.New()
	for _, tr := range tracks {
		if err := s.Add(store.FromModel(tr)); err != nil {
			t.Fatalf("failed to add %s: %v", tr.ID, err)
		}
	}
	return s
}

func TestKeyDistance(t *testing.T) {
	tc := []struct {
		a, b int
		want int
	}{
		{0, 0, 0},
		{0, 11, 1},
		{11, 0, 1},
		{0, 6, 6},
		{2, 9, 5},
		{3, 1, 2},
		{10, 1, 3},
	}
	for _, tt := range tc {
		if got := KeyDistance(tt.a, tt.b); got != tt.want {
			t.Errorf("KeyDistance(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestBetween(t *testing.T) {
	w := DefaultWeights()

	t.Run("weighted sum", func(t *testing.T) {
		a := track("a", "One", []string{"X"}, 0, 1, 0.2, 0.9)
		b := track("b", "Two", []string{"Y"}, 2, 0, 0.5, 0.4)

		got := Between(a, b, w)
		want := 15*2 + 5*1 + 0.3 + 0.5
		if got.Kind != Genuine || math.Abs(got.Value-want) > 1e-9 {
			t.Errorf("expected genuine %v, got %v", want, got)
		}
	})

	t.Run("key wraps around", func(t *testing.T) {
		a := track("a", "One", []string{"X"}, 0, 1, 0.5, 0.5)
		b := track("b", "Two", []string{"Y"}, 11, 1, 0.5, 0.5)

		if got := Between(a, b, w); got != GenuineDistance(15) {
			t.Errorf("expected 15, got %v", got)
		}
	})

	t.Run("symmetric", func(t *testing.T) {
		a := track("a", "One", []string{"X"}, 3, 0, 0.1, 0.7)
		b := track("b", "Two", []string{"Y"}, 8, 1, 0.6, 0.2)

		if Between(a, b, w) != Between(b, a, w) {
			t.Error("expected distance to be symmetric")
		}
	})

	t.Run("duplicate regardless of other attributes", func(t *testing.T) {
		a := track("a", "Song", []string{"X", "Y"}, 0, 0, 0.0, 0.0)
		b := track("b", "Song", []string{"Z", "Y"}, 7, 1, 1.0, 1.0)

		if got := Between(a, b, w); got.Kind != Duplicate {
			t.Errorf("expected duplicate, got %v", got)
		}
	})

	t.Run("duplicate takes priority over undetectable", func(t *testing.T) {
		a := track("a", "Song", []string{"X"}, -1, 0, 0.5, 0.5)
		b := track("b", "Song", []string{"X"}, 4, 0, 0.5, 0.5)

		if got := Between(a, b, w); got.Kind != Duplicate {
			t.Errorf("expected duplicate, got %v", got)
		}
	})

	t.Run("same name without shared artist is genuine", func(t *testing.T) {
		a := track("a", "Song", []string{"X"}, 1, 0, 0.5, 0.5)
		b := track("b", "Song", []string{"Y"}, 1, 0, 0.5, 0.5)

		if got := Between(a, b, w); got != GenuineDistance(0) {
			t.Errorf("expected genuine 0, got %v", got)
		}
	})

	t.Run("undetectable key propagates", func(t *testing.T) {
		a := track("a", "One", []string{"X"}, -1, 0, 0.5, 0.5)
		b := track("b", "Two", []string{"Y"}, 4, 0, 0.5, 0.5)

		if got := Between(a, b, w); got.Kind != Undetectable {
			t.Errorf("expected undetectable, got %v", got)
		}
		if got := Between(b, a, w); got.Kind != Undetectable {
			t.Errorf("expected undetectable, got %v", got)
		}
	})
}

func TestDistanceFloat(t *testing.T) {
	tc := []struct {
		name string
		d    Distance
		want float64
	}{
		{name: "genuine", d: GenuineDistance(3.5), want: 3.5},
		{name: "duplicate", d: Distance{Kind: Duplicate}, want: 0},
		{name: "undetectable", d: Distance{Kind: Undetectable}, want: -1},
	}
	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.d.Float(); got != tt.want {
				t.Errorf("Float() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMetric(t *testing.T) {
	s := newStore(t,
		track("a", "One", []string{"X"}, 0, 1, 0.5, 0.5),
		track("b", "Two", []string{"Y"}, 1, 1, 0.5, 0.5),
		track("c", "Three", []string{"Z"}, -1, 1, 0.5, 0.5),
	)
	m := NewMetric(s, DefaultWeights())

	t.Run("measures stored tracks", func(t *testing.T) {
		d, err := m.Measure("a", "b")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if d != GenuineDistance(15) {
			t.Errorf("expected 15, got %v", d)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		if _, err := m.Measure("a", "missing"); !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected ErrTrackNotFound, got %v", err)
		}
		if _, err := m.Measure("missing", "a"); !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected ErrTrackNotFound, got %v", err)
		}
	})

	t.Run("custom weights", func(t *testing.T) {
		m := NewMetric(s, WeightsFromConfig(shared.AnalysisConfig{KeyWeight: 2}))
		d, _ := m.Measure("a", "b")
		if d != GenuineDistance(2) {
			t.Errorf("expected 2, got %v", d)
		}
	})

	t.Run("reports undetectable ids", func(t *testing.T) {
		if !m.Undetectable("c") || m.Undetectable("a") || m.Undetectable("missing") {
			t.Error("unexpected undetectable classification")
		}
	})
}

func TestAnalyze(t *testing.T) {
	t.Run("filters undetectable pairs", func(t *testing.T) {
		s := newStore(t,
			track("a", "One", []string{"X"}, 0, 1, 0.5, 0.5),
			track("b", "Two", []string{"Y"}, -1, 1, 0.5, 0.5),
			track("c", "Three", []string{"Z"}, 2, 1, 0.5, 0.5),
		)

		res, err := Analyze(NewMetric(s, DefaultWeights()), s.IDs())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		want := []Pair{{Distance: 30, A: "a", B: "c"}}
		if diff := cmp.Diff(want, res.Pairs); diff != "" {
			t.Errorf("Pairs mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]string{"b"}, res.Undetectable); diff != "" {
			t.Errorf("Undetectable mismatch (-want +got):\n%s", diff)
		}
		if res.Measured != 3 {
			t.Errorf("expected 3 measurements, got %d", res.Measured)
		}
		if res.MostSimilar != res.MostDissimilar {
			t.Error("expected the only pair to be both most similar and most dissimilar")
		}
	})

	t.Run("keeps genuine zero distances", func(t *testing.T) {
		s := newStore(t,
			track("a", "One", []string{"X"}, 5, 0, 0.3, 0.3),
			track("b", "Two", []string{"Y"}, 5, 0, 0.3, 0.3),
			track("c", "Three", []string{"Z"}, 6, 0, 0.3, 0.3),
		)

		res, err := Analyze(NewMetric(s, DefaultWeights()), s.IDs())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(res.Pairs) != 3 {
			t.Fatalf("expected 3 pairs, got %d", len(res.Pairs))
		}
		if res.MostSimilar != (Pair{Distance: 0, A: "a", B: "b"}) {
			t.Errorf("unexpected most similar pair %+v", res.MostSimilar)
		}
		if res.Min != 0 || res.Max != 15 {
			t.Errorf("expected min 0 and max 15, got %v and %v", res.Min, res.Max)
		}
		if math.Abs(res.Mean-10) > 1e-9 {
			t.Errorf("expected mean 10, got %v", res.Mean)
		}
	})

	t.Run("first extreme pair wins ties", func(t *testing.T) {
		s := newStore(t,
			track("a", "One", []string{"X"}, 0, 0, 0.5, 0.5),
			track("b", "Two", []string{"Y"}, 1, 0, 0.5, 0.5),
			track("c", "Three", []string{"Z"}, 2, 0, 0.5, 0.5),
		)

		res, err := Analyze(NewMetric(s, DefaultWeights()), s.IDs())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if res.MostSimilar.A != "a" || res.MostSimilar.B != "b" {
			t.Errorf("expected a-b to be most similar, got %+v", res.MostSimilar)
		}
		if res.MostDissimilar.A != "a" || res.MostDissimilar.B != "c" {
			t.Errorf("expected a-c to be most dissimilar, got %+v", res.MostDissimilar)
		}
	})

	t.Run("fewer than two tracks", func(t *testing.T) {
		s := newStore(t, track("a", "One", []string{"X"}, 0, 0, 0.5, 0.5))
		if _, err := Analyze(NewMetric(s, DefaultWeights()), s.IDs()); !errors.Is(err, shared.ErrEmptyComparisonSet) {
			t.Errorf("expected ErrEmptyComparisonSet, got %v", err)
		}
	})

	t.Run("every pair filtered", func(t *testing.T) {
		s := newStore(t,
			track("a", "Song", []string{"X"}, 0, 0, 0.5, 0.5),
			track("b", "Song", []string{"X"}, 0, 0, 0.5, 0.5),
		)

		res, err := Analyze(NewMetric(s, DefaultWeights()), s.IDs())
		if !errors.Is(err, shared.ErrEmptyComparisonSet) {
			t.Fatalf("expected ErrEmptyComparisonSet, got %v", err)
		}
		if len(res.Duplicates) != 1 {
			t.Errorf("expected the duplicate to be reported, got %+v", res.Duplicates)
		}
	})

	t.Run("measurement errors abort", func(t *testing.T) {
		s := newStore(t, track("a", "One", []string{"X"}, 0, 0, 0.5, 0.5))
		if _, err := Analyze(NewMetric(s, DefaultWeights()), []string{"a", "ghost"}); !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected ErrTrackNotFound, got %v", err)
		}
	})
}

func TestReport(t *testing.T) {
	s := newStore(t,
		track("a1", "Song", []string{"X", "Y"}, 0, 1, 0.5, 0.5),
		track("b", "Other", []string{"Z"}, 3, 1, 0.5, 0.5),
		track("a2", "Song", []string{"X"}, 0, 1, 0.5, 0.5),
		track("a3", "Song", []string{"Y"}, 0, 1, 0.5, 0.5),
		track("c", "Third", []string{"W"}, 5, 0, 0.1, 0.9),
	)
	m := NewMetric(s, DefaultWeights())

	res, err := Analyze(m, s.IDs())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	rep := res.Report(s)

	t.Run("groups duplicates", func(t *testing.T) {
		want := []DuplicateEntry{{Name: "Song", Artists: []string{"X", "Y"}, IDs: []string{"a1", "a2", "a3"}}}
		if diff := cmp.Diff(want, rep.Duplicates); diff != "" {
			t.Errorf("Duplicates mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("labels extreme pairs", func(t *testing.T) {
		if rep.MostDissimilar != [2]string{"Song - X, Y", "Third - W"} {
			t.Errorf("unexpected most dissimilar %v", rep.MostDissimilar)
		}
	})

	t.Run("is idempotent", func(t *testing.T) {
		again, err := Analyze(m, s.IDs())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if diff := cmp.Diff(rep, again.Report(s)); diff != "" {
			t.Errorf("second report differs (-first +second):\n%s", diff)
		}
	})

	t.Run("renders lines", func(t *testing.T) {
		lines := rep.Lines()
		if lines[1] != "\t - Song by X, Y" {
			t.Errorf("unexpected duplicate line %q", lines[1])
		}
		last := lines[len(lines)-1]
		if last != "Two most dissimilar songs are Song - X, Y and Third - W" {
			t.Errorf("unexpected last line %q", last)
		}
	})
}
