package analysis

import (
	"fmt"
	"math"

	"github.com/desertthunder/segue/internal/models"
	"github.com/desertthunder/segue/internal/shared"
)

// Kind classifies a [Distance].
type Kind int

const (
	// Genuine distances carry a comparable value.
	Genuine Kind = iota
	// Duplicate marks the same song under two ids.
	Duplicate
	// Undetectable marks a pair where at least one key is unknown.
	Undetectable
)

func (k Kind) String() string {
	switch k {
	case Genuine:
		return "genuine"
	case Duplicate:
		return "duplicate"
	case Undetectable:
		return "undetectable"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Distance is the result of comparing two tracks. Value is only meaningful for [Genuine].
type Distance struct {
	Kind  Kind
	Value float64
}

// GenuineDistance returns a comparable distance of v.
func GenuineDistance(v float64) Distance {
	return Distance{Kind: Genuine, Value: v}
}

// Comparable reports whether d is [Genuine].
func (d Distance) Comparable() bool {
	return d.Kind == Genuine
}

// Float returns the numeric report form: 0 for duplicates, -1 for undetectable pairs.
func (d Distance) Float() float64 {
	switch d.Kind {
	case Duplicate:
		return 0
	case Undetectable:
		return -1
	default:
		return d.Value
	}
}

func (d Distance) String() string {
	if d.Kind != Genuine {
		return d.Kind.String()
	}
	return fmt.Sprintf("%.3f", d.Value)
}

// Weights scale each attribute difference.
type Weights struct {
	Key     float64
	Mode    float64
	Valence float64
	Energy  float64
}

// DefaultWeights returns 15/5/1/1, so one step round the key wheel outweighs everything else.
func DefaultWeights() Weights {
	return Weights{Key: 15, Mode: 5, Valence: 1, Energy: 1}
}

// WeightsFromConfig reads the [analysis] section of cfg.
func WeightsFromConfig(cfg shared.AnalysisConfig) Weights {
	return Weights{Key: cfg.KeyWeight, Mode: cfg.ModeWeight, Valence: cfg.ValenceWeight, Energy: cfg.EnergyWeight}
}

// KeyDistance returns the number of semitone steps between two pitch classes on the 12-point wheel.
func KeyDistance(a, b int) int {
	d := a - b
	return min(abs(d), abs(d+12), abs(d-12))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Between compares two tracks directly.
func Between(a, b models.Track, w Weights) Distance {
	if a.Name == b.Name && a.SharesArtist(b) {
		return Distance{Kind: Duplicate}
	}
	if !a.HasKey() || !b.HasKey() {
		return Distance{Kind: Undetectable}
	}

	kd := float64(KeyDistance(a.Key, b.Key))
	md := math.Abs(float64(a.Mode - b.Mode))
	vd := math.Abs(a.Valence - b.Valence)
	ed := math.Abs(a.Energy - b.Energy)

	return GenuineDistance(w.Key*kd + w.Mode*md + w.Valence*vd + w.Energy*ed)
}

// Lookup resolves track ids.
type Lookup interface {
	Get(id string) (models.Track, bool)
}

// Measurer compares two tracks by id.
type Measurer interface {
	Measure(a, b string) (Distance, error)
}

// KeyChecker is implemented by measurers that can tell which ids have an undetectable key.
type KeyChecker interface {
	Undetectable(id string) bool
}

// Metric measures distances between tracks held in a store.
type Metric struct {
	Store   Lookup
	Weights Weights
}

// NewMetric returns a Metric over s with weights w.
func NewMetric(s Lookup, w Weights) *Metric {
	return &Metric{Store: s, Weights: w}
}

// Measure returns the distance between tracks a and b.
func (m *Metric) Measure(a, b string) (Distance, error) {
	ta, ok := m.Store.Get(a)
	if !ok {
		return Distance{}, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, a)
	}
	tb, ok := m.Store.Get(b)
	if !ok {
		return Distance{}, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, b)
	}
	return Between(ta, tb, m.Weights), nil
}

// Undetectable reports whether id resolves to a track without a key.
func (m *Metric) Undetectable(id string) bool {
	t, ok := m.Store.Get(id)
	return ok && !t.HasKey()
}
