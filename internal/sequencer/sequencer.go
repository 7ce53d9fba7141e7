// Package sequencer orders tracks so that neighbours are close under the distance metric.
//
// It runs a greedy nearest-neighbour walk from several starting edges (the most distant pairs),
// scores the order each walk produces by mean step plus largest step, and keeps the best one.
// The input order is returned when no walk beats it.
package sequencer

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"

	"github.com/desertthunder/segue/internal/analysis"
	"github.com/desertthunder/segue/internal/shared"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultCandidates is the number of starting edges tried.
const DefaultCandidates = 8

// Options tune [Sequence].
type Options struct {
	Candidates int  // starting edges to try, DefaultCandidates when zero
	Parallel   bool // build adjacency rows and walks concurrently
}

// DefaultOptions returns the standard settings.
func DefaultOptions() Options {
	return Options{Candidates: DefaultCandidates}
}

// OptionsFromConfig reads the [sequencer] section of cfg.
func OptionsFromConfig(cfg shared.SequencerConfig) Options {
	return Options{Candidates: cfg.Candidates, Parallel: cfg.Parallel}
}

// Candidate is one walk started from a candidate edge.
type Candidate struct {
	Distance float64   `json:"distance"` // distance of the starting edge
	Start    string    `json:"start"`
	Finish   string    `json:"finish"`
	Order    []string  `json:"order"`
	Steps    []float64 `json:"steps"` // greedy steps of the walk, before rotation
	Score    float64   `json:"score"` // [OrderScore] of Order
}

// Result is the outcome of [Sequence].
type Result struct {
	Order      []string
	Score      float64 // [OrderScore] of the returned order, or Baseline when nothing improved
	Baseline   float64
	InputScore float64 // [OrderScore] of the input
	Candidates []Candidate
	Chosen     int // index into Candidates, -1 when the input order was kept
	Improved   bool
}

// Sequence reorders ids using the genuine pairs from [analysis.Analyze].
//
// The result is always a permutation of ids. A candidate is only taken when its order scores
// strictly below the best so far, which starts at or below the input order's score.
func Sequence(m analysis.Measurer, ids []string, pairs []analysis.Pair, opts Options) (*Result, error) {
	unchanged := &Result{Order: slices.Clone(ids), Chosen: -1}
	if len(ids) < 2 || len(pairs) == 0 {
		return unchanged, nil
	}
	if opts.Candidates <= 0 {
		opts.Candidates = DefaultCandidates
	}

	idx := make(map[string]int, len(ids))
	for i, id := range ids {
		if _, ok := idx[id]; ok {
			return nil, fmt.Errorf("%w: duplicate id %s", shared.ErrInvalidArgument, id)
		}
		idx[id] = i
	}
	for _, p := range pairs {
		if _, ok := idx[p.A]; !ok {
			return nil, fmt.Errorf("%w: pair references unknown id %s", shared.ErrInvalidArgument, p.A)
		}
		if _, ok := idx[p.B]; !ok {
			return nil, fmt.Errorf("%w: pair references unknown id %s", shared.ErrInvalidArgument, p.B)
		}
	}

	adj, err := buildAdjacency(m, ids, opts.Parallel)
	if err != nil {
		return nil, err
	}

	starts := topPairs(pairs, opts.Candidates)
	meanDist := stat.Mean(analysis.Distances(pairs), nil)

	inputScore := adj.orderScore(indexes(idx, ids))
	baseline := math.Min(meanDist+starts[0].Distance, inputScore)

	candidates := make([]Candidate, len(starts))
	walkOne := func(i int) {
		p := starts[i]
		order, steps := adj.walk(idx[p.A], idx[p.B])
		candidates[i] = Candidate{
			Distance: p.Distance,
			Start:    p.A,
			Finish:   p.B,
			Order:    names(ids, order),
			Steps:    steps,
			Score:    adj.orderScore(order),
		}
	}

	if opts.Parallel {
		var wg sync.WaitGroup
		for i := range starts {
			wg.Add(1)
			go func() {
				defer wg.Done()
				walkOne(i)
			}()
		}
		wg.Wait()
	} else {
		for i := range starts {
			walkOne(i)
		}
	}

	res := fold(candidates, baseline)
	res.Baseline = baseline
	res.InputScore = inputScore
	res.Candidates = candidates
	if !res.Improved {
		res.Order = unchanged.Order
	}
	return res, nil
}

// fold picks the first candidate with the lowest score below baseline.
func fold(candidates []Candidate, baseline float64) *Result {
	best := &Result{Score: baseline, Chosen: -1}
	for i, c := range candidates {
		if c.Score < best.Score {
			best = &Result{Order: c.Order, Score: c.Score, Chosen: i, Improved: true}
		}
	}
	return best
}

// topPairs returns the n most distant pairs. Ties fall back to the ids, descending.
func topPairs(pairs []analysis.Pair, n int) []analysis.Pair {
	sorted := slices.Clone(pairs)
	slices.SortFunc(sorted, func(a, b analysis.Pair) int {
		return cmp.Or(
			cmp.Compare(b.Distance, a.Distance),
			strings.Compare(b.A, a.A),
			strings.Compare(b.B, a.B),
		)
	})
	return sorted[:min(n, len(sorted))]
}

// score is mean step plus largest step. A walk without measurable steps never wins.
func score(steps []float64) float64 {
	if len(steps) == 0 {
		return math.Inf(1)
	}
	return stat.Mean(steps, nil) + floats.Max(steps)
}

// OrderScore scores a fixed order by its genuine adjacent distances.
// Orders without any measurable neighbour score +Inf.
func OrderScore(m analysis.Measurer, order []string) (float64, error) {
	var steps []float64
	for i := 1; i < len(order); i++ {
		d, err := m.Measure(order[i-1], order[i])
		if err != nil {
			return 0, err
		}
		if d.Comparable() {
			steps = append(steps, d.Value)
		}
	}
	return score(steps), nil
}

func indexes(idx map[string]int, ids []string) []int {
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = idx[id]
	}
	return out
}

func names(ids []string, order []int) []string {
	out := make([]string, len(order))
	for i, o := range order {
		out[i] = ids[o]
	}
	return out
}
