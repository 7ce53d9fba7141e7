package analysis

import (
	"fmt"

	"github.com/desertthunder/segue/internal/shared"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Pair is a genuine distance between tracks A and B, where A precedes B in the input.
type Pair struct {
	Distance float64 `json:"distance"`
	A        string  `json:"a"`
	B        string  `json:"b"`
}

// Result is the outcome of [Analyze].
type Result struct {
	Pairs          []Pair   // genuine pairs in enumeration order
	Duplicates     []Pair   // duplicate pairs in discovery order, Distance is 0
	Undetectable   []string // ids whose key could not be detected
	MostSimilar    Pair
	MostDissimilar Pair
	Min            float64
	Max            float64
	Mean           float64
	Measured       int // number of pairs compared
}

// Analyze compares every unordered pair of ids in input order.
//
// Duplicate and undetectable pairs are filtered out of Pairs. It fails with
// [shared.ErrEmptyComparisonSet] when fewer than two ids are given or nothing comparable remains.
func Analyze(m Measurer, ids []string) (*Result, error) {
	if len(ids) < 2 {
		return nil, fmt.Errorf("%w: %d tracks", shared.ErrEmptyComparisonSet, len(ids))
	}

	res := &Result{}
	flagged := make(map[string]bool)
	checker, _ := m.(KeyChecker)

	for i, a := range ids {
		for _, b := range ids[i+1:] {
			d, err := m.Measure(a, b)
			if err != nil {
				return nil, fmt.Errorf("failed to measure %s and %s: %w", a, b, err)
			}
			res.Measured++

			switch d.Kind {
			case Duplicate:
				res.Duplicates = append(res.Duplicates, Pair{A: a, B: b})
			case Undetectable:
				if checker == nil {
					continue
				}
				for _, id := range []string{a, b} {
					if !flagged[id] && checker.Undetectable(id) {
						flagged[id] = true
						res.Undetectable = append(res.Undetectable, id)
					}
				}
			default:
				res.Pairs = append(res.Pairs, Pair{Distance: d.Value, A: a, B: b})
			}
		}
	}

	if len(res.Pairs) == 0 {
		return res, fmt.Errorf("%w: no comparable pairs among %d tracks", shared.ErrEmptyComparisonSet, len(ids))
	}

	values := Distances(res.Pairs)
	res.MostSimilar = res.Pairs[floats.MinIdx(values)]
	res.MostDissimilar = res.Pairs[floats.MaxIdx(values)]
	res.Min = res.MostSimilar.Distance
	res.Max = res.MostDissimilar.Distance
	res.Mean = stat.Mean(values, nil)

	return res, nil
}

// Distances returns the distance of every pair.
func Distances(pairs []Pair) []float64 {
	out := make([]float64, len(pairs))
	for i, p := range pairs {
		out[i] = p.Distance
	}
	return out
}
