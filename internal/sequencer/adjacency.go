package sequencer

import (
	"fmt"

	"github.com/desertthunder/segue/internal/analysis"
	"golang.org/x/sync/errgroup"
)

// adjacency is the full symmetric distance matrix indexed by position in the input.
type adjacency [][]analysis.Distance

func buildAdjacency(m analysis.Measurer, ids []string, parallel bool) (adjacency, error) {
	n := len(ids)
	adj := make(adjacency, n)
	for i := range adj {
		adj[i] = make([]analysis.Distance, n)
	}

	row := func(i int) error {
		for j := i + 1; j < n; j++ {
			d, err := m.Measure(ids[i], ids[j])
			if err != nil {
				return fmt.Errorf("failed to measure %s and %s: %w", ids[i], ids[j], err)
			}
			adj[i][j] = d
			adj[j][i] = d
		}
		return nil
	}

	if !parallel {
		for i := range n {
			if err := row(i); err != nil {
				return nil, err
			}
		}
		return adj, nil
	}

	var g errgroup.Group
	for i := range n {
		g.Go(func() error { return row(i) })
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return adj, nil
}

// walk grows a tour from the edge start-finish and rotates its head to the tail.
//
// Duplicates count as a zero step. Tracks with an undetectable key are taken only when nothing
// comparable remains; they do not move the cursor and their steps are not recorded.
func (adj adjacency) walk(start, finish int) ([]int, []float64) {
	n := len(adj)
	visited := make([]bool, n)
	visited[start], visited[finish] = true, true

	order := make([]int, 0, n)
	order = append(order, finish, start)
	var steps []float64

	cursor := start
	for len(order) < n {
		next, step := -1, 0.0
		for j := range n {
			if visited[j] {
				continue
			}
			d := adj[cursor][j]
			if d.Kind == analysis.Undetectable {
				continue
			}
			v := d.Value
			if d.Kind == analysis.Duplicate {
				v = 0
			}
			if next == -1 || v < step {
				next, step = j, v
			}
		}

		if next == -1 {
			for j := range n {
				if !visited[j] {
					visited[j] = true
					order = append(order, j)
					break
				}
			}
			continue
		}

		visited[next] = true
		order = append(order, next)
		steps = append(steps, step)
		cursor = next
	}

	return append(order[1:], order[0]), steps
}

// orderScore is [OrderScore] over positions.
func (adj adjacency) orderScore(order []int) float64 {
	var steps []float64
	for i := 1; i < len(order); i++ {
		if d := adj[order[i-1]][order[i]]; d.Comparable() {
			steps = append(steps, d.Value)
		}
	}
	return score(steps)
}
