package analysis

import (
	"fmt"
	"slices"
	"strings"

	"github.com/desertthunder/segue/internal/shared"
)

// DuplicateEntry is one song that appears under more than one id.
type DuplicateEntry struct {
	Name    string   `json:"name"`
	Artists []string `json:"artists"`
	IDs     []string `json:"ids"`
}

// Report is the display form of a [Result].
type Report struct {
	Duplicates     []DuplicateEntry `json:"duplicates"`
	Undetectable   []string         `json:"undetectable,omitempty"`
	MostSimilar    [2]string        `json:"most_similar"`
	MostDissimilar [2]string        `json:"most_dissimilar"`
	Min            float64          `json:"min"`
	Max            float64          `json:"max"`
	Mean           float64          `json:"mean"`
	Compared       int              `json:"compared"`
}

// Report resolves the ids of r to "<name> - <artists>" labels.
//
// Duplicates are grouped by the normalized name and artists of the first track of each pair, in
// order of discovery.
func (r *Result) Report(s Lookup) Report {
	rep := Report{
		MostSimilar:    [2]string{label(s, r.MostSimilar.A), label(s, r.MostSimilar.B)},
		MostDissimilar: [2]string{label(s, r.MostDissimilar.A), label(s, r.MostDissimilar.B)},
		Min:            r.Min,
		Max:            r.Max,
		Mean:           r.Mean,
		Compared:       len(r.Pairs),
	}

	index := make(map[string]int)
	for _, p := range r.Duplicates {
		t, ok := s.Get(p.A)
		if !ok {
			continue
		}
		k := shared.NormalizeTrackKey(t.Name, t.JoinedArtists())
		i, seen := index[k]
		if !seen {
			i = len(rep.Duplicates)
			index[k] = i
			rep.Duplicates = append(rep.Duplicates, DuplicateEntry{Name: t.Name, Artists: t.Artists, IDs: []string{p.A}})
		}
		entry := &rep.Duplicates[i]
		for _, id := range []string{p.A, p.B} {
			if !slices.Contains(entry.IDs, id) {
				entry.IDs = append(entry.IDs, id)
			}
		}
	}

	for _, id := range r.Undetectable {
		rep.Undetectable = append(rep.Undetectable, label(s, id))
	}

	return rep
}

// Lines renders the report as console sentences.
func (r Report) Lines() []string {
	var lines []string
	if len(r.Duplicates) > 0 {
		lines = append(lines, "The following tracks appear more than once (with different ids):")
		for _, d := range r.Duplicates {
			lines = append(lines, fmt.Sprintf("\t - %s by %s", d.Name, strings.Join(d.Artists, ", ")))
		}
		lines = append(lines, "These pairs of tracks are trivially the most similar, and are therefore ignored")
	}
	if len(r.Undetectable) > 0 {
		lines = append(lines, "The key of the following tracks could not be detected:")
		for _, l := range r.Undetectable {
			lines = append(lines, "\t - "+l)
		}
	}
	if r.Compared == 0 {
		return lines
	}
	lines = append(lines,
		fmt.Sprintf("Two most similar songs are %s and %s", r.MostSimilar[0], r.MostSimilar[1]),
		fmt.Sprintf("Two most dissimilar songs are %s and %s", r.MostDissimilar[0], r.MostDissimilar[1]),
	)
	return lines
}

func label(s Lookup, id string) string {
	if t, ok := s.Get(id); ok {
		return t.Label()
	}
	return id
}
