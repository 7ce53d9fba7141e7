// Package analysis measures how far apart two tracks are and summarises every pair of a playlist.
//
// The distance between two tracks is
//
//	15*kd + 5*|mode_a-mode_b| + |valence_a-valence_b| + |energy_a-energy_b|
//
// where kd is the circular distance of the two keys on the 12-point wheel (see [KeyDistance]).
// Two conditions short-circuit the formula and produce a tagged [Distance] instead of a value:
//   - [Duplicate] : same name and at least one shared artist
//   - [Undetectable] : at least one key is -1
//
// [Analyze] enumerates all n*(n-1)/2 pairs, drops the tagged ones and reports the
// duplicates, the most similar and the most dissimilar pair.
package analysis
