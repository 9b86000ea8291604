// Package bedrank orders the visible bed list by great-circle
// distance from the user's live position.
package bedrank

import (
	"math"
	"sort"

	"ness-field-guide/pkg/geomath"
	"ness-field-guide/pkg/records"
)

// Rank returns a new bed ordering sorted ascending by distance from
// user. Keys that do not resolve through lookup, or resolve to a bed
// without a parseable coordinate, never rank closer than a comparable
// bed and keep their relative order among themselves. The input slice
// is not modified, and the result is always a permutation of it. When
// user is nil (no position known yet) the order comes back unchanged.
func Rank(order []string, lookup map[string]records.Bed, user *geomath.Point) []string {
	ranked := make([]string, len(order))
	copy(ranked, order)
	if user == nil {
		return ranked
	}

	// Distances resolved once up front; NaN marks an incomparable bed.
	dist := make([]float64, len(ranked))
	for i, key := range ranked {
		dist[i] = math.NaN()
		bed, ok := lookup[key]
		if !ok {
			continue
		}
		if pt, ok := bed.Coordinate(); ok {
			dist[i] = geomath.Distance(pt, *user)
		}
	}

	idx := make([]int, len(ranked))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		da, db := dist[idx[a]], dist[idx[b]]
		if math.IsNaN(da) {
			return false
		}
		if math.IsNaN(db) {
			return true
		}
		return da < db
	})

	out := make([]string, len(ranked))
	for i, j := range idx {
		out[i] = ranked[j]
	}
	return out
}
