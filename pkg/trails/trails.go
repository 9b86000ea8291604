// Package trails turns raw trail point records into map-ready
// polylines and fills in trail metadata when the provider has none.
package trails

import (
	"sort"

	"ness-field-guide/pkg/geomath"
	"ness-field-guide/pkg/records"
)

// PathFor returns the polyline vertices for one trail: points matching
// trailID, minus any with an unparseable coordinate, in encounter
// order. The feed carries a Sequence_No field, but the provider has
// always served points pre-ordered, so the path connects them as
// received. An empty result is valid and draws nothing.
func PathFor(trailID string, points []records.TrailPoint) []geomath.Point {
	var path []geomath.Point
	for _, p := range points {
		if p.TrailID != trailID {
			continue
		}
		pt, ok := p.Coordinate()
		if !ok {
			continue
		}
		path = append(path, pt)
	}
	return path
}

// Merge combines provider trail metadata with the trail ids actually
// present in the point records. Every distinct id ends up with exactly
// one Trail: provided metadata wins, and ids lacking metadata get a
// synthesized placeholder named "Trail <id>". The result is sorted by
// id so trail pickers render stably.
func Merge(provided []records.Trail, points []records.TrailPoint) []records.Trail {
	byID := make(map[string]records.Trail)
	for _, t := range provided {
		byID[t.ID] = t
	}
	for _, p := range points {
		if _, ok := byID[p.TrailID]; ok {
			continue
		}
		byID[p.TrailID] = records.Trail{ID: p.TrailID, Name: "Trail " + p.TrailID}
	}

	out := make([]records.Trail, 0, len(byID))
	for _, t := range byID {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
