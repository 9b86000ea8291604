// Package catalog builds the derived indices the field guide is
// organised around: plants grouped by the bed(s) they grow in, images
// grouped by plant, and the bed lookup table. All functions return
// fresh structures and retain nothing, so callers can rebuild on every
// fetch cycle and replace the previous snapshot wholesale.
package catalog

import (
	"sort"

	"ness-field-guide/pkg/records"
)

// Snapshot is the read-only aggregate handed to the rendering layer.
// It is replaced as a unit whenever source data changes; consumers
// must never mutate it.
type Snapshot struct {
	Generation    int64                          `json:"generation"`
	Beds          []records.Bed                  `json:"beds"`
	BedLookup     map[string]records.Bed         `json:"bedLookup"`
	PlantsByBed   map[string][]records.Plant     `json:"plantsByBed"`
	BedOrder      []string                       `json:"bedOrder"`
	ImagesByPlant map[string][]records.ImageRef  `json:"imagesByPlant"`
	Trails        []records.Trail                `json:"trails"`
	TrailPoints   []records.TrailPoint           `json:"trailLocations"`
	FailedKinds   []records.Kind                 `json:"failedKinds,omitempty"`
}

// FilterAlive keeps only plants whose accession status marks them as
// currently growing. The function is idempotent.
func FilterAlive(plants []records.Plant) []records.Plant {
	out := make([]records.Plant, 0, len(plants))
	for _, p := range plants {
		if p.Alive() {
			out = append(out, p)
		}
	}
	return out
}

// IndexByBed groups plants under every bed id listed in their
// bed-membership field, preserving first-seen order within a bed.
// Duplicate tokens in one plant's list are appended once per
// occurrence, matching the provider's own data discipline.
func IndexByBed(plants []records.Plant) map[string][]records.Plant {
	grouped := make(map[string][]records.Plant)
	for _, p := range plants {
		for _, bed := range p.BedList() {
			grouped[bed] = append(grouped[bed], p)
		}
	}
	return grouped
}

// BedOrder returns the key set of a plant-by-bed index in a
// deterministic (lexical) starting order. Ranking by live distance
// later permutes this slice but never adds or removes keys.
func BedOrder(plantsByBed map[string][]records.Plant) []string {
	order := make([]string, 0, len(plantsByBed))
	for bed := range plantsByBed {
		order = append(order, bed)
	}
	sort.Strings(order)
	return order
}

// IndexImages groups image references by owning plant id, keeping
// arrival order so the first image stays the presentational primary.
func IndexImages(images []records.ImageRef) map[string][]records.ImageRef {
	grouped := make(map[string][]records.ImageRef)
	for _, img := range images {
		grouped[img.PlantRecnum] = append(grouped[img.PlantRecnum], img)
	}
	return grouped
}

// IndexBeds builds a lookup keyed by both the bed id and its short
// name so header labels and canonical ids both resolve. When the
// provider hands out colliding keys the later bed silently wins;
// duplicate-key reporting is deliberately out of scope.
func IndexBeds(beds []records.Bed) map[string]records.Bed {
	lookup := make(map[string]records.Bed, len(beds)*2)
	for _, bed := range beds {
		lookup[bed.Recnum] = bed
		lookup[bed.ShortName] = bed
	}
	return lookup
}
