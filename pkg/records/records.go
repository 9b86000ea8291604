// Package records defines the five value types served by the garden
// data endpoint and the decoding rules that turn raw payloads into
// them. The provider emits every field as text, including coordinates
// and sequence numbers, so the structs mirror that and parsing happens
// on demand.
package records

import (
	"strings"

	"ness-field-guide/pkg/geomath"
)

// AccessionAlive is the accession-status code marking a plant as
// currently growing in the garden. Comparison is case-insensitive.
const AccessionAlive = "C"

// Bed is a planting area. The coordinate is optional: beds with
// absent or unparseable lat/lon are simply position-less.
type Bed struct {
	Recnum    string `json:"recnum"`
	ShortName string `json:"short_name"`
	FullName  string `json:"full_name"`
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
}

// Coordinate reports the bed location when both components parse.
func (b Bed) Coordinate() (geomath.Point, bool) {
	return geomath.ParseCoordinate(b.Latitude, b.Longitude)
}

// Plant is one accession record. Bed holds a whitespace-separated
// list of bed identifiers; a plant may grow in zero, one, or many beds.
type Plant struct {
	Recnum               string `json:"recnum"`
	Accsta               string `json:"accsta"`
	Genus                string `json:"genus"`
	Species              string `json:"species"`
	InfraspecificEpithet string `json:"infraspecific_epithet"`
	VernacularName       string `json:"vernacular_name"`
	CultivarName         string `json:"cultivar_name"`
	Bed                  string `json:"bed"`
	Latitude             string `json:"latitude"`
	Longitude            string `json:"longitude"`
}

// Alive reports whether the accession status marks the plant as
// currently growing.
func (p Plant) Alive() bool {
	return strings.EqualFold(strings.TrimSpace(p.Accsta), AccessionAlive)
}

// BedList splits the bed-membership field on whitespace and drops
// empty tokens. Duplicate tokens are preserved as-is.
func (p Plant) BedList() []string {
	return strings.Fields(p.Bed)
}

// Coordinate reports the plant origin location when present.
func (p Plant) Coordinate() (geomath.Point, bool) {
	return geomath.ParseCoordinate(p.Latitude, p.Longitude)
}

// Title renders the botanical name "Genus species epithet" with the
// epithet omitted when absent.
func (p Plant) Title() string {
	return strings.TrimSpace(p.Genus + " " + p.Species + " " + p.InfraspecificEpithet)
}

// Subtitle renders the vernacular name and cultivar the way the list
// view shows them: "common name – 'Cultivar'".
func (p Plant) Subtitle() string {
	var sub string
	if vn := strings.TrimSpace(p.VernacularName); vn != "" {
		sub = vn
	}
	if cv := strings.TrimSpace(p.CultivarName); cv != "" {
		if sub == "" {
			sub = "'" + cv + "'"
		} else {
			sub += " – '" + cv + "'"
		}
	}
	return sub
}

// ImageRef links an image file to the plant it depicts. Many images
// may reference one plant; the first by arrival order is treated as
// the primary/thumbnail image.
type ImageRef struct {
	Recnum      string `json:"recnum"`
	PlantRecnum string `json:"plant_recnum"`
	Filename    string `json:"filename"`
}

// Trail is a named walking route. Records either come straight from
// the provider or are synthesized from the distinct trail ids seen in
// trail points when no metadata is available.
type Trail struct {
	ID          string `json:"ID"`
	Name        string `json:"Trail_Name"`
	Distance    string `json:"Distance"`
	Duration    string `json:"Duration"`
	Description string `json:"Description"`
	Difficulty  string `json:"Difficulty"`
	Active      string `json:"Active"`
}

// TrailPoint is one vertex of a trail's path.
type TrailPoint struct {
	ID         string `json:"ID"`
	TrailID    string `json:"Trail_ID"`
	SequenceNo string `json:"Sequence_No"`
	Latitude   string `json:"Latitude"`
	Longitude  string `json:"Longitude"`
	Active     string `json:"Active"`
}

// Coordinate reports the vertex location when both components parse.
func (p TrailPoint) Coordinate() (geomath.Point, bool) {
	return geomath.ParseCoordinate(p.Latitude, p.Longitude)
}
