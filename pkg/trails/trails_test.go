package trails

import (
	"reflect"
	"testing"

	"ness-field-guide/pkg/geomath"
	"ness-field-guide/pkg/records"
)

// TestPathForEncounterOrder pins the documented behaviour: vertices
// follow arrival order even when Sequence_No disagrees.
func TestPathForEncounterOrder(t *testing.T) {
	t.Parallel()

	points := []records.TrailPoint{
		{TrailID: "T1", SequenceNo: "2", Latitude: "1", Longitude: "1"},
		{TrailID: "T1", SequenceNo: "1", Latitude: "2", Longitude: "2"},
	}
	got := PathFor("T1", points)
	want := []geomath.Point{{Lat: 1, Lon: 1}, {Lat: 2, Lon: 2}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("PathFor = %v, want encounter order %v", got, want)
	}
}

// TestPathForFiltersAndSkips drops other trails' points and points
// with unparseable coordinates.
func TestPathForFiltersAndSkips(t *testing.T) {
	t.Parallel()

	points := []records.TrailPoint{
		{TrailID: "T1", Latitude: "1", Longitude: "1"},
		{TrailID: "T2", Latitude: "9", Longitude: "9"},
		{TrailID: "T1", Latitude: "broken", Longitude: "1"},
		{TrailID: "T1", Latitude: "3", Longitude: "3"},
	}
	got := PathFor("T1", points)
	want := []geomath.Point{{Lat: 1, Lon: 1}, {Lat: 3, Lon: 3}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("PathFor = %v, want %v", got, want)
	}

	if empty := PathFor("T9", points); len(empty) != 0 {
		t.Fatalf("PathFor(unknown trail) = %v, want empty", empty)
	}
}

// TestMergeSynthesizesMissingTrails builds placeholders for ids seen
// only in point records and keeps provided metadata untouched.
func TestMergeSynthesizesMissingTrails(t *testing.T) {
	t.Parallel()

	provided := []records.Trail{{ID: "T1", Name: "Woodland Walk", Difficulty: "easy"}}
	points := []records.TrailPoint{
		{TrailID: "T2", Latitude: "1", Longitude: "1"},
		{TrailID: "T1", Latitude: "2", Longitude: "2"},
		{TrailID: "T2", Latitude: "3", Longitude: "3"},
	}
	got := Merge(provided, points)
	want := []records.Trail{
		{ID: "T1", Name: "Woodland Walk", Difficulty: "easy"},
		{ID: "T2", Name: "Trail T2"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Merge = %+v, want %+v", got, want)
	}
}

// TestMergeEmptyInputs yields no trails when neither source has data.
func TestMergeEmptyInputs(t *testing.T) {
	t.Parallel()

	if got := Merge(nil, nil); len(got) != 0 {
		t.Fatalf("Merge(nil,nil) = %v, want empty", got)
	}
}
