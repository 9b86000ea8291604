package geomath

import "testing"

// TestParseCoordinate checks that only pairs where both components are
// finite numbers yield a usable location.
func TestParseCoordinate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		lat, lon string
		want     Point
		ok       bool
	}{
		{"53.1", "-2.9", Point{53.1, -2.9}, true},
		{" 53.1 ", " -2.9 ", Point{53.1, -2.9}, true},
		{"", "-2.9", Point{}, false},
		{"53.1", "", Point{}, false},
		{"not-a-number", "-2.9", Point{}, false},
		{"NaN", "-2.9", Point{}, false},
		{"+Inf", "-2.9", Point{}, false},
		{"53.1", "Inf", Point{}, false},
	}
	for _, tc := range tests {
		got, ok := ParseCoordinate(tc.lat, tc.lon)
		if ok != tc.ok {
			t.Errorf("ParseCoordinate(%q,%q) ok=%v want %v", tc.lat, tc.lon, ok, tc.ok)
			continue
		}
		if ok && got != tc.want {
			t.Errorf("ParseCoordinate(%q,%q) = %+v, want %+v", tc.lat, tc.lon, got, tc.want)
		}
	}
}

// TestDistance verifies the haversine result against a known pair of
// points roughly 1.11 km apart (0.01° of latitude at the equator).
func TestDistance(t *testing.T) {
	t.Parallel()

	if d := Distance(Point{0, 0}, Point{0, 0}); d != 0 {
		t.Fatalf("Distance(same point) = %v, want 0", d)
	}

	d := Distance(Point{0, 0}, Point{0.01, 0})
	if d < 1100 || d > 1120 {
		t.Fatalf("Distance(0.01 deg lat) = %v m, want ~1112 m", d)
	}

	// Symmetry.
	a, b := Point{53.1, -2.9}, Point{53.2, -3.0}
	if d1, d2 := Distance(a, b), Distance(b, a); d1 != d2 {
		t.Fatalf("Distance not symmetric: %v vs %v", d1, d2)
	}
}
