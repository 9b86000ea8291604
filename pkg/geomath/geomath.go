// Package geomath holds the small amount of pure coordinate math the
// field guide needs: parsing the provider's textual lat/lon pairs and
// measuring great-circle distance between two points.
package geomath

import (
	"math"
	"strconv"
	"strings"
)

// Point is a parsed WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ParseCoordinate converts the provider's textual latitude/longitude
// pair into a Point. The pair is usable only when both components parse
// as finite real numbers; anything else means the entity simply has no
// location, never an error.
func ParseCoordinate(latText, lonText string) (Point, bool) {
	lat, ok := parseFinite(latText)
	if !ok {
		return Point{}, false
	}
	lon, ok := parseFinite(lonText)
	if !ok {
		return Point{}, false
	}
	return Point{Lat: lat, Lon: lon}, true
}

func parseFinite(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Distance returns the great-circle distance between two points in
// metres using the haversine formula.
func Distance(a, b Point) float64 {
	const R = 6371000
	phi1, phi2 := a.Lat*math.Pi/180, b.Lat*math.Pi/180
	dPhi, dLambda := (b.Lat-a.Lat)*math.Pi/180, (b.Lon-a.Lon)*math.Pi/180
	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) + math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * R * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}
