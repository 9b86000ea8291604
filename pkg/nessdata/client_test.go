package nessdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestFetchKindsSelectByClassParam serves a fake provider and checks
// each fetch asks for the right class and decodes its payload.
func TestFetchKindsSelectByClassParam(t *testing.T) {
	t.Parallel()

	payloads := map[string]string{
		"beds":            `{"beds":[{"recnum":"B1","short_name":"Rose Garden","full_name":"The Rose Garden","latitude":"53.1","longitude":"-2.9"}]}`,
		"plants":          `{"plants":[{"recnum":"1","accsta":"C","genus":"Rosa","species":"rugosa","bed":"B1"}]}`,
		"images":          `{"images":[{"recnum":"i1","plant_recnum":"1","filename":"rosa.jpg"}]}`,
		"trails":          `{"trails":[{"ID":"T1","Trail_Name":"Woodland Walk"}]}`,
		"trail_locations": `{"trail_locations":[{"ID":"p1","Trail_ID":"T1","Sequence_No":"1","Latitude":"53.1","Longitude":"-2.9","Active":"Y"}]}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := payloads[r.URL.Query().Get("class")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL, srv.URL)
	ctx := context.Background()

	beds, err := c.FetchBeds(ctx)
	if err != nil || len(beds) != 1 || beds[0].Recnum != "B1" {
		t.Fatalf("FetchBeds = %v, %v", beds, err)
	}
	plants, err := c.FetchPlants(ctx)
	if err != nil || len(plants) != 1 || plants[0].Genus != "Rosa" {
		t.Fatalf("FetchPlants = %v, %v", plants, err)
	}
	images, err := c.FetchImages(ctx)
	if err != nil || len(images) != 1 || images[0].Filename != "rosa.jpg" {
		t.Fatalf("FetchImages = %v, %v", images, err)
	}
	trails, err := c.FetchTrails(ctx)
	if err != nil || len(trails) != 1 || trails[0].Name != "Woodland Walk" {
		t.Fatalf("FetchTrails = %v, %v", trails, err)
	}
	points, err := c.FetchTrailPoints(ctx)
	if err != nil || len(points) != 1 || points[0].TrailID != "T1" {
		t.Fatalf("FetchTrailPoints = %v, %v", points, err)
	}
}

// TestFetchReportsBadStatus surfaces non-200 responses as errors so
// the pipeline can degrade that stage.
func TestFetchReportsBadStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone fishing", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL, srv.URL)
	if _, err := c.FetchPlants(context.Background()); err == nil {
		t.Fatal("FetchPlants succeeded against a 503 provider")
	}
}

// TestFetchImageBytesPicksBase routes thumbnails and full-size
// requests to their distinct bases and rejects path-ish filenames.
func TestFetchImageBytesPicksBase(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.URL.Path))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL+"/full", srv.URL+"/thumb")
	ctx := context.Background()

	full, err := c.FetchImageBytes(ctx, "rosa.jpg", false)
	if err != nil || string(full) != "/full/rosa.jpg" {
		t.Fatalf("full-size fetch = %q, %v", full, err)
	}
	thumb, err := c.FetchImageBytes(ctx, "rosa.jpg", true)
	if err != nil || string(thumb) != "/thumb/rosa.jpg" {
		t.Fatalf("thumbnail fetch = %q, %v", thumb, err)
	}

	if _, err := c.FetchImageBytes(ctx, "../escape.jpg", true); err == nil {
		t.Fatal("path traversal filename accepted")
	}
	if _, err := c.FetchImageBytes(ctx, "", true); err == nil {
		t.Fatal("empty filename accepted")
	}
}
