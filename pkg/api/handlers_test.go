package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ness-field-guide/pkg/eventbus"
	"ness-field-guide/pkg/favourites"
	"ness-field-guide/pkg/geomath"
	"ness-field-guide/pkg/pipeline"
	"ness-field-guide/pkg/records"
)

// stubFetcher serves a tiny fixed garden.
type stubFetcher struct{}

func (stubFetcher) FetchBeds(context.Context) ([]records.Bed, error) {
	return []records.Bed{
		{Recnum: "B1", ShortName: "Rose Garden", FullName: "The Rose Garden", Latitude: "53.1", Longitude: "-2.9"},
	}, nil
}

func (stubFetcher) FetchPlants(context.Context) ([]records.Plant, error) {
	return []records.Plant{
		{Recnum: "42", Accsta: "C", Genus: "Rosa", Species: "rugosa", VernacularName: "beach rose", Bed: "B1", Latitude: "53.1", Longitude: "-2.9"},
	}, nil
}

func (stubFetcher) FetchImages(context.Context) ([]records.ImageRef, error) {
	return []records.ImageRef{{Recnum: "i1", PlantRecnum: "42", Filename: "rosa.jpg"}}, nil
}

func (stubFetcher) FetchTrails(context.Context) ([]records.Trail, error) {
	return []records.Trail{{ID: "T1", Name: "Woodland Walk"}}, nil
}

func (stubFetcher) FetchTrailPoints(context.Context) ([]records.TrailPoint, error) {
	return []records.TrailPoint{
		{TrailID: "T1", SequenceNo: "1", Latitude: "53.1", Longitude: "-2.9"},
		{TrailID: "T1", SequenceNo: "2", Latitude: "53.2", Longitude: "-2.9"},
	}, nil
}

// stubImages returns predictable bytes per variant and can fail.
type stubImages struct {
	fail  bool
	calls int
}

func (s *stubImages) FetchImageBytes(_ context.Context, filename string, thumbnail bool) ([]byte, error) {
	s.calls++
	if s.fail {
		return nil, errors.New("asset host down")
	}
	if thumbnail {
		return []byte("thumb:" + filename), nil
	}
	return []byte("full:" + filename), nil
}

// newTestServer brings up the whole surface over a loaded pipeline.
func newTestServer(t *testing.T, images ImageSource) (*httptest.Server, *Handler) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	bus := eventbus.NewBus(32)
	events := bus.Subscribe(ctx, 32)

	p := pipeline.NewService(stubFetcher{}, bus, time.Hour, func(string, ...any) {})
	p.Start(ctx)
	p.Refresh()

	// Drain until the slowest stages are in.
	want := map[eventbus.Event]bool{eventbus.ImagesReady: false, eventbus.TrailsReady: false}
	deadline := time.After(5 * time.Second)
	for {
		done := true
		for _, ok := range want {
			if !ok {
				done = false
			}
		}
		if done {
			break
		}
		select {
		case e := <-events:
			if _, tracked := want[e]; tracked {
				want[e] = true
			}
		case <-deadline:
			t.Fatal("pipeline never settled")
		}
	}

	fav := favourites.NewStore(ctx, nil, func(string, ...any) {})

	h := NewHandler(p, fav, bus, func(string, ...any) {})
	h.Assets = images
	h.Images = NewAssetCache(time.Minute)
	t.Cleanup(h.Images.Close)

	mux := http.NewServeMux()
	h.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, h
}

func getJSON(t *testing.T, url string, into any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if into != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp
}

func TestBedsListReflectsSnapshot(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, &stubImages{})

	var body struct {
		Beds []struct {
			Key        string `json:"key"`
			ShortName  string `json:"short_name"`
			PlantCount int    `json:"plantCount"`
		} `json:"beds"`
		Ranked bool `json:"ranked"`
	}
	getJSON(t, srv.URL+"/api/beds", &body)

	if len(body.Beds) != 1 || body.Beds[0].Key != "B1" {
		t.Fatalf("beds = %+v", body.Beds)
	}
	if body.Beds[0].ShortName != "Rose Garden" || body.Beds[0].PlantCount != 1 {
		t.Fatalf("bed row = %+v", body.Beds[0])
	}
	if body.Ranked {
		t.Fatal("ranked = true without a position fix")
	}
}

func TestBedPinsResolveEitherKey(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, &stubImages{})

	for _, key := range []string{"B1", "Rose%20Garden"} {
		var body struct {
			Pins []struct {
				Recnum string `json:"recnum"`
				Title  string `json:"title"`
			} `json:"pins"`
		}
		resp := getJSON(t, srv.URL+"/api/beds/"+key+"/pins", &body)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("pins via %s: status %d", key, resp.StatusCode)
		}
		if len(body.Pins) != 1 || body.Pins[0].Recnum != "42" || body.Pins[0].Title != "Rosa rugosa" {
			t.Fatalf("pins via %s = %+v", key, body.Pins)
		}
	}

	if resp := getJSON(t, srv.URL+"/api/beds/nope/pins", nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown bed: status %d", resp.StatusCode)
	}
}

func TestPlantDetailAndFavouriteToggle(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, &stubImages{})

	var detail struct {
		Title     string `json:"title"`
		Subtitle  string `json:"subtitle"`
		Favourite bool   `json:"favourite"`
		Images    []struct {
			Filename string `json:"filename"`
		} `json:"images"`
	}
	getJSON(t, srv.URL+"/api/plants/42", &detail)
	if detail.Title != "Rosa rugosa" || detail.Subtitle != "beach rose" {
		t.Fatalf("detail = %+v", detail)
	}
	if detail.Favourite {
		t.Fatal("favourite = true before toggling")
	}
	if len(detail.Images) != 1 || detail.Images[0].Filename != "rosa.jpg" {
		t.Fatalf("images = %+v", detail.Images)
	}

	toggle, err := http.Post(srv.URL+"/api/favourites/toggle", "application/json",
		bytes.NewBufferString(`{"recnum":"42"}`))
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	defer toggle.Body.Close()
	var toggled struct {
		Favourite bool `json:"favourite"`
	}
	if err := json.NewDecoder(toggle.Body).Decode(&toggled); err != nil || !toggled.Favourite {
		t.Fatalf("toggle response = %+v, %v", toggled, err)
	}

	var favs struct {
		Favourites []string `json:"favourites"`
	}
	getJSON(t, srv.URL+"/api/favourites", &favs)
	if len(favs.Favourites) != 1 || favs.Favourites[0] != "42" {
		t.Fatalf("favourites = %v", favs.Favourites)
	}

	if resp := getJSON(t, srv.URL+"/api/plants/999", nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown plant: status %d", resp.StatusCode)
	}
}

func TestTrailPathAndQR(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, &stubImages{})

	var path struct {
		Path []geomath.Point `json:"path"`
	}
	getJSON(t, srv.URL+"/api/trails/T1/path", &path)
	if len(path.Path) != 2 || path.Path[0].Lat != 53.1 {
		t.Fatalf("path = %+v", path.Path)
	}

	resp, err := http.Get(srv.URL + "/api/trails/T1/qr")
	if err != nil {
		t.Fatalf("qr: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("qr: status %d, type %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}

	if r := getJSON(t, srv.URL+"/api/trails/T9/qr", nil); r.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown trail qr: status %d", r.StatusCode)
	}
}

func TestPositionPostReranksBeds(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, &stubImages{})

	resp, err := http.Post(srv.URL+"/api/position", "application/json",
		bytes.NewBufferString(`{"lat":53.1,"lon":-2.9}`))
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("position: status %d", resp.StatusCode)
	}

	// The actor applies the fix asynchronously; poll briefly.
	deadline := time.Now().Add(2 * time.Second)
	for {
		var body struct {
			Ranked bool `json:"ranked"`
		}
		getJSON(t, srv.URL+"/api/beds", &body)
		if body.Ranked {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("bed list never became ranked after a position fix")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestAssetProxyCachesAndRoutesVariants(t *testing.T) {
	t.Parallel()
	imgs := &stubImages{}
	srv, _ := newTestServer(t, imgs)

	get := func(path string) ([]byte, int) {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		defer resp.Body.Close()
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(resp.Body)
		return buf.Bytes(), resp.StatusCode
	}

	body, code := get("/api/thumbnail?file=rosa.jpg")
	if code != http.StatusOK || string(body) != "thumb:rosa.jpg" {
		t.Fatalf("thumbnail = %q, status %d", body, code)
	}
	body, code = get("/api/image?file=rosa.jpg")
	if code != http.StatusOK || string(body) != "full:rosa.jpg" {
		t.Fatalf("image = %q, status %d", body, code)
	}

	before := imgs.calls
	if body, _ = get("/api/thumbnail?file=rosa.jpg"); string(body) != "thumb:rosa.jpg" {
		t.Fatalf("cached thumbnail = %q", body)
	}
	if imgs.calls != before {
		t.Fatalf("cache miss on repeat: %d fetches, want %d", imgs.calls, before)
	}

	if _, code = get("/api/thumbnail"); code != http.StatusBadRequest {
		t.Fatalf("missing file param: status %d", code)
	}

	imgs.fail = true
	if _, code = get("/api/image?file=other.jpg"); code != http.StatusBadGateway {
		t.Fatalf("failed asset: status %d", code)
	}
}

func TestRefreshEndpointRequiresPost(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, &stubImages{})

	if resp := getJSON(t, srv.URL+"/api/refresh", nil); resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET refresh: status %d", resp.StatusCode)
	}
	resp, err := http.Post(srv.URL+"/api/refresh", "application/json", nil)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("refresh: status %d", resp.StatusCode)
	}
}
