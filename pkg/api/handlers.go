package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"

	"ness-field-guide/pkg/catalog"
	"ness-field-guide/pkg/eventbus"
	"ness-field-guide/pkg/favourites"
	"ness-field-guide/pkg/geomath"
	"ness-field-guide/pkg/pipeline"
	"ness-field-guide/pkg/qrshare"
	"ness-field-guide/pkg/records"
	"ness-field-guide/pkg/trails"
)

// =======================
// Public API entry points
// =======================

// Handler wires the pipeline, favourites store, image proxy and event
// bus into HTTP routes. Routes stay small: they translate query
// parameters into messages for the goroutines that own the state.
type Handler struct {
	Pipeline   *pipeline.Service
	Favourites *favourites.Store
	Bus        *eventbus.Bus
	Assets     ImageSource
	Images     *AssetCache
	Limiter    *RateLimiter
	ShareBase  string
	Logf       func(string, ...any)
}

// ImageSource fetches raw image bytes from the garden's asset hosts.
type ImageSource interface {
	FetchImageBytes(ctx context.Context, filename string, thumbnail bool) ([]byte, error)
}

// NewHandler constructs a Handler. Logf is optional; pass nil when
// logging is not required.
func NewHandler(p *pipeline.Service, f *favourites.Store, bus *eventbus.Bus, logf func(string, ...any)) *Handler {
	return &Handler{Pipeline: p, Favourites: f, Bus: bus, Logf: logf}
}

// Register attaches API routes to the provided mux. Wiring is kept
// declarative so it is obvious which URL ends where.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api", h.handleOverview)
	mux.HandleFunc("/api/snapshot", h.handleSnapshot)
	mux.HandleFunc("/api/beds", h.handleBedsList)
	mux.HandleFunc("/api/beds/", h.handleBedPins)
	mux.HandleFunc("/api/plants/", h.handlePlantDetail)
	mux.HandleFunc("/api/trails", h.handleTrailsList)
	mux.HandleFunc("/api/trails/", h.handleTrailSub)
	mux.HandleFunc("/api/favourites", h.handleFavourites)
	mux.HandleFunc("/api/favourites/toggle", h.handleFavouriteToggle)
	mux.HandleFunc("/api/position", h.handlePosition)
	mux.HandleFunc("/api/refresh", h.handleRefresh)
	mux.HandleFunc("/api/events", h.handleEvents)
	mux.HandleFunc("/api/thumbnail", h.handleAsset(true))
	mux.HandleFunc("/api/image", h.handleAsset(false))
}

// handleOverview publishes machine-readable docs so clients know
// which endpoints exist and how the cascade degrades.
func (h *Handler) handleOverview(w http.ResponseWriter, r *http.Request) {
	overview := struct {
		Endpoints map[string]any `json:"endpoints"`
	}{
		Endpoints: map[string]any{
			"snapshot": map[string]any{
				"method":      "GET",
				"path":        "/api/snapshot",
				"description": "Full catalog snapshot plus live position state. failedKinds lists record kinds whose last fetch degraded to empty.",
			},
			"beds": map[string]any{
				"method":      "GET",
				"path":        "/api/beds",
				"description": "Beds in presentation order: nearest first when a position fix exists, lexical otherwise.",
			},
			"bedPins": map[string]any{
				"method":      "GET",
				"path":        "/api/beds/{key}/pins",
				"description": "Mappable plant pins for one bed, keyed by bed recnum or short name.",
			},
			"plantDetail": map[string]any{
				"method":      "GET",
				"path":        "/api/plants/{recnum}",
				"description": "One accession with its photo references and favourite state.",
			},
			"trails": map[string]any{
				"method":      "GET",
				"path":        "/api/trails",
				"subpaths":    []string{"/api/trails/{id}/path", "/api/trails/{id}/qr"},
				"description": "Walking trails; /path returns the polyline, /qr a shareable PNG code.",
			},
			"favourites": map[string]any{
				"methods":     []string{"GET /api/favourites", "POST /api/favourites/toggle"},
				"description": "Persisted starred accessions.",
			},
			"position": map[string]any{
				"method":      "POST",
				"path":        "/api/position",
				"body":        `{"lat":..,"lon":..}`,
				"description": "Delivers a device fix; re-ranks beds by distance.",
			},
			"refresh": map[string]any{
				"method":      "POST",
				"path":        "/api/refresh",
				"description": "Starts a full fetch cycle. Concurrent requests collapse into one.",
			},
			"events": map[string]any{
				"method":      "GET",
				"path":        "/api/events",
				"description": "Server-sent event stream of pipeline milestones.",
			},
			"assets": map[string]any{
				"methods":     []string{"GET /api/thumbnail?file=", "GET /api/image?file="},
				"description": "Proxied plant photos, cached in memory.",
			},
		},
	}
	h.respondJSON(w, overview)
}

// handleSnapshot returns the whole aggregated view in one response.
func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	v, err := h.Pipeline.CurrentView(r.Context())
	if err != nil {
		http.Error(w, "request cancelled", http.StatusRequestTimeout)
		return
	}
	resp := struct {
		Snapshot catalog.Snapshot `json:"snapshot"`
		Position *geomath.Point   `json:"position,omitempty"`
		Follow   bool             `json:"follow"`
	}{Snapshot: v.Snapshot, Position: v.Position, Follow: v.Follow}
	h.respondJSON(w, resp)
}

// bedSummary is one row of the bed list.
type bedSummary struct {
	Key        string         `json:"key"`
	Recnum     string         `json:"recnum"`
	ShortName  string         `json:"short_name"`
	FullName   string         `json:"full_name,omitempty"`
	Coordinate *geomath.Point `json:"coordinate,omitempty"`
	PlantCount int            `json:"plantCount"`
}

// handleBedsList exposes the ranked bed order with per-bed counts.
func (h *Handler) handleBedsList(w http.ResponseWriter, r *http.Request) {
	v, err := h.Pipeline.CurrentView(r.Context())
	if err != nil {
		http.Error(w, "request cancelled", http.StatusRequestTimeout)
		return
	}
	snap := v.Snapshot

	beds := make([]bedSummary, 0, len(snap.BedOrder))
	for _, key := range snap.BedOrder {
		row := bedSummary{Key: key, PlantCount: len(snap.PlantsByBed[key])}
		if bed, ok := snap.BedLookup[key]; ok {
			row.Recnum = bed.Recnum
			row.ShortName = bed.ShortName
			row.FullName = bed.FullName
			if pt, ok := bed.Coordinate(); ok {
				row.Coordinate = &pt
			}
		}
		beds = append(beds, row)
	}

	resp := struct {
		Beds        []bedSummary   `json:"beds"`
		Ranked      bool           `json:"ranked"`
		FailedKinds []records.Kind `json:"failedKinds,omitempty"`
	}{Beds: beds, Ranked: v.Position != nil, FailedKinds: snap.FailedKinds}
	h.respondJSON(w, resp)
}

// plantPin is one mappable accession inside a bed.
type plantPin struct {
	Recnum     string         `json:"recnum"`
	Title      string         `json:"title"`
	Subtitle   string         `json:"subtitle,omitempty"`
	Coordinate *geomath.Point `json:"coordinate,omitempty"`
}

// handleBedPins serves /api/beds/{key}/pins.
func (h *Handler) handleBedPins(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/beds/")
	key, ok := strings.CutSuffix(rest, "/pins")
	if !ok || key == "" {
		http.NotFound(w, r)
		return
	}

	v, err := h.Pipeline.CurrentView(r.Context())
	if err != nil {
		http.Error(w, "request cancelled", http.StatusRequestTimeout)
		return
	}
	snap := v.Snapshot

	// The key may be either form; resolve it through the lookup so
	// both name the same plant group.
	groupKey := key
	if bed, ok := snap.BedLookup[key]; ok {
		if _, grouped := snap.PlantsByBed[bed.Recnum]; grouped {
			groupKey = bed.Recnum
		} else if _, grouped := snap.PlantsByBed[bed.ShortName]; grouped {
			groupKey = bed.ShortName
		}
	}
	plants, ok := snap.PlantsByBed[groupKey]
	if !ok {
		http.Error(w, "bed not found", http.StatusNotFound)
		return
	}

	pins := make([]plantPin, 0, len(plants))
	for _, p := range plants {
		pin := plantPin{Recnum: p.Recnum, Title: p.Title(), Subtitle: p.Subtitle()}
		if pt, ok := p.Coordinate(); ok {
			pin.Coordinate = &pt
		}
		pins = append(pins, pin)
	}

	resp := struct {
		Bed  string     `json:"bed"`
		Pins []plantPin `json:"pins"`
	}{Bed: key, Pins: pins}
	h.respondJSON(w, resp)
}

// handlePlantDetail serves /api/plants/{recnum}: the accession record,
// its photo references and whether it is starred.
func (h *Handler) handlePlantDetail(w http.ResponseWriter, r *http.Request) {
	recnum := strings.TrimPrefix(r.URL.Path, "/api/plants/")
	if recnum == "" || strings.Contains(recnum, "/") {
		http.NotFound(w, r)
		return
	}

	v, err := h.Pipeline.CurrentView(r.Context())
	if err != nil {
		http.Error(w, "request cancelled", http.StatusRequestTimeout)
		return
	}
	snap := v.Snapshot

	var plant *records.Plant
	for _, group := range snap.PlantsByBed {
		for i := range group {
			if group[i].Recnum == recnum {
				plant = &group[i]
				break
			}
		}
		if plant != nil {
			break
		}
	}
	if plant == nil {
		http.Error(w, "plant not found", http.StatusNotFound)
		return
	}

	resp := struct {
		Plant     records.Plant      `json:"plant"`
		Title     string             `json:"title"`
		Subtitle  string             `json:"subtitle,omitempty"`
		Beds      []string           `json:"beds"`
		Images    []records.ImageRef `json:"images"`
		Favourite bool               `json:"favourite"`
	}{
		Plant:     *plant,
		Title:     plant.Title(),
		Subtitle:  plant.Subtitle(),
		Beds:      plant.BedList(),
		Images:    snap.ImagesByPlant[recnum],
		Favourite: h.Favourites != nil && h.Favourites.Contains(recnum),
	}
	if resp.Images == nil {
		resp.Images = []records.ImageRef{}
	}
	h.respondJSON(w, resp)
}

// handleTrailsList serves the merged trail metadata.
func (h *Handler) handleTrailsList(w http.ResponseWriter, r *http.Request) {
	v, err := h.Pipeline.CurrentView(r.Context())
	if err != nil {
		http.Error(w, "request cancelled", http.StatusRequestTimeout)
		return
	}
	list := v.Snapshot.Trails
	if list == nil {
		list = []records.Trail{}
	}
	h.respondJSON(w, struct {
		Trails []records.Trail `json:"trails"`
	}{Trails: list})
}

// handleTrailSub routes /api/trails/{id}/path and /api/trails/{id}/qr.
func (h *Handler) handleTrailSub(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/trails/")
	if id, ok := strings.CutSuffix(rest, "/path"); ok && id != "" {
		h.serveTrailPath(w, r, id)
		return
	}
	if id, ok := strings.CutSuffix(rest, "/qr"); ok && id != "" {
		h.serveTrailQR(w, r, id)
		return
	}
	http.NotFound(w, r)
}

func (h *Handler) serveTrailPath(w http.ResponseWriter, r *http.Request, id string) {
	v, err := h.Pipeline.CurrentView(r.Context())
	if err != nil {
		http.Error(w, "request cancelled", http.StatusRequestTimeout)
		return
	}
	path := trails.PathFor(id, v.Snapshot.TrailPoints)
	if len(path) == 0 {
		http.Error(w, "trail not found", http.StatusNotFound)
		return
	}
	h.respondJSON(w, struct {
		Trail string          `json:"trail"`
		Path  []geomath.Point `json:"path"`
	}{Trail: id, Path: path})
}

// serveTrailQR renders a scannable share code pointing at the trail's
// path endpoint.
func (h *Handler) serveTrailQR(w http.ResponseWriter, r *http.Request, id string) {
	v, err := h.Pipeline.CurrentView(r.Context())
	if err != nil {
		http.Error(w, "request cancelled", http.StatusRequestTimeout)
		return
	}
	known := false
	for _, t := range v.Snapshot.Trails {
		if t.ID == id {
			known = true
			break
		}
	}
	if !known {
		http.Error(w, "trail not found", http.StatusNotFound)
		return
	}

	base := strings.TrimSuffix(h.ShareBase, "/")
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}
	link := fmt.Sprintf("%s/api/trails/%s/path", base, id)

	w.Header().Set("Content-Type", "image/png")
	if err := qrshare.EncodePNG(w, link, qrshare.Options{}); err != nil && h.Logf != nil {
		h.Logf("trail qr encode: %v", err)
	}
}

// handleFavourites lists starred accessions in first-starred order.
func (h *Handler) handleFavourites(w http.ResponseWriter, r *http.Request) {
	ids := []string{}
	if h.Favourites != nil {
		if got := h.Favourites.Snapshot(); got != nil {
			ids = got
		}
	}
	h.respondJSON(w, struct {
		Favourites []string `json:"favourites"`
	}{Favourites: ids})
}

// handleFavouriteToggle flips one accession's starred state and
// reports the new membership.
func (h *Handler) handleFavouriteToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	if h.Favourites == nil {
		http.Error(w, "favourites disabled", http.StatusServiceUnavailable)
		return
	}
	var body struct {
		Recnum string `json:"recnum"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Recnum) == "" {
		http.Error(w, "recnum required", http.StatusBadRequest)
		return
	}
	starred := h.Favourites.Toggle(body.Recnum)
	h.respondJSON(w, struct {
		Recnum    string `json:"recnum"`
		Favourite bool   `json:"favourite"`
	}{Recnum: body.Recnum, Favourite: starred})
}

// handlePosition accepts one device fix and hands it to the pipeline.
func (h *Handler) handlePosition(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	var body geomath.Point
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "lat/lon required", http.StatusBadRequest)
		return
	}
	h.Pipeline.UpdatePosition(body)
	w.WriteHeader(http.StatusAccepted)
}

// handleRefresh kicks off a full fetch cycle.
func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	h.Pipeline.Refresh()
	w.WriteHeader(http.StatusAccepted)
}

// handleEvents streams pipeline milestones as server-sent events until
// the client disconnects.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	if h.Bus == nil {
		http.Error(w, "events disabled", http.StatusServiceUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events := h.Bus.Subscribe(r.Context(), 16)
	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	for e := range events {
		fmt.Fprintf(w, "data: %s\n\n", e)
		flusher.Flush()
	}
}

// handleAsset builds the proxy handler for one image variant. Bytes
// come from the in-memory cache when fresh, otherwise from the remote
// host; heavy downloads queue per client address.
func (h *Handler) handleAsset(thumbnail bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		file := strings.TrimSpace(r.URL.Query().Get("file"))
		if file == "" {
			http.Error(w, "file parameter required", http.StatusBadRequest)
			return
		}
		if h.Assets == nil {
			http.Error(w, "image proxy disabled", http.StatusServiceUnavailable)
			return
		}

		if h.Limiter != nil {
			permit, err := h.Limiter.Acquire(r.Context(), clientKey(r), RequestAsset)
			if err != nil {
				http.Error(w, "request cancelled", http.StatusRequestTimeout)
				return
			}
			defer permit.Release()
		}

		variant := "full"
		if thumbnail {
			variant = "thumb"
		}
		data, ctype, err := h.Images.Get(r.Context(), variant+"/"+file, func(ctx context.Context) ([]byte, string, error) {
			b, err := h.Assets.FetchImageBytes(ctx, file, thumbnail)
			if err != nil {
				return nil, "", err
			}
			return b, http.DetectContentType(b), nil
		})
		if err != nil {
			if h.Logf != nil {
				h.Logf("asset %s fetch: %v", file, err)
			}
			http.Error(w, "image unavailable", http.StatusBadGateway)
			return
		}

		w.Header().Set("Content-Type", ctype)
		w.Header().Set("Cache-Control", "public, max-age=3600")
		_, _ = w.Write(data)
	}
}

// =====================
// Utility helpers
// =====================

func (h *Handler) respondJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}

// clientKey groups requests by remote host so one busy client cannot
// starve the asset queue for everyone else.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
