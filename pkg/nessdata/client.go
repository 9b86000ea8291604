// Package nessdata talks to the garden's remote data endpoint: five
// record kinds behind one request-keyed URL, plus the two image asset
// bases for full-size and thumbnail variants.
package nessdata

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ness-field-guide/pkg/records"
)

const (
	// DefaultBaseURL is the garden's record endpoint. A kind is
	// selected with ?class=<kind>.
	DefaultBaseURL = "https://cgi.csc.liv.ac.uk/~phil/Teaching/COMP228/ness/data.php"
	// DefaultImagesURL serves full-size photos for the detail view.
	DefaultImagesURL = "https://cgi.csc.liv.ac.uk/~phil/Teaching/COMP228/ness_images/"
	// DefaultThumbsURL serves the list-view thumbnails.
	DefaultThumbsURL = "https://cgi.csc.liv.ac.uk/~phil/Teaching/COMP228/ness_thumbnails/"

	networkTimeout = 20 * time.Second
	maxRecordBody  = 10 << 20
	maxImageBody   = 32 << 20
)

// Client fetches records and image bytes. Timeouts belong here, at the
// transport edge; the pipeline above never retries, it degrades.
type Client struct {
	baseURL   string
	imagesURL string
	thumbsURL string
	http      *http.Client
}

// NewClient builds a Client. Empty URL arguments fall back to the
// garden's production endpoints.
func NewClient(baseURL, imagesURL, thumbsURL string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if strings.TrimSpace(imagesURL) == "" {
		imagesURL = DefaultImagesURL
	}
	if strings.TrimSpace(thumbsURL) == "" {
		thumbsURL = DefaultThumbsURL
	}
	return &Client{
		baseURL:   baseURL,
		imagesURL: imagesURL,
		thumbsURL: thumbsURL,
		http: &http.Client{
			Timeout: networkTimeout,
			Transport: &http.Transport{
				DialContext:         (&net.Dialer{Timeout: 8 * time.Second}).DialContext,
				TLSHandshakeTimeout: 8 * time.Second,
			},
		},
	}
}

// fetchKind downloads the raw payload for one record kind.
func (c *Client) fetchKind(ctx context.Context, kind records.Kind) ([]byte, error) {
	sep := "?"
	if strings.Contains(c.baseURL, "?") {
		sep = "&"
	}
	reqURL := c.baseURL + sep + "class=" + url.QueryEscape(string(kind))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch %s: status %s: %s", kind, resp.Status, strings.TrimSpace(string(b)))
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxRecordBody))
}

// FetchBeds downloads and decodes the bed records.
func (c *Client) FetchBeds(ctx context.Context) ([]records.Bed, error) {
	b, err := c.fetchKind(ctx, records.KindBeds)
	if err != nil {
		return nil, err
	}
	return records.DecodeBeds(b)
}

// FetchPlants downloads and decodes the plant records.
func (c *Client) FetchPlants(ctx context.Context) ([]records.Plant, error) {
	b, err := c.fetchKind(ctx, records.KindPlants)
	if err != nil {
		return nil, err
	}
	return records.DecodePlants(b)
}

// FetchImages downloads and decodes the image reference records.
func (c *Client) FetchImages(ctx context.Context) ([]records.ImageRef, error) {
	b, err := c.fetchKind(ctx, records.KindImages)
	if err != nil {
		return nil, err
	}
	return records.DecodeImages(b)
}

// FetchTrails downloads and decodes the trail metadata records.
func (c *Client) FetchTrails(ctx context.Context) ([]records.Trail, error) {
	b, err := c.fetchKind(ctx, records.KindTrails)
	if err != nil {
		return nil, err
	}
	return records.DecodeTrails(b)
}

// FetchTrailPoints downloads and decodes the trail location records.
func (c *Client) FetchTrailPoints(ctx context.Context) ([]records.TrailPoint, error) {
	b, err := c.fetchKind(ctx, records.KindTrailLocations)
	if err != nil {
		return nil, err
	}
	return records.DecodeTrailPoints(b)
}

// FetchImageBytes downloads one image asset. thumbnail selects the
// small list-view variant; otherwise the full-size base is used.
func (c *Client) FetchImageBytes(ctx context.Context, filename string, thumbnail bool) ([]byte, error) {
	name := strings.TrimSpace(filename)
	if name == "" || strings.Contains(name, "/") || strings.Contains(name, "\\") {
		return nil, fmt.Errorf("invalid image filename %q", filename)
	}

	base := c.imagesURL
	if thumbnail {
		base = c.thumbsURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+url.PathEscape(name), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image %s: status %s", name, resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxImageBody))
}
