package api

import (
	"context"
	"errors"
	"time"
)

var (
	errCacheStopped = errors.New("cache stopped")
	errNoLoader     = errors.New("no loader")
)

// assetRequest models one cache lookup or population attempt. A struct
// keeps the channel signature compact so the owning goroutine deals
// with a single message type.
type assetRequest struct {
	ctx    context.Context
	key    string
	loader func(context.Context) ([]byte, string, error)
	reply  chan assetResponse
}

// assetResponse carries the cached bytes and content type, or an
// error, back to the handler goroutine.
type assetResponse struct {
	data  []byte
	ctype string
	err   error
}

// assetEntry records cached image bytes with their expiry. Stale
// entries are trimmed lazily on access, so no timers are needed.
type assetEntry struct {
	data    []byte
	ctype   string
	expires time.Time
}

// AssetCache keeps proxied plant photos in memory so repeated taps on
// the same accession do not re-download from the garden's host. State
// lives in one goroutine and is reached over channels only.
type AssetCache struct {
	ttl      time.Duration
	requests chan assetRequest
	quit     chan struct{}
	now      func() time.Time
}

// NewAssetCache starts the caching goroutine immediately. A zero or
// negative TTL disables caching; callers may treat the nil result as
// pass-through.
func NewAssetCache(ttl time.Duration) *AssetCache {
	if ttl <= 0 {
		return nil
	}
	cache := &AssetCache{
		ttl:      ttl,
		requests: make(chan assetRequest),
		quit:     make(chan struct{}),
		now:      time.Now,
	}
	go cache.loop()
	return cache
}

// Close stops the cache goroutine. Safe to call more than once.
func (c *AssetCache) Close() {
	if c == nil {
		return
	}
	select {
	case <-c.quit:
		return
	default:
	}
	close(c.quit)
}

// Get returns cached bytes for the key or invokes loader to produce
// them. A nil cache falls through to the loader directly, so callers
// never need to branch on whether caching is enabled.
func (c *AssetCache) Get(ctx context.Context, key string, loader func(context.Context) ([]byte, string, error)) ([]byte, string, error) {
	if c == nil {
		if loader == nil {
			return nil, "", errNoLoader
		}
		return loader(ctx)
	}
	req := assetRequest{
		ctx:    ctx,
		key:    key,
		loader: loader,
		reply:  make(chan assetResponse, 1),
	}
	select {
	case <-ctx.Done():
		return nil, "", ctx.Err()
	case <-c.quit:
		return nil, "", errCacheStopped
	case c.requests <- req:
	}
	select {
	case <-ctx.Done():
		return nil, "", ctx.Err()
	case <-c.quit:
		return nil, "", errCacheStopped
	case resp := <-req.reply:
		return resp.data, resp.ctype, resp.err
	}
}

// loop serialises all cache access inside a single goroutine so plain
// maps suffice.
func (c *AssetCache) loop() {
	store := make(map[string]assetEntry)
	for {
		select {
		case <-c.quit:
			return
		case req := <-c.requests:
			now := c.now()
			if entry, ok := store[req.key]; ok && now.Before(entry.expires) {
				req.reply <- assetResponse{data: entry.data, ctype: entry.ctype}
				continue
			}
			if req.loader == nil {
				req.reply <- assetResponse{err: errNoLoader}
				continue
			}
			data, ctype, err := req.loader(req.ctx)
			if err == nil && data != nil {
				store[req.key] = assetEntry{data: data, ctype: ctype, expires: now.Add(c.ttl)}
			} else if err != nil {
				delete(store, req.key)
			}
			req.reply <- assetResponse{data: data, ctype: ctype, err: err}
		}
	}
}
