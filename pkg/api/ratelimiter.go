package api

import (
	"context"
	"time"
)

// ==========================
// Per-client request queuing
// ==========================

// RequestKind distinguishes cheap JSON lookups from asset downloads
// that stream image bytes through the proxy.
type RequestKind int

const (
	// RequestLight marks metadata calls that only read the snapshot.
	RequestLight RequestKind = iota
	// RequestAsset marks image proxy calls. Each one is followed by a
	// cooldown so a single client cannot hammer the garden's photo
	// host through us.
	RequestAsset
)

// RateLimiter sequences requests per client address without mutexes:
// every client gets its own goroutine, and the coordinator only routes
// messages to it.
type RateLimiter struct {
	assetCooldown time.Duration
	requests      chan keyedRequest
	now           func() time.Time
}

type keyedRequest struct {
	client string
	req    clientRequest
}

type clientRequest struct {
	ctx      context.Context
	kind     RequestKind
	response chan acquireResponse
}

type acquireResponse struct {
	release chan struct{}
	err     error
}

// Permit represents an acquired slot. Release it when the handler is
// done so the next queued request from the same client can proceed.
type Permit struct {
	release chan struct{}
}

// Release signals the limiter goroutine that the request finished.
// Double releases are harmless.
func (p *Permit) Release() {
	if p == nil || p.release == nil {
		return
	}
	close(p.release)
	p.release = nil
}

// NewRateLimiter constructs a limiter with the given cooldown after
// each asset download. It starts its coordinator immediately.
func NewRateLimiter(assetCooldown time.Duration) *RateLimiter {
	limiter := &RateLimiter{
		assetCooldown: assetCooldown,
		requests:      make(chan keyedRequest),
		now:           time.Now,
	}
	go limiter.loop()
	return limiter
}

// Acquire reserves a slot for the client. The returned Permit must be
// released. A nil limiter grants everything.
func (l *RateLimiter) Acquire(ctx context.Context, client string, kind RequestKind) (*Permit, error) {
	if l == nil {
		return nil, nil
	}

	respCh := make(chan acquireResponse, 1)
	req := clientRequest{ctx: ctx, kind: kind, response: respCh}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case l.requests <- keyedRequest{client: client, req: req}:
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case resp := <-respCh:
		if resp.err != nil {
			return nil, resp.err
		}
		return &Permit{release: resp.release}, nil
	}
}

func (l *RateLimiter) loop() {
	workers := make(map[string]chan clientRequest)

	for keyed := range l.requests {
		ch, ok := workers[keyed.client]
		if !ok {
			ch = make(chan clientRequest)
			workers[keyed.client] = ch
			go l.runClientWorker(ch)
		}

		select {
		case ch <- keyed.req:
		case <-keyed.req.ctx.Done():
			keyed.req.response <- acquireResponse{err: keyed.req.ctx.Err()}
		}
	}
}

// runClientWorker serves one client's queue in order, inserting the
// cooldown between consecutive asset downloads.
func (l *RateLimiter) runClientWorker(requests <-chan clientRequest) {
	var lastAssetFinish time.Time

	for req := range requests {
		select {
		case <-req.ctx.Done():
			req.response <- acquireResponse{err: req.ctx.Err()}
			continue
		default:
		}

		if req.kind == RequestAsset && !lastAssetFinish.IsZero() {
			readyAt := lastAssetFinish.Add(l.assetCooldown)
			if now := l.now(); now.Before(readyAt) {
				timer := time.NewTimer(readyAt.Sub(now))
				select {
				case <-req.ctx.Done():
					if !timer.Stop() {
						<-timer.C
					}
					req.response <- acquireResponse{err: req.ctx.Err()}
					continue
				case <-timer.C:
				}
			}
		}

		release := make(chan struct{})
		select {
		case <-req.ctx.Done():
			req.response <- acquireResponse{err: req.ctx.Err()}
			continue
		case req.response <- acquireResponse{release: release}:
		}

		select {
		case <-release:
		case <-req.ctx.Done():
			<-release
		}

		if req.kind == RequestAsset {
			lastAssetFinish = l.now()
		}
	}
}
