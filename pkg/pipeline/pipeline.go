// Package pipeline runs the cascading fetch sequence that fills the
// field guide: beds first, then plants, then images and trail data in
// parallel. One goroutine owns every index and ordering; background
// fetches only deliver results over channels, so shared state needs no
// locks and snapshots can be replaced wholesale.
//
// Every stage degrades to an empty result on transport or decode
// failure. There is no retry: a failed stage stays empty until the
// next full refresh.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"ness-field-guide/pkg/bedrank"
	"ness-field-guide/pkg/catalog"
	"ness-field-guide/pkg/eventbus"
	"ness-field-guide/pkg/geomath"
	"ness-field-guide/pkg/logger"
	"ness-field-guide/pkg/records"
	"ness-field-guide/pkg/trails"
)

// Fetcher is the slice of the remote client the pipeline needs.
type Fetcher interface {
	FetchBeds(ctx context.Context) ([]records.Bed, error)
	FetchPlants(ctx context.Context) ([]records.Plant, error)
	FetchImages(ctx context.Context) ([]records.ImageRef, error)
	FetchTrails(ctx context.Context) ([]records.Trail, error)
	FetchTrailPoints(ctx context.Context) ([]records.TrailPoint, error)
}

// View is what the rendering layer reads: the current data snapshot
// plus the live position state driving the map.
type View struct {
	Snapshot catalog.Snapshot
	Position *geomath.Point
	Follow   bool
}

// DefaultFollowDelay is how long after the first position fix the map
// stays on its initial centered framing before switching into
// continuous-follow mode.
const DefaultFollowDelay = 5 * time.Second

type bedsResult struct {
	gen    int64
	beds   []records.Bed
	failed bool
}

type plantsResult struct {
	gen    int64
	plants []records.Plant
	failed bool
}

type imagesResult struct {
	gen    int64
	images []records.ImageRef
	failed bool
}

type trailsResult struct {
	gen          int64
	trails       []records.Trail
	points       []records.TrailPoint
	metaFailed   bool
	pointsFailed bool
}

type viewRequest struct {
	reply chan View
}

// Service owns the aggregated garden state. All mutation happens in
// run; the exported methods only exchange messages with it.
type Service struct {
	fetch       Fetcher
	bus         *eventbus.Bus
	logf        func(string, ...any)
	followDelay time.Duration

	refresh   chan struct{}
	positions chan geomath.Point
	views     chan viewRequest

	beds    chan bedsResult
	plants  chan plantsResult
	images  chan imagesResult
	trails  chan trailsResult
	followC chan struct{}
}

// NewService wires the pipeline. followDelay <= 0 picks the default.
func NewService(fetch Fetcher, bus *eventbus.Bus, followDelay time.Duration, logf func(string, ...any)) *Service {
	if logf == nil {
		logf = log.Printf
	}
	if followDelay <= 0 {
		followDelay = DefaultFollowDelay
	}
	return &Service{
		fetch:       fetch,
		bus:         bus,
		logf:        logf,
		followDelay: followDelay,
		refresh:     make(chan struct{}, 1),
		positions:   make(chan geomath.Point, 8),
		views:       make(chan viewRequest),
		beds:        make(chan bedsResult),
		plants:      make(chan plantsResult),
		images:      make(chan imagesResult),
		trails:      make(chan trailsResult),
		followC:     make(chan struct{}, 1),
	}
}

// Start launches the actor goroutine. It runs until ctx ends.
func (s *Service) Start(ctx context.Context) {
	go s.run(ctx)
}

// Refresh asks for a full fetch cycle. Multiple calls while a request
// is already queued collapse into one.
func (s *Service) Refresh() {
	select {
	case s.refresh <- struct{}{}:
	default:
	}
}

// UpdatePosition delivers one device location fix.
func (s *Service) UpdatePosition(p geomath.Point) {
	s.positions <- p
}

// CurrentView returns the live snapshot. The contained maps and
// slices are replaced, never mutated, on updates, so the caller may
// read them freely but must not write.
func (s *Service) CurrentView(ctx context.Context) (View, error) {
	req := viewRequest{reply: make(chan View, 1)}
	select {
	case <-ctx.Done():
		return View{}, ctx.Err()
	case s.views <- req:
	}
	select {
	case <-ctx.Done():
		return View{}, ctx.Err()
	case v := <-req.reply:
		return v, nil
	}
}

// run is the single actor. State lives only here.
func (s *Service) run(ctx context.Context) {
	var (
		snap     catalog.Snapshot
		gen      int64
		pos      *geomath.Point
		firstFix = true
		follow   bool
	)

	for {
		select {
		case <-ctx.Done():
			return

		case <-s.refresh:
			gen++
			go s.fetchBedsStage(ctx, gen)

		case r := <-s.beds:
			if r.gen != gen {
				s.logf("pipeline: dropping stale beds result (gen %d, current %d)", r.gen, gen)
				continue
			}
			// A fresh cycle starts from an empty snapshot: records are
			// replaced wholesale, never patched.
			snap = catalog.Snapshot{
				Generation: r.gen,
				Beds:       r.beds,
				BedLookup:  catalog.IndexBeds(r.beds),
			}
			if r.failed {
				snap.FailedKinds = append(snap.FailedKinds, records.KindBeds)
			}
			// Beds resolved (possibly empty); plants may start.
			go s.fetchPlantsStage(ctx, r.gen)

		case r := <-s.plants:
			if r.gen != gen {
				s.logf("pipeline: dropping stale plants result (gen %d, current %d)", r.gen, gen)
				continue
			}
			alive := catalog.FilterAlive(r.plants)
			snap.PlantsByBed = catalog.IndexByBed(alive)
			snap.BedOrder = catalog.BedOrder(snap.PlantsByBed)
			if r.failed {
				snap.FailedKinds = append(snap.FailedKinds, records.KindPlants)
			}
			s.publish(eventbus.PlantsReady)
			if pos != nil {
				snap.BedOrder = bedrank.Rank(snap.BedOrder, snap.BedLookup, pos)
				s.publish(eventbus.RankingUpdated)
			}
			// Images and trail data are independent of each other.
			go s.fetchImagesStage(ctx, r.gen)
			go s.fetchTrailsStage(ctx, r.gen)

		case r := <-s.images:
			if r.gen != gen {
				s.logf("pipeline: dropping stale images result (gen %d, current %d)", r.gen, gen)
				continue
			}
			snap.ImagesByPlant = catalog.IndexImages(r.images)
			if r.failed {
				snap.FailedKinds = append(snap.FailedKinds, records.KindImages)
			}
			s.publish(eventbus.ImagesReady)

		case r := <-s.trails:
			if r.gen != gen {
				s.logf("pipeline: dropping stale trails result (gen %d, current %d)", r.gen, gen)
				continue
			}
			snap.TrailPoints = r.points
			snap.Trails = trails.Merge(r.trails, r.points)
			if r.metaFailed {
				snap.FailedKinds = append(snap.FailedKinds, records.KindTrails)
			}
			if r.pointsFailed {
				snap.FailedKinds = append(snap.FailedKinds, records.KindTrailLocations)
			}
			s.publish(eventbus.TrailsReady)

		case p := <-s.positions:
			pos = &p
			if firstFix {
				firstFix = false
				s.publish(eventbus.Centered)
				delay := s.followDelay
				followC := s.followC
				time.AfterFunc(delay, func() {
					select {
					case followC <- struct{}{}:
					default:
					}
				})
			}
			if len(snap.BedOrder) > 0 {
				snap.BedOrder = bedrank.Rank(snap.BedOrder, snap.BedLookup, pos)
				s.publish(eventbus.RankingUpdated)
			}

		case <-s.followC:
			follow = true
			s.publish(eventbus.FollowStarted)

		case req := <-s.views:
			req.reply <- View{Snapshot: snap, Position: pos, Follow: follow}
		}
	}
}

func (s *Service) publish(e eventbus.Event) {
	if s.bus != nil {
		s.bus.Publish(e)
	}
}

// fetchBedsStage downloads bed records. Failure yields an empty set;
// the cascade always proceeds.
func (s *Service) fetchBedsStage(ctx context.Context, gen int64) {
	stage := stageTag(records.KindBeds, gen)
	logger.Begin(stage)
	beds, err := s.fetch.FetchBeds(ctx)
	r := bedsResult{gen: gen, beds: beds}
	if err != nil {
		r.beds = nil
		r.failed = true
		logger.FlushError(stage, err)
	} else {
		logger.Success(stage, fmt.Sprintf("%d beds", len(beds)))
	}
	select {
	case <-ctx.Done():
	case s.beds <- r:
	}
}

func (s *Service) fetchPlantsStage(ctx context.Context, gen int64) {
	stage := stageTag(records.KindPlants, gen)
	logger.Begin(stage)
	plants, err := s.fetch.FetchPlants(ctx)
	r := plantsResult{gen: gen, plants: plants}
	if err != nil {
		r.plants = nil
		r.failed = true
		logger.FlushError(stage, err)
	} else {
		logger.Success(stage, fmt.Sprintf("%d plants", len(plants)))
	}
	select {
	case <-ctx.Done():
	case s.plants <- r:
	}
}

func (s *Service) fetchImagesStage(ctx context.Context, gen int64) {
	stage := stageTag(records.KindImages, gen)
	logger.Begin(stage)
	images, err := s.fetch.FetchImages(ctx)
	r := imagesResult{gen: gen, images: images}
	if err != nil {
		r.images = nil
		r.failed = true
		logger.FlushError(stage, err)
	} else {
		logger.Success(stage, fmt.Sprintf("%d image refs", len(images)))
	}
	select {
	case <-ctx.Done():
	case s.images <- r:
	}
}

// fetchTrailsStage pulls trail metadata and trail points in one
// branch. The two sub-fetches fail independently: missing metadata is
// normal (placeholders get synthesized) and missing points simply
// draws no paths.
func (s *Service) fetchTrailsStage(ctx context.Context, gen int64) {
	metaStage := stageTag(records.KindTrails, gen)
	logger.Begin(metaStage)
	meta, metaErr := s.fetch.FetchTrails(ctx)
	r := trailsResult{gen: gen, trails: meta}
	if metaErr != nil {
		r.trails = nil
		r.metaFailed = true
		logger.FlushError(metaStage, metaErr)
	} else {
		logger.Success(metaStage, fmt.Sprintf("%d trails", len(meta)))
	}

	pointsStage := stageTag(records.KindTrailLocations, gen)
	logger.Begin(pointsStage)
	points, pointsErr := s.fetch.FetchTrailPoints(ctx)
	r.points = points
	if pointsErr != nil {
		r.points = nil
		r.pointsFailed = true
		logger.FlushError(pointsStage, pointsErr)
	} else {
		logger.Success(pointsStage, fmt.Sprintf("%d trail points", len(points)))
	}

	select {
	case <-ctx.Done():
	case s.trails <- r:
	}
}

func stageTag(kind records.Kind, gen int64) string {
	return fmt.Sprintf("%s#%d", kind, gen)
}
