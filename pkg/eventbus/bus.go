// Package eventbus fan-outs pipeline stage events to subscribed
// listeners without locks. Channels keep the fetch pipeline and the
// rendering layer decoupled so a slow consumer never stalls a refresh.
package eventbus

import "context"

// Event names a change the rendering layer may want to react to.
type Event string

const (
	PlantsReady    Event = "plants_ready"
	ImagesReady    Event = "images_ready"
	TrailsReady    Event = "trails_ready"
	RankingUpdated Event = "ranking_updated"
	Centered       Event = "centered"
	FollowStarted  Event = "follow_started"
)

// Bus broadcasts events to every subscriber.
type Bus struct {
	publish     chan Event
	subscribe   chan chan Event
	unsubscribe chan chan Event
}

// NewBus constructs a broadcaster. The goroutine lives for the whole
// process and relies on subscriber contexts for pruning.
func NewBus(buffer int) *Bus {
	b := &Bus{
		publish:     make(chan Event, buffer),
		subscribe:   make(chan chan Event),
		unsubscribe: make(chan chan Event),
	}
	go b.run()
	return b
}

// Publish forwards an event to all listeners. Non-blocking sends keep
// the pipeline moving when clients are slow or absent.
func (b *Bus) Publish(e Event) {
	select {
	case b.publish <- e:
	default:
	}
}

// Subscribe registers a listener. The returned channel closes when the
// provided context ends.
func (b *Bus) Subscribe(ctx context.Context, buffer int) <-chan Event {
	ch := make(chan Event, buffer)
	b.subscribe <- ch

	go func() {
		<-ctx.Done()
		b.unsubscribe <- ch
		close(ch)
	}()

	return ch
}

func (b *Bus) run() {
	var listeners []chan Event

	for {
		select {
		case ch := <-b.subscribe:
			listeners = append(listeners, ch)
		case ch := <-b.unsubscribe:
			filtered := listeners[:0]
			for _, existing := range listeners {
				if existing != ch {
					filtered = append(filtered, existing)
				}
			}
			listeners = filtered
		case e := <-b.publish:
			for _, ch := range listeners {
				select {
				case ch <- e:
				default:
				}
			}
		}
	}
}
