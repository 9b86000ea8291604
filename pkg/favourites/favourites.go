// Package favourites keeps the visitor's starred plant ids. The set
// lives inside a dedicated goroutine fed through a request channel, so
// concurrent HTTP handlers never share the underlying map. Membership
// is independent of whether a plant is currently loaded.
package favourites

import (
	"context"
	"log"
	"time"
)

// Persister stores and recalls the full favourites list. Implemented
// by the database package; nil disables persistence (memory only).
type Persister interface {
	SaveFavourites(ctx context.Context, ids []string) error
	LoadFavourites(ctx context.Context) ([]string, error)
}

type opKind int

const (
	opToggle opKind = iota
	opContains
	opSnapshot
)

type request struct {
	op    opKind
	id    string
	reply chan response
}

type response struct {
	starred bool
	ids     []string
}

// Store is the favourites actor handle.
type Store struct {
	requests chan request
	persist  Persister
	logf     func(string, ...any)
}

// persistTimeout bounds each snapshot write so one stuck database
// never wedges the actor loop.
const persistTimeout = 5 * time.Second

// NewStore loads the persisted set once and starts the actor. Persist
// errors are absorbed and logged: the in-memory set stays the source
// of truth for the session.
func NewStore(ctx context.Context, persist Persister, logf func(string, ...any)) *Store {
	if logf == nil {
		logf = log.Printf
	}
	s := &Store{
		requests: make(chan request),
		persist:  persist,
		logf:     logf,
	}

	var initial []string
	if persist != nil {
		ids, err := persist.LoadFavourites(ctx)
		if err != nil {
			logf("favourites load failed, starting empty: %v", err)
		} else {
			initial = ids
		}
	}

	go s.run(initial)
	return s
}

// Toggle flips membership for id and reports the new state. The full
// snapshot is persisted before Toggle returns.
func (s *Store) Toggle(id string) bool {
	reply := make(chan response, 1)
	s.requests <- request{op: opToggle, id: id, reply: reply}
	return (<-reply).starred
}

// Contains reports whether id is starred.
func (s *Store) Contains(id string) bool {
	reply := make(chan response, 1)
	s.requests <- request{op: opContains, id: id, reply: reply}
	return (<-reply).starred
}

// Snapshot returns the starred ids in the order they were first
// starred. The slice is a copy; callers may keep it.
func (s *Store) Snapshot() []string {
	reply := make(chan response, 1)
	s.requests <- request{op: opSnapshot, reply: reply}
	return (<-reply).ids
}

func (s *Store) run(initial []string) {
	member := make(map[string]bool, len(initial))
	order := make([]string, 0, len(initial))
	for _, id := range initial {
		if id == "" || member[id] {
			continue
		}
		member[id] = true
		order = append(order, id)
	}

	for req := range s.requests {
		switch req.op {
		case opToggle:
			if member[req.id] {
				delete(member, req.id)
				filtered := order[:0]
				for _, id := range order {
					if id != req.id {
						filtered = append(filtered, id)
					}
				}
				order = filtered
			} else {
				member[req.id] = true
				order = append(order, req.id)
			}
			s.persistSnapshot(order)
			req.reply <- response{starred: member[req.id]}

		case opContains:
			req.reply <- response{starred: member[req.id]}

		case opSnapshot:
			ids := make([]string, len(order))
			copy(ids, order)
			req.reply <- response{ids: ids}
		}
	}
}

func (s *Store) persistSnapshot(order []string) {
	if s.persist == nil {
		return
	}
	ids := make([]string, len(order))
	copy(ids, order)
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.persist.SaveFavourites(ctx, ids); err != nil {
		s.logf("favourites persist failed: %v", err)
	}
}
