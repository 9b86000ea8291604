package favourites

import (
	"context"
	"reflect"
	"testing"
)

// recordingPersister captures every snapshot handed to SaveFavourites
// and serves a canned initial list.
type recordingPersister struct {
	initial []string
	saves   chan []string
}

func (p *recordingPersister) SaveFavourites(_ context.Context, ids []string) error {
	p.saves <- ids
	return nil
}

func (p *recordingPersister) LoadFavourites(context.Context) ([]string, error) {
	return p.initial, nil
}

// TestToggleRoundTrip verifies toggling twice restores the original
// membership and that snapshot reflects a single toggle.
func TestToggleRoundTrip(t *testing.T) {
	t.Parallel()

	s := NewStore(context.Background(), nil, func(string, ...any) {})

	if s.Contains("42") {
		t.Fatal("fresh store contains 42")
	}
	if !s.Toggle("42") {
		t.Fatal("first Toggle(42) = false, want starred")
	}
	if !s.Contains("42") {
		t.Fatal("Contains(42) = false after starring")
	}
	if got := s.Snapshot(); !reflect.DeepEqual(got, []string{"42"}) {
		t.Fatalf("Snapshot = %v, want [42]", got)
	}
	if s.Toggle("42") {
		t.Fatal("second Toggle(42) = true, want unstarred")
	}
	if s.Contains("42") {
		t.Fatal("Contains(42) = true after un-starring")
	}
	if got := s.Snapshot(); len(got) != 0 {
		t.Fatalf("Snapshot = %v, want empty", got)
	}
}

// TestEveryToggleGetsPersisted checks the full snapshot is written on
// each mutation, in first-starred order.
func TestEveryToggleGetsPersisted(t *testing.T) {
	t.Parallel()

	p := &recordingPersister{saves: make(chan []string, 8)}
	s := NewStore(context.Background(), p, func(string, ...any) {})

	s.Toggle("a")
	s.Toggle("b")
	s.Toggle("a")

	want := [][]string{{"a"}, {"a", "b"}, {"b"}}
	for i, w := range want {
		got := <-p.saves
		if !reflect.DeepEqual(got, w) {
			t.Fatalf("save %d = %v, want %v", i, got, w)
		}
	}
}

// TestInitialLoadSeedsTheSet starts the actor from the persisted list
// and ignores duplicates or empty ids in it.
func TestInitialLoadSeedsTheSet(t *testing.T) {
	t.Parallel()

	p := &recordingPersister{initial: []string{"7", "", "9", "7"}, saves: make(chan []string, 8)}
	s := NewStore(context.Background(), p, func(string, ...any) {})

	if !s.Contains("7") || !s.Contains("9") {
		t.Fatal("persisted ids missing after load")
	}
	if got := s.Snapshot(); !reflect.DeepEqual(got, []string{"7", "9"}) {
		t.Fatalf("Snapshot = %v, want [7 9]", got)
	}
}
