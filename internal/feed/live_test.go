package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource is an in-memory EventSource with synchronous dispatch.
type fakeSource struct {
	handlers map[string][]*func(Event)
}

func newFakeSource() *fakeSource {
	return &fakeSource{handlers: make(map[string][]*func(Event))}
}

func (f *fakeSource) Subscribe(event string, h func(Event)) func() {
	ptr := &h
	f.handlers[event] = append(f.handlers[event], ptr)
	return func() {
		list := f.handlers[event]
		for i, p := range list {
			if p == ptr {
				f.handlers[event] = append(list[:i], list[i+1:]...)
				return
			}
		}
	}
}

func (f *fakeSource) emit(e Event) {
	for _, p := range f.handlers[string(e.Kind)] {
		(*p)(e)
	}
}

func TestBinderIgnoresOtherScopes(t *testing.T) {
	s := NewStore(OldestFirst, ByCreatedAt)
	src := newFakeSource()
	b := NewBinder(s, "channel=ch1")
	b.Bind(src)
	defer b.Close()

	src.emit(Event{Kind: EventItemCreated, Scope: "channel=ch2", Item: seqItem("m1", 0)})
	assert.Equal(t, 0, s.Len())

	src.emit(Event{Kind: EventItemCreated, Scope: "channel=ch1", Item: seqItem("m1", 0)})
	assert.Equal(t, 1, s.Len())
}

func TestBinderDedupsAgainstConcurrentFetch(t *testing.T) {
	s := NewStore(OldestFirst, ByCreatedAt)
	src := newFakeSource()
	b := NewBinder(s, "channel=ch1")
	b.Bind(src)
	defer b.Close()

	// The page fetch already delivered m1; the push event for it must be
	// a no-op. The reverse order must hold too.
	s.Merge([]Item{seqItem("m1", 0)}, Append)
	src.emit(Event{Kind: EventItemCreated, Scope: "channel=ch1", Item: seqItem("m1", 0)})
	assert.Equal(t, 1, s.Len())

	src.emit(Event{Kind: EventItemCreated, Scope: "channel=ch1", Item: seqItem("m2", 1)})
	s.Merge([]Item{seqItem("m2", 1), seqItem("m3", 2)}, Append)
	assert.Equal(t, 3, s.Len())
}

func TestBinderUpdateAndDelete(t *testing.T) {
	s := NewStore(OldestFirst, BySeq)
	src := newFakeSource()
	b := NewBinder(s, "parent=p1")
	b.Bind(src)
	defer b.Close()

	s.Merge([]Item{seqItem("c1", 0), seqItem("c2", 1)}, Append)

	updated := seqItem("c1", 0)
	updated.Votes = 12
	src.emit(Event{Kind: EventItemUpdated, Scope: "parent=p1", Item: updated})
	got, _ := s.Get("c1")
	assert.Equal(t, 12, got.Votes)

	var removed []Item
	b.OnRemoved = func(it Item) { removed = append(removed, it) }
	src.emit(Event{Kind: EventItemDeleted, Scope: "parent=p1", Item: Item{ID: "c1"}})

	require.Len(t, removed, 1)
	assert.Equal(t, "c1", removed[0].ID)
	c2, _ := s.Get("c2")
	assert.Equal(t, 0, c2.Seq, "remote deletes cascade like local ones")
}

func TestBinderMembershipNotice(t *testing.T) {
	s := NewStore(OldestFirst, ByCreatedAt)
	src := newFakeSource()
	b := NewBinder(s, "channel=ch1")
	b.Bind(src)
	defer b.Close()

	notice := seqItem("join-7", -1)
	notice.Payload = []byte(`{"kind":"member_joined","user":"ada"}`)
	src.emit(Event{Kind: EventMembershipChanged, Scope: "channel=ch1", Item: notice})

	got, ok := s.Get("join-7")
	require.True(t, ok, "membership notices materialize as synthetic items")
	assert.JSONEq(t, `{"kind":"member_joined","user":"ada"}`, string(got.Payload))
}

func TestBinderCloseUnsubscribes(t *testing.T) {
	s := NewStore(OldestFirst, ByCreatedAt)
	src := newFakeSource()
	b := NewBinder(s, "channel=ch1")
	b.Bind(src)

	b.Close()
	b.Close() // idempotent

	src.emit(Event{Kind: EventItemCreated, Scope: "channel=ch1", Item: seqItem("m1", 0)})
	assert.Equal(t, 0, s.Len(), "a closed binder must not merge into disposed state")
}
