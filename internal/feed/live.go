package feed

import (
	"sync"

	"github.com/waveline/feedsync/internal/logger"
)

// EventKind names the push events the engine understands.
type EventKind string

const (
	EventItemCreated       EventKind = "item_created"
	EventItemUpdated       EventKind = "item_updated"
	EventItemDeleted       EventKind = "item_deleted"
	EventMembershipChanged EventKind = "membership_changed"
)

// Event is one push notification from the realtime connection.
type Event struct {
	Kind  EventKind
	Scope string
	Item  Item
}

// EventSource is the injected capability for the shared push connection.
// Subscribe registers a handler for a named event and returns its cancel
// function; handlers for one source are invoked in receipt order. The
// realtime package provides the WebSocket-backed implementation.
type EventSource interface {
	Subscribe(event string, h func(Event)) (cancel func())
}

// Binder applies push events for one scope to one store. Events for other
// scopes are ignored. Because both a page fetch and a push event may deliver
// the same item in either order, every insert goes through the store's
// dedup-by-ID path; applying an event is always safe.
//
// Close must be called when the owning view unmounts, otherwise events keep
// merging into disposed state.
type Binder struct {
	store *Store
	scope string

	// OnInserted and OnRemoved, when set, run after an event actually
	// changed the store. Views use OnRemoved to keep external running
	// totals in line with remote deletes.
	OnInserted func(Item)
	OnRemoved  func(Item)

	mu      sync.Mutex
	cancels []func()
}

// NewBinder creates a binder for one scope.
func NewBinder(store *Store, scope string) *Binder {
	return &Binder{store: store, scope: scope}
}

// Bind subscribes to the four engine events on the given source.
func (b *Binder) Bind(src EventSource) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, kind := range []EventKind{
		EventItemCreated,
		EventItemUpdated,
		EventItemDeleted,
		EventMembershipChanged,
	} {
		b.cancels = append(b.cancels, src.Subscribe(string(kind), b.Apply))
	}
}

// Apply merges one event into the store. Exposed so tests and custom event
// plumbing can drive the binder without a connection.
func (b *Binder) Apply(e Event) {
	if e.Scope != b.scope {
		return
	}

	switch e.Kind {
	case EventItemCreated, EventMembershipChanged:
		// Membership notices arrive materialized as synthetic items and
		// take the same insert path.
		if b.store.InsertLocal(e.Item) {
			liveEventsApplied.WithLabelValues(string(e.Kind)).Inc()
			if b.OnInserted != nil {
				b.OnInserted(e.Item)
			}
		}
	case EventItemUpdated:
		server := e.Item
		if b.store.Replace(server.ID, func(Item) Item { return server }) {
			liveEventsApplied.WithLabelValues(string(e.Kind)).Inc()
		}
	case EventItemDeleted:
		removed, ok := b.store.RemoveCascading(e.Item.ID)
		if ok {
			liveEventsApplied.WithLabelValues(string(e.Kind)).Inc()
			if b.OnRemoved != nil {
				b.OnRemoved(removed)
			}
		}
	default:
		logger.DebugWithFields("Ignoring unknown push event",
			logger.WithEvent(string(e.Kind)), logger.WithScope(e.Scope))
	}
}

// Close cancels all subscriptions. Idempotent.
func (b *Binder) Close() {
	b.mu.Lock()
	cancels := b.cancels
	b.cancels = nil
	b.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}
