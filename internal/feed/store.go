package feed

import (
	"sync"
)

// Store is the canonical in-memory list for one mounted view. It enforces the
// two invariants every consumer relies on: no two items share an ID, and
// existing items are never reordered by a merge. Page fetches, push events and
// optimistic mutations may land in any order; each path goes through Store so
// the invariants hold regardless of arrival order.
type Store struct {
	mu    sync.RWMutex
	order Order
	key   OrderKey
	items []Item
	index map[string]int // id -> position in items
}

// NewStore creates an empty store with a fixed ordering contract.
func NewStore(order Order, key OrderKey) *Store {
	return &Store{
		order: order,
		key:   key,
		index: make(map[string]int),
	}
}

// Order returns the store's display order.
func (s *Store) Order() Order { return s.order }

// Key returns the store's ordering key.
func (s *Store) Key() OrderKey { return s.key }

// Merge filters newItems down to IDs not already present and concatenates
// them at the requested end. Existing items keep their positions. Items with
// an empty ID are dropped. Returns how many items were actually added.
func (s *Store) Merge(newItems []Item, side Side) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	fresh := make([]Item, 0, len(newItems))
	for _, it := range newItems {
		if it.ID == "" {
			continue
		}
		if _, dup := s.index[it.ID]; dup {
			continue
		}
		fresh = append(fresh, it)
	}
	if len(fresh) == 0 {
		return 0
	}

	if side == Prepend {
		s.items = append(fresh, s.items...)
	} else {
		s.items = append(s.items, fresh...)
	}
	s.reindex()
	return len(fresh)
}

// InsertLocal inserts a single item at the position dictated by the ordering
// contract: the "new" end of the list. A newest-first list inserts at the
// head, an oldest-first list at the tail. No-op when the ID already exists,
// which is exactly what makes a push event racing a page fetch safe.
func (s *Store) InsertLocal(it Item) bool {
	if it.ID == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.index[it.ID]; dup {
		return false
	}

	if s.order == NewestFirst {
		s.items = append([]Item{it}, s.items...)
	} else {
		s.items = append(s.items, it)
	}
	s.reindex()
	return true
}

// Replace applies a pure transform to exactly one item. No-op if the ID is
// absent. The transform may change the item's ID (an optimistic create being
// reconciled with the server-assigned ID); the index is kept consistent.
func (s *Store) Replace(id string, fn func(Item) Item) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.index[id]
	if !ok {
		return false
	}

	updated := fn(s.items[pos])
	if updated.ID == "" {
		// A transform may not erase identity; keep the old ID.
		updated.ID = id
	}
	if updated.ID != id {
		if _, dup := s.index[updated.ID]; dup {
			// The server-assigned ID already arrived via another path
			// (push event or page fetch). Drop the local copy instead
			// of creating a duplicate.
			s.items = append(s.items[:pos], s.items[pos+1:]...)
			s.reindex()
			return true
		}
		delete(s.index, id)
		s.index[updated.ID] = pos
	}
	s.items[pos] = updated
	return true
}

// RemoveCascading removes the item with the given ID and decrements Seq of
// every item whose Seq was greater, keeping load-previous arithmetic working
// against contiguous indices. This is a best-effort local approximation; the
// server remains the source of truth and the next fetch overwrites it.
func (s *Store) RemoveCascading(id string) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.index[id]
	if !ok {
		return Item{}, false
	}

	removed := s.items[pos]
	s.items = append(s.items[:pos], s.items[pos+1:]...)
	if removed.Seq >= 0 {
		for i := range s.items {
			if s.items[i].Seq > removed.Seq {
				s.items[i].Seq--
			}
		}
	}
	s.reindex()
	return removed, true
}

// FirstLoadedSeq returns the smallest non-negative Seq among loaded items, or
// 0 if none. Callers use it to compute how many earlier items exist.
func (s *Store) FirstLoadedSeq() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	first := -1
	for _, it := range s.items {
		if it.Seq < 0 {
			continue
		}
		if first < 0 || it.Seq < first {
			first = it.Seq
		}
	}
	if first < 0 {
		return 0
	}
	return first
}

// LastLoadedSeq returns the largest non-negative Seq among loaded items, or
// -1 if none.
func (s *Store) LastLoadedSeq() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	last := -1
	for _, it := range s.items {
		if it.Seq > last {
			last = it.Seq
		}
	}
	return last
}

// Get returns the item with the given ID.
func (s *Store) Get(id string) (Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pos, ok := s.index[id]
	if !ok {
		return Item{}, false
	}
	return s.items[pos], true
}

// Len returns the number of loaded items.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Snapshot returns a copy of the current items in display order.
func (s *Store) Snapshot() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

// Restore replaces the store contents wholesale. Used by Mutator to roll back
// a cascading delete, where many items' Seq values changed at once.
func (s *Store) Restore(items []Item) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make([]Item, len(items))
	copy(s.items, items)
	s.reindex()
}

// Clear empties the store. Used when list parameters change.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	s.index = make(map[string]int)
}

// reindex rebuilds the id index after structural changes. Caller holds mu.
func (s *Store) reindex() {
	s.index = make(map[string]int, len(s.items))
	for i, it := range s.items {
		s.index[it.ID] = i
	}
}
