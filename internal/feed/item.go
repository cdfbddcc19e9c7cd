// Package feed implements the client-side engine behind every paginated live
// list in the app: comment threads, reply threads, the main feed, channel
// lists and channel message history. One engine, parametrized by ordering and
// cursor style, replaces the per-surface reimplementations that used to drift
// apart.
//
// The engine is built from small parts: Store holds the ordered, deduplicated
// items; a Fetcher loads one page in one direction; Binder merges push events
// from the realtime connection; Mutator applies optimistic mutations and rolls
// them back on failure; Controller ties it together and owns the loading /
// hasMore / error state the UI renders.
package feed

import (
	"encoding/json"
	"time"
)

// Item is one entry in a list. The engine only cares about identity, position
// and the handful of counters the optimistic policies touch; everything else
// rides along opaquely in Payload (the raw server JSON for the item).
type Item struct {
	// ID is the server-assigned unique identifier. Items without one are
	// dropped before they ever enter a Store.
	ID string `json:"id"`

	// Seq is the server-assigned sequence index among siblings, used for
	// load-previous arithmetic. -1 when the endpoint doesn't assign one.
	Seq int `json:"seq"`

	// CreatedAt is the creation timestamp, used as the cursor for
	// timestamp-paged endpoints (channel messages).
	CreatedAt time.Time `json:"created_at"`

	// Votes and Upvoted back the vote-toggle optimistic policy.
	Votes   int  `json:"votes"`
	Upvoted bool `json:"upvoted"`

	// Replies is the number of child items; deleting a parent decrements
	// external totals by Replies+1.
	Replies int `json:"replies"`

	// Payload is the full wire representation, opaque to the engine.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Order fixes the display order of a list for its whole lifetime.
type Order int

const (
	// NewestFirst lists (comments, feeds) show the most recent item at the
	// head and append older pages at the tail.
	NewestFirst Order = iota

	// OldestFirst lists (reply threads, channel messages) show history
	// top-down and prepend older pages at the head.
	OldestFirst
)

// OrderKey selects which item attribute carries the ordering.
type OrderKey int

const (
	// BySeq orders by the server-assigned sequence index.
	BySeq OrderKey = iota

	// ByCreatedAt orders by creation timestamp.
	ByCreatedAt
)

// Side names an end of the list for merging.
type Side int

const (
	// Append concatenates new items after the current tail.
	Append Side = iota

	// Prepend concatenates new items before the current head.
	Prepend
)

// before reports whether a sorts before b under the given order and key.
// Equal keys compare as "not before" so merges never reorder ties.
func before(a, b Item, order Order, key OrderKey) bool {
	switch key {
	case BySeq:
		if order == NewestFirst {
			return a.Seq > b.Seq
		}
		return a.Seq < b.Seq
	default:
		if order == NewestFirst {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	}
}
