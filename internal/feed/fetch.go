package feed

import (
	"context"
	"time"
)

// Direction names which way a page fetch walks the list.
type Direction int

const (
	// Older requests items before the cursor in display time.
	Older Direction = iota

	// Newer requests items after the cursor, or the most recent page when
	// no cursor is set.
	Newer
)

// CursorMode selects how the endpoint encodes its cursor.
type CursorMode int

const (
	// CursorIndex pages by sequence index / offset (comments, replies,
	// feeds, channels).
	CursorIndex CursorMode = iota

	// CursorTimestamp pages backwards from a timestamp (channel messages).
	CursorTimestamp
)

// Params identify one logical list. Changing any of them resets the list.
type Params struct {
	ParentID  string // post for comments, comment for replies
	ChannelID string
	Filter    string
	Search    string

	// FindItemID puts the first fetch into deep-link mode: the server
	// returns a page containing that item plus surrounding context. Only
	// the first fetch carries it.
	FindItemID string
}

// PageRequest describes exactly one page fetch.
type PageRequest struct {
	Direction Direction
	Count     int

	// Index is the forward cursor for CursorIndex endpoints. -1 when unset
	// (the very first fetch).
	Index int

	// FromDate is the backward cursor for CursorTimestamp endpoints. Zero
	// when unset.
	FromDate time.Time

	// FindID is set only on a deep-link first fetch.
	FindID string

	Params Params
}

// Page is a normalized page response.
type Page struct {
	Items []Item

	// Total is the server-reported total item count for the list, or -1
	// when the endpoint doesn't report one.
	Total int
}

// Fetcher loads one page. Implementations must be safe for concurrent use;
// the api package provides HTTP-backed fetchers per endpoint. Errors come
// back as values (internal/errors taxonomy), never panics.
type Fetcher interface {
	FetchPage(ctx context.Context, req PageRequest) (Page, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, req PageRequest) (Page, error)

// FetchPage implements Fetcher.
func (f FetcherFunc) FetchPage(ctx context.Context, req PageRequest) (Page, error) {
	return f(ctx, req)
}
