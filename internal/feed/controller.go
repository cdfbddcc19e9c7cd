package feed

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	apierrors "github.com/waveline/feedsync/internal/errors"
	"github.com/waveline/feedsync/internal/logger"
)

const (
	defaultPageSize     = 20
	defaultFetchTimeout = 10 * time.Second
)

// SnapshotCache persists list snapshots per scope so a reopened list can
// render instantly while the first page is in flight. The offline package
// provides the sqlite-backed implementation.
type SnapshotCache interface {
	Load(scope string) ([]Item, bool, error)
	Save(scope string, items []Item) error
}

// ListConfig parametrizes a Controller for one list surface.
type ListConfig struct {
	Order    Order
	Key      OrderKey
	Cursor   CursorMode
	PageSize int

	// FetchTimeout bounds each page fetch. When it expires the engine
	// reports a timeout and leaves loading state; the guarantee is that
	// the UI never spins forever, not that the request is reaped.
	FetchTimeout time.Duration

	Fetcher Fetcher

	// Cache is optional.
	Cache SnapshotCache

	// OnChange, when set, is called with a fresh state snapshot after
	// every state transition. Called without internal locks held.
	OnChange func(ListState)
}

// ListState is the snapshot the UI renders.
type ListState struct {
	Items   []Item
	Loading bool

	// HasMore reports whether another page exists past the tail
	// (the LoadMore direction).
	HasMore bool

	// HasPrevious reports whether earlier siblings exist before the head
	// (the LoadPrevious direction).
	HasPrevious bool

	// Err is the last fetch error, nil after any successful fetch.
	// A failed fetch never clears already-loaded items.
	Err error

	// Total is the server-reported total for the list, -1 when unknown.
	Total int
}

// Controller orchestrates fetching, merging and state bookkeeping for one
// list. All methods are safe for concurrent use. Stale responses are fenced
// with a generation token: Reset bumps the generation, and any fetch
// dispatched under an older generation is discarded when it lands.
type Controller struct {
	cfg   ListConfig
	store *Store

	mu               sync.Mutex
	params           Params
	gen              uint64
	loading          bool
	hasMore          bool
	hasPrevious      bool
	err              error
	total            int
	initialFetchDone bool
}

// NewController creates a controller and its backing store.
func NewController(cfg ListConfig) *Controller {
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	return &Controller{
		cfg:   cfg,
		store: NewStore(cfg.Order, cfg.Key),
		total: -1,
	}
}

// Store exposes the backing store for the live Binder and the Mutator.
func (c *Controller) Store() *Store { return c.store }

// State returns a snapshot of the current list state.
func (c *Controller) State() ListState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() ListState {
	return ListState{
		Items:       c.store.Snapshot(),
		Loading:     c.loading,
		HasMore:     c.hasMore,
		HasPrevious: c.hasPrevious,
		Err:         c.err,
		Total:       c.total,
	}
}

func (c *Controller) notify() {
	if c.cfg.OnChange == nil {
		return
	}
	c.cfg.OnChange(c.State())
}

// Reset clears the list and performs the initial fetch for a new parameter
// set. Any in-flight fetch for the previous parameters is superseded; its
// response will be dropped when it lands. When Params.FindItemID is set the
// first fetch is a deep-link fetch; the latch guarantees it is sent exactly
// once per parameter set.
func (c *Controller) Reset(ctx context.Context, p Params) error {
	c.mu.Lock()
	c.gen++
	c.params = p
	c.store.Clear()
	c.hasMore = true
	c.hasPrevious = false
	c.err = nil
	c.total = -1
	c.initialFetchDone = false
	c.mu.Unlock()

	c.primeFromCache(p)
	return c.initialFetch(ctx)
}

// Reload refetches the first page for the current parameters without
// clearing loaded items first. The deep-link FindItemID is only sent if the
// initial fetch has not been dispatched yet; reloads after that must not
// repeat the targeted fetch.
func (c *Controller) Reload(ctx context.Context) error {
	return c.initialFetch(ctx)
}

func (c *Controller) initialFetch(ctx context.Context) error {
	c.mu.Lock()
	myGen := c.gen
	p := c.params
	req := PageRequest{
		Direction: Newer,
		Count:     c.cfg.PageSize,
		Index:     -1,
		Params:    p,
	}
	if !c.initialFetchDone {
		req.FindID = p.FindItemID
	}
	// The latch is set at dispatch, not at completion: even a failed
	// deep-link fetch must not be repeated with FindID.
	c.initialFetchDone = true
	c.loading = true
	c.mu.Unlock()

	c.notify()

	page, err := c.fetch(ctx, req)

	c.mu.Lock()
	if c.gen != myGen {
		c.mu.Unlock()
		staleResponsesDropped.Inc()
		logger.DebugWithFields("Dropped stale initial page",
			logger.WithScope(p.Scope()), logger.WithGeneration(myGen))
		return apierrors.StaleResponse("initial fetch")
	}
	c.loading = false
	if err != nil {
		c.err = err
		c.mu.Unlock()
		c.notify()
		return err
	}

	// Drop any cache prefill so the fresh page defines the list.
	c.store.Clear()
	merged := c.store.Merge(page.Items, Append)
	itemsMerged.Add(float64(merged))
	c.err = nil
	if page.Total >= 0 {
		c.total = page.Total
	}
	c.applyPageBookkeepingLocked(len(page.Items), req.Count, true)
	c.mu.Unlock()

	c.saveToCache(p)
	c.notify()
	return nil
}

// LoadMore extends the tail of the list by one page. No-op while a fetch is
// in flight or when the tail is exhausted.
func (c *Controller) LoadMore(ctx context.Context) error {
	c.mu.Lock()
	if c.loading || !c.hasMore {
		c.mu.Unlock()
		return nil
	}
	myGen := c.gen
	p := c.params
	req := PageRequest{
		Direction: c.tailDirectionLocked(),
		Count:     c.cfg.PageSize,
		Index:     -1,
		Params:    p,
	}
	switch c.cfg.Cursor {
	case CursorTimestamp:
		if snap := c.store.Snapshot(); len(snap) > 0 {
			req.FromDate = snap[len(snap)-1].CreatedAt
		}
	default:
		if c.cfg.Key == BySeq && c.store.LastLoadedSeq() >= 0 {
			req.Index = c.store.LastLoadedSeq() + 1
		} else {
			req.Index = c.store.Len()
		}
	}
	c.loading = true
	c.mu.Unlock()
	c.notify()

	page, err := c.fetch(ctx, req)

	c.mu.Lock()
	if c.gen != myGen {
		c.mu.Unlock()
		staleResponsesDropped.Inc()
		logger.DebugWithFields("Dropped stale page",
			logger.WithScope(p.Scope()), logger.WithGeneration(myGen))
		return apierrors.StaleResponse("load more")
	}
	c.loading = false
	if err != nil {
		c.err = err
		c.mu.Unlock()
		c.notify()
		return err
	}
	merged := c.store.Merge(page.Items, Append)
	itemsMerged.Add(float64(merged))
	c.err = nil
	if page.Total >= 0 {
		c.total = page.Total
	}
	c.hasMore = len(page.Items) == req.Count
	c.refreshPreviousLocked()
	c.mu.Unlock()

	c.saveToCache(p)
	c.notify()
	return nil
}

// LoadPrevious prepends the page of siblings immediately before the loaded
// head. For sequence-indexed lists the request window is computed from the
// smallest loaded index: count = min(firstSeq, pageSize) and
// index = max(0, firstSeq - pageSize). For timestamp-paged lists it pages
// backwards from the head item's timestamp.
func (c *Controller) LoadPrevious(ctx context.Context) error {
	c.mu.Lock()
	if c.loading || !c.hasPrevious {
		c.mu.Unlock()
		return nil
	}
	myGen := c.gen
	p := c.params
	req := PageRequest{
		Direction: Older,
		Params:    p,
		Index:     -1,
	}
	switch c.cfg.Cursor {
	case CursorTimestamp:
		req.Count = c.cfg.PageSize
		if snap := c.store.Snapshot(); len(snap) > 0 {
			req.FromDate = snap[0].CreatedAt
		}
	default:
		first := c.store.FirstLoadedSeq()
		req.Count = min(first, c.cfg.PageSize)
		req.Index = max(0, first-c.cfg.PageSize)
		if req.Count <= 0 {
			c.mu.Unlock()
			return nil
		}
	}
	c.loading = true
	c.mu.Unlock()
	c.notify()

	page, err := c.fetch(ctx, req)

	c.mu.Lock()
	if c.gen != myGen {
		c.mu.Unlock()
		staleResponsesDropped.Inc()
		return apierrors.StaleResponse("load previous")
	}
	c.loading = false
	if err != nil {
		c.err = err
		c.mu.Unlock()
		c.notify()
		return err
	}
	merged := c.store.Merge(page.Items, Prepend)
	itemsMerged.Add(float64(merged))
	c.err = nil
	if c.cfg.Cursor == CursorTimestamp {
		c.hasPrevious = len(page.Items) == req.Count
	} else {
		c.refreshPreviousLocked()
	}
	c.mu.Unlock()

	c.saveToCache(p)
	c.notify()
	return nil
}

// fetch runs one page request with the configured timeout and records
// metrics by outcome.
func (c *Controller) fetch(ctx context.Context, req PageRequest) (Page, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.FetchTimeout)
	defer cancel()

	dir := "newer"
	if req.Direction == Older {
		dir = "older"
	}
	page, err := c.cfg.Fetcher.FetchPage(ctx, req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			err = apierrors.Timeout("page fetch")
		}
		pagesFetched.WithLabelValues(dir, "error").Inc()
		logger.WarnWithFields("Page fetch failed", err)
		return Page{Total: -1}, err
	}
	pagesFetched.WithLabelValues(dir, "ok").Inc()
	logger.DebugWithFields("Page fetched",
		logger.WithScope(req.Params.Scope()),
		zap.Int("count", len(page.Items)),
		zap.String("direction", dir))
	return page, nil
}

// applyPageBookkeepingLocked updates the hasMore flags after a tail-extending
// fetch. Caller holds mu.
func (c *Controller) applyPageBookkeepingLocked(returned, requested int, initial bool) {
	switch c.cfg.Cursor {
	case CursorTimestamp:
		// The first page is the most recent history window; the tail is
		// fed by live events, and history extends from the head.
		if initial {
			c.hasMore = false
			c.hasPrevious = returned == requested
		} else {
			c.hasMore = returned == requested
		}
	default:
		c.hasMore = returned == requested
		c.refreshPreviousLocked()
	}
}

// refreshPreviousLocked recomputes head availability for sequence-indexed
// lists: earlier siblings exist exactly when the smallest loaded index is
// above zero. Caller holds mu.
func (c *Controller) refreshPreviousLocked() {
	if c.cfg.Cursor == CursorIndex && c.cfg.Key == BySeq && c.store.Len() > 0 {
		c.hasPrevious = c.store.FirstLoadedSeq() > 0
	}
}

func (c *Controller) tailDirectionLocked() Direction {
	if c.cfg.Order == NewestFirst {
		return Older
	}
	return Newer
}

func (c *Controller) primeFromCache(p Params) {
	if c.cfg.Cache == nil {
		return
	}
	items, ok, err := c.cfg.Cache.Load(p.Scope())
	if err != nil {
		logger.WarnWithFields("Failed to load cached snapshot", err)
		return
	}
	if !ok {
		return
	}
	c.mu.Lock()
	c.store.Merge(items, Append)
	c.mu.Unlock()
}

func (c *Controller) saveToCache(p Params) {
	if c.cfg.Cache == nil {
		return
	}
	if err := c.cfg.Cache.Save(p.Scope(), c.store.Snapshot()); err != nil {
		logger.WarnWithFields("Failed to save snapshot to cache", err)
	}
}

// Scope derives the cache/event scope key for a parameter set.
func (p Params) Scope() string {
	parts := make([]string, 0, 4)
	if p.ParentID != "" {
		parts = append(parts, "parent="+p.ParentID)
	}
	if p.ChannelID != "" {
		parts = append(parts, "channel="+p.ChannelID)
	}
	if p.Filter != "" {
		parts = append(parts, "filter="+p.Filter)
	}
	if p.Search != "" {
		parts = append(parts, "q="+p.Search)
	}
	if len(parts) == 0 {
		return "root"
	}
	return strings.Join(parts, "|")
}
