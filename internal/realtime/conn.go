// Package realtime maintains the single shared push connection for a client
// session. Every mounted list subscribes to the subset of events it cares
// about and unsubscribes on unmount; the connection itself outlives them all
// and reconnects with exponential backoff when the server drops it.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/waveline/feedsync/internal/feed"
	"github.com/waveline/feedsync/internal/logger"
)

const (
	// pingPeriod keeps intermediaries from idling the connection out.
	pingPeriod = 30 * time.Second

	// maxReconnectInterval caps the backoff between redial attempts.
	maxReconnectInterval = 30 * time.Second
)

// Message is the wire frame for push events.
type Message struct {
	// Event is the routing name, e.g. "item_created" or "channel:new_invite".
	Event string `json:"event"`

	// Scope identifies which list the event belongs to.
	Scope string `json:"scope,omitempty"`

	// Item is the full item payload, when the event carries one.
	Item json.RawMessage `json:"item,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// Conn is the WebSocket-backed feed.EventSource. Handlers are dispatched in
// receipt order from a single read loop, so per-scope causal order is
// preserved without any buffering.
type Conn struct {
	url   string
	token string

	mu       sync.RWMutex
	handlers map[string]map[uint64]func(feed.Event)
	nextID   uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Dial opens the shared push connection and starts its read loop. The
// returned Conn keeps itself alive, redialing on failure, until Close.
func Dial(ctx context.Context, url, token string) (*Conn, error) {
	connCtx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		url:      url,
		token:    token,
		handlers: make(map[string]map[uint64]func(feed.Event)),
		ctx:      connCtx,
		cancel:   cancel,
	}

	// Fail fast on the first dial so a bad URL or token surfaces
	// immediately instead of spinning in the backoff loop.
	ws, err := c.dial(ctx)
	if err != nil {
		cancel()
		return nil, err
	}

	c.wg.Add(1)
	go c.run(ws)
	return c, nil
}

// Subscribe registers a handler for a named event and returns its cancel
// function. Cancel is idempotent and must be called when the owning view
// unmounts.
func (c *Conn) Subscribe(event string, h func(feed.Event)) (cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	if c.handlers[event] == nil {
		c.handlers[event] = make(map[uint64]func(feed.Event))
	}
	c.handlers[event][id] = h

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if hs, ok := c.handlers[event]; ok {
			delete(hs, id)
			if len(hs) == 0 {
				delete(c.handlers, event)
			}
		}
	}
}

// Close tears the connection down and stops the read loop.
func (c *Conn) Close() error {
	c.cancel()
	c.wg.Wait()
	return nil
}

func (c *Conn) dial(ctx context.Context) (*websocket.Conn, error) {
	opts := &websocket.DialOptions{}
	if c.token != "" {
		opts.HTTPHeader = http.Header{"Authorization": {"Bearer " + c.token}}
	}
	ws, _, err := websocket.Dial(ctx, c.url, opts)
	if err != nil {
		return nil, err
	}
	ws.SetReadLimit(512 * 1024)
	return ws, nil
}

// run reads frames until the connection drops, then redials with backoff.
func (c *Conn) run(ws *websocket.Conn) {
	defer c.wg.Done()

	for {
		c.readLoop(ws)
		ws.Close(websocket.StatusNormalClosure, "")

		if c.ctx.Err() != nil {
			return
		}

		logger.Warn("Push connection lost, reconnecting", zap.String("url", c.url))

		bo := backoff.NewExponentialBackOff()
		bo.MaxInterval = maxReconnectInterval
		bo.MaxElapsedTime = 0 // retry until Close

		var err error
		err = backoff.Retry(func() error {
			if c.ctx.Err() != nil {
				return backoff.Permanent(c.ctx.Err())
			}
			var dialErr error
			ws, dialErr = c.dial(c.ctx)
			return dialErr
		}, backoff.WithContext(bo, c.ctx))
		if err != nil {
			return
		}
		logger.Log.Info("Push connection reestablished", zap.String("url", c.url))
	}
}

func (c *Conn) readLoop(ws *websocket.Conn) {
	pingCtx, stopPing := context.WithCancel(c.ctx)
	defer stopPing()
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-pingCtx.Done():
				return
			case <-ticker.C:
				if err := ws.Ping(pingCtx); err != nil {
					return
				}
			}
		}
	}()

	for {
		var msg Message
		if err := wsjson.Read(c.ctx, ws, &msg); err != nil {
			return
		}
		c.dispatch(msg)
	}
}

// dispatch fans one message out to its subscribers, in receipt order.
func (c *Conn) dispatch(msg Message) {
	c.mu.RLock()
	hs := make([]func(feed.Event), 0, len(c.handlers[msg.Event]))
	for _, h := range c.handlers[msg.Event] {
		hs = append(hs, h)
	}
	c.mu.RUnlock()

	if len(hs) == 0 {
		return
	}

	ev := feed.Event{
		Kind:  feed.EventKind(msg.Event),
		Scope: msg.Scope,
	}
	if len(msg.Item) > 0 {
		item, err := feed.ItemFromWire(msg.Item)
		if err != nil {
			logger.WarnWithFields("Dropping undecodable push event", err)
			return
		}
		ev.Item = item
	}

	for _, h := range hs {
		h(ev)
	}
}
