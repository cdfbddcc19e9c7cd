package mockapi

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"

	"github.com/waveline/feedsync/internal/logger"
	"github.com/waveline/feedsync/internal/realtime"
)

const sendBufferSize = 64

// hub fans mutation events out to every connected push client. It is a
// deliberately small sibling of a production fan-out service: no rooms, no
// auth, every client sees every event and filters by scope locally, which is
// exactly the contract the feed engine's binders are built for.
type hub struct {
	mu      sync.Mutex
	clients map[*pushClient]struct{}
}

type pushClient struct {
	send chan realtime.Message
}

func newHub() *hub {
	return &hub{clients: make(map[*pushClient]struct{})}
}

// broadcast queues a message for every connected client. Slow clients are
// dropped rather than allowed to stall the rest.
func (h *hub) broadcast(msg realtime.Message) {
	msg.Timestamp = time.Now().UTC()

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// handleWS upgrades the request and streams events until the client leaves.
func (h *hub) handleWS(c *gin.Context) {
	ws, err := websocket.Accept(c.Writer, c.Request, nil)
	if err != nil {
		logger.WarnWithFields("WebSocket accept failed", err)
		return
	}

	client := &pushClient{send: make(chan realtime.Message, sendBufferSize)}
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		if _, ok := h.clients[client]; ok {
			delete(h.clients, client)
			close(client.send)
		}
		h.mu.Unlock()
		ws.Close(websocket.StatusNormalClosure, "")
	}()

	ctx := c.Request.Context()

	// Drain incoming frames; the push channel is one-directional but the
	// read loop is what notices a disconnect.
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			if _, _, err := ws.Read(ctx); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case msg, ok := <-client.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, ws, msg)
			cancel()
			if err != nil {
				return
			}
		case <-readDone:
			return
		case <-ctx.Done():
			return
		}
	}
}
