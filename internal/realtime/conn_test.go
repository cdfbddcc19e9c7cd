package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waveline/feedsync/internal/feed"
)

// pushServer accepts one websocket client and lets the test feed it frames.
type pushServer struct {
	t      *testing.T
	frames chan Message
	gotAuth chan string
}

func newPushServer(t *testing.T) (*pushServer, string) {
	ps := &pushServer{
		t:       t,
		frames:  make(chan Message, 16),
		gotAuth: make(chan string, 1),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case ps.gotAuth <- r.Header.Get("Authorization"):
		default:
		}
		ws, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close(websocket.StatusNormalClosure, "")
		for msg := range ps.frames {
			if err := wsjson.Write(r.Context(), ws, msg); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return ps, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func rawItem(t *testing.T, id string, seq int) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"id":         id,
		"index":      seq,
		"created_at": time.Unix(1700000000, 0).UTC(),
	})
	require.NoError(t, err)
	return raw
}

func TestDialSendsBearerToken(t *testing.T) {
	ps, url := newPushServer(t)
	defer close(ps.frames)

	conn, err := Dial(context.Background(), url, "tok-123")
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, "Bearer tok-123", <-ps.gotAuth)
}

func TestDispatchInReceiptOrder(t *testing.T) {
	ps, url := newPushServer(t)
	defer close(ps.frames)

	conn, err := Dial(context.Background(), url, "")
	require.NoError(t, err)
	defer conn.Close()

	got := make(chan feed.Event, 8)
	cancel := conn.Subscribe(string(feed.EventItemCreated), func(e feed.Event) {
		got <- e
	})
	defer cancel()

	ps.frames <- Message{
		Event: string(feed.EventItemCreated),
		Scope: "channel=ch1",
		Item:  rawItem(t, "m1", 0),
	}
	ps.frames <- Message{
		Event: string(feed.EventItemCreated),
		Scope: "channel=ch1",
		Item:  rawItem(t, "m2", 1),
	}

	first := recvEvent(t, got)
	second := recvEvent(t, got)
	assert.Equal(t, "m1", first.Item.ID)
	assert.Equal(t, "channel=ch1", first.Scope)
	assert.Equal(t, 0, first.Item.Seq)
	assert.Equal(t, "m2", second.Item.ID)
}

func TestSubscribeCancelStopsDelivery(t *testing.T) {
	ps, url := newPushServer(t)
	defer close(ps.frames)

	conn, err := Dial(context.Background(), url, "")
	require.NoError(t, err)
	defer conn.Close()

	got := make(chan feed.Event, 8)
	cancel := conn.Subscribe(string(feed.EventItemDeleted), func(e feed.Event) {
		got <- e
	})

	ps.frames <- Message{Event: string(feed.EventItemDeleted), Item: rawItem(t, "a", 0)}
	recvEvent(t, got)

	cancel()
	cancel() // idempotent

	ps.frames <- Message{Event: string(feed.EventItemDeleted), Item: rawItem(t, "b", 1)}

	select {
	case e := <-got:
		t.Fatalf("unexpected delivery after cancel: %v", e.Item.ID)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDialFailsFast(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := Dial(ctx, "ws://127.0.0.1:1/ws", "")
	assert.Error(t, err)
}

func recvEvent(t *testing.T, ch <-chan feed.Event) feed.Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return feed.Event{}
	}
}
