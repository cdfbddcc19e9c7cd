package mockapi

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waveline/feedsync/internal/api"
	"github.com/waveline/feedsync/internal/feed"
	"github.com/waveline/feedsync/internal/realtime"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := &Server{data: newDataset(), hub: newHub()}
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return s, ts
}

// seedPost installs a post with n sequential comments, bypassing the faker.
func seedPost(d *dataset, postID string, n int) {
	base := time.Unix(1700000000, 0).UTC()
	post := &record{ID: postID, CreatedAt: base, Answers: n}
	d.feeds = append([]*record{post}, d.feeds...)
	d.locations[postID] = location{kind: kindFeed}
	for i := 0; i < n; i++ {
		c := &record{
			ID:        fmt.Sprintf("%s-c%03d", postID, i),
			Index:     intPtr(i),
			CreatedAt: base.Add(time.Duration(i+1) * time.Minute),
			Content:   fmt.Sprintf("comment %d", i),
			ParentID:  postID,
		}
		d.comments[postID] = append(d.comments[postID], c)
		d.locations[c.ID] = location{kind: kindComment, key: postID}
	}
}

func seedChannel(d *dataset, chID string, n int) {
	base := time.Unix(1700000000, 0).UTC()
	ch := &record{ID: chID, Index: intPtr(len(d.channels)), CreatedAt: base}
	d.channels = append(d.channels, ch)
	d.locations[chID] = location{kind: kindChannel}
	for i := 0; i < n; i++ {
		m := &record{
			ID:        fmt.Sprintf("%s-m%03d", chID, i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			Content:   fmt.Sprintf("message %d", i),
			ChannelID: chID,
		}
		d.messages[chID] = append(d.messages[chID], m)
		d.locations[m.ID] = location{kind: kindMessage, key: chID}
	}
}

func commentController(client *api.Client, postID string, pageSize int) *feed.Controller {
	return feed.NewController(feed.ListConfig{
		Order:    feed.OldestFirst,
		Key:      feed.BySeq,
		Cursor:   feed.CursorIndex,
		PageSize: pageSize,
		Fetcher:  client.CommentsFetcher(),
	})
}

func TestCommentPaginationEndToEnd(t *testing.T) {
	s, ts := newTestServer(t)
	seedPost(s.data, "post-1", 25)
	client := api.New(ts.URL, "", ts.Client())

	ctrl := commentController(client, "post-1", 10)
	ctx := context.Background()
	require.NoError(t, ctrl.Reset(ctx, feed.Params{ParentID: "post-1"}))

	st := ctrl.State()
	assert.Len(t, st.Items, 10)
	assert.True(t, st.HasMore)
	assert.Equal(t, 25, st.Total)
	assert.Equal(t, "post-1-c000", st.Items[0].ID)

	require.NoError(t, ctrl.LoadMore(ctx))
	require.NoError(t, ctrl.LoadMore(ctx))

	st = ctrl.State()
	assert.Len(t, st.Items, 25)
	assert.False(t, st.HasMore)
	assert.Equal(t, "post-1-c024", st.Items[24].ID)
}

func TestDeepLinkThenLoadPrevious(t *testing.T) {
	s, ts := newTestServer(t)
	seedPost(s.data, "post-1", 40)
	client := api.New(ts.URL, "", ts.Client())

	ctrl := commentController(client, "post-1", 10)
	ctx := context.Background()
	require.NoError(t, ctrl.Reset(ctx, feed.Params{
		ParentID:   "post-1",
		FindItemID: "post-1-c020",
	}))

	st := ctrl.State()
	require.Len(t, st.Items, 10)
	// Deep link centers the target; earlier comments remain above the head.
	assert.Equal(t, "post-1-c015", st.Items[0].ID)
	assert.True(t, st.HasPrevious)

	require.NoError(t, ctrl.LoadPrevious(ctx))
	st = ctrl.State()
	assert.Equal(t, "post-1-c005", st.Items[0].ID)
	assert.True(t, st.HasPrevious)

	require.NoError(t, ctrl.LoadPrevious(ctx))
	st = ctrl.State()
	assert.Equal(t, "post-1-c000", st.Items[0].ID)
	assert.False(t, st.HasPrevious)
}

func TestMessageHistoryPagesBackwards(t *testing.T) {
	s, ts := newTestServer(t)
	seedChannel(s.data, "ch-1", 30)
	client := api.New(ts.URL, "", ts.Client())

	ctrl := feed.NewController(feed.ListConfig{
		Order:    feed.OldestFirst,
		Key:      feed.ByCreatedAt,
		Cursor:   feed.CursorTimestamp,
		PageSize: 10,
		Fetcher:  client.MessagesFetcher(),
	})
	ctx := context.Background()
	require.NoError(t, ctrl.Reset(ctx, feed.Params{ChannelID: "ch-1"}))

	st := ctrl.State()
	require.Len(t, st.Items, 10)
	assert.Equal(t, "ch-1-m020", st.Items[0].ID)
	assert.Equal(t, "ch-1-m029", st.Items[9].ID)
	assert.False(t, st.HasMore)
	assert.True(t, st.HasPrevious)

	require.NoError(t, ctrl.LoadPrevious(ctx))
	st = ctrl.State()
	require.Len(t, st.Items, 20)
	assert.Equal(t, "ch-1-m010", st.Items[0].ID)
}

func TestMutationsBroadcastToPushClients(t *testing.T) {
	s, ts := newTestServer(t)
	seedPost(s.data, "post-1", 3)
	client := api.New(ts.URL, "abc", ts.Client())

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, err := realtime.Dial(context.Background(), wsURL, "abc")
	require.NoError(t, err)
	defer conn.Close()

	ctrl := commentController(client, "post-1", 10)
	ctx := context.Background()
	require.NoError(t, ctrl.Reset(ctx, feed.Params{ParentID: "post-1"}))

	binder := feed.NewBinder(ctrl.Store(), "parent=post-1")
	binder.Bind(conn)
	defer binder.Close()

	created, err := client.CreateComment(ctx, "post-1", "fresh", "")
	require.NoError(t, err)
	assert.Equal(t, 3, created.Seq)

	// The push event lands asynchronously; the store dedupes if the item
	// was already merged from the mutation response.
	require.Eventually(t, func() bool {
		_, ok := ctrl.Store().Get(created.ID)
		return ok
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 4, ctrl.Store().Len())
}

func TestDeleteReindexesRemainingComments(t *testing.T) {
	s, ts := newTestServer(t)
	seedPost(s.data, "post-1", 5)
	client := api.New(ts.URL, "", ts.Client())
	ctx := context.Background()

	require.NoError(t, client.DeleteComment(ctx, "post-1-c001"))

	page, err := client.ListComments(ctx, feed.PageRequest{
		Count: 10, Index: -1, Params: feed.Params{ParentID: "post-1"},
	})
	require.NoError(t, err)
	require.Len(t, page.Items, 4)
	assert.Equal(t, 4, page.Total)
	for i, it := range page.Items {
		assert.Equal(t, i, it.Seq)
	}
}

func TestVoteTogglesOnRepeat(t *testing.T) {
	s, ts := newTestServer(t)
	seedPost(s.data, "post-1", 1)
	client := api.New(ts.URL, "", ts.Client())
	ctx := context.Background()

	first, err := client.VoteComment(ctx, "post-1-c000")
	require.NoError(t, err)
	assert.Equal(t, 1, first.Votes)
	assert.True(t, first.Upvoted)

	second, err := client.VoteComment(ctx, "post-1-c000")
	require.NoError(t, err)
	assert.Equal(t, 0, second.Votes)
	assert.False(t, second.Upvoted)
}

func TestUnknownPostReturnsNotFoundEnvelope(t *testing.T) {
	_, ts := newTestServer(t)
	client := api.New(ts.URL, "", ts.Client())

	_, err := client.ListComments(context.Background(), feed.PageRequest{
		Count: 10, Index: -1, Params: feed.Params{ParentID: "nope"},
	})
	require.Error(t, err)
}
