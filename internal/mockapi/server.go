package mockapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/waveline/feedsync/internal/feed"
	"github.com/waveline/feedsync/internal/realtime"
)

var errNotFound = errors.New("not found")

// Server serves the REST contract plus the websocket push endpoint.
type Server struct {
	data *dataset
	hub  *hub
}

// New builds a server seeded deterministically from the given faker seed.
func New(fakerSeed uint64) *Server {
	return &Server{
		data: seed(gofakeit.New(fakerSeed)),
		hub:  newHub(),
	}
}

// Router assembles the gin engine with the full route table.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.Default())
	r.Use(otelgin.Middleware("mockapi"))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	r.GET("/ws", s.hub.handleWS)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/feeds", s.listFeeds)
		v1.GET("/posts/:id/comments", s.listComments)
		v1.POST("/posts/:id/comments", s.createComment)
		v1.POST("/posts/:id/vote", s.vote)
		v1.GET("/comments/:id/replies", s.listReplies)
		v1.PUT("/comments/:id", s.editComment)
		v1.DELETE("/comments/:id", s.deleteComment)
		v1.POST("/comments/:id/vote", s.vote)
		v1.GET("/channels", s.listChannels)
		v1.POST("/channels/:id/join", s.joinChannel)
		v1.GET("/channels/:id/messages", s.listMessages)
		v1.POST("/channels/:id/messages", s.createMessage)
	}

	return r
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "message": msg})
}

func queryInt(c *gin.Context, name string, fallback int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return fallback
	}
	return v
}

func (s *Server) listFeeds(c *gin.Context) {
	count := queryInt(c, "count", 20)
	page := queryInt(c, "page", 0)
	search := c.Query("q")

	s.data.mu.RLock()
	defer s.data.mu.RUnlock()

	list := s.data.feeds
	if search != "" {
		filtered := make([]*record, 0, len(list))
		for _, r := range list {
			if containsFold(r.Title, search) || containsFold(r.Content, search) {
				filtered = append(filtered, r)
			}
		}
		list = filtered
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"feeds":   window(list, page, count),
	})
}

func (s *Server) listComments(c *gin.Context) {
	postID := c.Param("id")
	count := queryInt(c, "count", 20)
	index := queryInt(c, "index", 0)

	s.data.mu.RLock()
	defer s.data.mu.RUnlock()

	if loc, ok := s.data.locations[postID]; !ok || loc.kind != kindFeed {
		fail(c, http.StatusNotFound, "post not found")
		return
	}

	list := s.data.comments[postID]
	if findID := c.Query("findPostId"); findID != "" {
		index = findStart(list, findID, count)
		if index < 0 {
			fail(c, http.StatusNotFound, "comment not found")
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   len(list),
		"posts":   window(list, index, count),
	})
}

func (s *Server) listReplies(c *gin.Context) {
	commentID := c.Param("id")
	count := queryInt(c, "count", 20)
	index := queryInt(c, "index", 0)

	s.data.mu.RLock()
	defer s.data.mu.RUnlock()

	if loc, ok := s.data.locations[commentID]; !ok || loc.kind != kindComment {
		fail(c, http.StatusNotFound, "comment not found")
		return
	}

	list := s.data.replies[commentID]
	if findID := c.Query("findPostId"); findID != "" {
		index = findStart(list, findID, count)
		if index < 0 {
			fail(c, http.StatusNotFound, "reply not found")
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   len(list),
		"replies": window(list, index, count),
	})
}

func (s *Server) listChannels(c *gin.Context) {
	count := queryInt(c, "count", 20)
	index := queryInt(c, "index", 0)

	s.data.mu.RLock()
	defer s.data.mu.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"count":    len(s.data.channels),
		"channels": window(s.data.channels, index, count),
	})
}

func (s *Server) listMessages(c *gin.Context) {
	channelID := c.Param("id")
	count := queryInt(c, "count", 20)

	var cutoff time.Time
	if raw := c.Query("fromDate"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			fail(c, http.StatusBadRequest, "invalid fromDate")
			return
		}
		cutoff = t
	}

	s.data.mu.RLock()
	defer s.data.mu.RUnlock()

	if loc, ok := s.data.locations[channelID]; !ok || loc.kind != kindChannel {
		fail(c, http.StatusNotFound, "channel not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"messages": tailBefore(s.data.messages[channelID], cutoff, count),
	})
}

func (s *Server) createComment(c *gin.Context) {
	var body struct {
		Content  string `json:"content"`
		ParentID string `json:"parent_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Content == "" {
		fail(c, http.StatusUnprocessableEntity, "content is required")
		return
	}

	rec, isReply, err := s.data.addComment(c.Param("id"), body.Content, body.ParentID, requestUser(c))
	if err != nil {
		fail(c, http.StatusNotFound, "post not found")
		return
	}

	scope := "parent=" + c.Param("id")
	if isReply {
		scope = "parent=" + body.ParentID
	}
	s.publish(feed.EventItemCreated, scope, rec)

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": rec})
}

func (s *Server) editComment(c *gin.Context) {
	var body struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Content == "" {
		fail(c, http.StatusUnprocessableEntity, "content is required")
		return
	}

	rec, err := s.data.edit(c.Param("id"), body.Content)
	if err != nil {
		fail(c, http.StatusNotFound, "comment not found")
		return
	}
	s.publish(feed.EventItemUpdated, "parent="+rec.ParentID, rec)

	c.JSON(http.StatusOK, gin.H{"success": true, "data": rec})
}

func (s *Server) deleteComment(c *gin.Context) {
	rec, parentID, err := s.data.remove(c.Param("id"))
	if err != nil {
		fail(c, http.StatusNotFound, "comment not found")
		return
	}
	s.publish(feed.EventItemDeleted, "parent="+parentID, rec)

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "deleted"})
}

func (s *Server) vote(c *gin.Context) {
	rec, parentID, err := s.data.vote(c.Param("id"))
	if err != nil {
		fail(c, http.StatusNotFound, "not found")
		return
	}

	if parentID == "" {
		// Feed post: the event scope is the root feed.
		s.publish(feed.EventItemUpdated, "root", rec)
		c.JSON(http.StatusOK, gin.H{"success": true, "post": rec})
		return
	}
	s.publish(feed.EventItemUpdated, "parent="+parentID, rec)
	c.JSON(http.StatusOK, gin.H{"success": true, "data": rec})
}

func (s *Server) createMessage(c *gin.Context) {
	var body struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Content == "" {
		fail(c, http.StatusUnprocessableEntity, "content is required")
		return
	}

	rec, err := s.data.addMessage(c.Param("id"), body.Content, requestUser(c))
	if err != nil {
		fail(c, http.StatusNotFound, "channel not found")
		return
	}
	s.publish(feed.EventItemCreated, "channel="+rec.ChannelID, rec)

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": rec})
}

// joinChannel emits a membership notice into the channel's message stream.
func (s *Server) joinChannel(c *gin.Context) {
	user := requestUser(c)
	rec, err := s.data.addMessage(c.Param("id"), user+" joined the channel", "system")
	if err != nil {
		fail(c, http.StatusNotFound, "channel not found")
		return
	}
	s.publish(feed.EventMembershipChanged, "channel="+rec.ChannelID, rec)

	c.JSON(http.StatusOK, gin.H{"success": true, "data": rec})
}

// publish broadcasts one mutation to the push clients.
func (s *Server) publish(kind feed.EventKind, scope string, rec *record) {
	raw, err := marshalRecord(s.data, rec)
	if err != nil {
		return
	}
	s.hub.broadcast(realtime.Message{
		Event: string(kind),
		Scope: scope,
		Item:  raw,
	})
}

// requestUser derives a display name from the bearer token; the mock has no
// real accounts.
func requestUser(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); len(auth) > len("Bearer ") {
		return "user-" + auth[len("Bearer "):]
	}
	return "anonymous"
}

// marshalRecord snapshots a record as JSON under the dataset lock so a
// concurrent mutation cannot race the encoder.
func marshalRecord(d *dataset, rec *record) (json.RawMessage, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return json.Marshal(rec)
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// findStart centers a deep-linked item inside a page of the given size.
func findStart(list []*record, id string, count int) int {
	for i, r := range list {
		if r.ID == id {
			start := i - count/2
			if start < 0 {
				start = 0
			}
			return start
		}
	}
	return -1
}
