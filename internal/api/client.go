// Package api is the typed REST client for the platform's paginated list and
// mutation endpoints. It normalizes the per-endpoint envelope variations into
// feed.Page values and the shared error taxonomy, and exposes adapters that
// plug each surface into the feed engine.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	apierrors "github.com/waveline/feedsync/internal/errors"
	"github.com/waveline/feedsync/internal/feed"
	"github.com/waveline/feedsync/internal/telemetry"
)

// Client talks to one API server on behalf of one authenticated session.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client. When httpClient is nil an otel-instrumented client
// with a 30s transport timeout is used; the feed engine applies its own
// per-fetch deadline on top.
func New(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = telemetry.NewInstrumentedHTTPClient(telemetry.HTTPClientConfig{})
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
	}
}

// ListComments fetches one page of a post's comments. Comments page by
// sequence index and support deep-linking via findPostId.
func (c *Client) ListComments(ctx context.Context, req feed.PageRequest) (feed.Page, error) {
	q := pageQuery(req)
	if req.FindID != "" {
		q.Set("findPostId", req.FindID)
	}
	if req.Params.Filter != "" {
		q.Set("filter", req.Params.Filter)
	}
	return c.list(ctx, "/api/v1/posts/"+req.Params.ParentID+"/comments", q)
}

// ListReplies fetches one page of a comment's replies.
func (c *Client) ListReplies(ctx context.Context, req feed.PageRequest) (feed.Page, error) {
	q := pageQuery(req)
	if req.FindID != "" {
		q.Set("findPostId", req.FindID)
	}
	return c.list(ctx, "/api/v1/comments/"+req.Params.ParentID+"/replies", q)
}

// ListFeeds fetches one page of the main feed, with optional filter and
// search parameters.
func (c *Client) ListFeeds(ctx context.Context, req feed.PageRequest) (feed.Page, error) {
	q := url.Values{}
	q.Set("count", strconv.Itoa(req.Count))
	if req.Index >= 0 {
		q.Set("page", strconv.Itoa(req.Index))
	}
	if req.Params.Filter != "" {
		q.Set("filter", req.Params.Filter)
	}
	if req.Params.Search != "" {
		q.Set("q", req.Params.Search)
	}
	return c.list(ctx, "/api/v1/feeds", q)
}

// ListChannels fetches one page of the user's channels.
func (c *Client) ListChannels(ctx context.Context, req feed.PageRequest) (feed.Page, error) {
	return c.list(ctx, "/api/v1/channels", pageQuery(req))
}

// ListMessages fetches one window of a channel's message history. Messages
// page backwards from a timestamp cursor; the first fetch (zero FromDate)
// returns the most recent window.
func (c *Client) ListMessages(ctx context.Context, req feed.PageRequest) (feed.Page, error) {
	q := url.Values{}
	q.Set("count", strconv.Itoa(req.Count))
	if !req.FromDate.IsZero() {
		q.Set("fromDate", req.FromDate.UTC().Format(time.RFC3339Nano))
	}
	return c.list(ctx, "/api/v1/channels/"+req.Params.ChannelID+"/messages", q)
}

// CreateComment posts a comment (or reply, when parentID is set) and returns
// the server's canonical item.
func (c *Client) CreateComment(ctx context.Context, postID, content, parentID string) (feed.Item, error) {
	body := map[string]any{"content": content}
	if parentID != "" {
		body["parent_id"] = parentID
	}
	return c.mutate(ctx, http.MethodPost, "/api/v1/posts/"+postID+"/comments", body)
}

// EditComment updates a comment's content.
func (c *Client) EditComment(ctx context.Context, commentID, content string) (feed.Item, error) {
	return c.mutate(ctx, http.MethodPut, "/api/v1/comments/"+commentID,
		map[string]any{"content": content})
}

// DeleteComment removes a comment and its replies server-side.
func (c *Client) DeleteComment(ctx context.Context, commentID string) error {
	_, err := c.mutate(ctx, http.MethodDelete, "/api/v1/comments/"+commentID, nil)
	return err
}

// VoteComment toggles the caller's vote on a comment.
func (c *Client) VoteComment(ctx context.Context, commentID string) (feed.Item, error) {
	return c.mutate(ctx, http.MethodPost, "/api/v1/comments/"+commentID+"/vote", nil)
}

// VotePost toggles the caller's vote on a feed post.
func (c *Client) VotePost(ctx context.Context, postID string) (feed.Item, error) {
	return c.mutate(ctx, http.MethodPost, "/api/v1/posts/"+postID+"/vote", nil)
}

// CreateMessage sends a channel message.
func (c *Client) CreateMessage(ctx context.Context, channelID, content string) (feed.Item, error) {
	return c.mutate(ctx, http.MethodPost, "/api/v1/channels/"+channelID+"/messages",
		map[string]any{"content": content})
}

// CommentsFetcher returns the feed.Fetcher for comment lists.
func (c *Client) CommentsFetcher() feed.Fetcher { return feed.FetcherFunc(c.ListComments) }

// RepliesFetcher returns the feed.Fetcher for reply threads.
func (c *Client) RepliesFetcher() feed.Fetcher { return feed.FetcherFunc(c.ListReplies) }

// FeedsFetcher returns the feed.Fetcher for the main feed.
func (c *Client) FeedsFetcher() feed.Fetcher { return feed.FetcherFunc(c.ListFeeds) }

// ChannelsFetcher returns the feed.Fetcher for the channel list.
func (c *Client) ChannelsFetcher() feed.Fetcher { return feed.FetcherFunc(c.ListChannels) }

// MessagesFetcher returns the feed.Fetcher for channel message history.
func (c *Client) MessagesFetcher() feed.Fetcher { return feed.FetcherFunc(c.ListMessages) }

// CommentMutations adapts the comment endpoints to feed.MutationAPI.
func (c *Client) CommentMutations() feed.MutationAPI { return commentMutations{c} }

// MessageMutations adapts the channel message endpoints to feed.MutationAPI.
func (c *Client) MessageMutations() feed.MutationAPI { return messageMutations{c} }

type commentMutations struct{ c *Client }

func (m commentMutations) Create(ctx context.Context, p feed.Params, draft feed.Item) (feed.Item, error) {
	content, parentID := draftContent(draft)
	return m.c.CreateComment(ctx, p.ParentID, content, parentID)
}

func (m commentMutations) Edit(ctx context.Context, item feed.Item) (feed.Item, error) {
	content, _ := draftContent(item)
	return m.c.EditComment(ctx, item.ID, content)
}

func (m commentMutations) Delete(ctx context.Context, id string) error {
	return m.c.DeleteComment(ctx, id)
}

func (m commentMutations) Vote(ctx context.Context, id string) (feed.Item, error) {
	return m.c.VoteComment(ctx, id)
}

type messageMutations struct{ c *Client }

func (m messageMutations) Create(ctx context.Context, p feed.Params, draft feed.Item) (feed.Item, error) {
	content, _ := draftContent(draft)
	return m.c.CreateMessage(ctx, p.ChannelID, content)
}

func (m messageMutations) Edit(ctx context.Context, item feed.Item) (feed.Item, error) {
	return feed.Item{}, apierrors.BadRequest("channel messages cannot be edited")
}

func (m messageMutations) Delete(ctx context.Context, id string) error {
	return apierrors.BadRequest("channel messages cannot be deleted")
}

func (m messageMutations) Vote(ctx context.Context, id string) (feed.Item, error) {
	return feed.Item{}, apierrors.BadRequest("channel messages cannot be voted on")
}

// draftContent pulls the content fields out of an optimistic draft's payload.
func draftContent(draft feed.Item) (content, parentID string) {
	var p struct {
		Content  string `json:"content"`
		ParentID string `json:"parent_id"`
	}
	if len(draft.Payload) > 0 {
		_ = json.Unmarshal(draft.Payload, &p)
	}
	return p.Content, p.ParentID
}

func pageQuery(req feed.PageRequest) url.Values {
	q := url.Values{}
	q.Set("count", strconv.Itoa(req.Count))
	if req.Index >= 0 {
		q.Set("index", strconv.Itoa(req.Index))
	}
	return q
}

func (c *Client) list(ctx context.Context, path string, q url.Values) (feed.Page, error) {
	var env listEnvelope
	if err := c.do(ctx, http.MethodGet, path, q, nil, &env, func(status int) error {
		return envelopeError(status, env.Message)
	}); err != nil {
		return feed.Page{Total: -1}, err
	}

	page := feed.Page{Items: feed.ItemsFromWire(env.items()), Total: -1}
	if env.Count != nil {
		page.Total = *env.Count
	}
	return page, nil
}

func (c *Client) mutate(ctx context.Context, method, path string, body any) (feed.Item, error) {
	var env mutationEnvelope
	if err := c.do(ctx, method, path, nil, body, &env, func(status int) error {
		return envelopeError(status, env.Message)
	}); err != nil {
		return feed.Item{}, err
	}

	raw := env.item()
	if raw == nil {
		return feed.Item{}, nil
	}
	item, err := feed.ItemFromWire(raw)
	if err != nil {
		return feed.Item{}, apierrors.InternalError("undecodable item in response").WithDetails(err.Error())
	}
	return item, nil
}

// do runs one request and decodes the envelope. Transport failures come back
// as TRANSPORT_ERROR values; they never panic or escape as raw errors. The
// failure callback maps a success:false envelope to a typed error after the
// body has been decoded.
func (c *Client) do(ctx context.Context, method, path string, q url.Values, body, out any, failure func(status int) error) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return apierrors.BadRequest("unencodable request body")
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return apierrors.BadRequest(fmt.Sprintf("invalid request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apierrors.Transport(method+" "+path, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if resp.StatusCode >= 400 {
			return envelopeError(resp.StatusCode, "")
		}
		return apierrors.Transport(method+" "+path, err)
	}

	if !envelopeSuccess(out) {
		return failure(resp.StatusCode)
	}
	return nil
}

func envelopeSuccess(out any) bool {
	switch env := out.(type) {
	case *listEnvelope:
		return env.Success
	case *mutationEnvelope:
		return env.Success
	default:
		return true
	}
}
