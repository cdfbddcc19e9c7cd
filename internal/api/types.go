package api

import (
	"encoding/json"

	apierrors "github.com/waveline/feedsync/internal/errors"
)

// listEnvelope is the wire shape of every paginated list response. The items
// field name varies per endpoint; exactly one of the slices is populated.
type listEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`

	// Count is the server-reported total for the whole list, when the
	// endpoint tracks one.
	Count *int `json:"count,omitempty"`

	Posts    []json.RawMessage `json:"posts,omitempty"`
	Replies  []json.RawMessage `json:"replies,omitempty"`
	Feeds    []json.RawMessage `json:"feeds,omitempty"`
	Channels []json.RawMessage `json:"channels,omitempty"`
	Messages []json.RawMessage `json:"messages,omitempty"`
}

// items returns whichever item slice the endpoint populated.
func (e *listEnvelope) items() []json.RawMessage {
	switch {
	case e.Posts != nil:
		return e.Posts
	case e.Replies != nil:
		return e.Replies
	case e.Feeds != nil:
		return e.Feeds
	case e.Channels != nil:
		return e.Channels
	default:
		return e.Messages
	}
}

// mutationEnvelope is the wire shape of create/edit/delete/vote responses.
// The item field name varies per endpoint.
type mutationEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`

	Data json.RawMessage `json:"data,omitempty"`
	Post json.RawMessage `json:"post,omitempty"`
	Feed json.RawMessage `json:"feed,omitempty"`
}

func (e *mutationEnvelope) item() json.RawMessage {
	switch {
	case e.Data != nil:
		return e.Data
	case e.Post != nil:
		return e.Post
	default:
		return e.Feed
	}
}

// envelopeError maps a success:false response to the error taxonomy by HTTP
// status. The server's message is surfaced verbatim; there is no automatic
// retry for validation failures.
func envelopeError(status int, message string) *apierrors.APIError {
	if message == "" {
		message = "request failed"
	}
	switch {
	case status == 404:
		return apierrors.NotFound(message)
	case status == 401:
		return apierrors.Unauthorized(message)
	case status == 403:
		return apierrors.Forbidden(message)
	case status == 422:
		return apierrors.ValidationError("", message)
	case status >= 400 && status < 500:
		return apierrors.BadRequest(message)
	default:
		return apierrors.InternalError(message)
	}
}
