// Package mockapi is an in-memory implementation of the platform API used by
// local development and the integration tests. It serves the same envelopes
// and push events as the production backend, seeded with fake content, so the
// client stack can be exercised end to end without network access.
package mockapi

import (
	"fmt"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
)

// record is the server-side item shape shared by every list. Optional fields
// are omitted per collection: feeds carry no index, messages carry no votes.
type record struct {
	ID        string    `json:"id"`
	Index     *int      `json:"index,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Votes     int       `json:"votes"`
	IsUpvoted bool      `json:"is_upvoted"`
	Answers   int       `json:"answers"`
	Author    string    `json:"author,omitempty"`
	Title     string    `json:"title,omitempty"`
	Content   string    `json:"content,omitempty"`
	ParentID  string    `json:"parent_id,omitempty"`
	ChannelID string    `json:"channel_id,omitempty"`
}

type recordKind int

const (
	kindFeed recordKind = iota
	kindComment
	kindReply
	kindMessage
	kindChannel
)

// location remembers which collection a record lives in so mutations can be
// routed by bare ID.
type location struct {
	kind recordKind
	key  string // post ID for comments, comment ID for replies, channel ID for messages
}

// dataset holds all mock state. Comments, replies and channels are kept in
// ascending index order; feeds newest first; messages ascending by time.
type dataset struct {
	mu        sync.RWMutex
	feeds     []*record
	comments  map[string][]*record
	replies   map[string][]*record
	channels  []*record
	messages  map[string][]*record
	locations map[string]location
}

func newDataset() *dataset {
	return &dataset{
		comments:  make(map[string][]*record),
		replies:   make(map[string][]*record),
		messages:  make(map[string][]*record),
		locations: make(map[string]location),
	}
}

func intPtr(v int) *int { return &v }

// seed populates the dataset deterministically from the faker's seed.
func seed(f *gofakeit.Faker) *dataset {
	d := newDataset()
	base := time.Now().UTC().Add(-30 * 24 * time.Hour)

	for i := 0; i < 25; i++ {
		post := &record{
			ID:        fmt.Sprintf("post-%02d", i),
			CreatedAt: base.Add(time.Duration(i) * 6 * time.Hour),
			Votes:     f.Number(0, 400),
			Author:    f.Username(),
			Title:     f.Sentence(6),
			Content:   f.Paragraph(1, 3, 12, " "),
		}
		d.locations[post.ID] = location{kind: kindFeed}
		// Newest first.
		d.feeds = append([]*record{post}, d.feeds...)

		nComments := f.Number(0, 45)
		for ci := 0; ci < nComments; ci++ {
			comment := &record{
				ID:        fmt.Sprintf("%s-c%03d", post.ID, ci),
				Index:     intPtr(ci),
				CreatedAt: post.CreatedAt.Add(time.Duration(ci+1) * 3 * time.Minute),
				Votes:     f.Number(0, 60),
				Author:    f.Username(),
				Content:   f.Sentence(10),
				ParentID:  post.ID,
			}
			d.comments[post.ID] = append(d.comments[post.ID], comment)
			d.locations[comment.ID] = location{kind: kindComment, key: post.ID}
			post.Answers++

			nReplies := f.Number(0, 4)
			for ri := 0; ri < nReplies; ri++ {
				reply := &record{
					ID:        fmt.Sprintf("%s-r%02d", comment.ID, ri),
					Index:     intPtr(ri),
					CreatedAt: comment.CreatedAt.Add(time.Duration(ri+1) * time.Minute),
					Votes:     f.Number(0, 20),
					Author:    f.Username(),
					Content:   f.Sentence(8),
					ParentID:  comment.ID,
				}
				d.replies[comment.ID] = append(d.replies[comment.ID], reply)
				d.locations[reply.ID] = location{kind: kindReply, key: comment.ID}
				comment.Answers++
			}
		}
	}

	for i := 0; i < 3; i++ {
		ch := &record{
			ID:        fmt.Sprintf("chan-%d", i),
			Index:     intPtr(i),
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
			Title:     f.NounAbstract(),
		}
		d.channels = append(d.channels, ch)
		d.locations[ch.ID] = location{kind: kindChannel}

		for mi := 0; mi < 40; mi++ {
			msg := &record{
				ID:        fmt.Sprintf("%s-m%03d", ch.ID, mi),
				CreatedAt: ch.CreatedAt.Add(time.Duration(mi) * 7 * time.Minute),
				Author:    f.Username(),
				Content:   f.Sentence(7),
				ChannelID: ch.ID,
			}
			d.messages[ch.ID] = append(d.messages[ch.ID], msg)
			d.locations[msg.ID] = location{kind: kindMessage, key: ch.ID}
		}
	}

	return d
}

// window returns list[index:index+count], clamped to bounds.
func window(list []*record, index, count int) []*record {
	if index < 0 {
		index = 0
	}
	if index >= len(list) || count <= 0 {
		return nil
	}
	end := index + count
	if end > len(list) {
		end = len(list)
	}
	return list[index:end]
}

// tailBefore returns the last count records created strictly before cutoff,
// in ascending order. A zero cutoff means the end of history.
func tailBefore(list []*record, cutoff time.Time, count int) []*record {
	end := len(list)
	if !cutoff.IsZero() {
		for end > 0 && !list[end-1].CreatedAt.Before(cutoff) {
			end--
		}
	}
	start := end - count
	if start < 0 {
		start = 0
	}
	return list[start:end]
}

// reindex rewrites ascending indexes after a removal.
func reindex(list []*record) {
	for i, r := range list {
		r.Index = intPtr(i)
	}
}

func removeByID(list []*record, id string) ([]*record, *record) {
	for i, r := range list {
		if r.ID == id {
			out := append(append([]*record{}, list[:i]...), list[i+1:]...)
			return out, r
		}
	}
	return list, nil
}

// addComment appends a comment or reply and returns the stored record.
func (d *dataset) addComment(postOrCommentID, content, parentID, author string) (*record, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	targetID := postOrCommentID
	isReply := parentID != ""
	if isReply {
		targetID = parentID
	}

	loc, ok := d.locations[targetID]
	if !ok {
		return nil, false, errNotFound
	}

	rec := &record{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Author:    author,
		Content:   content,
		ParentID:  targetID,
	}

	switch {
	case isReply && loc.kind == kindComment:
		rec.Index = intPtr(len(d.replies[targetID]))
		d.replies[targetID] = append(d.replies[targetID], rec)
		d.locations[rec.ID] = location{kind: kindReply, key: targetID}
		d.findLocked(targetID).Answers++
	case !isReply && loc.kind == kindFeed:
		rec.Index = intPtr(len(d.comments[targetID]))
		d.comments[targetID] = append(d.comments[targetID], rec)
		d.locations[rec.ID] = location{kind: kindComment, key: targetID}
		d.findLocked(targetID).Answers++
	default:
		return nil, false, errNotFound
	}
	return rec, isReply, nil
}

func (d *dataset) addMessage(channelID, content, author string) (*record, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if loc, ok := d.locations[channelID]; !ok || loc.kind != kindChannel {
		return nil, errNotFound
	}
	rec := &record{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Author:    author,
		Content:   content,
		ChannelID: channelID,
	}
	d.messages[channelID] = append(d.messages[channelID], rec)
	d.locations[rec.ID] = location{kind: kindMessage, key: channelID}
	return rec, nil
}

// edit rewrites a comment or reply's content.
func (d *dataset) edit(id, content string) (*record, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	loc, ok := d.locations[id]
	if !ok || (loc.kind != kindComment && loc.kind != kindReply) {
		return nil, errNotFound
	}
	rec := d.findLocked(id)
	rec.Content = content
	return rec, nil
}

// remove deletes a comment (with its replies) or a reply, reindexing the rest
// of the collection. Returns the removed record and its scope parent ID.
func (d *dataset) remove(id string) (*record, string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	loc, ok := d.locations[id]
	if !ok {
		return nil, "", errNotFound
	}

	switch loc.kind {
	case kindComment:
		list, rec := removeByID(d.comments[loc.key], id)
		if rec == nil {
			return nil, "", errNotFound
		}
		d.comments[loc.key] = list
		reindex(list)
		for _, r := range d.replies[id] {
			delete(d.locations, r.ID)
		}
		delete(d.replies, id)
		delete(d.locations, id)
		if post := d.findLocked(loc.key); post != nil {
			post.Answers--
		}
		return rec, loc.key, nil
	case kindReply:
		list, rec := removeByID(d.replies[loc.key], id)
		if rec == nil {
			return nil, "", errNotFound
		}
		d.replies[loc.key] = list
		reindex(list)
		delete(d.locations, id)
		if parent := d.findLocked(loc.key); parent != nil {
			parent.Answers--
		}
		return rec, loc.key, nil
	default:
		return nil, "", errNotFound
	}
}

// vote toggles the caller's vote on a post, comment or reply.
func (d *dataset) vote(id string) (*record, string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	loc, ok := d.locations[id]
	if !ok || loc.kind == kindMessage || loc.kind == kindChannel {
		return nil, "", errNotFound
	}
	rec := d.findLocked(id)
	if rec == nil {
		return nil, "", errNotFound
	}
	if rec.IsUpvoted {
		rec.IsUpvoted = false
		rec.Votes--
	} else {
		rec.IsUpvoted = true
		rec.Votes++
	}
	return rec, loc.key, nil
}

// findLocked resolves an ID to its record. Callers hold d.mu.
func (d *dataset) findLocked(id string) *record {
	loc, ok := d.locations[id]
	if !ok {
		return nil
	}
	var list []*record
	switch loc.kind {
	case kindFeed:
		list = d.feeds
	case kindComment:
		list = d.comments[loc.key]
	case kindReply:
		list = d.replies[loc.key]
	case kindMessage:
		list = d.messages[loc.key]
	case kindChannel:
		list = d.channels
	}
	for _, r := range list {
		if r.ID == id {
			return r
		}
	}
	return nil
}
