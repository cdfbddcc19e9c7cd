package feed

import (
	"encoding/json"
	"time"
)

// wireItem is the subset of the server's item representation the engine
// keys on. Field names vary per endpoint only for the list container, not
// for the items themselves.
type wireItem struct {
	ID        string    `json:"id"`
	Index     *int      `json:"index,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Votes     int       `json:"votes"`
	IsUpvoted bool      `json:"is_upvoted"`
	Answers   int       `json:"answers"`
}

// ItemFromWire decodes one raw server item. The raw JSON is retained as the
// opaque payload so domain views can decode their own fields from it.
func ItemFromWire(raw json.RawMessage) (Item, error) {
	var w wireItem
	if err := json.Unmarshal(raw, &w); err != nil {
		return Item{}, err
	}

	seq := -1
	if w.Index != nil {
		seq = *w.Index
	}

	return Item{
		ID:        w.ID,
		Seq:       seq,
		CreatedAt: w.CreatedAt,
		Votes:     w.Votes,
		Upvoted:   w.IsUpvoted,
		Replies:   w.Answers,
		Payload:   raw,
	}, nil
}

// ItemsFromWire decodes a page of raw items, dropping entries that fail to
// decode or carry no ID. The store would drop them anyway; doing it here
// keeps malformed wire data out of the engine entirely.
func ItemsFromWire(raws []json.RawMessage) []Item {
	items := make([]Item, 0, len(raws))
	for _, raw := range raws {
		it, err := ItemFromWire(raw)
		if err != nil || it.ID == "" {
			continue
		}
		items = append(items, it)
	}
	return items
}
