package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/waveline/feedsync/internal/api"
	"github.com/waveline/feedsync/internal/feed"
)

func newClient() *api.Client {
	return api.New(cfg.APIURL, cfg.Token, nil)
}

// displayFields is the subset of an item payload worth printing; everything
// else stays opaque to the CLI.
type displayFields struct {
	Author  string `json:"author"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

func printItem(it feed.Item) {
	if output == "json" {
		if len(it.Payload) > 0 {
			fmt.Println(string(it.Payload))
			return
		}
		data, _ := json.Marshal(it)
		fmt.Println(string(data))
		return
	}

	var d displayFields
	if len(it.Payload) > 0 {
		_ = json.Unmarshal(it.Payload, &d)
	}

	ts := it.CreatedAt.Local().Format(time.Stamp)
	switch {
	case d.Title != "":
		fmt.Printf("[%s] %s  %s (%d votes, %d comments)\n", ts, it.ID, d.Title, it.Votes, it.Replies)
	case d.Content != "":
		fmt.Printf("[%s] %s  <%s> %s\n", ts, it.ID, d.Author, d.Content)
	default:
		fmt.Printf("[%s] %s\n", ts, it.ID)
	}
}

func printState(st feed.ListState) {
	for _, it := range st.Items {
		printItem(it)
	}
	if output != "json" {
		fmt.Printf("-- %d items", len(st.Items))
		if st.Total >= 0 {
			fmt.Printf(" of %d", st.Total)
		}
		if st.HasPrevious {
			fmt.Print(", earlier available")
		}
		if st.HasMore {
			fmt.Print(", more available")
		}
		fmt.Println()
	}
}
