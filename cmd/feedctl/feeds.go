package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/waveline/feedsync/internal/feed"
)

var (
	feedsFilter string
	feedsSearch string
	feedsPages  int
)

var feedsCmd = &cobra.Command{
	Use:   "feeds",
	Short: "List the main feed",
	Long:  "List the main feed, newest first, optionally filtered or searched.",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()
		ctrl := feed.NewController(feed.ListConfig{
			Order:        feed.NewestFirst,
			Key:          feed.ByCreatedAt,
			Cursor:       feed.CursorIndex,
			PageSize:     cfg.PageSize,
			FetchTimeout: cfg.FetchTimeout,
			Fetcher:      client.FeedsFetcher(),
		})

		ctx := context.Background()
		if err := ctrl.Reset(ctx, feed.Params{
			Filter: feedsFilter,
			Search: feedsSearch,
		}); err != nil {
			return err
		}

		for p := 1; p < feedsPages && ctrl.State().HasMore; p++ {
			if err := ctrl.LoadMore(ctx); err != nil {
				return err
			}
		}

		printState(ctrl.State())
		return nil
	},
}

func init() {
	feedsCmd.Flags().StringVar(&feedsFilter, "filter", "", "Server-side feed filter")
	feedsCmd.Flags().StringVar(&feedsSearch, "search", "", "Search query")
	feedsCmd.Flags().IntVar(&feedsPages, "pages", 1, "Number of pages to load")
}
