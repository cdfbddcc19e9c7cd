package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/waveline/feedsync/internal/feed"
)

var (
	commentsFind  string
	commentsPrev  int
	commentsPages int
)

var commentsCmd = &cobra.Command{
	Use:   "comments <post-id>",
	Short: "List a post's comment thread",
	Long: `List a post's comments in thread order. With --find the page containing
the given comment is loaded first, and --prev walks back toward the start of
the thread from there.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()
		ctrl := feed.NewController(feed.ListConfig{
			Order:        feed.OldestFirst,
			Key:          feed.BySeq,
			Cursor:       feed.CursorIndex,
			PageSize:     cfg.PageSize,
			FetchTimeout: cfg.FetchTimeout,
			Fetcher:      client.CommentsFetcher(),
		})

		ctx := context.Background()
		if err := ctrl.Reset(ctx, feed.Params{
			ParentID:   args[0],
			FindItemID: commentsFind,
		}); err != nil {
			return err
		}

		for i := 0; i < commentsPrev && ctrl.State().HasPrevious; i++ {
			if err := ctrl.LoadPrevious(ctx); err != nil {
				return err
			}
		}
		for p := 1; p < commentsPages && ctrl.State().HasMore; p++ {
			if err := ctrl.LoadMore(ctx); err != nil {
				return err
			}
		}

		printState(ctrl.State())
		return nil
	},
}

var repliesCmd = &cobra.Command{
	Use:   "replies <comment-id>",
	Short: "List a comment's replies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()
		ctrl := feed.NewController(feed.ListConfig{
			Order:        feed.OldestFirst,
			Key:          feed.BySeq,
			Cursor:       feed.CursorIndex,
			PageSize:     cfg.PageSize,
			FetchTimeout: cfg.FetchTimeout,
			Fetcher:      client.RepliesFetcher(),
		})

		ctx := context.Background()
		if err := ctrl.Reset(ctx, feed.Params{ParentID: args[0]}); err != nil {
			return err
		}
		for ctrl.State().HasMore {
			if err := ctrl.LoadMore(ctx); err != nil {
				return err
			}
		}

		printState(ctrl.State())
		return nil
	},
}

var channelsCmd = &cobra.Command{
	Use:   "channels",
	Short: "List your channels",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()
		ctrl := feed.NewController(feed.ListConfig{
			Order:        feed.OldestFirst,
			Key:          feed.BySeq,
			Cursor:       feed.CursorIndex,
			PageSize:     cfg.PageSize,
			FetchTimeout: cfg.FetchTimeout,
			Fetcher:      client.ChannelsFetcher(),
		})

		ctx := context.Background()
		if err := ctrl.Reset(ctx, feed.Params{}); err != nil {
			return err
		}

		st := ctrl.State()
		for _, it := range st.Items {
			printItem(it)
		}
		if output != "json" && st.Total >= 0 {
			fmt.Printf("-- %d channels\n", st.Total)
		}
		return nil
	},
}

func init() {
	commentsCmd.Flags().StringVar(&commentsFind, "find", "", "Deep-link: load the page containing this comment ID")
	commentsCmd.Flags().IntVar(&commentsPrev, "prev", 0, "Load this many earlier pages after a --find jump")
	commentsCmd.Flags().IntVar(&commentsPages, "pages", 1, "Number of pages to load forward")

	rootCmd.AddCommand(repliesCmd)
	rootCmd.AddCommand(channelsCmd)
}
