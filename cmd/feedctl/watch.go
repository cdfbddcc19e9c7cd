package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/waveline/feedsync/internal/feed"
	"github.com/waveline/feedsync/internal/logger"
	"github.com/waveline/feedsync/internal/offline"
	"github.com/waveline/feedsync/internal/realtime"
)

var watchCmd = &cobra.Command{
	Use:   "watch <channel-id>",
	Short: "Follow a channel's messages live",
	Long: `Print a channel's recent message history, then keep following new
messages pushed over the realtime connection until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		channelID := args[0]
		client := newClient()

		var cache feed.SnapshotCache
		if cfg.CachePath != "" {
			c, err := offline.Open(cfg.CachePath)
			if err != nil {
				logger.WarnWithFields("Snapshot cache unavailable", err)
			} else {
				cache = c
				defer c.Close()
			}
		}

		ctrl := feed.NewController(feed.ListConfig{
			Order:        feed.OldestFirst,
			Key:          feed.ByCreatedAt,
			Cursor:       feed.CursorTimestamp,
			PageSize:     cfg.PageSize,
			FetchTimeout: cfg.FetchTimeout,
			Fetcher:      client.MessagesFetcher(),
			Cache:        cache,
		})

		ctx := context.Background()
		params := feed.Params{ChannelID: channelID}
		if err := ctrl.Reset(ctx, params); err != nil {
			return err
		}
		printState(ctrl.State())

		conn, err := realtime.Dial(ctx, cfg.WSURL, cfg.Token)
		if err != nil {
			return fmt.Errorf("connect push: %w", err)
		}
		defer conn.Close()

		binder := feed.NewBinder(ctrl.Store(), params.Scope())
		binder.OnInserted = printItem
		binder.OnRemoved = func(it feed.Item) {
			if output != "json" {
				fmt.Printf("-- %s deleted\n", it.ID)
			}
		}
		binder.Bind(conn)
		defer binder.Close()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		if cache != nil {
			if err := cache.Save(params.Scope(), ctrl.Store().Snapshot()); err != nil {
				logger.WarnWithFields("Failed to save snapshot on exit", err)
			}
		}
		return nil
	},
}
