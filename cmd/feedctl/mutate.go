package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var postReplyTo string

var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Create comments and channel messages",
}

var postCommentCmd = &cobra.Command{
	Use:   "comment <post-id> <text>",
	Short: "Comment on a post, or reply with --reply-to",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		item, err := newClient().CreateComment(context.Background(), args[0], args[1], postReplyTo)
		if err != nil {
			return err
		}
		printItem(item)
		return nil
	},
}

var postMessageCmd = &cobra.Command{
	Use:   "message <channel-id> <text>",
	Short: "Send a channel message",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		item, err := newClient().CreateMessage(context.Background(), args[0], args[1])
		if err != nil {
			return err
		}
		printItem(item)
		return nil
	},
}

var votePost bool

var voteCmd = &cobra.Command{
	Use:   "vote <id>",
	Short: "Toggle your vote on a comment, or on a feed post with --post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		client := newClient()

		var err error
		if votePost {
			_, err = client.VotePost(ctx, args[0])
		} else {
			_, err = client.VoteComment(ctx, args[0])
		}
		if err != nil {
			return err
		}
		if output != "json" {
			fmt.Println("vote toggled")
		}
		return nil
	},
}

var editCmd = &cobra.Command{
	Use:   "edit <comment-id> <text>",
	Short: "Edit one of your comments",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		item, err := newClient().EditComment(context.Background(), args[0], args[1])
		if err != nil {
			return err
		}
		printItem(item)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <comment-id>",
	Short: "Delete one of your comments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newClient().DeleteComment(context.Background(), args[0]); err != nil {
			return err
		}
		if output != "json" {
			fmt.Println("deleted")
		}
		return nil
	},
}

func init() {
	postCommentCmd.Flags().StringVar(&postReplyTo, "reply-to", "", "Reply to this comment instead of the post")
	postCmd.AddCommand(postCommentCmd)
	postCmd.AddCommand(postMessageCmd)
	voteCmd.Flags().BoolVar(&votePost, "post", false, "Vote on a feed post instead of a comment")

	rootCmd.AddCommand(editCmd)
}
