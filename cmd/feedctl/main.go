package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/waveline/feedsync/internal/config"
	"github.com/waveline/feedsync/internal/logger"
)

var (
	cfg       *config.Config
	authToken string
	apiURL    string
	output    string = "text" // "text" or "json"
)

var rootCmd = &cobra.Command{
	Use:   "feedctl",
	Short: "feedctl - Browse and mutate live paginated lists from the terminal",
	Long: `feedctl provides command-line access to the platform's feeds, comment
threads and channel messages. Lists page the same way the app does, and the
watch command follows live push events.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
		logger.Initialize(cfg.LogLevel, cfg.LogFile)
		if authToken != "" {
			cfg.Token = authToken
		}
		if apiURL != "" {
			cfg.APIURL = apiURL
			cfg.WSURL = apiURL + "/ws"
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&authToken, "token", "", "Authentication token (defaults to FEEDSYNC_TOKEN env var)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "API server URL (defaults to FEEDSYNC_API_URL env var)")
	rootCmd.PersistentFlags().StringVar(&output, "output", output, "Output format: text or json")

	rootCmd.AddCommand(feedsCmd)
	rootCmd.AddCommand(commentsCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(postCmd)
	rootCmd.AddCommand(voteCmd)
	rootCmd.AddCommand(deleteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
