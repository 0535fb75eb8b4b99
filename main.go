package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "socialclient",
		Short:         "Headless client for the social network: feed and chats",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringSlice("env-file", nil, "dotenv files to load before the environment")

	root.AddCommand(newServeCmd(), newFeedCmd(), newChatsCmd(), newChatCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
