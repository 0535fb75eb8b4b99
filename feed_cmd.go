package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"social-client/internal/feed"
)

func newFeedCmd() *cobra.Command {
	var pages int
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Print the first pages of the feed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			defer a.Close(ctx)

			controller := a.newFeed(feed.NewState())
			if _, err := controller.Mount(ctx); err != nil {
				return err
			}
			for i := 1; i < pages; i++ {
				if err := controller.LoadNext(ctx); err != nil {
					break
				}
			}

			snap := controller.State().Snapshot()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tAUTHOR\tLIKES\tWHEN\tCONTENT")
			for _, it := range snap.Items {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", it.ID, it.Username, it.Likes, it.TimeAgo, truncate(it.Content, 60))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if !snap.HasMore {
				fmt.Fprintln(cmd.OutOrStdout(), "-- end of feed --")
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&pages, "pages", 1, "number of pages to load")
	return cmd
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
