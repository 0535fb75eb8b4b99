package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"social-client/internal/chat"
	"social-client/internal/models"
)

func newChatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chats",
		Short: "List conversations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			defer a.Close(ctx)

			convs, err := a.api.ListConversations(ctx)
			if err != nil {
				return err
			}
			now := time.Now()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "USER\tNAME\tTIME\tLAST MESSAGE")
			for _, c := range convs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.UserID, c.Name, chat.ConversationTimeLabel(c.LastMessageAt, now), truncate(c.LastMessage, 50))
			}
			return w.Flush()
		},
	}
}

func newChatCmd() *cobra.Command {
	var (
		send []string
		wait time.Duration
	)
	cmd := &cobra.Command{
		Use:   "chat <user-id>",
		Short: "Open a conversation, optionally send messages, and print it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			defer a.Close(ctx)

			me, err := a.profile(ctx)
			if err != nil {
				return err
			}

			session := a.newSession(me)()
			defer session.Teardown()

			if err := session.Initialize(ctx, models.ID(args[0]), me); err != nil {
				return err
			}
			if len(send) > 0 {
				if err := session.Connect(ctx); err != nil {
					return err
				}
				for _, text := range send {
					if _, err := session.Send(ctx, text, ""); err != nil {
						return err
					}
				}
				// acks arrive on the event loop
				time.Sleep(wait)
			}

			printConversation(cmd.OutOrStdout(), session.Snapshot(), time.Now())
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&send, "send", nil, "message to send, repeatable")
	cmd.Flags().DurationVar(&wait, "wait", 2*time.Second, "how long to wait for send acknowledgements")
	return cmd
}

func printConversation(out io.Writer, st chat.State, now time.Time) {
	fmt.Fprintf(out, "Chat with %s\n", st.Target.DisplayName())
	for _, day := range chat.GroupByDay(st.Messages, now) {
		fmt.Fprintf(out, "\n-- %s --\n", day.Label)
		for _, m := range day.Messages {
			marker := " "
			if m.ID == st.LastSeenID {
				marker = "*"
			}
			status := ""
			if m.Status != "" && m.Status != models.StatusConfirmed {
				status = " [" + string(m.Status) + "]"
			}
			if m.Edited {
				status += " (edited)"
			}
			if m.ParentMessage != nil {
				fmt.Fprintf(out, "%s   > %s: %s\n", marker, m.ParentMessage.FirstName, truncate(m.ParentMessage.Text, 40))
			}
			fmt.Fprintf(out, "%s %s %s: %s%s\n", marker, m.CreatedAt.Local().Format("15:04"), m.FirstName, m.Text, status)
		}
	}
}
