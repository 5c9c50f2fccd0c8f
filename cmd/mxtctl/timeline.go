package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/matheus3301/mxt/internal/rpc"
	"github.com/spf13/cobra"
)

func newSendCommand(c *cli) *cobra.Command {
	var (
		req      rpc.SendRequest
		markdown bool
	)

	cmd := &cobra.Command{
		Use:   "send <room-id> <text>",
		Short: "Queue a message",
		Long: `Queue a message in the outbox. It shows up in the room at once and is
delivered in the background; failed messages can be resent with retry.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.context()
			defer cancel()
			req.RoomID = args[0]
			req.Body = strings.Join(args[1:], " ")
			if cmd.Flags().Changed("markdown") {
				req.Markdown = &markdown
			}
			resp, err := c.client.Timeline.Send(ctx, &req)
			if err != nil {
				return err
			}
			return c.print(resp, func() { fmt.Printf("Queued %s\n", resp.ClientMsgID) })
		},
	}

	cmd.Flags().BoolVar(&markdown, "markdown", true, "render the text as Markdown (default from config)")
	cmd.Flags().StringVar(&req.ThreadRoot, "thread", "", "thread root event id")
	cmd.Flags().StringVar(&req.ReplyTo, "reply-to", "", "event id to reply to")

	return cmd
}

func newRetryCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <client-msg-id>",
		Short: "Resend a failed message under its original transaction id",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, cancel := c.context()
			defer cancel()
			resp, err := c.client.Timeline.Retry(ctx, &rpc.RetryRequest{ClientMsgID: args[0]})
			if err != nil {
				return err
			}
			return c.print(resp, func() { fmt.Printf("%s: %s\n", args[0], resp.Status) })
		},
	}
}

func newSearchCommand(c *cli) *cobra.Command {
	var req rpc.SearchRequest

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search of stored messages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, cancel := c.context()
			defer cancel()
			req.Query = strings.Join(args, " ")
			resp, err := c.client.Timeline.Search(ctx, &req)
			if err != nil {
				return err
			}
			return c.print(resp, func() {
				if len(resp.Results) == 0 {
					fmt.Println("No results.")
					return
				}
				for _, hit := range resp.Results {
					var when, sender string
					if hit.Event != nil {
						when = time.UnixMilli(hit.Event.Timestamp).Format("2006-01-02 15:04")
						sender = hit.Event.Name()
					}
					snippet := strings.NewReplacer("<<", "\x1b[1m", ">>", "\x1b[0m").Replace(hit.Snippet)
					fmt.Printf("%s  %s  %s: %s\n", when, hit.RoomID, sender, snippet)
				}
			})
		},
	}

	cmd.Flags().StringVarP(&req.RoomID, "room", "r", "", "only search this room")
	cmd.Flags().IntVarP(&req.Limit, "limit", "n", 20, "maximum number of results")

	return cmd
}
