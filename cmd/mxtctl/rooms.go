package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/matheus3301/mxt/internal/intent"
	"github.com/matheus3301/mxt/internal/navigation"
	"github.com/matheus3301/mxt/internal/roomlist"
	"github.com/matheus3301/mxt/internal/rpc"
	"github.com/spf13/cobra"
)

func newRoomsCommand(c *cli) *cobra.Command {
	var req rpc.ListRoomsRequest

	cmd := &cobra.Command{
		Use:   "rooms",
		Short: "List rooms in room list order",
		Args:  cobra.NoArgs,
		Example: `  mxtctl rooms
  mxtctl rooms --filter invites
  mxtctl rooms --filter people --query ali`,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, cancel := c.context()
			defer cancel()
			resp, err := c.client.Room.List(ctx, &req)
			if err != nil {
				return err
			}
			return c.print(resp, func() { printRooms(resp.Rooms) })
		},
	}

	cmd.Flags().StringVarP(&req.Filter, "filter", "f", "", "all, unread, people, rooms or invites")
	cmd.Flags().StringVarP(&req.Query, "query", "q", "", "only rooms whose name contains this text")

	return cmd
}

func printRooms(rooms []roomlist.RoomSummary) {
	if len(rooms) == 0 {
		fmt.Println("No rooms.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ROOM\tNAME\tUNREAD\tLAST ACTIVE")
	for _, r := range rooms {
		unread := "-"
		switch {
		case r.IsInvite():
			unread = "invite"
		case r.HighlightCount > 0:
			unread = fmt.Sprintf("%d (%d mentions)", r.NotificationCount, r.HighlightCount)
		case r.NotificationCount > 0:
			unread = fmt.Sprint(r.NotificationCount)
		case r.UnreadCount > 0:
			unread = "•"
		}
		last := "-"
		if r.LastMessageAt > 0 {
			last = humanize.Time(time.UnixMilli(r.LastMessageAt))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, r.DisplayName, unread, last)
	}
	_ = w.Flush()
}

func newOpenCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "open <uri>",
		Short: "Resolve a link and show where it leads",
		Long: `Resolve a matrix.to permalink, a matrix: URI, an mxt:// deep link or a
login callback. Room links to unknown rooms are joined.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, cancel := c.context()
			defer cancel()
			resp, err := c.client.Intent.Open(ctx, &rpc.OpenRequest{URI: args[0]})
			if err != nil {
				return err
			}
			return c.print(resp, func() { printDestination(resp.Destination) })
		},
	}
}

func newShareCommand(c *cli) *cobra.Command {
	var roomID string

	cmd := &cobra.Command{
		Use:   "share <text>",
		Short: "Share text into a room",
		Long: `Share text the way other applications hand content to mxt. With --room the
text is sent right away; otherwise mxtui asks for a room.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, cancel := c.context()
			defer cancel()
			in := intent.Intent{
				Action:   intent.ActionSend,
				MimeType: "text/plain",
				Extras:   map[string]string{intent.ExtraText: strings.Join(args, " ")},
			}
			if roomID != "" {
				in.Extras[intent.ExtraRoomID] = roomID
			}
			resp, err := c.client.Intent.Open(ctx, &rpc.OpenRequest{Intent: &in})
			if err != nil {
				return err
			}
			return c.print(resp, func() { printDestination(resp.Destination) })
		},
	}

	cmd.Flags().StringVarP(&roomID, "room", "r", "", "room id to send to")

	return cmd
}

func printDestination(d navigation.Destination) {
	fmt.Printf("Screen: %s\n", d.Screen)
	for _, f := range [][2]string{
		{"Session", d.SessionID},
		{"Room", d.RoomID},
		{"Thread", d.ThreadID},
		{"Event", d.EventID},
		{"User", d.UserID},
		{"Provider", d.AccountProvider},
		{"Hint", d.LoginHint},
		{"Text", d.Text},
		{"Message", d.Message},
	} {
		if f[1] != "" {
			fmt.Printf("%-8s %s\n", f[0]+":", f[1])
		}
	}
}
