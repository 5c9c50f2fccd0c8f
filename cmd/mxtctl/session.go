package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/matheus3301/mxt/internal/rpc"
	"github.com/matheus3301/mxt/internal/status"
	"github.com/spf13/cobra"
)

func newStatusCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show session status",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, cancel := c.context()
			defer cancel()
			resp, err := c.client.Session.Status(ctx, &rpc.StatusRequest{})
			if err != nil {
				return err
			}
			return c.print(resp, func() {
				fmt.Printf("Session:    %s\n", resp.Session)
				fmt.Printf("State:      %s (since %s)\n", resp.State, humanize.Time(time.UnixMilli(resp.SinceUnixMs)))
				if resp.UserID != "" {
					fmt.Printf("User:       %s (%s)\n", resp.UserID, resp.DeviceID)
					fmt.Printf("Homeserver: %s\n", resp.Homeserver)
				}
				fmt.Printf("Syncing:    %v\n", resp.Syncing)
				fmt.Printf("Rooms:      %s\n", humanize.Comma(resp.RoomCount))
				fmt.Printf("Events:     %s\n", humanize.Comma(resp.EventCount))
				fmt.Printf("Uptime:     %s\n", (time.Duration(resp.UptimeMs) * time.Millisecond).Round(time.Second))
				if resp.State == string(status.AuthRequired) {
					fmt.Println("\nNot signed in. Run mxtctl login or open mxtui.")
				}
			})
		},
	}
}

func newLoginCommand(c *cli) *cobra.Command {
	var (
		req           rpc.LoginRequest
		passwordStdin bool
		sso           bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with a password or single sign-on",
		Args:  cobra.NoArgs,
		Example: `  mxtctl login --homeserver matrix.org --user alice --password-stdin < pass.txt
  mxtctl login --sso`,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, cancel := c.context()
			defer cancel()

			if sso {
				resp, err := c.client.Session.StartOIDC(ctx, &rpc.StartOIDCRequest{})
				if err != nil {
					return err
				}
				return c.print(resp, func() {
					fmt.Println("Open this link to sign in:")
					fmt.Println(resp.AuthURL)
					fmt.Println("\nThen pass the callback URL to: mxtctl open <url>")
				})
			}

			if passwordStdin {
				line, err := bufio.NewReader(os.Stdin).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				req.Password = strings.TrimRight(line, "\r\n")
			}
			if req.User == "" || req.Password == "" {
				return errors.New("--user and a password are required")
			}
			resp, err := c.client.Session.Login(ctx, &req)
			if err != nil {
				return err
			}
			return c.print(resp, func() {
				fmt.Printf("Signed in as %s on %s (device %s)\n", resp.UserID, resp.Homeserver, resp.DeviceID)
			})
		},
	}

	cmd.Flags().StringVar(&req.Homeserver, "homeserver", "", "homeserver URL or server name (default from config)")
	cmd.Flags().StringVarP(&req.User, "user", "u", "", "user id or localpart")
	cmd.Flags().StringVarP(&req.Password, "password", "p", "", "password (prefer --password-stdin)")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	cmd.Flags().BoolVar(&sso, "sso", false, "start a single sign-on login instead")
	cmd.MarkFlagsMutuallyExclusive("password", "password-stdin")
	cmd.MarkFlagsMutuallyExclusive("sso", "user")

	return cmd
}

func newLogoutCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear the local session",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, cancel := c.context()
			defer cancel()
			resp, err := c.client.Session.Logout(ctx, &rpc.LogoutRequest{})
			if err != nil {
				return err
			}
			return c.print(resp, func() { fmt.Println("Signed out.") })
		},
	}
}

func newSessionsCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage local sessions",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List known sessions",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, cancel := c.context()
			defer cancel()
			resp, err := c.client.Session.ListSessions(ctx, &rpc.ListSessionsRequest{})
			if err != nil {
				return err
			}
			return c.print(resp, func() {
				if len(resp.Sessions) == 0 {
					fmt.Println("No sessions found.")
					return
				}
				for _, s := range resp.Sessions {
					running := "stopped"
					if s.DaemonRunning {
						running = "running"
					}
					marker := " "
					if s.Current {
						marker = "*"
					}
					fmt.Printf("%s %-20s %s (%s)\n", marker, s.Name, s.Path, running)
				}
			})
		},
	})
	return cmd
}
