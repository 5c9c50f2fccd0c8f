package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/matheus3301/mxt/internal/session"
	"github.com/matheus3301/mxt/internal/tui/client"
	"github.com/spf13/cobra"
)

const requestTimeout = 10 * time.Second

// cli is the state shared by all subcommands.
type cli struct {
	session string
	json    bool
	client  *client.Client
}

func newRootCommand() *cobra.Command {
	c := &cli{}

	cmd := &cobra.Command{
		Use:           "mxtctl",
		Short:         "Control a running mxt daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		Example: `  mxtctl status
  mxtctl --session work rooms --filter unread
  mxtctl open https://matrix.to/#/#mxt:example.org`,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return c.connect()
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if c.client != nil {
				_ = c.client.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVarP(&c.session, "session", "s", "", "session name (overrides config default)")
	cmd.PersistentFlags().BoolVar(&c.json, "json", false, "output in JSON format")

	cmd.AddCommand(
		newStatusCommand(c),
		newLoginCommand(c),
		newLogoutCommand(c),
		newSyncCommand(c),
		newSessionsCommand(c),
		newRoomsCommand(c),
		newOpenCommand(c),
		newShareCommand(c),
		newSendCommand(c),
		newRetryCommand(c),
		newSearchCommand(c),
	)

	return cmd
}

func (c *cli) connect() error {
	c.session = session.Resolve(c.session)
	if err := session.ValidateName(c.session); err != nil {
		return err
	}
	cl, err := client.New(session.SocketPath(c.session))
	if err != nil {
		return fmt.Errorf("cannot connect to daemon for session %q: %w", c.session, err)
	}
	c.client = cl
	return nil
}

func (c *cli) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), requestTimeout)
}

// print writes v as JSON with --json, and calls text otherwise.
func (c *cli) print(v any, text func()) error {
	if !c.json {
		text()
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("json encode: %w", err)
	}
	return nil
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
