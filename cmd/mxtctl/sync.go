package main

import (
	"fmt"

	"github.com/matheus3301/mxt/internal/rpc"
	"github.com/spf13/cobra"
)

func newSyncCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Start, stop or inspect the /sync loop",
	}

	toggle := func(use, short string, start bool) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				ctx, cancel := c.context()
				defer cancel()
				call := c.client.Sync.Stop
				if start {
					call = c.client.Sync.Start
				}
				resp, err := call(ctx, &rpc.SyncRequest{})
				if err != nil {
					return err
				}
				return c.print(resp, func() {
					fmt.Printf("Syncing: %v (%s)\n", resp.Syncing, resp.State)
					if resp.Message != "" {
						fmt.Println(resp.Message)
					}
				})
			},
		}
	}

	cmd.AddCommand(
		toggle("start", "Start syncing", true),
		toggle("stop", "Stop syncing", false),
		&cobra.Command{
			Use:   "status",
			Short: "Show sync status",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				ctx, cancel := c.context()
				defer cancel()
				resp, err := c.client.Sync.Status(ctx, &rpc.SyncRequest{})
				if err != nil {
					return err
				}
				return c.print(resp, func() {
					fmt.Printf("Syncing:    %v\n", resp.Syncing)
					fmt.Printf("State:      %s\n", resp.State)
					fmt.Printf("Next batch: %s\n", resp.NextBatch)
				})
			},
		},
	)
	return cmd
}
