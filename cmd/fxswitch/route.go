package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/modoterra/fxswitch/pkg/core"
)

var directFlag bool

func init() {
	for _, c := range []*cobra.Command{toggleCmd, setCmd, bootCmd} {
		c.Flags().BoolVar(&directFlag, "direct", false, "run in-process with pactl instead of asking the daemon")
		rootCmd.AddCommand(c)
	}
}

// --- Toggle ---

var toggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Move the effects output to the other sink",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var sink core.Sink
		if directFlag {
			stack, err := directStack()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			if sink, err = stack.Router.Toggle(ctx); err != nil {
				return err
			}
		} else {
			client, err := dialDaemon()
			if err != nil {
				return err
			}
			defer client.Close()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			resp, err := client.Toggle(ctx)
			if err != nil {
				return err
			}
			sink = resp.Sink
		}
		fmt.Fprintf(cmd.OutOrStdout(), "output → %s ✓\n", sink.Description)
		return nil
	},
}

// --- Set ---

var setCmd = &cobra.Command{
	Use:   "set <description>",
	Short: "Move the effects output to the sink with this description",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var sink core.Sink
		if directFlag {
			stack, err := directStack()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			if sink, err = stack.Router.Route(ctx, core.RoleOutput, args[0]); err != nil {
				return err
			}
		} else {
			client, err := dialDaemon()
			if err != nil {
				return err
			}
			defer client.Close()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			resp, err := client.SetOutput(ctx, args[0])
			if err != nil {
				return err
			}
			sink = resp.Sink
		}
		fmt.Fprintf(cmd.OutOrStdout(), "output → %s ✓\n", sink.Description)
		return nil
	},
}

// --- Boot ---

var bootCmd = &cobra.Command{
	Use:   "boot",
	Short: "Run the boot routing sequence",
	Long:  "Without --direct, asks the daemon to re-run its boot sequence. With --direct, runs it here and retries until both milestones are reached or interrupted.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out := cmd.OutOrStdout()
		if directFlag {
			stack, err := directStack()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			st, err := stack.Sequencer.Run(ctx)
			if err != nil {
				return fmt.Errorf("boot interrupted after %d attempt(s): %w", st.Attempts, err)
			}
			fmt.Fprintf(out, "booted after %d attempt(s) ✓\n", st.Attempts)
			return nil
		}

		client, err := dialDaemon()
		if err != nil {
			return err
		}
		defer client.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		resp, err := client.Boot(ctx)
		if err != nil {
			return err
		}
		if resp.Started {
			fmt.Fprintln(out, "boot sequence started")
		} else {
			fmt.Fprintf(out, "boot sequence already running (attempt %d)\n", resp.State.Attempts)
		}
		return nil
	},
}
