package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/break-tracker/internal/report"
	"github.com/danielpatrickdp/break-tracker/internal/rpc"
	"github.com/danielpatrickdp/break-tracker/internal/signals"
)

// These commands go through the daemon so that every transition is
// serialised by its engine.

// #region manual
func newStartCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start a break now",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return manualIf(cmd.OutOrStdout(), g, false)
		},
	}
}

func newStopCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "End the open break now and save it regardless of length",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return manualIf(cmd.OutOrStdout(), g, true)
		},
	}
}

func newManualCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "manual",
		Short: "Toggle the break: start when idle, stop when active",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, ctx, cancel, err := g.dial()
			if err != nil {
				return err
			}
			defer cancel()
			defer client.Close()

			reply, err := client.Manual(ctx, time.Now())
			if err != nil {
				return err
			}
			printReply(cmd.OutOrStdout(), reply)
			return nil
		},
	}
}

// manualIf toggles only when the daemon is in the expected state.
func manualIf(out io.Writer, g *globals, wantActive bool) error {
	client, ctx, cancel, err := g.dial()
	if err != nil {
		return err
	}
	defer cancel()
	defer client.Close()

	st, err := client.Status(ctx)
	if err != nil {
		return err
	}
	if active := st.Current != nil; active != wantActive {
		if active {
			return fmt.Errorf("a break is already open since %s", report.FormatClock(st.Current.Start.Local()))
		}
		return errors.New("no break is open")
	}
	reply, err := client.Manual(ctx, time.Now())
	if err != nil {
		return err
	}
	printReply(out, reply)
	return nil
}

// #endregion manual

// #region signal
func newSignalCmd(g *globals) *cobra.Command {
	var via string

	cmd := &cobra.Command{
		Use:   "signal start|visible|hidden",
		Short: "Send a raw signal to the daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := signals.ParseKind(args[0]); err != nil {
				return err
			}
			client, ctx, cancel, err := g.dial()
			if err != nil {
				return err
			}
			defer cancel()
			defer client.Close()

			reply, err := client.Submit(ctx, signals.Message{
				Type: args[0],
				When: time.Now().UnixMilli(),
				Via:  via,
			})
			if err != nil {
				return err
			}
			printReply(cmd.OutOrStdout(), reply)
			return nil
		},
	}
	cmd.Flags().StringVar(&via, "via", signals.OriginRPC, "origin tag recorded with the signal")
	return cmd
}

// #endregion signal

func printReply(out io.Writer, r rpc.Reply) {
	line := r.Outcome
	if r.Session != nil {
		line += fmt.Sprintf(" %s (%s)", report.FormatDuration(r.Session.Duration()), r.Session.ID)
	}
	if r.Reason != "" {
		line += ": " + r.Reason
	}
	_, _ = fmt.Fprintln(out, line)
}
