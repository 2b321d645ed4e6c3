package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/break-tracker/internal/rpc"
	"github.com/danielpatrickdp/break-tracker/internal/state"
)

// #region main
func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// globals are the persistent flags shared by every subcommand.
type globals struct {
	dbPath  string
	addr    string
	timeout time.Duration
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:           "breakctl",
		Short:         "Inspect and control the break tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.dbPath, "db", envOr("BREAK_DB", "break_tracker.db"), "path to the tracker database")
	root.PersistentFlags().StringVar(&g.addr, "addr", envOr("BREAK_RPC_ADDR", "localhost:50061"), "breakd gRPC address")
	root.PersistentFlags().DurationVar(&g.timeout, "timeout", 5*time.Second, "timeout for daemon calls")

	root.AddCommand(newStatusCmd(g))
	root.AddCommand(newSessionsCmd(g))
	root.AddCommand(newReportCmd(g))
	root.AddCommand(newToggleCmd(g))
	root.AddCommand(newResetCmd(g))
	root.AddCommand(newLogCmd(g))
	root.AddCommand(newStartCmd(g), newStopCmd(g), newManualCmd(g), newSignalCmd(g))
	root.AddCommand(newReplayCmd(), newExportFixtureCmd(g))
	return root
}

// #endregion main

// #region helpers
func (g *globals) openStore() (*state.Store, error) {
	store, err := state.NewStore(g.dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return store, nil
}

func (g *globals) dial() (*rpc.SignalClient, context.Context, context.CancelFunc, error) {
	client, err := rpc.NewSignalClient(g.addr)
	if err != nil {
		return nil, nil, nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	return client, ctx, cancel, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
