package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/break-tracker/internal/logging"
	"github.com/danielpatrickdp/break-tracker/internal/report"
)

// #region status
func newStatusCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show tracking state and the open break",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := g.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := context.Background()
			tracking, err := store.TrackingEnabled(ctx)
			if err != nil {
				return err
			}
			cur, err := store.Current(ctx)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), renderStatus(tracking, cur, time.Now()))
			return nil
		},
	}
}

// #endregion status

// #region sessions
func newSessionsCmd(g *globals) *cobra.Command {
	var last int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recorded breaks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := g.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			sessions, err := store.Sessions(context.Background(), last)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(sessions)
			}
			if len(sessions) == 0 {
				_, _ = fmt.Fprintln(out, "no sessions")
				return nil
			}
			for _, s := range sessions {
				manual := ""
				if s.Manual {
					manual = " manual"
				}
				_, _ = fmt.Fprintf(out, "%s  %s  %s-%s  %6s  %s%s\n",
					s.ID[:min(8, len(s.ID))],
					s.Start.Local().Format("2006-01-02"),
					report.FormatClock(s.Start.Local()),
					report.FormatClock(s.End.Local()),
					report.FormatDuration(s.Duration()),
					s.Origin, manual)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&last, "last", 0, "show only the N most recent sessions (0 = all)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON")
	return cmd
}

// #endregion sessions

// #region report
func newReportCmd(g *globals) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show today's breaks with day and week totals",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := g.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := context.Background()
			now := time.Now()
			weekStart, _ := report.WeekBounds(now)
			sessions, err := store.SessionsSince(ctx, weekStart)
			if err != nil {
				return err
			}
			cur, err := store.Current(ctx)
			if err != nil {
				return err
			}
			sum := report.Build(sessions, cur, now)

			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(sum)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), renderReport(sum))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON")
	return cmd
}

// #endregion report

// #region toggle
func newToggleCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:       "toggle on|off",
		Short:     "Enable or disable automatic tracking",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var enabled bool
			switch args[0] {
			case "on":
				enabled = true
			case "off":
			default:
				return fmt.Errorf("expected on or off, got %q", args[0])
			}

			store, err := g.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.SetTrackingEnabled(context.Background(), enabled); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "tracking %s\n", args[0])
			return nil
		},
	}
}

// #endregion toggle

// #region reset
func newResetCmd(g *globals) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every recorded break and the open marker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("reset deletes all sessions; pass --yes to confirm")
			}
			store, err := g.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Reset(context.Background()); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "all sessions cleared")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}

// #endregion reset

// #region log
func newLogCmd(g *globals) *cobra.Command {
	var last int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the most recent processed signals",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := g.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := logging.RecentTransitions(store.DB(), last)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}
			for _, e := range entries {
				_, _ = fmt.Fprintln(out, renderTransition(e))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&last, "last", 20, "number of entries")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON")
	return cmd
}

// #endregion log
