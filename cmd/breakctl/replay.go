package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/break-tracker/internal/gate"
	"github.com/danielpatrickdp/break-tracker/internal/logging"
	"github.com/danielpatrickdp/break-tracker/internal/replay"
)

// #region replay
func newReplayCmd() *cobra.Command {
	var fixturePath string

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a recorded fixture and check its expected outcomes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := replay.LoadFixture(fixturePath)
			if err != nil {
				return err
			}
			results, mismatches, err := f.Run()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Fixture: %s\n", f.Description)
			for _, r := range results {
				mark := " "
				if r.Index < len(f.Expected) && string(r.Outcome) != f.Expected[r.Index] {
					mark = "!"
				}
				_, _ = fmt.Fprintf(out, "%s %3d  %-40s %s\n", mark, r.Index, r.Signal, r.Outcome)
			}
			sum := replay.Summarize(results)
			_, _ = fmt.Fprintf(out, "\nsteps=%d started=%d saved=%d suppressed=%d ignored=%d total=%s\n",
				sum.TotalSteps, sum.Started, sum.Saved, sum.Suppressed, sum.Ignored, sum.Total)

			if len(mismatches) > 0 {
				for _, m := range mismatches {
					_, _ = fmt.Fprintln(cmd.ErrOrStderr(), m)
				}
				return fmt.Errorf("%d expectation mismatches", len(mismatches))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&fixturePath, "fixture", "", "path to fixture JSON")
	_ = cmd.MarkFlagRequired("fixture")
	return cmd
}

// #endregion replay

// #region export
func newExportFixtureCmd(g *globals) *cobra.Command {
	var outPath, description string
	var last int
	var minSession time.Duration

	cmd := &cobra.Command{
		Use:   "export-fixture",
		Short: "Write the transition log as a replay fixture",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := g.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			limit := last
			if limit <= 0 {
				limit = -1 // sqlite: no limit
			}
			entries, err := logging.RecentTransitions(store.DB(), limit)
			if err != nil {
				return err
			}
			if description == "" {
				description = fmt.Sprintf("exported from %s on %s", g.dbPath, time.Now().Format(time.RFC3339))
			}
			f, err := replay.FromTransitions(description, entries, minSession)
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(f, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal fixture: %w", err)
			}
			data = append(data, '\n')

			if outPath == "" || outPath == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(outPath, data, 0644); err != nil {
				return fmt.Errorf("write fixture: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d steps to %s\n", len(f.Steps), outPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "-", "output file (- for stdout)")
	cmd.Flags().StringVar(&description, "description", "", "fixture description")
	cmd.Flags().IntVar(&last, "last", 0, "export only the N most recent entries (0 = all)")
	cmd.Flags().DurationVar(&minSession, "min-session", gate.DefaultGateConfig().MinSessionDuration, "minimum session the daemon ran with")
	return cmd
}

// #endregion export
