package replay

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielpatrickdp/break-tracker/internal/logging"
	"github.com/danielpatrickdp/break-tracker/internal/signals"
)

// #region fixture-tests

// TestFixtures replays every recorded fixture and compares each step's
// outcome against the expectation. If the gate or the machine rules change,
// this catches drift.
func TestFixtures(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "*.json"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(paths) == 0 {
		t.Fatal("no fixtures found")
	}
	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			f, err := LoadFixture(path)
			if err != nil {
				t.Fatalf("LoadFixture: %v", err)
			}
			_, mismatches, err := f.Run()
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			for _, m := range mismatches {
				t.Error(m)
			}
		})
	}
}

func TestFixture_WorkdayTotals(t *testing.T) {
	f, err := LoadFixture(filepath.Join("testdata", "workday.json"))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	results, _, err := f.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	sum := Summarize(results)
	if sum.Saved != 2 || sum.Suppressed != 1 || sum.Started != 3 {
		t.Errorf("unexpected summary %+v", sum)
	}
	if want := 15*time.Minute + 5*time.Second; sum.Total != want {
		t.Errorf("expected total %v, got %v", want, sum.Total)
	}
}

func TestLoadFixture_NotFound(t *testing.T) {
	_, err := LoadFixture(filepath.Join("testdata", "nonexistent.json"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadFixture_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadFixture(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestFixture_UnknownStepType(t *testing.T) {
	f := &Fixture{Steps: []signals.Message{{Type: "coffee"}}}
	if _, err := f.ToSteps(); err == nil {
		t.Fatal("expected error for unknown step type")
	}
}

func TestFixture_ExpectationMismatch(t *testing.T) {
	f, err := LoadFixture(filepath.Join("testdata", "restart.json"))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	f.Expected[1] = "suppressed"
	f.Expected = f.Expected[:3]
	_, mismatches, err := f.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(mismatches) != 2 {
		t.Fatalf("expected count and step mismatches, got %v", mismatches)
	}
}

// #endregion fixture-tests

// #region export-tests

func TestFromTransitions_RoundTrip(t *testing.T) {
	at := func(ms int64) time.Time { return time.UnixMilli(1718000000000 + ms) }
	entries := []logging.TransitionEntry{
		{ID: 1, SignalKind: "hidden", Origin: "mutation", SignalAt: at(0), Outcome: "orphan"},
		{ID: 2, SignalKind: "start", Origin: "hook", SignalAt: at(1000), Outcome: "started"},
		{ID: 3, SignalKind: "hidden", Origin: "mutation", SignalAt: at(61000), Outcome: "error", Reason: "disk full"},
		{ID: 4, SignalKind: "hidden", Origin: "mutation", SignalAt: at(62000), Outcome: "saved"},
		{ID: 5, SignalKind: "start", Origin: "manual", SignalAt: at(90000), Outcome: "started"},
		{ID: 6, SignalKind: "hidden", Origin: "manual", SignalAt: at(95000), Outcome: "saved"},
	}

	f, err := FromTransitions("exported", entries, 30*time.Second)
	if err != nil {
		t.Fatalf("FromTransitions: %v", err)
	}
	if len(f.Steps) != 5 {
		t.Fatalf("expected error entry skipped, got %d steps", len(f.Steps))
	}
	if f.Steps[3].Type != manualType || f.Steps[4].Type != manualType {
		t.Errorf("expected manual steps, got %+v", f.Steps[3:])
	}

	_, mismatches, err := f.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, m := range mismatches {
		t.Error(m)
	}
}

func TestFromTransitions_BadKind(t *testing.T) {
	_, err := FromTransitions("x", []logging.TransitionEntry{{ID: 9, SignalKind: "sideways", Outcome: "orphan"}}, 0)
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

// #endregion export-tests
