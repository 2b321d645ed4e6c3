package report

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/danielpatrickdp/break-tracker/internal/state"
)

// Wednesday 2024-05-15 14:30 UTC.
var now = time.Date(2024, time.May, 15, 14, 30, 0, 0, time.UTC)

func sess(id string, start time.Time, d time.Duration) state.Session {
	return state.Session{ID: id, Start: start, End: start.Add(d)}
}

// #region bounds-tests

func TestStartOfDay(t *testing.T) {
	got := StartOfDay(now)
	want := time.Date(2024, time.May, 15, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestWeekBounds_StartsSunday(t *testing.T) {
	start, end := WeekBounds(now)
	if !start.Equal(time.Date(2024, time.May, 12, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected week start %v", start)
	}
	if !end.Equal(time.Date(2024, time.May, 19, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected week end %v", end)
	}

	sunday := time.Date(2024, time.May, 12, 9, 0, 0, 0, time.UTC)
	start, _ = WeekBounds(sunday)
	if !start.Equal(StartOfDay(sunday)) {
		t.Errorf("expected Sunday to start its own week, got %v", start)
	}
}

// #endregion bounds-tests

// #region build-tests

func TestBuild(t *testing.T) {
	today := StartOfDay(now)
	sessions := []state.Session{
		sess("last-week", today.AddDate(0, 0, -4), time.Hour),  // Saturday before
		sess("monday", today.AddDate(0, 0, -2), 20*time.Minute), // this week
		sess("morning", today.Add(9*time.Hour), 15*time.Minute),
		sess("noon", today.Add(12*time.Hour), 45*time.Minute),
	}
	cur := &state.CurrentSession{Start: now.Add(-5 * time.Minute), Origin: "hook"}

	got := Build(sessions, cur, now)

	if got.Count != 2 {
		t.Fatalf("expected 2 sessions today, got %d", got.Count)
	}
	wantRows := []Row{
		{ID: "morning", Start: sessions[2].Start, End: sessions[2].End, Duration: 15 * time.Minute},
		{ID: "noon", Start: sessions[3].Start, End: sessions[3].End, Duration: 45 * time.Minute},
	}
	if diff := cmp.Diff(wantRows, got.Today); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
	if got.TodayTotal != time.Hour {
		t.Errorf("expected 1h today, got %v", got.TodayTotal)
	}
	if got.WeekTotal != 80*time.Minute {
		t.Errorf("expected 80m this week, got %v", got.WeekTotal)
	}
	if got.Active == nil || got.Live != 5*time.Minute {
		t.Errorf("expected 5m live break, got %+v %v", got.Active, got.Live)
	}
}

func TestBuild_Empty(t *testing.T) {
	got := Build(nil, nil, now)
	if got.Count != 0 || got.TodayTotal != 0 || got.Active != nil || got.Today == nil {
		t.Errorf("expected empty summary with non-nil rows, got %+v", got)
	}
}

// #endregion build-tests

// #region format-tests

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{0, "0m"},
		{29 * time.Second, "0m"},
		{30 * time.Second, "1m"},
		{42 * time.Minute, "42m"},
		{59*time.Minute + 40*time.Second, "1h 0m"},
		{65 * time.Minute, "1h 5m"},
		{-time.Minute, "0m"},
	}
	for _, c := range cases {
		if got := FormatDuration(c.in); got != c.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFormatElapsedAndClock(t *testing.T) {
	if got := FormatElapsed(12*time.Minute + 5*time.Second); got != "12m 05s" {
		t.Errorf("unexpected elapsed %q", got)
	}
	if got := FormatClock(time.Date(2024, 1, 1, 7, 3, 0, 0, time.UTC)); got != "07:03" {
		t.Errorf("unexpected clock %q", got)
	}
}

// #endregion format-tests
