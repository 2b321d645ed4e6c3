package report

import (
	"fmt"
	"time"

	"github.com/danielpatrickdp/break-tracker/internal/state"
)

// Row is one of today's sessions.
type Row struct {
	ID       string        `json:"id"`
	Start    time.Time     `json:"start"`
	End      time.Time     `json:"end"`
	Duration time.Duration `json:"duration"`
	Manual   bool          `json:"manual,omitempty"`
}

// Summary aggregates the session log as seen at a point in time.
type Summary struct {
	Now        time.Time             `json:"now"`
	Today      []Row                 `json:"today"`
	TodayTotal time.Duration         `json:"today_total"`
	WeekTotal  time.Duration         `json:"week_total"`
	Count      int                   `json:"count"`
	Active     *state.CurrentSession `json:"active,omitempty"`
	Live       time.Duration         `json:"live,omitempty"` // elapsed time of the open break
}

// #region build

// Build computes today's rows and the day and week totals in now's location.
// The open break contributes only to Live, never to the totals.
func Build(sessions []state.Session, current *state.CurrentSession, now time.Time) Summary {
	day := StartOfDay(now)
	weekStart, weekEnd := WeekBounds(now)

	sum := Summary{Now: now, Today: []Row{}}
	for _, s := range sessions {
		d := s.Duration()
		if d < 0 {
			d = 0
		}
		if !s.Start.Before(day) {
			sum.Today = append(sum.Today, Row{
				ID:       s.ID,
				Start:    s.Start,
				End:      s.End,
				Duration: d,
				Manual:   s.Manual,
			})
			sum.TodayTotal += d
		}
		if !s.Start.Before(weekStart) && s.Start.Before(weekEnd) {
			sum.WeekTotal += d
		}
	}
	sum.Count = len(sum.Today)

	if current != nil {
		cur := *current
		sum.Active = &cur
		if live := now.Sub(cur.Start); live > 0 {
			sum.Live = live
		}
	}
	return sum
}

// StartOfDay is local midnight of t's day.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// WeekBounds returns [Sunday 00:00, next Sunday 00:00) around t.
func WeekBounds(t time.Time) (time.Time, time.Time) {
	day := StartOfDay(t)
	start := day.AddDate(0, 0, -int(day.Weekday()))
	return start, start.AddDate(0, 0, 7)
}

// #endregion build

// #region format

// FormatDuration renders d rounded to whole minutes as "1h 5m" or "42m".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	m := int64((d + 30*time.Second) / time.Minute)
	if h := m / 60; h > 0 {
		return fmt.Sprintf("%dh %dm", h, m%60)
	}
	return fmt.Sprintf("%dm", m)
}

// FormatElapsed renders a running timer as "12m 05s".
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	s := int64(d / time.Second)
	return fmt.Sprintf("%dm %02ds", s/60, s%60)
}

// FormatClock renders t as 24h "HH:MM" in its own location.
func FormatClock(t time.Time) string {
	return t.Format("15:04")
}

// #endregion format
