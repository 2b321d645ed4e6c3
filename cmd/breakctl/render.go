package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/danielpatrickdp/break-tracker/internal/logging"
	"github.com/danielpatrickdp/break-tracker/internal/report"
	"github.com/danielpatrickdp/break-tracker/internal/state"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	valueStyle  = lipgloss.NewStyle().Bold(true)
	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	offStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	boxStyle    = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)
)

func renderStatus(tracking bool, cur *state.CurrentSession, now time.Time) string {
	track := activeStyle.Render("enabled")
	if !tracking {
		track = offStyle.Render("disabled")
	}
	lines := []string{labelStyle.Render("tracking ") + track}
	if cur == nil {
		lines = append(lines, labelStyle.Render("break    ")+"none")
	} else {
		lines = append(lines, labelStyle.Render("break    ")+activeStyle.Render(
			fmt.Sprintf("on since %s (%s)", report.FormatClock(cur.Start.Local()), report.FormatElapsed(now.Sub(cur.Start)))))
	}
	return strings.Join(lines, "\n")
}

func renderReport(sum report.Summary) string {
	header := titleStyle.Render("Breaks today · " + sum.Now.Local().Format("Mon Jan 2"))

	var rows []string
	if len(sum.Today) == 0 {
		rows = append(rows, labelStyle.Render("no breaks yet"))
	}
	for _, r := range sum.Today {
		rows = append(rows, fmt.Sprintf("%s  %s  %s",
			report.FormatClock(r.Start.Local()),
			report.FormatClock(r.End.Local()),
			valueStyle.Render(report.FormatDuration(r.Duration))))
	}
	if sum.Active != nil {
		rows = append(rows, fmt.Sprintf("%s  %s  %s",
			report.FormatClock(sum.Active.Start.Local()),
			"  -- ",
			activeStyle.Render(report.FormatElapsed(sum.Live))))
	}

	totals := lipgloss.JoinHorizontal(lipgloss.Top,
		stat("today", report.FormatDuration(sum.TodayTotal)),
		stat("breaks", fmt.Sprintf("%d", sum.Count)),
		stat("week", report.FormatDuration(sum.WeekTotal)),
	)

	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		header, "", strings.Join(rows, "\n"), "", totals))
}

func stat(label, value string) string {
	return lipgloss.NewStyle().MarginRight(3).Render(labelStyle.Render(label+" ") + valueStyle.Render(value))
}

func renderTransition(e logging.TransitionEntry) string {
	at := "-"
	if !e.SignalAt.IsZero() {
		at = e.SignalAt.Local().Format("01-02 15:04:05")
	}
	line := fmt.Sprintf("%4d  %s  %-7s %-10s %s", e.ID, at, e.SignalKind, e.Origin, e.Outcome)
	if e.Reason != "" {
		line += labelStyle.Render("  " + e.Reason)
	}
	return line
}
