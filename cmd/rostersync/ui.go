package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/termenv"

	"github.com/troopkit/rostersync/internal/staging"
	"github.com/troopkit/rostersync/internal/types"
)

var (
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// applyColor picks the color profile of stdout, or none when disabled by
// flag or NO_COLOR.
func applyColor(disabled bool) {
	if disabled || termenv.EnvNoColor() {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}
	lipgloss.SetColorProfile(termenv.NewOutput(os.Stdout).EnvColorProfile())
}

func renderChange(c types.ChangeType) string {
	switch c {
	case types.ChangeCreate:
		return passStyle.Render(string(c))
	case types.ChangeUpdate:
		return warnStyle.Render(string(c))
	}
	return mutedStyle.Render(string(c))
}

func renderStatus(s types.SessionStatus) string {
	switch s {
	case types.SessionCompleted:
		return passStyle.Render(string(s))
	case types.SessionFailed:
		return failStyle.Render(string(s))
	case types.SessionRunning:
		return accentStyle.Render(string(s))
	}
	return mutedStyle.Render(string(s))
}

func checkmark(selected bool) string {
	if selected {
		return passStyle.Render("✓")
	}
	return " "
}

// changeList renders a diff as "field old→new" pairs in field order.
func changeList(changes map[string]types.FieldChange) string {
	fields := make([]string, 0, len(changes))
	for f := range changes {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		c := changes[f]
		parts = append(parts, fmt.Sprintf("%s %s→%s", f, orDash(c.Old), orDash(c.New)))
	}
	return strings.Join(parts, "; ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func memberKind(r types.StagedMember) string {
	if r.IsAdult {
		return "adult"
	}
	return "scout"
}

func printStagedTable(w io.Writer, rows []types.StagedMember) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers("", "ID", "CHANGE", "NAME", "BSA ID", "KIND", "MATCH", "DETAIL").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, r := range rows {
		detail := changeList(r.Changes)
		if r.ChangeType == types.ChangeSkip {
			detail = r.SkipReason
		}
		match := ""
		if r.IsAdult {
			match = string(r.MatchType)
		}
		t.Row(checkmark(r.IsSelected), shortID(r.ID), renderChange(r.ChangeType), r.Name, r.BSAMemberID, memberKind(r), match, detail)
	}
	fmt.Fprintln(w, t.Render())
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func printSummary(w io.Writer, sessionID string, sum *staging.Summary) {
	fmt.Fprintf(w, "%s staged %d members for session %s\n", accentStyle.Render("→"), sum.Total, sessionID)
	fmt.Fprintf(w, "  %s %d  %s %d  %s %d  adults %d\n",
		passStyle.Render("create"), sum.Creates,
		warnStyle.Render("update"), sum.Updates,
		mutedStyle.Render("skip"), sum.Skips,
		sum.Adults)
	if sum.Duplicates > 0 || sum.Invalid > 0 {
		fmt.Fprintf(w, "  %s %d duplicate and %d invalid rows dropped\n", warnStyle.Render("!"), sum.Duplicates, sum.Invalid)
	}
}

func printImportResult(w io.Writer, res *types.ImportResult) {
	fmt.Fprintf(w, "%s created %d, updated %d, skipped %d\n", passStyle.Render("✓"), res.Created, res.Updated, res.Skipped)
	if res.AdultsCreated+res.AdultsUpdated+res.AdultsLinked > 0 {
		fmt.Fprintf(w, "  adults: created %d, updated %d, linked %d\n", res.AdultsCreated, res.AdultsUpdated, res.AdultsLinked)
	}
	for _, e := range res.Errors {
		fmt.Fprintf(w, "  %s %s (%s): %s\n", failStyle.Render("✗"), e.Member.Name, e.Member.BSAMemberID, e.Error)
	}
}

func printSession(w io.Writer, s *types.SyncSession) {
	fmt.Fprintf(w, "%s %s\n", accentStyle.Render("Session"), s.ID)
	fmt.Fprintf(w, "  status:   %s\n", renderStatus(s.Status))
	fmt.Fprintf(w, "  source:   %s\n", s.Source)
	fmt.Fprintf(w, "  started:  %s\n", s.StartedAt.Local().Format("2006-01-02 15:04:05"))
	if s.FinishedAt != nil {
		fmt.Fprintf(w, "  finished: %s (%s)\n", s.FinishedAt.Local().Format("2006-01-02 15:04:05"), s.FinishedAt.Sub(s.StartedAt).Round(time.Second))
	}
	fmt.Fprintf(w, "  pages:    %d\n", s.PagesVisited)
	fmt.Fprintf(w, "  records:  %d\n", s.RecordsExtracted)
	if len(s.Errors) > 0 {
		fmt.Fprintf(w, "  errors:   %d\n", len(s.Errors))
		for _, e := range s.Errors {
			where := e.Phase
			if e.Page > 0 {
				where += fmt.Sprintf(" page %d", e.Page)
			}
			if e.Member != "" {
				where += " " + e.Member
			}
			fmt.Fprintf(w, "    %s %s: %s\n", failStyle.Render("✗"), where, e.Message)
		}
	}
}
