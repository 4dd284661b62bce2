package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:     "sessions",
	GroupID: "review",
	Short:   "Show sync and import sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the unit's sessions, newest first",
	Long: `List sessions of the unit. --since takes a duration ("72h") or a
phrase ("yesterday", "last monday", "2 weeks ago").`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		unitID, err := resolveUnit(ctx, s)
		if err != nil {
			return err
		}
		sinceArg, _ := cmd.Flags().GetString("since")
		since, err := parseSince(sinceArg, time.Now())
		if err != nil {
			return err
		}

		sessions, err := s.ListSessions(ctx, unitID, since)
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(sessions)
		}
		if len(sessions) == 0 {
			fmt.Println("No sessions.")
			return nil
		}

		t := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(mutedStyle).
			Headers("ID", "STARTED", "SOURCE", "STATUS", "PAGES", "RECORDS", "ERRORS").
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				return cellStyle
			})
		for _, sess := range sessions {
			t.Row(sess.ID, sess.StartedAt.Local().Format("2006-01-02 15:04"), sess.Source, renderStatus(sess.Status),
				fmt.Sprint(sess.PagesVisited), fmt.Sprint(sess.RecordsExtracted), fmt.Sprint(len(sess.Errors)))
		}
		fmt.Println(t.Render())
		return nil
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show [session]",
	Short: "Show one session with its errors",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		unitID, err := resolveUnit(ctx, s)
		if err != nil {
			return err
		}
		sess, err := resolveSession(ctx, s, unitID, sessionArg(args))
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(sess)
		}
		printSession(os.Stdout, sess)

		staged, err := s.CountStaged(ctx, sess.ID, true)
		if err != nil {
			return err
		}
		unselected, err := s.CountStaged(ctx, sess.ID, false)
		if err != nil {
			return err
		}
		if staged+unselected > 0 {
			fmt.Printf("  staged:   %d rows, %d selected\n", staged+unselected, staged)
		}
		return nil
	},
}

// parseSince turns a duration or a natural-language time into the start
// of the listing window. Empty means no bound.
func parseSince(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return now.Add(-d), nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, now.Location()); err == nil {
		return t, nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	r, err := w.Parse(s, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --since %q: %w", s, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("invalid --since %q: not a duration or date", s)
	}
	return r.Time, nil
}

func init() {
	sessionsListCmd.Flags().String("since", "", "only sessions started after this time")
	sessionsListCmd.Flags().Bool("json", false, "print sessions as JSON")
	sessionsShowCmd.Flags().Bool("json", false, "print the session as JSON")
	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd)
	rootCmd.AddCommand(sessionsCmd)
}
