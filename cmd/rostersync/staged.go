package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/troopkit/rostersync/internal/export"
	"github.com/troopkit/rostersync/internal/importer"
	"github.com/troopkit/rostersync/internal/store"
	"github.com/troopkit/rostersync/internal/types"
)

var stagedCmd = &cobra.Command{
	Use:     "staged",
	GroupID: "review",
	Short:   "Inspect and select staged changes",
	Long: `Staged rows are the reconciliation of one session's roster against the
database: create, update or skip, with the field differences. Select the
rows to apply, then run commit. Session arguments accept "latest".`,
}

var stagedListCmd = &cobra.Command{
	Use:   "list [session]",
	Short: "List a session's staged rows",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, unitID, sess, err := openSession(cmd, args)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		selectedOnly, _ := cmd.Flags().GetBool("selected")
		rows, err := s.ListStaged(ctx, store.StagedFilter{SessionID: sess.ID, UnitID: unitID, SelectedOnly: selectedOnly})
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rows)
		}
		if len(rows) == 0 {
			fmt.Println("No staged rows.")
			return nil
		}
		printStagedTable(os.Stdout, rows)
		doc := export.NewDocument(sess, rows)
		fmt.Printf("%d rows, %d selected\n", doc.Counts.Total, doc.Counts.Selected)
		return nil
	},
}

var stagedSelectCmd = &cobra.Command{
	Use:   "select [session] [staged-id...]",
	Short: "Select or deselect staged rows",
	Long: `Select rows by ID (a unique prefix of the ID is enough), or every row
with --all, optionally narrowed with --type. --deselect clears instead.
Rows staged as skip are never selected.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, unitID, sess, err := openSession(cmd, args)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		deselect, _ := cmd.Flags().GetBool("deselect")
		all, _ := cmd.Flags().GetBool("all")
		changeType, _ := cmd.Flags().GetString("type")
		c := importer.New(s, logger)

		if all {
			n, err := c.SelectAll(ctx, unitID, sess.ID, !deselect, types.ChangeType(changeType))
			if err != nil {
				return err
			}
			fmt.Printf("%s %d rows changed\n", passStyle.Render("✓"), n)
			return nil
		}

		ids := args
		if len(ids) > 0 {
			ids = ids[1:]
		}
		if len(ids) == 0 {
			return errors.New("give staged row IDs or --all")
		}
		rows, err := s.ListStaged(ctx, store.StagedFilter{SessionID: sess.ID, UnitID: unitID})
		if err != nil {
			return err
		}
		for _, prefix := range ids {
			row, err := findRow(rows, prefix)
			if err != nil {
				return err
			}
			if row.ChangeType == types.ChangeSkip && !deselect {
				fmt.Printf("%s %s %s is unchanged, not selected\n", warnStyle.Render("!"), shortID(row.ID), row.Name)
				continue
			}
			if _, err := c.Select(ctx, unitID, sess.ID, row.ID, !deselect, row.Version); err != nil {
				return err
			}
			fmt.Printf("%s %s %s\n", checkmark(!deselect), shortID(row.ID), row.Name)
		}
		return nil
	},
}

var stagedReviewCmd = &cobra.Command{
	Use:   "review [session]",
	Short: "Pick the rows to commit interactively",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return errors.New("review needs a terminal; use staged select instead")
		}
		ctx := cmd.Context()
		s, unitID, sess, err := openSession(cmd, args)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		rows, err := s.ListStaged(ctx, store.StagedFilter{SessionID: sess.ID, UnitID: unitID})
		if err != nil {
			return err
		}

		var options []huh.Option[string]
		byID := make(map[string]types.StagedMember)
		for _, r := range rows {
			if r.ChangeType == types.ChangeSkip {
				continue
			}
			byID[r.ID] = r
			label := fmt.Sprintf("%-6s %-28s %s", r.ChangeType, r.Name, changeList(r.Changes))
			if r.ChangeType == types.ChangeCreate && r.IsAdult {
				label = fmt.Sprintf("%-6s %-28s adult, match %s", r.ChangeType, r.Name, r.MatchType)
			}
			options = append(options, huh.NewOption(label, r.ID).Selected(r.IsSelected))
		}
		if len(options) == 0 {
			fmt.Println("Nothing to review: every row is unchanged.")
			return nil
		}

		var chosen []string
		form := huh.NewForm(huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title(fmt.Sprintf("Session %s: select changes to commit", shortID(sess.ID))).
				Options(options...).
				Height(min(len(options)+2, 20)).
				Value(&chosen),
		))
		if err := form.RunWithContext(ctx); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				fmt.Println("Review aborted; selection unchanged.")
				return nil
			}
			return err
		}

		want := make(map[string]bool, len(chosen))
		for _, id := range chosen {
			want[id] = true
		}
		c := importer.New(s, logger)
		changed := 0
		for id, r := range byID {
			if want[id] == r.IsSelected {
				continue
			}
			if _, err := c.Select(ctx, unitID, sess.ID, id, want[id], r.Version); err != nil {
				return err
			}
			changed++
		}
		fmt.Printf("%s %d selected, %d changed\n", passStyle.Render("✓"), len(chosen), changed)
		return nil
	},
}

var stagedExportCmd = &cobra.Command{
	Use:   "export [session]",
	Short: "Write staged rows to JSON, YAML or Excel",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, unitID, sess, err := openSession(cmd, args)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		out, _ := cmd.Flags().GetString("output")
		formatName, _ := cmd.Flags().GetString("format")
		if formatName == "" {
			formatName = "json"
			if out != "" {
				formatName = out
			}
		}
		format, err := export.ParseFormat(formatName)
		if err != nil {
			return err
		}
		if format == export.FormatXLSX && out == "" {
			return errors.New("xlsx export needs --output")
		}

		rows, err := s.ListStaged(ctx, store.StagedFilter{SessionID: sess.ID, UnitID: unitID})
		if err != nil {
			return err
		}
		doc := export.NewDocument(sess, rows)

		if out == "" {
			return export.Write(os.Stdout, format, doc)
		}
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		if err := export.Write(f, format, doc); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "%s wrote %d rows to %s\n", passStyle.Render("✓"), len(rows), out)
		return nil
	},
}

// openSession opens the store and resolves the unit and the session named
// by the first argument.
func openSession(cmd *cobra.Command, args []string) (*store.Store, string, *types.SyncSession, error) {
	ctx := cmd.Context()
	s, err := openStore(ctx)
	if err != nil {
		return nil, "", nil, err
	}
	unitID, err := resolveUnit(ctx, s)
	if err != nil {
		_ = s.Close()
		return nil, "", nil, err
	}
	sess, err := resolveSession(ctx, s, unitID, sessionArg(args))
	if err != nil {
		_ = s.Close()
		return nil, "", nil, err
	}
	return s, unitID, sess, nil
}

// findRow matches a full staged row ID or a unique prefix of one.
func findRow(rows []types.StagedMember, prefix string) (types.StagedMember, error) {
	var found []types.StagedMember
	for _, r := range rows {
		if r.ID == prefix {
			return r, nil
		}
		if len(prefix) >= 4 && len(r.ID) >= len(prefix) && r.ID[:len(prefix)] == prefix {
			found = append(found, r)
		}
	}
	switch len(found) {
	case 0:
		return types.StagedMember{}, fmt.Errorf("staged row %s: %w", prefix, store.ErrNotFound)
	case 1:
		return found[0], nil
	}
	return types.StagedMember{}, fmt.Errorf("staged row prefix %s is ambiguous (%d matches)", prefix, len(found))
}

func init() {
	stagedListCmd.Flags().Bool("selected", false, "only selected rows")
	stagedListCmd.Flags().Bool("json", false, "print rows as JSON")

	stagedSelectCmd.Flags().Bool("all", false, "every row (see --type)")
	stagedSelectCmd.Flags().String("type", "", "with --all, only rows of this change type: create or update")
	stagedSelectCmd.Flags().Bool("deselect", false, "clear selection instead")

	stagedExportCmd.Flags().StringP("output", "o", "", "output file (default stdout)")
	stagedExportCmd.Flags().String("format", "", "json, yaml or xlsx (default from the output extension)")

	stagedCmd.AddCommand(stagedListCmd, stagedSelectCmd, stagedReviewCmd, stagedExportCmd)
	rootCmd.AddCommand(stagedCmd)
}
