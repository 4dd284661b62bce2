package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/troopkit/rostersync/internal/importer"
)

var commitCmd = &cobra.Command{
	Use:     "commit [session]",
	GroupID: "review",
	Short:   "Apply a session's selected changes",
	Long: `Apply every selected staged row: create and update scouts, create,
link or update adult profiles, and add new patrols. A row that fails is
reported and does not stop the others. The session's staged rows are
removed afterwards.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd)
		defer cancel()

		s, unitID, sess, err := openSession(cmd, args)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		selected, err := s.CountStaged(ctx, sess.ID, true)
		if err != nil {
			return err
		}
		if selected == 0 {
			return errors.New("no rows selected; run staged review or staged select first")
		}

		yes, _ := cmd.Flags().GetBool("yes")
		if !yes && term.IsTerminal(int(os.Stdin.Fd())) {
			confirmed := false
			prompt := huh.NewConfirm().
				Title(fmt.Sprintf("Commit %d selected rows from session %s?", selected, shortID(sess.ID))).
				Affirmative("Commit").
				Negative("Cancel").
				Value(&confirmed)
			if err := prompt.Run(); err != nil || !confirmed {
				fmt.Println("Nothing committed.")
				return nil
			}
		}

		res, err := importer.New(s, logger).Commit(ctx, unitID, sess.ID)
		if err != nil {
			return err
		}
		printImportResult(os.Stdout, res)
		if len(res.Errors) > 0 {
			return fmt.Errorf("%d rows failed", len(res.Errors))
		}
		return nil
	},
}

var cancelCmd = &cobra.Command{
	Use:     "cancel [session]",
	GroupID: "review",
	Short:   "Discard a session's staged rows",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, unitID, sess, err := openSession(cmd, args)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		n, err := importer.New(s, logger).Cancel(ctx, unitID, sess.ID)
		if err != nil {
			return err
		}
		fmt.Printf("%s discarded %d staged rows of session %s\n", passStyle.Render("✓"), n, sess.ID)
		return nil
	},
}

func init() {
	commitCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
	rootCmd.AddCommand(commitCmd, cancelCmd)
}
