package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/troopkit/rostersync/internal/htmlimport"
	"github.com/troopkit/rostersync/internal/parser"
	"github.com/troopkit/rostersync/internal/staging"
	"github.com/troopkit/rostersync/internal/store"
)

var importCmd = &cobra.Command{
	Use:     "import",
	GroupID: "sync",
	Short:   "Stage a roster from a saved export",
}

var importHTMLCmd = &cobra.Command{
	Use:   "html <file>...",
	Short: "Stage roster HTML exports without a browser",
	Long: `Parse one or more roster pages saved as HTML and stage their members,
each file under its own session. Multi-page exports separated by
<!-- PAGE BREAK --> comments are read page by page. Files above 5MB or
without a member table are rejected.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd)
		defer cancel()

		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		unitID, err := resolveUnit(ctx, s)
		if err != nil {
			return err
		}
		imp, err := newHTMLImporter(s)
		if err != nil {
			return err
		}

		failed := 0
		for _, path := range args {
			out, err := imp.ImportFile(ctx, unitID, path)
			if err != nil {
				failed++
				fmt.Fprintf(os.Stderr, "%s %s: %v\n", failStyle.Render("✗"), path, err)
				continue
			}
			fmt.Printf("%s %s\n", passStyle.Render("✓"), path)
			printSummary(os.Stdout, out.Session.ID, out.Summary)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, len(args))
		}
		return nil
	},
}

func newHTMLImporter(s *store.Store) (*htmlimport.Importer, error) {
	voc, err := cfg.LoadVocabulary()
	if err != nil {
		return nil, err
	}
	engine := staging.New(s.Repository, cfg.StagingOptions(), logger)
	return htmlimport.New(parser.New(voc), s.Repository, engine, logger), nil
}

func init() {
	importCmd.AddCommand(importHTMLCmd)
	rootCmd.AddCommand(importCmd)
}
