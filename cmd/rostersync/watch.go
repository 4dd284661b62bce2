package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/troopkit/rostersync/internal/daemon"
	"github.com/troopkit/rostersync/internal/dashboard"
	"github.com/troopkit/rostersync/internal/htmlimport"
	"github.com/troopkit/rostersync/internal/importer"
)

var watchCmd = &cobra.Command{
	Use:     "watch [dir]",
	GroupID: "sync",
	Short:   "Stage every roster export dropped into a directory",
	Long: `Watch an inbox directory and stage each .html/.htm roster export saved
into it, as import html would. Handled files move to processed/ or
failed/ under the inbox.

With --commit, the rows selected by default (creates and updates) are
committed right after staging.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd)
		defer cancel()

		dir := cfg.Watch.Dir
		if len(args) > 0 {
			dir = args[0]
		}
		if dir == "" {
			return fmt.Errorf("no inbox directory; pass one or set watch.dir")
		}

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

		var handler *dashboard.Handler
		if addr, _ := cmd.Flags().GetString("dashboard"); addr != "" {
			srv := dashboard.NewServer(dashboard.Config{Addr: addr, Logger: logger})
			if err := srv.Start(); err != nil {
				return fmt.Errorf("failed to start dashboard: %w", err)
			}
			defer func() { _ = srv.Stop() }()
			handler = dashboard.NewHandler(srv, logger)
			fmt.Printf("Dashboard: ws://%s/ws\n", srv.Addr())
		}

		autoCommit, _ := cmd.Flags().GetBool("commit")
		committer := importer.New(s, logger)

		onImported := func(path string, out *htmlimport.Outcome) {
			fmt.Printf("%s %s\n", passStyle.Render("✓"), path)
			printSummary(os.Stdout, out.Session.ID, out.Summary)
			if handler != nil {
				handler.OnStaged(out.Session.ID, out.Summary)
			}
			if !autoCommit {
				return
			}
			res, err := committer.Commit(ctx, unitID, out.Session.ID)
			if err != nil {
				logger.Error("auto-commit failed", zap.String("session_id", out.Session.ID), zap.Error(err))
				return
			}
			printImportResult(os.Stdout, res)
			if handler != nil {
				handler.OnCommitted(out.Session.ID, res)
			}
		}

		d, err := daemon.New(imp, daemon.Config{
			Dir:              dir,
			UnitID:           unitID,
			DebounceInterval: cfg.Watch.Debounce,
			OnImported:       onImported,
			Logger:           logger,
		})
		if err != nil {
			return err
		}

		fmt.Printf("%s watching %s\n", accentStyle.Render("→"), dir)
		fmt.Printf("Press Ctrl+C to stop\n\n")
		return d.Start(ctx)
	},
}

func init() {
	f := watchCmd.Flags()
	f.Duration("debounce", 0, "quiet period before a file is imported (default 500ms)")
	f.Bool("commit", false, "commit selected rows after each import")
	f.String("dashboard", "", "serve staging results over WebSocket on this address")
	mustBind(f, map[string]string{"debounce": "watch.debounce"})
	rootCmd.AddCommand(watchCmd)
}
