package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/troopkit/rostersync/internal/browser"
	"github.com/troopkit/rostersync/internal/dashboard"
	"github.com/troopkit/rostersync/internal/orchestrator"
	"github.com/troopkit/rostersync/internal/parser"
	"github.com/troopkit/rostersync/internal/staging"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Extract the roster through the browser and stage it",
	Long: `Open the council site in a browser window, wait for you to sign in,
page through the unit roster, visit each scout's profile and stage every
member against the local database.

Nothing is written to scouts or profiles until you run commit.

With --dashboard, progress is streamed to WebSocket clients:
  rostersync sync --dashboard 127.0.0.1:8089
  ws://127.0.0.1:8089/ws`,
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
		voc, err := cfg.LoadVocabulary()
		if err != nil {
			return err
		}

		runner := cfg.Runner()
		if !runner.Available() {
			return fmt.Errorf("%w: %s (install it or set browser.binary)", browser.ErrBinaryNotFound, runner.Binary)
		}
		client := browser.New(runner, cfg.BrowserConfig(voc), logger)

		var handler *dashboard.Handler
		if cfg.Dashboard.Addr != "" {
			srv := dashboard.NewServer(dashboard.Config{Addr: cfg.Dashboard.Addr, Logger: logger})
			if err := srv.Start(); err != nil {
				return fmt.Errorf("failed to start dashboard: %w", err)
			}
			defer func() { _ = srv.Stop() }()
			handler = dashboard.NewHandler(srv, logger)
			fmt.Printf("Dashboard: ws://%s/ws\n", srv.Addr())
		}

		ocfg := cfg.OrchestratorConfig()
		if headless, _ := cmd.Flags().GetBool("headless"); headless {
			ocfg.Headed = false
		}
		progress := func(p orchestrator.Progress) {
			fmt.Printf("%s %-8s %s\n", mutedStyle.Render(fmt.Sprintf("[%3d%%]", p.PercentComplete)), p.Phase, p.Message)
			if handler != nil {
				handler.OnProgress(p)
			}
		}

		orch := orchestrator.New(client, parser.New(voc), ocfg, logger,
			orchestrator.WithSessionStore(s.Repository),
			orchestrator.WithProgress(progress),
		)
		res, runErr := orch.Run(ctx, unitID)
		if handler != nil {
			handler.OnSyncResult(res)
		}
		if res != nil && res.Session != nil {
			printSession(os.Stdout, res.Session)
		}
		if runErr != nil {
			if ctx.Err() != nil {
				return errors.New("sync cancelled")
			}
			return fmt.Errorf("sync failed: %w", runErr)
		}
		fmt.Printf("%s %d members, %d profiles\n", passStyle.Render("✓"), len(res.Members), len(res.Profiles))

		if noStage, _ := cmd.Flags().GetBool("no-stage"); noStage {
			return nil
		}
		engine := staging.New(s.Repository, cfg.StagingOptions(), logger)
		sum, err := engine.Stage(ctx, res.Session.ID, unitID, res.Members)
		if err != nil {
			return fmt.Errorf("staging failed: %w", err)
		}
		if handler != nil {
			handler.OnStaged(res.Session.ID, sum)
		}
		printSummary(os.Stdout, res.Session.ID, sum)
		logger.Info("sync staged", zap.String("session_id", res.Session.ID), zap.Int("staged", sum.Total))
		fmt.Printf("\nReview with: rostersync staged review %s\n", res.Session.ID)
		return nil
	},
}

func init() {
	f := syncCmd.Flags()
	f.Bool("roster-only", false, "skip visiting scout profiles")
	f.Bool("headless", false, "hide the browser window (login must already be cached)")
	f.Bool("no-stage", false, "extract only, do not stage")
	f.String("screenshot-dir", "", "save a screenshot of the page a failed run stopped on")
	f.String("dashboard", "", "serve progress over WebSocket on this address")
	mustBind(f, map[string]string{
		"roster-only":    "sync.roster_only",
		"screenshot-dir": "sync.screenshot_dir",
		"dashboard":      "dashboard.addr",
	})
	rootCmd.AddCommand(syncCmd)
}
