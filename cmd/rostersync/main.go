// Command rostersync pulls a unit roster from the council site, stages it
// against the local database for review and commits the selected changes.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/troopkit/rostersync/internal/config"
	"github.com/troopkit/rostersync/internal/logging"
	"github.com/troopkit/rostersync/internal/store"
	"github.com/troopkit/rostersync/internal/types"
)

var (
	cfgFile string
	noColor bool

	v      = config.New()
	cfg    *config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "rostersync",
	Short: "Sync a unit roster into the local troop database",
	Long: `rostersync drives a browser session through the council roster site,
stages every member against the local database and lets you review and
commit the changes.

Typical flow:
  rostersync init-db --unit-name "Troop 3"
  rostersync sync
  rostersync staged review latest
  rostersync commit latest`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(v, cfgFile)
		if err != nil {
			return err
		}
		cfg = c
		logger = logging.New(cfg.LoggingConfig()).With(zap.String("command", cmd.CommandPath()))
		applyColor(noColor)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "sync", Title: "Sync:"},
		&cobra.Group{ID: "review", Title: "Review:"},
		&cobra.Group{ID: "admin", Title: "Administration:"},
	)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ./rostersync.yaml)")
	pf.BoolVar(&noColor, "no-color", false, "disable colored output")
	pf.String("unit", "", "unit ID (default: the only unit in the database)")
	pf.String("driver", "", "database driver: sqlite or postgres")
	pf.String("db", "", "database path or connection string")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-format", "", "log format: json or console")

	mustBind(pf, map[string]string{
		"unit":       "unit.id",
		"driver":     "database.driver",
		"db":         "database.dsn",
		"log-level":  "log.level",
		"log-format": "log.format",
	})
}

// mustBind ties flags to config keys. A failure is a programming error.
func mustBind(flags *pflag.FlagSet, keys map[string]string) {
	if err := config.BindFlags(v, flags, keys); err != nil {
		panic(err)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", failStyle.Render("Error:"), err)
		os.Exit(1)
	}
}

// signalContext is cancelled on interrupt or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

// openStore opens the configured database and makes sure the schema exists.
//
// The caller MUST close the store.
func openStore(ctx context.Context) (*store.Store, error) {
	s, err := store.Open(ctx, cfg.StoreConfig())
	if err != nil {
		return nil, err
	}
	if err := s.InitSchema(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// resolveUnit returns the configured unit, or the only unit when none is
// configured.
func resolveUnit(ctx context.Context, s *store.Store) (string, error) {
	if cfg.Unit.ID != "" {
		if _, err := s.GetUnit(ctx, cfg.Unit.ID); err != nil {
			return "", err
		}
		return cfg.Unit.ID, nil
	}
	units, err := s.ListUnits(ctx)
	if err != nil {
		return "", err
	}
	switch len(units) {
	case 0:
		return "", errors.New("no units yet; run init-db --unit-name first")
	case 1:
		return units[0].ID, nil
	}
	return "", fmt.Errorf("%d units in the database; pass --unit", len(units))
}

// resolveSession accepts a session ID or "latest" for the newest session
// of the unit.
func resolveSession(ctx context.Context, s *store.Store, unitID, arg string) (*types.SyncSession, error) {
	if arg != "" && arg != "latest" {
		return s.GetSession(ctx, unitID, arg)
	}
	sessions, err := s.ListSessions(ctx, unitID, time.Time{})
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		if sessions[i].Status == types.SessionCompleted {
			return &sessions[i], nil
		}
	}
	return nil, fmt.Errorf("no completed session for unit %s: %w", unitID, store.ErrNotFound)
}

func sessionArg(args []string) string {
	if len(args) == 0 {
		return "latest"
	}
	return args[0]
}
