package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/troopkit/rostersync/internal/browser"
	"github.com/troopkit/rostersync/internal/store"
)

// Check is one doctor finding.
type Check struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail"`
}

// DoctorSummary is the doctor report.
type DoctorSummary struct {
	Healthy    bool    `json:"healthy"`
	ConfigFile string  `json:"config_file,omitempty"`
	Checks     []Check `json:"checks"`
}

var doctorCmd = &cobra.Command{
	Use:     "doctor",
	GroupID: "admin",
	Short:   "Check the browser CLI, database and vocabulary",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		summary := DoctorSummary{ConfigFile: cfg.File, Checks: []Check{
			checkBrowser(ctx),
			checkDatabase(ctx),
			checkVocabulary(),
		}}
		summary.Healthy = true
		for _, c := range summary.Checks {
			summary.Healthy = summary.Healthy && c.OK
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		}

		if summary.ConfigFile != "" {
			fmt.Printf("config: %s\n", summary.ConfigFile)
		} else {
			fmt.Println("config: built-in defaults")
		}
		for _, c := range summary.Checks {
			mark := passStyle.Render("✓")
			if !c.OK {
				mark = failStyle.Render("✗")
			}
			fmt.Printf("%s %-10s %s\n", mark, c.Name, c.Detail)
		}
		if !summary.Healthy {
			return fmt.Errorf("doctor found problems")
		}
		return nil
	},
}

func checkBrowser(ctx context.Context) Check {
	c := Check{Name: "browser"}
	runner := cfg.Runner()
	if !runner.Available() {
		c.Detail = fmt.Sprintf("%s not found in PATH", runner.Binary)
		return c
	}
	version, err := browser.Version(ctx, runner)
	if err != nil {
		c.Detail = fmt.Sprintf("%s: %v", runner.Binary, err)
		return c
	}
	if !browser.Supported(version) {
		c.Detail = fmt.Sprintf("%s %s is older than %s", runner.Binary, version, browser.MinVersion)
		return c
	}
	c.OK = true
	c.Detail = fmt.Sprintf("%s %s", runner.Binary, version)
	return c
}

func checkDatabase(ctx context.Context) Check {
	c := Check{Name: "database"}
	s, err := store.Open(ctx, cfg.StoreConfig())
	if err != nil {
		c.Detail = err.Error()
		return c
	}
	defer func() { _ = s.Close() }()

	units, err := s.ListUnits(ctx)
	if err != nil {
		c.Detail = fmt.Sprintf("schema missing, run init-db (%v)", err)
		return c
	}
	c.OK = true
	c.Detail = fmt.Sprintf("%s %s, %d units", cfg.Database.Driver, cfg.Database.DSN, len(units))
	if cfg.Unit.ID != "" {
		if _, err := s.GetUnit(ctx, cfg.Unit.ID); err != nil {
			c.OK = false
			c.Detail = fmt.Sprintf("configured unit %s: %v", cfg.Unit.ID, err)
		}
	}
	return c
}

func checkVocabulary() Check {
	c := Check{Name: "vocabulary"}
	voc, err := cfg.LoadVocabulary()
	if err != nil {
		c.Detail = err.Error()
		return c
	}
	c.OK = true
	source := "built-in"
	if cfg.Vocab.File != "" {
		source = cfg.Vocab.File
	}
	c.Detail = fmt.Sprintf("%s, %d ranks, %d positions", source, len(voc.Ranks), len(voc.Positions))
	return c
}

func init() {
	doctorCmd.Flags().Bool("json", false, "print the report as JSON")
	rootCmd.AddCommand(doctorCmd)
}
