package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/troopkit/rostersync/internal/types"
)

var initDBCmd = &cobra.Command{
	Use:     "init-db",
	GroupID: "admin",
	Short:   "Create the database schema and, optionally, a unit",
	Long: `Create every table and index. Safe to run again.

With --unit-name a unit is created and its ID printed; pass that ID as
--unit (or unit.id in the config file) when more than one unit exists.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		fmt.Printf("%s schema ready (%s)\n", passStyle.Render("✓"), cfg.Database.Driver)

		name, _ := cmd.Flags().GetString("unit-name")
		if name != "" {
			unitType, _ := cmd.Flags().GetString("unit-type")
			number, _ := cmd.Flags().GetString("unit-number")
			u := &types.Unit{Name: name, UnitType: unitType, Number: number}
			if err := s.CreateUnit(ctx, u); err != nil {
				return err
			}
			fmt.Printf("%s created unit %q: %s\n", passStyle.Render("✓"), u.Name, accentStyle.Render(u.ID))
		}

		units, err := s.ListUnits(ctx)
		if err != nil {
			return err
		}
		for _, u := range units {
			fmt.Printf("  %s  %s\n", u.ID, u.Name)
		}
		return nil
	},
}

func init() {
	initDBCmd.Flags().String("unit-name", "", "create a unit with this name")
	initDBCmd.Flags().String("unit-type", "Troop", "type of the created unit")
	initDBCmd.Flags().String("unit-number", "", "number of the created unit")
	rootCmd.AddCommand(initDBCmd)
}
