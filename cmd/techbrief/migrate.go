package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/techbrief/config"
	srv "github.com/mohammad-safakhou/techbrief/internal/server"
)

func migrateCMD() *cobra.Command {
	var direction string
	var steps int

	var migrate = &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded Postgres migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if direction != "up" && direction != "down" {
				return fmt.Errorf("unknown direction: %s", direction)
			}
			if steps < 0 {
				return fmt.Errorf("steps cannot be negative")
			}
			cfg := config.LoadConfig(configPath(cmd))
			if err := srv.Migrate(cfg.Storage.Postgres, direction, steps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrations applied (%s)\n", direction)
			return nil
		},
	}
	migrate.Flags().StringVar(&direction, "direction", "up", "up or down")
	migrate.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")

	return migrate
}
