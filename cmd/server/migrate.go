package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"relay-backend/internal/config"
	"relay-backend/internal/database"
)

func newMigrateCmd() *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or roll back Postgres schema migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			setupLogger(cfg)
			if cfg.DatabaseURL == "" {
				return errors.New("migrate requires HISTORY_BACKEND=postgres and DATABASE_URL")
			}

			switch args[0] {
			case "up":
				return errors.Wrap(database.MigrateUp(cfg.DatabaseURL), "migrate up")
			default:
				if steps < 1 {
					return errors.Errorf("--steps must be positive, got %d", steps)
				}
				return errors.Wrap(database.MigrateDown(cfg.DatabaseURL, steps), "migrate down")
			}
		},
	}

	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	return cmd
}
