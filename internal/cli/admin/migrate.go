package admin

import (
	"fmt"

	"github.com/cloo-solutions/ragdesk/internal/database"
	"github.com/spf13/cobra"
)

// MigrateCmd returns the migrate command
func MigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, flush, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			defer flush()

			steps, _ := cmd.Flags().GetInt("down")
			if steps > 0 {
				if err := database.RollbackMigrations(cfg.DatabaseURL, steps); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rolled back %d migration(s)\n", steps)
				return nil
			}

			if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Database is up to date")
			return nil
		},
	}

	cmd.Flags().Int("down", 0, "Roll back this many migrations instead of applying")

	return cmd
}
