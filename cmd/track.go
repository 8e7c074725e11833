package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sellermetrics/position-tracker/internal/app"
)

// newTrackCmd creates the 'track' subcommand which runs a single tracking
// tick and exits. Useful for cron-style deployments and manual backfills.
func newTrackCmd() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "track",
		Short: "Runs one tracking tick and exits",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			a, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("initialize services: %w", err)
			}
			defer a.Close()

			if userID != "" {
				if err := a.Scheduler.RunUser(cmd.Context(), userID); err != nil {
					return fmt.Errorf("track user %s: %w", userID, err)
				}
				return nil
			}
			if err := a.Scheduler.RunAll(cmd.Context()); err != nil {
				return fmt.Errorf("tracking tick: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "track a single user instead of all active users")
	return cmd
}
