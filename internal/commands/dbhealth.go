package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	repo "github.com/joseph-ayodele/invoice-ledger/internal/repository"
)

func newDBHealthCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dbhealth",
		Short: "Open the configured ledger store and ping it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := root.config()
			if err != nil {
				return err
			}
			logger := root.logger(cmd.ErrOrStderr())

			store, err := repo.Open(ctx, cfg.Database, logger)
			if err != nil {
				return fmt.Errorf("DB health: FAIL (%w)", err)
			}
			defer repo.Close(store, logger)

			if err := repo.HealthCheck(ctx, store, cfg.Database.DialTimeout, logger); err != nil {
				return fmt.Errorf("DB health: FAIL (%w)", err)
			}
			entries, err := store.List(ctx)
			if err != nil {
				return fmt.Errorf("listing ledger: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "DB health: OK (driver=%s, entries=%d)\n", cfg.Database.Driver, len(entries))
			return nil
		},
	}
}
