package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperjump/docqa/internal/lifecycle"
	"github.com/hyperjump/docqa/internal/storage"
)

var expireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Delete guest documents older than the session TTL from the store",
	Long: `expire runs one sweep directly against the document store. Use it while the
server is stopped; a running server sweeps on its own schedule.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storage.Open(cfg.Storage.Driver, cfg.Storage.Path())
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}
		defer store.Close()

		// No index is loaded offline, so the store is the only state to sweep.
		m := lifecycle.NewManager(nil, store, cfg.Lifecycle.SessionTTL, cfg.Lifecycle.SweepInterval, nil, logger)
		ids, err := m.Sweep(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Expired %d guest documents\n", len(ids))
		return nil
	},
}
