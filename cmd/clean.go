package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mediarelay/mediarelay/internal/cleaner"
)

// newCleanCmd creates the 'clean' subcommand, a one-shot sweep that
// removes artifacts whose metadata keys have expired.
func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Reconciles the artifact directory against the metadata store",
		Long: `Walks the target directory and removes every video and slideshow
image whose dedup key is no longer present in the metadata store. Keys
expire on their own; this sweep reclaims the disk space they guarded.`,

		RunE: runCleanCommand,
	}
}

func runCleanCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := appInstance.Config()
	logger := appInstance.Logger()

	c := cleaner.New(appInstance.Store(), cfg.Relay.TargetDir, logger)
	report, err := c.Sweep(cmd.Context())
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}

	logger.Info("clean command finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("removed", report.Removed))
	return nil
}
