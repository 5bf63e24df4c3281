package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/gomigrate/internal/database"
	"github.com/dbsmedya/gomigrate/internal/migrator"
)

var (
	dryrunJob    string
	dryrunReport string
)

var dryrunCmd = &cobra.Command{
	Use:   "dry-run",
	Short: "Show what a migration would do without writing",
	Long: `Dry-run reads and maps the source, inspects the target and resolves
conflicts, then prints the plan: rows to insert, update and skip, whether the
target table would be created, and the number of chunks.

No changes are made to the target database.

Example:
  gomigrate dry-run --config migrate.yaml --job users`,
	RunE: runDryrun,
}

func init() {
	dryrunCmd.Flags().StringVarP(&dryrunJob, "job", "j", "",
		"Job name from configuration file (required)")
	dryrunCmd.MarkFlagRequired("job")

	dryrunCmd.Flags().StringVar(&dryrunReport, "report", "",
		"Write the plan report to this file (.yaml, .yml or .json)")

	rootCmd.AddCommand(dryrunCmd)
}

func runDryrun(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	opts, err := jobOptions(cfg, dryrunJob)
	if err != nil {
		return err
	}
	opts.DryRun = true

	log.Infow("Starting dry run", "job", dryrunJob, "config", GetConfigFile())

	ctx, cancel := database.SetupSignalHandler(context.Background())
	defer cancel()

	dbManager := database.NewManager(cfg)
	if err := dbManager.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to databases: %w", err)
	}
	defer dbManager.Close()

	m, err := migrator.NewMigrator(dbManager.Source, dbManager.Target, opts, log)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	rep, runErr := m.Run(ctx)
	return finishRun(cmd, log, rep, runErr, dryrunReport)
}
