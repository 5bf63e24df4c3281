package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/gomigrate/internal/config"
	"github.com/dbsmedya/gomigrate/internal/database"
	"github.com/dbsmedya/gomigrate/internal/lock"
	"github.com/dbsmedya/gomigrate/internal/logger"
	"github.com/dbsmedya/gomigrate/internal/migrator"
	"github.com/dbsmedya/gomigrate/internal/report"
)

var (
	migrateJob    string
	migrateForce  bool
	migrateReport string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate a job's source into its target table",
	Long: `Migrate reads the job's source, maps its columns, and loads the rows
into the target table.

The migration follows these steps:
  1. Read and map source rows (duplicates keep the last occurrence)
  2. Create the target table if missing and allowed
  3. Detect primary-key conflicts and apply the conflict policy
  4. Load inserts and updates in transactional chunks
  5. Verify the committed rows (count, sha256 or xxh3)

Example:
  gomigrate migrate --config migrate.yaml --job users --report users.yaml`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().StringVarP(&migrateJob, "job", "j", "",
		"Job name from configuration file (required)")
	migrateCmd.MarkFlagRequired("job")

	migrateCmd.Flags().BoolVar(&migrateForce, "force", false,
		"Skip the target table lock (use with caution)")
	migrateCmd.Flags().StringVar(&migrateReport, "report", "",
		"Write the run report to this file (.yaml, .yml or .json)")

	rootCmd.AddCommand(migrateCmd)
}

// jobOptions resolves the effective options of a job. CLI flags win over
// job-level settings.
func jobOptions(cfg *config.Config, jobName string) (migrator.Options, error) {
	opts, err := migrator.OptionsFromConfig(cfg, jobName)
	if err != nil {
		return migrator.Options{}, err
	}

	o := GetCLIOverrides()
	opts.Processing = cfg.ApplyJobOverrides(jobName, o.BatchSize, o.Workers, o.SleepSeconds)
	if o.OnConflict != "" {
		opts.Policy.OnConflict = o.OnConflict
	}
	if o.SkipVerify {
		opts.Verification.SkipVerification = true
	}
	return opts, nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	opts, err := jobOptions(cfg, migrateJob)
	if err != nil {
		return err
	}

	log.Infow("Starting migration",
		"job", migrateJob,
		"config", GetConfigFile(),
		"source", opts.Source.Describe(),
		"target", cfg.Target.Redacted(),
	)

	ctx, cancel := database.SetupSignalHandlerWithCallback(context.Background(), func(sig os.Signal) {
		log.Warnw("Received shutdown signal - finishing in-flight chunks...", "signal", sig.String())
	})
	defer cancel()

	dbManager := database.NewManager(cfg)
	if err := dbManager.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to databases: %w", err)
	}
	defer dbManager.Close()

	if err := dbManager.Ping(ctx); err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}

	m, err := migrator.NewMigrator(dbManager.Source, dbManager.Target, opts, log)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	var (
		rep    *migrator.Report
		runErr error
	)
	run := func() error {
		rep, runErr = m.Run(ctx)
		return nil
	}

	if migrateForce || !cfg.Safety.LockTarget {
		log.Warnw("Skipping target lock", "job", migrateJob, "force", migrateForce)
		run()
	} else {
		targetLock := lock.NewTargetLock(dbManager.Target, opts.TargetTable)
		if err := targetLock.WithLock(ctx, cfg.Safety.LockTimeout, run); err != nil {
			if errors.Is(err, lock.ErrLockTimeout) {
				return fmt.Errorf("target table '%s' is being migrated by another run (use --force to override)", opts.TargetTable)
			}
			return err
		}
	}

	return finishRun(cmd, log, rep, runErr, migrateReport)
}

// finishRun prints and saves the report, then maps the run outcome to the
// command's error.
func finishRun(cmd *cobra.Command, log *logger.Logger, rep *migrator.Report, runErr error, reportPath string) error {
	if rep != nil {
		if err := (report.Renderer{Color: true}).Render(cmd.OutOrStdout(), rep); err != nil {
			log.Warnw("Failed to print report", "error", err)
		}
		if reportPath != "" {
			if err := report.WriteFile(reportPath, rep); err != nil {
				return err
			}
			log.Infow("Report written", "path", reportPath)
		}
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			log.Warn("Migration cancelled by user")
			return nil
		}
		return fmt.Errorf("migration failed: %w", runErr)
	}

	if rep != nil && !rep.DryRun && !rep.Succeeded() {
		return fmt.Errorf("migration completed with errors")
	}
	return nil
}
