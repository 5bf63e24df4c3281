package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/gomigrate/internal/config"
	"github.com/dbsmedya/gomigrate/internal/database"
	"github.com/dbsmedya/gomigrate/internal/logger"
	"github.com/dbsmedya/gomigrate/internal/migrator"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and run preflight checks",
	Long: `Validate checks the configuration file and runs preflight checks
for every job against the source and target.

Checks performed:
  - Configuration syntax and required fields
  - Database connectivity (source and target)
  - Source exists and has a readable header or schema
  - Mapping keys exist in the source and identifiers are valid
  - Primary key survives the mapping
  - Target table exists or may be created

Example:
  gomigrate validate --config migrate.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cmd.Printf("\n=== Configuration Validation ===\n")
	cmd.Printf("Config file: %s\n", configFile)
	cmd.Printf("Jobs found: %d\n\n", len(cfg.Jobs))

	if err := cfg.Validate(); err != nil {
		cmd.Printf("❌ Configuration invalid:\n%v\n", err)
		return fmt.Errorf("validation failed: %w", err)
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	ctx := context.Background()

	dbManager := database.NewManager(cfg)
	if err := dbManager.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to databases: %w", err)
	}
	defer dbManager.Close()

	if err := dbManager.Ping(ctx); err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}

	hasErrors := false
	for _, jobName := range cfg.ListJobs() {
		if !validateJob(ctx, cmd, cfg, dbManager, jobName, log) {
			hasErrors = true
		}
	}

	if hasErrors {
		return fmt.Errorf("validation failed for one or more jobs")
	}

	cmd.Println("=== Validation Complete ===")
	cmd.Println("✅ All jobs validated successfully")
	return nil
}

// validateJob prints the preflight outcome of one job and reports whether it passed.
func validateJob(ctx context.Context, cmd *cobra.Command, cfg *config.Config, dbManager *database.Manager, jobName string, log *logger.Logger) bool {
	cmd.Printf("--- Job: %s ---\n", jobName)

	opts, err := jobOptions(cfg, jobName)
	if err != nil {
		cmd.Printf("❌ %v\n\n", err)
		return false
	}
	cmd.Printf("Source: %s\n", opts.Source.Describe())
	cmd.Printf("Target table: %s\n", opts.TargetTable)

	m, err := migrator.NewMigrator(dbManager.Source, dbManager.Target, opts, log)
	if err != nil {
		cmd.Printf("❌ Failed to create migrator: %v\n\n", err)
		return false
	}

	result, err := m.Preflight(ctx)
	if err != nil {
		cmd.Printf("❌ Preflight checks failed: %v\n\n", err)
		return false
	}

	cmd.Printf("Mapped columns: %d of %d\n", len(result.TargetColumns), len(result.SourceColumns))
	for _, w := range result.Warnings {
		cmd.Printf("⚠️  %s\n", w)
	}
	cmd.Printf("✅ All checks passed\n\n")
	return true
}
