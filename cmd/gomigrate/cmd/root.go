package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/gomigrate/internal/config"
	"github.com/dbsmedya/gomigrate/internal/logger"
)

// Version information (set via ldflags at build time)
var (
	Version = "0.0.1-dev"
	Commit  = "unknown"
)

// CLI flags that override config file values
var (
	cfgFile      string
	logLevel     string
	logFormat    string
	batchSize    int
	workers      int
	sleepSeconds float64
	skipVerify   bool
	onConflict   string
)

var rootCmd = &cobra.Command{
	Use:   "gomigrate",
	Short: "Tabular data migrator with conflict resolution",
	Long: `A CLI tool that moves tabular data from a CSV file, an XLSX sheet or a
database view/table into a target database table.

Features:
  - Ordered column mapping with identity mapping by default
  - Primary-key conflict detection (overwrite, skip or abort)
  - Chunked, transactional loading with a bounded worker pool
  - Post-load verification (count, SHA256 or XXH3)
  - Table browsing (tables, show) to check what a run wrote
  - MySQL, PostgreSQL, SQLite and SQL Server targets`,
	Version: Version,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "migrate.yaml",
		"Path to configuration file")

	// Logging overrides
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Override log format (json, text)")

	// Processing overrides
	rootCmd.PersistentFlags().IntVar(&batchSize, "batch-size", 0,
		"Override batch size (rows per chunk)")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0,
		"Override number of chunk writers (1-8)")
	rootCmd.PersistentFlags().Float64Var(&sleepSeconds, "sleep", 0,
		"Override sleep seconds between chunks")

	// Policy overrides
	rootCmd.PersistentFlags().BoolVar(&skipVerify, "skip-verify", false,
		"Skip verification after load")
	rootCmd.PersistentFlags().StringVar(&onConflict, "on-conflict", "",
		"Override conflict policy (overwrite, skip, abort)")
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// CLIOverrides contains flag values that override config file settings
type CLIOverrides struct {
	LogLevel     string
	LogFormat    string
	BatchSize    int
	Workers      int
	SleepSeconds float64
	SkipVerify   bool
	OnConflict   string
}

// GetCLIOverrides returns the CLI flag override values
func GetCLIOverrides() CLIOverrides {
	return CLIOverrides{
		LogLevel:     logLevel,
		LogFormat:    logFormat,
		BatchSize:    batchSize,
		Workers:      workers,
		SleepSeconds: sleepSeconds,
		SkipVerify:   skipVerify,
		OnConflict:   onConflict,
	}
}

// loadConfig reads the config file and applies CLI overrides to it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	o := GetCLIOverrides()
	cfg.ApplyOverrides(o.LogLevel, o.LogFormat, o.BatchSize, o.Workers,
		o.SleepSeconds, o.SkipVerify, o.OnConflict)
	return cfg, nil
}

// setup loads the config, checks it and builds the logger.
func setup() (*config.Config, *logger.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, log, nil
}
