package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetConfigFile(t *testing.T) {
	originalCfgFile := cfgFile
	defer func() {
		cfgFile = originalCfgFile
	}()

	tests := []struct {
		name     string
		cfgValue string
	}{
		{name: "empty", cfgValue: ""},
		{name: "custom config file", cfgValue: "/path/to/custom.yaml"},
		{name: "config file with spaces", cfgValue: "/path/to/my config.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfgFile = tt.cfgValue
			assert.Equal(t, tt.cfgValue, GetConfigFile())
		})
	}
}

func TestGetCLIOverrides(t *testing.T) {
	defer func(ll, lf string, bs, w int, ss float64, sv bool, oc string) {
		logLevel, logFormat, batchSize, workers, sleepSeconds, skipVerify, onConflict = ll, lf, bs, w, ss, sv, oc
	}(logLevel, logFormat, batchSize, workers, sleepSeconds, skipVerify, onConflict)

	logLevel = "debug"
	logFormat = "text"
	batchSize = 250
	workers = 3
	sleepSeconds = 0.5
	skipVerify = true
	onConflict = "skip"

	assert.Equal(t, CLIOverrides{
		LogLevel:     "debug",
		LogFormat:    "text",
		BatchSize:    250,
		Workers:      3,
		SleepSeconds: 0.5,
		SkipVerify:   true,
		OnConflict:   "skip",
	}, GetCLIOverrides())
}

func TestRootCommandStructure(t *testing.T) {
	assert.Equal(t, "gomigrate", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.Equal(t, Version, rootCmd.Version)
}

func TestRootCommandPersistentFlags(t *testing.T) {
	flags := rootCmd.PersistentFlags()

	configFlag := flags.Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)
	assert.Equal(t, "migrate.yaml", configFlag.DefValue)

	for _, name := range []string{"log-level", "log-format", "batch-size", "workers", "sleep", "skip-verify", "on-conflict"} {
		assert.NotNil(t, flags.Lookup(name), "missing persistent flag %s", name)
	}
}

func TestRootCommandSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"migrate", "dry-run", "validate", "list-jobs", "tables", "show", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestLoadConfig_AppliesOverrides(t *testing.T) {
	newFixture(t, "")
	defer func(bs int, oc string) { batchSize, onConflict = bs, oc }(batchSize, onConflict)
	batchSize = 7
	onConflict = "abort"

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Processing.BatchSize)
	assert.Equal(t, "abort", cfg.Policy.OnConflict)
}

func TestSetup_RejectsInvalidConfig(t *testing.T) {
	newFixture(t, "")
	defer func(oc string) { onConflict = oc }(onConflict)
	onConflict = "merge"

	_, _, err := setup()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}
