package config

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from the specified file path.
// It supports YAML files and performs environment variable substitution.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return LoadFromViper(v)
}

// LoadFromViper creates a Config from an existing Viper instance.
// Useful for testing or when Viper is configured externally.
func LoadFromViper(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	substituteEnvVars(cfg)
	applyEngineDefaults(&cfg.Source)
	applyEngineDefaults(&cfg.Target)

	return cfg, nil
}

// envVarPattern matches ${VAR_NAME} or $VAR_NAME patterns
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// substituteEnvVars replaces ${VAR_NAME} patterns with environment variable values.
func substituteEnvVars(cfg *Config) {
	for _, db := range []*DatabaseConfig{&cfg.Source, &cfg.Target} {
		db.Host = expandEnvVar(db.Host)
		db.User = expandEnvVar(db.User)
		db.Password = expandEnvVar(db.Password)
		db.Database = expandEnvVar(db.Database)
		db.Path = expandEnvVar(db.Path)
	}

	for name, job := range cfg.Jobs {
		job.Source.Path = expandEnvVar(job.Source.Path)
		cfg.Jobs[name] = job
	}

	cfg.Logging.Output = expandEnvVar(cfg.Logging.Output)
}

// expandEnvVar expands environment variables in the format ${VAR} or $VAR.
// Unknown variables are left as written.
func expandEnvVar(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

// applyEngineDefaults fills in the conventional port of a server engine.
func applyEngineDefaults(db *DatabaseConfig) {
	db.Engine = strings.ToLower(strings.TrimSpace(db.Engine))
	if db.Port == 0 {
		db.Port = DefaultPort(db.Engine)
	}
}

// GetJob retrieves a specific job configuration by name.
func (c *Config) GetJob(name string) (*JobConfig, error) {
	job, exists := c.Jobs[name]
	if !exists {
		return nil, fmt.Errorf("job %q not found in configuration", name)
	}
	return &job, nil
}

// ListJobs returns all job names defined in the configuration, sorted.
func (c *Config) ListJobs() []string {
	jobs := make([]string, 0, len(c.Jobs))
	for name := range c.Jobs {
		jobs = append(jobs, name)
	}
	sort.Strings(jobs)
	return jobs
}

// ApplyOverrides applies CLI flag overrides to the global configuration.
// Only non-zero/non-empty values are applied.
func (c *Config) ApplyOverrides(logLevel, logFormat string, batchSize, workers int, sleepSeconds float64, skipVerify bool, onConflict string) {
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFormat != "" {
		c.Logging.Format = logFormat
	}
	if batchSize > 0 {
		c.Processing.BatchSize = batchSize
	}
	if workers > 0 {
		c.Processing.Workers = workers
	}
	if sleepSeconds > 0 {
		c.Processing.SleepSeconds = sleepSeconds
	}
	if skipVerify {
		c.Verification.SkipVerification = true
	}
	if onConflict != "" {
		c.Policy.OnConflict = onConflict
	}
}

// ApplyJobOverrides combines global, job-specific and CLI processing values.
// CLI values win.
func (c *Config) ApplyJobOverrides(jobName string, batchSize, workers int, sleepSeconds float64) ProcessingConfig {
	processing := c.GetJobProcessing(jobName)

	if batchSize > 0 {
		processing.BatchSize = batchSize
	}
	if workers > 0 {
		processing.Workers = ClampWorkers(workers)
	}
	if sleepSeconds > 0 {
		processing.SleepSeconds = sleepSeconds
	}

	return processing
}
