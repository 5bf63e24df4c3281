// Package config provides configuration structures and loading for gomigrate.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Config represents the complete application configuration.
type Config struct {
	Source       DatabaseConfig       `yaml:"source" mapstructure:"source"`
	Target       DatabaseConfig       `yaml:"target" mapstructure:"target"`
	Jobs         map[string]JobConfig `yaml:"jobs" mapstructure:"jobs"`
	Processing   ProcessingConfig     `yaml:"processing" mapstructure:"processing"`
	Policy       PolicyConfig         `yaml:"policy" mapstructure:"policy"`
	Safety       SafetyConfig         `yaml:"safety" mapstructure:"safety"`
	Verification VerificationConfig   `yaml:"verification" mapstructure:"verification"`
	Logging      LoggingConfig        `yaml:"logging" mapstructure:"logging"`
}

// DatabaseConfig is a connection profile. Server engines use host, port and
// credentials; sqlite uses path.
type DatabaseConfig struct {
	Engine             string `yaml:"engine" mapstructure:"engine"` // mysql, postgres, sqlite, sqlserver
	Host               string `yaml:"host" mapstructure:"host"`
	Port               int    `yaml:"port" mapstructure:"port"`
	User               string `yaml:"user" mapstructure:"user"`
	Password           string `yaml:"password" mapstructure:"password"`
	Database           string `yaml:"database" mapstructure:"database"`
	Schema             string `yaml:"schema" mapstructure:"schema"`
	Path               string `yaml:"path" mapstructure:"path"`
	TLS                string `yaml:"tls" mapstructure:"tls"` // disable, preferred, required
	MaxConnections     int    `yaml:"max_connections" mapstructure:"max_connections"`
	MaxIdleConnections int    `yaml:"max_idle_connections" mapstructure:"max_idle_connections"`
}

// IsConfigured reports whether the profile names an engine at all.
func (d DatabaseConfig) IsConfigured() bool {
	return d.Engine != ""
}

// Redacted returns a description of the profile that is safe to log.
func (d DatabaseConfig) Redacted() string {
	if d.Path != "" && (d.Engine == "sqlite" || d.Engine == "sqlite3") {
		return fmt.Sprintf("%s:%s", d.Engine, d.Path)
	}
	return fmt.Sprintf("%s://%s@%s:%d/%s", d.Engine, d.User, d.Host, d.Port, d.Database)
}

// Source kinds accepted in a job.
const (
	SourceTable = "table"
	SourceView  = "view"
	SourceCSV   = "csv"
	SourceXLSX  = "xlsx"
	SourceFile  = "file" // csv or xlsx, detected from the extension
)

// SourceConfig identifies the row-set a job reads.
type SourceConfig struct {
	Kind      string `yaml:"kind" mapstructure:"kind"`
	Name      string `yaml:"name" mapstructure:"name"` // view or table name
	Path      string `yaml:"path" mapstructure:"path"` // file path
	Sheet     string `yaml:"sheet" mapstructure:"sheet"`
	Delimiter string `yaml:"delimiter" mapstructure:"delimiter"`
}

// IsDatabase reports whether the source lives in the source database.
func (s SourceConfig) IsDatabase() bool {
	return s.Kind == SourceTable || s.Kind == SourceView || (s.Kind == "" && s.Path == "")
}

// FileKind resolves the file format for file sources.
func (s SourceConfig) FileKind() string {
	if s.Kind == SourceCSV || s.Kind == SourceXLSX {
		return s.Kind
	}
	switch strings.ToLower(filepath.Ext(s.Path)) {
	case ".csv", ".txt", ".tsv":
		return SourceCSV
	case ".xlsx", ".xlsm":
		return SourceXLSX
	}
	return ""
}

// Describe returns a short label for logs and reports.
func (s SourceConfig) Describe() string {
	if s.IsDatabase() {
		return s.Name
	}
	return s.Path
}

// MappingEntry maps one source column onto one target column.
type MappingEntry struct {
	Source string `yaml:"source" mapstructure:"source"`
	Target string `yaml:"target" mapstructure:"target"`
}

// JobConfig represents a migration job configuration.
type JobConfig struct {
	Source       SourceConfig        `yaml:"source" mapstructure:"source"`
	TargetTable  string              `yaml:"target_table" mapstructure:"target_table"`
	PrimaryKey   string              `yaml:"primary_key" mapstructure:"primary_key"`
	Mapping      []MappingEntry      `yaml:"mapping" mapstructure:"mapping"`
	ColumnTypes  map[string]string   `yaml:"column_types" mapstructure:"column_types"`
	Processing   *ProcessingConfig   `yaml:"processing,omitempty" mapstructure:"processing"`
	Policy       *JobPolicyConfig    `yaml:"policy,omitempty" mapstructure:"policy"`
	Verification *VerificationConfig `yaml:"verification,omitempty" mapstructure:"verification"`
}

// ProcessingConfig represents batch processing settings.
type ProcessingConfig struct {
	BatchSize    int     `yaml:"batch_size" mapstructure:"batch_size"`
	Workers      int     `yaml:"workers" mapstructure:"workers"`
	SleepSeconds float64 `yaml:"sleep_seconds" mapstructure:"sleep_seconds"`
}

// Conflict policies.
const (
	OnConflictSkip      = "skip"
	OnConflictOverwrite = "overwrite"
	OnConflictAbort     = "abort"
)

// PolicyConfig controls how a run treats mapping gaps, missing targets,
// conflicting keys and failed chunks.
type PolicyConfig struct {
	OnConflict            string `yaml:"on_conflict" mapstructure:"on_conflict"`
	StrictMapping         bool   `yaml:"strict_mapping" mapstructure:"strict_mapping"`
	CreateTargetIfMissing bool   `yaml:"create_target_if_missing" mapstructure:"create_target_if_missing"`
	StopOnError           bool   `yaml:"stop_on_error" mapstructure:"stop_on_error"`
}

// JobPolicyConfig overrides the global policy for one job. Nil fields inherit.
type JobPolicyConfig struct {
	OnConflict            string `yaml:"on_conflict" mapstructure:"on_conflict"`
	StrictMapping         *bool  `yaml:"strict_mapping" mapstructure:"strict_mapping"`
	CreateTargetIfMissing *bool  `yaml:"create_target_if_missing" mapstructure:"create_target_if_missing"`
	StopOnError           *bool  `yaml:"stop_on_error" mapstructure:"stop_on_error"`
}

// SafetyConfig represents safety settings for migration runs.
type SafetyConfig struct {
	LockTarget  bool `yaml:"lock_target" mapstructure:"lock_target"`
	LockTimeout int  `yaml:"lock_timeout" mapstructure:"lock_timeout"` // seconds
}

// Verification methods.
const (
	VerifyCount  = "count"
	VerifySHA256 = "sha256"
	VerifyXXH3   = "xxh3"
	VerifySkip   = "skip"
)

// VerificationConfig represents post-load verification settings.
type VerificationConfig struct {
	Method           string `yaml:"method" mapstructure:"method"` // count, sha256, xxh3 or skip
	SkipVerification bool   `yaml:"skip_verification" mapstructure:"skip_verification"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// Worker pool bounds.
const (
	MinWorkers = 1
	MaxWorkers = 8
)

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Source: DatabaseConfig{
			TLS:                "preferred",
			MaxConnections:     10,
			MaxIdleConnections: 5,
		},
		Target: DatabaseConfig{
			TLS:                "preferred",
			MaxConnections:     10,
			MaxIdleConnections: 5,
		},
		Processing: ProcessingConfig{
			BatchSize:    500,
			Workers:      4,
			SleepSeconds: 0,
		},
		Policy: PolicyConfig{
			OnConflict:            OnConflictOverwrite,
			StrictMapping:         false,
			CreateTargetIfMissing: true,
			StopOnError:           false,
		},
		Safety: SafetyConfig{
			LockTarget:  true,
			LockTimeout: 10,
		},
		Verification: VerificationConfig{
			Method:           VerifyCount,
			SkipVerification: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// DefaultPort returns the conventional port for a server engine.
func DefaultPort(engine string) int {
	switch strings.ToLower(engine) {
	case "mysql", "mariadb":
		return 3306
	case "postgres", "postgresql", "pgx":
		return 5432
	case "sqlserver", "mssql":
		return 1433
	}
	return 0
}

// GetJobProcessing returns the processing config for a job by name, falling back to global if not set.
func (c *Config) GetJobProcessing(jobName string) ProcessingConfig {
	job, err := c.GetJob(jobName)
	if err != nil {
		return c.Processing
	}
	return job.GetJobProcessing(c.Processing)
}

// GetJobPolicy returns the effective policy for a job by name.
func (c *Config) GetJobPolicy(jobName string) PolicyConfig {
	job, err := c.GetJob(jobName)
	if err != nil {
		return c.Policy
	}
	return job.GetJobPolicy(c.Policy)
}

// GetJobVerification returns the verification config for a job by name, falling back to global if not set.
func (c *Config) GetJobVerification(jobName string) VerificationConfig {
	job, err := c.GetJob(jobName)
	if err != nil {
		return c.Verification
	}
	return job.GetJobVerification(c.Verification)
}

// GetJobProcessing merges job-specific processing settings over global ones.
// The worker count is clamped to MinWorkers..MaxWorkers.
func (jc *JobConfig) GetJobProcessing(global ProcessingConfig) ProcessingConfig {
	result := global
	if jc.Processing != nil {
		if jc.Processing.BatchSize > 0 {
			result.BatchSize = jc.Processing.BatchSize
		}
		if jc.Processing.Workers > 0 {
			result.Workers = jc.Processing.Workers
		}
		if jc.Processing.SleepSeconds > 0 {
			result.SleepSeconds = jc.Processing.SleepSeconds
		}
	}
	result.Workers = ClampWorkers(result.Workers)
	return result
}

// GetJobPolicy merges job-specific policy settings over global ones.
func (jc *JobConfig) GetJobPolicy(global PolicyConfig) PolicyConfig {
	if jc.Policy == nil {
		return global
	}

	result := global
	if jc.Policy.OnConflict != "" {
		result.OnConflict = jc.Policy.OnConflict
	}
	if jc.Policy.StrictMapping != nil {
		result.StrictMapping = *jc.Policy.StrictMapping
	}
	if jc.Policy.CreateTargetIfMissing != nil {
		result.CreateTargetIfMissing = *jc.Policy.CreateTargetIfMissing
	}
	if jc.Policy.StopOnError != nil {
		result.StopOnError = *jc.Policy.StopOnError
	}
	return result
}

// GetJobVerification returns the verification config for a job, falling back to global if not set.
func (jc *JobConfig) GetJobVerification(global VerificationConfig) VerificationConfig {
	if jc.Verification == nil {
		return global
	}

	result := global
	if jc.Verification.Method != "" {
		result.Method = jc.Verification.Method
	}
	result.SkipVerification = jc.Verification.SkipVerification || global.SkipVerification
	return result
}

// ClampWorkers bounds a worker count to MinWorkers..MaxWorkers.
func ClampWorkers(n int) int {
	if n < MinWorkers {
		return MinWorkers
	}
	if n > MaxWorkers {
		return MaxWorkers
	}
	return n
}
