package config

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dbsmedya/gomigrate/internal/dialect"
	"github.com/dbsmedya/gomigrate/internal/sqlutil"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Validate checks the configuration for required fields and valid values.
func (c *Config) Validate() error {
	var errors ValidationErrors

	if c.needsSourceDatabase() {
		errors = append(errors, c.validateDatabase("source", &c.Source)...)
	}
	errors = append(errors, c.validateDatabase("target", &c.Target)...)

	if len(c.Jobs) == 0 {
		errors = append(errors, ValidationError{
			Field:   "jobs",
			Message: "at least one job must be defined",
		})
	}
	// Sorted so the error list is stable between runs.
	for _, name := range c.ListJobs() {
		job := c.Jobs[name]
		errors = append(errors, c.validateJob(name, &job)...)
	}

	errors = append(errors, validateProcessing("processing", &c.Processing, true)...)
	errors = append(errors, validateOnConflict("policy.on_conflict", c.Policy.OnConflict)...)
	errors = append(errors, c.validateSafety()...)
	errors = append(errors, validateVerification("verification.method", c.Verification.Method)...)
	errors = append(errors, c.validateLogging()...)

	if len(errors) > 0 {
		return errors
	}
	return nil
}

// needsSourceDatabase reports whether any job reads a view or table.
func (c *Config) needsSourceDatabase() bool {
	for _, job := range c.Jobs {
		if job.Source.IsDatabase() {
			return true
		}
	}
	return false
}

func (c *Config) validateDatabase(prefix string, db *DatabaseConfig) ValidationErrors {
	var errors ValidationErrors

	d, err := dialect.For(db.Engine)
	if err != nil {
		errors = append(errors, ValidationError{
			Field:   prefix + ".engine",
			Message: fmt.Sprintf("engine must be one of %s", strings.Join(dialect.Engines(), ", ")),
		})
		return errors
	}

	if d.Kind() == dialect.KindFile {
		if db.Path == "" {
			errors = append(errors, ValidationError{
				Field:   prefix + ".path",
				Message: "path is required for file-based engines",
			})
		}
	} else {
		if db.Host == "" {
			errors = append(errors, ValidationError{
				Field:   prefix + ".host",
				Message: "host is required",
			})
		}

		if db.Port <= 0 || db.Port > 65535 {
			errors = append(errors, ValidationError{
				Field:   prefix + ".port",
				Message: "port must be between 1 and 65535",
			})
		}

		if db.User == "" {
			errors = append(errors, ValidationError{
				Field:   prefix + ".user",
				Message: "user is required",
			})
		}

		if db.Database == "" {
			errors = append(errors, ValidationError{
				Field:   prefix + ".database",
				Message: "database name is required",
			})
		}
	}

	if db.Schema != "" && !sqlutil.IsValidIdentifier(db.Schema) {
		errors = append(errors, ValidationError{
			Field:   prefix + ".schema",
			Message: "schema must contain only alphanumeric characters and underscores",
		})
	}

	validTLS := map[string]bool{"disable": true, "preferred": true, "required": true, "": true}
	if !validTLS[db.TLS] {
		errors = append(errors, ValidationError{
			Field:   prefix + ".tls",
			Message: "tls must be 'disable', 'preferred', or 'required'",
		})
	}

	if db.MaxConnections < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".max_connections",
			Message: "max_connections cannot be negative",
		})
	}

	if db.MaxIdleConnections < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".max_idle_connections",
			Message: "max_idle_connections cannot be negative",
		})
	}

	return errors
}

func (c *Config) validateJob(name string, job *JobConfig) ValidationErrors {
	var errors ValidationErrors
	prefix := fmt.Sprintf("jobs.%s", name)

	errors = append(errors, validateSource(prefix+".source", &job.Source)...)
	errors = append(errors, validateRequiredIdentifier(prefix+".target_table", job.TargetTable)...)
	errors = append(errors, validateRequiredIdentifier(prefix+".primary_key", job.PrimaryKey)...)

	seenSource := make(map[string]bool)
	seenTarget := make(map[string]bool)
	for i, entry := range job.Mapping {
		entryPrefix := fmt.Sprintf("%s.mapping[%d]", prefix, i)

		if entry.Source == "" {
			errors = append(errors, ValidationError{
				Field:   entryPrefix + ".source",
				Message: "source column is required",
			})
		} else if seenSource[entry.Source] {
			errors = append(errors, ValidationError{
				Field:   entryPrefix + ".source",
				Message: fmt.Sprintf("source column %q is mapped more than once", entry.Source),
			})
		}
		seenSource[entry.Source] = true

		// Database source columns end up in a SELECT list.
		if entry.Source != "" && job.Source.IsDatabase() && !sqlutil.IsValidIdentifier(entry.Source) {
			errors = append(errors, ValidationError{
				Field:   entryPrefix + ".source",
				Message: "source column must contain only alphanumeric characters and underscores",
			})
		}

		errors = append(errors, validateRequiredIdentifier(entryPrefix+".target", entry.Target)...)
		if entry.Target != "" && seenTarget[entry.Target] {
			errors = append(errors, ValidationError{
				Field:   entryPrefix + ".target",
				Message: fmt.Sprintf("target column %q is mapped more than once", entry.Target),
			})
		}
		seenTarget[entry.Target] = true
	}

	columns := make([]string, 0, len(job.ColumnTypes))
	for column := range job.ColumnTypes {
		columns = append(columns, column)
	}
	sort.Strings(columns)
	for _, column := range columns {
		field := fmt.Sprintf("%s.column_types.%s", prefix, column)
		if !sqlutil.IsValidIdentifier(column) {
			errors = append(errors, ValidationError{
				Field:   field,
				Message: "column name must contain only alphanumeric characters and underscores",
			})
		}
		if _, err := dialect.ParseColumnKind(job.ColumnTypes[column]); err != nil {
			errors = append(errors, ValidationError{Field: field, Message: err.Error()})
		}
	}

	if job.Processing != nil {
		errors = append(errors, validateProcessing(prefix+".processing", job.Processing, false)...)
	}
	if job.Policy != nil {
		errors = append(errors, validateOnConflict(prefix+".policy.on_conflict", job.Policy.OnConflict)...)
	}
	if job.Verification != nil {
		errors = append(errors, validateVerification(prefix+".verification.method", job.Verification.Method)...)
	}

	return errors
}

func validateSource(prefix string, src *SourceConfig) ValidationErrors {
	var errors ValidationErrors

	validKinds := map[string]bool{
		SourceTable: true, SourceView: true, SourceCSV: true, SourceXLSX: true, SourceFile: true, "": true,
	}
	if !validKinds[src.Kind] {
		errors = append(errors, ValidationError{
			Field:   prefix + ".kind",
			Message: "kind must be 'table', 'view', 'csv', 'xlsx' or 'file'",
		})
		return errors
	}

	if src.IsDatabase() {
		errors = append(errors, validateRequiredIdentifier(prefix+".name", src.Name)...)
		return errors
	}

	if src.Path == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".path",
			Message: "path is required for file sources",
		})
		return errors
	}

	if src.FileKind() == "" {
		ext := strings.ToLower(filepath.Ext(src.Path))
		msg := fmt.Sprintf("unsupported file format %q (must be .csv or .xlsx)", ext)
		if ext == ".xls" {
			msg = "legacy .xls workbooks are not supported, save the sheet as .xlsx or .csv"
		}
		errors = append(errors, ValidationError{Field: prefix + ".path", Message: msg})
	}

	if len([]rune(src.Delimiter)) > 1 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".delimiter",
			Message: "delimiter must be a single character",
		})
	}

	return errors
}

func validateRequiredIdentifier(field, value string) ValidationErrors {
	if value == "" {
		return ValidationErrors{{
			Field:   field,
			Message: field[strings.LastIndex(field, ".")+1:] + " is required",
		}}
	}
	if !sqlutil.IsValidIdentifier(value) {
		return ValidationErrors{{
			Field:   field,
			Message: fmt.Sprintf("%q must contain only alphanumeric characters and underscores", value),
		}}
	}
	return nil
}

// validateProcessing checks processing settings. Job-level settings may leave
// batch_size at zero to inherit the global value.
func validateProcessing(prefix string, p *ProcessingConfig, global bool) ValidationErrors {
	var errors ValidationErrors

	if p.BatchSize < 0 || (global && p.BatchSize == 0) {
		errors = append(errors, ValidationError{
			Field:   prefix + ".batch_size",
			Message: "batch_size must be positive",
		})
	}

	if p.Workers < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".workers",
			Message: "workers cannot be negative",
		})
	}

	if p.SleepSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".sleep_seconds",
			Message: "sleep_seconds cannot be negative",
		})
	}

	return errors
}

func validateOnConflict(field, value string) ValidationErrors {
	valid := map[string]bool{OnConflictSkip: true, OnConflictOverwrite: true, OnConflictAbort: true, "": true}
	if !valid[value] {
		return ValidationErrors{{
			Field:   field,
			Message: "on_conflict must be 'skip', 'overwrite', or 'abort'",
		}}
	}
	return nil
}

func (c *Config) validateSafety() ValidationErrors {
	var errors ValidationErrors

	if c.Safety.LockTimeout < 0 {
		errors = append(errors, ValidationError{
			Field:   "safety.lock_timeout",
			Message: "lock_timeout cannot be negative",
		})
	}

	return errors
}

func validateVerification(field, method string) ValidationErrors {
	valid := map[string]bool{VerifyCount: true, VerifySHA256: true, VerifyXXH3: true, VerifySkip: true, "": true}
	if !valid[method] {
		return ValidationErrors{{
			Field:   field,
			Message: "method must be 'count', 'sha256', 'xxh3', or 'skip'",
		}}
	}
	return nil
}

func (c *Config) validateLogging() ValidationErrors {
	var errors ValidationErrors

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "": true}
	if !validLevels[c.Logging.Level] {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: "level must be 'debug', 'info', 'warn', or 'error'",
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "": true}
	if !validFormats[c.Logging.Format] {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: "format must be 'json' or 'text'",
		})
	}

	return errors
}
