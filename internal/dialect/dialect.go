// Package dialect describes how gomigrate talks to each supported engine:
// driver name, bind markers, identifier quoting, catalog introspection, column
// types for created tables and advisory locks.
package dialect

import (
	"fmt"
	"strings"
)

// Kind separates file-based engines from client/server engines.
type Kind string

const (
	KindFile   Kind = "file"
	KindServer Kind = "server"
)

// ColumnKind is the logical type of a target column.
type ColumnKind string

const (
	ColumnText    ColumnKind = "text"
	ColumnInteger ColumnKind = "integer"
	ColumnNumeric ColumnKind = "numeric"
)

// ParseColumnKind maps a configured column type onto a ColumnKind.
// An empty string means text.
func ParseColumnKind(s string) (ColumnKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "string":
		return ColumnText, nil
	case "integer", "int":
		return ColumnInteger, nil
	case "numeric", "number", "decimal", "float":
		return ColumnNumeric, nil
	default:
		return "", fmt.Errorf("unsupported column type %q (must be 'text', 'integer' or 'numeric')", s)
	}
}

// Dialect is the per-engine adapter used by every SQL statement the engine builds.
// Implementations are stateless and safe for concurrent use.
type Dialect interface {
	// Name is the canonical engine name used in configuration.
	Name() string

	// DriverName is the database/sql driver registered for the engine.
	DriverName() string

	Kind() Kind

	// Placeholder returns the bind marker for the n-th (1-based) argument.
	Placeholder(n int) string

	QuoteIdentifier(name string) string

	// QualifiedTable quotes table, prefixed by schema when the engine supports one.
	QualifiedTable(schema, table string) string

	// MaxParams is the number of bind parameters a single statement may carry.
	MaxParams() int

	// ColumnsQuery returns a catalog query yielding (name, declared type) rows for
	// a table or view in catalog order. No rows means the object does not exist.
	ColumnsQuery(schema, table string) (string, []any)

	// TablesQuery returns a catalog query yielding the names of the tables and
	// views in schema, sorted by name.
	TablesQuery(schema string) (string, []any)

	// ColumnType is the DDL type used for a created column.
	ColumnType(kind ColumnKind, isKey bool) string

	// LockSQL returns statements taking and releasing a session-level named lock.
	// Both take the lock name as their only argument and yield one boolean-ish
	// value. ok is false when the engine has no advisory locks.
	LockSQL() (acquire, release string, ok bool)
}

// For returns the dialect for an engine name.
func For(engine string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "mysql", "mariadb":
		return MySQL{}, nil
	case "postgres", "postgresql", "pgx":
		return Postgres{}, nil
	case "sqlite", "sqlite3":
		return SQLite{}, nil
	case "sqlserver", "mssql":
		return SQLServer{}, nil
	default:
		return nil, fmt.Errorf("unsupported engine %q", engine)
	}
}

// Engines lists the canonical engine names.
func Engines() []string {
	return []string{"mysql", "postgres", "sqlite", "sqlserver"}
}
