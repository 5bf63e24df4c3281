package dialect

import (
	"strconv"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dbsmedya/gomigrate/internal/sqlutil"
)

// Postgres talks to PostgreSQL through the pgx stdlib driver.
type Postgres struct{}

func (Postgres) Name() string       { return "postgres" }
func (Postgres) DriverName() string { return "pgx" }
func (Postgres) Kind() Kind         { return KindServer }

func (Postgres) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (Postgres) QuoteIdentifier(name string) string { return sqlutil.QuoteDouble(name) }

func (d Postgres) QualifiedTable(schema, table string) string {
	if schema == "" {
		return d.QuoteIdentifier(table)
	}
	return d.QuoteIdentifier(schema) + "." + d.QuoteIdentifier(table)
}

func (Postgres) MaxParams() int { return 65535 }

func (Postgres) ColumnsQuery(schema, table string) (string, []any) {
	if schema == "" {
		schema = "public"
	}
	query := `SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`
	return query, []any{schema, table}
}

func (Postgres) TablesQuery(schema string) (string, []any) {
	if schema == "" {
		schema = "public"
	}
	query := `SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1
		ORDER BY table_name`
	return query, []any{schema}
}

func (Postgres) ColumnType(kind ColumnKind, _ bool) string {
	switch kind {
	case ColumnInteger:
		return "BIGINT"
	case ColumnNumeric:
		return "NUMERIC"
	}
	return "TEXT"
}

// LockSQL hashes the lock name into the bigint key space of advisory locks.
func (Postgres) LockSQL() (string, string, bool) {
	return "SELECT pg_try_advisory_lock(hashtext($1))", "SELECT pg_advisory_unlock(hashtext($1))", true
}
