package dialect

import (
	_ "github.com/go-sql-driver/mysql"

	"github.com/dbsmedya/gomigrate/internal/sqlutil"
)

// MySQL talks to MySQL and MariaDB through go-sql-driver/mysql.
type MySQL struct{}

func (MySQL) Name() string       { return "mysql" }
func (MySQL) DriverName() string { return "mysql" }
func (MySQL) Kind() Kind         { return KindServer }

func (MySQL) Placeholder(int) string { return "?" }

func (MySQL) QuoteIdentifier(name string) string { return sqlutil.QuoteBacktick(name) }

func (d MySQL) QualifiedTable(schema, table string) string {
	if schema == "" {
		return d.QuoteIdentifier(table)
	}
	return d.QuoteIdentifier(schema) + "." + d.QuoteIdentifier(table)
}

func (MySQL) MaxParams() int { return 65535 }

// ColumnsQuery falls back to the connection's default database when schema is empty.
func (MySQL) ColumnsQuery(schema, table string) (string, []any) {
	query := `SELECT COLUMN_NAME, COLUMN_TYPE
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE()) AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`
	return query, []any{schema, table}
}

func (MySQL) TablesQuery(schema string) (string, []any) {
	query := `SELECT TABLE_NAME
		FROM information_schema.TABLES
		WHERE TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE())
		ORDER BY TABLE_NAME`
	return query, []any{schema}
}

func (MySQL) ColumnType(kind ColumnKind, isKey bool) string {
	switch kind {
	case ColumnInteger:
		return "BIGINT"
	case ColumnNumeric:
		return "DOUBLE"
	}
	if isKey {
		// TEXT cannot carry a primary key without a prefix length.
		return "VARCHAR(255)"
	}
	return "TEXT"
}

func (MySQL) LockSQL() (string, string, bool) {
	return "SELECT GET_LOCK(?, 0)", "SELECT RELEASE_LOCK(?)", true
}
