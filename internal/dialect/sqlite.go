package dialect

import (
	_ "modernc.org/sqlite"

	"github.com/dbsmedya/gomigrate/internal/sqlutil"
)

// SQLite talks to SQLite database files through the pure Go modernc driver.
type SQLite struct{}

func (SQLite) Name() string       { return "sqlite" }
func (SQLite) DriverName() string { return "sqlite" }
func (SQLite) Kind() Kind         { return KindFile }

func (SQLite) Placeholder(int) string { return "?" }

func (SQLite) QuoteIdentifier(name string) string { return sqlutil.QuoteDouble(name) }

// QualifiedTable ignores schema: a file holds a single main schema.
func (d SQLite) QualifiedTable(_, table string) string {
	return d.QuoteIdentifier(table)
}

// MaxParams matches SQLITE_MAX_VARIABLE_NUMBER of SQLite 3.32 and later.
func (SQLite) MaxParams() int { return 32766 }

func (SQLite) ColumnsQuery(_, table string) (string, []any) {
	return "SELECT name, type FROM pragma_table_info(?) ORDER BY cid", []any{table}
}

func (SQLite) TablesQuery(_ string) (string, []any) {
	query := `SELECT name FROM sqlite_master
		WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'
		ORDER BY name`
	return query, nil
}

func (SQLite) ColumnType(kind ColumnKind, _ bool) string {
	switch kind {
	case ColumnInteger:
		return "INTEGER"
	case ColumnNumeric:
		return "REAL"
	}
	return "TEXT"
}

func (SQLite) LockSQL() (string, string, bool) {
	return "", "", false
}
