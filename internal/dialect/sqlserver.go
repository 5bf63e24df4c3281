package dialect

import (
	"strconv"

	_ "github.com/denisenkom/go-mssqldb"

	"github.com/dbsmedya/gomigrate/internal/sqlutil"
)

// SQLServer talks to Microsoft SQL Server through go-mssqldb.
type SQLServer struct{}

func (SQLServer) Name() string       { return "sqlserver" }
func (SQLServer) DriverName() string { return "sqlserver" }
func (SQLServer) Kind() Kind         { return KindServer }

func (SQLServer) Placeholder(n int) string { return "@p" + strconv.Itoa(n) }

func (SQLServer) QuoteIdentifier(name string) string { return sqlutil.QuoteBracket(name) }

func (d SQLServer) QualifiedTable(schema, table string) string {
	if schema == "" {
		return d.QuoteIdentifier(table)
	}
	return d.QuoteIdentifier(schema) + "." + d.QuoteIdentifier(table)
}

// MaxParams stays below the 2100 parameter limit of an RPC call.
func (SQLServer) MaxParams() int { return 2000 }

func (SQLServer) ColumnsQuery(schema, table string) (string, []any) {
	if schema == "" {
		schema = "dbo"
	}
	query := `SELECT COLUMN_NAME, DATA_TYPE
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2
		ORDER BY ORDINAL_POSITION`
	return query, []any{schema, table}
}

func (SQLServer) TablesQuery(schema string) (string, []any) {
	if schema == "" {
		schema = "dbo"
	}
	query := `SELECT TABLE_NAME
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = @p1
		ORDER BY TABLE_NAME`
	return query, []any{schema}
}

func (SQLServer) ColumnType(kind ColumnKind, isKey bool) string {
	switch kind {
	case ColumnInteger:
		return "BIGINT"
	case ColumnNumeric:
		return "FLOAT"
	}
	if isKey {
		// Index keys are limited to 900 bytes.
		return "NVARCHAR(450)"
	}
	return "NVARCHAR(MAX)"
}

// LockSQL reports no support: sp_getapplock needs an output parameter.
func (SQLServer) LockSQL() (string, string, bool) {
	return "", "", false
}
