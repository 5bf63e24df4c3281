package source

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/dbsmedya/gomigrate/internal/database"
	"github.com/dbsmedya/gomigrate/internal/sqlutil"
	"github.com/dbsmedya/gomigrate/internal/types"
)

// TableReader streams a view or table from the source database.
type TableReader struct {
	schema types.Schema
	rows   *sql.Rows
	row    int
}

// OpenTable introspects name through the catalog and starts reading its rows.
// The schema never depends on the data, so a view with zero rows still has columns.
func OpenTable(ctx context.Context, h *database.Handle, name string) (*TableReader, error) {
	if h == nil || h.DB == nil || h.Dialect == nil {
		return nil, fmt.Errorf("%w: no source database connection", types.ErrSourceUnavailable)
	}
	if !sqlutil.IsValidIdentifier(name) {
		return nil, fmt.Errorf("%w: %v", types.ErrSourceUnavailable, &sqlutil.InvalidIdentifierError{Name: name})
	}

	schema, err := h.Columns(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrSourceUnavailable, err)
	}
	if schema.Len() == 0 {
		return nil, fmt.Errorf("%w: %s does not exist", types.ErrSourceUnavailable, name)
	}
	if err := sqlutil.ValidateIdentifiers(schema.Names()...); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrSourceUnavailable, name, err)
	}

	query := fmt.Sprintf("SELECT %s FROM %s",
		sqlutil.QuoteList(schema.Names(), h.Dialect.QuoteIdentifier), h.Table(name))
	rows, err := h.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", types.ErrSourceUnavailable, name, err)
	}

	return &TableReader{schema: schema, rows: rows}, nil
}

func (r *TableReader) Schema() types.Schema { return r.schema }

func (r *TableReader) Next() (types.Record, error) {
	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to read source row %d: %w", r.row+1, err)
		}
		return nil, io.EOF
	}
	r.row++

	values := make(types.Record, r.schema.Len())
	ptrs := make([]any, len(values))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := r.rows.Scan(ptrs...); err != nil {
		return nil, &types.RowError{Row: r.row, Err: err}
	}
	for i, v := range values {
		values[i] = types.NormalizeValue(v)
	}
	return values, nil
}

func (r *TableReader) Close() error {
	return r.rows.Close()
}
