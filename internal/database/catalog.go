package database

import (
	"context"
	"fmt"

	"github.com/dbsmedya/gomigrate/internal/types"
)

// Columns reads the column list of a table or view from the engine catalog,
// in catalog order. An empty schema means the object does not exist.
func (h *Handle) Columns(ctx context.Context, table string) (types.Schema, error) {
	query, args := h.Dialect.ColumnsQuery(h.Schema, table)

	rows, err := h.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return types.Schema{}, fmt.Errorf("failed to query columns of %s: %w", table, err)
	}
	defer rows.Close()

	var schema types.Schema
	for rows.Next() {
		var col types.Column
		if err := rows.Scan(&col.Name, &col.DeclaredType); err != nil {
			return types.Schema{}, fmt.Errorf("failed to scan column of %s: %w", table, err)
		}
		schema.Columns = append(schema.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return types.Schema{}, fmt.Errorf("error iterating columns of %s: %w", table, err)
	}

	return schema, nil
}

// Exists reports whether table is visible in the catalog.
func (h *Handle) Exists(ctx context.Context, table string) (bool, error) {
	schema, err := h.Columns(ctx, table)
	if err != nil {
		return false, err
	}
	return schema.Len() > 0, nil
}

// Tables lists the tables and views of the handle's schema, sorted by name.
func (h *Handle) Tables(ctx context.Context) ([]string, error) {
	query, args := h.Dialect.TablesQuery(h.Schema)

	rows, err := h.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}
	return names, nil
}
