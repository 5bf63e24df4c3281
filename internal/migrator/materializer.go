package migrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dbsmedya/gomigrate/internal/database"
	"github.com/dbsmedya/gomigrate/internal/dialect"
	"github.com/dbsmedya/gomigrate/internal/logger"
	"github.com/dbsmedya/gomigrate/internal/sqlutil"
	"github.com/dbsmedya/gomigrate/internal/types"
)

// TargetStatus describes what the materializer found or did.
type TargetStatus struct {
	Existed        bool         // Table was already present
	Created        bool         // CREATE TABLE was issued
	WouldCreate    bool         // Inspect only: the table is absent and creation is allowed
	MissingColumns []string     // Mapped columns the existing table does not have
	Columns        types.Schema // Existing table's columns with their declared types
}

// Materializer makes sure the target table exists with the mapped shape.
type Materializer struct {
	target *database.Handle
	kinds  map[string]dialect.ColumnKind
	logger *logger.Logger
}

// NewMaterializer creates a materializer. kinds gives the logical type of
// each created column; unlisted columns are text.
func NewMaterializer(target *database.Handle, kinds map[string]dialect.ColumnKind, log *logger.Logger) (*Materializer, error) {
	if target == nil {
		return nil, errors.New("target handle is nil")
	}
	if log == nil {
		return nil, errors.New("logger is nil")
	}
	return &Materializer{target: target, kinds: kinds, logger: log}, nil
}

// Inspect checks the target table without issuing DDL.
func (m *Materializer) Inspect(ctx context.Context, table string, schema types.Schema, pk string, create bool) (*TargetStatus, error) {
	if err := sqlutil.ValidateIdentifiers(append([]string{table, pk}, schema.Names()...)...); err != nil {
		return nil, err
	}

	existing, err := m.target.Columns(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect target table %s: %w", table, err)
	}

	status := &TargetStatus{}
	if existing.Len() > 0 {
		status.Existed = true
		status.Columns = existing
		for _, c := range schema.Columns {
			if existing.IndexFold(c.Name) < 0 {
				status.MissingColumns = append(status.MissingColumns, c.Name)
			}
		}
		if len(status.MissingColumns) > 0 {
			m.logger.Warnw("Target table lacks mapped columns",
				"table", table,
				"missing", status.MissingColumns)
		}
		return status, nil
	}

	if !create {
		return nil, fmt.Errorf("%w: %s", types.ErrTargetSchemaMissing, table)
	}
	status.WouldCreate = true
	return status, nil
}

// Ensure is Inspect followed by CREATE TABLE when the table is absent.
// An existing table is trusted as is.
func (m *Materializer) Ensure(ctx context.Context, table string, schema types.Schema, pk string, create bool) (*TargetStatus, error) {
	status, err := m.Inspect(ctx, table, schema, pk, create)
	if err != nil {
		return nil, err
	}
	if status.Existed {
		m.logger.Debugf("Target table %s exists, no DDL issued", table)
		return status, nil
	}

	ddl := m.CreateTableSQL(table, schema, pk)
	m.logger.Infow("Creating target table", "table", table, "columns", schema.Len())
	if _, err := m.target.DB.ExecContext(ctx, ddl); err != nil {
		return nil, fmt.Errorf("failed to create target table %s: %w", table, err)
	}

	status.WouldCreate = false
	status.Created = true
	return status, nil
}

// CreateTableSQL renders the CREATE TABLE statement for schema.
// Identifiers must already be validated.
func (m *Materializer) CreateTableSQL(table string, schema types.Schema, pk string) string {
	d := m.target.Dialect
	defs := make([]string, 0, schema.Len()+1)
	for _, c := range schema.Columns {
		isKey := strings.EqualFold(c.Name, pk)
		def := d.QuoteIdentifier(c.Name) + " " + d.ColumnType(m.kinds[c.Name], isKey)
		if isKey {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}
	defs = append(defs, "PRIMARY KEY ("+d.QuoteIdentifier(pk)+")")

	return fmt.Sprintf("CREATE TABLE %s (%s)", m.target.Table(table), strings.Join(defs, ", "))
}
