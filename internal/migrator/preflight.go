package migrator

import (
	"context"
	"fmt"

	"github.com/dbsmedya/gomigrate/internal/types"
)

// Preflight check names.
const (
	CheckSource     = "source"
	CheckMapping    = "mapping"
	CheckPrimaryKey = "primary_key"
	CheckTarget     = "target"
)

// PreflightError represents a failed pre-write check.
type PreflightError struct {
	Check   string
	Message string
	Columns []string
	Err     error
}

func (e *PreflightError) Error() string {
	if len(e.Columns) > 0 {
		return fmt.Sprintf("%s: %s (columns: %v)", e.Check, e.Message, e.Columns)
	}
	return fmt.Sprintf("%s: %s", e.Check, e.Message)
}

func (e *PreflightError) Unwrap() error {
	return e.Err
}

func preflightError(check string, err error) *PreflightError {
	return &PreflightError{Check: check, Message: err.Error(), Err: err}
}

// PreflightResult is what a successful preflight found.
type PreflightResult struct {
	SourceColumns []string
	TargetColumns []string
	Dropped       []string
	Target        *TargetStatus
	Warnings      []string
}

// Preflight runs every check Run performs before reading rows, without
// writing anything: the source opens and has a schema, the mapping fits it,
// the primary key survives mapping and the target exists or may be created.
func (m *Migrator) Preflight(ctx context.Context) (*PreflightResult, error) {
	m.logger.Info("Running preflight checks...")

	p, err := m.prepare(ctx)
	if err != nil {
		return nil, err
	}
	defer p.reader.Close()

	result := &PreflightResult{
		SourceColumns: p.schema.Names(),
		TargetColumns: p.projection.Target.Names(),
		Dropped:       p.projection.Dropped(p.schema),
	}
	if len(result.Dropped) > 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("unmapped source columns are dropped: %v", result.Dropped))
	}

	mat, err := NewMaterializer(m.target, p.kinds, m.logger)
	if err != nil {
		return nil, err
	}
	status, err := mat.Inspect(ctx, m.opts.TargetTable, p.projection.Target, m.opts.PrimaryKey, m.opts.Policy.CreateTargetIfMissing)
	if err != nil {
		return nil, preflightError(CheckTarget, err)
	}
	result.Target = status

	if len(status.MissingColumns) > 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("target table %s lacks mapped columns: %v", m.opts.TargetTable, status.MissingColumns))
	}
	if status.WouldCreate {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("target table %s does not exist and will be created", m.opts.TargetTable))
	}

	m.logger.Infow("Preflight checks passed",
		"source", m.opts.Source.Describe(),
		"target_table", m.opts.TargetTable,
		"columns", len(result.TargetColumns),
		"warnings", len(result.Warnings))
	return result, nil
}

// checkPrimaryKey resolves the primary key against the mapped schema.
func checkPrimaryKey(target types.Schema, pk string) (int, error) {
	idx := target.IndexFold(pk)
	if idx < 0 {
		return -1, &PreflightError{
			Check:   CheckPrimaryKey,
			Message: fmt.Sprintf("primary key %q is not a mapped column", pk),
			Columns: target.Names(),
			Err:     types.ErrInvalidPrimaryKey,
		}
	}
	return idx, nil
}
