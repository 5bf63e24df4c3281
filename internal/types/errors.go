package types

import (
	"errors"
	"fmt"
)

// Migration error taxonomy. Callers wrap these with context and match them
// with errors.Is.
var (
	// ErrSourceUnavailable is returned when the source handle is invalid or the
	// view, table or file does not exist.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrEmptySource is returned when a file source has no header row.
	ErrEmptySource = errors.New("source has no header row")

	// ErrUnknownSourceColumn is returned when a mapping key is not a source column.
	ErrUnknownSourceColumn = errors.New("unknown source column")

	// ErrUnmappedColumn is returned in strict mode for a source column without a mapping entry.
	ErrUnmappedColumn = errors.New("unmapped source column")

	// ErrInvalidPrimaryKey is returned when the primary key is not part of the mapped schema.
	ErrInvalidPrimaryKey = errors.New("primary key not in mapped schema")

	// ErrTargetSchemaMissing is returned when the target table is absent and may not be created.
	ErrTargetSchemaMissing = errors.New("target table does not exist")

	// ErrConflictsPresent is returned by the abort policy when any incoming key already exists.
	ErrConflictsPresent = errors.New("conflicting keys present in target")

	// ErrConnectivityLost is fatal: no further chunks are attempted.
	ErrConnectivityLost = errors.New("connectivity lost")
)

// ChunkKind tells whether a chunk inserts new rows or updates existing ones.
type ChunkKind string

const (
	ChunkInsert ChunkKind = "insert"
	ChunkUpdate ChunkKind = "update"
)

// ChunkWriteError reports a chunk whose transaction was rolled back.
type ChunkWriteError struct {
	Index int       // 1-based chunk index across the whole run
	Kind  ChunkKind // insert or update
	Rows  int       // Records in the chunk
	Err   error     // Underlying cause
}

func (e *ChunkWriteError) Error() string {
	return fmt.Sprintf("chunk %d (%s, %d rows) failed: %v", e.Index, e.Kind, e.Rows, e.Err)
}

func (e *ChunkWriteError) Unwrap() error {
	return e.Err
}

// RowError reports a single source row that could not be migrated.
type RowError struct {
	Row    int    // 1-based data row position in the source
	Column string // Offending column, if any
	Err    error
}

func (e *RowError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("row %d, column %q: %v", e.Row, e.Column, e.Err)
	}
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// ErrRaggedRow marks a file row whose field count does not match the header.
var ErrRaggedRow = errors.New("row field count does not match the header")

// IsValidationError reports whether err belongs to the pre-write validation
// phase, in which case the run had no side effects.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrSourceUnavailable,
		ErrEmptySource,
		ErrUnknownSourceColumn,
		ErrUnmappedColumn,
		ErrInvalidPrimaryKey,
		ErrTargetSchemaMissing,
		ErrConflictsPresent,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
