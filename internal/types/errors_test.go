package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkWriteError(t *testing.T) {
	cause := errors.New("CHECK constraint failed")
	err := &ChunkWriteError{Index: 2, Kind: ChunkInsert, Rows: 2, Err: cause}

	assert.Equal(t, "chunk 2 (insert, 2 rows) failed: CHECK constraint failed", err.Error())
	assert.ErrorIs(t, err, cause)

	wrapped := fmt.Errorf("load: %w", err)
	var cwe *ChunkWriteError
	require.True(t, errors.As(wrapped, &cwe))
	assert.Equal(t, 2, cwe.Index)
}

func TestRowError(t *testing.T) {
	withColumn := &RowError{Row: 3, Column: "age", Err: errors.New("not a number")}
	assert.Equal(t, `row 3, column "age": not a number`, withColumn.Error())

	withoutColumn := &RowError{Row: 4, Err: ErrRaggedRow}
	assert.Equal(t, "row 4: row field count does not match the header", withoutColumn.Error())
	assert.ErrorIs(t, withoutColumn, ErrRaggedRow)
}

func TestIsValidationError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "source unavailable", err: fmt.Errorf("%w: view v_x", ErrSourceUnavailable), want: true},
		{name: "empty source", err: ErrEmptySource, want: true},
		{name: "unknown column", err: ErrUnknownSourceColumn, want: true},
		{name: "unmapped column", err: ErrUnmappedColumn, want: true},
		{name: "primary key", err: ErrInvalidPrimaryKey, want: true},
		{name: "target missing", err: ErrTargetSchemaMissing, want: true},
		{name: "conflicts", err: ErrConflictsPresent, want: true},
		{name: "connectivity", err: ErrConnectivityLost, want: false},
		{name: "chunk", err: &ChunkWriteError{Index: 1, Err: errors.New("x")}, want: false},
		{name: "nil", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidationError(tt.err))
		})
	}
}
