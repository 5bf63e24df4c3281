package source

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/gomigrate/internal/types"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func readAll(t *testing.T, r Reader) ([]types.Record, []error) {
	t.Helper()
	var records []types.Record
	var rowErrs []error
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return records, rowErrs
		}
		var rowErr *types.RowError
		if errors.As(err, &rowErr) {
			rowErrs = append(rowErrs, err)
			continue
		}
		require.NoError(t, err)
		records = append(records, rec)
	}
}

func TestOpenCSV(t *testing.T) {
	path := writeFile(t, "people.csv", "\ufeffid, name ,age\n1,Alice,30\n2,Bob,\n")

	r, err := OpenCSV(path, CSVOptions{})
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, []string{"id", "name", "age"}, r.Schema().Names())

	records, rowErrs := readAll(t, r)
	assert.Empty(t, rowErrs)
	require.Len(t, records, 2)
	assert.Equal(t, types.Record{"1", "Alice", "30"}, records[0])
	assert.Equal(t, types.Record{"2", "Bob", nil}, records[1], "empty cells are NULL")
}

func TestOpenCSV_Delimiter(t *testing.T) {
	path := writeFile(t, "people.csv", "id;name\n7;\"Smith; John\"\n")

	r, err := OpenCSV(path, CSVOptions{Delimiter: ';'})
	require.NoError(t, err)
	defer r.Close()

	records, _ := readAll(t, r)
	require.Len(t, records, 1)
	assert.Equal(t, types.Record{"7", "Smith; John"}, records[0])
}

func TestOpenCSV_RaggedRows(t *testing.T) {
	path := writeFile(t, "people.csv", "id,name\n1,Alice\n2\n3,Carol,extra\n4,Dan\n")

	r, err := OpenCSV(path, CSVOptions{})
	require.NoError(t, err)
	defer r.Close()

	records, rowErrs := readAll(t, r)
	assert.Len(t, records, 2)
	require.Len(t, rowErrs, 2)
	assert.ErrorIs(t, rowErrs[0], types.ErrRaggedRow)

	var rowErr *types.RowError
	require.True(t, errors.As(rowErrs[1], &rowErr))
	assert.Equal(t, 3, rowErr.Row)
}

func TestOpenCSV_Errors(t *testing.T) {
	tests := []struct {
		name    string
		path    func(t *testing.T) string
		wantErr error
	}{
		{
			name:    "missing file",
			path:    func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.csv") },
			wantErr: types.ErrSourceUnavailable,
		},
		{
			name:    "empty file",
			path:    func(t *testing.T) string { return writeFile(t, "empty.csv", "") },
			wantErr: types.ErrEmptySource,
		},
		{
			name:    "duplicate header",
			path:    func(t *testing.T) string { return writeFile(t, "dup.csv", "id,id\n1,2\n") },
			wantErr: types.ErrSourceUnavailable,
		},
		{
			name:    "blank header cell",
			path:    func(t *testing.T) string { return writeFile(t, "blank.csv", "id,,name\n") },
			wantErr: types.ErrSourceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := OpenCSV(tt.path(t), CSVOptions{})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestOpenCSV_HeaderOnly(t *testing.T) {
	path := writeFile(t, "header.csv", "id,name\n")

	r, err := OpenCSV(path, CSVOptions{})
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, 2, r.Schema().Len())
	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}
