package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dbsmedya/gomigrate/internal/types"
)

// CSVOptions tunes the delimited text reader.
type CSVOptions struct {
	Delimiter rune // defaults to ','
}

// CSVReader streams a delimited text file with a header row. Every value is
// text; empty cells are read as NULL.
type CSVReader struct {
	file   *os.File
	reader *csv.Reader
	schema types.Schema
	row    int
}

// OpenCSV opens path and reads its header row.
func OpenCSV(path string, opts CSVOptions) (*CSVReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrSourceUnavailable, err)
	}

	cr := csv.NewReader(file)
	if opts.Delimiter != 0 {
		cr.Comma = opts.Delimiter
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		file.Close()
		return nil, fmt.Errorf("%w: %s", types.ErrEmptySource, path)
	}
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: failed to read header of %s: %v", types.ErrSourceUnavailable, path, err)
	}

	schema, err := headerSchema(header)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: %s: %v", types.ErrSourceUnavailable, path, err)
	}

	return &CSVReader{file: file, reader: cr, schema: schema}, nil
}

// headerSchema trims header cells, strips a UTF-8 byte order mark and rejects
// blank or repeated names.
func headerSchema(header []string) (types.Schema, error) {
	names := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		h = strings.TrimSpace(h)
		if h == "" {
			return types.Schema{}, fmt.Errorf("header column %d is blank", i+1)
		}
		if seen[h] {
			return types.Schema{}, fmt.Errorf("header column %q appears more than once", h)
		}
		seen[h] = true
		names[i] = h
	}
	return types.NewSchema(names...), nil
}

func (r *CSVReader) Schema() types.Schema { return r.schema }

func (r *CSVReader) Next() (types.Record, error) {
	fields, err := r.reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	r.row++

	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		return nil, &types.RowError{Row: r.row, Err: err}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", r.file.Name(), err)
	}

	if len(fields) != r.schema.Len() {
		return nil, &types.RowError{
			Row: r.row,
			Err: fmt.Errorf("%w: got %d fields, header has %d", types.ErrRaggedRow, len(fields), r.schema.Len()),
		}
	}

	return textRecord(fields), nil
}

func (r *CSVReader) Close() error {
	return r.file.Close()
}

func textRecord(fields []string) types.Record {
	rec := make(types.Record, len(fields))
	for i, f := range fields {
		if f == "" {
			rec[i] = nil
			continue
		}
		rec[i] = f
	}
	return rec
}
