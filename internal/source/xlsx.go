package source

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/dbsmedya/gomigrate/internal/types"
)

// XLSXReader streams one sheet of a workbook whose first row is the header.
type XLSXReader struct {
	file   *excelize.File
	rows   *excelize.Rows
	schema types.Schema
	row    int
}

// OpenXLSX opens path and reads the header of sheet, or of the first sheet when
// sheet is empty.
func OpenXLSX(path, sheet string) (*XLSXReader, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrSourceUnavailable, err)
	}

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		f.Close()
		return nil, fmt.Errorf("%w: sheet %q not found in %s", types.ErrSourceUnavailable, sheet, path)
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", types.ErrSourceUnavailable, err)
	}

	r := &XLSXReader{file: f, rows: rows}

	header, err := r.nextNonEmpty()
	if err == io.EOF {
		r.Close()
		return nil, fmt.Errorf("%w: %s", types.ErrEmptySource, path)
	}
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("%w: failed to read header of %s: %v", types.ErrSourceUnavailable, path, err)
	}

	r.schema, err = headerSchema(trimTrailingBlanks(header))
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("%w: %s: %v", types.ErrSourceUnavailable, path, err)
	}
	return r, nil
}

// nextNonEmpty skips rows without any value. excelize reports gaps in the
// sheet as empty rows.
func (r *XLSXReader) nextNonEmpty() ([]string, error) {
	for r.rows.Next() {
		cols, err := r.rows.Columns()
		if err != nil {
			return nil, err
		}
		if len(trimTrailingBlanks(cols)) > 0 {
			return cols, nil
		}
	}
	if err := r.rows.Error(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (r *XLSXReader) Schema() types.Schema { return r.schema }

func (r *XLSXReader) Next() (types.Record, error) {
	cols, err := r.nextNonEmpty()
	if err == io.EOF {
		return nil, io.EOF
	}
	r.row++
	if err != nil {
		return nil, &types.RowError{Row: r.row, Err: err}
	}

	// Trailing empty cells are omitted by the sheet; pad them back as NULL.
	cols = trimTrailingBlanks(cols)
	if len(cols) > r.schema.Len() {
		return nil, &types.RowError{
			Row: r.row,
			Err: fmt.Errorf("%w: got %d cells, header has %d", types.ErrRaggedRow, len(cols), r.schema.Len()),
		}
	}

	padded := make([]string, r.schema.Len())
	copy(padded, cols)
	return textRecord(padded), nil
}

func (r *XLSXReader) Close() error {
	var rowsErr error
	if r.rows != nil {
		rowsErr = r.rows.Close()
	}
	if err := r.file.Close(); err != nil {
		return err
	}
	return rowsErr
}

func trimTrailingBlanks(cells []string) []string {
	end := len(cells)
	for end > 0 && strings.TrimSpace(cells[end-1]) == "" {
		end--
	}
	return cells[:end]
}
