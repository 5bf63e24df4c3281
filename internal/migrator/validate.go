package migrator

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dbsmedya/gomigrate/internal/dialect"
	"github.com/dbsmedya/gomigrate/internal/types"
)

var (
	errNotInteger = errors.New("value is not an integer")
	errNotNumeric = errors.New("value is not numeric")
)

// columnKinds resolves the configured column types against the target schema.
// Unlisted columns are text.
func columnKinds(target types.Schema, configured map[string]string) (map[string]dialect.ColumnKind, error) {
	kinds := make(map[string]dialect.ColumnKind, target.Len())
	for _, c := range target.Columns {
		kinds[c.Name] = dialect.ColumnText
	}
	for column, raw := range configured {
		idx := target.IndexFold(column)
		if idx < 0 {
			return nil, fmt.Errorf("column_types names %q, which is not a mapped target column", column)
		}
		kind, err := dialect.ParseColumnKind(raw)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", column, err)
		}
		kinds[target.Columns[idx].Name] = kind
	}
	return kinds, nil
}

// compareKinds returns the kinds the target compares values by. An existing
// table's declared column types win over the configured kinds, which only
// describe tables this tool creates.
func compareKinds(configured map[string]dialect.ColumnKind, target, existing types.Schema) map[string]dialect.ColumnKind {
	kinds := make(map[string]dialect.ColumnKind, target.Len())
	for _, c := range target.Columns {
		kinds[c.Name] = configured[c.Name]
		if idx := existing.IndexFold(c.Name); idx >= 0 && existing.Columns[idx].DeclaredType != "" {
			kinds[c.Name] = dialect.KindOfDeclaredType(existing.Columns[idx].DeclaredType)
		}
	}
	return kinds
}

// RowValidator checks mapped records against integer and numeric column kinds.
type RowValidator struct {
	checks []columnCheck
}

type columnCheck struct {
	index int
	name  string
	kind  dialect.ColumnKind
}

// NewRowValidator builds a validator for the non-text columns of target.
func NewRowValidator(target types.Schema, kinds map[string]dialect.ColumnKind) *RowValidator {
	v := &RowValidator{}
	for i, c := range target.Columns {
		if kind := kinds[c.Name]; kind == dialect.ColumnInteger || kind == dialect.ColumnNumeric {
			v.checks = append(v.checks, columnCheck{index: i, name: c.Name, kind: kind})
		}
	}
	return v
}

// Check returns a *types.RowError naming the first offending column. NULL
// passes every check.
func (v *RowValidator) Check(row int, rec types.Record) error {
	for _, c := range v.checks {
		val := rec[c.index]
		if val == nil {
			continue
		}
		var err error
		switch c.kind {
		case dialect.ColumnInteger:
			err = checkInteger(val)
		case dialect.ColumnNumeric:
			err = checkNumeric(val)
		}
		if err != nil {
			return &types.RowError{Row: row, Column: c.name, Err: fmt.Errorf("%w: %q", err, types.ToText(val))}
		}
	}
	return nil
}

func checkInteger(val any) error {
	switch v := val.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return nil
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return nil
		}
		return errNotInteger
	case float32:
		return checkInteger(float64(v))
	case string:
		if _, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err != nil {
			return errNotInteger
		}
		return nil
	}
	return errNotInteger
}

func checkNumeric(val any) error {
	switch v := val.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return errNotNumeric
		}
		return nil
	}
	return errNotNumeric
}
