package dialect

import (
	"math"
	"strconv"
	"strings"

	"github.com/dbsmedya/gomigrate/internal/types"
)

// KindOfDeclaredType classifies a catalog type name (INTEGER, int(11), bigint,
// DECIMAL(10,2), double precision, ...) the way SQLite assigns affinity.
// Anything that is neither integer nor numeric is text.
func KindOfDeclaredType(declared string) ColumnKind {
	t := strings.ToUpper(declared)
	switch {
	case strings.Contains(t, "POINT"), strings.Contains(t, "INTERVAL"):
		return ColumnText
	case strings.Contains(t, "INT"):
		return ColumnInteger
	}
	for _, marker := range []string{"DEC", "NUMERIC", "REAL", "FLOA", "DOUB", "MONEY"} {
		if strings.Contains(t, marker) {
			return ColumnNumeric
		}
	}
	return ColumnText
}

// Canonical renders v as the text the engine's value comparison implies for a
// column of kind k: "07", 7 and 7.0 are all "7" in an integer column, "30.50"
// and 30.5 are "30.5" in a numeric one. Values that do not parse, and text
// columns, keep their plain text form. nil renders as "".
func (k ColumnKind) Canonical(v any) string {
	s := types.ToText(v)
	switch k {
	case ColumnInteger:
		trimmed := strings.TrimSpace(s)
		if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return strconv.FormatInt(n, 10)
		}
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil && f == math.Trunc(f) && math.Abs(f) < 1<<63 {
			return strconv.FormatInt(int64(f), 10)
		}
	case ColumnNumeric:
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			return strconv.FormatFloat(f, 'g', -1, 64)
		}
	}
	return s
}

// CanonicalKey is Canonical for primary key values. It returns false for NULL
// and empty keys.
func (k ColumnKind) CanonicalKey(v any) (string, bool) {
	if _, ok := types.KeyString(v); !ok {
		return "", false
	}
	return k.Canonical(v), true
}
