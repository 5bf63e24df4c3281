package migrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dbsmedya/gomigrate/internal/database"
	"github.com/dbsmedya/gomigrate/internal/dialect"
	"github.com/dbsmedya/gomigrate/internal/sqlutil"
	"github.com/dbsmedya/gomigrate/internal/types"
)

// Rekey replaces each record's key with its canonical form under kind, so
// "07" and "7" name the same integer key.
func Rekey(records []types.KeyedRecord, pkIndex int, kind dialect.ColumnKind) {
	for i := range records {
		if key, ok := kind.CanonicalKey(records[i].Values[pkIndex]); ok {
			records[i].Key = key
		}
	}
}

// Dedupe drops earlier records that share a key with a later one. The result
// is ordered by the position of each key's last occurrence. It also returns
// the number of records dropped.
func Dedupe(records []types.KeyedRecord) ([]types.KeyedRecord, int) {
	last := make(map[string]int, len(records))
	for i, r := range records {
		last[r.Key] = i
	}
	if len(last) == len(records) {
		return records, 0
	}

	out := make([]types.KeyedRecord, 0, len(last))
	for i, r := range records {
		if last[r.Key] == i {
			out = append(out, r)
		}
	}
	return out, len(records) - len(out)
}

// ConflictSet holds the existing target rows whose key is also incoming.
type ConflictSet struct {
	Columns  []string                // Target column names, as returned by the lookup
	Existing map[string]types.Record // Incoming key -> existing target row
}

// Len returns the number of conflicting keys.
func (c *ConflictSet) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Existing)
}

// Contains reports whether key exists in the target.
func (c *ConflictSet) Contains(key string) bool {
	if c == nil {
		return false
	}
	_, ok := c.Existing[key]
	return ok
}

// Get returns the existing target row for key.
func (c *ConflictSet) Get(key string) (types.Record, bool) {
	if c == nil {
		return nil, false
	}
	r, ok := c.Existing[key]
	return r, ok
}

// Detector looks up incoming keys in the target table.
type Detector struct {
	target    *database.Handle
	schema    types.Schema
	keyKind   dialect.ColumnKind
	batchSize int
}

// NewDetector creates a detector for records shaped like schema.
func NewDetector(target *database.Handle, schema types.Schema) (*Detector, error) {
	if target == nil {
		return nil, errors.New("target handle is nil")
	}
	return &Detector{
		target:    target,
		schema:    schema,
		keyKind:   dialect.ColumnText,
		batchSize: target.Dialect.MaxParams(),
	}, nil
}

// SetKeyKind sets the kind stored keys are canonicalized by. It must match
// the kind the incoming keys were built with (see Rekey).
func (d *Detector) SetKeyKind(kind dialect.ColumnKind) {
	d.keyKind = kind
}

// Detect returns the existing target rows whose primary key matches an
// incoming record. Records must already be deduplicated. Keys are looked up
// with IN lists as large as the engine's parameter limit allows.
func (d *Detector) Detect(ctx context.Context, table, pk string, records []types.KeyedRecord) (*ConflictSet, error) {
	if err := sqlutil.ValidateIdentifiers(table, pk); err != nil {
		return nil, err
	}
	pkIndex := d.schema.IndexFold(pk)
	if pkIndex < 0 {
		return nil, fmt.Errorf("%w: %s", types.ErrInvalidPrimaryKey, pk)
	}

	set := &ConflictSet{Existing: make(map[string]types.Record)}
	for start := 0; start < len(records); start += d.batchSize {
		end := start + d.batchSize
		if end > len(records) {
			end = len(records)
		}
		args := make([]any, 0, end-start)
		keys := make([]string, 0, end-start)
		for _, r := range records[start:end] {
			args = append(args, r.Values[pkIndex])
			keys = append(keys, r.Key)
		}
		if err := d.lookup(ctx, table, pk, args, types.NewKeyIndex(keys), set); err != nil {
			return nil, err
		}
	}
	return set, nil
}

// lookup stores each returned row under the incoming keys it matched. The
// engine compares by value and collation, so the stored key text can differ
// from the incoming one ("07" finds 7, "abc" may find "ABC").
func (d *Detector) lookup(ctx context.Context, table, pk string, args []any, incoming *types.KeyIndex, set *ConflictSet) error {
	dl := d.target.Dialect
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s IN (%s)",
		d.target.Table(table),
		dl.QuoteIdentifier(pk),
		sqlutil.Placeholders(1, len(args), dl.Placeholder))

	rows, err := d.target.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to look up existing keys in %s: %w", table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("failed to read lookup columns: %w", err)
	}
	keyCol := -1
	for i, c := range columns {
		if strings.EqualFold(c, pk) {
			keyCol = i
			break
		}
	}
	if keyCol < 0 {
		return fmt.Errorf("target table %s has no column %s", table, pk)
	}
	set.Columns = columns

	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("failed to scan existing row: %w", err)
		}
		rec := make(types.Record, len(values))
		for i, v := range values {
			rec[i] = types.NormalizeValue(v)
		}
		key, ok := d.keyKind.CanonicalKey(rec[keyCol])
		if !ok {
			continue
		}
		for _, k := range incoming.Match(key) {
			set.Existing[k] = rec
		}
	}
	return rows.Err()
}
