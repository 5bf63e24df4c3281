// Package verifier checks that committed rows actually landed in the target
// table, either by counting keys or by comparing content digests.
package verifier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"sort"
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/dbsmedya/gomigrate/internal/database"
	"github.com/dbsmedya/gomigrate/internal/dialect"
	"github.com/dbsmedya/gomigrate/internal/logger"
	"github.com/dbsmedya/gomigrate/internal/sqlutil"
	"github.com/dbsmedya/gomigrate/internal/types"
)

// Method defines how to verify a load.
type Method string

const (
	// MethodCount checks every committed key is present (fast)
	MethodCount Method = "count"
	// MethodSHA256 compares a SHA-256 digest of committed and stored rows
	MethodSHA256 Method = "sha256"
	// MethodXXH3 is like MethodSHA256 with a faster non-cryptographic hash
	MethodXXH3 Method = "xxh3"
	// MethodSkip skips verification entirely
	MethodSkip Method = "skip"
)

// nullMarker stands in for NULL in row serialization so it differs from "".
const nullMarker = "\\N"

// Result holds the outcome of one verification.
type Result struct {
	Method       Method `yaml:"method" json:"method"`
	Expected     int64  `yaml:"expected" json:"expected"`
	Found        int64  `yaml:"found" json:"found"`
	ExpectedHash string `yaml:"expected_hash,omitempty" json:"expected_hash,omitempty"`
	FoundHash    string `yaml:"found_hash,omitempty" json:"found_hash,omitempty"`
	Match        bool   `yaml:"match" json:"match"`
	Message      string `yaml:"message,omitempty" json:"message,omitempty"`
}

// Verifier compares committed records with the rows stored in the target.
type Verifier struct {
	target    *database.Handle
	table     string
	pk        string
	columns   types.Schema
	kinds     []dialect.ColumnKind
	pkIndex   int
	method    Method
	chunkSize int
	logger    *logger.Logger
}

// NewVerifier creates a verifier for one target table. columns is the mapped
// schema of the committed records; kinds says how the target compares each
// column, so "30.50" and a stored 30.5 digest alike. Unlisted columns are text.
func NewVerifier(target *database.Handle, table, pk string, columns types.Schema, kinds map[string]dialect.ColumnKind, method Method, log *logger.Logger) (*Verifier, error) {
	if target == nil {
		return nil, errors.New("target handle is nil")
	}
	if log == nil {
		log = logger.NewDefault()
	}
	if method == "" {
		method = MethodCount
	}
	switch method {
	case MethodCount, MethodSHA256, MethodXXH3, MethodSkip:
	default:
		return nil, fmt.Errorf("unknown verification method %q", method)
	}
	if err := sqlutil.ValidateIdentifiers(append([]string{table, pk}, columns.Names()...)...); err != nil {
		return nil, err
	}
	pkIndex := columns.IndexFold(pk)
	if pkIndex < 0 {
		return nil, fmt.Errorf("%w: %s", types.ErrInvalidPrimaryKey, pk)
	}

	colKinds := make([]dialect.ColumnKind, columns.Len())
	for i, c := range columns.Columns {
		colKinds[i] = dialect.ColumnText
		if k, ok := kinds[c.Name]; ok {
			colKinds[i] = k
		}
	}

	chunkSize := 1000
	if limit := target.Dialect.MaxParams(); limit < chunkSize {
		chunkSize = limit
	}

	return &Verifier{
		target:    target,
		table:     table,
		pk:        pk,
		columns:   columns,
		kinds:     colKinds,
		pkIndex:   pkIndex,
		method:    method,
		chunkSize: chunkSize,
		logger:    log.WithTable(table),
	}, nil
}

// Verify checks the committed records. A mismatch is reported in the Result;
// the error is reserved for queries that could not run.
func (v *Verifier) Verify(ctx context.Context, committed []types.KeyedRecord) (*Result, error) {
	if v.method == MethodSkip {
		v.logger.Info("Verification SKIPPED (method=skip)")
		return &Result{Method: MethodSkip, Match: true}, nil
	}

	v.logger.Infof("Starting verification (method=%s) of %d rows", v.method, len(committed))

	var (
		res *Result
		err error
	)
	switch v.method {
	case MethodCount:
		res, err = v.verifyByCount(ctx, committed)
	default:
		res, err = v.verifyByHash(ctx, committed)
	}
	if err != nil {
		return nil, err
	}

	if res.Match {
		v.logger.Infow("Verification passed", "method", v.method, "rows", res.Expected)
	} else {
		v.logger.Warnw("Verification mismatch",
			"method", v.method,
			"expected", res.Expected,
			"found", res.Found,
			"message", res.Message)
	}
	return res, nil
}

func (v *Verifier) verifyByCount(ctx context.Context, committed []types.KeyedRecord) (*Result, error) {
	res := &Result{Method: MethodCount, Expected: int64(len(committed))}
	d := v.target.Dialect

	for start := 0; start < len(committed); start += v.chunkSize {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("verification interrupted: %w", err)
		}
		end := min(start+v.chunkSize, len(committed))
		args := v.keyArgs(committed[start:end])

		query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s IN (%s)",
			v.target.Table(v.table),
			d.QuoteIdentifier(v.pk),
			sqlutil.Placeholders(1, len(args), d.Placeholder))

		var n int64
		if err := v.target.DB.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count rows in %s: %w", v.table, err)
		}
		res.Found += n
	}

	res.Match = res.Found == res.Expected
	if !res.Match {
		res.Message = fmt.Sprintf("%d committed keys missing from %s", res.Expected-res.Found, v.table)
	}
	return res, nil
}

func (v *Verifier) newHash() hash.Hash {
	if v.method == MethodXXH3 {
		return xxh3.New()
	}
	return sha256.New()
}

// verifyByHash digests the committed records and the stored rows with the
// same keys, both serialized column by column in key order.
func (v *Verifier) verifyByHash(ctx context.Context, committed []types.KeyedRecord) (*Result, error) {
	res := &Result{Method: v.method, Expected: int64(len(committed))}

	sorted := make([]types.KeyedRecord, len(committed))
	copy(sorted, committed)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })

	stored, err := v.fetchRows(ctx, sorted)
	if err != nil {
		return nil, err
	}
	res.Found = int64(len(stored))

	names := v.columns.Names()
	expected := v.newHash()
	found := v.newHash()
	for _, r := range sorted {
		expected.Write([]byte(serializeRow(names, v.kinds, r.Values)))
		expected.Write([]byte{'\n'})
		if row, ok := stored[r.Key]; ok {
			// The key matched under the target's collation; compare the rest.
			row = append(types.Record(nil), row...)
			row[v.pkIndex] = r.Values[v.pkIndex]
			found.Write([]byte(serializeRow(names, v.kinds, row)))
		}
		found.Write([]byte{'\n'})
	}

	res.ExpectedHash = hex.EncodeToString(expected.Sum(nil))
	res.FoundHash = hex.EncodeToString(found.Sum(nil))
	res.Match = res.ExpectedHash == res.FoundHash
	switch {
	case res.Found != res.Expected:
		res.Message = fmt.Sprintf("%d committed keys missing from %s", res.Expected-res.Found, v.table)
	case !res.Match:
		res.Message = fmt.Sprintf("stored content of %s differs from committed records", v.table)
	}
	return res, nil
}

// fetchRows reads the mapped columns of the stored rows, keyed by the
// committed records' keys.
func (v *Verifier) fetchRows(ctx context.Context, records []types.KeyedRecord) (map[string]types.Record, error) {
	d := v.target.Dialect
	cols := sqlutil.QuoteList(v.columns.Names(), d.QuoteIdentifier)
	out := make(map[string]types.Record, len(records))

	for start := 0; start < len(records); start += v.chunkSize {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("verification interrupted: %w", err)
		}
		end := min(start+v.chunkSize, len(records))
		args := v.keyArgs(records[start:end])
		keys := make([]string, 0, end-start)
		for _, r := range records[start:end] {
			keys = append(keys, r.Key)
		}

		query := fmt.Sprintf("SELECT %s FROM %s WHERE %s IN (%s)",
			cols,
			v.target.Table(v.table),
			d.QuoteIdentifier(v.pk),
			sqlutil.Placeholders(1, len(args), d.Placeholder))

		if err := v.scanInto(ctx, query, args, types.NewKeyIndex(keys), out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (v *Verifier) scanInto(ctx context.Context, query string, args []any, committed *types.KeyIndex, out map[string]types.Record) error {
	rows, err := v.target.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to read rows from %s: %w", v.table, err)
	}
	defer rows.Close()

	width := v.columns.Len()
	for rows.Next() {
		values := make([]any, width)
		ptrs := make([]any, width)
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("failed to scan row: %w", err)
		}
		rec := make(types.Record, width)
		for i, val := range values {
			rec[i] = types.NormalizeValue(val)
		}
		key, ok := v.kinds[v.pkIndex].CanonicalKey(rec[v.pkIndex])
		if !ok {
			continue
		}
		for _, k := range committed.Match(key) {
			out[k] = rec
		}
	}
	return rows.Err()
}

func (v *Verifier) keyArgs(records []types.KeyedRecord) []any {
	args := make([]any, len(records))
	for i, r := range records {
		args[i] = r.Values[v.pkIndex]
	}
	return args
}

// serializeRow renders a row as col=value pairs separated by NUL bytes.
// Values are written in the canonical form of their column kind.
func serializeRow(columns []string, kinds []dialect.ColumnKind, values types.Record) string {
	parts := make([]string, len(columns))
	for i, col := range columns {
		val := nullMarker
		if values[i] != nil {
			val = kinds[i].Canonical(values[i])
		}
		parts[i] = col + "=" + val
	}
	return strings.Join(parts, "\x00")
}
