package verifier

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	_ "modernc.org/sqlite"

	"github.com/dbsmedya/gomigrate/internal/database"
	"github.com/dbsmedya/gomigrate/internal/dialect"
	"github.com/dbsmedya/gomigrate/internal/logger"
	"github.com/dbsmedya/gomigrate/internal/types"
)

// ============================================================================
// Test Helpers
// ============================================================================

var testColumns = types.NewSchema("id", "name")

func mockHandle(t *testing.T) (*database.Handle, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	h, err := database.NewHandle(db, dialect.MySQL{}, "")
	if err != nil {
		t.Fatalf("NewHandle failed: %v", err)
	}
	return h, mock
}

func sqliteHandle(t *testing.T) *database.Handle {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "target.db"))
	if err != nil {
		t.Fatalf("Failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	stmts := []string{
		`CREATE TABLE people (id INTEGER PRIMARY KEY, name TEXT)`,
		`INSERT INTO people (id, name) VALUES (1, 'Ann'), (2, 'Bob'), (3, NULL)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("Failed to seed sqlite: %v", err)
		}
	}

	h, err := database.NewHandle(db, dialect.SQLite{}, "")
	if err != nil {
		t.Fatalf("NewHandle failed: %v", err)
	}
	return h
}

func committed(rows ...[]any) []types.KeyedRecord {
	out := make([]types.KeyedRecord, len(rows))
	for i, r := range rows {
		key, _ := types.KeyString(r[0])
		out[i] = types.KeyedRecord{Key: key, Row: i + 1, Values: types.Record(r)}
	}
	return out
}

// ============================================================================
// NewVerifier Tests
// ============================================================================

func TestNewVerifier_Success(t *testing.T) {
	h, _ := mockHandle(t)

	v, err := NewVerifier(h, "people", "id", testColumns, nil, "", logger.NewNop())
	if err != nil {
		t.Fatalf("NewVerifier failed: %v", err)
	}
	if v.method != MethodCount {
		t.Errorf("Expected default method %s, got %s", MethodCount, v.method)
	}
	if v.chunkSize != 1000 {
		t.Errorf("Expected chunk size 1000, got %d", v.chunkSize)
	}
}

func TestNewVerifier_ChunkSizeBoundedByParams(t *testing.T) {
	db, _, _ := sqlmock.New()
	defer db.Close()
	h, _ := database.NewHandle(db, smallDialect{dialect.MySQL{}}, "")

	v, err := NewVerifier(h, "people", "id", testColumns, nil, MethodCount, logger.NewNop())
	if err != nil {
		t.Fatalf("NewVerifier failed: %v", err)
	}
	if v.chunkSize != 2 {
		t.Errorf("Expected chunk size 2, got %d", v.chunkSize)
	}
}

func TestNewVerifier_Errors(t *testing.T) {
	h, _ := mockHandle(t)

	tests := []struct {
		name    string
		handle  *database.Handle
		table   string
		pk      string
		method  Method
		wantErr error
	}{
		{"nil handle", nil, "people", "id", MethodCount, nil},
		{"bad method", h, "people", "id", "md5", nil},
		{"bad table", h, "people;drop", "id", MethodCount, nil},
		{"pk not mapped", h, "people", "uuid", MethodCount, types.ErrInvalidPrimaryKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewVerifier(tt.handle, tt.table, tt.pk, testColumns, nil, tt.method, logger.NewNop())
			if err == nil {
				t.Fatal("Expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

// ============================================================================
// Count Verification Tests
// ============================================================================

func TestVerify_CountMatch(t *testing.T) {
	h, mock := mockHandle(t)
	v, _ := NewVerifier(h, "people", "id", testColumns, nil, MethodCount, logger.NewNop())

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM `people` WHERE `id` IN (?, ?)")).
		WithArgs(int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	res, err := v.Verify(context.Background(), committed([]any{int64(1), "Ann"}, []any{int64(2), "Bob"}))
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !res.Match || res.Expected != 2 || res.Found != 2 {
		t.Errorf("Unexpected result: %+v", res)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestVerify_CountMismatch(t *testing.T) {
	h, mock := mockHandle(t)
	v, _ := NewVerifier(h, "people", "id", testColumns, nil, MethodCount, logger.NewNop())

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	res, err := v.Verify(context.Background(), committed([]any{int64(1), "Ann"}, []any{int64(2), "Bob"}))
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if res.Match {
		t.Error("Expected mismatch")
	}
	if res.Message == "" {
		t.Error("Expected a mismatch message")
	}
}

func TestVerify_CountQueryError(t *testing.T) {
	h, mock := mockHandle(t)
	v, _ := NewVerifier(h, "people", "id", testColumns, nil, MethodCount, logger.NewNop())

	mock.ExpectQuery("SELECT COUNT").WillReturnError(errors.New("boom"))

	if _, err := v.Verify(context.Background(), committed([]any{int64(1), "Ann"})); err == nil {
		t.Fatal("Expected error")
	}
}

func TestVerify_NothingCommitted(t *testing.T) {
	h, mock := mockHandle(t)
	v, _ := NewVerifier(h, "people", "id", testColumns, nil, MethodCount, logger.NewNop())

	res, err := v.Verify(context.Background(), nil)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !res.Match {
		t.Errorf("Expected match for empty load: %+v", res)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("No query expected: %v", err)
	}
}

func TestVerify_Skip(t *testing.T) {
	h, _ := mockHandle(t)
	v, _ := NewVerifier(h, "people", "id", testColumns, nil, MethodSkip, logger.NewNop())

	res, err := v.Verify(context.Background(), committed([]any{int64(1), "Ann"}))
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if res.Method != MethodSkip || !res.Match {
		t.Errorf("Unexpected result: %+v", res)
	}
}

// ============================================================================
// Hash Verification Tests
// ============================================================================

func TestVerify_HashMatch(t *testing.T) {
	for _, method := range []Method{MethodSHA256, MethodXXH3} {
		t.Run(string(method), func(t *testing.T) {
			h := sqliteHandle(t)
			v, err := NewVerifier(h, "people", "id", testColumns, nil, method, logger.NewNop())
			if err != nil {
				t.Fatalf("NewVerifier failed: %v", err)
			}

			// Values as they came from a text file: keys are strings.
			res, err := v.Verify(context.Background(), committed(
				[]any{"2", "Bob"},
				[]any{"1", "Ann"},
				[]any{"3", nil},
			))
			if err != nil {
				t.Fatalf("Verify failed: %v", err)
			}
			if !res.Match {
				t.Errorf("Expected match: %+v", res)
			}
			if res.ExpectedHash == "" || res.ExpectedHash != res.FoundHash {
				t.Errorf("Expected equal non-empty digests: %+v", res)
			}
		})
	}
}

func TestVerify_HashContentMismatch(t *testing.T) {
	h := sqliteHandle(t)
	v, _ := NewVerifier(h, "people", "id", testColumns, nil, MethodSHA256, logger.NewNop())

	res, err := v.Verify(context.Background(), committed([]any{int64(1), "Anne"}))
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if res.Match {
		t.Error("Expected mismatch")
	}
	if res.Found != 1 {
		t.Errorf("Expected 1 stored row, got %d", res.Found)
	}
}

func TestVerify_HashMissingRow(t *testing.T) {
	h := sqliteHandle(t)
	v, _ := NewVerifier(h, "people", "id", testColumns, nil, MethodXXH3, logger.NewNop())

	res, err := v.Verify(context.Background(), committed([]any{int64(1), "Ann"}, []any{int64(9), "Zed"}))
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if res.Match {
		t.Error("Expected mismatch")
	}
	if res.Expected != 2 || res.Found != 1 {
		t.Errorf("Unexpected counts: %+v", res)
	}
}

func TestSerializeRow_DistinguishesNull(t *testing.T) {
	cols := []string{"id", "name"}
	kinds := []dialect.ColumnKind{dialect.ColumnText, dialect.ColumnText}
	withNull := serializeRow(cols, kinds, types.Record{int64(1), nil})
	withEmpty := serializeRow(cols, kinds, types.Record{int64(1), ""})
	if withNull == withEmpty {
		t.Error("NULL and empty string must serialize differently")
	}
	if got := serializeRow(cols, kinds, types.Record{int64(1), "a"}); got != "id=1\x00name=a" {
		t.Errorf("Unexpected serialization %q", got)
	}
}

func TestSerializeRow_CanonicalByKind(t *testing.T) {
	cols := []string{"id", "price", "code"}
	kinds := []dialect.ColumnKind{dialect.ColumnInteger, dialect.ColumnNumeric, dialect.ColumnText}

	fromFile := serializeRow(cols, kinds, types.Record{"007", "30.50", "007"})
	stored := serializeRow(cols, kinds, types.Record{int64(7), 30.5, "007"})
	if fromFile != stored {
		t.Errorf("Expected %q, got %q", stored, fromFile)
	}
	if got := serializeRow(cols, kinds, types.Record{"7", "30.5", "07"}); got == stored {
		t.Error("Text columns must keep their spelling")
	}
}

func TestVerify_HashMatchesNumericByValue(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "prices.db"))
	if err != nil {
		t.Fatalf("Failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	for _, stmt := range []string{
		`CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT, price REAL)`,
		`INSERT INTO items VALUES (1, 'Ann', 30.5), (2, 'Bob', 1000)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("Failed to seed sqlite: %v", err)
		}
	}
	h, _ := database.NewHandle(db, dialect.SQLite{}, "")

	columns := types.NewSchema("id", "name", "price")
	kinds := map[string]dialect.ColumnKind{"id": dialect.ColumnInteger, "price": dialect.ColumnNumeric}

	for _, method := range []Method{MethodSHA256, MethodXXH3} {
		t.Run(string(method), func(t *testing.T) {
			v, err := NewVerifier(h, "items", "id", columns, kinds, method, logger.NewNop())
			if err != nil {
				t.Fatalf("NewVerifier failed: %v", err)
			}
			records := committed(
				[]any{"1", "Ann", "30.50"},
				[]any{"2", "Bob", "1e3"},
			)
			res, err := v.Verify(context.Background(), records)
			if err != nil {
				t.Fatalf("Verify failed: %v", err)
			}
			if !res.Match {
				t.Errorf("Expected match: %+v", res)
			}
		})
	}
}

func TestVerify_HashKeysMatchAcrossSpellings(t *testing.T) {
	h := sqliteHandle(t)
	kinds := map[string]dialect.ColumnKind{"id": dialect.ColumnInteger}
	v, _ := NewVerifier(h, "people", "id", testColumns, kinds, MethodSHA256, logger.NewNop())

	// Keys are canonical, the values keep the spelling read from the file.
	records := []types.KeyedRecord{
		{Key: "1", Row: 1, Values: types.Record{"01", "Ann"}},
		{Key: "2", Row: 2, Values: types.Record{"002", "Bob"}},
	}
	res, err := v.Verify(context.Background(), records)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !res.Match || res.Found != 2 {
		t.Errorf("Expected match on 2 rows: %+v", res)
	}
}

// smallDialect shrinks the parameter limit to exercise chunking.
type smallDialect struct {
	dialect.MySQL
}

func (smallDialect) MaxParams() int { return 2 }
