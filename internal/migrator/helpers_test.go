package migrator

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	_ "modernc.org/sqlite"

	"github.com/dbsmedya/gomigrate/internal/database"
	"github.com/dbsmedya/gomigrate/internal/dialect"
	"github.com/dbsmedya/gomigrate/internal/logger"
	"github.com/dbsmedya/gomigrate/internal/types"
)

func mockHandle(t *testing.T) (*database.Handle, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	h, err := database.NewHandle(db, dialect.MySQL{}, "")
	require.NoError(t, err)
	return h, mock
}

// sqliteHandle opens a fresh SQLite database and runs the given statements.
func sqliteHandle(t *testing.T, stmts ...string) *database.Handle {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	// One connection serializes concurrent chunk writers.
	db.SetMaxOpenConns(1)

	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}

	h, err := database.NewHandle(db, dialect.SQLite{}, "")
	require.NoError(t, err)
	return h
}

// keyed builds records whose first value is the primary key.
func keyed(rows ...[]any) []types.KeyedRecord {
	out := make([]types.KeyedRecord, len(rows))
	for i, r := range rows {
		key, _ := types.KeyString(r[0])
		out[i] = types.KeyedRecord{Key: key, Row: i + 1, Values: types.Record(r)}
	}
	return out
}

func keysOf(records []types.KeyedRecord) []string {
	keys := make([]string, len(records))
	for i, r := range records {
		keys[i] = r.Key
	}
	return keys
}

// smallParams shrinks the parameter limit to exercise statement splitting.
type smallParams struct {
	dialect.MySQL
	limit int
}

func (d smallParams) MaxParams() int { return d.limit }

func newObservedLogger() (*logger.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return logger.FromCore(core), logs
}
