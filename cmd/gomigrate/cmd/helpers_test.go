package cmd

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// fixture is a config file with a SQLite target and one CSV job.
type fixture struct {
	dir        string
	configPath string
	targetPath string
	csvPath    string
}

const usersCSV = "id,name,age\n1,Ada,36\n2,Linus,28\n3,Grace,45\n"

// newFixture writes a config whose users job loads a CSV into a SQLite
// target. extra is appended under the users job.
func newFixture(t *testing.T, extra string) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		dir:        dir,
		configPath: filepath.Join(dir, "migrate.yaml"),
		targetPath: filepath.Join(dir, "target.db"),
		csvPath:    filepath.Join(dir, "users.csv"),
	}
	require.NoError(t, os.WriteFile(f.csvPath, []byte(usersCSV), 0644))

	content := fmt.Sprintf(`target:
  engine: sqlite
  path: %s

logging:
  level: error
  output: stderr

jobs:
  users:
    source:
      kind: csv
      path: %s
    target_table: users
    primary_key: id
    column_types:
      id: integer
%s`, f.targetPath, f.csvPath, extra)
	require.NoError(t, os.WriteFile(f.configPath, []byte(content), 0644))

	useConfig(t, f.configPath)
	return f
}

// useConfig points the --config flag at path for the duration of the test.
func useConfig(t *testing.T, path string) {
	t.Helper()
	original := cfgFile
	cfgFile = path
	t.Cleanup(func() { cfgFile = original })
}

// exec runs a statement against the fixture's target database.
func (f *fixture) exec(t *testing.T, stmts ...string) {
	t.Helper()
	db, err := sql.Open("sqlite", f.targetPath)
	require.NoError(t, err)
	defer db.Close()
	for _, s := range stmts {
		_, err := db.Exec(s)
		require.NoError(t, err)
	}
}

// names returns id -> name from the target users table.
func (f *fixture) names(t *testing.T) map[int]string {
	t.Helper()
	db, err := sql.Open("sqlite", f.targetPath)
	require.NoError(t, err)
	defer db.Close()

	rows, err := db.Query("SELECT id, name FROM users")
	require.NoError(t, err)
	defer rows.Close()

	out := map[int]string{}
	for rows.Next() {
		var (
			id   int
			name string
		)
		require.NoError(t, rows.Scan(&id, &name))
		out[id] = name
	}
	require.NoError(t, rows.Err())
	return out
}

// tableExists reports whether the fixture's target has the users table.
func (f *fixture) tableExists(t *testing.T) bool {
	t.Helper()
	db, err := sql.Open("sqlite", f.targetPath)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'users'").Scan(&n))
	return n == 1
}
