package migrator

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/gomigrate/internal/dialect"
	"github.com/dbsmedya/gomigrate/internal/logger"
	"github.com/dbsmedya/gomigrate/internal/types"
)

const mysqlColumnsQuery = "FROM information_schema.COLUMNS"

func TestNewMaterializer_Validation(t *testing.T) {
	h, _ := mockHandle(t)

	_, err := NewMaterializer(nil, nil, logger.NewNop())
	assert.Error(t, err)
	_, err = NewMaterializer(h, nil, nil)
	assert.Error(t, err)

	m, err := NewMaterializer(h, nil, logger.NewNop())
	assert.NoError(t, err)
	assert.NotNil(t, m)
}

func TestEnsure_ExistingTableNoDDL(t *testing.T) {
	h, mock := mockHandle(t)
	m, err := NewMaterializer(h, nil, logger.NewNop())
	require.NoError(t, err)

	mock.ExpectQuery(mysqlColumnsQuery).
		WithArgs("", "people").
		WillReturnRows(sqlmock.NewRows([]string{"name", "type"}).
			AddRow("id", "int").
			AddRow("name", "varchar"))

	status, err := m.Ensure(context.Background(), "people", types.NewSchema("id", "name", "email"), "id", true)
	require.NoError(t, err)
	assert.True(t, status.Existed)
	assert.False(t, status.Created)
	assert.Equal(t, []string{"email"}, status.MissingColumns)
	assert.Equal(t, "int", status.Columns.Columns[0].DeclaredType)
	assert.NoError(t, mock.ExpectationsWereMet(), "no CREATE TABLE expected")
}

func TestEnsure_MissingWithoutCreate(t *testing.T) {
	h, mock := mockHandle(t)
	m, _ := NewMaterializer(h, nil, logger.NewNop())

	mock.ExpectQuery(mysqlColumnsQuery).
		WillReturnRows(sqlmock.NewRows([]string{"name", "type"}))

	_, err := m.Ensure(context.Background(), "people", types.NewSchema("id"), "id", false)
	assert.ErrorIs(t, err, types.ErrTargetSchemaMissing)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsure_CreatesTable(t *testing.T) {
	h, mock := mockHandle(t)
	m, _ := NewMaterializer(h, map[string]dialect.ColumnKind{"age": dialect.ColumnInteger}, logger.NewNop())

	mock.ExpectQuery(mysqlColumnsQuery).
		WillReturnRows(sqlmock.NewRows([]string{"name", "type"}))
	mock.ExpectExec(regexp.QuoteMeta(
		"CREATE TABLE `people` (`id` VARCHAR(255) NOT NULL, `name` TEXT, `age` BIGINT, PRIMARY KEY (`id`))")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	status, err := m.Ensure(context.Background(), "people", types.NewSchema("id", "name", "age"), "id", true)
	require.NoError(t, err)
	assert.True(t, status.Created)
	assert.False(t, status.WouldCreate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsure_CreateFails(t *testing.T) {
	h, mock := mockHandle(t)
	m, _ := NewMaterializer(h, nil, logger.NewNop())

	mock.ExpectQuery(mysqlColumnsQuery).
		WillReturnRows(sqlmock.NewRows([]string{"name", "type"}))
	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("access denied"))

	_, err := m.Ensure(context.Background(), "people", types.NewSchema("id"), "id", true)
	assert.ErrorContains(t, err, "access denied")
}

func TestInspect_NoDDL(t *testing.T) {
	h, mock := mockHandle(t)
	m, _ := NewMaterializer(h, nil, logger.NewNop())

	mock.ExpectQuery(mysqlColumnsQuery).
		WillReturnRows(sqlmock.NewRows([]string{"name", "type"}))

	status, err := m.Inspect(context.Background(), "people", types.NewSchema("id"), "id", true)
	require.NoError(t, err)
	assert.True(t, status.WouldCreate)
	assert.False(t, status.Created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInspect_RejectsBadIdentifiers(t *testing.T) {
	h, _ := mockHandle(t)
	m, _ := NewMaterializer(h, nil, logger.NewNop())

	_, err := m.Inspect(context.Background(), "people", types.NewSchema("id", "name; DROP TABLE x"), "id", true)
	assert.Error(t, err)
}

func TestEnsure_SQLiteRoundTrip(t *testing.T) {
	h := sqliteHandle(t)
	m, _ := NewMaterializer(h, map[string]dialect.ColumnKind{"id": dialect.ColumnInteger}, logger.NewNop())

	schema := types.NewSchema("id", "name")
	status, err := m.Ensure(context.Background(), "people", schema, "id", true)
	require.NoError(t, err)
	assert.True(t, status.Created)

	cols, err := h.Columns(context.Background(), "people")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, cols.Names())
	assert.Equal(t, "INTEGER", cols.Columns[0].DeclaredType)

	status, err = m.Ensure(context.Background(), "people", schema, "id", true)
	require.NoError(t, err)
	assert.True(t, status.Existed)
}
