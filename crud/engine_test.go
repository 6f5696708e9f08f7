package crud_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/forbearing/crudgate/crud"
	"github.com/forbearing/crudgate/dialect"
	"github.com/forbearing/crudgate/schema"
	"github.com/forbearing/crudgate/validate"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func newMockEngine(t *testing.T) (*crud.Engine, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gdb, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT table_name FROM information_schema.tables")).
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("users"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT column_name, data_type, is_nullable, column_default")).
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable", "column_default"}).
			AddRow("id", "bigint", "NO", nil).
			AddRow("name", "varchar", "YES", nil).
			AddRow("age", "int", "YES", nil))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT k.column_name")).
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}).AddRow("id"))

	inspector := schema.New(dialect.MySQL{}, gdb)
	// warm the cache deterministically so later expectations in each
	// test don't race against lazy population order.
	_, err = inspector.Table(context.Background(), "users")
	require.NoError(t, err)

	return crud.New(gdb, inspector, validate.DefaultConfig()), mock
}

func TestEngine_List_ParameterizesFilterValue(t *testing.T) {
	eng, mock := newMockEngine(t)

	injected := "'; DROP TABLE users;--"
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `users` WHERE `name` = ? LIMIT ? OFFSET ?")).
		WithArgs(injected, 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "age"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM `users` WHERE `name` = ?")).
		WithArgs(injected).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	res, err := eng.List(context.Background(), "users", crud.ListOptions{
		Filter:   []validate.FilterTerm{{Column: "name", Op: validate.OpEq, Value: injected}},
		Page:     1,
		PageSize: 20,
	})
	require.NoError(t, err)
	require.EqualValues(t, 0, res.Meta.Total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_List_RejectsUnknownColumn(t *testing.T) {
	eng, _ := newMockEngine(t)
	_, err := eng.List(context.Background(), "users", crud.ListOptions{
		Filter: []validate.FilterTerm{{Column: "password_hash", Op: validate.OpEq, Value: "x"}},
	})
	require.Error(t, err)
}

func TestEngine_List_PaginationMath(t *testing.T) {
	eng, mock := newMockEngine(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `users` LIMIT ? OFFSET ?")).
		WithArgs(2, 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "age"}).
			AddRow(3, "c", 20).
			AddRow(4, "d", 21))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM `users`")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))

	res, err := eng.List(context.Background(), "users", crud.ListOptions{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, res.Data, 2)
	require.EqualValues(t, 5, res.Meta.Total)
	require.EqualValues(t, 3, res.Meta.Pages) // ceil(5/2)
}

func TestEngine_BulkCreate_RollsBackOnFailure(t *testing.T) {
	eng, mock := newMockEngine(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `users` (`name`) VALUES (?)")).
		WithArgs("A").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `users` (`name`) VALUES (?)")).
		WithArgs("A").WillReturnError(errors.New("Error 1062: Duplicate entry 'A' for key 'name'"))
	mock.ExpectRollback()

	_, err := eng.BulkCreate(context.Background(), "users", []map[string]any{
		{"name": "A"},
		{"name": "A"},
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
