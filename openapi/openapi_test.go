package openapi_test

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/forbearing/crudgate/dialect"
	"github.com/forbearing/crudgate/openapi"
	"github.com/forbearing/crudgate/schema"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func newMockInspector(t *testing.T) *schema.Inspector {
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
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("widgets"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT column_name, data_type, is_nullable, column_default")).
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable", "column_default"}).
			AddRow("id", "bigint", "NO", nil).
			AddRow("label", "varchar", "YES", nil))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT k.column_name")).
		WillReturnRows(sqlmock.NewRows([]string{"column_name"}).AddRow("id"))

	return schema.New(dialect.MySQL{}, gdb)
}

func TestBuild_IncludesCrudPathAndTableSchema(t *testing.T) {
	inspect := newMockInspector(t)

	doc, err := openapi.Build(context.Background(), inspect, "crudgate", "1.0")
	require.NoError(t, err)

	require.NotNil(t, doc.Paths.Find("/api/crud"))

	sr, ok := doc.Components.Schemas["widgets"]
	require.True(t, ok)
	require.NotNil(t, sr.Value)
	require.Contains(t, sr.Value.Properties, "id")
	require.Contains(t, sr.Value.Properties, "label")
	require.Equal(t, []string{"id"}, sr.Value.Required)
}
