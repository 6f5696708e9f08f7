package dialect

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/forbearing/crudgate/sqlident"
	"gorm.io/gorm"
)

// MySQL implements Dialect for MySQL-family databases (MySQL,
// MariaDB). Identifiers are backtick-quoted.
type MySQL struct{}

func (MySQL) Name() string { return "mysql" }

func (MySQL) Quote(raw string) (sqlident.QuotedIdent, error) {
	if err := validateRaw(raw); err != nil {
		return sqlident.QuotedIdent{}, err
	}
	if strings.Contains(raw, "`") {
		return sqlident.QuotedIdent{}, errors.Newf("identifier contains backtick: %q", raw)
	}
	return sqlident.New(raw, "`"+raw+"`", "mysql"), nil
}

func (MySQL) Placeholder(int) string { return "?" }

func (MySQL) SupportsLastInsertID() bool { return true }

func (MySQL) SupportsReturning() bool { return false }

func (d MySQL) ListTables(ctx context.Context, db *gorm.DB) ([]string, error) {
	rows, err := db.WithContext(ctx).Raw("SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'").Rows()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list tables")
	}
	defer rows.Close()
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, "failed to scan table name")
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func (d MySQL) ListColumns(ctx context.Context, db *gorm.DB, table string) ([]Column, error) {
	rows, err := db.WithContext(ctx).Raw(
		`SELECT column_name, data_type, is_nullable, column_default
		 FROM information_schema.columns
		 WHERE table_schema = DATABASE() AND table_name = ?
		 ORDER BY ordinal_position`, table).Rows()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list columns")
	}
	return scanColumns(rows)
}

func (d MySQL) PrimaryKey(ctx context.Context, db *gorm.DB, table string) (string, error) {
	var pk string
	row := db.WithContext(ctx).Raw(
		`SELECT k.column_name
		 FROM information_schema.table_constraints t
		 JOIN information_schema.key_column_usage k
		   ON t.constraint_name = k.constraint_name AND t.table_schema = k.table_schema AND t.table_name = k.table_name
		 WHERE t.table_schema = DATABASE() AND t.table_name = ? AND t.constraint_type = 'PRIMARY KEY'
		 LIMIT 1`, table).Row()
	if err := row.Scan(&pk); err != nil {
		return "", nil //nolint:nilerr // absence of a PK is valid, not an error
	}
	return pk, nil
}
