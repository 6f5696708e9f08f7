package dialect

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/forbearing/crudgate/sqlident"
	"gorm.io/gorm"
)

// Postgres implements Dialect for PostgreSQL. Identifiers are
// double-quoted; bound parameters use positional $N markers.
type Postgres struct{}

func (Postgres) Name() string { return "postgres" }

func (Postgres) Quote(raw string) (sqlident.QuotedIdent, error) {
	if err := validateRaw(raw); err != nil {
		return sqlident.QuotedIdent{}, err
	}
	if strings.Contains(raw, `"`) {
		return sqlident.QuotedIdent{}, errors.Newf("identifier contains double quote: %q", raw)
	}
	return sqlident.New(raw, `"`+raw+`"`, "postgres"), nil
}

func (Postgres) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (Postgres) SupportsLastInsertID() bool { return false }

func (Postgres) SupportsReturning() bool { return true }

func (d Postgres) ListTables(ctx context.Context, db *gorm.DB) ([]string, error) {
	rows, err := db.WithContext(ctx).Raw(
		`SELECT table_name FROM information_schema.tables
		 WHERE table_schema = 'public' AND table_type = 'BASE TABLE'`).Rows()
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

func (d Postgres) ListColumns(ctx context.Context, db *gorm.DB, table string) ([]Column, error) {
	rows, err := db.WithContext(ctx).Raw(
		`SELECT column_name, data_type, is_nullable, column_default
		 FROM information_schema.columns
		 WHERE table_schema = 'public' AND table_name = $1
		 ORDER BY ordinal_position`, table).Rows()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list columns")
	}
	return scanColumns(rows)
}

func (d Postgres) PrimaryKey(ctx context.Context, db *gorm.DB, table string) (string, error) {
	var pk string
	row := db.WithContext(ctx).Raw(
		`SELECT kcu.column_name
		 FROM information_schema.table_constraints tc
		 JOIN information_schema.key_column_usage kcu
		   ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		 WHERE tc.table_schema = 'public' AND tc.table_name = $1 AND tc.constraint_type = 'PRIMARY KEY'
		 LIMIT 1`, table).Row()
	if err := row.Scan(&pk); err != nil {
		return "", nil //nolint:nilerr // absence of a PK is valid, not an error
	}
	return pk, nil
}

