// Package dialect abstracts the database-family-specific subset of SQL
// needed by the schema inspector and query builder: identifier
// quoting and the catalog queries used to enumerate tables, columns,
// and primary keys. gorm is used exclusively for connection-pool
// lifecycle management here (mirroring the teacher's
// database/postgres package); every dialect method issues hand-built,
// bound-parameter SQL through (*gorm.DB).Raw/.Exec, never gorm's
// struct mapping.
package dialect

import (
	"context"
	"database/sql"
	"regexp"

	"github.com/cockroachdb/errors"
	"github.com/forbearing/crudgate/sqlident"
	"gorm.io/gorm"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Column describes one column of a table as reported by the catalog.
type Column struct {
	Name     string
	Type     string
	Nullable bool
	Default  *string
}

// Dialect is implemented once per supported database family.
type Dialect interface {
	Name() string
	// Quote validates and quotes a raw identifier. It returns an error
	// for identifiers that fail the shared regex or that contain the
	// dialect's own quote character (defense in depth: Validator
	// rejects these first, Quote refuses to trust that alone).
	Quote(raw string) (sqlident.QuotedIdent, error)
	ListTables(ctx context.Context, db *gorm.DB) ([]string, error)
	ListColumns(ctx context.Context, db *gorm.DB, table string) ([]Column, error)
	PrimaryKey(ctx context.Context, db *gorm.DB, table string) (string, error)
	// Placeholder renders the nth (1-based) bound-parameter marker for
	// drivers using positional rather than named parameters.
	Placeholder(n int) string
	// SupportsLastInsertID reports whether the driver supports
	// sql.Result.LastInsertId() (MySQL does, Postgres does not and
	// requires RETURNING instead).
	SupportsLastInsertID() bool
	// SupportsReturning reports whether INSERT ... RETURNING is
	// available to recover a server-generated primary key when the
	// caller omitted one (Postgres; MySQL instead uses
	// LAST_INSERT_ID()).
	SupportsReturning() bool
}

func validateRaw(raw string) error {
	if len(raw) == 0 || len(raw) > 64 {
		return errors.Newf("invalid identifier length: %q", raw)
	}
	if !identRe.MatchString(raw) {
		return errors.Newf("invalid identifier: %q", raw)
	}
	return nil
}

// ByType returns the Dialect implementation for a configured database
// type.
func ByType(t string) (Dialect, error) {
	switch t {
	case "mysql":
		return MySQL{}, nil
	case "postgres", "postgresql":
		return Postgres{}, nil
	default:
		return nil, errors.Newf("unsupported database type: %q", t)
	}
}

// scanColumns is shared scanning glue used by both dialects' catalog
// queries, since the shape of the result (name/type/nullable/default)
// is identical even though the source catalog tables differ.
func scanColumns(rows *sql.Rows) ([]Column, error) {
	defer rows.Close()
	var cols []Column
	for rows.Next() {
		var c Column
		var nullable string
		var def sql.NullString
		if err := rows.Scan(&c.Name, &c.Type, &nullable, &def); err != nil {
			return nil, errors.Wrap(err, "failed to scan column metadata")
		}
		c.Nullable = nullable == "YES" || nullable == "yes" || nullable == "true"
		if def.Valid {
			v := def.String
			c.Default = &v
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}
