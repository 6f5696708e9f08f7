// Package crud implements the QueryBuilder and CrudEngine: the only
// place in the system that assembles SQL strings, and it does so
// exclusively from sqlident.QuotedIdent (identifiers) and dialect
// placeholders whose values travel as bound positional arguments —
// never from a raw client string. This is
// the direct generalization of the "Dynamic SQL assembly" design note:
// the Go type system, not a runtime check, is what prevents untrusted
// input from reaching the identifier position.
package crud

import (
	"fmt"
	"strings"

	"github.com/forbearing/crudgate/dialect"
	"github.com/forbearing/crudgate/schema"
	"github.com/forbearing/crudgate/sqlident"
	"github.com/forbearing/crudgate/validate"
)

// builder assembles one statement's SQL text and bound parameter
// values, tracking dialect-specific placeholder rendering.
type builder struct {
	d    dialect.Dialect
	seq  *sqlident.ParamSeq
	args []any
}

func newBuilder(d dialect.Dialect) *builder {
	return &builder{d: d, seq: sqlident.NewParamSeq()}
}

// bind appends a value and returns its placeholder text for the
// dialect (named for drivers that support it is unnecessary here:
// both gorm mysql/postgres raw paths accept positional args in
// argument order, so bind always returns the dialect's positional
// marker for the next arg).
func (b *builder) bind(v any) string {
	b.args = append(b.args, v)
	return b.d.Placeholder(len(b.args))
}

func quoteAll(d dialect.Dialect, names []string) ([]sqlident.QuotedIdent, error) {
	out := make([]sqlident.QuotedIdent, 0, len(names))
	for _, n := range names {
		q, err := d.Quote(n)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

// whitelistColumn ensures a column referenced anywhere in the
// statement (projection, filter, sort, insert/update keys) exists in
// the live schema — the sole defense against column-injection for
// paths where the identifier itself already validated syntactically.
func whitelistColumn(ts *schema.TableSchema, column string) error {
	if !ts.HasColumn(column) {
		return fmt.Errorf("%w: column %q not found on table %q", validate.ErrInvalidInput, column, ts.Name)
	}
	return nil
}

// buildWhere renders the AND-of-filters fragment and returns it; the
// values it binds are appended to b.args via the shared builder so
// parameter numbering stays consistent across WHERE and the rest of
// the statement.
func (b *builder) buildWhere(ts *schema.TableSchema, terms []validate.FilterTerm) (string, error) {
	if len(terms) == 0 {
		return "", nil
	}
	var clauses []string
	for _, t := range terms {
		if err := whitelistColumn(ts, t.Column); err != nil {
			return "", err
		}
		col, err := b.d.Quote(t.Column)
		if err != nil {
			return "", err
		}
		clause, err := b.filterClause(col, t)
		if err != nil {
			return "", err
		}
		clauses = append(clauses, clause)
	}
	return " WHERE " + strings.Join(clauses, " AND "), nil
}

func (b *builder) filterClause(col sqlident.QuotedIdent, t validate.FilterTerm) (string, error) {
	switch t.Op {
	case validate.OpEq:
		return fmt.Sprintf("%s = %s", col.SQL(), b.bind(t.Value)), nil
	case validate.OpNeq:
		return fmt.Sprintf("%s <> %s", col.SQL(), b.bind(t.Value)), nil
	case validate.OpGt:
		return fmt.Sprintf("%s > %s", col.SQL(), b.bind(t.Value)), nil
	case validate.OpGte:
		return fmt.Sprintf("%s >= %s", col.SQL(), b.bind(t.Value)), nil
	case validate.OpLt:
		return fmt.Sprintf("%s < %s", col.SQL(), b.bind(t.Value)), nil
	case validate.OpLte:
		return fmt.Sprintf("%s <= %s", col.SQL(), b.bind(t.Value)), nil
	case validate.OpLike:
		return fmt.Sprintf("%s LIKE %s", col.SQL(), b.bind(t.Value)), nil
	case validate.OpNull:
		return fmt.Sprintf("%s IS NULL", col.SQL()), nil
	case validate.OpNotNull:
		return fmt.Sprintf("%s IS NOT NULL", col.SQL()), nil
	case validate.OpIn, validate.OpNotIn:
		if len(t.Values) == 0 {
			return "", fmt.Errorf("%w: %s requires at least one value", validate.ErrInvalidInput, t.Op)
		}
		placeholders := make([]string, 0, len(t.Values))
		for _, v := range t.Values {
			placeholders = append(placeholders, b.bind(v))
		}
		kw := "IN"
		if t.Op == validate.OpNotIn {
			kw = "NOT IN"
		}
		return fmt.Sprintf("%s %s (%s)", col.SQL(), kw, strings.Join(placeholders, ", ")), nil
	default:
		return "", fmt.Errorf("%w: unsupported operator %q", validate.ErrInvalidInput, t.Op)
	}
}

func (b *builder) buildOrderBy(ts *schema.TableSchema, terms []validate.SortTerm) (string, error) {
	if len(terms) == 0 {
		return "", nil
	}
	var parts []string
	for _, t := range terms {
		if err := whitelistColumn(ts, t.Column); err != nil {
			return "", err
		}
		col, err := b.d.Quote(t.Column)
		if err != nil {
			return "", err
		}
		dir := "ASC"
		if t.Desc {
			dir = "DESC"
		}
		parts = append(parts, fmt.Sprintf("%s %s", col.SQL(), dir))
	}
	return " ORDER BY " + strings.Join(parts, ", "), nil
}

func (b *builder) buildProjection(ts *schema.TableSchema, fields []string) (string, error) {
	if len(fields) == 0 {
		return "*", nil
	}
	cols, err := quoteProjection(b.d, ts, fields)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(cols))
	for _, c := range cols {
		parts = append(parts, c.SQL())
	}
	return strings.Join(parts, ", "), nil
}

func quoteProjection(d dialect.Dialect, ts *schema.TableSchema, fields []string) ([]sqlident.QuotedIdent, error) {
	out := make([]sqlident.QuotedIdent, 0, len(fields))
	for _, f := range fields {
		if err := whitelistColumn(ts, f); err != nil {
			return nil, err
		}
		q, err := d.Quote(f)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}
