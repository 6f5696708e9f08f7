package crud

import (
	"context"
	"fmt"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/forbearing/crudgate/schema"
	"github.com/forbearing/crudgate/validate"
	"github.com/sony/gobreaker"
	"gorm.io/gorm"
)

// ErrConflict signals a DB constraint violation (unique/FK), mapped
// by the router to the ConflictOrIntegrity error kind.
var ErrConflict = errors.New("conflict or integrity violation")

// ErrUpstream signals the database is unreachable or a driver-level
// failure occurred, mapped to UpstreamFailure.
var ErrUpstream = errors.New("upstream database failure")

// ListOptions mirrors the spec's ListOptions entity.
type ListOptions struct {
	Fields   []string
	Filter   []validate.FilterTerm
	Sort     []validate.SortTerm
	Page     int
	PageSize int
}

// ListResult is the {data, meta} shape returned to the router.
type ListResult struct {
	Data []map[string]any
	Meta ListMeta
}

type ListMeta struct {
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Pages    int64 `json:"pages"`
}

// Engine orchestrates DB access for every CRUD and bulk operation. It
// is constructed once per process with a pooled *gorm.DB and shared
// SchemaInspector, matching the teacher's "construct once, inject
// everywhere" convention.
type Engine struct {
	db       *gorm.DB
	inspect  *schema.Inspector
	validate validate.Config
	breaker  *gobreaker.CircuitBreaker
}

func New(db *gorm.DB, inspect *schema.Inspector, vcfg validate.Config) *Engine {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "crudgate-db",
		MaxRequests: 5,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 10 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
	})
	return &Engine{db: db, inspect: inspect, validate: vcfg, breaker: cb}
}

// Tables returns the schema-introspected list of base tables.
func (e *Engine) Tables(ctx context.Context) ([]string, error) {
	return e.inspect.ListTables(ctx)
}

// Columns returns the introspected column metadata for table.
func (e *Engine) Columns(ctx context.Context, table string) ([]schema.TableSchema, error) {
	ts, err := e.inspect.Table(ctx, table)
	if err != nil {
		return nil, err
	}
	return []schema.TableSchema{*ts}, nil
}

func (e *Engine) withBreaker(fn func() error) error {
	_, err := e.breaker.Execute(func() (any, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return errors.Wrap(ErrUpstream, "circuit breaker open")
	}
	return err
}

// List executes the list operation: SELECT projection FROM table
// WHERE ... ORDER BY ... LIMIT/OFFSET, plus a companion COUNT(*) using
// the same WHERE.
func (e *Engine) List(ctx context.Context, table string, opt ListOptions) (*ListResult, error) {
	ts, err := e.inspect.Table(ctx, table)
	if err != nil {
		return nil, err
	}
	tbl, err := e.inspect.Dialect().Quote(table)
	if err != nil {
		return nil, err
	}

	b := newBuilder(e.inspect.Dialect())
	projection, err := b.buildProjection(ts, opt.Fields)
	if err != nil {
		return nil, err
	}
	where, err := b.buildWhere(ts, opt.Filter)
	if err != nil {
		return nil, err
	}
	orderBy, err := b.buildOrderBy(ts, opt.Sort)
	if err != nil {
		return nil, err
	}

	page, pageSize := opt.Page, opt.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	limitPH := b.bind(pageSize)
	offsetPH := b.bind((page - 1) * pageSize)

	query := fmt.Sprintf("SELECT %s FROM %s%s%s LIMIT %s OFFSET %s", projection, tbl.SQL(), where, orderBy, limitPH, offsetPH)

	var rows []map[string]any
	if err := e.withBreaker(func() error {
		r, err := e.queryRows(ctx, query, b.args)
		rows = r
		return err
	}); err != nil {
		return nil, wrapDBErr(err)
	}

	// Companion COUNT(*) reuses only the WHERE fragment and its args,
	// built fresh so LIMIT/OFFSET params don't leak into it.
	cb := newBuilder(e.inspect.Dialect())
	cwhere, err := cb.buildWhere(ts, opt.Filter)
	if err != nil {
		return nil, err
	}
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", tbl.SQL(), cwhere)
	var total int64
	if err := e.withBreaker(func() error {
		row := e.db.WithContext(ctx).Raw(countQuery, cb.args...).Row()
		return row.Scan(&total)
	}); err != nil {
		return nil, wrapDBErr(err)
	}

	pages := int64(math.Ceil(float64(total) / float64(pageSize)))
	return &ListResult{Data: rows, Meta: ListMeta{Total: total, Page: page, PageSize: pageSize, Pages: pages}}, nil
}

// Count executes the same WHERE as List but returns only the count.
func (e *Engine) Count(ctx context.Context, table string, filter []validate.FilterTerm) (int64, error) {
	ts, err := e.inspect.Table(ctx, table)
	if err != nil {
		return 0, err
	}
	tbl, err := e.inspect.Dialect().Quote(table)
	if err != nil {
		return 0, err
	}
	b := newBuilder(e.inspect.Dialect())
	where, err := b.buildWhere(ts, filter)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", tbl.SQL(), where)
	var total int64
	if err := e.withBreaker(func() error {
		return e.db.WithContext(ctx).Raw(query, b.args...).Row().Scan(&total)
	}); err != nil {
		return 0, wrapDBErr(err)
	}
	return total, nil
}

// Read selects a single row by primary key.
func (e *Engine) Read(ctx context.Context, table string, id any) (map[string]any, error) {
	ts, err := e.inspect.Table(ctx, table)
	if err != nil {
		return nil, err
	}
	if ts.PrimaryKey == "" {
		return nil, errors.Wrapf(validate.ErrInvalidInput, "table %q has no primary key", table)
	}
	tbl, err := e.inspect.Dialect().Quote(table)
	if err != nil {
		return nil, err
	}
	pk, err := e.inspect.Dialect().Quote(ts.PrimaryKey)
	if err != nil {
		return nil, err
	}
	b := newBuilder(e.inspect.Dialect())
	ph := b.bind(id)
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = %s", tbl.SQL(), pk.SQL(), ph)

	var rows []map[string]any
	if err := e.withBreaker(func() error {
		r, err := e.queryRows(ctx, query, b.args)
		rows = r
		return err
	}); err != nil {
		return nil, wrapDBErr(err)
	}
	if len(rows) == 0 {
		return nil, errors.Wrapf(schema.ErrTableNotFound, "row %v not found in %q", id, table)
	}
	return rows[0], nil
}

// Create inserts a single row and re-reads it by primary key: the
// supplied PK if one was given, INSERT ... RETURNING on dialects that
// support it (Postgres), or a follow-up LAST_INSERT_ID() otherwise
// (MySQL). When none of those can recover a generated key the
// submitted fields are returned as-is.
func (e *Engine) Create(ctx context.Context, table string, fields map[string]any) (map[string]any, error) {
	ts, err := e.inspect.Table(ctx, table)
	if err != nil {
		return nil, err
	}
	tbl, err := e.inspect.Dialect().Quote(table)
	if err != nil {
		return nil, err
	}

	b := newBuilder(e.inspect.Dialect())
	var cols []string
	var placeholders []string
	for k, v := range fields {
		if err := whitelistColumn(ts, k); err != nil {
			return nil, err
		}
		col, err := e.inspect.Dialect().Quote(k)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col.SQL())
		placeholders = append(placeholders, b.bind(v))
	}
	var insertedID any
	if pkVal, ok := fields[ts.PrimaryKey]; ok {
		insertedID = pkVal
	}

	needsGeneratedPK := insertedID == nil && ts.PrimaryKey != ""
	returning := needsGeneratedPK && e.inspect.Dialect().SupportsReturning()
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", tbl.SQL(), joinStrings(cols), joinStrings(placeholders))
	if returning {
		pk, err := e.inspect.Dialect().Quote(ts.PrimaryKey)
		if err != nil {
			return nil, err
		}
		query += " RETURNING " + pk.SQL()
	}

	if err := e.withBreaker(func() error {
		return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if returning {
				return tx.Raw(query, b.args...).Row().Scan(&insertedID)
			}
			if err := tx.Exec(query, b.args...).Error; err != nil {
				return err
			}
			if needsGeneratedPK && e.inspect.Dialect().SupportsLastInsertID() {
				var lastID int64
				if err := tx.Raw("SELECT LAST_INSERT_ID()").Row().Scan(&lastID); err == nil {
					insertedID = lastID
				}
			}
			return nil
		})
	}); err != nil {
		return nil, wrapDBErr(err)
	}

	if insertedID == nil {
		// Nothing to re-read by (no PK supplied, no autoincrement
		// support): return the fields as submitted.
		return fields, nil
	}
	return e.Read(ctx, table, insertedID)
}

// Update applies a partial update by PK.
func (e *Engine) Update(ctx context.Context, table string, id any, fields map[string]any) (map[string]any, error) {
	ts, err := e.inspect.Table(ctx, table)
	if err != nil {
		return nil, err
	}
	if ts.PrimaryKey == "" {
		return nil, errors.Wrapf(validate.ErrInvalidInput, "table %q has no primary key", table)
	}
	tbl, err := e.inspect.Dialect().Quote(table)
	if err != nil {
		return nil, err
	}
	pk, err := e.inspect.Dialect().Quote(ts.PrimaryKey)
	if err != nil {
		return nil, err
	}

	b := newBuilder(e.inspect.Dialect())
	var sets []string
	for k, v := range fields {
		if err := whitelistColumn(ts, k); err != nil {
			return nil, err
		}
		col, err := e.inspect.Dialect().Quote(k)
		if err != nil {
			return nil, err
		}
		sets = append(sets, fmt.Sprintf("%s = %s", col.SQL(), b.bind(v)))
	}
	idPH := b.bind(id)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s", tbl.SQL(), joinStrings(sets), pk.SQL(), idPH)

	if err := e.withBreaker(func() error {
		return e.db.WithContext(ctx).Exec(query, b.args...).Error
	}); err != nil {
		return nil, wrapDBErr(err)
	}
	return e.Read(ctx, table, id)
}

// Delete removes a single row by PK.
func (e *Engine) Delete(ctx context.Context, table string, id any) error {
	ts, err := e.inspect.Table(ctx, table)
	if err != nil {
		return err
	}
	if ts.PrimaryKey == "" {
		return errors.Wrapf(validate.ErrInvalidInput, "table %q has no primary key", table)
	}
	tbl, err := e.inspect.Dialect().Quote(table)
	if err != nil {
		return err
	}
	pk, err := e.inspect.Dialect().Quote(ts.PrimaryKey)
	if err != nil {
		return err
	}
	b := newBuilder(e.inspect.Dialect())
	ph := b.bind(id)
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = %s", tbl.SQL(), pk.SQL(), ph)
	return wrapDBErr(e.withBreaker(func() error {
		return e.db.WithContext(ctx).Exec(query, b.args...).Error
	}))
}

// BulkCreate inserts every row in a single transaction; any row
// failure rolls back the entire batch (invariant 6, bulk atomicity).
func (e *Engine) BulkCreate(ctx context.Context, table string, rows []map[string]any) ([]map[string]any, error) {
	ts, err := e.inspect.Table(ctx, table)
	if err != nil {
		return nil, err
	}
	tbl, err := e.inspect.Dialect().Quote(table)
	if err != nil {
		return nil, err
	}

	created := make([]map[string]any, 0, len(rows))
	err = e.withBreaker(func() error {
		return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			for _, fields := range rows {
				b := newBuilder(e.inspect.Dialect())
				var cols, placeholders []string
				for k, v := range fields {
					if err := whitelistColumn(ts, k); err != nil {
						return err
					}
					col, err := e.inspect.Dialect().Quote(k)
					if err != nil {
						return err
					}
					cols = append(cols, col.SQL())
					placeholders = append(placeholders, b.bind(v))
				}
				query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", tbl.SQL(), joinStrings(cols), joinStrings(placeholders))
				if err := tx.Exec(query, b.args...).Error; err != nil {
					return err
				}
				created = append(created, fields)
			}
			return nil
		})
	})
	if err != nil {
		return nil, wrapDBErr(err)
	}
	return created, nil
}

// BulkDelete removes every row whose PK is in ids via a single DELETE
// ... WHERE pk IN (...), with one bound parameter per id.
func (e *Engine) BulkDelete(ctx context.Context, table string, ids []any) (int64, error) {
	ts, err := e.inspect.Table(ctx, table)
	if err != nil {
		return 0, err
	}
	if ts.PrimaryKey == "" {
		return 0, errors.Wrapf(validate.ErrInvalidInput, "table %q has no primary key", table)
	}
	tbl, err := e.inspect.Dialect().Quote(table)
	if err != nil {
		return 0, err
	}
	pk, err := e.inspect.Dialect().Quote(ts.PrimaryKey)
	if err != nil {
		return 0, err
	}

	b := newBuilder(e.inspect.Dialect())
	placeholders := make([]string, 0, len(ids))
	for _, id := range ids {
		placeholders = append(placeholders, b.bind(id))
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s IN (%s)", tbl.SQL(), pk.SQL(), joinStrings(placeholders))

	var affected int64
	if err := e.withBreaker(func() error {
		res := e.db.WithContext(ctx).Exec(query, b.args...)
		if res.Error != nil {
			return res.Error
		}
		affected = res.RowsAffected
		return nil
	}); err != nil {
		return 0, wrapDBErr(err)
	}
	return affected, nil
}

func (e *Engine) queryRows(ctx context.Context, query string, args []any) ([]map[string]any, error) {
	rows, err := e.db.WithContext(ctx).Raw(query, args...).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	cols, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		m := make(map[string]any, len(cols))
		for i, c := range cols {
			m[c.Name()] = normalizeValue(vals[i])
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func joinStrings(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}

func wrapDBErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.Wrap(schema.ErrTableNotFound, err.Error())
	}
	if isConstraintViolation(err) {
		return errors.Wrap(ErrConflict, err.Error())
	}
	return errors.Wrap(ErrUpstream, err.Error())
}
