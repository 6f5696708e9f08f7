// Package schema wraps a dialect.Dialect with a process-wide,
// read-mostly cache of table schemas, mirroring the teacher's
// pattern of a sync.Map-backed registration cache populated lazily
// and shared across every CrudEngine instance.
package schema

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/forbearing/crudgate/dialect"
	"gorm.io/gorm"
)

// TableSchema is the memoized shape of one table.
type TableSchema struct {
	Name       string
	Columns    []dialect.Column
	PrimaryKey string
}

// HasColumn reports whether name is a live column of this table.
func (t TableSchema) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// ErrTableNotFound is returned for any table absent from ListTables,
// which the router maps to a 404-class response.
var ErrTableNotFound = errors.New("table not found")

// Inspector wraps a Dialect and a pooled *gorm.DB, memoizing
// TableSchema per table for the process lifetime (or until Refresh is
// called). One writer populates each table's entry; readers observe
// either the prior (absent) value or the fully populated one — no
// torn reads, matching the teacher's migratedModelMap discipline.
type Inspector struct {
	dialect dialect.Dialect
	db      *gorm.DB

	mu         sync.Mutex // guards population of cache entries (single-writer-per-table)
	cache      sync.Map   // table name -> *TableSchema
	tableNames sync.Map   // bool set of known table names; never populated (tables holds the list)
	tablesOnce sync.Once
	tables     []string
	tablesErr  error
}

func New(d dialect.Dialect, db *gorm.DB) *Inspector {
	return &Inspector{dialect: d, db: db}
}

func (i *Inspector) Dialect() dialect.Dialect { return i.dialect }

// ListTables enumerates and caches the set of base tables once per
// process; call Refresh to force a re-scan (e.g. after a migration).
func (i *Inspector) ListTables(ctx context.Context) ([]string, error) {
	i.tablesOnce.Do(func() {
		i.tables, i.tablesErr = i.dialect.ListTables(ctx, i.db)
	})
	if i.tablesErr != nil {
		return nil, errors.Wrap(i.tablesErr, "failed to list tables")
	}
	return i.tables, nil
}

// Refresh clears the cached table list and all memoized schemas,
// forcing the next access to re-query the catalog.
func (i *Inspector) Refresh() {
	i.tablesOnce = sync.Once{}
	i.tables = nil
	i.tablesErr = nil
	i.cache = sync.Map{}
}

// Table returns the memoized TableSchema, querying and caching it on
// first access. Returns ErrTableNotFound if table is absent from
// ListTables.
func (i *Inspector) Table(ctx context.Context, table string) (*TableSchema, error) {
	if v, ok := i.cache.Load(table); ok {
		return v.(*TableSchema), nil
	}

	tables, err := i.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	found := false
	for _, t := range tables {
		if t == table {
			found = true
			break
		}
	}
	if !found {
		return nil, errors.Wrapf(ErrTableNotFound, "table %q", table)
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	// Re-check after acquiring the lock: another goroutine may have
	// populated it while we waited.
	if v, ok := i.cache.Load(table); ok {
		return v.(*TableSchema), nil
	}

	cols, err := i.dialect.ListColumns(ctx, i.db, table)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list columns for %q", table)
	}
	pk, err := i.dialect.PrimaryKey(ctx, i.db, table)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve primary key for %q", table)
	}
	ts := &TableSchema{Name: table, Columns: cols, PrimaryKey: pk}
	i.cache.Store(table, ts)
	return ts, nil
}
