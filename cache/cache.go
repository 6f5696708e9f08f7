// Package cache implements the read-path response cache from §4.7:
// keys are a hash of table + normalized query + the configured
// vary-by dimensions (the caller's user id and/or API key), values are
// the raw response bytes, and a write invalidates exactly that table's
// entries: the in-process backends track which keys belong to which
// table, and the Redis backend deletes by a per-table key pattern. Grounded on the streamspace-dev-streamspace
// api/internal/cache.Cache shape (Get/Set/Delete/DeletePattern over a
// pluggable backend) generalized to crudgate's driver selection.
package cache

import (
	"context"
	"time"
)

// Store is the pluggable cache backend. All values are opaque bytes —
// callers (the Manager) own JSON encoding.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// InvalidateTable removes every entry previously Set under that
	// table (as recorded by that backend's Set), regardless of backend.
	InvalidateTable(ctx context.Context, table string) error
	Close() error
}

// Entry is what the Manager actually stores, carrying enough to
// populate X-Cache-Hit / X-Cache-TTL / X-Cache-Stored response
// headers on a hit.
type Entry struct {
	Body      []byte    `json:"body"`
	StoredAt  time.Time `json:"stored_at"`
	TTL       time.Duration
	ExpiresAt time.Time `json:"expires_at"`
}

// Result is returned from Manager.Get.
type Result struct {
	Hit   bool
	Entry Entry
}

// Manager applies the per-table TTL/exclude/vary-by policy on top of a
// raw Store.
type Manager struct {
	store         Store
	defaultTTL    time.Duration
	perTableTTL   map[string]time.Duration
	excludeTables map[string]bool
	varyBy        []string
}

func NewManager(store Store, defaultTTL time.Duration, perTableTTL map[string]time.Duration, excludeTables, varyBy []string) *Manager {
	excl := make(map[string]bool, len(excludeTables))
	for _, t := range excludeTables {
		excl[t] = true
	}
	return &Manager{
		store:         store,
		defaultTTL:    defaultTTL,
		perTableTTL:   perTableTTL,
		excludeTables: excl,
		varyBy:        varyBy,
	}
}

// Enabled reports whether table is eligible for caching at all.
func (m *Manager) Enabled(table string) bool {
	return !m.excludeTables[table]
}

func (m *Manager) ttlFor(table string) time.Duration {
	if ttl, ok := m.perTableTTL[table]; ok {
		return ttl
	}
	return m.defaultTTL
}

func (m *Manager) Get(ctx context.Context, table string, key Key) (Result, error) {
	if !m.Enabled(table) {
		return Result{}, nil
	}
	raw, ok, err := m.store.Get(ctx, key.String())
	if err != nil || !ok {
		return Result{}, err
	}
	entry, err := decodeEntry(raw)
	if err != nil {
		return Result{}, err
	}
	return Result{Hit: true, Entry: entry}, nil
}

func (m *Manager) Set(ctx context.Context, table string, key Key, body []byte) error {
	if !m.Enabled(table) {
		return nil
	}
	ttl := m.ttlFor(table)
	now := time.Now()
	entry := Entry{Body: body, StoredAt: now, TTL: ttl, ExpiresAt: now.Add(ttl)}
	raw, err := encodeEntry(entry)
	if err != nil {
		return err
	}
	return m.store.Set(ctx, key.String(), raw, ttl)
}

// Invalidate drops every cached entry for table, called after any
// write action (create/update/delete/bulk_*) against it.
func (m *Manager) Invalidate(ctx context.Context, table string) error {
	return m.store.InvalidateTable(ctx, table)
}

func (m *Manager) Close() error { return m.store.Close() }

// VaryBy returns the configured vary-by dimension names, used by the
// router to build the cache Key.
func (m *Manager) VaryBy() []string { return m.varyBy }
