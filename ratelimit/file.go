package ratelimit

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gofrs/flock"
)

// FileStore persists each key's timestamp window to its own JSON file
// under dir, guarded by a sibling .lock file via gofrs/flock so
// multiple crudgate processes sharing a filesystem (no Redis
// available) don't race on the same counter.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create rate limit storage dir")
	}
	return &FileStore{dir: dir}, nil
}

type fileRecord struct {
	Timestamps []time.Time `json:"timestamps"`
}

func (f *FileStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	base := sanitizeKey(key)
	dataPath := filepath.Join(f.dir, base+".json")
	lockPath := filepath.Join(f.dir, base+".lock")

	lock := flock.New(lockPath)
	if err := lock.Lock(); err != nil {
		return Decision{}, errors.Wrap(err, "failed to acquire rate limit file lock")
	}
	defer func() { _ = lock.Unlock() }()

	rec := fileRecord{}
	if raw, err := os.ReadFile(dataPath); err == nil {
		_ = json.Unmarshal(raw, &rec)
	} else if !os.IsNotExist(err) {
		return Decision{}, errors.Wrap(err, "failed to read rate limit file")
	}

	now := time.Now()
	cutoff := now.Add(-window)
	kept := rec.Timestamps[:0]
	for _, t := range rec.Timestamps {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	var decision Decision
	if len(kept) >= limit {
		decision = Decision{Allowed: false, Limit: limit, Remaining: 0, ResetAt: kept[0].Add(window)}
	} else {
		kept = append(kept, now)
		decision = Decision{Allowed: true, Limit: limit, Remaining: limit - len(kept), ResetAt: kept[0].Add(window)}
	}

	rec.Timestamps = kept
	raw, err := json.Marshal(rec)
	if err != nil {
		return Decision{}, errors.Wrap(err, "failed to marshal rate limit record")
	}
	if err := os.WriteFile(dataPath, raw, 0o644); err != nil {
		return Decision{}, errors.Wrap(err, "failed to write rate limit file")
	}
	return decision, nil
}

func (f *FileStore) Close() error { return nil }

// sanitizeKey maps an identifier (which may contain ':' from the
// "apikey:<hash>" / "ip:<addr>" prefixing the router applies) to a
// filesystem-safe basename.
func sanitizeKey(key string) string {
	r := strings.NewReplacer(":", "_", "/", "_", "\\", "_", " ", "_")
	return r.Replace(key)
}
