package auth

import (
	"context"

	"github.com/cockroachdb/errors"
	"gorm.io/gorm"
)

// GormUserLookup implements UserLookup directly against the
// configured users table via hand-assembled, bound-parameter SQL —
// consistent with the rest of the system, this is the one place
// Authenticator touches the database, and it never uses gorm's
// struct mapping either.
type GormUserLookup struct {
	db    *gorm.DB
	table string
}

func NewGormUserLookup(db *gorm.DB, table string) *GormUserLookup {
	return &GormUserLookup{db: db, table: table}
}

func (g *GormUserLookup) FindByUsername(ctx context.Context, username string) (*UserRecord, error) {
	return g.find(ctx, "username", username)
}

func (g *GormUserLookup) FindByAPIKey(ctx context.Context, apiKey string) (*UserRecord, error) {
	return g.find(ctx, "api_key", apiKey)
}

func (g *GormUserLookup) find(ctx context.Context, column, value string) (*UserRecord, error) {
	// table/column names here come from fixed, operator-configured
	// constants (config.Auth.UsersTable and the persisted-state
	// layout's fixed column names), never from client input, so a
	// direct quoted identifier is safe without re-validating through
	// the shared Validator.
	query := "SELECT username, password_hash, role, active FROM `" + g.table + "` WHERE `" + column + "` = ? LIMIT 1"
	row := g.db.WithContext(ctx).Raw(query, value).Row()
	var rec UserRecord
	if err := row.Scan(&rec.Username, &rec.PasswordHash, &rec.Role, &rec.Active); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to look up user")
	}
	return &rec, nil
}
