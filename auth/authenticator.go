package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/forbearing/crudgate/config"
	"golang.org/x/crypto/bcrypt"
)

// ErrAuthRequired and ErrAuthInvalid map 1:1 to the router's
// AuthRequired/AuthInvalid error kinds.
var (
	ErrAuthRequired = errors.New("authentication required")
	ErrAuthInvalid  = errors.New("invalid credentials")
)

// UserLookup is the narrow capability CrudEngine's users-table-backed
// auth needs: find an active user row by username or API key. It is
// satisfied by a thin adapter over *gorm.DB so Authenticator never
// depends on crud.Engine (no import cycle) and tests can fake it.
type UserLookup interface {
	FindByUsername(ctx context.Context, username string) (*UserRecord, error)
	FindByAPIKey(ctx context.Context, apiKey string) (*UserRecord, error)
}

// UserRecord is the subset of the users table schema (§6 persisted
// state layout) Authenticator needs.
type UserRecord struct {
	Username     string
	PasswordHash string
	Role         string
	Active       bool
}

// Authenticator resolves request credentials -> Principal. It picks
// the method from the credential carrier present on the request (API
// key, then HTTP Basic, then Bearer JWT); the configured cfg.Method is
// not consulted, so any enabled carrier is accepted whatever method is
// configured.
type Authenticator struct {
	cfg   config.Auth
	users UserLookup
	jwt   *JWTIssuer
}

func New(cfg config.Auth, users UserLookup, jwt *JWTIssuer) *Authenticator {
	return &Authenticator{cfg: cfg, users: users, jwt: jwt}
}

// Authenticate resolves a Principal for the incoming request. When
// authEnabled is false every request gets an anonymous Principal with
// the configured default role and the pipeline never short-circuits.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) (*Principal, error) {
	if !a.cfg.Enable {
		role := a.cfg.DefaultRole
		if role == "" {
			role = "admin"
		}
		return &Principal{Role: role, Method: MethodAnonymous}, nil
	}

	if apiKey := apiKeyFromRequest(r); apiKey != "" {
		return a.authenticateAPIKey(ctx, apiKey)
	}
	if username, password, ok := r.BasicAuth(); ok {
		return a.authenticateBasic(ctx, username, password)
	}
	if token := bearerToken(r); token != "" {
		return a.authenticateJWT(token)
	}
	return nil, ErrAuthRequired
}

func apiKeyFromRequest(r *http.Request) string {
	if k := r.Header.Get("X-API-Key"); k != "" {
		return k
	}
	return r.URL.Query().Get("api_key")
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if strings.HasPrefix(h, prefix) {
		return strings.TrimPrefix(h, prefix)
	}
	return ""
}

func (a *Authenticator) authenticateAPIKey(ctx context.Context, key string) (*Principal, error) {
	for _, k := range a.cfg.APIKeys {
		if k == key {
			return &Principal{Username: HashAPIKey(key), Role: a.cfg.APIKeyRole, Method: MethodAPIKey}, nil
		}
	}
	if a.cfg.UseDatabaseAuth && a.users != nil {
		u, err := a.users.FindByAPIKey(ctx, key)
		if err != nil || u == nil || !u.Active {
			return nil, ErrAuthInvalid
		}
		return &Principal{Username: u.Username, Role: u.Role, Method: MethodAPIKey}, nil
	}
	return nil, ErrAuthInvalid
}

func (a *Authenticator) authenticateBasic(ctx context.Context, username, password string) (*Principal, error) {
	if a.cfg.UseDatabaseAuth && a.users != nil {
		u, err := a.users.FindByUsername(ctx, username)
		if err != nil || u == nil || !u.Active {
			return nil, ErrAuthInvalid
		}
		if !VerifyPassword(password, u.PasswordHash) {
			return nil, ErrAuthInvalid
		}
		return &Principal{Username: u.Username, Role: u.Role, Method: MethodBasic}, nil
	}

	expected, ok := a.cfg.BasicUsers[username]
	if !ok || expected != password {
		return nil, ErrAuthInvalid
	}
	role, ok := a.cfg.UserRoles[username]
	if !ok {
		role = a.cfg.DefaultRole
	}
	return &Principal{Username: username, Role: role, Method: MethodBasic}, nil
}

func (a *Authenticator) authenticateJWT(token string) (*Principal, error) {
	claims, err := a.jwt.Parse(token)
	if err != nil {
		return nil, errors.Wrap(ErrAuthInvalid, err.Error())
	}
	return &Principal{Username: claims.Subject, Role: claims.Role, Method: MethodJWT}, nil
}

// Login is the `login` action: validates basic-equivalent credentials
// and mints a JWT, independent of the configured authMethod (login
// always authenticates via basic-style username/password, per §4.4).
func (a *Authenticator) Login(ctx context.Context, username, password string) (*Principal, string, error) {
	p, err := a.authenticateBasic(ctx, username, password)
	if err != nil {
		return nil, "", err
	}
	token, err := a.jwt.Issue(p.Username, p.Role)
	if err != nil {
		return nil, "", err
	}
	return p, token, nil
}

// HashAPIKey is the sha256 fingerprint used both as the rate-limiter
// identifier segment and as the Principal username surrogate for
// config-list API keys (so logs never contain the raw key). A single
// stdlib call: no ecosystem hashing library in the pack specializes
// in this, so crypto/sha256 is used directly (documented in
// DESIGN.md).
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return "apikey:" + hex.EncodeToString(sum[:8])
}

// HashPassword and VerifyPassword use bcrypt (golang.org/x/crypto),
// matching the teacher's iam signup/login/change_password flows.
// bcrypt generates and embeds a fresh random salt per call, so two
// users with the same password never produce the same password_hash.
func HashPassword(password string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		// Only returned for a cost outside bcrypt's range (DefaultCost
		// is inside it) or a password longer than 72 bytes; the
		// password length is not checked before this call.
		panic(err)
	}
	return string(hash)
}

func VerifyPassword(password, encodedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password)) == nil
}
