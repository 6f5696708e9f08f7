package auth

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is intentionally small relative to the teacher's
// authn/jwt.Claims: the spec needs exactly iat/exp/iss/aud/sub/role,
// no refresh-token/session-fingerprint fields.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTIssuer mints and verifies HS256 tokens per §4.4/§6: signature,
// expiration, issuer, and audience are all checked; role is read from
// the custom `role` claim. No DB lookup happens during verification.
type JWTIssuer struct {
	secret     []byte
	expiration time.Duration
	issuer     string
	audience   string
}

func NewJWTIssuer(secret string, expiration time.Duration, issuer, audience string) *JWTIssuer {
	return &JWTIssuer{secret: []byte(secret), expiration: expiration, issuer: issuer, audience: audience}
}

func (j *JWTIssuer) Issue(subject, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    j.issuer,
			Audience:  jwt.ClaimStrings{j.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.expiration)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secret)
}

func (j *JWTIssuer) ExpiresAt(tokenIssuedNow time.Time) int64 {
	return tokenIssuedNow.Add(j.expiration).Unix()
}

func (j *JWTIssuer) Parse(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, j.keyFunc,
		jwt.WithIssuer(j.issuer),
		jwt.WithAudience(j.audience),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse jwt")
	}
	if !token.Valid {
		return nil, errors.New("token invalid")
	}
	return claims, nil
}

func (j *JWTIssuer) keyFunc(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.Newf("unexpected signing method: %v", token.Header["alg"])
	}
	return j.secret, nil
}
