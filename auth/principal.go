// Package auth resolves request credentials to a Principal via one of
// three configured methods (API key, HTTP Basic, JWT), following the
// teacher's authn/jwt claims shape and key-function pattern but
// trimmed to the spec's stateless model: no refresh tokens, no
// session cache, no device fingerprinting — a JWT here is valid
// until it expires, full stop.
package auth

// Method names the credential carrier that produced a Principal.
type Method string

const (
	MethodAPIKey    Method = "apikey"
	MethodBasic     Method = "basic"
	MethodJWT       Method = "jwt"
	MethodAnonymous Method = "anonymous"
)

// Principal is the authenticated subject for one request. Once
// constructed by Authenticator it is read-only for the rest of the
// pipeline.
type Principal struct {
	Username string
	Role     string
	Method   Method
}
