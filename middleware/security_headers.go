package middleware

import (
	"github.com/gin-gonic/gin"
)

// SecurityHeadersConfig controls which security headers get set on
// every response. An empty field disables that header.
type SecurityHeadersConfig struct {
	XFrameOptions           string
	XContentTypeOptions     string
	XXSSProtection          string
	StrictTransportSecurity string
	ContentSecurityPolicy   string
	ReferrerPolicy          string
	PermissionsPolicy       string
}

// SecurityHeaders sets the given security headers on every response.
// A nil config falls back to a reasonable default set (no CSP, since
// the `/api/crud` JSON API has no markup to restrict).
func SecurityHeaders(config *SecurityHeadersConfig) gin.HandlerFunc {
	if config == nil {
		config = &SecurityHeadersConfig{
			XFrameOptions:           "SAMEORIGIN",
			XContentTypeOptions:     "nosniff",
			XXSSProtection:          "1; mode=block",
			StrictTransportSecurity: "max-age=31536000; includeSubDomains",
			ReferrerPolicy:          "strict-origin-when-cross-origin",
		}
	}

	return func(c *gin.Context) {
		if config.XFrameOptions != "" {
			c.Header("X-Frame-Options", config.XFrameOptions)
		}
		if config.XContentTypeOptions != "" {
			c.Header("X-Content-Type-Options", config.XContentTypeOptions)
		}
		if config.XXSSProtection != "" {
			c.Header("X-XSS-Protection", config.XXSSProtection)
		}
		if config.StrictTransportSecurity != "" {
			c.Header("Strict-Transport-Security", config.StrictTransportSecurity)
		}
		if config.ContentSecurityPolicy != "" {
			c.Header("Content-Security-Policy", config.ContentSecurityPolicy)
		}
		if config.ReferrerPolicy != "" {
			c.Header("Referrer-Policy", config.ReferrerPolicy)
		}
		if config.PermissionsPolicy != "" {
			c.Header("Permissions-Policy", config.PermissionsPolicy)
		}

		c.Next()
	}
}
