package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CORS answers preflight OPTIONS requests and sets permissive
// cross-origin headers on every response, per the router pipeline's
// step 1 (§4.10). No CORS library appears anywhere in the retrieved
// dependency surface, so this is hand-rolled rather than imported.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Request-Id")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
