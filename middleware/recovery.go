package middleware

import (
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Recovery returns a gin middleware that recovers from any panic,
// logs it via logger (redacting the Authorization header), and maps
// it to a 500 — or aborts without a response if the connection is
// already broken. stack controls whether the goroutine stack trace is
// included in the log line.
func Recovery(logger *zap.Logger, stack bool) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		var brokenPipe bool
		if ne, ok := recovered.(*net.OpError); ok {
			var se *os.SyscallError
			if errors.As(ne, &se) {
				seStr := strings.ToLower(se.Error())
				if strings.Contains(seStr, "broken pipe") || strings.Contains(seStr, "connection reset by peer") {
					brokenPipe = true
				}
			}
		}

		if logger != nil {
			httpRequest, _ := httputil.DumpRequest(c.Request, false)
			headers := strings.Split(string(httpRequest), "\r\n")
			for idx, header := range headers {
				if name, _, ok := strings.Cut(header, ":"); ok && name == "Authorization" {
					headers[idx] = name + ": *"
				}
			}
			headersToStr := strings.Join(headers, "\r\n")

			switch {
			case brokenPipe:
				logger.Error(fmt.Sprintf("%s\n%s", recovered, headersToStr))
			case stack:
				logger.Error(fmt.Sprintf("[Recovery] %s panic recovered:\n%s\n%s\n%s",
					timeFormat(time.Now()), headersToStr, recovered, debug.Stack()))
			default:
				logger.Error(fmt.Sprintf("[Recovery] %s panic recovered:\n%s\n%s",
					timeFormat(time.Now()), headersToStr, recovered))
			}
		}

		if brokenPipe {
			c.Error(recovered.(error)) // nolint: errcheck
			c.Abort()
		} else {
			c.AbortWithStatus(http.StatusInternalServerError)
		}
	})
}

func timeFormat(t time.Time) string {
	return t.Format("2006/01/02 - 15:04:05")
}
