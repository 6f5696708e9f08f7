// Package middleware holds the gin middleware chain shared by every
// route, plus the registration/tracing-wrap helpers the router uses
// to assemble it. Grounded on the teacher's middleware/middleware.go
// Register/RegisterAuth pattern and its reflection-based function-name
// inference, trimmed of its HTTP-level circuit breaker (crud.Engine
// already owns a circuit breaker scoped to the database calls that
// actually fail; a second one at the HTTP layer would just duplicate
// that state) and its per-route-param manager (no per-route
// registration exists once every request goes through one dispatch
// endpoint).
package middleware

import (
	"fmt"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	CommonMiddlewares = []gin.HandlerFunc{}
	AuthMiddlewares   = []gin.HandlerFunc{}
)

// Register adds global middlewares that apply to all routes. Must be
// called before router.Init. Each middleware is wrapped to log its
// name and elapsed time at debug level, inferred via reflection so
// call sites don't need to name themselves.
func Register(middlewares ...gin.HandlerFunc) {
	for _, mw := range middlewares {
		if mw == nil {
			continue
		}
		name := getFunctionName(mw)
		CommonMiddlewares = append(CommonMiddlewares, wrap(name, mw))
	}
}

// RegisterAuth adds authentication/authorization middlewares to
// AuthMiddlewares, kept separate from CommonMiddlewares. router.Init
// mounts only CommonMiddlewares; authentication, rate limiting and
// RBAC run inside the router's dispatch handler.
func RegisterAuth(middlewares ...gin.HandlerFunc) {
	for _, mw := range middlewares {
		if mw == nil {
			continue
		}
		name := getFunctionName(mw)
		AuthMiddlewares = append(AuthMiddlewares, wrap(name, mw))
	}
}

func wrap(name string, mw gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		mw(c)
		zap.L().Debug("middleware executed", zap.String("name", name), zap.Duration("elapsed", time.Since(start)))
	}
}

// getFunctionName extracts a human-readable name from a gin.HandlerFunc
// via reflection, used only for the debug trace above.
func getFunctionName(fn gin.HandlerFunc) string {
	if fn == nil {
		return "unknown"
	}

	fnPtr := reflect.ValueOf(fn).Pointer()
	fnInfo := runtime.FuncForPC(fnPtr)
	if fnInfo == nil {
		return "unknown"
	}

	fullName := fnInfo.Name()
	file, line := fnInfo.FileLine(fnPtr)

	if lastSlash := strings.LastIndex(fullName, "/"); lastSlash >= 0 {
		fullName = fullName[lastSlash+1:]
	}

	parts := strings.Split(fullName, ".")
	if len(parts) < 2 {
		return cleanFunctionName(fullName)
	}

	funcName := parts[len(parts)-1]
	if strings.HasPrefix(funcName, "func") || strings.Contains(funcName, "glob..func") {
		if file != "" {
			return fmt.Sprintf("%s_L%d", filepath.Base(strings.TrimSuffix(file, ".go")), line)
		}
		return "anonymous"
	}

	return cleanFunctionName(funcName)
}

func cleanFunctionName(name string) string {
	name = strings.TrimSuffix(name, "-fm")
	name = strings.TrimSuffix(name, ".func1")
	name = strings.TrimSuffix(name, ".func2")
	return name
}
