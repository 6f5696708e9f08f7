// Package router implements the single dispatch endpoint from §4.10:
// one handler, selected by the `action` query parameter, running the
// full pipeline — CORS, authenticate, rate-limit, validate, RBAC,
// cache lookup, CrudEngine, cache invalidate/store, log, metric — in
// the fixed order the spec requires. Grounded on the teacher's
// router.Init/Run/Stop lifecycle and its route-registration style,
// collapsed from per-model route registration to the one logical
// resource this system exposes.
package router

import (
	"context"
	"encoding/json"
	"mime"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/forbearing/crudgate/auth"
	"github.com/forbearing/crudgate/cache"
	"github.com/forbearing/crudgate/config"
	"github.com/forbearing/crudgate/crud"
	"github.com/forbearing/crudgate/dialect"
	"github.com/forbearing/crudgate/logger"
	"github.com/forbearing/crudgate/metrics"
	"github.com/forbearing/crudgate/middleware"
	"github.com/forbearing/crudgate/openapi"
	"github.com/forbearing/crudgate/ratelimit"
	"github.com/forbearing/crudgate/rbac"
	"github.com/forbearing/crudgate/response"
	"github.com/forbearing/crudgate/schema"
	"github.com/forbearing/crudgate/validate"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Dependencies bundles every collaborator the dispatch handler needs.
// Limiter and Cache may be nil when their respective config sections
// are disabled.
type Dependencies struct {
	Config   *config.Config
	Auth     *auth.Authenticator
	RBAC     *rbac.RBAC
	Limiter  *ratelimit.Limiter
	Cache    *cache.Manager
	Engine   *crud.Engine
	Inspect  *schema.Inspector
	Validate validate.Config
	ReqLog   *logger.RequestLogger
	Monitor  *metrics.Monitor
}

var (
	root   *gin.Engine
	deps   *Dependencies
	server *http.Server
)

// Init builds the gin engine and mounts every route. Must run after
// middleware.Register has populated CommonMiddlewares, the only
// middleware slice it mounts.
func Init(d *Dependencies) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	root = gin.New()
	deps = d

	root.Use(middleware.CommonMiddlewares...)
	root.GET("/metrics", gin.WrapH(promhttp.Handler()))
	root.GET("/-/healthz", handleHealthz)
	root.Any("/api/crud", handleCrud)

	return root, nil
}

func handleHealthz(c *gin.Context) {
	if deps.Monitor == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	report := deps.Monitor.Report()
	status := http.StatusOK
	if report.Status == metrics.StatusCritical {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

// Run starts the HTTP server and blocks until it stops (or fails to
// start). Call Stop to shut it down gracefully.
func Run(addr string) error {
	server = &http.Server{Addr: addr, Handler: root}
	zap.L().Info("router listening", zap.String("addr", addr))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "server failed")
	}
	return nil
}

func Stop(grace time.Duration) {
	if server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		zap.L().Error("server shutdown failed", zap.Error(err))
	}
}

// handleCrud is the one logical endpoint: it runs the full pipeline
// for whatever `action` query parameter was given.
func handleCrud(c *gin.Context) {
	start := time.Now()
	ctx := c.Request.Context()

	action, ok := ParseAction(c.Query("action"))
	if !ok {
		finish(c, start, response.CodeInvalidInput, "unknown action", nil, nil, "", "")
		return
	}
	spec := action.spec()
	if !spec.allowsMethod(c.Request.Method) {
		finish(c, start, response.CodeMethodNotAllowed, "", nil, nil, "", "")
		return
	}

	var principal *auth.Principal
	if action != ActionLogin {
		p, err := deps.Auth.Authenticate(ctx, c.Request)
		if err != nil {
			code := response.CodeAuthRequired
			if errors.Is(err, auth.ErrAuthInvalid) {
				code = response.CodeAuthInvalid
			}
			metrics.AuthFailuresTotal.WithLabelValues(string(deps.Config.Auth.Method)).Inc()
			finish(c, start, code, "", nil, nil, string(action), "")
			return
		}
		principal = p
		c.Set(principalKey, p)
	}

	identifier := rateLimitIdentifier(c.Request, principal, deps.Config.RateLimit.TrustForwardedFor)
	if deps.Config.RateLimit.Enable && deps.Limiter != nil {
		decision, err := deps.Limiter.Allow(ctx, identifier)
		if err != nil {
			zap.L().Warn("rate limit store error, allowing request", zap.Error(err))
		} else {
			setRateLimitHeaders(c, decision)
			if !decision.Allowed {
				metrics.RateLimitRejections.WithLabelValues(identifierKind(identifier)).Inc()
				c.Writer.Header().Set("Retry-After", strconv.Itoa(int(time.Until(decision.ResetAt).Seconds())))
				c.JSON(http.StatusTooManyRequests, gin.H{
					"error":       "RateLimited",
					"message":     "rate limit exceeded",
					"retry_after": time.Until(decision.ResetAt).Seconds(),
					"reset_at":    decision.ResetAt.Unix(),
					"limit":       decision.Limit,
					"window":      deps.Config.RateLimit.WindowSeconds,
				})
				finishLogged(c, start, http.StatusTooManyRequests, "rate limited", nil, nil, string(action), "", principal)
				return
			}
		}
	} else {
		setStaticRateLimitHeaders(c, deps.Config.RateLimit)
	}

	if action == ActionLogin {
		handleLogin(c, start)
		return
	}

	table := c.Query("table")
	switch action {
	case ActionTables:
		tables, err := deps.Engine.Tables(ctx)
		if err != nil {
			finishEngineErr(c, start, action, table, principal, err)
			return
		}
		body := gin.H{"tables": tables}
		response.JSON(c, response.CodeSuccess, body)
		finish(c, start, response.CodeSuccess, "", nil, body, string(action), table)
		return
	case ActionOpenAPI:
		doc, err := openapi.Build(ctx, deps.Inspect, deps.Config.AppInfo.Name, "1.0")
		if err != nil {
			finishEngineErr(c, start, action, table, principal, err)
			return
		}
		c.JSON(http.StatusOK, doc)
		finish(c, start, response.CodeSuccess, "", nil, nil, string(action), table)
		return
	}

	if spec.requiresTable {
		if table == "" {
			finish(c, start, response.CodeInvalidInput, "table is required", nil, nil, string(action), table)
			return
		}
		if err := deps.Validate.Identifier(table); err != nil {
			finish(c, start, response.CodeInvalidInput, err.Error(), nil, nil, string(action), table)
			return
		}
	}

	var id any
	if spec.requiresID {
		v, err := validate.ID(c.Query("id"))
		if err != nil {
			finish(c, start, response.CodeInvalidInput, err.Error(), nil, nil, string(action), table)
			return
		}
		id = v
	}

	if spec.hasRBAC {
		role := "anonymous"
		if principal != nil {
			role = principal.Role
		}
		if !deps.RBAC.IsAllowed(role, table, spec.rbac) {
			finish(c, start, response.CodeForbidden, "", nil, nil, string(action), table)
			return
		}
	}

	var cacheKey cache.Key
	cacheable := spec.cacheable && deps.Cache != nil && deps.Cache.Enabled(table)
	if cacheable {
		cacheKey = buildCacheKey(c, table, principal, deps.Cache.VaryBy())
		if res, err := deps.Cache.Get(ctx, table, cacheKey); err == nil && res.Hit {
			c.Writer.Header().Set("X-Cache-Hit", "true")
			c.Writer.Header().Set("X-Cache-TTL", strconv.Itoa(int(res.Entry.TTL.Seconds())))
			response.Cached(c, res.Entry.Body)
			metrics.CacheHit.WithLabelValues(table).Inc()
			finish(c, start, response.CodeSuccess, "", nil, json.RawMessage(res.Entry.Body), string(action), table)
			return
		}
		c.Writer.Header().Set("X-Cache-Hit", "false")
		metrics.CacheMiss.WithLabelValues(table).Inc()
	}

	data, reqBody, engineErr := dispatchAction(c, ctx, action, table, id)
	if engineErr != nil {
		finishEngineErr(c, start, action, table, principal, engineErr)
		return
	}

	if spec.mutates && deps.Cache != nil {
		if err := deps.Cache.Invalidate(ctx, table); err != nil {
			zap.L().Warn("cache invalidation failed", zap.String("table", table), zap.Error(err))
		}
	}

	if cacheable {
		if body, err := json.Marshal(data); err == nil {
			if err := deps.Cache.Set(ctx, table, cacheKey, body); err == nil {
				c.Writer.Header().Set("X-Cache-Stored", "true")
			}
		}
	}

	response.JSON(c, response.CodeSuccess, data)
	finish(c, start, response.CodeSuccess, "", reqBody, data, string(action), table)
}

// dispatchAction executes the CrudEngine operation for action and
// returns the response payload plus the raw request body it consumed
// (for logging) and any error.
func dispatchAction(c *gin.Context, ctx context.Context, action Action, table string, id any) (any, []byte, error) {
	switch action {
	case ActionColumns:
		tables, err := deps.Engine.Columns(ctx, table)
		if err != nil {
			return nil, nil, err
		}
		if len(tables) == 0 {
			return gin.H{"columns": []dialect.Column{}}, nil, nil
		}
		return gin.H{"columns": tables[0].Columns}, nil, nil

	case ActionList:
		opt, err := parseListOptions(c, deps.Validate)
		if err != nil {
			return nil, nil, err
		}
		res, err := deps.Engine.List(ctx, table, opt)
		if err != nil {
			return nil, nil, err
		}
		return gin.H{"data": res.Data, "meta": res.Meta}, nil, nil

	case ActionCount:
		filter, err := deps.Validate.Filter(c.Query("filter"))
		if err != nil {
			return nil, nil, err
		}
		n, err := deps.Engine.Count(ctx, table, filter)
		if err != nil {
			return nil, nil, err
		}
		return gin.H{"count": n}, nil, nil

	case ActionRead:
		row, err := deps.Engine.Read(ctx, table, id)
		if err != nil {
			return nil, nil, err
		}
		return row, nil, nil

	case ActionCreate:
		fields, raw, err := parseBodyObject(c)
		if err != nil {
			return nil, raw, err
		}
		row, err := deps.Engine.Create(ctx, table, fields)
		return row, raw, err

	case ActionUpdate:
		fields, raw, err := parseBodyObject(c)
		if err != nil {
			return nil, raw, err
		}
		row, err := deps.Engine.Update(ctx, table, id, fields)
		return row, raw, err

	case ActionDelete:
		if err := deps.Engine.Delete(ctx, table, id); err != nil {
			return nil, nil, err
		}
		return gin.H{"success": true, "deleted": 1}, nil, nil

	case ActionBulkCreate:
		rows, raw, err := parseBodyArray(c)
		if err != nil {
			return nil, raw, err
		}
		created, err := deps.Engine.BulkCreate(ctx, table, rows)
		if err != nil {
			return nil, raw, err
		}
		return gin.H{"success": true, "created": len(created), "data": created}, raw, nil

	case ActionBulkDelete:
		ids, raw, err := parseBulkDeleteIDs(c)
		if err != nil {
			return nil, raw, err
		}
		n, err := deps.Engine.BulkDelete(ctx, table, ids)
		if err != nil {
			return nil, raw, err
		}
		return gin.H{"success": true, "deleted": n}, raw, nil

	default:
		return nil, nil, errors.Wrapf(validate.ErrInvalidInput, "unsupported action %q", action)
	}
}

func handleLogin(c *gin.Context, start time.Time) {
	ctx := c.Request.Context()
	fields, raw, err := parseBodyObject(c)
	if err != nil {
		finish(c, start, response.CodeInvalidInput, err.Error(), raw, nil, "login", "")
		return
	}
	username, _ := fields["username"].(string)
	password, _ := fields["password"].(string)

	principal, token, err := deps.Auth.Login(ctx, username, password)
	if err != nil {
		metrics.AuthFailuresTotal.WithLabelValues("login").Inc()
		finish(c, start, response.CodeAuthInvalid, "", raw, nil, "login", "")
		return
	}

	expiresAt := time.Now().Add(deps.Config.Auth.JWTExpiration).Unix()
	body := gin.H{"token": token, "expires_at": expiresAt, "user": principal.Username, "role": principal.Role}
	response.JSON(c, response.CodeSuccess, body)
	finishLogged(c, start, http.StatusOK, "", raw, body, "login", "", principal)
}

func finishEngineErr(c *gin.Context, start time.Time, action Action, table string, principal *auth.Principal, err error) {
	code := mapEngineErr(err)
	response.JSON(c, code.WithErr(err))
	finishLogged(c, start, code.Status(), err.Error(), nil, nil, string(action), table, principal)
}

func mapEngineErr(err error) response.Code {
	switch {
	case errors.Is(err, validate.ErrInvalidInput):
		return response.CodeInvalidInput
	case errors.Is(err, schema.ErrTableNotFound):
		return response.CodeNotFound
	case errors.Is(err, crud.ErrConflict):
		return response.CodeConflict
	case errors.Is(err, crud.ErrUpstream):
		return response.CodeUpstreamUnavailable
	default:
		return response.CodeInternal
	}
}

// principalKey is the gin context key under which handleCrud stores
// the authenticated Principal for finish to log.
const principalKey = "crudgate.principal"

// finish is the common tail for requests answered with a bare code or
// message; it writes the error envelope (if any), logs and records
// metrics, with the Principal handleCrud stored if authentication ran.
func finish(c *gin.Context, start time.Time, code response.Code, errMsg string, reqBody []byte, respBody any, action, table string) {
	if errMsg != "" {
		response.JSON(c, code.WithMsg(errMsg))
	} else if code != response.CodeSuccess {
		response.JSON(c, code)
	}
	var principal *auth.Principal
	if v, ok := c.Get(principalKey); ok {
		principal, _ = v.(*auth.Principal)
	}
	finishLogged(c, start, code.Status(), errMsg, reqBody, respBody, action, table, principal)
}

func finishLogged(c *gin.Context, start time.Time, status int, errMsg string, reqBody []byte, respBody any, action, table string, principal *auth.Principal) {
	duration := time.Since(start)
	isError := status >= 400
	isAuthFailure := status == http.StatusUnauthorized
	isRateLimited := status == http.StatusTooManyRequests

	metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, action, table, strconv.Itoa(status)).Inc()
	metrics.HTTPRequestDuration.WithLabelValues(action, table).Observe(duration.Seconds())
	if isError {
		metrics.ErrorsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
	}
	if deps.Monitor != nil {
		deps.Monitor.Observe(isError, isAuthFailure, isRateLimited, duration)
	}

	if deps.ReqLog != nil {
		var respBytes []byte
		if respBody != nil {
			respBytes, _ = json.Marshal(respBody)
		}
		entry := logger.Entry{
			Method:       c.Request.Method,
			Path:         c.Request.URL.Path,
			Status:       status,
			Duration:     duration,
			ClientIP:     c.ClientIP(),
			RequestBody:  reqBody,
			ResponseBody: respBytes,
			Error:        errMsg,
		}
		if principal != nil {
			entry.Principal = principal.Username
			entry.Role = principal.Role
		}
		if deps.Config.Logging.LogQueryParams {
			entry.Query = map[string][]string(c.Request.URL.Query())
		}
		if deps.Config.Logging.LogHeaders {
			entry.Headers = map[string][]string(c.Request.Header)
		}
		deps.ReqLog.Log(entry)
	}
}

// rateLimitIdentifier picks the first non-empty of authenticated
// username, API-key hash, or client IP, per §4.6.
func rateLimitIdentifier(r *http.Request, principal *auth.Principal, trustForwardedFor bool) string {
	if principal != nil && principal.Method != auth.MethodAnonymous && principal.Username != "" {
		if principal.Method == auth.MethodAPIKey {
			if strings.HasPrefix(principal.Username, "apikey:") {
				return principal.Username
			}
			return "apikey:" + principal.Username
		}
		return "user:" + principal.Username
	}
	return "ip:" + clientIP(r, trustForwardedFor)
}

func identifierKind(identifier string) string {
	if i := strings.Index(identifier, ":"); i >= 0 {
		return identifier[:i]
	}
	return "unknown"
}

func clientIP(r *http.Request, trustForwardedFor bool) string {
	if trustForwardedFor {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			return strings.TrimSpace(strings.Split(xff, ",")[0])
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return xri
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func setRateLimitHeaders(c *gin.Context, d ratelimit.Decision) {
	c.Writer.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	c.Writer.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	c.Writer.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
	c.Writer.Header().Set("X-RateLimit-Window", strconv.Itoa(int(time.Until(d.ResetAt).Seconds())))
}

func setStaticRateLimitHeaders(c *gin.Context, cfg config.RateLimit) {
	c.Writer.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.MaxRequests))
	c.Writer.Header().Set("X-RateLimit-Remaining", strconv.Itoa(cfg.MaxRequests))
	c.Writer.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Duration(cfg.WindowSeconds)*time.Second).Unix(), 10))
	c.Writer.Header().Set("X-RateLimit-Window", strconv.Itoa(cfg.WindowSeconds))
}

// buildCacheKey normalizes the request's query parameters plus any
// configured vary-by dimensions into a cache.Key.
func buildCacheKey(c *gin.Context, table string, principal *auth.Principal, varyBy []string) cache.Key {
	query := make(map[string]string)
	for k, v := range c.Request.URL.Query() {
		if k == "action" {
			continue
		}
		query[k] = strings.Join(v, ",")
	}

	vary := make(map[string]string, len(varyBy))
	for _, dim := range varyBy {
		switch dim {
		case "user_id":
			if principal != nil {
				vary["user_id"] = principal.Username
			}
		case "api_key":
			if principal != nil && principal.Method == auth.MethodAPIKey {
				vary["api_key"] = principal.Username
			}
		}
	}
	return cache.Key{Table: table, Query: query, VaryBy: vary}
}

func parseListOptions(c *gin.Context, vcfg validate.Config) (crud.ListOptions, error) {
	fields, err := vcfg.Fields(c.Query("fields"))
	if err != nil {
		return crud.ListOptions{}, err
	}
	filter, err := vcfg.Filter(c.Query("filter"))
	if err != nil {
		return crud.ListOptions{}, err
	}
	sort, err := vcfg.Sort(c.Query("sort"))
	if err != nil {
		return crud.ListOptions{}, err
	}
	page, err := validate.Page(c.Query("page"))
	if err != nil {
		return crud.ListOptions{}, err
	}
	pageSize, err := vcfg.PageSize(c.Query("page_size"))
	if err != nil {
		return crud.ListOptions{}, err
	}
	return crud.ListOptions{Fields: fields, Filter: filter, Sort: sort, Page: page, PageSize: pageSize}, nil
}

// parseBodyObject reads a single JSON object, or a form-encoded body,
// into a field map, per §6's accepted content types.
func parseBodyObject(c *gin.Context) (map[string]any, []byte, error) {
	ct, _, _ := mime.ParseMediaType(c.ContentType())
	switch ct {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := c.Request.ParseMultipartForm(32 << 20); err != nil && err != http.ErrNotMultipart {
			if err2 := c.Request.ParseForm(); err2 != nil {
				return nil, nil, errors.Wrap(validate.ErrInvalidInput, "malformed form body")
			}
		}
		fields := make(map[string]any, len(c.Request.PostForm))
		for k, v := range c.Request.PostForm {
			if len(v) > 0 {
				fields[k] = v[0]
			}
		}
		return fields, nil, nil
	default:
		raw, err := c.GetRawData()
		if err != nil {
			return nil, nil, errors.Wrap(validate.ErrInvalidInput, "failed to read request body")
		}
		if len(raw) == 0 {
			return map[string]any{}, raw, nil
		}
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, raw, errors.Wrap(validate.ErrInvalidInput, "malformed json body")
		}
		return fields, raw, nil
	}
}

// parseBodyArray reads the JSON array body required by bulk_create.
func parseBodyArray(c *gin.Context) ([]map[string]any, []byte, error) {
	raw, err := c.GetRawData()
	if err != nil {
		return nil, nil, errors.Wrap(validate.ErrInvalidInput, "failed to read request body")
	}
	var rows []map[string]any
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, raw, errors.Wrap(validate.ErrInvalidInput, "body must be a JSON array of objects")
	}
	if len(rows) == 0 {
		return nil, raw, errors.Wrap(validate.ErrInvalidInput, "bulk_create requires at least one row")
	}
	return rows, raw, nil
}

// parseBulkDeleteIDs reads the `{ids:[...]}` body required by
// bulk_delete.
func parseBulkDeleteIDs(c *gin.Context) ([]any, []byte, error) {
	raw, err := c.GetRawData()
	if err != nil {
		return nil, nil, errors.Wrap(validate.ErrInvalidInput, "failed to read request body")
	}
	var body struct {
		IDs []any `json:"ids"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, raw, errors.Wrap(validate.ErrInvalidInput, "malformed json body")
	}
	if len(body.IDs) == 0 {
		return nil, raw, errors.Wrap(validate.ErrInvalidInput, "bulk_delete requires at least one id")
	}
	return body.IDs, raw, nil
}
