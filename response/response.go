// Package response implements the JSON envelope and error-kind code
// taxonomy from §7: every response is {code, msg, data, request_id},
// and every error kind maps to exactly one HTTP status. Grounded on
// the teacher's response/response.go Code/CodeInstance/Responder
// shape, generalized from its ad hoc business codes to the spec's
// closed error-kind table, and trimmed of SSE/streaming helpers (no
// SPEC_FULL.md component streams a response).
package response

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Code is a stable, closed error-kind identifier. Values correspond
// 1:1 to the action-dispatch error kinds.
type Code int32

const (
	CodeSuccess Code = 0

	CodeInvalidInput        Code = 400
	CodeAuthRequired        Code = 401
	CodeAuthInvalid         Code = 4011
	CodeForbidden           Code = 403
	CodeNotFound            Code = 404
	CodeMethodNotAllowed    Code = 405
	CodeConflict            Code = 409
	CodeRateLimited         Code = 429
	CodeInternal            Code = 500
	CodeUpstreamUnavailable Code = 502
	CodeUpstreamDegraded    Code = 503
	CodeTimeout             Code = 504
)

type codeValue struct {
	Status int
	Msg    string
}

var defaultCodeValueMap = map[Code]codeValue{
	CodeSuccess: {http.StatusOK, "success"},

	CodeInvalidInput:        {http.StatusBadRequest, "invalid input"},
	CodeAuthRequired:        {http.StatusUnauthorized, "authentication required"},
	CodeAuthInvalid:         {http.StatusUnauthorized, "invalid credentials"},
	CodeForbidden:           {http.StatusForbidden, "forbidden"},
	CodeNotFound:            {http.StatusNotFound, "resource not found"},
	CodeMethodNotAllowed:    {http.StatusMethodNotAllowed, "action not allowed for this table"},
	CodeConflict:            {http.StatusConflict, "conflict or integrity violation"},
	CodeRateLimited:         {http.StatusTooManyRequests, "rate limit exceeded"},
	CodeInternal:            {http.StatusInternalServerError, "internal error"},
	CodeUpstreamUnavailable: {http.StatusBadGateway, "upstream database unavailable"},
	CodeUpstreamDegraded:    {http.StatusServiceUnavailable, "upstream database degraded"},
	CodeTimeout:             {http.StatusGatewayTimeout, "request timed out"},
}

var customCodeValueMap = make(map[Code]codeValue)

// CodeInstance is a Code with an optionally overridden status/message,
// typically produced by Code.WithErr to surface a specific error's text.
type CodeInstance struct {
	code   Code
	status *int
	msg    *string
}

func (c Code) Msg() string {
	if v, ok := customCodeValueMap[c]; ok {
		return v.Msg
	}
	if v, ok := defaultCodeValueMap[c]; ok {
		return v.Msg
	}
	return defaultCodeValueMap[CodeInternal].Msg
}

func (c Code) Status() int {
	if v, ok := customCodeValueMap[c]; ok {
		return v.Status
	}
	if v, ok := defaultCodeValueMap[c]; ok {
		return v.Status
	}
	return http.StatusInternalServerError
}

func (c Code) Code() int { return int(c) }

func (c Code) WithErr(err error) CodeInstance {
	msg := err.Error()
	return CodeInstance{code: c, msg: &msg}
}

func (c Code) WithMsg(msg string) CodeInstance {
	return CodeInstance{code: c, msg: &msg}
}

func (c Code) WithStatus(status int) CodeInstance {
	return CodeInstance{code: c, status: &status}
}

func (ci CodeInstance) Msg() string {
	if ci.msg != nil {
		return *ci.msg
	}
	return ci.code.Msg()
}

func (ci CodeInstance) Status() int {
	if ci.status != nil {
		return *ci.status
	}
	return ci.code.Status()
}

func (ci CodeInstance) Code() int { return ci.code.Code() }

// Responder is implemented by both Code and CodeInstance so callers
// can pass either.
type Responder interface {
	Msg() string
	Status() int
	Code() int
}

var (
	_ Responder = Code(0)
	_ Responder = CodeInstance{}
)

// NewCode registers a custom status/message for code, for components
// that need a code outside the fixed table above.
func NewCode(code Code, status int, msg string) Code {
	customCodeValueMap[code] = codeValue{Status: status, Msg: msg}
	return code
}

// JSON writes the standard envelope.
func JSON(c *gin.Context, responder Responder, data ...any) {
	var payload any
	if len(data) > 0 {
		payload = data[0]
	}
	c.JSON(responder.Status(), gin.H{
		"code":       responder.Code(),
		"msg":        responder.Msg(),
		"data":       payload,
		"request_id": c.GetString("request_id"),
	})
}

// Cached writes a previously-serialized response body verbatim inside
// the envelope via json.RawMessage, avoiding a decode/re-encode round
// trip for cache hits.
func Cached(c *gin.Context, body []byte) {
	c.JSON(http.StatusOK, gin.H{
		"code":       CodeSuccess.Code(),
		"msg":        CodeSuccess.Msg(),
		"data":       json.RawMessage(body),
		"request_id": c.GetString("request_id"),
	})
}
