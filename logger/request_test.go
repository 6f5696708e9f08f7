package logger

import (
	"testing"
	"time"

	"github.com/forbearing/crudgate/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestLogger(cfg config.Logging) (*RequestLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewRequestLogger(zap.New(core), cfg), logs
}

func TestLog_RedactsSensitiveJSONBodyKeys(t *testing.T) {
	cfg := config.Logging{Enable: true, LogBody: true, SensitiveKeys: []string{"password"}}
	rl, logs := newTestLogger(cfg)

	rl.Log(Entry{
		Method:      "POST",
		Path:        "/api/crud",
		Status:      200,
		RequestBody: []byte(`{"username":"john","password":"secret"}`),
	})

	require.Len(t, logs.All(), 1)
	body, ok := logs.All()[0].ContextMap()["request_body"].(string)
	require.True(t, ok)
	assert.NotContains(t, body, "secret")
	assert.Contains(t, body, redactedPlaceholder)
	assert.Contains(t, body, "john")
}

func TestLog_RedactsSensitiveFormBodyKeys(t *testing.T) {
	cfg := config.Logging{Enable: true, LogBody: true, SensitiveKeys: []string{"password"}}
	rl, logs := newTestLogger(cfg)

	rl.Log(Entry{
		Method:      "POST",
		Path:        "/api/crud",
		Status:      200,
		RequestBody: []byte(`username=john&password=secret`),
	})

	body, ok := logs.All()[0].ContextMap()["request_body"].(string)
	require.True(t, ok)
	assert.NotContains(t, body, "secret")
}

func TestLog_RedactsNestedJSONBodyKeys(t *testing.T) {
	cfg := config.Logging{Enable: true, LogResponseBody: true, SensitiveKeys: []string{"api_key"}}
	rl, logs := newTestLogger(cfg)

	rl.Log(Entry{
		Method:       "POST",
		Path:         "/api/crud",
		Status:       200,
		ResponseBody: []byte(`{"data":[{"id":1,"api_key":"abc123"}]}`),
	})

	body, ok := logs.All()[0].ContextMap()["response_body"].(string)
	require.True(t, ok)
	assert.NotContains(t, body, "abc123")
}

func TestLog_BodyDisabledWhenLogBodyFalse(t *testing.T) {
	cfg := config.Logging{Enable: true, SensitiveKeys: []string{"password"}}
	rl, logs := newTestLogger(cfg)

	rl.Log(Entry{
		Method:      "POST",
		Path:        "/api/crud",
		Status:      200,
		RequestBody: []byte(`{"password":"secret"}`),
	})

	_, ok := logs.All()[0].ContextMap()["request_body"]
	assert.False(t, ok)
}

func TestTruncate_RespectsMaxBodyLength(t *testing.T) {
	rl, _ := newTestLogger(config.Logging{Enable: true, MaxBodyLength: 5})
	got := rl.truncate([]byte("0123456789"))
	assert.Equal(t, "01234...(truncated)", got)
}

func TestLog_DurationAndStatusLevelMapping(t *testing.T) {
	cfg := config.Logging{Enable: true}
	rl, logs := newTestLogger(cfg)

	rl.Log(Entry{Status: 500, Duration: 10 * time.Millisecond})
	rl.Log(Entry{Status: 404, Duration: time.Millisecond})
	rl.Log(Entry{Status: 200, Duration: time.Millisecond})

	all := logs.All()
	require.Len(t, all, 3)
	assert.Equal(t, zapcore.ErrorLevel, all[0].Level)
	assert.Equal(t, zapcore.WarnLevel, all[1].Level)
	assert.Equal(t, zapcore.InfoLevel, all[2].Level)
}
