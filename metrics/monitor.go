package metrics

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/forbearing/crudgate/config"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// alertWindow is how far back activeAlerts looks when deciding
// whether a critical alert recently fired (§4.9: "-25 if any critical
// alert occurred in the last 5 minutes").
const alertWindow = 5 * time.Minute

// Status is the coarse bucket a health score maps to.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusCritical Status = "critical"
)

// statusFor maps a 0-100 score to its status bucket, per §4.9:
// >=80 healthy, 50-79 degraded, <50 critical.
func statusFor(score int) Status {
	switch {
	case score >= 80:
		return StatusHealthy
	case score >= 50:
		return StatusDegraded
	default:
		return StatusCritical
	}
}

// AlertEvent is one threshold breach, kept in the trailing alertWindow
// so scoreLocked can apply the critical-alert deduction and the
// health endpoint can report activeAlerts.
type AlertEvent struct {
	Kind     string    `json:"kind"`
	Severity string    `json:"severity"`
	Message  string    `json:"message"`
	FiredAt  time.Time `json:"firedAt"`
}

// ResponseTimeStats summarizes the current window's observed request
// durations.
type ResponseTimeStats struct {
	Min time.Duration `json:"min"`
	Avg time.Duration `json:"avg"`
	Max time.Duration `json:"max"`
}

// Counters is the current window's raw request-outcome tally.
type Counters struct {
	Total        int `json:"total"`
	Errors       int `json:"errors"`
	AuthFailures int `json:"authFailures"`
	RateLimited  int `json:"rateLimited"`
}

// HealthReport is the payload served on the health endpoint: the
// composite score, its status bucket, the counters and response-time
// stats it was computed from, and every alert still inside the
// 5-minute lookback window.
type HealthReport struct {
	Score             int               `json:"score"`
	Status            Status            `json:"status"`
	Counters          Counters          `json:"counters"`
	ResponseTimeStats ResponseTimeStats `json:"responseTimeStats"`
	ActiveAlerts      []AlertEvent      `json:"activeAlerts"`
}

// Monitor tracks a trailing one-minute window of request outcomes and
// computes the health score from §4.9: starts at 100 and deducts -30
// if the window's error rate exceeds the configured threshold, -20 if
// its average response time exceeds the configured threshold, and -25
// if a critical alert fired in the last five minutes.
type Monitor struct {
	mu         sync.Mutex
	thresholds config.Thresholds
	handlers   []string
	webhookURL string
	log        *zap.Logger

	windowStart  time.Time
	total        int
	errors       int
	authFailures int
	rateLimited  int
	durationSum  time.Duration
	durationMin  time.Duration
	durationMax  time.Duration

	alerts []AlertEvent

	// webhookFailureLog throttles the "failed to deliver alert
	// webhook" warning to once every 30s per process, so a webhook
	// endpoint that is down during a noisy alert storm doesn't flood
	// the log with one line per failed delivery.
	webhookFailureLog rate.Sometimes
}

func NewMonitor(cfg config.Monitoring, log *zap.Logger) *Monitor {
	return &Monitor{
		thresholds:        cfg.Thresholds,
		handlers:          cfg.AlertHandlers,
		webhookURL:        cfg.WebhookURL,
		log:               log,
		windowStart:       time.Now(),
		webhookFailureLog: rate.Sometimes{Interval: 30 * time.Second},
	}
}

// Observe records one request's outcome and rotates the window every
// minute. It returns the current 0-100 health score for convenience.
func (m *Monitor) Observe(isError, isAuthFailure, isRateLimited bool, duration time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if time.Since(m.windowStart) > time.Minute {
		m.total, m.errors, m.authFailures, m.rateLimited = 0, 0, 0, 0
		m.durationSum, m.durationMin, m.durationMax = 0, 0, 0
		m.windowStart = time.Now()
	}

	m.total++
	if isError {
		m.errors++
	}
	if isAuthFailure {
		m.authFailures++
	}
	if isRateLimited {
		m.rateLimited++
	}
	m.durationSum += duration
	if m.durationMin == 0 || duration < m.durationMin {
		m.durationMin = duration
	}
	if duration > m.durationMax {
		m.durationMax = duration
	}

	m.pruneAlertsLocked()
	m.maybeAlertLocked()

	score := m.scoreLocked()
	HealthScore.Set(float64(score))
	return score
}

// Report returns a consistent snapshot of the current window for the
// health endpoint.
func (m *Monitor) Report() HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pruneAlertsLocked()
	score := m.scoreLocked()
	alerts := make([]AlertEvent, len(m.alerts))
	copy(alerts, m.alerts)

	return HealthReport{
		Score:  score,
		Status: statusFor(score),
		Counters: Counters{
			Total:        m.total,
			Errors:       m.errors,
			AuthFailures: m.authFailures,
			RateLimited:  m.rateLimited,
		},
		ResponseTimeStats: m.responseTimeStatsLocked(),
		ActiveAlerts:      alerts,
	}
}

func (m *Monitor) responseTimeStatsLocked() ResponseTimeStats {
	if m.total == 0 {
		return ResponseTimeStats{}
	}
	return ResponseTimeStats{
		Min: m.durationMin,
		Avg: m.durationSum / time.Duration(m.total),
		Max: m.durationMax,
	}
}

// scoreLocked implements §4.9's literal deduction formula. Callers
// must hold m.mu.
func (m *Monitor) scoreLocked() int {
	score := 100
	if m.total > 0 {
		errorRate := float64(m.errors) / float64(m.total)
		if m.thresholds.ErrorRate > 0 && errorRate > m.thresholds.ErrorRate {
			score -= 30
		}
		avgResponseTime := m.durationSum / time.Duration(m.total)
		if m.thresholds.ResponseTime > 0 && avgResponseTime > m.thresholds.ResponseTime {
			score -= 20
		}
	}
	if m.hasCriticalAlertLocked() {
		score -= 25
	}
	if score < 0 {
		score = 0
	}
	return score
}

func (m *Monitor) hasCriticalAlertLocked() bool {
	for _, a := range m.alerts {
		if a.Severity == "critical" {
			return true
		}
	}
	return false
}

func (m *Monitor) pruneAlertsLocked() {
	if len(m.alerts) == 0 {
		return
	}
	cutoff := time.Now().Add(-alertWindow)
	kept := m.alerts[:0]
	for _, a := range m.alerts {
		if a.FiredAt.After(cutoff) {
			kept = append(kept, a)
		}
	}
	m.alerts = kept
}

// maybeAlertLocked evaluates every §4.9 threshold dimension (error
// rate, response time, auth-failure rate, rate-limit-hit rate) and
// fires one AlertEvent per breach, dispatched to every configured
// handler in registration order — a handler failure must not stop
// the others from running. Error-rate breaches are the only ones
// marked "critical", since that is the dimension that already carries
// the largest score deduction (-30) and is the spec's own example of
// the condition meriting a further -25 if recent.
func (m *Monitor) maybeAlertLocked() {
	if m.total == 0 {
		return
	}
	errorRate := float64(m.errors) / float64(m.total)
	authFailRate := float64(m.authFailures) / float64(m.total)
	rateLimitRate := float64(m.rateLimited) / float64(m.total)
	avgResponseTime := m.durationSum / time.Duration(m.total)

	if m.thresholds.ErrorRate > 0 && errorRate > m.thresholds.ErrorRate {
		m.fireLocked("error_rate", "critical", "error rate exceeds configured threshold")
	}
	if m.thresholds.ResponseTime > 0 && avgResponseTime > m.thresholds.ResponseTime {
		m.fireLocked("response_time", "warning", "average response time exceeds configured threshold")
	}
	if m.thresholds.AuthFailures > 0 && authFailRate > m.thresholds.AuthFailures {
		m.fireLocked("auth_failures", "warning", "auth failure rate exceeds configured threshold")
	}
	if m.thresholds.RateLimitHits > 0 && rateLimitRate > m.thresholds.RateLimitHits {
		m.fireLocked("rate_limit", "warning", "rate-limit hit rate exceeds configured threshold")
	}
}

func (m *Monitor) fireLocked(kind, severity, message string) {
	alert := AlertEvent{Kind: kind, Severity: severity, Message: message, FiredAt: time.Now()}
	m.alerts = append(m.alerts, alert)
	for _, h := range m.handlers {
		switch h {
		case "log":
			m.log.Warn("health alert fired",
				zap.String("kind", kind), zap.String("severity", severity), zap.String("message", message))
		case "webhook":
			go m.sendWebhook(alert)
		}
	}
}

func (m *Monitor) sendWebhook(alert AlertEvent) {
	if m.webhookURL == "" {
		return
	}
	body, err := json.Marshal(alert)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.webhookURL, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		m.webhookFailureLog.Do(func() {
			m.log.Warn("failed to deliver alert webhook", zap.Error(err))
		})
		return
	}
	_ = resp.Body.Close()
}
