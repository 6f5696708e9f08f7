package metrics_test

import (
	"os"
	"testing"
	"time"

	"github.com/forbearing/crudgate/config"
	"github.com/forbearing/crudgate/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	if err := metrics.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func newTestMonitor(t *testing.T, th config.Thresholds) *metrics.Monitor {
	t.Helper()
	return metrics.NewMonitor(config.Monitoring{Thresholds: th}, zap.NewNop())
}

func TestObserve_NoTrafficScoresHealthy(t *testing.T) {
	mon := newTestMonitor(t, config.Thresholds{ErrorRate: 0.05, ResponseTime: time.Second})
	report := mon.Report()
	assert.Equal(t, 100, report.Score)
	assert.Equal(t, metrics.StatusHealthy, report.Status)
}

func TestObserve_ErrorRateOverThresholdDeducts30AndFiresCriticalAlert(t *testing.T) {
	mon := newTestMonitor(t, config.Thresholds{ErrorRate: 0.05, ResponseTime: time.Second})
	// 1 error in 2 requests breaches the 5% threshold (-30), and the
	// same Observe fires a critical error_rate alert before scoring
	// (-25): 100 - 30 - 25 = 45.
	mon.Observe(false, false, false, time.Millisecond)
	score := mon.Observe(true, false, false, time.Millisecond)
	assert.Equal(t, 45, score)
	assert.Equal(t, metrics.StatusCritical, mon.Report().Status)
}

func TestObserve_SlowResponseOverThresholdDeducts20(t *testing.T) {
	mon := newTestMonitor(t, config.Thresholds{ErrorRate: 0.05, ResponseTime: 10 * time.Millisecond})
	score := mon.Observe(false, false, false, 50*time.Millisecond)
	assert.Equal(t, 80, score)
	assert.Equal(t, metrics.StatusHealthy, mon.Report().Status)
}

func TestObserve_CriticalAlertWithinFiveMinutesDeducts25(t *testing.T) {
	mon := newTestMonitor(t, config.Thresholds{ErrorRate: 0.05, ResponseTime: time.Second})
	// every call is an error, so the error-rate breach re-fires a
	// critical alert each time; the -25 for a recent critical alert
	// stacks with the error-rate deduction itself: 100 - 30 - 25 = 45.
	mon.Observe(true, false, false, time.Millisecond)
	mon.Observe(true, false, false, time.Millisecond)
	score := mon.Observe(true, false, false, time.Millisecond)
	assert.Equal(t, 45, score)
	assert.Equal(t, metrics.StatusCritical, mon.Report().Status)
}

func TestReport_ResponseTimeStatsReflectMinAvgMax(t *testing.T) {
	mon := newTestMonitor(t, config.Thresholds{})
	mon.Observe(false, false, false, 10*time.Millisecond)
	mon.Observe(false, false, false, 30*time.Millisecond)

	stats := mon.Report().ResponseTimeStats
	assert.Equal(t, 10*time.Millisecond, stats.Min)
	assert.Equal(t, 30*time.Millisecond, stats.Max)
	assert.Equal(t, 20*time.Millisecond, stats.Avg)
}

func TestReport_ActiveAlertsIncludesFiredBreach(t *testing.T) {
	mon := newTestMonitor(t, config.Thresholds{ErrorRate: 0.05})
	mon.Observe(true, false, false, time.Millisecond)

	report := mon.Report()
	require.NotEmpty(t, report.ActiveAlerts)
	assert.Equal(t, "error_rate", report.ActiveAlerts[0].Kind)
	assert.Equal(t, "critical", report.ActiveAlerts[0].Severity)
}
