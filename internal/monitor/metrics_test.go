package monitor

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/iwtcode/diagAdapter/console"
	"github.com/iwtcode/diagAdapter/internal/config"
	"github.com/iwtcode/diagAdapter/internal/middleware/logging"
	"github.com/iwtcode/diagAdapter/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ console.Observer = (*Monitor)(nil)

func newTestMonitor() *Monitor {
	return NewMonitor(logging.NewLogger(&logging.Config{Enabled: false}, "monitor"))
}

func scrape(t *testing.T, m *Monitor, path string) (int, string) {
	t.Helper()
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestMonitor_Counters(t *testing.T) {
	m := newTestMonitor()

	m.CommandSent("GetVoltMarg")
	m.CommandSent("GetVoltMarg")
	m.CommandTimedOut("getrtc")

	start := time.Now()
	m.StepFinished(models.StepResult{Name: "rtc", Status: models.StepFail, Started: start, Finished: start.Add(2 * time.Second)})
	m.StepFinished(models.StepResult{Name: "poe", Status: models.StepDisabled, Started: start, Finished: start})
	m.RunFinished(models.StepFail)

	code, body := scrape(t, m, "/metrics")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `diag_commands_sent_total{command="GetVoltMarg"} 2`)
	assert.Contains(t, body, `diag_command_timeouts_total{command="getrtc"} 1`)
	assert.Contains(t, body, `diag_step_results_total{status="FAIL",step="rtc"} 1`)
	assert.Contains(t, body, `diag_step_results_total{status="DISABLED",step="poe"} 1`)
	assert.Contains(t, body, `diag_step_duration_seconds_count{step="rtc"} 1`)
	assert.NotContains(t, body, `diag_step_duration_seconds_count{step="poe"}`, "нулевая длительность не учитывается")
	assert.Contains(t, body, "diag_last_run_failed 1")
}

func TestMonitor_Health(t *testing.T) {
	code, body := scrape(t, newTestMonitor(), "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OK", body)
}

func TestMonitor_NoServerWithoutPort(t *testing.T) {
	m := newTestMonitor()
	m.StartMetricsServer(&config.AppConfig{})
	assert.Nil(t, m.server)
	assert.NoError(t, m.Stop(context.Background()))
}
