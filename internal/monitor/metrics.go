package monitor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/iwtcode/diagAdapter/internal/config"
	"github.com/iwtcode/diagAdapter/internal/middleware/logging"
	"github.com/iwtcode/diagAdapter/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Monitor собирает метрики консоли и шагов. Реестр свой, не глобальный.
type Monitor struct {
	registry *prometheus.Registry
	log      *logging.Logger
	server   *http.Server

	commandsSent    *prometheus.CounterVec
	commandTimeouts *prometheus.CounterVec
	stepResults     *prometheus.CounterVec
	stepDuration    *prometheus.HistogramVec
	lastRunFailed   prometheus.Gauge
}

func NewMonitor(log *logging.Logger) *Monitor {
	m := &Monitor{
		registry: prometheus.NewRegistry(),
		log:      log,
		commandsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "diag_commands_sent_total",
			Help: "Команды, отправленные в консоль UUT",
		}, []string{"command"}),
		commandTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "diag_command_timeouts_total",
			Help: "Команды, не дождавшиеся приглашения",
		}, []string{"command"}),
		stepResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "diag_step_results_total",
			Help: "Результаты шагов по статусу",
		}, []string{"step", "status"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "diag_step_duration_seconds",
			Help:    "Длительность шагов",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}, []string{"step"}),
		lastRunFailed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "diag_last_run_failed",
			Help: "1, если последний прогон завершился FAIL",
		}),
	}

	m.registry.MustRegister(
		m.commandsSent,
		m.commandTimeouts,
		m.stepResults,
		m.stepDuration,
		m.lastRunFailed,
	)
	return m
}

// CommandSent и CommandTimedOut реализуют console.Observer.
func (m *Monitor) CommandSent(command string) {
	m.commandsSent.WithLabelValues(command).Inc()
}

func (m *Monitor) CommandTimedOut(command string) {
	m.commandTimeouts.WithLabelValues(command).Inc()
}

// StepFinished учитывает завершенный шаг.
func (m *Monitor) StepFinished(r models.StepResult) {
	m.stepResults.WithLabelValues(r.Name, string(r.Status)).Inc()
	if !r.Finished.IsZero() && r.Finished.After(r.Started) {
		m.stepDuration.WithLabelValues(r.Name).Observe(r.Finished.Sub(r.Started).Seconds())
	}
}

// RunFinished фиксирует итог прогона.
func (m *Monitor) RunFinished(status models.StepStatus) {
	if status == models.StepFail {
		m.lastRunFailed.Set(1)
	} else {
		m.lastRunFailed.Set(0)
	}
}

// Handler отдает /metrics и /health.
func (m *Monitor) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// StartMetricsServer запускает HTTP-сервер метрик. port 0 - сервер не нужен.
func (m *Monitor) StartMetricsServer(cfg *config.AppConfig) {
	if cfg.MetricsPort == 0 {
		return
	}
	addr := fmt.Sprintf(":%d", cfg.MetricsPort)
	m.server = &http.Server{Addr: addr, Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}
	m.log.Info("Metrics server started", "addr", addr)

	go func() {
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.log.Error("Metrics server error", "error", err)
		}
	}()
}

func (m *Monitor) Stop(ctx context.Context) error {
	if m.server == nil {
		return nil
	}
	return m.server.Shutdown(ctx)
}
