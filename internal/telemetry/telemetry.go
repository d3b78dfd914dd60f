// Package telemetry exposes Prometheus metrics describing poller and
// supervisor activity on a loopback-only HTTP endpoint. It is passive local
// instrumentation, not a remote management surface.
package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Shutdown trigger labels for ShutdownsTotal.
const (
	TriggerTimeout    = "timeout"
	TriggerLowBattery = "low_battery"
)

// Poll result labels for PollsTotal.
const (
	PollResultSuccess = "success"
	PollResultError   = "error"
)

// Supervisor state gauge values, matching the S0/S1/S2 states of
// internal/supervisor.
const (
	StateNormal         = 0
	StateGracePeriod    = 1
	StateAwaitingResume = 2
)

// Metrics holds every Prometheus metric ups-guardian exposes, registered on
// a dedicated registry rather than the global default to avoid collisions
// with other instrumented libraries sharing the process.
type Metrics struct {
	registry *prometheus.Registry

	PollsTotal          *prometheus.CounterVec
	SupervisorState     prometheus.Gauge
	ShutdownsTotal      *prometheus.CounterVec
	NotifyFailuresTotal prometheus.Counter
}

// NewMetrics creates and registers all ups-guardian Prometheus metrics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		PollsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ups_guardian",
			Name:      "polls_total",
			Help:      "Total HID status polls attempted, by result.",
		}, []string{"result"}),

		SupervisorState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ups_guardian",
			Name:      "supervisor_state",
			Help:      "Current power-loss state machine state: 0=Normal, 1=GracePeriod, 2=AwaitingResume.",
		}),

		ShutdownsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ups_guardian",
			Name:      "shutdowns_total",
			Help:      "Total shutdown/hibernate actions initiated, by trigger.",
		}, []string{"trigger"}),

		NotifyFailuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ups_guardian",
			Name:      "notify_failures_total",
			Help:      "Total failures broadcasting a grace-period warning to active sessions.",
		}),
	}

	reg.MustRegister(
		m.PollsTotal,
		m.SupervisorState,
		m.ShutdownsTotal,
		m.NotifyFailuresTotal,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return m
}

// Serve starts the metrics HTTP server on addr and blocks until ctx is
// cancelled or the server fails. addr should be a loopback address
// (e.g. "127.0.0.1:9111"); this package does not enforce that, the caller's
// configuration default does.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	}))

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("telemetry server on %s: %w", addr, err)
	}
	return nil
}
