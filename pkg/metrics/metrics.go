// Package metrics exposes fxswitchd counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the daemon counters on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Switches      *prometheus.CounterVec
	SwitchErrors  *prometheus.CounterVec
	BootPasses    prometheus.Counter
	BootFailures  prometheus.Counter
	BootCompleted prometheus.Gauge
	HotkeyPresses prometheus.Counter
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Switches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fxswitch_switches_total",
			Help: "Switch operations by kind (toggle, route-output, route-mic-input)",
		}, []string{"op"}),
		SwitchErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fxswitch_switch_errors_total",
			Help: "Failed switch operations by kind",
		}, []string{"op"}),
		BootPasses: f.NewCounter(prometheus.CounterOpts{
			Name: "fxswitch_boot_passes_total",
			Help: "Boot sequence passes run",
		}),
		BootFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "fxswitch_boot_failures_total",
			Help: "Boot sequence passes that ended in backoff",
		}),
		BootCompleted: f.NewGauge(prometheus.GaugeOpts{
			Name: "fxswitch_boot_completed",
			Help: "1 once both boot milestones are reached",
		}),
		HotkeyPresses: f.NewCounter(prometheus.CounterOpts{
			Name: "fxswitch_hotkey_presses_total",
			Help: "Hotkey combo activations",
		}),
	}
}

// ObserveSwitch counts a finished switch operation.
func (m *Metrics) ObserveSwitch(op string, err error) {
	m.Switches.WithLabelValues(op).Inc()
	if err != nil {
		m.SwitchErrors.WithLabelValues(op).Inc()
	}
}

// ObserveBootPass counts a finished boot pass.
func (m *Metrics) ObserveBootPass(err error) {
	m.BootPasses.Inc()
	if err != nil {
		m.BootFailures.Inc()
	}
}

// BootDone marks the boot sequence as complete or restarted.
func (m *Metrics) BootDone(done bool) {
	if done {
		m.BootCompleted.Set(1)
	} else {
		m.BootCompleted.Set(0)
	}
}

// HotkeyPressed counts a combo activation.
func (m *Metrics) HotkeyPressed() {
	m.HotkeyPresses.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve listens on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
