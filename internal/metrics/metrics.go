// Package metrics exposes bridge counters to Prometheus.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"samsung-ac-bridge/internal/samsung"
)

const namespace = "samsung_ac"

// Metrics holds the bridge collectors. It implements driver.Observer.
type Metrics struct {
	registry *prometheus.Registry

	frames        *prometheus.CounterVec // status: ok, error
	routes        *prometheus.CounterVec // result
	commands      *prometheus.CounterVec // status: sent, error
	tickDuration  prometheus.Histogram
	tickWork      prometheus.Histogram
	tickExhausted prometheus.Counter
	events        *prometheus.CounterVec // type
	devices       prometheus.Gauge
}

// New creates the collectors on a fresh registry, including the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "driver",
			Name:      "frames_total",
			Help:      "Frames taken from the bus, by decode status",
		}, []string{"status"}),
		routes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "messages_total",
			Help:      "Decoded messages routed, by result",
		}, []string{"result"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "driver",
			Name:      "commands_total",
			Help:      "Outbound frames written to the bus, by status",
		}, []string{"status"}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "driver",
			Name:      "tick_duration_seconds",
			Help:      "Duration of driver ticks that did work",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.03, 0.1},
		}),
		tickWork: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "driver",
			Name:      "tick_work_items",
			Help:      "Messages and commands handled per tick that did work",
			Buckets:   prometheus.LinearBuckets(1, 4, 8),
		}),
		tickExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "driver",
			Name:      "budget_exhausted_total",
			Help:      "Ticks that stopped on the per-tick budget",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "events_total",
			Help:      "Events emitted on the bridge bus, by type",
		}, []string{"type"}),
		devices: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "configured_devices",
			Help:      "Devices in the registry",
		}),
	}
	m.registry.MustRegister(
		m.frames, m.routes, m.commands,
		m.tickDuration, m.tickWork, m.tickExhausted,
		m.events, m.devices,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) FrameDecoded(err error) {
	if err != nil {
		m.frames.WithLabelValues("error").Inc()
		return
	}
	m.frames.WithLabelValues("ok").Inc()
}

func (m *Metrics) MessageRouted(result samsung.RouteResult) {
	m.routes.WithLabelValues(result.String()).Inc()
}

func (m *Metrics) CommandSent(err error) {
	if err != nil {
		m.commands.WithLabelValues("error").Inc()
		return
	}
	m.commands.WithLabelValues("sent").Inc()
}

func (m *Metrics) TickDone(elapsed time.Duration, work int, exhausted bool) {
	if work == 0 {
		return
	}
	m.tickDuration.Observe(elapsed.Seconds())
	m.tickWork.Observe(float64(work))
	if exhausted {
		m.tickExhausted.Inc()
	}
}

// SetDevices records the registry size.
func (m *Metrics) SetDevices(n int) { m.devices.Set(float64(n)) }

// Subscribe counts bus events by type.
func (m *Metrics) Subscribe(bus *samsung.EventBus) func() {
	return bus.OnAll(func(e samsung.Event) {
		m.events.WithLabelValues(e.Type).Inc()
	})
}

// CounterFunc registers a counter read from fn at scrape time, for
// components that keep their own atomic counters.
func (m *Metrics) CounterFunc(subsystem, name, help string, fn func() uint64) error {
	c := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, func() float64 { return float64(fn()) })
	if err := m.registry.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return nil
		}
		return err
	}
	return nil
}
