package metrics

import (
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"samsung-ac-bridge/internal/samsung"
)

func TestObserverCounters(t *testing.T) {
	m := New()

	m.FrameDecoded(nil)
	m.FrameDecoded(nil)
	m.FrameDecoded(errors.New("bad crc"))
	m.MessageRouted(samsung.RouteUpdated)
	m.MessageRouted(samsung.RouteUnknownDevice)
	m.MessageRouted(samsung.RouteUpdated)
	m.CommandSent(nil)
	m.CommandSent(errors.New("write"))

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"frames ok", testutil.ToFloat64(m.frames.WithLabelValues("ok")), 2},
		{"frames error", testutil.ToFloat64(m.frames.WithLabelValues("error")), 1},
		{"routed updated", testutil.ToFloat64(m.routes.WithLabelValues("updated")), 2},
		{"routed unknown", testutil.ToFloat64(m.routes.WithLabelValues("unknown_device")), 1},
		{"commands sent", testutil.ToFloat64(m.commands.WithLabelValues("sent")), 1},
		{"commands error", testutil.ToFloat64(m.commands.WithLabelValues("error")), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestTickDone(t *testing.T) {
	m := New()
	m.TickDone(time.Millisecond, 0, false)
	m.TickDone(2*time.Millisecond, 5, false)
	m.TickDone(3*time.Millisecond, 9, true)

	if got := testutil.ToFloat64(m.tickExhausted); got != 1 {
		t.Errorf("exhausted = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.tickWork); got != 1 {
		t.Errorf("tick work series = %d, want 1", got)
	}
}

func TestSubscribeCountsEvents(t *testing.T) {
	m := New()
	bus := samsung.NewEventBus(slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer m.Subscribe(bus)()

	bus.Emit(samsung.Event{Type: samsung.EventEntityUpdate})
	bus.Emit(samsung.Event{Type: samsung.EventEntityUpdate})
	bus.Emit(samsung.Event{Type: samsung.EventDeviceDiscovered})

	if got := testutil.ToFloat64(m.events.WithLabelValues(samsung.EventEntityUpdate)); got != 2 {
		t.Errorf("entity updates = %v, want 2", got)
	}
}

func TestHandlerExposesCounterFunc(t *testing.T) {
	m := New()
	var dropped uint64 = 7
	if err := m.CounterFunc("mirror", "dropped_total", "Mirror entries dropped", func() uint64 { return dropped }); err != nil {
		t.Fatal(err)
	}
	// Registering the same name twice is tolerated.
	if err := m.CounterFunc("mirror", "dropped_total", "Mirror entries dropped", func() uint64 { return dropped }); err != nil {
		t.Fatal(err)
	}
	m.SetDevices(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	for _, want := range []string{
		"samsung_ac_mirror_dropped_total 7",
		"samsung_ac_configured_devices 2",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
