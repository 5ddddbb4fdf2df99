// Package history writes entity updates to InfluxDB v2.
//
// Writes use the non-blocking write API: points are batched by the client
// and flushed in the background, so a slow or absent server never stalls
// the bus. Write errors are logged and dropped.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"samsung-ac-bridge/internal/samsung"
)

// Measurement is the InfluxDB measurement name for entity updates.
const Measurement = "samsung_ac"

const (
	defaultConnectTimeout = 10 * time.Second
	defaultBatchSize      = 100
	defaultFlushInterval  = 10 // seconds
)

var (
	ErrDisabled         = errors.New("history: disabled")
	ErrConnectionFailed = errors.New("history: connection failed")
)

// Config configures the InfluxDB connection.
type Config struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"` // seconds
}

// pointWriter is the subset of api.WriteAPI used by the writer.
type pointWriter interface {
	WritePoint(p *write.Point)
	Flush()
}

// Writer records entity updates as InfluxDB points.
type Writer struct {
	writes pointWriter
	closer func()
	logger *slog.Logger

	mu      sync.Mutex
	written uint64
	closed  bool
}

// Connect creates the client, verifies the server with a ping and starts
// the non-blocking write API.
func Connect(cfg Config, logger *slog.Logger) (*Writer, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = defaultFlushInterval
	}

	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batchSize)).
			SetFlushInterval(uint(flushInterval)*1000),
	)

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()
	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	w := newWriter(writeAPI, client.Close, logger)
	go w.handleErrors(writeAPI.Errors())
	return w, nil
}

func newWriter(pw pointWriter, closer func(), logger *slog.Logger) *Writer {
	return &Writer{
		writes: pw,
		closer: closer,
		logger: logger.With("component", "history"),
	}
}

func (w *Writer) handleErrors(errs <-chan error) {
	for err := range errs {
		w.logger.Warn("write failed", "err", err)
	}
}

// Subscribe records every entity update on the bus.
func (w *Writer) Subscribe(bus *samsung.EventBus) func() {
	return bus.OnUpdate(w.Record)
}

// Record writes one update. Updates without a recordable value are skipped.
func (w *Writer) Record(u samsung.Update) {
	p := Point(u)
	if p == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.writes.WritePoint(p)
	w.written++
}

// Written returns how many points were handed to the write API.
func (w *Writer) Written() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

// Close flushes pending points and closes the client.
func (w *Writer) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.mu.Unlock()

	w.writes.Flush()
	if w.closer != nil {
		w.closer()
	}
}

// Point converts an update to a point tagged with device, key, role and
// kind. Numbers and switches become a float "value" field, selects a
// string "option" field and climate snapshots one field per attribute.
func Point(u samsung.Update) *write.Point {
	fields := Fields(u.Value)
	if len(fields) == 0 {
		return nil
	}
	tags := map[string]string{
		"device": u.Device,
		"key":    u.Key,
		"role":   u.Role,
		"kind":   u.Kind,
	}
	ts := u.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	return write.NewPoint(Measurement, tags, fields, ts)
}

// Fields returns the InfluxDB fields for a value.
func Fields(v samsung.Value) map[string]any {
	switch v.Kind {
	case samsung.KindNumber:
		return map[string]any{"value": v.Number}
	case samsung.KindBool:
		if v.Bool {
			return map[string]any{"value": 1.0}
		}
		return map[string]any{"value": 0.0}
	case samsung.KindOption:
		return map[string]any{"option": v.Option}
	case samsung.KindClimate:
		if v.Climate == nil {
			return nil
		}
		st := v.Climate
		fields := map[string]any{
			"power": st.Power,
			"mode":  st.Mode,
		}
		if st.CurrentTemperature != nil {
			fields["current_temperature"] = *st.CurrentTemperature
		}
		if st.TargetTemperature != nil {
			fields["target_temperature"] = *st.TargetTemperature
		}
		if st.FanMode != "" {
			fields["fan_mode"] = st.FanMode
		}
		if st.Preset != "" {
			fields["preset"] = st.Preset
		}
		if st.Swing != "" {
			fields["swing"] = st.Swing
		}
		return fields
	}
	return nil
}
