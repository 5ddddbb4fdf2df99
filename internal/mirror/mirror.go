package mirror

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"samsung-ac-bridge/internal/protocol"
	"samsung-ac-bridge/internal/samsung"
)

// DefaultQueueSize bounds the mirror queue.
const DefaultQueueSize = 256

const publishTimeout = 2 * time.Second

// Entry kinds, also used as MQTT topic segments.
const (
	KindRaw       = "raw"
	KindDecoded   = "decoded"
	KindUndefined = "undefined"
)

// Entry is one mirrored message.
type Entry struct {
	Time      time.Time              `json:"time"`
	Direction samsung.Direction      `json:"dir"`
	Address   string                 `json:"address"`
	ID        protocol.MessageNumber `json:"-"`
	Raw       []byte                 `json:"-"`
	Decoded   *samsung.Value         `json:"-"`
	Undefined bool                   `json:"undefined"`
}

// Kind classifies the entry for routing by sinks.
func (e Entry) Kind() string {
	switch {
	case e.Decoded != nil:
		return KindDecoded
	case e.Undefined:
		return KindUndefined
	default:
		return KindRaw
	}
}

// MarshalJSON adds the message id, name, hex payload and value.
func (e Entry) MarshalJSON() ([]byte, error) {
	type alias Entry
	out := struct {
		alias
		Kind  string         `json:"kind"`
		ID    string         `json:"id"`
		Name  string         `json:"name"`
		Raw   string         `json:"raw,omitempty"`
		Value *samsung.Value `json:"value,omitempty"`
	}{
		alias: alias(e),
		Kind:  e.Kind(),
		ID:    e.ID.String(),
		Name:  e.ID.Name(),
		Value: e.Decoded,
	}
	if e.Raw != nil {
		out.Raw = hex.EncodeToString(e.Raw)
	}
	return json.Marshal(out)
}

// Sink forwards entries somewhere. Errors are logged and dropped.
type Sink interface {
	Publish(ctx context.Context, e Entry) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e Entry) error

func (f SinkFunc) Publish(ctx context.Context, e Entry) error { return f(ctx, e) }

// Mirror gates messages by the debug flags and hands them to the sinks on a
// worker goroutine. OnMessage never blocks; a full queue drops the entry.
type Mirror struct {
	settings *samsung.DebugSettings
	sinks    []Sink
	queue    chan Entry
	logger   *slog.Logger
	now      func() time.Time

	dropped   atomic.Uint64
	published atomic.Uint64
	failed    atomic.Uint64
}

// Option configures a Mirror.
type Option func(*Mirror)

// WithSink adds a sink.
func WithSink(s Sink) Option {
	return func(m *Mirror) {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
}

// WithQueueSize sets the queue bound.
func WithQueueSize(n int) Option {
	return func(m *Mirror) {
		if n > 0 {
			m.queue = make(chan Entry, n)
		}
	}
}

// New creates a mirror.
func New(settings *samsung.DebugSettings, logger *slog.Logger, opts ...Option) *Mirror {
	if settings == nil {
		settings = &samsung.DebugSettings{}
	}
	m := &Mirror{
		settings: settings,
		queue:    make(chan Entry, DefaultQueueSize),
		logger:   logger.With("component", "mirror"),
		now:      time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// OnMessage implements samsung.Mirror. Each flag is independent: raw adds
// the payload, decoded adds the value, undefined admits unbound messages.
// A bound message that failed to decode only shows up under raw.
func (m *Mirror) OnMessage(dir samsung.Direction, address string, id protocol.MessageNumber, raw []byte, decoded *samsung.Value, bound bool) {
	s := m.settings
	undefined := !bound
	if !s.LogRaw && !(s.LogDecoded && decoded != nil) && !(s.LogUndefined && undefined) {
		return
	}

	e := Entry{
		Time:      m.now(),
		Direction: dir,
		Address:   address,
		ID:        id,
		Undefined: undefined,
	}
	if s.LogRaw || (s.LogUndefined && undefined) {
		e.Raw = append([]byte(nil), raw...)
	}
	if s.LogDecoded && decoded != nil {
		v := *decoded
		e.Decoded = &v
	}

	select {
	case m.queue <- e:
	default:
		m.dropped.Add(1)
	}
}

// AddSink adds a sink after construction. It must be called before Run.
func (m *Mirror) AddSink(s Sink) {
	if s != nil {
		m.sinks = append(m.sinks, s)
	}
}

// Run publishes queued entries until ctx is cancelled.
func (m *Mirror) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-m.queue:
			m.publish(ctx, e)
		}
	}
}

func (m *Mirror) publish(ctx context.Context, e Entry) {
	for _, s := range m.sinks {
		pctx, cancel := context.WithTimeout(ctx, publishTimeout)
		err := s.Publish(pctx, e)
		cancel()
		if err != nil {
			m.failed.Add(1)
			m.logger.Debug("mirror sink failed", "err", err)
			continue
		}
		m.published.Add(1)
	}
}

// Dropped returns how many entries were dropped on a full queue.
func (m *Mirror) Dropped() uint64 { return m.dropped.Load() }

// Published returns how many sink publishes succeeded.
func (m *Mirror) Published() uint64 { return m.published.Load() }

// Failed returns how many sink publishes failed.
func (m *Mirror) Failed() uint64 { return m.failed.Load() }

// LogSink writes entries to a logger.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Publish(_ context.Context, e Entry) error {
	attrs := []any{"dir", e.Direction, "address", e.Address, "id", e.ID, "name", e.ID.Name(), "kind", e.Kind()}
	if e.Raw != nil {
		attrs = append(attrs, "raw", hex.EncodeToString(e.Raw))
	}
	if e.Decoded != nil {
		attrs = append(attrs, "value", e.Decoded.String())
	}
	s.Logger.Info("mirror", attrs...)
	return nil
}
