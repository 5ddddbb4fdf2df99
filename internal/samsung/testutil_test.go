package samsung

import (
	"log/slog"
	"os"
	"testing"

	"samsung-ac-bridge/internal/protocol"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type mirrored struct {
	dir     Direction
	address string
	id      protocol.MessageNumber
	raw     []byte
	decoded *Value
	bound   bool
}

type fakeMirror struct {
	entries []mirrored
}

func (m *fakeMirror) OnMessage(dir Direction, address string, id protocol.MessageNumber, raw []byte, decoded *Value, bound bool) {
	m.entries = append(m.entries, mirrored{dir, address, id, raw, decoded, bound})
}

type rig struct {
	registry   *Registry
	mailbox    *Mailbox
	mirror     *fakeMirror
	router     *Router
	translator *Translator
	outbox     *Outbox
	settings   *DebugSettings
}

func newRig(t *testing.T, specs ...DeviceSpec) *rig {
	t.Helper()
	mb := NewMailbox()
	reg, err := BuildRegistry(specs, mb.Handle)
	if err != nil {
		t.Fatal(err)
	}
	settings := &DebugSettings{LogUndefined: true}
	mirror := &fakeMirror{}
	logger := newTestLogger()
	bus := NewEventBus(logger)
	outbox := NewOutbox(8)
	return &rig{
		registry:   reg,
		mailbox:    mb,
		mirror:     mirror,
		router:     NewRouter(reg, settings, mirror, bus, logger),
		translator: NewTranslator(reg, mirror, outbox, bus, logger),
		outbox:     outbox,
		settings:   settings,
	}
}

func (r *rig) device(t *testing.T, address string) *Device {
	t.Helper()
	dev, err := r.registry.Resolve(address)
	if err != nil {
		t.Fatal(err)
	}
	return dev
}

func (r *rig) last(t *testing.T, address, key string) Value {
	t.Helper()
	u, ok := r.mailbox.Last(address, key)
	if !ok {
		t.Fatalf("no update for %s/%s", address, key)
	}
	return u.Value
}

func roles(rs ...Role) []EntitySpec {
	out := make([]EntitySpec, len(rs))
	for i, r := range rs {
		out[i] = EntitySpec{Role: r}
	}
	return out
}
