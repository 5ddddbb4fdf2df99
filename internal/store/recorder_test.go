package store

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"samsung-ac-bridge/internal/protocol"
	"samsung-ac-bridge/internal/samsung"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecorderFlushAndLoad(t *testing.T) {
	s := newTestStore(t)
	logger := newTestLogger()
	bus := samsung.NewEventBus(logger)
	rec := NewRecorder(s, time.Hour, logger)
	defer rec.Subscribe(bus)()

	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	bus.Emit(samsung.Event{Type: samsung.EventEntityUpdate, Data: samsung.Update{
		Device: "20.00.00", Key: "room_temperature", Role: "room_temperature", Kind: "sensor",
		Value: samsung.Number(21.5), Time: at,
	}})
	bus.Emit(samsung.Event{Type: samsung.EventEntityUpdate, Data: samsung.Update{
		Device: "20.00.00", Key: "power", Role: "power", Kind: "switch",
		Value: samsung.Bool(false), Time: at,
	}})
	// Newer value replaces the buffered one.
	bus.Emit(samsung.Event{Type: samsung.EventEntityUpdate, Data: samsung.Update{
		Device: "20.00.00", Key: "power", Role: "power", Kind: "switch",
		Value: samsung.Bool(true), Time: at,
	}})

	if states, _ := s.ListStates(); len(states) != 0 {
		t.Fatalf("states before flush = %d, want 0", len(states))
	}
	if err := rec.Flush(); err != nil {
		t.Fatal(err)
	}

	updates, err := LoadStates(s, logger)
	if err != nil {
		t.Fatal(err)
	}
	if len(updates) != 2 {
		t.Fatalf("updates = %d, want 2", len(updates))
	}
	got := map[string]samsung.Update{}
	for _, u := range updates {
		got[u.Key] = u
	}
	if !got["room_temperature"].Value.Equal(samsung.Number(21.5)) {
		t.Errorf("room_temperature = %v, want 21.5", got["room_temperature"].Value)
	}
	if !got["power"].Value.Equal(samsung.Bool(true)) {
		t.Errorf("power = %v, want ON", got["power"].Value)
	}
	if !got["power"].Time.Equal(at) {
		t.Errorf("time = %v, want %v", got["power"].Time, at)
	}
}

func TestRecorderDiscovered(t *testing.T) {
	s := newTestStore(t)
	logger := newTestLogger()
	bus := samsung.NewEventBus(logger)
	rec := NewRecorder(s, 0, logger)
	defer rec.Subscribe(bus)()

	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rec.now = func() time.Time { return first }
	bus.Emit(samsung.Event{Type: samsung.EventDeviceDiscovered, Data: samsung.Discovery{Address: "10.00.00", Kind: protocol.KindOutdoor}})

	if _, err := s.GetDiscovered("10.00.00"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("discovery written from the bus handler: err = %v", err)
	}
	if err := rec.Flush(); err != nil {
		t.Fatal(err)
	}

	later := first.Add(time.Hour)
	rec.now = func() time.Time { return later }
	bus.Emit(samsung.Event{Type: samsung.EventDeviceDiscovered, Data: samsung.Discovery{Address: "10.00.00", Kind: protocol.KindOutdoor}})
	if err := rec.Flush(); err != nil {
		t.Fatal(err)
	}

	dev, err := s.GetDiscovered("10.00.00")
	if err != nil {
		t.Fatal(err)
	}
	if !dev.FirstSeen.Equal(first) || !dev.LastSeen.Equal(later) {
		t.Errorf("seen = %v..%v, want %v..%v", dev.FirstSeen, dev.LastSeen, first, later)
	}
	if dev.Kind != string(protocol.KindOutdoor) {
		t.Errorf("kind = %q, want %q", dev.Kind, protocol.KindOutdoor)
	}

	addresses, err := LoadDiscovered(s)
	if err != nil {
		t.Fatal(err)
	}
	if len(addresses) != 1 || addresses[0] != "10.00.00" {
		t.Errorf("addresses = %v, want [10.00.00]", addresses)
	}
}

func TestRecorderCoalescesSightings(t *testing.T) {
	s := newTestStore(t)
	logger := newTestLogger()
	bus := samsung.NewEventBus(logger)
	rec := NewRecorder(s, 0, logger)
	defer rec.Subscribe(bus)()

	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		at := first.Add(time.Duration(i) * time.Minute)
		rec.now = func() time.Time { return at }
		bus.Emit(samsung.Event{Type: samsung.EventDeviceDiscovered, Data: samsung.Discovery{Address: "c8", Kind: protocol.KindIndoor}})
	}
	if err := rec.Flush(); err != nil {
		t.Fatal(err)
	}
	dev, err := s.GetDiscovered("c8")
	if err != nil {
		t.Fatal(err)
	}
	if !dev.FirstSeen.Equal(first) || !dev.LastSeen.Equal(first.Add(2*time.Minute)) {
		t.Errorf("seen = %v..%v", dev.FirstSeen, dev.LastSeen)
	}
}
