package store

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := NewBoltStore(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndListStates(t *testing.T) {
	s := newTestStore(t)

	now := time.Now().Truncate(time.Millisecond)
	states := []*EntityState{
		{Address: "20.00.00", Key: "room_temperature", Role: "room_temperature", Kind: "sensor", Value: json.RawMessage(`21.5`), Updated: now},
		{Address: "20.00.00", Key: "power", Role: "power", Kind: "switch", Value: json.RawMessage(`true`), Updated: now},
	}
	if err := s.SaveStates(states); err != nil {
		t.Fatal(err)
	}

	got, err := s.ListStates()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("states = %d, want 2", len(got))
	}
	byKey := map[string]*EntityState{}
	for _, st := range got {
		byKey[st.Key] = st
	}
	if string(byKey["room_temperature"].Value) != "21.5" {
		t.Errorf("room_temperature = %s, want 21.5", byKey["room_temperature"].Value)
	}
	if !byKey["power"].Updated.Equal(now) {
		t.Errorf("updated = %v, want %v", byKey["power"].Updated, now)
	}
}

func TestSaveStatesOverwrites(t *testing.T) {
	s := newTestStore(t)

	st := &EntityState{Address: "20.00.00", Key: "power", Value: json.RawMessage(`false`)}
	if err := s.SaveStates([]*EntityState{st}); err != nil {
		t.Fatal(err)
	}
	st.Value = json.RawMessage(`true`)
	if err := s.SaveStates([]*EntityState{st}); err != nil {
		t.Fatal(err)
	}

	got, err := s.ListStates()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || string(got[0].Value) != "true" {
		t.Errorf("states = %+v, want one entry with true", got)
	}
}

func TestSaveStatesEmpty(t *testing.T) {
	s := newTestStore(t)
	if err := s.SaveStates(nil); err != nil {
		t.Fatal(err)
	}
}

func TestDeleteDeviceStates(t *testing.T) {
	s := newTestStore(t)

	err := s.SaveStates([]*EntityState{
		{Address: "20.00.00", Key: "power", Value: json.RawMessage(`true`)},
		{Address: "20.00.00", Key: "mode", Value: json.RawMessage(`"Cool"`)},
		{Address: "20.00.01", Key: "power", Value: json.RawMessage(`false`)},
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteDeviceStates("20.00.00"); err != nil {
		t.Fatal(err)
	}

	got, err := s.ListStates()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Address != "20.00.01" {
		t.Errorf("states = %+v, want only 20.00.01", got)
	}
}

func TestDiscoveredNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetDiscovered("10.00.00")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}

	err = s.UpdateDiscovered("10.00.00", func(*DiscoveredDevice) error { return nil })
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("update err = %v, want ErrNotFound", err)
	}
}

func TestSaveAndUpdateDiscovered(t *testing.T) {
	s := newTestStore(t)

	first := time.Now().Truncate(time.Millisecond)
	if err := s.SaveDiscovered(&DiscoveredDevice{Address: "10.00.00", Kind: "outdoor", FirstSeen: first, LastSeen: first}); err != nil {
		t.Fatal(err)
	}

	later := first.Add(time.Minute)
	err := s.UpdateDiscovered("10.00.00", func(d *DiscoveredDevice) error {
		d.LastSeen = later
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.GetDiscovered("10.00.00")
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind != "outdoor" {
		t.Errorf("kind = %q, want outdoor", got.Kind)
	}
	if !got.FirstSeen.Equal(first) || !got.LastSeen.Equal(later) {
		t.Errorf("seen = %v..%v, want %v..%v", got.FirstSeen, got.LastSeen, first, later)
	}

	all, err := s.ListDiscovered()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Errorf("discovered = %d, want 1", len(all))
	}
}

func TestUpdateDiscoveredError(t *testing.T) {
	s := newTestStore(t)
	if err := s.SaveDiscovered(&DiscoveredDevice{Address: "10.00.00", Kind: "outdoor"}); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	err := s.UpdateDiscovered("10.00.00", func(d *DiscoveredDevice) error {
		d.Kind = "other"
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	got, err := s.GetDiscovered("10.00.00")
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind != "outdoor" {
		t.Errorf("kind = %q, want unchanged outdoor", got.Kind)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := NewBoltStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SaveStates([]*EntityState{{Address: "20.00.00", Key: "power", Value: json.RawMessage(`true`)}}); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = NewBoltStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	got, err := s.ListStates()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("states after reopen = %d, want 1", len(got))
	}
}
