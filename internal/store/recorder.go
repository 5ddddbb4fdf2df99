package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"samsung-ac-bridge/internal/samsung"
)

// DefaultFlushInterval is how often buffered entity states are written.
const DefaultFlushInterval = 10 * time.Second

// Recorder persists entity updates and discovered addresses from the bus.
// Both are buffered in memory and written in batches by Flush, so bus
// handlers never touch the disk.
type Recorder struct {
	store    Store
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu     sync.Mutex
	dirty  map[string]*EntityState
	sights map[string]*sighting
}

type sighting struct {
	kind        string
	first, last time.Time
}

// NewRecorder creates a recorder. A zero interval uses DefaultFlushInterval.
func NewRecorder(s Store, interval time.Duration, logger *slog.Logger) *Recorder {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &Recorder{
		store:    s,
		interval: interval,
		logger:   logger.With("component", "recorder"),
		now:      time.Now,
		dirty:    make(map[string]*EntityState),
		sights:   make(map[string]*sighting),
	}
}

// Subscribe registers the recorder on the bus and returns the unsubscribe func.
func (r *Recorder) Subscribe(bus *samsung.EventBus) func() {
	offUpdate := bus.OnUpdate(r.record)
	offDiscovered := bus.OnDiscovery(r.discovered)
	return func() {
		offUpdate()
		offDiscovered()
	}
}

func (r *Recorder) record(u samsung.Update) {
	value, err := json.Marshal(u.Value)
	if err != nil {
		r.logger.Warn("encode state", "device", u.Device, "key", u.Key, "err", err)
		return
	}
	st := &EntityState{
		Address: u.Device,
		Key:     u.Key,
		Role:    u.Role,
		Kind:    u.Kind,
		Value:   value,
		Updated: u.Time,
	}
	r.mu.Lock()
	r.dirty[string(st.storageKey())] = st
	r.mu.Unlock()
}

func (r *Recorder) discovered(d samsung.Discovery) {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sights[d.Address]; ok {
		s.kind = string(d.Kind)
		s.last = now
		return
	}
	r.sights[d.Address] = &sighting{kind: string(d.Kind), first: now, last: now}
}

func (r *Recorder) saveSighting(address string, s *sighting) error {
	err := r.store.UpdateDiscovered(address, func(dev *DiscoveredDevice) error {
		dev.LastSeen = s.last
		dev.Kind = s.kind
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		err = r.store.SaveDiscovered(&DiscoveredDevice{
			Address:   address,
			Kind:      s.kind,
			FirstSeen: s.first,
			LastSeen:  s.last,
		})
	}
	return err
}

// Flush writes buffered discoveries and states. A discovery that fails to
// save is logged and dropped; a state batch error is returned.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	sights := r.sights
	r.sights = make(map[string]*sighting)
	batch := make([]*EntityState, 0, len(r.dirty))
	for _, st := range r.dirty {
		batch = append(batch, st)
	}
	r.dirty = make(map[string]*EntityState)
	r.mu.Unlock()

	for address, s := range sights {
		if err := r.saveSighting(address, s); err != nil {
			r.logger.Warn("save discovered device", "address", address, "err", err)
		}
	}
	if len(batch) == 0 {
		return nil
	}
	if err := r.store.SaveStates(batch); err != nil {
		return err
	}
	r.logger.Debug("states flushed", "count", len(batch))
	return nil
}

// Run flushes periodically until ctx is cancelled, then flushes once more.
func (r *Recorder) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := r.Flush(); err != nil {
				r.logger.Error("final flush", "err", err)
			}
			return
		case <-ticker.C:
			if err := r.Flush(); err != nil {
				r.logger.Error("flush states", "err", err)
			}
		}
	}
}

// LoadStates returns the persisted states as entity updates. Entries that no
// longer decode are skipped.
func LoadStates(s Store, logger *slog.Logger) ([]samsung.Update, error) {
	states, err := s.ListStates()
	if err != nil {
		return nil, err
	}
	out := make([]samsung.Update, 0, len(states))
	for _, st := range states {
		var v samsung.Value
		if err := json.Unmarshal(st.Value, &v); err != nil {
			logger.Warn("skip stored state", "address", st.Address, "key", st.Key, "err", err)
			continue
		}
		out = append(out, samsung.Update{
			Device: st.Address,
			Key:    st.Key,
			Role:   st.Role,
			Kind:   st.Kind,
			Value:  v,
			Time:   st.Updated,
		})
	}
	return out, nil
}

// LoadDiscovered returns the persisted discovered addresses.
func LoadDiscovered(s Store) ([]string, error) {
	devices, err := s.ListDiscovered()
	if err != nil {
		return nil, err
	}
	out := make([]string, len(devices))
	for i, d := range devices {
		out[i] = d.Address
	}
	return out, nil
}
