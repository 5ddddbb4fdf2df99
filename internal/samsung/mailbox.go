package samsung

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Update is an entity value change.
type Update struct {
	Device string    `json:"device"`
	Key    string    `json:"key"`
	Role   string    `json:"role"`
	Kind   string    `json:"kind"`
	Value  Value     `json:"value"`
	Time   time.Time `json:"time"`
}

type entityKey struct {
	device string
	key    string
}

// Mailbox is the entity update path. Handles write into it without
// blocking; a newer value for an entity replaces one not yet delivered.
// Run delivers pending updates to the event bus.
type Mailbox struct {
	mu      sync.Mutex
	pending map[entityKey]Update
	order   []entityKey
	last    map[entityKey]Update
	notify  chan struct{}
	now     func() time.Time
}

// NewMailbox creates an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{
		pending: make(map[entityKey]Update),
		last:    make(map[entityKey]Update),
		notify:  make(chan struct{}, 1),
		now:     time.Now,
	}
}

// Handle returns the entity handle for a binding. It satisfies HandleFactory.
func (m *Mailbox) Handle(dev *Device, b Binding) Handle {
	address, key, role, kind := dev.Address, b.Key, b.Role.String(), string(b.Kind)
	return HandleFunc(func(v Value) {
		m.put(Update{Device: address, Key: key, Role: role, Kind: kind, Value: v})
	})
}

func (m *Mailbox) put(u Update) {
	u.Time = m.now()
	k := entityKey{u.Device, u.Key}

	m.mu.Lock()
	if _, ok := m.pending[k]; !ok {
		m.order = append(m.order, k)
	}
	m.pending[k] = u
	m.last[k] = u
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// Drain returns the pending updates in first-arrival order and clears them.
func (m *Mailbox) Drain() []Update {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.order) == 0 {
		return nil
	}
	out := make([]Update, 0, len(m.order))
	for _, k := range m.order {
		out = append(out, m.pending[k])
	}
	m.pending = make(map[entityKey]Update)
	m.order = m.order[:0]
	return out
}

// Last returns the latest value of an entity.
func (m *Mailbox) Last(device, key string) (Update, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.last[entityKey{NormalizeAddress(device), key}]
	return u, ok
}

// Snapshot returns the latest value of every entity, sorted by device and key.
func (m *Mailbox) Snapshot() []Update {
	m.mu.Lock()
	out := make([]Update, 0, len(m.last))
	for _, u := range m.last {
		out = append(out, u)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Device != out[j].Device {
			return out[i].Device < out[j].Device
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// Restore seeds last-known values, for example from the store. Restored
// values are not redelivered.
func (m *Mailbox) Restore(updates []Update) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range updates {
		k := entityKey{u.Device, u.Key}
		if _, ok := m.last[k]; !ok {
			m.last[k] = u
		}
	}
}

// Run delivers updates to the bus until ctx is cancelled.
func (m *Mailbox) Run(ctx context.Context, bus *EventBus) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.notify:
			for _, u := range m.Drain() {
				bus.Emit(Event{Type: EventEntityUpdate, Data: u})
			}
		}
	}
}
