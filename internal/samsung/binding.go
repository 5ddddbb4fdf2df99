package samsung

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"samsung-ac-bridge/internal/protocol"
)

// Handle is the entity side of a binding. Update must not block.
type Handle interface {
	Update(v Value)
}

// HandleFunc adapts a function to Handle.
type HandleFunc func(v Value)

func (f HandleFunc) Update(v Value) { f(v) }

// Binding associates a message id on a device with an entity.
type Binding struct {
	Role        Role
	Key         string
	Name        string
	Kind        EntityKind
	MessageID   protocol.MessageNumber
	Transform   Transform
	Handle      Handle
	Unit        string
	DeviceClass string
	Range       *Range
	Vocabulary  *Vocabulary
	// Custom is set on custom climate bindings only.
	Custom *CustomClimate
}

// custom reports whether several bindings of the role may share a device.
func (r Role) custom() bool {
	return r == RoleCustomSensor || r == RoleCustomClimate
}

// composite reports whether the role listens to several message ids rather
// than one.
func (r Role) composite() bool {
	return r == RoleClimate || r == RoleCustomClimate
}

// Options returns the select options or the modes of a custom climate, and
// nil for other kinds.
func (b *Binding) Options() []string {
	if b.Custom != nil {
		return b.Custom.ModeNames()
	}
	if b.Vocabulary == nil {
		return nil
	}
	return b.Vocabulary.Options()
}

// ParseValue parses a textual write request for this binding's kind.
func (b *Binding) ParseValue(s string) (Value, error) {
	s = strings.TrimSpace(s)
	switch b.Kind {
	case EntitySwitch:
		switch strings.ToUpper(s) {
		case "ON", "TRUE", "1":
			return Bool(true), nil
		case "OFF", "FALSE", "0":
			return Bool(false), nil
		}
		return Value{}, fmt.Errorf("%w: %q is not a switch state", ErrWrongKind, s)
	case EntityNumber, EntitySensor:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q is not a number", ErrWrongKind, s)
		}
		return Number(f), nil
	case EntitySelect:
		return Option(s), nil
	}
	return Value{}, fmt.Errorf("%w: cannot parse %s from text", ErrWrongKind, b.Kind)
}

// BindingTable is a device's set of bindings. Lookups are O(1). The table is
// built at configuration time; custom sensors may be added later. Custom
// climates listen to several ids and are kept apart from the id index.
type BindingTable struct {
	mu        sync.RWMutex
	byMessage map[protocol.MessageNumber]*Binding
	byRole    map[Role]*Binding
	byKey     map[string]*Binding
	order     []*Binding
	climates  []*Binding
}

// NewBindingTable creates an empty table.
func NewBindingTable() *BindingTable {
	return &BindingTable{
		byMessage: make(map[protocol.MessageNumber]*Binding),
		byRole:    make(map[Role]*Binding),
		byKey:     make(map[string]*Binding),
	}
}

// Bind adds a binding. A message id, fixed role or key may only be bound once
// per device.
func (t *BindingTable) Bind(b Binding) error {
	if b.Handle == nil {
		return fmt.Errorf("binding %s: nil handle", b.Key)
	}
	if !b.Role.composite() && b.Transform == nil {
		return fmt.Errorf("binding %s: nil transform", b.Key)
	}
	if b.Role == RoleCustomClimate && b.Custom == nil {
		return fmt.Errorf("binding %s: missing custom climate", b.Key)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !b.Role.custom() {
		if prev, ok := t.byRole[b.Role]; ok {
			return fmt.Errorf("%w: role %s already bound as %q", ErrDuplicateBinding, b.Role, prev.Key)
		}
	}
	if !b.Role.composite() {
		if prev, ok := t.byMessage[b.MessageID]; ok {
			return fmt.Errorf("%w: message %s already bound to %q", ErrDuplicateBinding, b.MessageID, prev.Key)
		}
	}
	if _, ok := t.byKey[b.Key]; ok {
		return fmt.Errorf("%w: key %q already bound", ErrDuplicateBinding, b.Key)
	}

	bp := &b
	if !b.Role.composite() {
		t.byMessage[b.MessageID] = bp
	}
	if !b.Role.custom() {
		t.byRole[b.Role] = bp
	}
	if b.Role == RoleCustomClimate {
		t.climates = append(t.climates, bp)
	}
	t.byKey[b.Key] = bp
	t.order = append(t.order, bp)
	return nil
}

// Lookup returns the binding for a message id.
func (t *BindingTable) Lookup(id protocol.MessageNumber) (*Binding, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	b, ok := t.byMessage[id]
	if !ok {
		return nil, ErrNoBinding
	}
	return b, nil
}

// LookupRole returns the binding for a fixed role.
func (t *BindingTable) LookupRole(r Role) (*Binding, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	b, ok := t.byRole[r]
	if !ok {
		return nil, fmt.Errorf("%w: role %s", ErrNoBinding, r)
	}
	return b, nil
}

// LookupKey returns the binding with the given entity key.
func (t *BindingTable) LookupKey(key string) (*Binding, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	b, ok := t.byKey[key]
	if !ok {
		return nil, fmt.Errorf("%w: key %q", ErrNoBinding, key)
	}
	return b, nil
}

// Climate returns the climate binding or nil.
func (t *BindingTable) Climate() *Binding {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.byRole[RoleClimate]
}

// CustomClimates returns the custom climate bindings. They are only bound
// while the registry is built, so the slice is shared.
func (t *BindingTable) CustomClimates() []*Binding {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.climates
}

// All returns the bindings in the order they were added.
func (t *BindingTable) All() []*Binding {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Binding, len(t.order))
	copy(out, t.order)
	return out
}

// Len returns the number of bindings.
func (t *BindingTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.order)
}
