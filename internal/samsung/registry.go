package samsung

import (
	"fmt"
	"sync"
)

// Registry holds the configured devices keyed by address. Iteration follows
// registration order.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]*Device
	order   []*Device
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{devices: make(map[string]*Device)}
}

// Register adds a device. A duplicate address fails and leaves the registry
// unchanged.
func (r *Registry) Register(d *Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := NormalizeAddress(d.Address)
	if _, ok := r.devices[key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateAddress, d.Address)
	}
	r.devices[key] = d
	r.order = append(r.order, d)
	return nil
}

// Resolve returns the device registered at address.
func (r *Registry) Resolve(address string) (*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[NormalizeAddress(address)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, address)
	}
	return d, nil
}

// Devices returns all devices in registration order.
func (r *Registry) Devices() []*Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Device, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Addresses returns the registered addresses in order.
func (r *Registry) Addresses() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	for i, d := range r.order {
		out[i] = d.Address
	}
	return out
}
