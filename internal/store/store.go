package store

import "errors"

// ErrNotFound is returned when a requested entity does not exist in the store.
var ErrNotFound = errors.New("not found")

// Store defines the persistence interface.
type Store interface {
	// Entity state operations
	SaveStates(states []*EntityState) error
	ListStates() ([]*EntityState, error)
	DeleteDeviceStates(address string) error

	// Discovered bus addresses
	SaveDiscovered(dev *DiscoveredDevice) error
	GetDiscovered(address string) (*DiscoveredDevice, error)
	ListDiscovered() ([]*DiscoveredDevice, error)

	// UpdateDiscovered atomically reads, modifies, and saves a discovered
	// device. Returns ErrNotFound if it does not exist.
	UpdateDiscovered(address string, fn func(dev *DiscoveredDevice) error) error

	// Close the store
	Close() error
}
