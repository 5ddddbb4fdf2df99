package samsung

import "strings"

// Device is one configured unit on the bus.
type Device struct {
	Address      string
	Name         string
	Capabilities Capabilities
	Bindings     *BindingTable

	climate climateTracker
}

// NewDevice creates a device with an empty binding table.
func NewDevice(address, name string, caps Capabilities) *Device {
	address = NormalizeAddress(address)
	if name == "" {
		name = "Samsung AC " + address
	}
	return &Device{
		Address:      address,
		Name:         name,
		Capabilities: caps,
		Bindings:     NewBindingTable(),
	}
}

// NormalizeAddress returns the canonical lower-case form of an address.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
