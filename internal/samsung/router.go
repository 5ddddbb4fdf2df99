package samsung

import (
	"log/slog"
	"sync"

	"samsung-ac-bridge/internal/protocol"
)

// Direction of a mirrored message.
type Direction string

const (
	DirectionRx Direction = "rx"
	DirectionTx Direction = "tx"
)

// Mirror receives a copy of every routed and translated message. It must not
// block and never reports errors. decoded is nil when no entity was updated;
// bound is false when no entity listens for the message at all.
type Mirror interface {
	OnMessage(dir Direction, address string, id protocol.MessageNumber, raw []byte, decoded *Value, bound bool)
}

type nopMirror struct{}

func (nopMirror) OnMessage(Direction, string, protocol.MessageNumber, []byte, *Value, bool) {}

// RouteResult is the outcome of routing one message.
type RouteResult uint8

const (
	RouteUpdated RouteResult = iota
	RouteUnknownDevice
	RouteNoBinding
	RouteTransformError
)

func (r RouteResult) String() string {
	switch r {
	case RouteUpdated:
		return "updated"
	case RouteUnknownDevice:
		return "unknown_device"
	case RouteNoBinding:
		return "no_binding"
	case RouteTransformError:
		return "transform_error"
	}
	return "unknown"
}

// Discovery is an address seen on the bus that is not configured.
type Discovery struct {
	Address string               `json:"address"`
	Kind    protocol.AddressKind `json:"kind"`
}

// Router dispatches decoded messages to bound entities. Route is called from
// a single goroutine per bus.
type Router struct {
	registry *Registry
	settings *DebugSettings
	mirror   Mirror
	bus      *EventBus
	logger   *slog.Logger

	mu         sync.RWMutex
	discovered map[string]protocol.AddressKind
	order      []string
}

// NewRouter creates a router. mirror and bus may be nil.
func NewRouter(registry *Registry, settings *DebugSettings, mirror Mirror, bus *EventBus, logger *slog.Logger) *Router {
	if mirror == nil {
		mirror = nopMirror{}
	}
	if settings == nil {
		settings = &DebugSettings{}
	}
	return &Router{
		registry:   registry,
		settings:   settings,
		mirror:     mirror,
		bus:        bus,
		logger:     logger.With("component", "router"),
		discovered: make(map[string]protocol.AddressKind),
	}
}

// Route delivers one message. It never fails; the result says what happened.
func (r *Router) Route(address string, id protocol.MessageNumber, raw int64) RouteResult {
	address = NormalizeAddress(address)
	payload := protocol.PayloadBytes(id, raw)

	dev, err := r.registry.Resolve(address)
	if err != nil {
		r.discover(address)
		if r.settings.LogUndefined {
			r.logger.Debug("message from unknown device", "address", address, "id", id, "raw", raw)
		}
		r.mirror.OnMessage(DirectionRx, address, id, payload, nil, false)
		return RouteUnknownDevice
	}

	result := RouteNoBinding
	var decoded *Value

	if b, err := dev.Bindings.Lookup(id); err == nil {
		v, err := b.Transform.Decode(raw)
		if err != nil {
			r.logger.Warn("transform failed", "address", address, "key", b.Key, "id", id, "raw", raw, "err", err)
			result = RouteTransformError
		} else {
			b.Handle.Update(v)
			decoded = &v
			result = RouteUpdated
		}
	}

	if cb := dev.Bindings.Climate(); cb != nil && dev.climate.apply(dev.Capabilities, id, raw) {
		v := Climate(dev.climate.state(dev.Capabilities))
		cb.Handle.Update(v)
		if decoded == nil {
			decoded = &v
		}
		if result == RouteNoBinding {
			result = RouteUpdated
		}
	}

	for _, cb := range dev.Bindings.CustomClimates() {
		if !cb.Custom.apply(id, raw) {
			continue
		}
		v := Climate(cb.Custom.state())
		cb.Handle.Update(v)
		if decoded == nil {
			decoded = &v
		}
		if result == RouteNoBinding {
			result = RouteUpdated
		}
	}

	if result == RouteNoBinding && r.settings.LogUndefined {
		r.logger.Debug("unbound message", "address", address, "id", id, "name", id.Name(), "raw", raw)
	}
	r.mirror.OnMessage(DirectionRx, address, id, payload, decoded, result != RouteNoBinding)
	return result
}

func (r *Router) discover(address string) {
	r.mu.RLock()
	_, seen := r.discovered[address]
	r.mu.RUnlock()
	if seen {
		return
	}

	kind := protocol.Classify(address)
	r.mu.Lock()
	if _, seen := r.discovered[address]; seen {
		r.mu.Unlock()
		return
	}
	r.discovered[address] = kind
	r.order = append(r.order, address)
	r.mu.Unlock()

	r.logger.Info("discovered device", "address", address, "kind", kind)
	r.bus.Emit(Event{Type: EventDeviceDiscovered, Data: Discovery{Address: address, Kind: kind}})
}

// Remember marks addresses as already discovered without emitting events.
func (r *Router) Remember(addresses []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range addresses {
		a = NormalizeAddress(a)
		if _, ok := r.discovered[a]; ok {
			continue
		}
		r.discovered[a] = protocol.Classify(a)
		r.order = append(r.order, a)
	}
}

// Discovered returns the unconfigured addresses seen so far, in order.
func (r *Router) Discovered() []Discovery {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Discovery, len(r.order))
	for i, a := range r.order {
		out[i] = Discovery{Address: a, Kind: r.discovered[a]}
	}
	return out
}
