package samsung

import "samsung-ac-bridge/internal/protocol"

// Controller bundles the core components for the outer surfaces (web API,
// automation scripts, MQTT). It holds no state of its own.
type Controller struct {
	registry   *Registry
	router     *Router
	translator *Translator
	mailbox    *Mailbox
	bus        *EventBus
}

// NewController creates a controller over already wired components.
func NewController(registry *Registry, router *Router, translator *Translator, mailbox *Mailbox, bus *EventBus) *Controller {
	return &Controller{
		registry:   registry,
		router:     router,
		translator: translator,
		mailbox:    mailbox,
		bus:        bus,
	}
}

func (c *Controller) Events() *EventBus { return c.bus }

func (c *Controller) Devices() []*Device { return c.registry.Devices() }

func (c *Controller) Device(address string) (*Device, error) {
	return c.registry.Resolve(address)
}

// Last returns the latest value of an entity.
func (c *Controller) Last(address, key string) (Update, bool) {
	return c.mailbox.Last(address, key)
}

// Snapshot returns the latest value of every entity.
func (c *Controller) Snapshot() []Update { return c.mailbox.Snapshot() }

// Discovered returns the unconfigured addresses seen on the bus.
func (c *Controller) Discovered() []Discovery { return c.router.Discovered() }

// WriteKey queues a write request for an entity.
func (c *Controller) WriteKey(address, key string, v Value) error {
	return c.translator.WriteKey(address, key, v)
}

// WriteRaw queues an arbitrary message value for a bus address.
func (c *Controller) WriteRaw(address string, id protocol.MessageNumber, raw int64) error {
	return c.translator.WriteRaw(address, id, raw)
}
