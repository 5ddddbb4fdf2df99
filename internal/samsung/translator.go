package samsung

import (
	"errors"
	"fmt"
	"log/slog"

	"samsung-ac-bridge/internal/protocol"
)

// Outbox queues outbound commands for the driver. Submit never blocks.
type Outbox struct {
	ch chan protocol.Command
}

// NewOutbox creates an outbox holding at most size commands.
func NewOutbox(size int) *Outbox {
	if size <= 0 {
		size = 64
	}
	return &Outbox{ch: make(chan protocol.Command, size)}
}

// Submit queues cmd or fails with ErrOutboxFull.
func (o *Outbox) Submit(cmd protocol.Command) error {
	select {
	case o.ch <- cmd:
		return nil
	default:
		return ErrOutboxFull
	}
}

// Next returns the oldest queued command, if any.
func (o *Outbox) Next() (protocol.Command, bool) {
	select {
	case cmd := <-o.ch:
		return cmd, true
	default:
		return protocol.Command{}, false
	}
}

// Len returns the number of queued commands.
func (o *Outbox) Len() int { return len(o.ch) }

// Translator turns entity write requests into outbound commands.
type Translator struct {
	registry *Registry
	mirror   Mirror
	outbox   *Outbox
	bus      *EventBus
	logger   *slog.Logger
}

// NewTranslator creates a translator. mirror and bus may be nil.
func NewTranslator(registry *Registry, mirror Mirror, outbox *Outbox, bus *EventBus, logger *slog.Logger) *Translator {
	if mirror == nil {
		mirror = nopMirror{}
	}
	return &Translator{
		registry: registry,
		mirror:   mirror,
		outbox:   outbox,
		bus:      bus,
		logger:   logger.With("component", "translator"),
	}
}

// Translate encodes a write request for role on dev. Nothing is sent.
func (t *Translator) Translate(dev *Device, role Role, v Value) (protocol.Command, error) {
	b, err := dev.Bindings.LookupRole(role)
	if err != nil {
		return protocol.Command{}, err
	}
	return t.translate(dev, b, v)
}

func (t *Translator) translate(dev *Device, b *Binding, v Value) (protocol.Command, error) {
	cmd := protocol.Command{Address: dev.Address}
	switch b.Kind {
	case EntitySensor:
		return cmd, fmt.Errorf("%w: %s", ErrReadOnly, b.Key)
	case EntityClimate:
		var msgs []protocol.MessageValue
		var err error
		if b.Role == RoleCustomClimate {
			msgs, err = translateCustomClimate(b, v)
		} else {
			msgs, err = translateClimate(dev, v)
		}
		if err != nil {
			return cmd, err
		}
		cmd.Messages = msgs
		return cmd, nil
	}

	if b.Range != nil {
		if v.Kind != KindNumber {
			return cmd, fmt.Errorf("%w: %s wants a number", ErrWrongKind, b.Key)
		}
		if err := b.Range.Check(v.Number); err != nil {
			return cmd, fmt.Errorf("%s: %w", b.Key, err)
		}
	}
	raw, err := b.Transform.Encode(v)
	if err != nil {
		return cmd, fmt.Errorf("%s: %w", b.Key, err)
	}
	cmd.Messages = []protocol.MessageValue{{Number: b.MessageID, Raw: raw}}
	return cmd, nil
}

func translateClimate(dev *Device, v Value) ([]protocol.MessageValue, error) {
	if v.Kind != KindClimate || v.Command == nil {
		return nil, fmt.Errorf("%w: climate wants a climate command", ErrWrongKind)
	}
	c := v.Command
	caps := dev.Capabilities
	var msgs []protocol.MessageValue
	add := func(id protocol.MessageNumber, raw int64) {
		msgs = append(msgs, protocol.MessageValue{Number: id, Raw: raw})
	}

	if c.Mode != "" {
		if c.Mode == ClimateModeOff {
			add(protocol.MsgPower, 0)
		} else {
			code, err := ClimateModeVocabulary.Code(c.Mode)
			if err != nil {
				return nil, err
			}
			add(protocol.MsgPower, 1)
			add(protocol.MsgMode, code)
		}
	}

	if c.Target != nil {
		rng := Range{Min: 16, Max: 30, Step: 1}
		if b, err := dev.Bindings.LookupRole(RoleTargetTemperature); err == nil && b.Range != nil {
			rng = *b.Range
		}
		if err := rng.Check(*c.Target); err != nil {
			return nil, fmt.Errorf("target temperature: %w", err)
		}
		raw, err := Temperature.Encode(Number(*c.Target))
		if err != nil {
			return nil, err
		}
		add(protocol.MsgTargetTemperature, raw)
	}

	if c.FanMode != "" {
		code, err := FanModeVocabulary.Code(c.FanMode)
		if err != nil {
			return nil, err
		}
		add(protocol.MsgFanMode, code)
	}

	if c.Preset != "" {
		code, err := caps.AltModeCode(c.Preset)
		if err != nil {
			return nil, err
		}
		add(protocol.MsgAltMode, code)
	}

	if c.Swing != "" {
		supported := false
		for _, m := range caps.SwingModes() {
			if m == c.Swing {
				supported = true
				break
			}
		}
		if !supported {
			return nil, fmt.Errorf("%w: swing %q not supported", ErrInvalidOption, c.Swing)
		}
		vertical := c.Swing == SwingVertical || c.Swing == SwingBoth
		horizontal := c.Swing == SwingHorizontal || c.Swing == SwingBoth
		if caps.VerticalSwing {
			add(protocol.MsgSwingVertical, boolRaw(vertical))
		}
		if caps.HorizontalSwing {
			add(protocol.MsgSwingHorizontal, boolRaw(horizontal))
		}
	}

	if len(msgs) == 0 {
		return nil, fmt.Errorf("%w: empty climate command", ErrWrongKind)
	}
	return msgs, nil
}

func boolRaw(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// Write is the entity write path: translate, mirror, queue. It does not wait
// for the unit to acknowledge; the acknowledgement arrives as an ordinary
// inbound message.
func (t *Translator) Write(address string, role Role, v Value) error {
	dev, err := t.registry.Resolve(address)
	if err != nil {
		return err
	}
	b, err := dev.Bindings.LookupRole(role)
	if err != nil {
		return err
	}
	return t.write(dev, b, v)
}

// WriteKey is Write addressed by entity key.
func (t *Translator) WriteKey(address, key string, v Value) error {
	dev, err := t.registry.Resolve(address)
	if err != nil {
		return err
	}
	b, err := dev.Bindings.LookupKey(key)
	if err != nil {
		return err
	}
	return t.write(dev, b, v)
}

func (t *Translator) write(dev *Device, b *Binding, v Value) error {
	cmd, err := t.translate(dev, b, v)
	if err != nil {
		t.logger.Warn("write rejected", "address", dev.Address, "key", b.Key, "value", v, "err", err)
		return err
	}

	for _, m := range cmd.Messages {
		decoded := v
		t.mirror.OnMessage(DirectionTx, dev.Address, m.Number, protocol.PayloadBytes(m.Number, m.Raw), &decoded, true)
	}

	return t.submit(cmd, "key", b.Key, "value", v)
}

// WriteRaw queues one message with an arbitrary id and payload for a NASA
// address, configured or not. Bindings are bypassed and nothing is decoded,
// so the mirror only shows it under raw logging.
func (t *Translator) WriteRaw(address string, id protocol.MessageNumber, raw int64) error {
	address = NormalizeAddress(address)
	if !protocol.IsNASA(address) {
		return fmt.Errorf("%w: raw writes need a NASA address, got %q", protocol.ErrInvalidAddress, address)
	}
	if _, err := protocol.ParseAddress(address); err != nil {
		return err
	}
	size := id.Type().Size()
	if size == 0 {
		return fmt.Errorf("%w: %s carries a structure payload", ErrWrongKind, id)
	}
	bits := uint(8 * size)
	if raw < -(int64(1)<<(bits-1)) || raw > int64(1)<<bits-1 {
		return fmt.Errorf("%w: %d does not fit %s", ErrOutOfRange, raw, id.Type())
	}
	raw &= int64(1)<<bits - 1

	cmd := protocol.Command{Address: address, Messages: []protocol.MessageValue{{Number: id, Raw: raw}}}
	t.mirror.OnMessage(DirectionTx, address, id, protocol.PayloadBytes(id, raw), nil, true)
	return t.submit(cmd, "id", id, "raw", raw)
}

func (t *Translator) submit(cmd protocol.Command, attrs ...any) error {
	if err := t.outbox.Submit(cmd); err != nil {
		t.logger.Warn("command dropped", append([]any{"address", cmd.Address, "err", err}, attrs...)...)
		return err
	}
	t.logger.Debug("command queued", append([]any{"address", cmd.Address, "messages", len(cmd.Messages)}, attrs...)...)
	t.bus.Emit(Event{Type: EventCommandQueued, Data: cmd})
	return nil
}

// IsRejection reports whether err is a validation failure of the request
// itself, as opposed to a full outbox.
func IsRejection(err error) bool {
	return errors.Is(err, ErrInvalidOption) || errors.Is(err, ErrOutOfRange) ||
		errors.Is(err, ErrWrongKind) || errors.Is(err, ErrReadOnly) ||
		errors.Is(err, ErrNoBinding) || errors.Is(err, ErrUnknownDevice) ||
		errors.Is(err, protocol.ErrInvalidAddress)
}
