package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// Variant selects which protocol family the bus speaks.
type Variant uint8

const (
	VariantAuto Variant = iota
	VariantNASA
	VariantNonNASA
)

// ParseVariant parses "auto", "nasa" or "non_nasa".
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return VariantAuto, nil
	case "nasa":
		return VariantNASA, nil
	case "non_nasa", "non-nasa", "nonnasa":
		return VariantNonNASA, nil
	}
	return VariantAuto, fmt.Errorf("unknown protocol variant %q", s)
}

func (v Variant) String() string {
	switch v {
	case VariantNASA:
		return "nasa"
	case VariantNonNASA:
		return "non_nasa"
	default:
		return "auto"
	}
}

// Codec turns frames into messages and commands into frames. It keeps the
// last non-NASA status per indoor unit and the outbound packet counter, so
// it must only be used from one goroutine.
type Codec struct {
	variant      Variant
	indoor       map[string]indoorState
	packetNumber uint8
}

// NewCodec creates a codec for the given variant.
func NewCodec(v Variant) *Codec {
	return &Codec{
		variant: v,
		indoor:  make(map[string]indoorState),
	}
}

// Decode returns the notification messages carried by frame. Frames that are
// valid but carry no routable data (acks, requests from other controllers)
// return no messages and no error.
func (c *Codec) Decode(frame []byte) ([]Message, error) {
	if c.isNonNasa(frame) {
		f, err := DecodeNonNasa(frame)
		if err != nil {
			return nil, err
		}
		if st, ok := f.status(); ok {
			c.indoor[f.Source] = st
		}
		return f.Messages(), nil
	}

	p, err := DecodePacket(frame)
	if err != nil {
		return nil, err
	}
	if p.Command.DataType != DataNotification {
		return nil, nil
	}
	src, dst := p.Source.String(), p.Dest.String()
	msgs := make([]Message, 0, len(p.Messages))
	for _, m := range p.Messages {
		msgs = append(msgs, Message{Source: src, Dest: dst, Number: m.Number, Raw: m.Raw})
	}
	return msgs, nil
}

func (c *Codec) isNonNasa(frame []byte) bool {
	switch c.variant {
	case VariantNASA:
		return false
	case VariantNonNASA:
		return true
	}
	return len(frame) == nonNasaSize
}

// Encode renders cmd as a frame for the bus.
func (c *Codec) Encode(cmd Command) ([]byte, error) {
	if len(cmd.Messages) == 0 {
		return nil, fmt.Errorf("%w: empty command for %s", ErrUnsupported, cmd.Address)
	}
	if !IsNASA(cmd.Address) {
		return c.encodeNonNasa(cmd)
	}

	dst, err := ParseAddress(cmd.Address)
	if err != nil {
		return nil, err
	}
	p := Packet{
		Source: BridgeAddress,
		Dest:   dst,
		Command: PacketCommand{
			PacketInformation: true,
			ProtocolVersion:   2,
			PacketType:        PacketNormal,
			DataType:          DataRequest,
			PacketNumber:      c.packetNumber,
		},
		Messages: cmd.Messages,
	}
	c.packetNumber++
	return p.Encode(), nil
}

func (c *Codec) encodeNonNasa(cmd Command) ([]byte, error) {
	dst, err := parseNonNasaAddress(cmd.Address)
	if err != nil {
		return nil, err
	}
	addr := fmt.Sprintf("%02x", dst)
	st, ok := c.indoor[addr]
	if !ok {
		return nil, fmt.Errorf("%w: no status received from %s yet", ErrUnsupported, addr)
	}
	for _, m := range cmd.Messages {
		if st, err = applyNonNasa(st, m); err != nil {
			return nil, err
		}
	}
	c.indoor[addr] = st
	return encodeNonNasaRequest(dst, st), nil
}

// KeepAlive returns the liveness frame emitted for non-NASA buses.
func (c *Codec) KeepAlive() []byte {
	return nonNasaKeepAliveFrame()
}

// Inspect describes a frame for humans, trying NASA first and non-NASA second.
func Inspect(frame []byte) (string, error) {
	p, nasaErr := DecodePacket(frame)
	if nasaErr == nil {
		return "nasa " + p.String(), nil
	}
	f, err := DecodeNonNasa(frame)
	if err == nil {
		return "non_nasa " + f.String(), nil
	}
	return "", errors.Join(nasaErr, err)
}
