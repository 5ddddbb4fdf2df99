package samsung

import (
	"fmt"
	"strings"

	"samsung-ac-bridge/internal/protocol"
)

// EntitySpec requests one binding on a device. MessageID and Transform are
// only used by custom sensors, Climate only by custom climates. Range
// overrides the role default for numbers and custom climates.
type EntitySpec struct {
	Role        Role
	Name        string
	Key         string
	MessageID   protocol.MessageNumber
	Transform   Transform
	Unit        string
	DeviceClass string
	Range       *Range
	Climate     *CustomClimate
}

// DeviceSpec describes a device to build.
type DeviceSpec struct {
	Address      string
	Name         string
	Capabilities Capabilities
	Entities     []EntitySpec
}

// HandleFactory returns the entity handle for a new binding.
type HandleFactory func(dev *Device, b Binding) Handle

// NewBinding builds a binding from the role definition and the entity spec's
// overrides. The handle is left nil.
func NewBinding(spec EntitySpec) (Binding, error) {
	def, ok := spec.Role.Def()
	if !ok {
		return Binding{}, fmt.Errorf("unknown role %d", spec.Role)
	}
	b := Binding{
		Role:        spec.Role,
		Key:         def.Key,
		Name:        def.Name,
		Kind:        def.Kind,
		MessageID:   def.MessageID,
		Transform:   def.Transform,
		Unit:        def.Unit,
		DeviceClass: def.DeviceClass,
		Range:       def.Range,
		Vocabulary:  def.Vocabulary,
	}

	switch spec.Role {
	case RoleCustomSensor:
		if spec.MessageID == 0 {
			return Binding{}, fmt.Errorf("custom sensor %q: message id is required", spec.Name)
		}
		b.MessageID = spec.MessageID
		b.Transform = spec.Transform
		if b.Transform == nil {
			b.Transform = Raw
		}
		b.Transform = fitWidth(b.Transform, spec.MessageID)
		b.Unit = spec.Unit
		b.DeviceClass = spec.DeviceClass
		b.Key = spec.Key
		if b.Key == "" {
			b.Key = customKey("sensor", spec.Name, spec.MessageID)
		}
	case RoleCustomClimate:
		if spec.Climate == nil {
			return Binding{}, fmt.Errorf("custom climate %q: message ids are required", spec.Name)
		}
		if err := spec.Climate.validate(); err != nil {
			return Binding{}, fmt.Errorf("custom climate %q: %w", spec.Name, err)
		}
		if spec.Range != nil {
			if spec.Range.Min > spec.Range.Max {
				return Binding{}, fmt.Errorf("custom climate %q: min %v is above max %v", spec.Name, spec.Range.Min, spec.Range.Max)
			}
			r := *spec.Range
			b.Range = &r
		}
		b.Custom = spec.Climate
		b.Key = spec.Key
		if b.Key == "" {
			b.Key = customKey("climate", spec.Name, spec.Climate.Set)
		}
	case RoleTargetTemperature, RoleWaterOutletTarget, RoleWaterTargetTemperature:
		if spec.Range != nil {
			if spec.Range.Min > spec.Range.Max {
				return Binding{}, fmt.Errorf("%s: min %v is above max %v", def.Key, spec.Range.Min, spec.Range.Max)
			}
			r := *spec.Range
			b.Range = &r
		}
	}

	if spec.Name != "" {
		b.Name = spec.Name
	}
	return b, nil
}

// fitWidth sizes a scaled transform to the payload width carried by id, so
// a 4-byte payload is never masked down to 16 bits.
func fitWidth(t Transform, id protocol.MessageNumber) Transform {
	s, ok := t.(Scaled)
	if !ok {
		return t
	}
	if size := id.Type().Size(); size > 0 {
		s.Bits = uint8(8 * size)
	}
	return s
}

func customKey(prefix, name string, id protocol.MessageNumber) string {
	if name == "" {
		return fmt.Sprintf("%s_%04x", prefix, uint16(id))
	}
	var sb strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	return strings.Trim(sb.String(), "_")
}

// BuildRegistry builds every device and its bindings. It returns the first
// configuration error and no registry; a partial registry is never returned.
func BuildRegistry(specs []DeviceSpec, factory HandleFactory) (*Registry, error) {
	reg := NewRegistry()
	for _, spec := range specs {
		dev := NewDevice(spec.Address, spec.Name, spec.Capabilities)
		for _, es := range spec.Entities {
			b, err := NewBinding(es)
			if err != nil {
				return nil, fmt.Errorf("device %s: %w", dev.Address, err)
			}
			b.Handle = factory(dev, b)
			if err := dev.Bindings.Bind(b); err != nil {
				return nil, fmt.Errorf("device %s: %w", dev.Address, err)
			}
		}
		if err := reg.Register(dev); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// AddCustomSensor binds a custom sensor on an already built device.
func AddCustomSensor(dev *Device, spec EntitySpec, factory HandleFactory) (*Binding, error) {
	spec.Role = RoleCustomSensor
	b, err := NewBinding(spec)
	if err != nil {
		return nil, err
	}
	b.Handle = factory(dev, b)
	if err := dev.Bindings.Bind(b); err != nil {
		return nil, err
	}
	return dev.Bindings.LookupKey(b.Key)
}
