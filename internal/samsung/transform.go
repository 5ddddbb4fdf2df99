package samsung

import (
	"fmt"
	"math"
)

// Transform converts between a raw wire integer and an entity value. Both
// directions are pure.
type Transform interface {
	Decode(raw int64) (Value, error)
	Encode(v Value) (int64, error)
}

// Scaled interprets the payload as a fixed-width integer, two's complement
// when Signed, and divides it by Divisor.
type Scaled struct {
	Bits    uint8
	Signed  bool
	Divisor float64
}

func (s Scaled) divisor() float64 {
	if s.Divisor == 0 {
		return 1
	}
	return s.Divisor
}

func (s Scaled) bounds() (lo, hi int64) {
	if s.Signed {
		return -(int64(1) << (s.Bits - 1)), int64(1)<<(s.Bits-1) - 1
	}
	return 0, int64(1)<<s.Bits - 1
}

// Decode masks raw to the declared width and applies the sign and scale.
func (s Scaled) Decode(raw int64) (Value, error) {
	mask := int64(1)<<s.Bits - 1
	n := raw & mask
	if s.Signed && n >= int64(1)<<(s.Bits-1) {
		n -= int64(1) << s.Bits
	}
	return Number(float64(n) / s.divisor()), nil
}

// Encode scales v back to an integer and renders it at the declared width.
func (s Scaled) Encode(v Value) (int64, error) {
	if v.Kind != KindNumber {
		return 0, fmt.Errorf("%w: want number, got %s", ErrWrongKind, v.Kind)
	}
	if math.IsNaN(v.Number) || math.IsInf(v.Number, 0) {
		return 0, fmt.Errorf("%w: %v", ErrOutOfRange, v.Number)
	}
	n := int64(math.Round(v.Number * s.divisor()))
	lo, hi := s.bounds()
	if n < lo || n > hi {
		return 0, fmt.Errorf("%w: %v does not fit %d bits", ErrOutOfRange, v.Number, s.Bits)
	}
	return n & (int64(1)<<s.Bits - 1), nil
}

// Identity passes unsigned payloads through unchanged.
type Identity struct{}

func (Identity) Decode(raw int64) (Value, error) { return Number(float64(raw)), nil }

func (Identity) Encode(v Value) (int64, error) {
	if v.Kind != KindNumber {
		return 0, fmt.Errorf("%w: want number, got %s", ErrWrongKind, v.Kind)
	}
	if v.Number < 0 || v.Number != math.Trunc(v.Number) || v.Number > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %v", ErrOutOfRange, v.Number)
	}
	return int64(v.Number), nil
}

// BoolTransform maps non-zero to on.
type BoolTransform struct{}

func (BoolTransform) Decode(raw int64) (Value, error) { return Bool(raw != 0), nil }

func (BoolTransform) Encode(v Value) (int64, error) {
	if v.Kind != KindBool {
		return 0, fmt.Errorf("%w: want bool, got %s", ErrWrongKind, v.Kind)
	}
	if v.Bool {
		return 1, nil
	}
	return 0, nil
}

// Options maps codes through a vocabulary.
type Options struct {
	Vocabulary *Vocabulary
}

func (o Options) Decode(raw int64) (Value, error) {
	name, err := o.Vocabulary.Option(raw)
	if err != nil {
		return Value{}, err
	}
	return Option(name), nil
}

func (o Options) Encode(v Value) (int64, error) {
	if v.Kind != KindOption {
		return 0, fmt.Errorf("%w: want option, got %s", ErrWrongKind, v.Kind)
	}
	return o.Vocabulary.Code(v.Option)
}

// Common transforms.
var (
	Temperature Transform = Scaled{Bits: 16, Signed: true, Divisor: 10}
	Signed16    Transform = Scaled{Bits: 16, Signed: true, Divisor: 1}
	Divide10    Transform = Scaled{Bits: 16, Signed: true, Divisor: 10}
	Divide100   Transform = Scaled{Bits: 16, Signed: true, Divisor: 100}
	Divide1000  Transform = Scaled{Bits: 32, Signed: false, Divisor: 1000}
	Raw         Transform = Identity{}
)

var namedTransforms = map[string]Transform{
	"raw":         Raw,
	"temperature": Temperature,
	"signed16":    Signed16,
	"divide_10":   Divide10,
	"divide_100":  Divide100,
	"divide_1000": Divide1000,
}

// LookupTransform returns a transform by its configuration name. An empty
// name picks temperature for °C units and raw otherwise.
func LookupTransform(name, unit string) (Transform, error) {
	if name == "" {
		if unit == "°C" || unit == "C" {
			return Temperature, nil
		}
		return Raw, nil
	}
	t, ok := namedTransforms[name]
	if !ok {
		return nil, fmt.Errorf("unknown transform %q", name)
	}
	return t, nil
}

// Range bounds a numeric entity.
type Range struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Step float64 `json:"step"`
}

// Check reports ErrOutOfRange when f is outside [Min, Max] or off the step grid.
func (r Range) Check(f float64) error {
	const eps = 1e-9
	if f < r.Min-eps || f > r.Max+eps {
		return fmt.Errorf("%w: %v not in [%v, %v]", ErrOutOfRange, f, r.Min, r.Max)
	}
	if r.Step > 0 {
		steps := (f - r.Min) / r.Step
		if math.Abs(steps-math.Round(steps)) > 1e-6 {
			return fmt.Errorf("%w: %v is not a multiple of %v from %v", ErrOutOfRange, f, r.Step, r.Min)
		}
	}
	return nil
}
