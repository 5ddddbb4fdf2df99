package samsung

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ValueKind identifies which field of a Value is meaningful.
type ValueKind uint8

const (
	KindNone ValueKind = iota
	KindNumber
	KindBool
	KindOption
	KindClimate
)

func (k ValueKind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindOption:
		return "option"
	case KindClimate:
		return "climate"
	default:
		return "none"
	}
}

// Value is an entity-side value: a reading, a switch state, a select option
// or a climate snapshot. Write requests for climate entities carry a
// ClimateCommand instead of a snapshot.
type Value struct {
	Kind    ValueKind
	Number  float64
	Bool    bool
	Option  string
	Climate *ClimateState
	Command *ClimateCommand
}

// Number returns a numeric value.
func Number(f float64) Value { return Value{Kind: KindNumber, Number: f} }

// Bool returns a switch value.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Option returns a select value.
func Option(s string) Value { return Value{Kind: KindOption, Option: s} }

// Climate returns a climate snapshot value.
func Climate(s ClimateState) Value { return Value{Kind: KindClimate, Climate: &s} }

// ClimateWrite returns a climate write request.
func ClimateWrite(c ClimateCommand) Value { return Value{Kind: KindClimate, Command: &c} }

// Interface returns the natural Go representation used by JSON, Lua and
// the history writer.
func (v Value) Interface() any {
	switch v.Kind {
	case KindNumber:
		return v.Number
	case KindBool:
		return v.Bool
	case KindOption:
		return v.Option
	case KindClimate:
		if v.Climate != nil {
			return *v.Climate
		}
		if v.Command != nil {
			return *v.Command
		}
	}
	return nil
}

// Equal reports whether two values carry the same data.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNumber:
		return v.Number == o.Number
	case KindBool:
		return v.Bool == o.Bool
	case KindOption:
		return v.Option == o.Option
	case KindClimate:
		if v.Climate == nil || o.Climate == nil {
			return v.Climate == o.Climate
		}
		return v.Climate.Equal(*o.Climate)
	}
	return true
}

func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case KindBool:
		if v.Bool {
			return "ON"
		}
		return "OFF"
	case KindOption:
		return v.Option
	case KindClimate:
		data, _ := json.Marshal(v.Interface())
		return string(data)
	}
	return ""
}

// MarshalJSON encodes the value as its natural JSON form.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON accepts a number, a bool or a string. Climate snapshots are
// recognised by their object form.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch x := raw.(type) {
	case float64:
		*v = Number(x)
	case bool:
		*v = Bool(x)
	case string:
		*v = Option(x)
	case map[string]any:
		var st ClimateState
		if err := json.Unmarshal(data, &st); err != nil {
			return err
		}
		*v = Climate(st)
	case nil:
		*v = Value{}
	default:
		return fmt.Errorf("unsupported value %s", data)
	}
	return nil
}
