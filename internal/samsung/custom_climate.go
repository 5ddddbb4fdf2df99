package samsung

import (
	"fmt"
	"sort"

	"samsung-ac-bridge/internal/protocol"
)

// CustomClimate is a climate entity assembled from arbitrary message ids.
// Status carries the current temperature, Set the target and Enable the
// power flag. When ModeID is zero the entity only knows "off" and "heat";
// otherwise Modes maps climate mode names to codes of ModeID.
type CustomClimate struct {
	Status protocol.MessageNumber
	Set    protocol.MessageNumber
	Enable protocol.MessageNumber
	ModeID protocol.MessageNumber
	Modes  map[string]int64

	tracker customClimateTracker
}

// customClimateTracker is owned by the router.
type customClimateTracker struct {
	enabled bool
	mode    string
	current *float64
	target  *float64
}

func (c *CustomClimate) validate() error {
	if c.Set == 0 || c.Enable == 0 {
		return fmt.Errorf("set and enable message ids are required")
	}
	if c.ModeID == 0 {
		if len(c.Modes) > 0 {
			return fmt.Errorf("modes need a mode message id")
		}
		return nil
	}
	if len(c.Modes) == 0 {
		return fmt.Errorf("mode message id %s needs at least one mode", c.ModeID)
	}
	seen := make(map[int64]string, len(c.Modes))
	for name, code := range c.Modes {
		if _, err := ClimateModeVocabulary.Code(name); err != nil {
			return err
		}
		if prev, dup := seen[code]; dup {
			return fmt.Errorf("modes %q and %q share code %d", prev, name, code)
		}
		seen[code] = name
	}
	return nil
}

// ModeNames returns the modes the entity accepts, "off" first.
func (c *CustomClimate) ModeNames() []string {
	if c.ModeID == 0 {
		return []string{ClimateModeOff, defaultCustomMode}
	}
	names := make([]string, 0, len(c.Modes))
	for name := range c.Modes {
		names = append(names, name)
	}
	sort.Strings(names)
	return append([]string{ClimateModeOff}, names...)
}

const defaultCustomMode = "heat"

// apply folds one message into the tracker and reports whether the climate
// listens to id. Mode codes without a configured name are ignored.
func (c *CustomClimate) apply(id protocol.MessageNumber, raw int64) bool {
	t := &c.tracker
	hit := false
	if c.Status != 0 && id == c.Status {
		v, _ := fitWidth(Temperature, id).Decode(raw)
		f := v.Number
		t.current = &f
		hit = true
	}
	if id == c.Set {
		v, _ := fitWidth(Temperature, id).Decode(raw)
		f := v.Number
		t.target = &f
		hit = true
	}
	if id == c.Enable {
		t.enabled = raw != 0
		hit = true
	}
	if c.ModeID != 0 && id == c.ModeID {
		for name, code := range c.Modes {
			if code == raw {
				t.mode = name
				break
			}
		}
		hit = true
	}
	return hit
}

func (c *CustomClimate) state() ClimateState {
	t := c.tracker
	s := ClimateState{
		Power:              t.enabled,
		Mode:               ClimateModeOff,
		CurrentTemperature: t.current,
		TargetTemperature:  t.target,
	}
	if t.enabled {
		switch {
		case c.ModeID == 0:
			s.Mode = defaultCustomMode
		case t.mode != "":
			s.Mode = t.mode
		}
	}
	return s
}

func translateCustomClimate(b *Binding, v Value) ([]protocol.MessageValue, error) {
	if v.Kind != KindClimate || v.Command == nil {
		return nil, fmt.Errorf("%w: climate wants a climate command", ErrWrongKind)
	}
	c := v.Command
	cc := b.Custom
	if c.FanMode != "" || c.Preset != "" || c.Swing != "" {
		return nil, fmt.Errorf("%w: %s only takes mode and target temperature", ErrInvalidOption, b.Key)
	}

	var msgs []protocol.MessageValue
	if c.Mode != "" {
		switch {
		case c.Mode == ClimateModeOff:
			msgs = append(msgs, protocol.MessageValue{Number: cc.Enable, Raw: 0})
		case cc.ModeID == 0:
			if c.Mode != defaultCustomMode {
				return nil, fmt.Errorf("%w: %s only supports %q", ErrInvalidOption, b.Key, defaultCustomMode)
			}
			msgs = append(msgs, protocol.MessageValue{Number: cc.Enable, Raw: 1})
		default:
			code, ok := cc.Modes[c.Mode]
			if !ok {
				return nil, fmt.Errorf("%w: %q is not a %s mode", ErrInvalidOption, c.Mode, b.Key)
			}
			msgs = append(msgs,
				protocol.MessageValue{Number: cc.Enable, Raw: 1},
				protocol.MessageValue{Number: cc.ModeID, Raw: code})
		}
	}

	if c.Target != nil {
		if b.Range != nil {
			if err := b.Range.Check(*c.Target); err != nil {
				return nil, fmt.Errorf("%s target: %w", b.Key, err)
			}
		}
		raw, err := fitWidth(Temperature, cc.Set).Encode(Number(*c.Target))
		if err != nil {
			return nil, fmt.Errorf("%s target: %w", b.Key, err)
		}
		msgs = append(msgs, protocol.MessageValue{Number: cc.Set, Raw: raw})
	}

	if len(msgs) == 0 {
		return nil, fmt.Errorf("%w: empty climate command", ErrWrongKind)
	}
	return msgs, nil
}
