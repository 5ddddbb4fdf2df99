package samsung

import "samsung-ac-bridge/internal/protocol"

// ClimateState is the composite snapshot published by a climate entity.
type ClimateState struct {
	Power              bool     `json:"power"`
	Mode               string   `json:"mode"`
	CurrentTemperature *float64 `json:"current_temperature,omitempty"`
	TargetTemperature  *float64 `json:"target_temperature,omitempty"`
	FanMode            string   `json:"fan_mode,omitempty"`
	Preset             string   `json:"preset,omitempty"`
	Swing              string   `json:"swing,omitempty"`
}

// Equal compares two snapshots field by field.
func (s ClimateState) Equal(o ClimateState) bool {
	return s.Power == o.Power &&
		s.Mode == o.Mode &&
		floatPtrEqual(s.CurrentTemperature, o.CurrentTemperature) &&
		floatPtrEqual(s.TargetTemperature, o.TargetTemperature) &&
		s.FanMode == o.FanMode &&
		s.Preset == o.Preset &&
		s.Swing == o.Swing
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// ClimateCommand is a climate write request. Empty fields are left unchanged.
type ClimateCommand struct {
	Mode    string   `json:"mode,omitempty"`
	Target  *float64 `json:"target_temperature,omitempty"`
	FanMode string   `json:"fan_mode,omitempty"`
	Preset  string   `json:"preset,omitempty"`
	Swing   string   `json:"swing,omitempty"`
}

// climateInputs are the message ids folded into the climate composite.
var climateInputs = map[protocol.MessageNumber]bool{
	protocol.MsgPower:             true,
	protocol.MsgMode:              true,
	protocol.MsgRoomTemperature:   true,
	protocol.MsgTargetTemperature: true,
	protocol.MsgFanModeReal:       true,
	protocol.MsgAltMode:           true,
	protocol.MsgSwingVertical:     true,
	protocol.MsgSwingHorizontal:   true,
}

// climateTracker accumulates the inputs of one device's climate entity.
// It is owned by the router.
type climateTracker struct {
	power      bool
	mode       string
	current    *float64
	target     *float64
	fan        string
	preset     string
	vertical   bool
	horizontal bool
}

// apply folds one message into the tracker and reports whether it was a
// climate input.
func (t *climateTracker) apply(caps Capabilities, id protocol.MessageNumber, raw int64) bool {
	switch id {
	case protocol.MsgPower:
		t.power = raw != 0
	case protocol.MsgMode:
		name, err := ClimateModeVocabulary.Option(raw)
		if err != nil {
			return false
		}
		t.mode = name
	case protocol.MsgRoomTemperature:
		v, _ := Temperature.Decode(raw)
		f := v.Number
		t.current = &f
	case protocol.MsgTargetTemperature:
		v, _ := Temperature.Decode(raw)
		f := v.Number
		t.target = &f
	case protocol.MsgFanModeReal:
		t.fan = fanModeFromReal(raw)
	case protocol.MsgAltMode:
		if name, ok := caps.AltModeName(raw); ok {
			t.preset = name
		}
	case protocol.MsgSwingVertical:
		t.vertical = raw != 0
	case protocol.MsgSwingHorizontal:
		t.horizontal = raw != 0
	default:
		return false
	}
	return true
}

func (t *climateTracker) state(caps Capabilities) ClimateState {
	s := ClimateState{
		Power:              t.power,
		Mode:               ClimateModeOff,
		CurrentTemperature: t.current,
		TargetTemperature:  t.target,
		FanMode:            t.fan,
		Preset:             t.preset,
	}
	if t.power && t.mode != "" {
		s.Mode = t.mode
	}
	if caps.VerticalSwing || caps.HorizontalSwing {
		s.Swing = swingName(t.vertical && caps.VerticalSwing, t.horizontal && caps.HorizontalSwing)
	}
	return s
}
