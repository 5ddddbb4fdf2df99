//go:build !no_mqtt

package mqtt

import (
	"fmt"
	"strings"

	"samsung-ac-bridge/internal/protocol"
	"samsung-ac-bridge/internal/samsung"
)

// discoveryMsg is a Home Assistant MQTT discovery payload.
type discoveryMsg struct {
	Topic   string // e.g. "homeassistant/sensor/samsung_ac_20_00_00/room_temperature/config"
	Payload []byte // JSON, empty means delete
}

// haDevice is the "device" block in HA discovery.
type haDevice struct {
	Identifiers  []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
	Name         string   `json:"name"`
}

// haDiscovery covers the sensor, switch, number, select and climate schemas.
type haDiscovery struct {
	Name              string   `json:"name"`
	UniqueID          string   `json:"unique_id"`
	StateTopic        string   `json:"state_topic,omitempty"`
	CommandTopic      string   `json:"command_topic,omitempty"`
	AvailabilityTopic string   `json:"availability_topic"`
	UnitOfMeasurement string   `json:"unit_of_measurement,omitempty"`
	DeviceClass       string   `json:"device_class,omitempty"`
	StateClass        string   `json:"state_class,omitempty"`
	PayloadOn         string   `json:"payload_on,omitempty"`
	PayloadOff        string   `json:"payload_off,omitempty"`
	Min               *float64 `json:"min,omitempty"`
	Max               *float64 `json:"max,omitempty"`
	Step              float64  `json:"step,omitempty"`
	Mode              string   `json:"mode,omitempty"`
	Options           []string `json:"options,omitempty"`

	// climate
	Modes                      []string `json:"modes,omitempty"`
	ModeStateTopic             string   `json:"mode_state_topic,omitempty"`
	ModeStateTemplate          string   `json:"mode_state_template,omitempty"`
	ModeCommandTopic           string   `json:"mode_command_topic,omitempty"`
	TemperatureStateTopic      string   `json:"temperature_state_topic,omitempty"`
	TemperatureStateTemplate   string   `json:"temperature_state_template,omitempty"`
	TemperatureCommandTopic    string   `json:"temperature_command_topic,omitempty"`
	CurrentTemperatureTopic    string   `json:"current_temperature_topic,omitempty"`
	CurrentTemperatureTemplate string   `json:"current_temperature_template,omitempty"`
	MinTemp                    float64  `json:"min_temp,omitempty"`
	MaxTemp                    float64  `json:"max_temp,omitempty"`
	TempStep                   float64  `json:"temp_step,omitempty"`
	FanModes                   []string `json:"fan_modes,omitempty"`
	FanModeStateTopic          string   `json:"fan_mode_state_topic,omitempty"`
	FanModeStateTemplate       string   `json:"fan_mode_state_template,omitempty"`
	FanModeCommandTopic        string   `json:"fan_mode_command_topic,omitempty"`
	PresetModes                []string `json:"preset_modes,omitempty"`
	PresetModeStateTopic       string   `json:"preset_mode_state_topic,omitempty"`
	PresetModeValueTemplate    string   `json:"preset_mode_value_template,omitempty"`
	PresetModeCommandTopic     string   `json:"preset_mode_command_topic,omitempty"`
	SwingModes                 []string `json:"swing_modes,omitempty"`
	SwingModeStateTopic        string   `json:"swing_mode_state_topic,omitempty"`
	SwingModeStateTemplate     string   `json:"swing_mode_state_template,omitempty"`
	SwingModeCommandTopic      string   `json:"swing_mode_command_topic,omitempty"`

	Device haDevice `json:"device"`
}

// Climate attributes addressed by command topics.
const (
	attrMode   = "mode"
	attrTarget = "target"
	attrFan    = "fan_mode"
	attrPreset = "preset"
	attrSwing  = "swing"
)

// deviceIdentifier returns the unique identifier for HA device registry.
func deviceIdentifier(dev *samsung.Device) string {
	return "samsung_ac_" + deviceTopicName(dev.Address)
}

// deviceTopicName turns an address into a topic segment: "20.00.00" -> "20_00_00".
func deviceTopicName(address string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, strings.ToLower(address))
}

func entityTopic(prefix string, dev *samsung.Device, key string) string {
	return prefix + "/" + deviceTopicName(dev.Address) + "/" + key
}

func stateTopic(prefix string, dev *samsung.Device, key string) string {
	return entityTopic(prefix, dev, key) + "/state"
}

func commandTopic(prefix string, dev *samsung.Device, key string) string {
	return entityTopic(prefix, dev, key) + "/set"
}

func climateCommandTopic(prefix string, dev *samsung.Device, key, attr string) string {
	return entityTopic(prefix, dev, key) + "/" + attr + "/set"
}

func component(kind samsung.EntityKind) string {
	return string(kind)
}

// buildDiscovery generates HA discovery messages for every binding of a device.
func buildDiscovery(dev *samsung.Device, prefix, discoveryPrefix string) []discoveryMsg {
	if discoveryPrefix == "" {
		discoveryPrefix = "homeassistant"
	}
	nodeID := deviceIdentifier(dev)
	haDev := haDevice{
		Identifiers:  []string{nodeID},
		Manufacturer: "Samsung",
		Model:        modelFor(dev.Address),
		Name:         dev.Name,
	}

	var msgs []discoveryMsg
	for _, b := range dev.Bindings.All() {
		payload := haDiscovery{
			Name:              b.Name,
			UniqueID:          nodeID + "_" + b.Key,
			AvailabilityTopic: prefix + "/bridge/state",
			Device:            haDev,
		}
		st := stateTopic(prefix, dev, b.Key)

		switch b.Kind {
		case samsung.EntitySensor:
			payload.StateTopic = st
			payload.UnitOfMeasurement = b.Unit
			payload.DeviceClass = b.DeviceClass
			payload.StateClass = "measurement"
		case samsung.EntitySwitch:
			payload.StateTopic = st
			payload.CommandTopic = commandTopic(prefix, dev, b.Key)
			payload.PayloadOn = "ON"
			payload.PayloadOff = "OFF"
		case samsung.EntityNumber:
			payload.StateTopic = st
			payload.CommandTopic = commandTopic(prefix, dev, b.Key)
			payload.UnitOfMeasurement = b.Unit
			payload.DeviceClass = b.DeviceClass
			payload.Mode = "box"
			if b.Range != nil {
				lo, hi := b.Range.Min, b.Range.Max
				payload.Min, payload.Max, payload.Step = &lo, &hi, b.Range.Step
			}
		case samsung.EntitySelect:
			payload.StateTopic = st
			payload.CommandTopic = commandTopic(prefix, dev, b.Key)
			payload.Options = b.Options()
		case samsung.EntityClimate:
			if b.Custom != nil {
				fillCustomClimate(&payload, prefix, dev, b)
			} else {
				fillClimate(&payload, prefix, dev, b.Key)
			}
		}

		topic := fmt.Sprintf("%s/%s/%s/%s/config", discoveryPrefix, component(b.Kind), nodeID, b.Key)
		msgs = append(msgs, discoveryMsg{Topic: topic, Payload: mustJSON(payload)})
	}
	return msgs
}

func fillClimate(p *haDiscovery, prefix string, dev *samsung.Device, key string) {
	st := stateTopic(prefix, dev, key)
	caps := dev.Capabilities

	p.Modes = append([]string{samsung.ClimateModeOff}, samsung.ClimateModeVocabulary.Options()...)
	p.ModeStateTopic = st
	p.ModeStateTemplate = "{{ value_json.mode }}"
	p.ModeCommandTopic = climateCommandTopic(prefix, dev, key, attrMode)

	rng := samsung.Range{Min: 16, Max: 30, Step: 1}
	if b, err := dev.Bindings.LookupRole(samsung.RoleTargetTemperature); err == nil && b.Range != nil {
		rng = *b.Range
	}
	p.MinTemp, p.MaxTemp, p.TempStep = rng.Min, rng.Max, rng.Step
	p.TemperatureStateTopic = st
	p.TemperatureStateTemplate = "{{ value_json.target_temperature }}"
	p.TemperatureCommandTopic = climateCommandTopic(prefix, dev, key, attrTarget)
	p.CurrentTemperatureTopic = st
	p.CurrentTemperatureTemplate = "{{ value_json.current_temperature }}"

	p.FanModes = samsung.FanModeVocabulary.Options()
	p.FanModeStateTopic = st
	p.FanModeStateTemplate = "{{ value_json.fan_mode }}"
	p.FanModeCommandTopic = climateCommandTopic(prefix, dev, key, attrFan)

	for _, name := range caps.PresetNames() {
		if !strings.EqualFold(name, "none") {
			p.PresetModes = append(p.PresetModes, name)
		}
	}
	if len(p.PresetModes) > 0 {
		p.PresetModeStateTopic = st
		p.PresetModeValueTemplate = "{{ value_json.preset }}"
		p.PresetModeCommandTopic = climateCommandTopic(prefix, dev, key, attrPreset)
	}

	if modes := caps.SwingModes(); modes != nil {
		p.SwingModes = modes
		p.SwingModeStateTopic = st
		p.SwingModeStateTemplate = "{{ value_json.swing }}"
		p.SwingModeCommandTopic = climateCommandTopic(prefix, dev, key, attrSwing)
	}
}

// fillCustomClimate exposes only what a custom climate can do: its own
// modes and target range.
func fillCustomClimate(p *haDiscovery, prefix string, dev *samsung.Device, b *samsung.Binding) {
	st := stateTopic(prefix, dev, b.Key)
	p.Modes = b.Custom.ModeNames()
	p.ModeStateTopic = st
	p.ModeStateTemplate = "{{ value_json.mode }}"
	p.ModeCommandTopic = climateCommandTopic(prefix, dev, b.Key, attrMode)
	if b.Range != nil {
		p.MinTemp, p.MaxTemp, p.TempStep = b.Range.Min, b.Range.Max, b.Range.Step
	}
	p.TemperatureStateTopic = st
	p.TemperatureStateTemplate = "{{ value_json.target_temperature }}"
	p.TemperatureCommandTopic = climateCommandTopic(prefix, dev, b.Key, attrTarget)
	if b.Custom.Status != 0 {
		p.CurrentTemperatureTopic = st
		p.CurrentTemperatureTemplate = "{{ value_json.current_temperature }}"
	}
}

func modelFor(address string) string {
	switch protocol.Classify(address) {
	case protocol.KindOutdoor:
		return "Outdoor unit"
	case protocol.KindIndoor:
		return "Indoor unit"
	}
	return "Bus device"
}

// buildRemoveDiscovery generates empty retained messages to remove a device from HA.
func buildRemoveDiscovery(dev *samsung.Device, discoveryPrefix string) []discoveryMsg {
	if discoveryPrefix == "" {
		discoveryPrefix = "homeassistant"
	}
	nodeID := deviceIdentifier(dev)
	var msgs []discoveryMsg
	for _, b := range dev.Bindings.All() {
		msgs = append(msgs, discoveryMsg{
			Topic:   fmt.Sprintf("%s/%s/%s/%s/config", discoveryPrefix, component(b.Kind), nodeID, b.Key),
			Payload: nil, // empty retained = delete
		})
	}
	return msgs
}
