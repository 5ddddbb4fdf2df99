package samsung

import (
	"fmt"

	"samsung-ac-bridge/internal/protocol"
)

// Role is the semantic meaning of a binding.
type Role uint8

const (
	RolePower Role = iota
	RoleAutomaticCleaning
	RoleWaterHeaterPower
	RoleRoomTemperature
	RoleOutdoorTemperature
	RoleEvaInTemperature
	RoleEvaOutTemperature
	RoleWaterTemperature
	RoleRoomHumidity
	RoleErrorCode
	RoleTargetTemperature
	RoleWaterOutletTarget
	RoleWaterTargetTemperature
	RoleMode
	RoleWaterHeaterMode
	RoleClimate
	RoleCustomSensor
	RoleCustomClimate

	roleCount
)

// EntityKind is the kind of entity a role is exposed as.
type EntityKind string

const (
	EntitySensor  EntityKind = "sensor"
	EntitySwitch  EntityKind = "switch"
	EntityNumber  EntityKind = "number"
	EntitySelect  EntityKind = "select"
	EntityClimate EntityKind = "climate"
)

// Writable reports whether entities of this kind accept write requests.
func (k EntityKind) Writable() bool {
	return k != EntitySensor
}

// RoleDef describes a role's wire and entity contract.
type RoleDef struct {
	Role        Role
	Key         string
	Name        string
	Kind        EntityKind
	MessageID   protocol.MessageNumber
	Transform   Transform
	Unit        string
	DeviceClass string
	Range       *Range
	Vocabulary  *Vocabulary
}

func temperatureSensor(r Role, key, name string, id protocol.MessageNumber) RoleDef {
	return RoleDef{Role: r, Key: key, Name: name, Kind: EntitySensor, MessageID: id,
		Transform: Temperature, Unit: "°C", DeviceClass: "temperature"}
}

func switchRole(r Role, key, name string, id protocol.MessageNumber) RoleDef {
	return RoleDef{Role: r, Key: key, Name: name, Kind: EntitySwitch, MessageID: id, Transform: BoolTransform{}}
}

func temperatureNumber(r Role, key, name string, id protocol.MessageNumber, rng Range) RoleDef {
	return RoleDef{Role: r, Key: key, Name: name, Kind: EntityNumber, MessageID: id,
		Transform: Temperature, Unit: "°C", DeviceClass: "temperature", Range: &rng}
}

func selectRole(r Role, key, name string, id protocol.MessageNumber, v *Vocabulary) RoleDef {
	return RoleDef{Role: r, Key: key, Name: name, Kind: EntitySelect, MessageID: id,
		Transform: Options{Vocabulary: v}, Vocabulary: v}
}

// Def returns the role's definition. The switch is exhaustive; init checks
// that every role has one.
func (r Role) Def() (RoleDef, bool) {
	switch r {
	case RolePower:
		return switchRole(r, "power", "Power", protocol.MsgPower), true
	case RoleAutomaticCleaning:
		return switchRole(r, "automatic_cleaning", "Automatic Cleaning", protocol.MsgAutomaticCleaning), true
	case RoleWaterHeaterPower:
		return switchRole(r, "water_heater_power", "Water Heater Power", protocol.MsgWaterHeaterPower), true
	case RoleRoomTemperature:
		return temperatureSensor(r, "room_temperature", "Room Temperature", protocol.MsgRoomTemperature), true
	case RoleOutdoorTemperature:
		return temperatureSensor(r, "outdoor_temperature", "Outdoor Temperature", protocol.MsgOutdoorTemperature), true
	case RoleEvaInTemperature:
		return temperatureSensor(r, "indoor_eva_in_temperature", "Indoor Eva In Temperature", protocol.MsgEvaInTemperature), true
	case RoleEvaOutTemperature:
		return temperatureSensor(r, "indoor_eva_out_temperature", "Indoor Eva Out Temperature", protocol.MsgEvaOutTemperature), true
	case RoleWaterTemperature:
		return temperatureSensor(r, "water_temperature", "Water Temperature", protocol.MsgWaterTemperature), true
	case RoleRoomHumidity:
		return RoleDef{Role: r, Key: "room_humidity", Name: "Room Humidity", Kind: EntitySensor,
			MessageID: protocol.MsgRoomHumidity, Transform: Raw, Unit: "%", DeviceClass: "humidity"}, true
	case RoleErrorCode:
		return RoleDef{Role: r, Key: "error_code", Name: "Error Code", Kind: EntitySensor,
			MessageID: protocol.MsgErrorCode, Transform: Raw}, true
	case RoleTargetTemperature:
		return temperatureNumber(r, "target_temperature", "Target Temperature", protocol.MsgTargetTemperature,
			Range{Min: 16, Max: 30, Step: 1}), true
	case RoleWaterOutletTarget:
		return temperatureNumber(r, "water_outlet_target", "Water Outlet Target", protocol.MsgWaterOutletTarget,
			Range{Min: 15, Max: 55, Step: 0.1}), true
	case RoleWaterTargetTemperature:
		return temperatureNumber(r, "water_target_temperature", "Water Target Temperature", protocol.MsgWaterTargetTemperature,
			Range{Min: 30, Max: 70, Step: 0.5}), true
	case RoleMode:
		return selectRole(r, "mode", "Mode", protocol.MsgMode, ModeVocabulary), true
	case RoleWaterHeaterMode:
		return selectRole(r, "water_heater_mode", "Water Heater Mode", protocol.MsgWaterHeaterMode, WaterHeaterModeVocabulary), true
	case RoleClimate:
		return RoleDef{Role: r, Key: "climate", Name: "Climate", Kind: EntityClimate}, true
	case RoleCustomSensor:
		return RoleDef{Role: r, Key: "custom_sensor", Name: "Custom Sensor", Kind: EntitySensor}, true
	case RoleCustomClimate:
		return RoleDef{Role: r, Key: "custom_climate", Name: "Custom Climate", Kind: EntityClimate,
			Range: &Range{Min: 16, Max: 30, Step: 1}}, true
	}
	return RoleDef{}, false
}

func (r Role) String() string {
	if d, ok := r.Def(); ok {
		return d.Key
	}
	return fmt.Sprintf("role(%d)", uint8(r))
}

var roleByKey = map[string]Role{}

func init() {
	for r := Role(0); r < roleCount; r++ {
		d, ok := r.Def()
		if !ok {
			panic(fmt.Sprintf("samsung: role %d has no definition", r))
		}
		roleByKey[d.Key] = r
	}
}

// LookupRole returns the role for a configuration key.
func LookupRole(key string) (Role, bool) {
	r, ok := roleByKey[key]
	return r, ok
}

// Roles returns every role in declaration order.
func Roles() []Role {
	out := make([]Role, 0, roleCount)
	for r := Role(0); r < roleCount; r++ {
		out = append(out, r)
	}
	return out
}
