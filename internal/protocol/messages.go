package protocol

import "fmt"

// MessageNumber identifies the meaning of a payload on the bus.
type MessageNumber uint16

// MessageType is the payload width class encoded in bits 9-10 of the number.
type MessageType uint8

const (
	TypeEnum MessageType = iota
	TypeVariable
	TypeLongVariable
	TypeStructure
)

func (t MessageType) String() string {
	switch t {
	case TypeEnum:
		return "enum"
	case TypeVariable:
		return "var"
	case TypeLongVariable:
		return "var_long"
	default:
		return "structure"
	}
}

// Size returns the payload width in bytes, or 0 for structures.
func (t MessageType) Size() int {
	switch t {
	case TypeEnum:
		return 1
	case TypeVariable:
		return 2
	case TypeLongVariable:
		return 4
	default:
		return 0
	}
}

// Type returns the payload class of the message.
func (n MessageNumber) Type() MessageType {
	return MessageType((uint16(n) & 0x0600) >> 9)
}

// Name returns the catalogue name or the hex id for unknown messages.
func (n MessageNumber) Name() string {
	if name, ok := catalogue[n]; ok {
		return name
	}
	return n.String()
}

func (n MessageNumber) String() string {
	return fmt.Sprintf("0x%04x", uint16(n))
}

// Known message numbers.
const (
	MsgPower                  MessageNumber = 0x4000
	MsgMode                   MessageNumber = 0x4001
	MsgModeReal               MessageNumber = 0x4002
	MsgVentPower              MessageNumber = 0x4003
	MsgVentMode               MessageNumber = 0x4004
	MsgFanMode                MessageNumber = 0x4006
	MsgFanModeReal            MessageNumber = 0x4007
	MsgFanVentMode            MessageNumber = 0x4008
	MsgSwingVertical          MessageNumber = 0x4011
	MsgSwingVerticalPart      MessageNumber = 0x4012
	MsgRoomHumidity           MessageNumber = 0x4038
	MsgAltMode                MessageNumber = 0x4060
	MsgWaterHeaterPower       MessageNumber = 0x4065
	MsgWaterHeaterMode        MessageNumber = 0x4066
	MsgQuietMode              MessageNumber = 0x406E
	MsgSwingHorizontal        MessageNumber = 0x407E
	MsgAutomaticCleaning      MessageNumber = 0x4111
	MsgZone1Power             MessageNumber = 0x4119
	MsgZone2Power             MessageNumber = 0x411E
	MsgTargetTemperature      MessageNumber = 0x4201
	MsgRoomTemperature        MessageNumber = 0x4203
	MsgEvaInTemperature       MessageNumber = 0x4205
	MsgEvaOutTemperature      MessageNumber = 0x4206
	MsgCapacityRequest        MessageNumber = 0x4211
	MsgWaterTargetTemperature MessageNumber = 0x4235
	MsgWaterTemperature       MessageNumber = 0x4237
	MsgWaterOutletTarget      MessageNumber = 0x4247
	MsgFSV3021                MessageNumber = 0x4260
	MsgFSV3022                MessageNumber = 0x4261
	MsgFSV3023                MessageNumber = 0x4262
	MsgOutdoorMode            MessageNumber = 0x8001
	MsgOutdoorHeatCool        MessageNumber = 0x8003
	MsgOutdoor4Way            MessageNumber = 0x801A
	MsgOutdoorTemperature     MessageNumber = 0x8204
	MsgErrorCode              MessageNumber = 0x8235
	MsgPipeIn3                MessageNumber = 0x8261
	MsgWattmeter1Unit         MessageNumber = 0x8411
	MsgWattmeter1Min          MessageNumber = 0x8413
	MsgWattmeterAccum         MessageNumber = 0x8414
	MsgWattmeterTotal         MessageNumber = 0x8415
	MsgWattmeterTotalAccum    MessageNumber = 0x8416
	MsgProducedEnergy         MessageNumber = 0x8426
	MsgProducedEnergyTotal    MessageNumber = 0x8427
)

var catalogue = map[MessageNumber]string{
	MsgPower:                  "ENUM_in_operation_power",
	MsgMode:                   "ENUM_in_operation_mode",
	MsgModeReal:               "ENUM_in_operation_mode_real",
	MsgVentPower:              "ENUM_in_operation_vent_power",
	MsgVentMode:               "ENUM_in_operation_vent_mode",
	MsgFanMode:                "ENUM_in_fan_mode",
	MsgFanModeReal:            "ENUM_in_fan_mode_real",
	MsgFanVentMode:            "ENUM_in_fan_vent_mode",
	MsgSwingVertical:          "ENUM_in_louver_hl_swing",
	MsgSwingVerticalPart:      "ENUM_in_louver_hl_part_swing",
	MsgRoomHumidity:           "ENUM_in_state_humidity_percent",
	MsgAltMode:                "ENUM_in_alternative_mode",
	MsgWaterHeaterPower:       "ENUM_in_water_heater_power",
	MsgWaterHeaterMode:        "ENUM_in_water_heater_mode",
	MsgQuietMode:              "ENUM_in_quiet_mode",
	MsgSwingHorizontal:        "ENUM_in_louver_lr_swing",
	MsgAutomaticCleaning:      "ENUM_in_operation_automatic_cleaning",
	MsgZone1Power:             "ENUM_in_operation_power_zone1",
	MsgZone2Power:             "ENUM_in_operation_power_zone2",
	MsgTargetTemperature:      "VAR_in_temp_target_f",
	MsgRoomTemperature:        "VAR_in_temp_room_f",
	MsgEvaInTemperature:       "VAR_in_temp_eva_in_f",
	MsgEvaOutTemperature:      "VAR_in_temp_eva_out_f",
	MsgCapacityRequest:        "VAR_in_capacity_request",
	MsgWaterTargetTemperature: "VAR_in_temp_water_heater_target_f",
	MsgWaterTemperature:       "VAR_in_temp_water_tank_f",
	MsgWaterOutletTarget:      "VAR_in_temp_water_outlet_target_f",
	MsgFSV3021:                "VAR_in_fsv_3021",
	MsgFSV3022:                "VAR_in_fsv_3022",
	MsgFSV3023:                "VAR_in_fsv_3023",
	MsgOutdoorMode:            "ENUM_out_operation_odu_mode",
	MsgOutdoorHeatCool:        "ENUM_out_operation_heatcool",
	MsgOutdoor4Way:            "ENUM_out_load_4way",
	MsgOutdoorTemperature:     "VAR_out_sensor_airout",
	MsgErrorCode:              "VAR_out_error_code",
	MsgPipeIn3:                "VAR_out_sensor_pipein3",
	MsgWattmeter1Unit:         "LVAR_out_control_wattmeter_1unit",
	MsgWattmeter1Min:          "LVAR_out_control_wattmeter_1w_1min_sum",
	MsgWattmeterAccum:         "LVAR_out_control_wattmeter_all_unit_accum",
	MsgWattmeterTotal:         "LVAR_out_control_wattmeter_total_sum",
	MsgWattmeterTotalAccum:    "LVAR_out_control_wattmeter_total_sum_accum",
	MsgProducedEnergy:         "LVAR_out_produced_energy",
	MsgProducedEnergyTotal:    "LVAR_out_produced_energy_total",
}

// Message is one decoded message set from a frame.
type Message struct {
	Source string        `json:"source"`
	Dest   string        `json:"dest"`
	Number MessageNumber `json:"number"`
	Raw    int64         `json:"raw"`
}

// MessageValue is an outbound (number, raw payload) pair.
type MessageValue struct {
	Number MessageNumber
	Raw    int64
}

// Command is an outbound write for one device. NASA frames carry all
// messages in a single packet.
type Command struct {
	Address  string
	Messages []MessageValue
}

// PayloadBytes returns the big-endian wire payload of raw for message n.
// Structures have no fixed payload and return nil.
func PayloadBytes(n MessageNumber, raw int64) []byte {
	size := n.Type().Size()
	if size == 0 {
		return nil
	}
	out := make([]byte, size)
	for i := size - 1; i >= 0; i-- {
		out[i] = byte(raw)
		raw >>= 8
	}
	return out
}
