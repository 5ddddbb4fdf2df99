package protocol

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const nonNasaSize = 14

// Non-NASA command bytes.
const (
	NonNasaStatus      = 0x20
	NonNasaControlAck  = 0x54
	NonNasaOutdoor     = 0xC0
	NonNasaOutdoorSump = 0xC1
	NonNasaControl     = 0xC6
	NonNasaOutdoorErr  = 0xF0
	NonNasaEEV         = 0xF1
	NonNasaPower       = 0xF3
	NonNasaGap         = 0xF8
	nonNasaRequest     = 0xB0
	nonNasaKeepAlive   = 0xD1
)

const (
	nonNasaBridgeAddress = 0xD0
	nonNasaController    = 0xC8
)

// Non-NASA operating modes as reported in status frames.
const (
	nonNasaHeat     = 0x01
	nonNasaCool     = 0x02
	nonNasaDry      = 0x04
	nonNasaFan      = 0x08
	nonNasaAutoHeat = 0x21
	nonNasaAuto     = 0x22
)

// Non-NASA fan speeds as reported in status frames.
const (
	nonNasaFanAuto   = 0
	nonNasaFanLow    = 2
	nonNasaFanMedium = 4
	nonNasaFanHigh   = 5
	nonNasaFanFresh  = 6
)

// indoorState is the last status a non-NASA indoor unit reported. Requests
// must restate every field, so writes are merged into it.
type indoorState struct {
	target uint8
	room   uint8
	fan    uint8
	mode   uint8
	power  bool
}

// NonNasaFrame is a validated 14-byte non-NASA frame.
type NonNasaFrame struct {
	Source  string
	Dest    string
	Command uint8
	Data    [8]byte
}

func nonNasaChecksum(data []byte) byte {
	sum := data[1]
	for i := 2; i < 12; i++ {
		sum ^= data[i]
	}
	return sum
}

// DecodeNonNasa validates a non-NASA frame.
func DecodeNonNasa(data []byte) (*NonNasaFrame, error) {
	if len(data) == 0 || data[0] != startByte {
		return nil, ErrInvalidStartByte
	}
	if len(data) != nonNasaSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrUnexpectedSize, len(data))
	}
	if data[len(data)-1] != endByte {
		return nil, ErrInvalidEndByte
	}
	if want := nonNasaChecksum(data); data[12] != want {
		return nil, fmt.Errorf("%w: got %02x want %02x", ErrChecksum, data[12], want)
	}
	f := &NonNasaFrame{
		Source:  fmt.Sprintf("%02x", data[1]),
		Dest:    fmt.Sprintf("%02x", data[2]),
		Command: data[3],
	}
	copy(f.Data[:], data[4:12])
	return f, nil
}

func celsius(b byte) int64 {
	return int64(uint16(int16((int(b) - 55) * 10)))
}

// Messages maps the frame onto the equivalent NASA message numbers so the
// router sees a single message space.
func (f *NonNasaFrame) Messages() []Message {
	var out []MessageValue
	d := f.Data
	switch f.Command {
	case NonNasaStatus:
		out = []MessageValue{
			{MsgTargetTemperature, celsius(d[0])},
			{MsgRoomTemperature, celsius(d[1])},
			{MsgEvaInTemperature, celsius(d[2])},
			{MsgFanModeReal, fanRealFromNonNasa(d[3] & 0x07)},
			{MsgPower, boolRaw(d[4]&0x80 != 0)},
			{MsgMode, modeFromNonNasa(d[4] & 0x3F)},
			{MsgEvaOutTemperature, celsius(d[7])},
		}
	case NonNasaOutdoor:
		out = []MessageValue{{MsgOutdoorTemperature, celsius(d[4])}}
	case NonNasaOutdoorErr:
		out = []MessageValue{{MsgErrorCode, int64(d[6])}}
	}
	msgs := make([]Message, 0, len(out))
	for _, m := range out {
		msgs = append(msgs, Message{Source: f.Source, Dest: f.Dest, Number: m.Number, Raw: m.Raw})
	}
	return msgs
}

func (f *NonNasaFrame) status() (indoorState, bool) {
	if f.Command != NonNasaStatus {
		return indoorState{}, false
	}
	d := f.Data
	return indoorState{
		target: d[0] - 55,
		room:   d[1] - 55,
		fan:    d[3] & 0x07,
		mode:   d[4] & 0x3F,
		power:  d[4]&0x80 != 0,
	}, true
}

func (f *NonNasaFrame) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "src=%s dst=%s cmd=%02x", f.Source, f.Dest, f.Command)
	for _, m := range f.Messages() {
		fmt.Fprintf(&b, " %s=%d", m.Number.Name(), m.Raw)
	}
	return b.String()
}

func boolRaw(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func modeFromNonNasa(m byte) int64 {
	switch m {
	case nonNasaCool:
		return 1
	case nonNasaDry:
		return 2
	case nonNasaFan:
		return 3
	case nonNasaHeat:
		return 4
	default:
		return 0
	}
}

func modeToNonNasa(code int64) (uint8, error) {
	switch code {
	case 0:
		return nonNasaAuto, nil
	case 1:
		return nonNasaCool, nil
	case 2:
		return nonNasaDry, nil
	case 3:
		return nonNasaFan, nil
	case 4:
		return nonNasaHeat, nil
	}
	return 0, fmt.Errorf("%w: mode %d", ErrUnsupported, code)
}

func fanRealFromNonNasa(f byte) int64 {
	switch f {
	case nonNasaFanLow:
		return 1
	case nonNasaFanMedium:
		return 2
	case nonNasaFanHigh, nonNasaFanFresh:
		return 3
	default:
		return 10
	}
}

func fanToNonNasa(code int64) uint8 {
	switch code {
	case 1:
		return nonNasaFanLow
	case 2:
		return nonNasaFanMedium
	case 3, 4:
		return nonNasaFanHigh
	default:
		return nonNasaFanAuto
	}
}

func requestMode(m uint8) byte {
	switch m {
	case nonNasaCool:
		return 1
	case nonNasaDry:
		return 2
	case nonNasaFan:
		return 3
	case nonNasaHeat:
		return 4
	default:
		return 0
	}
}

func requestFan(f uint8) byte {
	switch f {
	case nonNasaFanLow:
		return 64
	case nonNasaFanMedium:
		return 128
	case nonNasaFanHigh, nonNasaFanFresh:
		return 160
	default:
		return 0
	}
}

func encodeNonNasaRequest(dst uint8, s indoorState) []byte {
	data := []byte{
		startByte, nonNasaBridgeAddress, dst, nonNasaRequest,
		0x1F, 0x04, 0, 0, 0, 0, 0, 0, 0, endByte,
	}
	if s.room > 0 {
		data[5] = s.room
	}
	data[6] = (s.target & 31) | requestFan(s.fan)
	data[7] = requestMode(s.mode)
	if s.power {
		data[8] = 0xF0
	} else {
		data[8] = 0xC0
	}
	data[8] |= 4
	data[9] = 0x21
	data[12] = nonNasaChecksum(data)
	return data
}

func applyNonNasa(s indoorState, m MessageValue) (indoorState, error) {
	switch m.Number {
	case MsgPower:
		s.power = m.Raw != 0
	case MsgMode:
		mode, err := modeToNonNasa(m.Raw)
		if err != nil {
			return s, err
		}
		s.mode = mode
	case MsgTargetTemperature:
		s.target = uint8(math.Round(float64(int16(uint16(m.Raw))) / 10))
	case MsgFanMode:
		s.fan = fanToNonNasa(m.Raw)
	default:
		return s, fmt.Errorf("%w: %s on non-NASA bus", ErrUnsupported, m.Number.Name())
	}
	return s, nil
}

func parseNonNasaAddress(addr string) (uint8, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(addr), 16, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	return uint8(v), nil
}

func nonNasaKeepAliveFrame() []byte {
	data := []byte{
		startByte, nonNasaBridgeAddress, nonNasaController, nonNasaKeepAlive,
		0, 0, 0, 0, 0, 0, 0, 0, 0, endByte,
	}
	data[12] = nonNasaChecksum(data)
	return data
}
