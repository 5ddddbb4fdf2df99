package protocol

import (
	"fmt"
	"strings"

	"github.com/sigurn/crc16"
)

const (
	startByte = 0x32
	endByte   = 0x34

	nasaMinSize = 16
	nasaMaxSize = 1500
)

var crcTable = crc16.MakeTable(crc16.CRC16_XMODEM)

// PacketType is the high nibble of the second command byte.
type PacketType uint8

const (
	PacketStandBy PacketType = iota
	PacketNormal
	PacketGathering
	PacketInstall
	PacketDownload
)

// DataType is the low nibble of the second command byte.
type DataType uint8

const (
	DataUndefined DataType = iota
	DataRead
	DataWrite
	DataRequest
	DataNotification
	DataResponse
	DataAck
	DataNack
)

func (d DataType) String() string {
	switch d {
	case DataRead:
		return "read"
	case DataWrite:
		return "write"
	case DataRequest:
		return "request"
	case DataNotification:
		return "notification"
	case DataResponse:
		return "response"
	case DataAck:
		return "ack"
	case DataNack:
		return "nack"
	default:
		return "undefined"
	}
}

// PacketCommand is the three-byte command header of a NASA packet.
type PacketCommand struct {
	PacketInformation bool
	ProtocolVersion   uint8
	RetryCount        uint8
	PacketType        PacketType
	DataType          DataType
	PacketNumber      uint8
}

func (c PacketCommand) bytes() []byte {
	var b0 byte
	if c.PacketInformation {
		b0 = 0x80
	}
	b0 |= (c.ProtocolVersion & 0x03) << 5
	b0 |= (c.RetryCount & 0x03) << 3
	return []byte{b0, byte(c.PacketType)<<4 | byte(c.DataType)&0x0F, c.PacketNumber}
}

func decodePacketCommand(b []byte) PacketCommand {
	return PacketCommand{
		PacketInformation: b[0]&0x80 != 0,
		ProtocolVersion:   (b[0] & 0x60) >> 5,
		RetryCount:        (b[0] & 0x18) >> 3,
		PacketType:        PacketType(b[1] >> 4),
		DataType:          DataType(b[1] & 0x0F),
		PacketNumber:      b[2],
	}
}

// Packet is a decoded NASA packet.
type Packet struct {
	Source   Address
	Dest     Address
	Command  PacketCommand
	Messages []MessageValue
}

// DecodePacket validates and decodes a complete NASA frame.
func DecodePacket(data []byte) (*Packet, error) {
	if len(data) == 0 || data[0] != startByte {
		return nil, ErrInvalidStartByte
	}
	if len(data) < nasaMinSize || len(data) > nasaMaxSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrUnexpectedSize, len(data))
	}
	size := int(data[1])<<8 | int(data[2])
	if size+2 != len(data) {
		return nil, fmt.Errorf("%w: header %d, frame %d", ErrSizeMismatch, size+2, len(data))
	}
	if data[len(data)-1] != endByte {
		return nil, ErrInvalidEndByte
	}
	want := uint16(data[len(data)-3])<<8 | uint16(data[len(data)-2])
	if got := crc16.Checksum(data[3:len(data)-3], crcTable); got != want {
		return nil, fmt.Errorf("%w: got %04x want %04x", ErrChecksum, got, want)
	}

	p := &Packet{
		Source:  Address{Class: AddressClass(data[3]), Channel: data[4], Address: data[5]},
		Dest:    Address{Class: AddressClass(data[6]), Channel: data[7], Address: data[8]},
		Command: decodePacketCommand(data[9:12]),
	}

	count := int(data[12])
	cursor := 13
	end := len(data) - 3
	for i := 0; i < count; i++ {
		if cursor+2 > end {
			return nil, fmt.Errorf("%w: message %d truncated", ErrUnexpectedSize, i)
		}
		n := MessageNumber(uint16(data[cursor])<<8 | uint16(data[cursor+1]))
		cursor += 2
		width := n.Type().Size()
		if width == 0 {
			// A structure fills the rest of the packet and is only valid alone.
			if count != 1 {
				return nil, fmt.Errorf("%w: structure %s in packet with %d messages", ErrUnsupported, n, count)
			}
			break
		}
		if cursor+width > end {
			return nil, fmt.Errorf("%w: message %s truncated", ErrUnexpectedSize, n)
		}
		var raw int64
		for _, b := range data[cursor : cursor+width] {
			raw = raw<<8 | int64(b)
		}
		cursor += width
		p.Messages = append(p.Messages, MessageValue{Number: n, Raw: raw})
	}
	return p, nil
}

// Encode renders the packet as a complete frame including CRC and end byte.
func (p *Packet) Encode() []byte {
	data := []byte{startByte, 0, 0}
	data = append(data, p.Source.bytes()...)
	data = append(data, p.Dest.bytes()...)
	data = append(data, p.Command.bytes()...)
	data = append(data, byte(len(p.Messages)))
	for _, m := range p.Messages {
		data = append(data, byte(uint16(m.Number)>>8), byte(m.Number))
		data = append(data, PayloadBytes(m.Number, m.Raw)...)
	}

	size := len(data) + 1
	data[1] = byte(size >> 8)
	data[2] = byte(size)

	crc := crc16.Checksum(data[3:], crcTable)
	data = append(data, byte(crc>>8), byte(crc), endByte)
	return data
}

func (p *Packet) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "sa=%s da=%s type=%s num=%d", p.Source, p.Dest, p.Command.DataType, p.Command.PacketNumber)
	for _, m := range p.Messages {
		fmt.Fprintf(&b, " %s=%d", m.Number.Name(), m.Raw)
	}
	return b.String()
}
