package protocol

import (
	"errors"
	"testing"

	"github.com/sigurn/crc16"
)

func TestCRCParameters(t *testing.T) {
	// CRC-16/XMODEM check value.
	if got := crc16.Checksum([]byte("123456789"), crcTable); got != 0x31C3 {
		t.Fatalf("check value = %04x, want 31c3", got)
	}
}

func TestPacketEncodeDecode(t *testing.T) {
	p := Packet{
		Source: BridgeAddress,
		Dest:   Address{Class: ClassIndoor, Channel: 0, Address: 1},
		Command: PacketCommand{
			PacketInformation: true,
			ProtocolVersion:   2,
			PacketType:        PacketNormal,
			DataType:          DataNotification,
			PacketNumber:      7,
		},
		Messages: []MessageValue{
			{MsgPower, 1},
			{MsgTargetTemperature, 215},
			{MsgWattmeterAccum, 123456},
		},
	}
	frame := p.Encode()

	if frame[0] != 0x32 || frame[len(frame)-1] != 0x34 {
		t.Fatalf("frame delimiters wrong: % x", frame)
	}
	// 13 header + (2+1) + (2+2) + (2+4) + 3 trailer
	if len(frame) != 29 {
		t.Fatalf("frame length = %d, want 29", len(frame))
	}

	got, err := DecodePacket(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Source != p.Source || got.Dest != p.Dest {
		t.Errorf("addresses = %s -> %s", got.Source, got.Dest)
	}
	if got.Command != p.Command {
		t.Errorf("command = %+v, want %+v", got.Command, p.Command)
	}
	if len(got.Messages) != 3 {
		t.Fatalf("messages = %d, want 3", len(got.Messages))
	}
	for i, m := range p.Messages {
		if got.Messages[i] != m {
			t.Errorf("message %d = %+v, want %+v", i, got.Messages[i], m)
		}
	}
}

func TestDecodePacketErrors(t *testing.T) {
	good := (&Packet{
		Source:   Address{Class: ClassIndoor},
		Dest:     BridgeAddress,
		Command:  PacketCommand{PacketType: PacketNormal, DataType: DataNotification},
		Messages: []MessageValue{{MsgRoomTemperature, 230}},
	}).Encode()

	corrupt := func(i int, b byte) []byte {
		out := append([]byte(nil), good...)
		out[i] = b
		return out
	}

	tests := []struct {
		name  string
		frame []byte
		want  error
	}{
		{"start byte", corrupt(0, 0x33), ErrInvalidStartByte},
		{"too short", good[:10], ErrUnexpectedSize},
		{"size field", corrupt(2, good[2]+1), ErrSizeMismatch},
		{"end byte", corrupt(len(good)-1, 0x00), ErrInvalidEndByte},
		{"crc", corrupt(14, good[14]^0xFF), ErrChecksum},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePacket(tt.frame)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestMessageType(t *testing.T) {
	tests := []struct {
		n    MessageNumber
		want MessageType
	}{
		{MsgPower, TypeEnum},
		{MsgRoomHumidity, TypeEnum},
		{MsgTargetTemperature, TypeVariable},
		{MsgErrorCode, TypeVariable},
		{MsgWattmeterAccum, TypeLongVariable},
		{0x4600, TypeStructure},
	}
	for _, tt := range tests {
		if got := tt.n.Type(); got != tt.want {
			t.Errorf("%s type = %s, want %s", tt.n, got, tt.want)
		}
	}
}

func TestPayloadBytes(t *testing.T) {
	if got := PayloadBytes(MsgTargetTemperature, 0xFFEC); len(got) != 2 || got[0] != 0xFF || got[1] != 0xEC {
		t.Errorf("variable payload = % x", got)
	}
	if got := PayloadBytes(MsgPower, 1); len(got) != 1 || got[0] != 1 {
		t.Errorf("enum payload = % x", got)
	}
	if got := PayloadBytes(0x4600, 1); got != nil {
		t.Errorf("structure payload = % x, want nil", got)
	}
}

func TestParseAddress(t *testing.T) {
	a, err := ParseAddress("20.00.01")
	if err != nil {
		t.Fatal(err)
	}
	if a.Class != ClassIndoor || a.Channel != 0 || a.Address != 1 {
		t.Errorf("parsed %+v", a)
	}
	if a.String() != "20.00.01" {
		t.Errorf("String() = %q", a.String())
	}
	for _, bad := range []string{"", "20.00", "zz.00.00", "20.00.100"} {
		if _, err := ParseAddress(bad); !errors.Is(err, ErrInvalidAddress) {
			t.Errorf("ParseAddress(%q) err = %v", bad, err)
		}
	}
}

func TestValidateAddress(t *testing.T) {
	for _, ok := range []string{"20.00.00", "00", "c8", "A1"} {
		if err := ValidateAddress(ok); err != nil {
			t.Errorf("ValidateAddress(%q) = %v", ok, err)
		}
	}
	for _, bad := range []string{"", "zz", "100", "20.00", "20.00.zz"} {
		if err := ValidateAddress(bad); !errors.Is(err, ErrInvalidAddress) {
			t.Errorf("ValidateAddress(%q) err = %v", bad, err)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := map[string]AddressKind{
		"00":       KindOutdoor,
		"10.00.00": KindOutdoor,
		"20.00.02": KindIndoor,
		"c8":       KindIndoor,
		"80.ff.00": KindOther,
		"62.00.00": KindOther,
	}
	for addr, want := range tests {
		if got := Classify(addr); got != want {
			t.Errorf("Classify(%q) = %s, want %s", addr, got, want)
		}
	}
}
