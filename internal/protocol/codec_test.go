package protocol

import (
	"errors"
	"testing"
	"time"
)

func TestCodecNASARoundTrip(t *testing.T) {
	c := NewCodec(VariantAuto)
	cmd := Command{
		Address:  "20.00.00",
		Messages: []MessageValue{{MsgPower, 1}, {MsgMode, 4}},
	}
	first, err := c.Encode(cmd)
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Encode(cmd)
	if err != nil {
		t.Fatal(err)
	}

	p1, err := DecodePacket(first)
	if err != nil {
		t.Fatal(err)
	}
	p2, err := DecodePacket(second)
	if err != nil {
		t.Fatal(err)
	}
	if p1.Source != BridgeAddress {
		t.Errorf("source = %s", p1.Source)
	}
	if p1.Dest.String() != "20.00.00" {
		t.Errorf("dest = %s", p1.Dest)
	}
	if p1.Command.DataType != DataRequest {
		t.Errorf("data type = %s", p1.Command.DataType)
	}
	if p2.Command.PacketNumber != p1.Command.PacketNumber+1 {
		t.Errorf("packet numbers %d then %d", p1.Command.PacketNumber, p2.Command.PacketNumber)
	}

	// Requests are not routed back as notifications.
	msgs, err := c.Decode(first)
	if err != nil || msgs != nil {
		t.Errorf("Decode(request) = %v, %v", msgs, err)
	}
}

func TestCodecDecodeNotification(t *testing.T) {
	frame := (&Packet{
		Source:   Address{Class: ClassIndoor},
		Dest:     Address{Class: ClassBroadcastSet, Channel: 0xFF, Address: 0xFF},
		Command:  PacketCommand{PacketType: PacketNormal, DataType: DataNotification},
		Messages: []MessageValue{{MsgWaterTemperature, 215}, {MsgErrorCode, 3}},
	}).Encode()

	msgs, err := NewCodec(VariantAuto).Decode(frame)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("messages = %d", len(msgs))
	}
	if msgs[0].Source != "20.00.00" || msgs[0].Number != MsgWaterTemperature || msgs[0].Raw != 215 {
		t.Errorf("first = %+v", msgs[0])
	}
	if msgs[1].Number != MsgErrorCode || msgs[1].Raw != 3 {
		t.Errorf("second = %+v", msgs[1])
	}
}

func TestCodecNonNasaRequestNeedsStatus(t *testing.T) {
	c := NewCodec(VariantNonNASA)
	cmd := Command{Address: "00", Messages: []MessageValue{{MsgPower, 0}}}
	if _, err := c.Encode(cmd); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("err = %v, want ErrUnsupported", err)
	}

	if _, err := c.Decode(statusFrame()); err != nil {
		t.Fatal(err)
	}
	frame, err := c.Encode(Command{Address: "00", Messages: []MessageValue{{MsgPower, 0}, {MsgTargetTemperature, 260}}})
	if err != nil {
		t.Fatal(err)
	}
	if len(frame) != 14 || frame[3] != nonNasaRequest {
		t.Fatalf("frame = % x", frame)
	}
	if frame[12] != nonNasaChecksum(frame) {
		t.Error("checksum not set")
	}
	if frame[6]&31 != 26 {
		t.Errorf("target = %d, want 26", frame[6]&31)
	}
	if frame[6]&0xE0 != 64 {
		t.Errorf("fan bits = %d, want low (64)", frame[6]&0xE0)
	}
	if frame[7] != 1 {
		t.Errorf("mode = %d, want cool (1)", frame[7])
	}
	if frame[8] != 0xC4 {
		t.Errorf("power byte = %02x, want c4", frame[8])
	}

	_, err = c.Encode(Command{Address: "00", Messages: []MessageValue{{MsgAltMode, 1}}})
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("alt mode err = %v, want ErrUnsupported", err)
	}
}

func TestKeepAliveFrame(t *testing.T) {
	f, err := DecodeNonNasa(NewCodec(VariantNonNASA).KeepAlive())
	if err != nil {
		t.Fatal(err)
	}
	if f.Source != "d0" || f.Dest != "c8" {
		t.Errorf("keep-alive %s -> %s", f.Source, f.Dest)
	}
}

func TestAssembler(t *testing.T) {
	nasa := (&Packet{
		Source:   Address{Class: ClassIndoor},
		Dest:     BridgeAddress,
		Command:  PacketCommand{PacketType: PacketNormal, DataType: DataNotification},
		Messages: []MessageValue{{MsgRoomHumidity, 45}},
	}).Encode()
	now := time.Unix(0, 0)

	t.Run("split across reads with leading noise", func(t *testing.T) {
		a := NewAssembler(VariantAuto)
		stream := append([]byte{0x00, 0x55}, nasa...)
		if frames := a.Feed(stream[:7], now); len(frames) != 0 {
			t.Fatalf("early frames: %d", len(frames))
		}
		frames := a.Feed(stream[7:], now.Add(10*time.Millisecond))
		if len(frames) != 1 || string(frames[0]) != string(nasa) {
			t.Fatalf("frames = %x", frames)
		}
		if a.Pending() != 0 {
			t.Errorf("pending = %d", a.Pending())
		}
	})

	t.Run("non-NASA frames", func(t *testing.T) {
		a := NewAssembler(VariantAuto)
		status := statusFrame()
		frames := a.Feed(append(status, status...), now)
		if len(frames) != 2 {
			t.Fatalf("frames = %d, want 2", len(frames))
		}
	})

	t.Run("idle reset drops partial frame", func(t *testing.T) {
		a := NewAssembler(VariantAuto)
		a.Feed(nasa[:5], now)
		frames := a.Feed(nasa, now.Add(IdleReset+time.Millisecond))
		if len(frames) != 1 {
			t.Fatalf("frames = %d, want 1", len(frames))
		}
	})
}

func TestInspect(t *testing.T) {
	desc, err := Inspect(statusFrame())
	if err != nil {
		t.Fatal(err)
	}
	if desc[:8] != "non_nasa" {
		t.Errorf("desc = %q", desc)
	}
	if _, err := Inspect([]byte{0x01}); err == nil {
		t.Error("expected error for garbage")
	}
}
