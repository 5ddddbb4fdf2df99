package samsung

import (
	"errors"
	"math"
	"testing"

	"samsung-ac-bridge/internal/protocol"
)

func TestNumericRoundTrip(t *testing.T) {
	r := newRig(t, DeviceSpec{
		Address:  "20.00.00",
		Entities: roles(RoleTargetTemperature, RoleWaterOutletTarget, RoleWaterTargetTemperature),
	})
	dev := r.device(t, "20.00.00")

	for _, role := range []Role{RoleTargetTemperature, RoleWaterOutletTarget, RoleWaterTargetTemperature} {
		def, _ := role.Def()
		rng := def.Range
		steps := int(math.Round((rng.Max - rng.Min) / rng.Step))
		for i := 0; i <= steps; i++ {
			want := rng.Min + float64(i)*rng.Step
			cmd, err := r.translator.Translate(dev, role, Number(want))
			if err != nil {
				t.Fatalf("%s: Translate(%v): %v", role, want, err)
			}
			if len(cmd.Messages) != 1 || cmd.Messages[0].Number != def.MessageID {
				t.Fatalf("%s: messages = %v", role, cmd.Messages)
			}
			r.router.Route(cmd.Address, cmd.Messages[0].Number, cmd.Messages[0].Raw)
			got := r.last(t, "20.00.00", def.Key)
			if math.Abs(got.Number-want) > 1e-9 {
				t.Fatalf("%s: round trip %v -> %d -> %v", role, want, cmd.Messages[0].Raw, got.Number)
			}
		}
	}
}

func TestNumericOutOfRange(t *testing.T) {
	r := newRig(t, DeviceSpec{Address: "20.00.00", Entities: roles(RoleTargetTemperature)})
	dev := r.device(t, "20.00.00")
	for _, v := range []float64{15, 31, 22.5} {
		if _, err := r.translator.Translate(dev, RoleTargetTemperature, Number(v)); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("Translate(%v) err = %v, want ErrOutOfRange", v, err)
		}
	}
}

func TestSelectRoundTrip(t *testing.T) {
	r := newRig(t, DeviceSpec{Address: "20.00.00", Entities: roles(RoleMode, RoleWaterHeaterMode)})
	dev := r.device(t, "20.00.00")
	for _, role := range []Role{RoleMode, RoleWaterHeaterMode} {
		def, _ := role.Def()
		for _, opt := range def.Vocabulary.Options() {
			cmd, err := r.translator.Translate(dev, role, Option(opt))
			if err != nil {
				t.Fatal(err)
			}
			r.router.Route("20.00.00", cmd.Messages[0].Number, cmd.Messages[0].Raw)
			if got := r.last(t, "20.00.00", def.Key); got.Option != opt {
				t.Errorf("%s: %q came back as %q", role, opt, got.Option)
			}
		}
	}
}

func TestWriteInvalidOptionSendsNothing(t *testing.T) {
	r := newRig(t, DeviceSpec{Address: "20.00.00", Entities: roles(RoleMode)})
	err := r.translator.Write("20.00.00", RoleMode, Option("Turbo"))
	if !errors.Is(err, ErrInvalidOption) {
		t.Fatalf("err = %v, want ErrInvalidOption", err)
	}
	if r.outbox.Len() != 0 {
		t.Errorf("outbox len = %d, want 0", r.outbox.Len())
	}
	if len(r.mirror.entries) != 0 {
		t.Errorf("rejected write was mirrored")
	}
}

func TestWriteQueuesAndMirrors(t *testing.T) {
	r := newRig(t, DeviceSpec{Address: "20.00.00", Entities: roles(RolePower)})
	if err := r.translator.Write("20.00.00", RolePower, Bool(true)); err != nil {
		t.Fatal(err)
	}
	cmd, ok := r.outbox.Next()
	if !ok {
		t.Fatal("nothing queued")
	}
	if cmd.Address != "20.00.00" || len(cmd.Messages) != 1 || cmd.Messages[0] != (protocol.MessageValue{Number: protocol.MsgPower, Raw: 1}) {
		t.Errorf("cmd = %+v", cmd)
	}
	if len(r.mirror.entries) != 1 || r.mirror.entries[0].dir != DirectionTx {
		t.Errorf("mirror = %+v", r.mirror.entries)
	}
}

func TestWriteErrors(t *testing.T) {
	r := newRig(t, DeviceSpec{
		Address: "20.00.00",
		Entities: []EntitySpec{
			{Role: RoleRoomTemperature},
			{Role: RolePower},
			{Role: RoleCustomSensor, Name: "Pipe", MessageID: protocol.MsgPipeIn3},
		},
	})
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"unknown device", r.translator.Write("Z9", RolePower, Bool(true)), ErrUnknownDevice},
		{"unbound role", r.translator.Write("20.00.00", RoleMode, Option("Cool")), ErrNoBinding},
		{"sensor", r.translator.Write("20.00.00", RoleRoomTemperature, Number(20)), ErrReadOnly},
		{"custom sensor by key", r.translator.WriteKey("20.00.00", "pipe", Number(1)), ErrReadOnly},
		{"wrong kind", r.translator.Write("20.00.00", RolePower, Number(1)), ErrWrongKind},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Errorf("err = %v, want %v", tt.err, tt.want)
			}
			if !IsRejection(tt.err) {
				t.Errorf("IsRejection(%v) = false", tt.err)
			}
		})
	}
}

func TestWriteOutboxFull(t *testing.T) {
	r := newRig(t, DeviceSpec{Address: "20.00.00", Entities: roles(RolePower)})
	for i := 0; i < 8; i++ {
		if err := r.translator.Write("20.00.00", RolePower, Bool(true)); err != nil {
			t.Fatal(err)
		}
	}
	err := r.translator.Write("20.00.00", RolePower, Bool(false))
	if !errors.Is(err, ErrOutboxFull) {
		t.Errorf("err = %v, want ErrOutboxFull", err)
	}
	if IsRejection(err) {
		t.Error("full outbox is not a rejection")
	}
}

func TestTranslateClimate(t *testing.T) {
	caps := ResolveCapabilities(CapabilitiesConfig{
		VerticalSwing: boolPtr(true),
		Presets:       map[string]PresetConfig{"sleep": {Enabled: true}},
	}, CapabilitiesConfig{})
	r := newRig(t, DeviceSpec{Address: "20.00.00", Capabilities: caps, Entities: roles(RoleClimate)})
	dev := r.device(t, "20.00.00")

	off, err := r.translator.Translate(dev, RoleClimate, ClimateWrite(ClimateCommand{Mode: "off"}))
	if err != nil {
		t.Fatal(err)
	}
	if len(off.Messages) != 1 || off.Messages[0] != (protocol.MessageValue{Number: protocol.MsgPower, Raw: 0}) {
		t.Errorf("off = %v", off.Messages)
	}

	target := 22.0
	full, err := r.translator.Translate(dev, RoleClimate, ClimateWrite(ClimateCommand{
		Mode: "heat", Target: &target, FanMode: "low", Preset: "Sleep", Swing: "vertical",
	}))
	if err != nil {
		t.Fatal(err)
	}
	want := []protocol.MessageValue{
		{Number: protocol.MsgPower, Raw: 1},
		{Number: protocol.MsgMode, Raw: 4},
		{Number: protocol.MsgTargetTemperature, Raw: 220},
		{Number: protocol.MsgFanMode, Raw: 1},
		{Number: protocol.MsgAltMode, Raw: 1},
		{Number: protocol.MsgSwingVertical, Raw: 1},
	}
	if len(full.Messages) != len(want) {
		t.Fatalf("messages = %v, want %v", full.Messages, want)
	}
	for i := range want {
		if full.Messages[i] != want[i] {
			t.Errorf("message %d = %v, want %v", i, full.Messages[i], want[i])
		}
	}

	rejects := []ClimateCommand{
		{Mode: "boost"},
		{FanMode: "hurricane"},
		{Preset: "Eco"},
		{Swing: "horizontal"},
	}
	for _, c := range rejects {
		if _, err := r.translator.Translate(dev, RoleClimate, ClimateWrite(c)); !errors.Is(err, ErrInvalidOption) {
			t.Errorf("Translate(%+v) err = %v, want ErrInvalidOption", c, err)
		}
	}
	if _, err := r.translator.Translate(dev, RoleClimate, ClimateWrite(ClimateCommand{})); !errors.Is(err, ErrWrongKind) {
		t.Errorf("empty command err = %v", err)
	}
}
