package samsung

import (
	"errors"
	"math"
	"testing"
)

func TestScaledDecode(t *testing.T) {
	tests := []struct {
		name string
		tr   Transform
		raw  int64
		want float64
	}{
		{"positive temperature", Temperature, 215, 21.5},
		{"negative temperature", Temperature, 0xFF9C, -10},
		{"upper bits ignored", Temperature, 0x1_00D7, 21.5},
		{"signed16", Signed16, 0xFFFF, -1},
		{"divide_100", Divide100, 1234, 12.34},
		{"divide_1000 unsigned", Divide1000, 0xFFFFFFFF, 4294967.295},
		{"raw", Raw, 3, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := tt.tr.Decode(tt.raw)
			if err != nil {
				t.Fatal(err)
			}
			if v.Kind != KindNumber || math.Abs(v.Number-tt.want) > 1e-9 {
				t.Errorf("Decode(%d) = %v, want %v", tt.raw, v, tt.want)
			}
		})
	}
}

func TestScaledEncode(t *testing.T) {
	raw, err := Temperature.Encode(Number(-10))
	if err != nil {
		t.Fatal(err)
	}
	if raw != 0xFF9C {
		t.Errorf("Encode(-10) = %#x, want 0xff9c", raw)
	}

	if _, err := Temperature.Encode(Number(4000)); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Encode(4000) err = %v, want ErrOutOfRange", err)
	}
	if _, err := Temperature.Encode(Bool(true)); !errors.Is(err, ErrWrongKind) {
		t.Errorf("Encode(bool) err = %v, want ErrWrongKind", err)
	}
	if _, err := Raw.Encode(Number(-1)); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Raw.Encode(-1) err = %v, want ErrOutOfRange", err)
	}
}

func TestScaledRoundTripWholeRange(t *testing.T) {
	for raw := int64(-32768); raw <= 32767; raw += 7 {
		v, _ := Temperature.Decode(raw & 0xFFFF)
		got, err := Temperature.Encode(v)
		if err != nil {
			t.Fatalf("Encode(%v): %v", v, err)
		}
		if got != raw&0xFFFF {
			t.Fatalf("round trip of %d gave %d", raw, got)
		}
	}
}

func TestVocabularyRoundTrip(t *testing.T) {
	for _, voc := range []*Vocabulary{ModeVocabulary, WaterHeaterModeVocabulary, ClimateModeVocabulary, FanModeVocabulary} {
		for _, opt := range voc.Options() {
			code, err := voc.Code(opt)
			if err != nil {
				t.Fatal(err)
			}
			back, err := voc.Option(code)
			if err != nil {
				t.Fatal(err)
			}
			if back != opt {
				t.Errorf("%s: %q -> %d -> %q", voc.Name(), opt, code, back)
			}
		}
	}

	if _, err := ModeVocabulary.Code("cool"); !errors.Is(err, ErrInvalidOption) {
		t.Errorf("options are case sensitive, got %v", err)
	}
	if _, err := WaterHeaterModeVocabulary.Option(9); !errors.Is(err, ErrInvalidOption) {
		t.Errorf("Option(9) err = %v", err)
	}
}

func TestModeVocabularyCodes(t *testing.T) {
	want := map[string]int64{"Auto": 0, "Cool": 1, "Dry": 2, "Fan": 3, "Heat": 4}
	for opt, code := range want {
		got, err := ModeVocabulary.Code(opt)
		if err != nil || got != code {
			t.Errorf("Code(%q) = %d, %v; want %d", opt, got, err, code)
		}
	}
}

func TestRangeCheck(t *testing.T) {
	r := Range{Min: 15, Max: 55, Step: 0.1}
	for _, ok := range []float64{15, 15.1, 37.3, 55} {
		if err := r.Check(ok); err != nil {
			t.Errorf("Check(%v) = %v", ok, err)
		}
	}
	for _, bad := range []float64{14.9, 55.1, 20.05} {
		if err := r.Check(bad); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("Check(%v) = %v, want ErrOutOfRange", bad, err)
		}
	}
}

func TestLookupTransform(t *testing.T) {
	tr, err := LookupTransform("", "°C")
	if err != nil || tr != Temperature {
		t.Errorf("default for °C = %v, %v", tr, err)
	}
	tr, err = LookupTransform("", "kWh")
	if err != nil || tr != Raw {
		t.Errorf("default for kWh = %v, %v", tr, err)
	}
	if _, err := LookupTransform("bogus", ""); err == nil {
		t.Error("expected error for unknown transform")
	}
}

func TestEveryRoleHasDefinition(t *testing.T) {
	seen := map[string]bool{}
	for _, r := range Roles() {
		d, ok := r.Def()
		if !ok {
			t.Fatalf("role %d has no definition", r)
		}
		if seen[d.Key] {
			t.Errorf("duplicate key %q", d.Key)
		}
		seen[d.Key] = true
		if got, _ := LookupRole(d.Key); got != r {
			t.Errorf("LookupRole(%q) = %v, want %v", d.Key, got, r)
		}
	}
	if d, _ := RoleErrorCode.Def(); d.MessageID != 0x8235 {
		t.Errorf("error code id = %s", d.MessageID)
	}
	if d, _ := RoleWaterTemperature.Def(); d.MessageID != 0x4237 {
		t.Errorf("water temperature id = %s", d.MessageID)
	}
	if d, _ := RoleRoomHumidity.Def(); d.MessageID != 0x4038 {
		t.Errorf("room humidity id = %s", d.MessageID)
	}
}
