//go:build !no_automation

package automation

import (
	"testing"
	"time"

	lua "github.com/yuin/gopher-lua"
)

func newSystemState(t *testing.T, now time.Time) *lua.LState {
	t.Helper()
	L := lua.NewState()
	t.Cleanup(L.Close)
	e := &Engine{logger: testLogger(), now: func() time.Time { return now }}
	registerSystemModule(L, e)
	return L
}

func TestSystemDatetime(t *testing.T) {
	now := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	L := newSystemState(t, now)

	tests := []struct {
		component string
		want      lua.LValue
	}{
		{"hour", lua.LNumber(14)},
		{"minute", lua.LNumber(5)},
		{"second", lua.LNumber(7)},
		{"weekday", lua.LNumber(6)},
		{"day", lua.LNumber(9)},
		{"month", lua.LNumber(3)},
		{"year", lua.LNumber(2024)},
		{"timestamp", lua.LNumber(now.Unix())},
		{"time_str", lua.LString("14:05:07")},
		{"date_str", lua.LString("2024-03-09")},
	}
	for _, tt := range tests {
		t.Run(tt.component, func(t *testing.T) {
			L.SetGlobal("_comp", lua.LString(tt.component))
			if err := L.DoString(`_result = system.datetime(_comp)`); err != nil {
				t.Fatal(err)
			}
			if got := L.GetGlobal("_result"); got != tt.want {
				t.Errorf("system.datetime(%q) = %v, want %v", tt.component, got, tt.want)
			}
		})
	}
}

func TestSystemDatetimeUnknown(t *testing.T) {
	L := newSystemState(t, time.Now())
	if err := L.DoString(`system.datetime("fortnight")`); err == nil {
		t.Error("expected error for unknown component")
	}
}

func TestSystemTimeBetween(t *testing.T) {
	tests := []struct {
		name string
		hour int
		from int
		to   int
		want bool
	}{
		{"inside day range", 10, 8, 22, true},
		{"at start", 8, 8, 22, true},
		{"at end", 22, 8, 22, false},
		{"before day range", 7, 8, 22, false},
		{"wrap late", 23, 22, 6, true},
		{"wrap early", 3, 22, 6, true},
		{"wrap outside", 12, 22, 6, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			L := newSystemState(t, time.Date(2024, 1, 1, tt.hour, 30, 0, 0, time.UTC))
			L.SetGlobal("_from", lua.LNumber(tt.from))
			L.SetGlobal("_to", lua.LNumber(tt.to))
			if err := L.DoString(`_result = system.time_between(_from, _to)`); err != nil {
				t.Fatal(err)
			}
			if got := L.GetGlobal("_result"); got != lua.LBool(tt.want) {
				t.Errorf("time_between(%d, %d) at %d = %v, want %v", tt.from, tt.to, tt.hour, got, tt.want)
			}
		})
	}
}

func TestSystemLogLevels(t *testing.T) {
	L := newSystemState(t, time.Now())
	for _, level := range []string{"debug", "info", "warn", "error", "other"} {
		L.SetGlobal("_level", lua.LString(level))
		if err := L.DoString(`system.log(_level, "hello")`); err != nil {
			t.Errorf("system.log(%q) error: %v", level, err)
		}
	}
}
