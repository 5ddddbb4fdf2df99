//go:build !no_automation

package automation

import (
	"fmt"
	"time"

	lua "github.com/yuin/gopher-lua"

	"samsung-ac-bridge/internal/protocol"
	"samsung-ac-bridge/internal/samsung"
)

const maxHandlersPerScript = 100

// registerACModule registers the `ac` global table in a Lua state.
func registerACModule(L *lua.LState, vm *scriptVM, e *Engine) {
	mod := L.NewTable()
	mod.RawSetString("on", L.NewFunction(func(L *lua.LState) int { return acOn(L, vm) }))
	mod.RawSetString("write", L.NewFunction(func(L *lua.LState) int { return acWrite(L, e) }))
	mod.RawSetString("write_raw", L.NewFunction(func(L *lua.LState) int { return acWriteRaw(L, e) }))
	mod.RawSetString("state", L.NewFunction(func(L *lua.LState) int { return acState(L, e) }))
	mod.RawSetString("devices", L.NewFunction(func(L *lua.LState) int { return acDevices(L, e) }))
	mod.RawSetString("after", L.NewFunction(func(L *lua.LState) int { return acAfter(L, vm, e) }))
	mod.RawSetString("log", L.NewFunction(func(L *lua.LState) int { return acLog(L, e) }))
	L.SetGlobal("ac", mod)
}

// ac.on(type, [filter], callback). filter may set device and key.
func acOn(L *lua.LState, vm *scriptVM) int {
	h := luaEventHandler{eventType: L.CheckString(1)}
	if L.GetTop() >= 3 {
		filter := L.CheckTable(2)
		if v := filter.RawGetString("device"); v != lua.LNil {
			h.device = v.String()
		}
		if v := filter.RawGetString("key"); v != lua.LNil {
			h.key = v.String()
		}
		h.fn = L.CheckFunction(3)
	} else {
		h.fn = L.CheckFunction(2)
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if len(vm.handlers) >= maxHandlersPerScript {
		L.RaiseError("too many handlers (max %d)", maxHandlersPerScript)
		return 0
	}
	vm.handlers = append(vm.handlers, h)
	return 0
}

// ac.write(device, key, value) returns true, or false and an error message.
func acWrite(L *lua.LState, e *Engine) int {
	address := L.CheckString(1)
	key := L.CheckString(2)
	arg := L.CheckAny(3)

	fail := func(err error) int {
		e.logger.Warn("script write rejected", "device", address, "key", key, "err", err)
		L.Push(lua.LFalse)
		L.Push(lua.LString(err.Error()))
		return 2
	}

	dev, err := e.ctl.Device(address)
	if err != nil {
		return fail(err)
	}
	b, err := dev.Bindings.LookupKey(key)
	if err != nil {
		return fail(err)
	}
	v, err := luaToValue(arg, b)
	if err != nil {
		return fail(err)
	}
	if err := e.ctl.WriteKey(dev.Address, key, v); err != nil {
		return fail(err)
	}
	L.Push(lua.LTrue)
	return 1
}

// ac.write_raw(address, message_id, value) sends one message value without
// a binding. Returns true, or false and an error message.
func acWriteRaw(L *lua.LState, e *Engine) int {
	address := L.CheckString(1)
	id := protocol.MessageNumber(L.CheckInt(2))
	raw := L.CheckInt64(3)
	if err := e.ctl.WriteRaw(address, id, raw); err != nil {
		e.logger.Warn("script raw write rejected", "address", address, "id", id, "err", err)
		L.Push(lua.LFalse)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LTrue)
	return 1
}

// ac.state(device, key) returns the latest value or nil.
func acState(L *lua.LState, e *Engine) int {
	u, ok := e.ctl.Last(L.CheckString(1), L.CheckString(2))
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(valueToLua(L, u.Value))
	return 1
}

// ac.devices() returns {address, name, entities = {key...}} per device.
func acDevices(L *lua.LState, e *Engine) int {
	tbl := L.NewTable()
	for i, dev := range e.ctl.Devices() {
		d := L.NewTable()
		d.RawSetString("address", lua.LString(dev.Address))
		d.RawSetString("name", lua.LString(dev.Name))
		keys := L.NewTable()
		for j, b := range dev.Bindings.All() {
			keys.RawSetInt(j+1, lua.LString(b.Key))
		}
		d.RawSetString("entities", keys)
		tbl.RawSetInt(i+1, d)
	}
	L.Push(tbl)
	return 1
}

// ac.after(seconds, callback) runs callback later on the script's VM.
func acAfter(L *lua.LState, vm *scriptVM, e *Engine) int {
	seconds := L.CheckNumber(1)
	fn := L.CheckFunction(2)

	go func() {
		timer := time.NewTimer(time.Duration(float64(seconds) * float64(time.Second)))
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-vm.ctx.Done():
			return
		}

		select {
		case vm.commands <- func(L *lua.LState) {
			if err := L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}); err != nil {
				e.logger.Error("after callback error", "err", err)
			}
		}:
		default:
			e.logger.Warn("after: command channel full")
		}
	}()
	return 0
}

func acLog(L *lua.LState, e *Engine) int {
	e.logger.Info("script log", "msg", L.CheckString(1))
	return 0
}

// valueToLua converts an entity value to its Lua form. Climate snapshots
// become tables.
func valueToLua(L *lua.LState, v samsung.Value) lua.LValue {
	switch v.Kind {
	case samsung.KindNumber:
		return lua.LNumber(v.Number)
	case samsung.KindBool:
		return lua.LBool(v.Bool)
	case samsung.KindOption:
		return lua.LString(v.Option)
	case samsung.KindClimate:
		if v.Climate == nil {
			return lua.LNil
		}
		st := v.Climate
		t := L.NewTable()
		t.RawSetString("power", lua.LBool(st.Power))
		t.RawSetString("mode", lua.LString(st.Mode))
		if st.CurrentTemperature != nil {
			t.RawSetString("current_temperature", lua.LNumber(*st.CurrentTemperature))
		}
		if st.TargetTemperature != nil {
			t.RawSetString("target_temperature", lua.LNumber(*st.TargetTemperature))
		}
		if st.FanMode != "" {
			t.RawSetString("fan_mode", lua.LString(st.FanMode))
		}
		if st.Preset != "" {
			t.RawSetString("preset", lua.LString(st.Preset))
		}
		if st.Swing != "" {
			t.RawSetString("swing", lua.LString(st.Swing))
		}
		return t
	}
	return lua.LNil
}

// luaToValue converts a script argument to a write request for b.
func luaToValue(lv lua.LValue, b *samsung.Binding) (samsung.Value, error) {
	switch x := lv.(type) {
	case lua.LBool:
		if b.Kind != samsung.EntitySwitch {
			return samsung.Value{}, fmt.Errorf("%w: boolean for %s entity", samsung.ErrWrongKind, b.Kind)
		}
		return samsung.Bool(bool(x)), nil
	case lua.LNumber:
		if b.Kind == samsung.EntitySwitch {
			return samsung.Bool(x != 0), nil
		}
		return samsung.Number(float64(x)), nil
	case lua.LString:
		if b.Kind == samsung.EntityClimate {
			return samsung.ClimateWrite(samsung.ClimateCommand{Mode: string(x)}), nil
		}
		return b.ParseValue(string(x))
	case *lua.LTable:
		if b.Kind != samsung.EntityClimate {
			return samsung.Value{}, fmt.Errorf("%w: table for %s entity", samsung.ErrWrongKind, b.Kind)
		}
		var cmd samsung.ClimateCommand
		if s, ok := x.RawGetString("mode").(lua.LString); ok {
			cmd.Mode = string(s)
		}
		for _, name := range []string{"target_temperature", "target"} {
			if n, ok := x.RawGetString(name).(lua.LNumber); ok {
				f := float64(n)
				cmd.Target = &f
				break
			}
		}
		if s, ok := x.RawGetString("fan_mode").(lua.LString); ok {
			cmd.FanMode = string(s)
		}
		if s, ok := x.RawGetString("preset").(lua.LString); ok {
			cmd.Preset = string(s)
		}
		if s, ok := x.RawGetString("swing").(lua.LString); ok {
			cmd.Swing = string(s)
		}
		return samsung.ClimateWrite(cmd), nil
	}
	return samsung.Value{}, fmt.Errorf("%w: unsupported lua value %s", samsung.ErrWrongKind, lv.Type())
}
