//go:build !no_automation

package automation

import (
	"sort"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
)

var clockComponents = map[string]func(time.Time) lua.LValue{
	"hour":      func(t time.Time) lua.LValue { return lua.LNumber(t.Hour()) },
	"minute":    func(t time.Time) lua.LValue { return lua.LNumber(t.Minute()) },
	"second":    func(t time.Time) lua.LValue { return lua.LNumber(t.Second()) },
	"weekday":   func(t time.Time) lua.LValue { return lua.LNumber(t.Weekday()) },
	"day":       func(t time.Time) lua.LValue { return lua.LNumber(t.Day()) },
	"month":     func(t time.Time) lua.LValue { return lua.LNumber(t.Month()) },
	"year":      func(t time.Time) lua.LValue { return lua.LNumber(t.Year()) },
	"timestamp": func(t time.Time) lua.LValue { return lua.LNumber(t.Unix()) },
	"time_str":  func(t time.Time) lua.LValue { return lua.LString(t.Format("15:04:05")) },
	"date_str":  func(t time.Time) lua.LValue { return lua.LString(t.Format("2006-01-02")) },
}

// registerSystemModule registers the `system` global table: clock access
// and levelled logging.
func registerSystemModule(L *lua.LState, e *Engine) {
	now := e.clock()
	mod := L.NewTable()
	mod.RawSetString("datetime", L.NewFunction(func(L *lua.LState) int {
		return systemDatetime(L, now())
	}))
	mod.RawSetString("time_between", L.NewFunction(func(L *lua.LState) int {
		return systemTimeBetween(L, now())
	}))
	mod.RawSetString("log", L.NewFunction(func(L *lua.LState) int {
		return systemLog(L, e)
	}))
	L.SetGlobal("system", mod)
}

// system.datetime(component)
func systemDatetime(L *lua.LState, now time.Time) int {
	component := L.CheckString(1)
	fn, ok := clockComponents[component]
	if !ok {
		names := make([]string, 0, len(clockComponents))
		for k := range clockComponents {
			names = append(names, k)
		}
		sort.Strings(names)
		L.ArgError(1, "unknown component "+component+", want one of "+strings.Join(names, ", "))
		return 0
	}
	L.Push(fn(now))
	return 1
}

// system.time_between(from_hour, to_hour). The range is half open and may
// wrap midnight: 22, 6 covers 22:00 to 05:59.
func systemTimeBetween(L *lua.LState, now time.Time) int {
	from := L.CheckInt(1)
	to := L.CheckInt(2)
	hour := now.Hour()

	in := hour >= from && hour < to
	if from > to {
		in = hour >= from || hour < to
	}
	L.Push(lua.LBool(in))
	return 1
}

// system.log(level, msg)
func systemLog(L *lua.LState, e *Engine) int {
	level := L.CheckString(1)
	msg := L.CheckString(2)

	switch level {
	case "debug":
		e.logger.Debug("script log", "msg", msg)
	case "warn":
		e.logger.Warn("script log", "msg", msg)
	case "error":
		e.logger.Error("script log", "msg", msg)
	default:
		e.logger.Info("script log", "msg", msg)
	}
	return 0
}
