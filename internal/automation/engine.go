//go:build !no_automation

package automation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"samsung-ac-bridge/internal/protocol"
	"samsung-ac-bridge/internal/samsung"
)

// RunResult is the result of a one-shot script execution.
type RunResult struct {
	OK       bool     `json:"ok"`
	Error    string   `json:"error,omitempty"`
	Logs     []string `json:"logs"`
	Duration string   `json:"duration"`
}

// Controller is the part of the bridge visible to scripts.
type Controller interface {
	Events() *samsung.EventBus
	Devices() []*samsung.Device
	Device(address string) (*samsung.Device, error)
	Last(address, key string) (samsung.Update, bool)
	WriteKey(address, key string, v samsung.Value) error
	WriteRaw(address string, id protocol.MessageNumber, raw int64) error
}

// luaEventHandler is a registered Lua callback for an event type, optionally
// filtered by device address and entity key.
type luaEventHandler struct {
	eventType string
	device    string
	key       string
	fn        *lua.LFunction
}

// scriptVM is a running Lua VM for a single script.
type scriptVM struct {
	state    *lua.LState
	commands chan func(*lua.LState) // serializes Lua access
	handlers []luaEventHandler
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex // protects handlers
}

// Engine runs one Lua VM per enabled script and dispatches bus events to
// the handlers the scripts register.
type Engine struct {
	ctl     Controller
	manager *Manager
	logger  *slog.Logger

	now func() time.Time

	mu    sync.Mutex
	vms   map[string]*scriptVM // script ID -> running VM
	unsub func()
}

func (e *Engine) clock() func() time.Time {
	if e.now != nil {
		return e.now
	}
	return time.Now
}

// NewEngine creates an automation engine.
func NewEngine(ctl Controller, mgr *Manager, logger *slog.Logger) *Engine {
	return &Engine{
		ctl:     ctl,
		manager: mgr,
		logger:  logger.With("component", "automation"),
		vms:     make(map[string]*scriptVM),
	}
}

// Start subscribes to the bus and loads all enabled scripts.
func (e *Engine) Start() {
	e.unsub = e.ctl.Events().OnAll(e.dispatchEvent)

	scripts, err := e.manager.List()
	if err != nil {
		e.logger.Error("load scripts", "err", err)
		return
	}
	for _, s := range scripts {
		if !s.Meta.Enabled {
			continue
		}
		if err := e.startScript(s); err != nil {
			e.logger.Error("start script", "id", s.ID, "err", err)
		}
	}

	e.logger.Info("automation engine started", "scripts", e.Running())
}

// Stop cancels all VMs and unsubscribes from the bus.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for id, vm := range e.vms {
		vm.cancel()
		delete(e.vms, id)
	}
	if e.unsub != nil {
		e.unsub()
		e.unsub = nil
	}
	e.logger.Info("automation engine stopped")
}

// Running returns the number of running scripts.
func (e *Engine) Running() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.vms)
}

// ReloadScript stops the old VM, if any, and starts the script again when
// it is enabled.
func (e *Engine) ReloadScript(id string) error {
	e.stopScript(id)

	s, err := e.manager.Get(id)
	if err != nil {
		return fmt.Errorf("get script: %w", err)
	}
	if !s.Meta.Enabled {
		return nil
	}
	return e.startScript(s)
}

// StopScript stops a running script VM.
func (e *Engine) StopScript(id string) {
	e.stopScript(id)
}

// RunScript executes a saved script once in a temporary VM.
func (e *Engine) RunScript(id string) *RunResult {
	start := time.Now()
	s, err := e.manager.Get(id)
	if err != nil {
		return &RunResult{OK: false, Error: err.Error(), Duration: time.Since(start).String()}
	}
	return e.RunLuaCode(s.LuaCode)
}

// RunLuaCode executes code in a temporary VM with a 5s limit. Handlers the
// code registers are invoked once with a synthetic event carrying the
// current value of the filtered entity, if known. Log output is captured.
func (e *Engine) RunLuaCode(code string) *RunResult {
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	L := newSandbox()
	defer L.Close()
	L.SetContext(ctx)

	vm := &scriptVM{
		state:    L,
		commands: make(chan func(*lua.LState), 64),
		ctx:      ctx,
		cancel:   cancel,
	}

	var (
		logs  []string
		logMu sync.Mutex
	)
	capture := func(line string) {
		logMu.Lock()
		logs = append(logs, line)
		logMu.Unlock()
	}

	registerACModule(L, vm, e)
	registerSystemModule(L, e)

	if tbl, ok := L.GetGlobal("ac").(*lua.LTable); ok {
		tbl.RawSetString("log", L.NewFunction(func(L *lua.LState) int {
			msg := L.CheckString(1)
			capture(msg)
			e.logger.Info("script run log", "msg", msg)
			return 0
		}))
	}
	if tbl, ok := L.GetGlobal("system").(*lua.LTable); ok {
		tbl.RawSetString("log", L.NewFunction(func(L *lua.LState) int {
			capture("[" + L.CheckString(1) + "] " + L.CheckString(2))
			return 0
		}))
	}

	fail := func(err error) *RunResult {
		msg := err.Error()
		if strings.Contains(msg, "context deadline exceeded") {
			msg = "timeout (5s)"
		}
		e.logger.Warn("run script failed", "err", msg)
		return &RunResult{OK: false, Error: msg, Logs: logs, Duration: time.Since(start).String()}
	}

	if err := L.DoString(code); err != nil {
		return fail(err)
	}

	vm.mu.Lock()
	handlers := make([]luaEventHandler, len(vm.handlers))
	copy(handlers, vm.handlers)
	vm.mu.Unlock()

	for _, h := range handlers {
		ev := L.NewTable()
		ev.RawSetString("type", lua.LString(h.eventType))
		if h.device != "" {
			ev.RawSetString("device", lua.LString(h.device))
		}
		if h.key != "" {
			ev.RawSetString("key", lua.LString(h.key))
			if u, ok := e.ctl.Last(h.device, h.key); ok {
				ev.RawSetString("value", valueToLua(L, u.Value))
			}
		}
		if err := L.CallByParam(lua.P{Fn: h.fn, NRet: 0, Protect: true}, ev); err != nil {
			return fail(err)
		}
	}

	dur := time.Since(start)
	e.logger.Debug("run script complete", "handlers", len(handlers), "logs", len(logs), "duration", dur)
	return &RunResult{OK: true, Logs: logs, Duration: dur.String()}
}

// newSandbox creates a Lua state without file, process or module access.
func newSandbox() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: false})
	for _, name := range []string{"os", "io", "loadfile", "dofile", "require", "load", "debug", "package"} {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}

func (e *Engine) stopScript(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if vm, ok := e.vms[id]; ok {
		vm.cancel()
		delete(e.vms, id)
		e.logger.Info("script stopped", "id", id)
	}
}

func (e *Engine) startScript(s *Script) error {
	ctx, cancel := context.WithCancel(context.Background())
	L := newSandbox()

	vm := &scriptVM{
		state:    L,
		commands: make(chan func(*lua.LState), 64),
		ctx:      ctx,
		cancel:   cancel,
	}
	registerACModule(L, vm, e)
	registerSystemModule(L, e)

	if err := L.DoString(s.LuaCode); err != nil {
		cancel()
		L.Close()
		return fmt.Errorf("execute script %s: %w", s.ID, err)
	}

	e.mu.Lock()
	if old, ok := e.vms[s.ID]; ok {
		old.cancel()
	}
	e.vms[s.ID] = vm
	e.mu.Unlock()

	go func() {
		defer L.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case fn := <-vm.commands:
				fn(L)
			}
		}
	}()

	e.logger.Info("script started", "id", s.ID, "name", s.Meta.Name)
	return nil
}

// dispatchEvent routes a bus event to all matching Lua handlers.
func (e *Engine) dispatchEvent(event samsung.Event) {
	e.mu.Lock()
	vms := make([]*scriptVM, 0, len(e.vms))
	for _, vm := range e.vms {
		vms = append(vms, vm)
	}
	e.mu.Unlock()

	for _, vm := range vms {
		vm.mu.Lock()
		handlers := make([]luaEventHandler, len(vm.handlers))
		copy(handlers, vm.handlers)
		vm.mu.Unlock()

		for _, h := range handlers {
			if !matchesHandler(h, event) {
				continue
			}
			fn := h.fn
			select {
			case <-vm.ctx.Done():
			case vm.commands <- func(L *lua.LState) { e.callHandler(L, fn, event) }:
			default:
				e.logger.Warn("script command channel full, dropping event", "type", event.Type)
			}
		}
	}
}

// eventTarget returns the device address and entity key an event refers to.
func eventTarget(event samsung.Event) (device, key string) {
	switch d := event.Data.(type) {
	case samsung.Update:
		return d.Device, d.Key
	case samsung.Discovery:
		return d.Address, ""
	case protocol.Command:
		return d.Address, ""
	}
	return "", ""
}

func matchesHandler(h luaEventHandler, event samsung.Event) bool {
	if h.eventType != event.Type {
		return false
	}
	device, key := eventTarget(event)
	if h.device != "" && samsung.NormalizeAddress(h.device) != device {
		return false
	}
	if h.key != "" && h.key != key {
		return false
	}
	return true
}

func (e *Engine) callHandler(L *lua.LState, fn *lua.LFunction, event samsung.Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("lua handler panic", "err", r)
		}
	}()

	if err := L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, eventToLua(L, event)); err != nil {
		e.logger.Error("lua handler error", "type", event.Type, "err", err)
	}
}

// eventToLua builds the table passed to handlers.
func eventToLua(L *lua.LState, event samsung.Event) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("type", lua.LString(event.Type))
	switch d := event.Data.(type) {
	case samsung.Update:
		t.RawSetString("device", lua.LString(d.Device))
		t.RawSetString("key", lua.LString(d.Key))
		t.RawSetString("role", lua.LString(d.Role))
		t.RawSetString("kind", lua.LString(d.Kind))
		t.RawSetString("value", valueToLua(L, d.Value))
		t.RawSetString("time", lua.LNumber(d.Time.Unix()))
	case samsung.Discovery:
		t.RawSetString("device", lua.LString(d.Address))
		t.RawSetString("address_kind", lua.LString(d.Kind))
	case protocol.Command:
		t.RawSetString("device", lua.LString(d.Address))
		msgs := L.NewTable()
		for i, m := range d.Messages {
			mt := L.NewTable()
			mt.RawSetString("id", lua.LNumber(m.Number))
			mt.RawSetString("name", lua.LString(m.Number.Name()))
			mt.RawSetString("raw", lua.LNumber(m.Raw))
			msgs.RawSetInt(i+1, mt)
		}
		t.RawSetString("messages", msgs)
	}
	return t
}
