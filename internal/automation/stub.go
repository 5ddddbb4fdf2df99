//go:build no_automation

package automation

import (
	"errors"
	"log/slog"

	"samsung-ac-bridge/internal/protocol"
	"samsung-ac-bridge/internal/samsung"
)

// ErrScriptNotFound is returned when no script file exists for an id.
var ErrScriptNotFound = errors.New("script not found")

// ScriptMeta holds user-editable metadata for a script.
type ScriptMeta struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Enabled     bool   `json:"enabled"`
}

// Script is a single automation script stored on disk.
type Script struct {
	ID       string     `json:"id"`
	Meta     ScriptMeta `json:"meta"`
	LuaCode  string     `json:"lua_code"`
	FilePath string     `json:"-"`
}

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

// Manager is a no-op stub when automation is disabled.
type Manager struct{}

func NewManager(_ string) (*Manager, error) { return nil, nil }

func (m *Manager) List() ([]*Script, error) { return nil, nil }

func (m *Manager) Get(id string) (*Script, error) { return nil, ErrScriptNotFound }

func (m *Manager) Save(s *Script) (*Script, error) { return s, nil }

func (m *Manager) Delete(_ string) error { return nil }

// Engine is a no-op stub when automation is disabled.
type Engine struct{}

func NewEngine(_ Controller, _ *Manager, _ *slog.Logger) *Engine { return &Engine{} }

func (e *Engine) Start() {}

func (e *Engine) Stop() {}

func (e *Engine) Running() int { return 0 }

func (e *Engine) ReloadScript(_ string) error { return nil }

func (e *Engine) StopScript(_ string) {}

func (e *Engine) RunScript(_ string) *RunResult {
	return &RunResult{OK: false, Error: "automation disabled"}
}

func (e *Engine) RunLuaCode(_ string) *RunResult {
	return &RunResult{OK: false, Error: "automation disabled"}
}
