//go:build !no_automation

package automation

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// ErrScriptNotFound is returned when no script file exists for an id.
var ErrScriptNotFound = errors.New("script not found")

// ScriptMeta is the metadata line of a script file.
type ScriptMeta struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Enabled     bool   `json:"enabled"`
}

// Script is one .lua file. ID is the file name without extension; LuaCode
// excludes the metadata line.
type Script struct {
	ID       string     `json:"id"`
	Meta     ScriptMeta `json:"meta"`
	LuaCode  string     `json:"lua_code"`
	FilePath string     `json:"-"`
}

// validScriptID checks that a script ID is safe to use as a filename component.
func validScriptID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, "/\\") && !strings.Contains(id, "..")
}

// Manager loads, saves and lists scripts in a directory. A script file
// starts with an optional metadata line: -- {"name": "...", "enabled": true}
type Manager struct {
	dir string
	mu  sync.RWMutex
}

// NewManager creates a script manager rooted at dir, creating it if needed.
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create scripts dir: %w", err)
	}
	return &Manager{dir: dir}, nil
}

// Dir returns the scripts directory.
func (m *Manager) Dir() string { return m.dir }

// List returns all scripts in the directory. Unreadable files are skipped.
func (m *Manager) List() ([]*Script, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("read scripts dir: %w", err)
	}

	var scripts []*Script
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".lua") {
			continue
		}
		s, err := parseFile(filepath.Join(m.dir, e.Name()))
		if err != nil {
			continue
		}
		scripts = append(scripts, s)
	}
	return scripts, nil
}

// Get returns a single script by ID.
func (m *Manager) Get(id string) (*Script, error) {
	if !validScriptID(id) {
		return nil, fmt.Errorf("invalid script id: %q", id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, err := parseFile(filepath.Join(m.dir, id+".lua"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrScriptNotFound, id)
	}
	return s, err
}

// Save writes a script to disk. A script without an ID gets one derived
// from its name, made unique within the directory.
func (m *Manager) Save(s *Script) (*Script, error) {
	if s.ID != "" && !validScriptID(s.ID) {
		return nil, fmt.Errorf("invalid script id: %q", s.ID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if s.ID == "" {
		s.ID = slugify(s.Meta.Name)
		if s.ID == "" {
			s.ID = "script"
		}
		base := s.ID
		for i := 1; ; i++ {
			if _, err := os.Stat(filepath.Join(m.dir, s.ID+".lua")); os.IsNotExist(err) {
				break
			}
			s.ID = fmt.Sprintf("%s_%d", base, i)
		}
	}

	s.FilePath = filepath.Join(m.dir, s.ID+".lua")
	if err := os.WriteFile(s.FilePath, []byte(serializeScript(s)), 0o644); err != nil {
		return nil, fmt.Errorf("write script: %w", err)
	}
	return s, nil
}

// Delete removes a script file by ID.
func (m *Manager) Delete(id string) error {
	if !validScriptID(id) {
		return fmt.Errorf("invalid script id: %q", id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.Remove(filepath.Join(m.dir, id+".lua")); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrScriptNotFound, id)
		}
		return fmt.Errorf("delete script: %w", err)
	}
	return nil
}

func parseFile(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	s := &Script{
		ID:       strings.TrimSuffix(filepath.Base(path), ".lua"),
		FilePath: path,
		Meta:     ScriptMeta{Enabled: true},
	}

	code := string(data)
	first, rest, _ := strings.Cut(code, "\n")
	if strings.HasPrefix(first, "-- {") {
		if err := json.Unmarshal([]byte(strings.TrimPrefix(first, "-- ")), &s.Meta); err != nil {
			slog.Warn("script metadata parse error", "file", path, "err", err)
		}
		code = rest
	}
	if s.Meta.Name == "" {
		s.Meta.Name = s.ID
	}
	s.LuaCode = strings.TrimLeft(code, "\n")
	return s, nil
}

func serializeScript(s *Script) string {
	var b strings.Builder
	meta, _ := json.Marshal(s.Meta)
	b.WriteString("-- ")
	b.Write(meta)
	b.WriteString("\n")
	if s.LuaCode != "" {
		b.WriteString("\n")
		b.WriteString(s.LuaCode)
		if !strings.HasSuffix(s.LuaCode, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String()
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = slugRe.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 40 {
		s = s[:40]
	}
	return s
}
