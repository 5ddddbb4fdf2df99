package samsung

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Preset is either disabled or enabled with a display name and protocol code.
// Build it with PresetDisabled or PresetEnabled.
type Preset struct {
	enabled bool
	name    string
	value   int64
}

// PresetDisabled returns a disabled preset.
func PresetDisabled() Preset { return Preset{} }

// PresetEnabled returns an enabled preset.
func PresetEnabled(name string, value int64) Preset {
	return Preset{enabled: true, name: name, value: value}
}

func (p Preset) Enabled() bool { return p.enabled }
func (p Preset) Name() string  { return p.name }
func (p Preset) Value() int64  { return p.value }

// presetDef is a protocol-defined alternate mode.
type presetDef struct {
	key  string
	name string
	code int64
}

// canonicalPresets lists the presets in the order they appear in AltModes.
var canonicalPresets = []presetDef{
	{"sleep", "Sleep", 1},
	{"quiet", "Quiet", 2},
	{"fast", "Fast", 3},
	{"longreach", "LongReach", 6},
	{"eco", "Eco", 7},
	{"windfree", "WindFree", 9},
}

// PresetKeys returns the configuration keys of the known presets.
func PresetKeys() []string {
	keys := make([]string, len(canonicalPresets))
	for i, d := range canonicalPresets {
		keys[i] = d.key
	}
	return keys
}

// PresetConfig is the configuration form of a preset: a plain boolean or a
// mapping with enabled, name and value. It resolves to a Preset once.
type PresetConfig struct {
	Enabled bool
	Name    string
	Value   *int64
}

// UnmarshalYAML accepts `true`, `false` or `{enabled, name, value}`.
func (p *PresetConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var b bool
		if err := node.Decode(&b); err != nil {
			return fmt.Errorf("preset: want bool or mapping: %w", err)
		}
		*p = PresetConfig{Enabled: b}
		return nil
	}
	var raw struct {
		Enabled *bool  `yaml:"enabled"`
		Name    string `yaml:"name"`
		Value   *int64 `yaml:"value"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*p = PresetConfig{Enabled: true, Name: raw.Name, Value: raw.Value}
	if raw.Enabled != nil {
		p.Enabled = *raw.Enabled
	}
	return nil
}

func (p PresetConfig) resolve(def presetDef) Preset {
	if !p.Enabled {
		return PresetDisabled()
	}
	name, value := def.name, def.code
	if p.Name != "" {
		name = p.Name
	}
	if p.Value != nil {
		value = *p.Value
	}
	return PresetEnabled(name, value)
}

// CapabilitiesConfig is the configuration form used for both the
// installation default and the per-device override.
type CapabilitiesConfig struct {
	VerticalSwing   *bool                   `yaml:"vertical_swing"`
	HorizontalSwing *bool                   `yaml:"horizontal_swing"`
	Presets         map[string]PresetConfig `yaml:"presets"`
}

// Validate rejects unknown preset keys.
func (c CapabilitiesConfig) Validate() error {
	for key := range c.Presets {
		if findPreset(key) == nil {
			return fmt.Errorf("unknown preset %q", key)
		}
	}
	return nil
}

func findPreset(key string) *presetDef {
	for i := range canonicalPresets {
		if canonicalPresets[i].key == key {
			return &canonicalPresets[i]
		}
	}
	return nil
}

// AltMode is one selectable preset.
type AltMode struct {
	Name string `json:"name"`
	Code int64  `json:"code"`
}

// Capabilities is a device's resolved capability profile.
type Capabilities struct {
	VerticalSwing   bool      `json:"vertical_swing"`
	HorizontalSwing bool      `json:"horizontal_swing"`
	AltModes        []AltMode `json:"alt_modes"`
}

// ResolveCapabilities merges a device override over the installation default.
// Unset swing flags fall through; an override preset entry replaces the
// default entry for the same key.
func ResolveCapabilities(defaults, override CapabilitiesConfig) Capabilities {
	var c Capabilities
	if v := firstSet(override.VerticalSwing, defaults.VerticalSwing); v != nil {
		c.VerticalSwing = *v
	}
	if v := firstSet(override.HorizontalSwing, defaults.HorizontalSwing); v != nil {
		c.HorizontalSwing = *v
	}

	var enabled []AltMode
	for _, def := range canonicalPresets {
		cfg, ok := override.Presets[def.key]
		if !ok {
			cfg, ok = defaults.Presets[def.key]
		}
		if !ok {
			continue
		}
		p := cfg.resolve(def)
		if p.Enabled() {
			enabled = append(enabled, AltMode{Name: p.Name(), Code: p.Value()})
		}
	}
	if len(enabled) > 0 {
		c.AltModes = append([]AltMode{{Name: "None", Code: 0}}, enabled...)
	}
	return c
}

func firstSet(vs ...*bool) *bool {
	for _, v := range vs {
		if v != nil {
			return v
		}
	}
	return nil
}

// AltModeCode returns the code for a preset display name.
func (c Capabilities) AltModeCode(name string) (int64, error) {
	for _, m := range c.AltModes {
		if m.Name == name {
			return m.Code, nil
		}
	}
	return 0, fmt.Errorf("%w: preset %q not supported", ErrInvalidOption, name)
}

// AltModeName returns the display name for a preset code.
func (c Capabilities) AltModeName(code int64) (string, bool) {
	for _, m := range c.AltModes {
		if m.Code == code {
			return m.Name, true
		}
	}
	return "", false
}

// PresetNames returns the display names in order.
func (c Capabilities) PresetNames() []string {
	out := make([]string, len(c.AltModes))
	for i, m := range c.AltModes {
		out[i] = m.Name
	}
	return out
}

// SwingModes returns the swing modes the device supports, or nil if it has
// no swing axis.
func (c Capabilities) SwingModes() []string {
	if !c.VerticalSwing && !c.HorizontalSwing {
		return nil
	}
	modes := []string{SwingOff}
	if c.VerticalSwing {
		modes = append(modes, SwingVertical)
	}
	if c.HorizontalSwing {
		modes = append(modes, SwingHorizontal)
	}
	if c.VerticalSwing && c.HorizontalSwing {
		modes = append(modes, SwingBoth)
	}
	return modes
}
