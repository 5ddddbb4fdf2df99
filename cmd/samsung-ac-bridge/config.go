package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"samsung-ac-bridge/internal/protocol"
	"samsung-ac-bridge/internal/samsung"
	"samsung-ac-bridge/internal/transport"
)

type Config struct {
	Bus struct {
		Port      string `yaml:"port"`
		Baud      int    `yaml:"baud"`
		Parity    string `yaml:"parity"`
		Protocol  string `yaml:"protocol"` // auto, nasa, non_nasa
		QueueSize int    `yaml:"queue_size"`
	} `yaml:"bus"`
	Driver struct {
		Interval       time.Duration `yaml:"interval"`
		Budget         int           `yaml:"budget"`
		StatusInterval time.Duration `yaml:"status_interval"`
		OutboxSize     int           `yaml:"outbox_size"`
	} `yaml:"driver"`
	Debug struct {
		LogRaw           bool `yaml:"log_raw"`
		LogDecoded       bool `yaml:"log_decoded"`
		LogUndefined     bool `yaml:"log_undefined"`
		NonNasaKeepAlive bool `yaml:"non_nasa_keepalive"`
		QueueSize        int  `yaml:"queue_size"`
		MQTT             struct {
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			Username string `yaml:"username"`
			Password string `yaml:"password"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"mqtt"`
	} `yaml:"debug"`
	Capabilities samsung.CapabilitiesConfig `yaml:"capabilities"`
	Devices      []DeviceConfig             `yaml:"devices"`
	MQTT         struct {
		Enabled         bool   `yaml:"enabled"`
		Broker          string `yaml:"broker"`
		Username        string `yaml:"username"`
		Password        string `yaml:"password"`
		TopicPrefix     string `yaml:"topic_prefix"`
		DiscoveryPrefix string `yaml:"discovery_prefix"`
	} `yaml:"mqtt"`
	Store struct {
		Path          string        `yaml:"path"`
		FlushInterval time.Duration `yaml:"flush_interval"`
	} `yaml:"store"`
	History struct {
		Enabled       bool   `yaml:"enabled"`
		URL           string `yaml:"url"`
		Token         string `yaml:"token"`
		Org           string `yaml:"org"`
		Bucket        string `yaml:"bucket"`
		BatchSize     int    `yaml:"batch_size"`
		FlushInterval int    `yaml:"flush_interval"` // seconds
	} `yaml:"history"`
	Web struct {
		Listen         string   `yaml:"listen"`
		APIKey         string   `yaml:"api_key"`
		AllowedOrigins []string `yaml:"allowed_origins"`
		Metrics        *bool    `yaml:"metrics"`
	} `yaml:"web"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	ScriptsDir string `yaml:"scripts_dir"`
}

// DeviceConfig is one configured indoor or outdoor unit.
type DeviceConfig struct {
	Address        string                      `yaml:"address"`
	Name           string                      `yaml:"name"`
	Capabilities   *samsung.CapabilitiesConfig `yaml:"capabilities"`
	Entities       map[string]EntityConfig     `yaml:"entities"`
	CustomSensors  []CustomSensorConfig        `yaml:"custom_sensors"`
	CustomClimates []CustomClimateConfig       `yaml:"custom_climates"`
}

// EntityConfig enables a role. An empty mapping keeps the role defaults.
type EntityConfig struct {
	Name string   `yaml:"name"`
	Min  *float64 `yaml:"min"`
	Max  *float64 `yaml:"max"`
	Step *float64 `yaml:"step"`
}

// CustomSensorConfig exposes an arbitrary message id as a sensor.
type CustomSensorConfig struct {
	Name        string `yaml:"name"`
	MessageID   string `yaml:"message_id"` // hex, e.g. "0x4203"
	Unit        string `yaml:"unit"`
	Transform   string `yaml:"transform"`
	DeviceClass string `yaml:"device_class"`
}

// CustomClimateConfig builds a climate entity from arbitrary message ids.
// Modes maps climate mode names to codes of the mode message.
type CustomClimateConfig struct {
	Name     string           `yaml:"name"`
	StatusID string           `yaml:"status_id"`
	SetID    string           `yaml:"set_id"`
	EnableID string           `yaml:"enable_id"`
	ModeID   string           `yaml:"mode_id"`
	Modes    map[string]int64 `yaml:"modes"`
	Min      *float64         `yaml:"min"`
	Max      *float64         `yaml:"max"`
}

func (cc CustomClimateConfig) spec() (samsung.EntitySpec, error) {
	climate := &samsung.CustomClimate{Modes: cc.Modes}
	ids := []struct {
		field    string
		value    string
		dst      *protocol.MessageNumber
		optional bool
	}{
		{"status_id", cc.StatusID, &climate.Status, true},
		{"set_id", cc.SetID, &climate.Set, false},
		{"enable_id", cc.EnableID, &climate.Enable, false},
		{"mode_id", cc.ModeID, &climate.ModeID, true},
	}
	for _, id := range ids {
		if id.value == "" && id.optional {
			continue
		}
		n, err := parseMessageID(id.value)
		if err != nil {
			return samsung.EntitySpec{}, fmt.Errorf("%s: %w", id.field, err)
		}
		*id.dst = n
	}

	spec := samsung.EntitySpec{Role: samsung.RoleCustomClimate, Name: cc.Name, Climate: climate}
	if cc.Min != nil || cc.Max != nil {
		def, _ := samsung.RoleCustomClimate.Def()
		r := *def.Range
		if cc.Min != nil {
			r.Min = *cc.Min
		}
		if cc.Max != nil {
			r.Max = *cc.Max
		}
		spec.Range = &r
	}
	return spec, nil
}

func (c *Config) validate() error {
	if c.Bus.Port == "" {
		return fmt.Errorf("bus.port is required")
	}
	if _, err := protocol.ParseVariant(c.Bus.Protocol); err != nil {
		return fmt.Errorf("bus.protocol: %w", err)
	}
	if err := c.Capabilities.Validate(); err != nil {
		return fmt.Errorf("capabilities: %w", err)
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	if c.History.Enabled && (c.History.URL == "" || c.History.Bucket == "") {
		return fmt.Errorf("history.url and history.bucket are required when history is enabled")
	}
	seen := make(map[string]bool)
	for i, d := range c.Devices {
		if err := protocol.ValidateAddress(d.Address); err != nil {
			return fmt.Errorf("devices[%d]: %w", i, err)
		}
		addr := samsung.NormalizeAddress(d.Address)
		if seen[addr] {
			return fmt.Errorf("devices[%d]: duplicate address %s", i, addr)
		}
		seen[addr] = true
		if d.Capabilities != nil {
			if err := d.Capabilities.Validate(); err != nil {
				return fmt.Errorf("devices[%d] capabilities: %w", i, err)
			}
		}
	}
	return nil
}

// String renders the config with secrets redacted.
func (c Config) String() string {
	redact := func(s *string) {
		if *s != "" {
			*s = "***"
		}
	}
	redact(&c.Debug.MQTT.Password)
	redact(&c.MQTT.Password)
	redact(&c.History.Token)
	redact(&c.Web.APIKey)
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return string(data)
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Bus.Baud == 0 {
		cfg.Bus.Baud = 9600
	}
	if cfg.Bus.Parity == "" {
		cfg.Bus.Parity = "even"
	}
	if cfg.Bus.Protocol == "" {
		cfg.Bus.Protocol = "auto"
	}
	if cfg.Debug.QueueSize == 0 {
		cfg.Debug.QueueSize = 256
	}
	if cfg.Debug.MQTT.Port == 0 {
		cfg.Debug.MQTT.Port = 1883
	}
	if cfg.Debug.MQTT.Prefix == "" {
		cfg.Debug.MQTT.Prefix = "samsung_ac/debug"
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "samsung_ac"
	}
	if cfg.MQTT.DiscoveryPrefix == "" {
		cfg.MQTT.DiscoveryPrefix = "homeassistant"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "samsung-ac.db"
	}
	if cfg.Web.Listen == "" {
		cfg.Web.Listen = "127.0.0.1:8080"
	}
	if cfg.ScriptsDir == "" {
		cfg.ScriptsDir = "scripts"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	return &cfg, nil
}

func (c *Config) metricsEnabled() bool {
	return c.Web.Metrics == nil || *c.Web.Metrics
}

func (c *Config) debugSettings() *samsung.DebugSettings {
	return &samsung.DebugSettings{
		LogRaw:           c.Debug.LogRaw,
		LogDecoded:       c.Debug.LogDecoded,
		LogUndefined:     c.Debug.LogUndefined,
		NonNasaKeepAlive: c.Debug.NonNasaKeepAlive,
		Mirror: samsung.MirrorSink{
			Host:     c.Debug.MQTT.Host,
			Port:     c.Debug.MQTT.Port,
			Username: c.Debug.MQTT.Username,
			Password: c.Debug.MQTT.Password,
			Prefix:   c.Debug.MQTT.Prefix,
		},
	}
}

func (c *Config) transportConfig() transport.Config {
	variant, _ := protocol.ParseVariant(c.Bus.Protocol)
	return transport.Config{
		Port:      c.Bus.Port,
		BaudRate:  c.Bus.Baud,
		Parity:    c.Bus.Parity,
		Variant:   variant,
		QueueSize: c.Bus.QueueSize,
	}
}

// deviceSpecs turns the devices section into registry specs. Entities are
// ordered by role so the binding order does not depend on map iteration.
func (c *Config) deviceSpecs() ([]samsung.DeviceSpec, error) {
	specs := make([]samsung.DeviceSpec, 0, len(c.Devices))
	for _, d := range c.Devices {
		var override samsung.CapabilitiesConfig
		if d.Capabilities != nil {
			override = *d.Capabilities
		}
		spec := samsung.DeviceSpec{
			Address:      samsung.NormalizeAddress(d.Address),
			Name:         d.Name,
			Capabilities: samsung.ResolveCapabilities(c.Capabilities, override),
		}

		for key := range d.Entities {
			if _, ok := samsung.LookupRole(key); !ok {
				return nil, fmt.Errorf("device %s: unknown entity %q", spec.Address, key)
			}
		}
		for _, role := range samsung.Roles() {
			def, ok := role.Def()
			if !ok {
				continue
			}
			ec, ok := d.Entities[def.Key]
			if !ok {
				continue
			}
			es := samsung.EntitySpec{Role: role, Name: ec.Name}
			if ec.Min != nil || ec.Max != nil || ec.Step != nil {
				if def.Range == nil {
					return nil, fmt.Errorf("device %s: %s has no range", spec.Address, def.Key)
				}
				r := *def.Range
				if ec.Min != nil {
					r.Min = *ec.Min
				}
				if ec.Max != nil {
					r.Max = *ec.Max
				}
				if ec.Step != nil {
					r.Step = *ec.Step
				}
				es.Range = &r
			}
			spec.Entities = append(spec.Entities, es)
		}

		for _, cs := range d.CustomSensors {
			id, err := parseMessageID(cs.MessageID)
			if err != nil {
				return nil, fmt.Errorf("device %s custom sensor %q: %w", spec.Address, cs.Name, err)
			}
			tr, err := samsung.LookupTransform(cs.Transform, cs.Unit)
			if err != nil {
				return nil, fmt.Errorf("device %s custom sensor %q: %w", spec.Address, cs.Name, err)
			}
			spec.Entities = append(spec.Entities, samsung.EntitySpec{
				Role:        samsung.RoleCustomSensor,
				Name:        cs.Name,
				MessageID:   id,
				Transform:   tr,
				Unit:        cs.Unit,
				DeviceClass: cs.DeviceClass,
			})
		}

		for _, cc := range d.CustomClimates {
			es, err := cc.spec()
			if err != nil {
				return nil, fmt.Errorf("device %s custom climate %q: %w", spec.Address, cc.Name, err)
			}
			spec.Entities = append(spec.Entities, es)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func parseMessageID(s string) (protocol.MessageNumber, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 16)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("invalid message id %q", s)
	}
	return protocol.MessageNumber(v), nil
}

func newLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
