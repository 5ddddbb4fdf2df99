//go:build !no_mqtt

package mqtt

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"samsung-ac-bridge/internal/samsung"
)

// Config holds MQTT bridge configuration.
type Config struct {
	Broker          string
	Username        string
	Password        string
	TopicPrefix     string
	DiscoveryPrefix string
}

// Writer accepts entity write requests.
type Writer interface {
	WriteKey(address, key string, v samsung.Value) error
}

// Bridge exposes the bound entities to Home Assistant over MQTT.
type Bridge struct {
	client          pahomqtt.Client
	registry        *samsung.Registry
	writer          Writer
	bus             *samsung.EventBus
	snapshot        func() []samsung.Update
	prefix          string
	discoveryPrefix string
	logger          *slog.Logger
	unsub           func()

	mu      sync.Mutex
	devices map[string]*samsung.Device // topic name -> device
}

// NewBridge creates and connects an MQTT bridge. snapshot, if set, supplies
// the last known values published on every (re)connect.
func NewBridge(registry *samsung.Registry, writer Writer, bus *samsung.EventBus, snapshot func() []samsung.Update,
	cfg Config, logger *slog.Logger) (*Bridge, error) {
	b := newBridge(registry, writer, bus, snapshot, cfg, logger)

	opts := pahomqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID("samsung-ac-bridge-"+uuid.NewString()[:8]).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(b.prefix+"/bridge/state", "offline", 1, true).
		SetOnConnectHandler(func(_ pahomqtt.Client) {
			b.logger.Info("MQTT connected")
			b.publishBridgeState("online")
			b.publishAllDiscovery()
			b.publishSnapshot()
			b.subscribeCommands()
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			b.logger.Warn("MQTT connection lost", "err", err)
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := pahomqtt.NewClient(opts)
	b.client = client
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	return b, nil
}

func newBridge(registry *samsung.Registry, writer Writer, bus *samsung.EventBus, snapshot func() []samsung.Update,
	cfg Config, logger *slog.Logger) *Bridge {
	prefix := cfg.TopicPrefix
	if prefix == "" {
		prefix = "samsung_ac"
	}
	b := &Bridge{
		registry:        registry,
		writer:          writer,
		bus:             bus,
		snapshot:        snapshot,
		prefix:          prefix,
		discoveryPrefix: cfg.DiscoveryPrefix,
		logger:          logger.With("component", "mqtt"),
		devices:         make(map[string]*samsung.Device),
	}
	for _, dev := range registry.Devices() {
		b.devices[deviceTopicName(dev.Address)] = dev
	}
	return b
}

// Start subscribes to entity events.
func (b *Bridge) Start() {
	b.unsub = b.bus.OnAll(b.handleEvent)
	b.logger.Info("MQTT bridge started", "prefix", b.prefix)
}

// Stop publishes offline state, unsubscribes, and disconnects.
func (b *Bridge) Stop() {
	if b.unsub != nil {
		b.unsub()
	}
	b.publishBridgeState("offline")
	b.client.Disconnect(1000)
	b.logger.Info("MQTT bridge stopped")
}

func (b *Bridge) handleEvent(event samsung.Event) {
	switch event.Type {
	case samsung.EventEntityUpdate:
		if u, ok := event.Data.(samsung.Update); ok {
			b.publishUpdate(u)
		}
	case samsung.EventDeviceDiscovered:
		if d, ok := event.Data.(samsung.Discovery); ok {
			b.publish(b.prefix+"/bridge/discovered/"+deviceTopicName(d.Address), []byte(d.Kind), true)
		}
	}
}

func (b *Bridge) publishUpdate(u samsung.Update) {
	b.mu.Lock()
	dev, ok := b.devices[deviceTopicName(u.Device)]
	b.mu.Unlock()
	if !ok {
		return
	}
	b.publish(stateTopic(b.prefix, dev, u.Key), statePayload(u.Value), true)
}

// statePayload renders a value for a state topic: ON/OFF, a number, an
// option, or the climate JSON object.
func statePayload(v samsung.Value) []byte {
	if v.Kind == samsung.KindClimate {
		return mustJSON(v.Interface())
	}
	return []byte(v.String())
}

func (b *Bridge) publishBridgeState(state string) {
	b.publish(b.prefix+"/bridge/state", []byte(state), true)
}

func (b *Bridge) publishAllDiscovery() {
	for _, dev := range b.registry.Devices() {
		for _, msg := range buildDiscovery(dev, b.prefix, b.discoveryPrefix) {
			b.publish(msg.Topic, msg.Payload, true)
		}
		b.logger.Info("published HA discovery", "address", dev.Address, "name", dev.Name)
	}
}

func (b *Bridge) publishSnapshot() {
	if b.snapshot == nil {
		return
	}
	for _, u := range b.snapshot() {
		b.publishUpdate(u)
	}
}

func (b *Bridge) subscribeCommands() {
	for _, pattern := range []string{b.prefix + "/+/+/set", b.prefix + "/+/+/+/set"} {
		b.client.Subscribe(pattern, 1, func(_ pahomqtt.Client, msg pahomqtt.Message) {
			b.handleCommand(msg.Topic(), msg.Payload())
		})
	}
}

// parseCommandTopic splits `<prefix>/<device>/<key>[/<attr>]/set`.
func parseCommandTopic(prefix, topic string) (device, key, attr string, ok bool) {
	rest, found := strings.CutPrefix(topic, prefix+"/")
	if !found {
		return "", "", "", false
	}
	parts := strings.Split(rest, "/")
	if parts[len(parts)-1] != "set" {
		return "", "", "", false
	}
	switch len(parts) {
	case 3:
		return parts[0], parts[1], "", true
	case 4:
		return parts[0], parts[1], parts[2], true
	}
	return "", "", "", false
}

func (b *Bridge) handleCommand(topic string, payload []byte) {
	devTopic, key, attr, ok := parseCommandTopic(b.prefix, topic)
	if !ok {
		return
	}
	b.mu.Lock()
	dev, ok := b.devices[devTopic]
	b.mu.Unlock()
	if !ok {
		b.logger.Warn("command for unknown device", "topic", topic)
		return
	}
	binding, err := dev.Bindings.LookupKey(key)
	if err != nil {
		b.logger.Warn("command for unknown entity", "topic", topic)
		return
	}
	v, err := parseCommand(binding, attr, string(payload))
	if err != nil {
		b.logger.Warn("invalid command", "topic", topic, "payload", string(payload), "err", err)
		return
	}
	if err := b.writer.WriteKey(dev.Address, key, v); err != nil {
		b.logger.Warn("write failed", "address", dev.Address, "key", key, "err", err)
	}
}

// parseCommand turns an MQTT command payload into a write request value.
func parseCommand(b *samsung.Binding, attr, payload string) (samsung.Value, error) {
	if b.Kind != samsung.EntityClimate {
		if attr != "" {
			return samsung.Value{}, fmt.Errorf("%s takes no attribute %q", b.Key, attr)
		}
		return b.ParseValue(payload)
	}

	payload = strings.TrimSpace(payload)
	var cmd samsung.ClimateCommand
	switch attr {
	case attrMode:
		cmd.Mode = payload
	case attrTarget:
		f, err := strconv.ParseFloat(payload, 64)
		if err != nil {
			return samsung.Value{}, fmt.Errorf("target %q: %w", payload, err)
		}
		cmd.Target = &f
	case attrFan:
		cmd.FanMode = payload
	case attrPreset:
		if strings.EqualFold(payload, "none") {
			payload = "None"
		}
		cmd.Preset = payload
	case attrSwing:
		cmd.Swing = payload
	case "":
		if err := json.Unmarshal([]byte(payload), &cmd); err != nil {
			return samsung.Value{}, fmt.Errorf("climate command: %w", err)
		}
	default:
		return samsung.Value{}, fmt.Errorf("unknown climate attribute %q", attr)
	}
	return samsung.ClimateWrite(cmd), nil
}

func (b *Bridge) publish(topic string, payload []byte, retained bool) {
	token := b.client.Publish(topic, 1, retained, payload)
	go func() {
		if !token.WaitTimeout(5 * time.Second) {
			b.logger.Warn("MQTT publish timeout", "topic", topic)
		} else if err := token.Error(); err != nil {
			b.logger.Warn("MQTT publish error", "topic", topic, "err", err)
		}
	}()
}

func mustJSON(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
