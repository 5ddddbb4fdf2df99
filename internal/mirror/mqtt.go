package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"samsung-ac-bridge/internal/samsung"
)

// ErrSinkUnavailable is returned while the remote sink is not connected.
var ErrSinkUnavailable = errors.New("mirror: sink unavailable")

type publisher interface {
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
}

// MQTTSink publishes entries to `<prefix>/<kind>/<address>/<id>` with QoS 0.
// It uses its own client so a slow broker never touches the entity bridge.
type MQTTSink struct {
	client publisher
	prefix string
}

// NewMQTTSink starts connecting in the background and returns immediately.
// Until the connection is up Publish fails with ErrSinkUnavailable.
func NewMQTTSink(cfg samsung.MirrorSink, logger *slog.Logger) *MQTTSink {
	logger = logger.With("component", "mirror-mqtt")
	port := cfg.Port
	if port == 0 {
		port = 1883
	}
	opts := pahomqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, port)).
		SetClientID("samsung-ac-bridge-mirror-" + uuid.NewString()[:8]).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(10 * time.Second).
		SetOnConnectHandler(func(_ pahomqtt.Client) {
			logger.Info("mirror MQTT connected", "host", cfg.Host)
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			logger.Warn("mirror MQTT connection lost", "err", err)
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	client := pahomqtt.NewClient(opts)
	client.Connect()
	return newMQTTSink(client, cfg.Prefix)
}

func newMQTTSink(client publisher, prefix string) *MQTTSink {
	if prefix == "" {
		prefix = "samsung_ac/debug"
	}
	return &MQTTSink{client: client, prefix: prefix}
}

// Topic returns the topic for an entry.
func (s *MQTTSink) Topic(e Entry) string {
	return fmt.Sprintf("%s/%s/%s/%04x", s.prefix, e.Kind(), e.Address, uint16(e.ID))
}

func (s *MQTTSink) Publish(ctx context.Context, e Entry) error {
	if !s.client.IsConnectionOpen() {
		return ErrSinkUnavailable
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	token := s.client.Publish(s.Topic(e), 0, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect closes the client if it is a full paho client.
func (s *MQTTSink) Disconnect() {
	if c, ok := s.client.(pahomqtt.Client); ok {
		c.Disconnect(250)
	}
}
