//go:build no_mqtt

package main

import (
	"log/slog"

	"samsung-ac-bridge/internal/samsung"
)

type mqttStopper struct{}

func (m *mqttStopper) Stop() {}

func initMQTT(_ *samsung.Controller, _ *samsung.Registry, _ *Config, _ *slog.Logger) *mqttStopper {
	return &mqttStopper{}
}
