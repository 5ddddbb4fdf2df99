//go:build no_automation

package main

import (
	"log/slog"

	"samsung-ac-bridge/internal/samsung"
	"samsung-ac-bridge/internal/web"
)

type autoStopper struct{}

func (a *autoStopper) Stop() {}

func initAutomation(_ *samsung.Controller, _ *Config, _ *slog.Logger) (*autoStopper, []web.ServerOption) {
	return &autoStopper{}, nil
}
