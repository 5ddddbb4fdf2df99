//go:build no_history

package main

import (
	"log/slog"

	"samsung-ac-bridge/internal/samsung"
)

type historyStopper struct{}

func (h *historyStopper) Stop() {}

func initHistory(cfg *Config, _ *samsung.EventBus, logger *slog.Logger) *historyStopper {
	if cfg.History.Enabled {
		logger.Warn("history is enabled in config but this build has no history support")
	}
	return &historyStopper{}
}
