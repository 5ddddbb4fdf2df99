//go:build !no_history

package main

import (
	"log/slog"

	"samsung-ac-bridge/internal/history"
	"samsung-ac-bridge/internal/samsung"
)

type historyStopper struct {
	writer *history.Writer
	unsub  func()
}

func (h *historyStopper) Stop() {
	if h.unsub != nil {
		h.unsub()
	}
	if h.writer != nil {
		h.writer.Close()
	}
}

func initHistory(cfg *Config, bus *samsung.EventBus, logger *slog.Logger) *historyStopper {
	if !cfg.History.Enabled {
		return &historyStopper{}
	}
	w, err := history.Connect(history.Config{
		Enabled:       cfg.History.Enabled,
		URL:           cfg.History.URL,
		Token:         cfg.History.Token,
		Org:           cfg.History.Org,
		Bucket:        cfg.History.Bucket,
		BatchSize:     cfg.History.BatchSize,
		FlushInterval: cfg.History.FlushInterval,
	}, logger)
	if err != nil {
		// History is optional; the bridge keeps running without it.
		logger.Error("history disabled", "err", err)
		return &historyStopper{}
	}
	logger.Info("history enabled", "url", cfg.History.URL, "bucket", cfg.History.Bucket)
	return &historyStopper{writer: w, unsub: w.Subscribe(bus)}
}
