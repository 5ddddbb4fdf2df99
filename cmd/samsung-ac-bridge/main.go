package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"samsung-ac-bridge/internal/driver"
	"samsung-ac-bridge/internal/metrics"
	"samsung-ac-bridge/internal/mirror"
	"samsung-ac-bridge/internal/protocol"
	"samsung-ac-bridge/internal/samsung"
	"samsung-ac-bridge/internal/store"
	"samsung-ac-bridge/internal/transport"
	"samsung-ac-bridge/internal/web"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "samsung-ac-bridge [config.yaml]",
		Short: "Bridge Samsung air conditioners on the F1/F2 bus to Home Assistant",
		Long: `Reads NASA and non-NASA frames from the Samsung indoor/outdoor bus, exposes the
configured units as entities over MQTT and HTTP, and turns entity writes into
bus commands.`,
		Args:         cobra.MaximumNArgs(1),
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "config.yaml"
			if len(args) > 0 {
				path = args[0]
			}
			return run(path)
		},
	}
	root.AddCommand(newDecodeCmd(), newRolesCmd(), newCheckCmd())
	return root
}

func run(cfgPath string) error {
	// Temporary logger for config loading errors.
	bootLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		bootLogger.Error("load config", "err", err)
		return err
	}
	if err := cfg.validate(); err != nil {
		bootLogger.Error("invalid config", "err", err)
		return err
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)
	logger.Info("samsung-ac-bridge starting", "version", version)
	logger.Debug("configuration", "config", cfg.String())

	specs, err := cfg.deviceSpecs()
	if err != nil {
		logger.Error("device configuration", "err", err)
		return err
	}
	settings := cfg.debugSettings()

	db, err := store.NewBoltStore(cfg.Store.Path)
	if err != nil {
		logger.Error("open store", "err", err)
		return err
	}
	defer db.Close()

	mailbox := samsung.NewMailbox()
	registry, err := samsung.BuildRegistry(specs, mailbox.Handle)
	if err != nil {
		logger.Error("build registry", "err", err)
		return err
	}
	bus := samsung.NewEventBus(logger)

	mir := mirror.New(settings, logger,
		mirror.WithQueueSize(cfg.Debug.QueueSize),
		mirror.WithSink(mirror.LogSink{Logger: logger.With("component", "mirror")}))
	if settings.Mirror.Enabled() {
		sink := mirror.NewMQTTSink(settings.Mirror, logger)
		defer sink.Disconnect()
		mir.AddSink(sink)
	}

	router := samsung.NewRouter(registry, settings, mir, bus, logger)
	outbox := samsung.NewOutbox(cfg.Driver.OutboxSize)
	translator := samsung.NewTranslator(registry, mir, outbox, bus, logger)
	ctl := samsung.NewController(registry, router, translator, mailbox, bus)

	restoreState(db, mailbox, router, logger)
	recorder := store.NewRecorder(db, cfg.Store.FlushInterval, logger)
	recorder.Subscribe(bus)

	serial, err := transport.Open(cfg.transportConfig(), logger)
	if err != nil {
		logger.Error("open bus", "err", err)
		return err
	}
	defer serial.Close()

	var driverOpts []driver.Option
	var webOpts []web.ServerOption
	if cfg.metricsEnabled() {
		met := metrics.New()
		met.SetDevices(len(registry.Devices()))
		met.Subscribe(bus)
		registerCounters(met, serial, mir, logger)
		driverOpts = append(driverOpts, driver.WithObserver(met))
		webOpts = append(webOpts, web.WithMetrics(met.Handler()))
	}

	drv := driver.New(driver.Config{
		Interval:       cfg.Driver.Interval,
		Budget:         cfg.Driver.Budget,
		StatusInterval: cfg.Driver.StatusInterval,
	}, serial, protocol.NewCodec(cfg.transportConfig().Variant), router, registry, outbox, settings, logger, driverOpts...)

	hist := initHistory(cfg, bus, logger)

	// Start automation engine (no-op when built with no_automation tag).
	auto, autoWebOpts := initAutomation(ctl, cfg, logger)

	if cfg.Web.APIKey != "" {
		webOpts = append(webOpts, web.WithAPIKey(cfg.Web.APIKey))
	}
	if len(cfg.Web.AllowedOrigins) > 0 {
		webOpts = append(webOpts, web.WithAllowedOrigins(cfg.Web.AllowedOrigins))
	}
	webOpts = append(webOpts, web.WithStore(db), web.WithVersion(version))
	webOpts = append(webOpts, autoWebOpts...)
	webServer := web.NewServer(ctl, logger, webOpts...)
	mir.AddSink(webServer.MirrorSink())

	httpServer := &http.Server{
		Addr:         cfg.Web.Listen,
		Handler:      webServer,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		logger.Info("web server starting", "addr", cfg.Web.Listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", "err", err)
		}
	}()

	// Start MQTT bridge (no-op when built with no_mqtt tag).
	mqtt := initMQTT(ctl, registry, cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	for _, fn := range []func(context.Context){
		func(ctx context.Context) { mailbox.Run(ctx, bus) },
		mir.Run,
		recorder.Run,
		drv.Run,
	} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
		}()
	}
	logger.Info("bridge running", "devices", len(registry.Devices()), "protocol", cfg.Bus.Protocol)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	signal.Stop(sigCh)
	logger.Info("shutting down", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	auto.Stop()
	mqtt.Stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", "err", err)
	}
	webServer.Stop()
	cancel()
	wg.Wait()
	hist.Stop()

	logger.Info("goodbye")
	return nil
}

// restoreState seeds the mailbox and discovery list from the store. A
// failed load only costs the last-known values.
func restoreState(db store.Store, mailbox *samsung.Mailbox, router *samsung.Router, logger *slog.Logger) {
	states, err := store.LoadStates(db, logger)
	if err != nil {
		logger.Warn("restore states", "err", err)
	}
	mailbox.Restore(states)

	addrs, err := store.LoadDiscovered(db)
	if err != nil {
		logger.Warn("restore discovered", "err", err)
	}
	router.Remember(addrs)
	logger.Info("state restored", "entities", len(states), "discovered", len(addrs))
}

func registerCounters(met *metrics.Metrics, serial *transport.Serial, mir *mirror.Mirror, logger *slog.Logger) {
	counters := []struct {
		subsystem, name, help string
		fn                    func() uint64
	}{
		{"transport", "frames_total", "Frames assembled from the bus.", func() uint64 { return serial.Stats().Frames }},
		{"transport", "frames_dropped_total", "Frames dropped on a full inbound queue.", func() uint64 { return serial.Stats().Dropped }},
		{"transport", "frames_sent_total", "Frames written to the bus.", func() uint64 { return serial.Stats().Sent }},
		{"transport", "send_errors_total", "Failed bus writes.", func() uint64 { return serial.Stats().SendErrors }},
		{"mirror", "dropped_total", "Mirror entries dropped on a full queue.", mir.Dropped},
		{"mirror", "published_total", "Successful mirror sink publishes.", mir.Published},
		{"mirror", "failed_total", "Failed mirror sink publishes.", mir.Failed},
	}
	for _, c := range counters {
		if err := met.CounterFunc(c.subsystem, c.name, c.help, c.fn); err != nil {
			logger.Warn("register metric", "name", c.name, "err", err)
		}
	}
}

func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
