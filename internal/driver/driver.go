package driver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"samsung-ac-bridge/internal/protocol"
	"samsung-ac-bridge/internal/samsung"
)

// Transport is the bus the driver pumps.
type Transport interface {
	Poll(max int) [][]byte
	Send(frame []byte) error
}

// Observer receives per-tick measurements.
type Observer interface {
	FrameDecoded(err error)
	MessageRouted(result samsung.RouteResult)
	CommandSent(err error)
	TickDone(elapsed time.Duration, work int, exhausted bool)
}

type nopObserver struct{}

func (nopObserver) FrameDecoded(error)                {}
func (nopObserver) MessageRouted(samsung.RouteResult) {}
func (nopObserver) CommandSent(error)                 {}
func (nopObserver) TickDone(time.Duration, int, bool) {}

// State of the driver.
type State uint8

const (
	StateIdle State = iota
	StateDraining
)

func (s State) String() string {
	if s == StateDraining {
		return "draining"
	}
	return "idle"
}

// Config controls the tick.
type Config struct {
	Interval       time.Duration
	Budget         int // messages plus commands per tick, 0 = unlimited
	StatusInterval time.Duration
}

// Defaults.
const (
	DefaultInterval       = 30 * time.Millisecond
	DefaultStatusInterval = 30 * time.Second
)

// Driver is the polling loop of one bus. Only the driver goroutine touches
// the codec, router and outbox consumer side.
type Driver struct {
	cfg       Config
	transport Transport
	codec     *protocol.Codec
	router    *samsung.Router
	registry  *samsung.Registry
	outbox    *samsung.Outbox
	settings  *samsung.DebugSettings
	observer  Observer
	logger    *slog.Logger

	state State
}

// Option configures a Driver.
type Option func(*Driver)

// WithObserver sets the metrics observer.
func WithObserver(o Observer) Option {
	return func(d *Driver) {
		if o != nil {
			d.observer = o
		}
	}
}

// New creates a driver.
func New(cfg Config, transport Transport, codec *protocol.Codec, router *samsung.Router,
	registry *samsung.Registry, outbox *samsung.Outbox, settings *samsung.DebugSettings,
	logger *slog.Logger, opts ...Option) *Driver {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = DefaultStatusInterval
	}
	if settings == nil {
		settings = &samsung.DebugSettings{}
	}
	d := &Driver{
		cfg:       cfg,
		transport: transport,
		codec:     codec,
		router:    router,
		registry:  registry,
		outbox:    outbox,
		settings:  settings,
		observer:  nopObserver{},
		logger:    logger.With("component", "driver"),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// State returns the current state.
func (d *Driver) State() State { return d.state }

// Run ticks until ctx is cancelled.
func (d *Driver) Run(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()
	status := time.NewTicker(d.cfg.StatusInterval)
	defer status.Stop()

	d.logger.Info("driver started", "interval", d.cfg.Interval, "budget", d.cfg.Budget,
		"keepalive", d.settings.NonNasaKeepAlive)
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("driver stopped")
			return
		case <-ticker.C:
			d.Tick()
		case <-status.C:
			d.logStatus()
		}
	}
}

// Tick runs one Draining pass: inbound frames first, then queued commands,
// then the keep-alive. It returns the work done and whether the budget cut
// the pass short.
func (d *Driver) Tick() (work int, exhausted bool) {
	start := time.Now()
	d.state = StateDraining
	defer func() {
		d.state = StateIdle
		d.observer.TickDone(time.Since(start), work, exhausted)
	}()

	spent := func() bool { return d.cfg.Budget > 0 && work >= d.cfg.Budget }

	for !spent() {
		frames := d.transport.Poll(1)
		if len(frames) == 0 {
			break
		}
		work += d.handleFrame(frames[0])
	}

	for !spent() {
		cmd, ok := d.outbox.Next()
		if !ok {
			break
		}
		d.send(cmd)
		work++
	}

	if d.settings.NonNasaKeepAlive {
		if err := d.transport.Send(d.codec.KeepAlive()); err != nil {
			d.logger.Warn("keep-alive failed", "err", err)
		}
	}

	exhausted = spent()
	return work, exhausted
}

func (d *Driver) handleFrame(frame []byte) int {
	if d.settings.LogRaw {
		d.logger.Info("rx frame", "data", fmt.Sprintf("% x", frame))
	}
	msgs, err := d.codec.Decode(frame)
	d.observer.FrameDecoded(err)
	if err != nil {
		d.logger.Debug("frame dropped", "err", err, "len", len(frame))
		return 1
	}
	for _, m := range msgs {
		result := d.router.Route(m.Source, m.Number, m.Raw)
		d.observer.MessageRouted(result)
		if d.settings.LogDecoded && result == samsung.RouteUpdated {
			d.logger.Info("rx", "address", m.Source, "id", m.Number, "name", m.Number.Name(), "raw", m.Raw)
		}
	}
	if len(msgs) == 0 {
		return 1
	}
	return len(msgs)
}

func (d *Driver) send(cmd protocol.Command) {
	frame, err := d.codec.Encode(cmd)
	if err != nil {
		d.observer.CommandSent(err)
		d.logger.Warn("command dropped", "address", cmd.Address, "err", err)
		return
	}
	if d.settings.LogRaw {
		d.logger.Info("tx frame", "data", fmt.Sprintf("% x", frame))
	}
	err = d.transport.Send(frame)
	d.observer.CommandSent(err)
	if err != nil {
		d.logger.Warn("command dropped", "address", cmd.Address, "err", err)
	}
}

func (d *Driver) logStatus() {
	var indoor, outdoor, other []string
	for _, disc := range d.router.Discovered() {
		switch disc.Kind {
		case protocol.KindIndoor:
			indoor = append(indoor, disc.Address)
		case protocol.KindOutdoor:
			outdoor = append(outdoor, disc.Address)
		default:
			other = append(other, disc.Address)
		}
	}
	d.logger.Info("bus status",
		"configured", strings.Join(d.registry.Addresses(), ","),
		"discovered_indoor", strings.Join(indoor, ","),
		"discovered_outdoor", strings.Join(outdoor, ","),
		"discovered_other", strings.Join(other, ","),
		"outbox", d.outbox.Len(),
	)
}
