package transport

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial"

	"samsung-ac-bridge/internal/protocol"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("transport: closed")

// Config configures the serial bus.
type Config struct {
	Port      string
	BaudRate  int
	Parity    string // none, even, odd
	Variant   protocol.Variant
	QueueSize int
}

func (c Config) mode() (*serial.Mode, error) {
	mode := &serial.Mode{
		BaudRate: c.BaudRate,
		DataBits: 8,
		Parity:   serial.EvenParity,
		StopBits: serial.OneStopBit,
	}
	if mode.BaudRate == 0 {
		mode.BaudRate = 9600
	}
	switch strings.ToLower(c.Parity) {
	case "", "even":
	case "none":
		mode.Parity = serial.NoParity
	case "odd":
		mode.Parity = serial.OddParity
	default:
		return nil, fmt.Errorf("transport: unknown parity %q", c.Parity)
	}
	return mode, nil
}

// Stats are running transport counters.
type Stats struct {
	Frames     uint64
	Dropped    uint64
	Sent       uint64
	SendErrors uint64
}

// Serial is the bus transport. A read loop cuts the byte stream into frames
// and queues them; the driver polls the queue and sends frames synchronously.
type Serial struct {
	port      io.ReadWriteCloser
	assembler *protocol.Assembler
	queue     chan []byte
	logger    *slog.Logger

	writeMu   sync.Mutex
	queueMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
	wg        sync.WaitGroup

	frames     atomic.Uint64
	dropped    atomic.Uint64
	sent       atomic.Uint64
	sendErrors atomic.Uint64
}

// Open opens the serial port and starts the read loop.
func Open(cfg Config, logger *slog.Logger) (*Serial, error) {
	mode, err := cfg.mode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", cfg.Port, err)
	}
	logger.Info("serial port opened", "port", cfg.Port, "baud", mode.BaudRate, "parity", cfg.Parity, "protocol", cfg.Variant)
	return New(port, cfg, logger), nil
}

// New wraps an already open port.
func New(port io.ReadWriteCloser, cfg Config, logger *slog.Logger) *Serial {
	size := cfg.QueueSize
	if size <= 0 {
		size = 256
	}
	s := &Serial{
		port:      port,
		assembler: protocol.NewAssembler(cfg.Variant),
		queue:     make(chan []byte, size),
		logger:    logger.With("component", "transport"),
		done:      make(chan struct{}),
	}
	s.wg.Add(1)
	go s.readLoop()
	return s
}

func (s *Serial) readLoop() {
	defer s.wg.Done()

	backoff := 10 * time.Millisecond
	const maxBackoff = 5 * time.Second
	buf := make([]byte, 256)

	for {
		select {
		case <-s.done:
			return
		default:
		}

		n, err := s.port.Read(buf)
		if n > 0 {
			backoff = 10 * time.Millisecond
			for _, frame := range s.assembler.Feed(buf[:n], time.Now()) {
				s.enqueue(frame)
			}
		}
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			if err != io.EOF && !strings.Contains(err.Error(), "closed") {
				s.logger.Error("serial read error", "err", err)
			}
			select {
			case <-time.After(backoff):
			case <-s.done:
				return
			}
			if backoff < maxBackoff {
				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
			}
		}
	}
}

// enqueue adds a frame, dropping the oldest one when the queue is full.
func (s *Serial) enqueue(frame []byte) {
	s.frames.Add(1)
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	for {
		select {
		case s.queue <- frame:
			return
		default:
		}
		select {
		case <-s.queue:
			s.dropped.Add(1)
			s.logger.Debug("inbound queue full, dropped oldest frame")
		default:
		}
	}
}

// Poll returns up to max queued frames without blocking. max <= 0 means all.
func (s *Serial) Poll(max int) [][]byte {
	var out [][]byte
	for max <= 0 || len(out) < max {
		select {
		case f := <-s.queue:
			out = append(out, f)
		default:
			return out
		}
	}
	return out
}

// Pending returns the number of queued frames.
func (s *Serial) Pending() int { return len(s.queue) }

// Send writes one frame.
func (s *Serial) Send(frame []byte) error {
	if s.closed.Load() {
		return ErrClosed
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.port.Write(frame); err != nil {
		s.sendErrors.Add(1)
		return fmt.Errorf("transport: write: %w", err)
	}
	s.sent.Add(1)
	return nil
}

// Stats returns a snapshot of the counters.
func (s *Serial) Stats() Stats {
	return Stats{
		Frames:     s.frames.Load(),
		Dropped:    s.dropped.Load(),
		Sent:       s.sent.Load(),
		SendErrors: s.sendErrors.Load(),
	}
}

// Close stops the read loop and closes the port.
func (s *Serial) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.done)
		err = s.port.Close()
		s.wg.Wait()
	})
	return err
}
