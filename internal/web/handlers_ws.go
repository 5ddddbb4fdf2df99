package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"

	"samsung-ac-bridge/internal/samsung"
)

// WSHub fans bus events out to WebSocket clients. Each client may narrow
// the stream by sending {"types": ["entity_update", "mirror"]}.
type WSHub struct {
	clients map[*wsClient]struct{}
	mu      sync.RWMutex
	logger  *slog.Logger

	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan samsung.Event
	dropped    atomic.Uint64

	done     chan struct{}
	stopOnce sync.Once
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte

	mu    sync.Mutex
	types map[string]bool // nil = everything
}

func (c *wsClient) wants(eventType string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.types == nil || c.types[eventType]
}

func (c *wsClient) setTypes(types []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(types) == 0 {
		c.types = nil
		return
	}
	c.types = make(map[string]bool, len(types))
	for _, t := range types {
		c.types[t] = true
	}
}

// NewWSHub creates a hub.
func NewWSHub(logger *slog.Logger) *WSHub {
	return &WSHub{
		clients:    make(map[*wsClient]struct{}),
		logger:     logger,
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		broadcast:  make(chan samsung.Event, 256),
		done:       make(chan struct{}),
	}
}

// Run is the hub loop. It returns after Stop.
func (h *WSHub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("ws client connected", "total", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("ws client disconnected", "total", total)

		case event := <-h.broadcast:
			h.deliver(event)
		}
	}
}

func (h *WSHub) deliver(event samsung.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("ws marshal", "type", event.Type, "err", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		if !client.wants(event.Type) {
			continue
		}
		select {
		case client.send <- data:
		default:
			delete(h.clients, client)
			close(client.send)
			h.logger.Warn("ws client evicted (too slow)")
		}
	}
}

// Stop signals the hub to shut down. Safe to call multiple times.
func (h *WSHub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
}

// Broadcast queues an event for all clients. It never blocks; a full queue
// drops the event.
func (h *WSHub) Broadcast(event samsung.Event) {
	select {
	case h.broadcast <- event:
	default:
		h.dropped.Add(1)
	}
}

// Dropped returns how many events were dropped on a full queue.
func (h *WSHub) Dropped() uint64 { return h.dropped.Load() }

// Clients returns the number of connected clients.
func (h *WSHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{}
	if len(s.allowedOrigins) > 0 {
		opts.OriginPatterns = s.allowedOrigins
	}

	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		s.logger.Error("ws accept", "err", err)
		return
	}
	conn.SetReadLimit(4096)

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 64),
	}

	select {
	case s.wsHub.register <- client:
	case <-s.wsHub.done:
		conn.Close(websocket.StatusGoingAway, "server shutdown")
		return
	}

	go s.wsWritePump(client)
	s.wsReadPump(client)
}

func (s *Server) wsWritePump(client *wsClient) {
	for msg := range client.send {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := client.conn.Write(ctx, websocket.MessageText, msg)
		cancel()
		if err != nil {
			return
		}
	}
	client.conn.Close(websocket.StatusNormalClosure, "")
}

type wsFilter struct {
	Types []string `json:"types"`
}

func (s *Server) wsReadPump(client *wsClient) {
	defer func() {
		select {
		case s.wsHub.unregister <- client:
		case <-s.wsHub.done:
			client.conn.Close(websocket.StatusGoingAway, "server shutdown")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		select {
		case <-s.wsHub.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		_, data, err := client.conn.Read(ctx)
		if err != nil {
			return
		}
		var f wsFilter
		if err := json.Unmarshal(data, &f); err != nil {
			s.logger.Debug("ws ignoring message", "err", err)
			continue
		}
		client.setTypes(f.Types)
	}
}
