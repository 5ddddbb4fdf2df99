package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"samsung-ac-bridge/internal/automation"
	"samsung-ac-bridge/internal/mirror"
	"samsung-ac-bridge/internal/protocol"
	"samsung-ac-bridge/internal/samsung"
	"samsung-ac-bridge/internal/store"
)

// Bridge is the part of the bridge served over HTTP.
type Bridge interface {
	Events() *samsung.EventBus
	Devices() []*samsung.Device
	Device(address string) (*samsung.Device, error)
	Snapshot() []samsung.Update
	Last(address, key string) (samsung.Update, bool)
	Discovered() []samsung.Discovery
	WriteKey(address, key string, v samsung.Value) error
	WriteRaw(address string, id protocol.MessageNumber, raw int64) error
}

// ServerOption configures the web server.
type ServerOption func(*Server)

// WithAPIKey enables API key authentication for /api/ routes.
func WithAPIKey(key string) ServerOption {
	return func(s *Server) {
		s.apiKey = key
	}
}

// WithAllowedOrigins sets allowed CORS and WebSocket origin patterns.
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

// WithAutomation sets the automation engine and script manager.
func WithAutomation(engine *automation.Engine, mgr *automation.Manager) ServerOption {
	return func(s *Server) {
		s.autoEngine = engine
		s.scriptMgr = mgr
	}
}

// WithStore enables persisted discovery details and state removal.
func WithStore(st store.Store) ServerOption {
	return func(s *Server) {
		s.store = st
	}
}

// WithMetrics mounts a Prometheus handler at /metrics.
func WithMetrics(h http.Handler) ServerOption {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithVersion sets the version reported by /api/version.
func WithVersion(v string) ServerOption {
	return func(s *Server) {
		s.version = v
	}
}

// Server is the HTTP JSON API and live event stream.
type Server struct {
	bridge         Bridge
	wsHub          *WSHub
	logger         *slog.Logger
	mux            *http.ServeMux
	apiKey         string
	allowedOrigins []string
	store          store.Store
	metrics        http.Handler
	scriptMgr      *automation.Manager
	autoEngine     *automation.Engine
	version        string
	wg             sync.WaitGroup
	unsubEvents    func()
}

// NewServer creates the server and starts its WebSocket hub. Every bus
// event is broadcast to connected clients.
func NewServer(bridge Bridge, logger *slog.Logger, opts ...ServerOption) *Server {
	s := &Server{
		bridge: bridge,
		logger: logger.With("component", "web"),
		mux:    http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.wsHub = NewWSHub(s.logger)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.wsHub.Run()
	}()

	s.unsubEvents = bridge.Events().OnAll(func(event samsung.Event) {
		s.wsHub.Broadcast(event)
	})

	s.routes()
	return s
}

// MirrorSink returns a debug mirror sink that streams entries to
// WebSocket clients as "mirror" events.
func (s *Server) MirrorSink() mirror.Sink {
	return mirror.SinkFunc(func(_ context.Context, e mirror.Entry) error {
		s.wsHub.Broadcast(samsung.Event{Type: "mirror", Data: e})
		return nil
	})
}

// Stop shuts down the WebSocket hub and waits for its goroutine.
func (s *Server) Stop() {
	if s.unsubEvents != nil {
		s.unsubEvents()
	}
	s.wsHub.Stop()
	s.wg.Wait()
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/version", s.handleAPIVersion)
	s.mux.HandleFunc("GET /api/devices", s.handleAPIListDevices)
	s.mux.HandleFunc("GET /api/devices/{address}", s.handleAPIGetDevice)
	s.mux.HandleFunc("GET /api/devices/{address}/entities/{key}", s.handleAPIGetEntity)
	s.mux.HandleFunc("POST /api/devices/{address}/entities/{key}", s.handleAPIWriteEntity)
	s.mux.HandleFunc("DELETE /api/devices/{address}/states", s.handleAPIDeleteStates)
	s.mux.HandleFunc("GET /api/states", s.handleAPIListStates)
	s.mux.HandleFunc("GET /api/discovered", s.handleAPIListDiscovered)
	s.mux.HandleFunc("GET /api/roles", s.handleAPIListRoles)
	s.mux.HandleFunc("POST /api/raw", s.handleAPIWriteRaw)

	s.mux.HandleFunc("GET /api/automations", s.handleAPIListAutomations)
	s.mux.HandleFunc("GET /api/automations/{id}", s.handleAPIGetAutomation)
	s.mux.HandleFunc("POST /api/automations", s.handleAPICreateAutomation)
	s.mux.HandleFunc("PUT /api/automations/{id}", s.handleAPIUpdateAutomation)
	s.mux.HandleFunc("DELETE /api/automations/{id}", s.handleAPIDeleteAutomation)
	s.mux.HandleFunc("POST /api/automations/{id}/toggle", s.handleAPIToggleAutomation)
	s.mux.HandleFunc("POST /api/automations/{id}/run", s.handleAPIRunAutomation)

	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics)
	}
	s.mux.HandleFunc("GET /ws", s.handleWS)
}

// ServeHTTP implements http.Handler, applying auth and CORS middleware.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// CORS: check Origin on mutating requests to prevent CSRF.
	if len(s.allowedOrigins) > 0 {
		if origin := r.Header.Get("Origin"); origin != "" {
			if r.Method == http.MethodOptions {
				if !s.isOriginAllowed(origin) {
					http.Error(w, "Forbidden", http.StatusForbidden)
					return
				}
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
				w.Header().Set("Access-Control-Max-Age", "3600")
				w.WriteHeader(http.StatusNoContent)
				return
			}
			if r.Method != http.MethodGet {
				if !s.isOriginAllowed(origin) {
					http.Error(w, "Forbidden", http.StatusForbidden)
					return
				}
				w.Header().Set("Access-Control-Allow-Origin", origin)
			}
		}
	}

	// The WebSocket upgrade and /metrics stay open; browsers cannot send
	// custom headers on an upgrade.
	if s.apiKey != "" && strings.HasPrefix(r.URL.Path, "/api/") {
		key := r.Header.Get("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(s.apiKey)) != 1 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}
	s.mux.ServeHTTP(w, r)
}

func (s *Server) isOriginAllowed(origin string) bool {
	for _, allowed := range s.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (s *Server) handleAPIVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("writeJSON encode failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
