package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"samsung-ac-bridge/internal/protocol"
	"samsung-ac-bridge/internal/samsung"
)

// EntityView is an entity with its latest value.
type EntityView struct {
	Key         string         `json:"key"`
	Name        string         `json:"name"`
	Role        string         `json:"role"`
	Kind        string         `json:"kind"`
	MessageID   string         `json:"message_id,omitempty"`
	Unit        string         `json:"unit,omitempty"`
	DeviceClass string         `json:"device_class,omitempty"`
	Writable    bool           `json:"writable"`
	Range       *samsung.Range `json:"range,omitempty"`
	Options     []string       `json:"options,omitempty"`
	Value       *samsung.Value `json:"value"`
	Updated     *time.Time     `json:"updated,omitempty"`
}

// DeviceView is a configured device with its entities.
type DeviceView struct {
	Address      string               `json:"address"`
	Name         string               `json:"name"`
	Kind         protocol.AddressKind `json:"kind"`
	Capabilities samsung.Capabilities `json:"capabilities"`
	Entities     []EntityView         `json:"entities"`
}

// DiscoveredView is an unconfigured bus address.
type DiscoveredView struct {
	Address   string     `json:"address"`
	Kind      string     `json:"kind"`
	FirstSeen *time.Time `json:"first_seen,omitempty"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`
}

// RoleView describes a role for configuration tooling.
type RoleView struct {
	Key       string         `json:"key"`
	Name      string         `json:"name"`
	Kind      string         `json:"kind"`
	MessageID string         `json:"message_id,omitempty"`
	Unit      string         `json:"unit,omitempty"`
	Writable  bool           `json:"writable"`
	Range     *samsung.Range `json:"range,omitempty"`
	Options   []string       `json:"options,omitempty"`
}

func (s *Server) deviceView(dev *samsung.Device) DeviceView {
	v := DeviceView{
		Address:      dev.Address,
		Name:         dev.Name,
		Kind:         protocol.Classify(dev.Address),
		Capabilities: dev.Capabilities,
	}
	for _, b := range dev.Bindings.All() {
		e := EntityView{
			Key:         b.Key,
			Name:        b.Name,
			Role:        b.Role.String(),
			Kind:        string(b.Kind),
			Unit:        b.Unit,
			DeviceClass: b.DeviceClass,
			Writable:    b.Kind.Writable(),
			Range:       b.Range,
			Options:     b.Options(),
		}
		if b.Kind != samsung.EntityClimate {
			e.MessageID = b.MessageID.String()
		}
		if u, ok := s.bridge.Last(dev.Address, b.Key); ok {
			val, ts := u.Value, u.Time
			e.Value = &val
			e.Updated = &ts
		}
		v.Entities = append(v.Entities, e)
	}
	return v
}

func (s *Server) handleAPIListDevices(w http.ResponseWriter, r *http.Request) {
	devices := s.bridge.Devices()
	views := make([]DeviceView, 0, len(devices))
	for _, dev := range devices {
		views = append(views, s.deviceView(dev))
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleAPIGetDevice(w http.ResponseWriter, r *http.Request) {
	dev, err := s.bridge.Device(r.PathValue("address"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, "device not found")
		return
	}
	s.writeJSON(w, http.StatusOK, s.deviceView(dev))
}

func (s *Server) handleAPIGetEntity(w http.ResponseWriter, r *http.Request) {
	dev, err := s.bridge.Device(r.PathValue("address"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, "device not found")
		return
	}
	key := r.PathValue("key")
	if _, err := dev.Bindings.LookupKey(key); err != nil {
		s.writeError(w, http.StatusNotFound, "entity not found")
		return
	}
	u, ok := s.bridge.Last(dev.Address, key)
	if !ok {
		s.writeError(w, http.StatusNotFound, "no value yet")
		return
	}
	s.writeJSON(w, http.StatusOK, u)
}

type writeEntityRequest struct {
	Value json.RawMessage `json:"value"`
}

func (s *Server) handleAPIWriteEntity(w http.ResponseWriter, r *http.Request) {
	dev, err := s.bridge.Device(r.PathValue("address"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, "device not found")
		return
	}
	key := r.PathValue("key")
	b, err := dev.Bindings.LookupKey(key)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "entity not found")
		return
	}

	var req writeEntityRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Value) == 0 {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	v, err := parseWriteValue(req.Value, b)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = s.bridge.WriteKey(dev.Address, key, v)
	s.writeQueued(w, err, "address", dev.Address, "key", key)
}

// writeQueued answers a write request: 202 once queued, 400 for a rejected
// request, 503 when the outbox is full.
func (s *Server) writeQueued(w http.ResponseWriter, err error, attrs ...any) {
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
	case errors.Is(err, samsung.ErrOutboxFull):
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
	case samsung.IsRejection(err):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("write", append(attrs, "err", err)...)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

type writeRawRequest struct {
	Address   string `json:"address"`
	MessageID string `json:"message_id"`
	Value     *int64 `json:"value"`
}

// handleAPIWriteRaw sends one arbitrary message value to a bus address.
func (s *Server) handleAPIWriteRaw(w http.ResponseWriter, r *http.Request) {
	var req writeRawRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<12)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Address == "" || req.Value == nil {
		s.writeError(w, http.StatusBadRequest, "address, message_id and value are required")
		return
	}
	id, err := strconv.ParseUint(strings.TrimSpace(req.MessageID), 0, 16)
	if err != nil || id == 0 {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid message id %q", req.MessageID))
		return
	}
	err = s.bridge.WriteRaw(req.Address, protocol.MessageNumber(id), *req.Value)
	s.writeQueued(w, err, "address", req.Address, "id", req.MessageID)
}

// parseWriteValue decodes a JSON write request for binding b. Strings are
// parsed by the binding's kind; climate entities accept a mode string or a
// command object.
func parseWriteValue(data json.RawMessage, b *samsung.Binding) (samsung.Value, error) {
	if b.Kind == samsung.EntityClimate {
		var mode string
		if err := json.Unmarshal(data, &mode); err == nil {
			return samsung.ClimateWrite(samsung.ClimateCommand{Mode: mode}), nil
		}
		var cmd samsung.ClimateCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			return samsung.Value{}, fmt.Errorf("%w: climate wants a mode or a command object", samsung.ErrWrongKind)
		}
		return samsung.ClimateWrite(cmd), nil
	}

	var v samsung.Value
	if err := json.Unmarshal(data, &v); err != nil {
		return samsung.Value{}, err
	}
	switch {
	case v.Kind == samsung.KindOption && b.Kind != samsung.EntitySelect:
		return b.ParseValue(v.Option)
	case v.Kind == samsung.KindNumber && b.Kind == samsung.EntitySwitch:
		return samsung.Bool(v.Number != 0), nil
	case v.Kind == samsung.KindClimate || v.Kind == samsung.KindNone:
		return samsung.Value{}, fmt.Errorf("%w: unsupported value for %s entity", samsung.ErrWrongKind, b.Kind)
	}
	return v, nil
}

func (s *Server) handleAPIListStates(w http.ResponseWriter, r *http.Request) {
	states := s.bridge.Snapshot()
	if states == nil {
		states = []samsung.Update{}
	}
	s.writeJSON(w, http.StatusOK, states)
}

func (s *Server) handleAPIDeleteStates(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, http.StatusNotImplemented, "store not configured")
		return
	}
	address := samsung.NormalizeAddress(r.PathValue("address"))
	if err := s.store.DeleteDeviceStates(address); err != nil {
		s.logger.Error("delete states", "address", address, "err", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAPIListDiscovered(w http.ResponseWriter, r *http.Request) {
	byAddress := map[string]*DiscoveredView{}
	for _, d := range s.bridge.Discovered() {
		byAddress[d.Address] = &DiscoveredView{Address: d.Address, Kind: string(d.Kind)}
	}
	if s.store != nil {
		stored, err := s.store.ListDiscovered()
		if err != nil {
			s.logger.Warn("list stored discoveries", "err", err)
		}
		for _, d := range stored {
			v, ok := byAddress[d.Address]
			if !ok {
				v = &DiscoveredView{Address: d.Address, Kind: d.Kind}
				byAddress[d.Address] = v
			}
			first, last := d.FirstSeen, d.LastSeen
			v.FirstSeen, v.LastSeen = &first, &last
		}
	}

	views := make([]DiscoveredView, 0, len(byAddress))
	for _, v := range byAddress {
		views = append(views, *v)
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Address < views[j].Address })
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleAPIListRoles(w http.ResponseWriter, r *http.Request) {
	var views []RoleView
	for _, role := range samsung.Roles() {
		def, ok := role.Def()
		if !ok {
			continue
		}
		v := RoleView{
			Key:      def.Key,
			Name:     def.Name,
			Kind:     string(def.Kind),
			Unit:     def.Unit,
			Writable: def.Kind.Writable(),
			Range:    def.Range,
		}
		if def.MessageID != 0 {
			v.MessageID = def.MessageID.String()
		}
		if def.Vocabulary != nil {
			v.Options = def.Vocabulary.Options()
		}
		views = append(views, v)
	}
	s.writeJSON(w, http.StatusOK, views)
}
