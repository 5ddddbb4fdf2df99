package web

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"samsung-ac-bridge/internal/samsung"
	"samsung-ac-bridge/internal/store"
)

const testAddress = "20.00.00"

type testRig struct {
	ctl     *samsung.Controller
	mailbox *samsung.Mailbox
	router  *samsung.Router
	outbox  *samsung.Outbox
	bus     *samsung.EventBus
	store   *store.BoltStore
}

func newTestRig(t *testing.T, outboxSize int) *testRig {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mb := samsung.NewMailbox()
	reg, err := samsung.BuildRegistry([]samsung.DeviceSpec{{
		Address: testAddress,
		Name:    "Living Room",
		Entities: []samsung.EntitySpec{
			{Role: samsung.RolePower},
			{Role: samsung.RoleMode},
			{Role: samsung.RoleRoomTemperature},
			{Role: samsung.RoleTargetTemperature},
			{Role: samsung.RoleClimate},
		},
	}}, mb.Handle)
	if err != nil {
		t.Fatal(err)
	}
	bus := samsung.NewEventBus(logger)
	outbox := samsung.NewOutbox(outboxSize)
	router := samsung.NewRouter(reg, &samsung.DebugSettings{}, nil, bus, logger)
	translator := samsung.NewTranslator(reg, nil, outbox, bus, logger)

	st, err := store.NewBoltStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	return &testRig{
		ctl:     samsung.NewController(reg, router, translator, mb, bus),
		mailbox: mb,
		router:  router,
		outbox:  outbox,
		bus:     bus,
		store:   st,
	}
}

func (r *testRig) server(t *testing.T, opts ...ServerOption) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewServer(r.ctl, logger, opts...)
	t.Cleanup(s.Stop)
	return s
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}
