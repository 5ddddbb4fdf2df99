//go:build !no_automation

package automation

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"samsung-ac-bridge/internal/protocol"
	"samsung-ac-bridge/internal/samsung"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

const testAddress = "20.00.00"

type testBridge struct {
	ctl     *samsung.Controller
	bus     *samsung.EventBus
	router  *samsung.Router
	outbox  *samsung.Outbox
	manager *Manager
}

func newTestBridge(t *testing.T) *testBridge {
	t.Helper()
	logger := testLogger()
	mb := samsung.NewMailbox()
	reg, err := samsung.BuildRegistry([]samsung.DeviceSpec{{
		Address: testAddress,
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
	outbox := samsung.NewOutbox(16)
	router := samsung.NewRouter(reg, &samsung.DebugSettings{}, nil, bus, logger)
	translator := samsung.NewTranslator(reg, nil, outbox, bus, logger)

	mgr, err := NewManager(filepath.Join(t.TempDir(), "scripts"))
	if err != nil {
		t.Fatal(err)
	}
	return &testBridge{
		ctl:     samsung.NewController(reg, router, translator, mb, bus),
		bus:     bus,
		router:  router,
		outbox:  outbox,
		manager: mgr,
	}
}

func (b *testBridge) engine() *Engine {
	return NewEngine(b.ctl, b.manager, testLogger())
}

// waitCommand waits for the next queued command.
func (b *testBridge) waitCommand(t *testing.T) protocol.Command {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cmd, ok := b.outbox.Next(); ok {
			return cmd
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("no command queued")
	return protocol.Command{}
}
