//go:build !no_automation

package web

import (
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"testing"

	"samsung-ac-bridge/internal/automation"
)

func newAutomationServer(t *testing.T) (*Server, *automation.Engine, *testRig) {
	t.Helper()
	rig := newTestRig(t, 8)
	mgr, err := automation.NewManager(filepath.Join(t.TempDir(), "scripts"))
	if err != nil {
		t.Fatal(err)
	}
	engine := automation.NewEngine(rig.ctl, mgr, slog.New(slog.NewTextHandler(io.Discard, nil)))
	engine.Start()
	t.Cleanup(engine.Stop)
	return rig.server(t, WithAutomation(engine, mgr)), engine, rig
}

func TestAutomationsUnavailable(t *testing.T) {
	rig := newTestRig(t, 8)
	s := rig.server(t)

	rec := doRequest(t, s, "GET", "/api/automations", nil, nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "[]\n" {
		t.Errorf("list = %d %q", rec.Code, rec.Body)
	}
	rec = doRequest(t, s, "POST", "/api/automations", map[string]any{"name": "x"}, nil)
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("create status = %d, want 501", rec.Code)
	}
}

func TestAutomationLifecycle(t *testing.T) {
	s, engine, _ := newAutomationServer(t)

	rec := doRequest(t, s, "POST", "/api/automations", map[string]any{
		"name":     "Night Mode",
		"lua_code": `ac.log("loaded")`,
		"enabled":  true,
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body)
	}
	created := decode[automation.Script](t, rec)
	if created.ID != "night_mode" {
		t.Errorf("id = %q", created.ID)
	}
	if engine.Running() != 1 {
		t.Error("enabled script should be running after create")
	}

	rec = doRequest(t, s, "POST", "/api/automations/"+created.ID+"/toggle", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle status = %d", rec.Code)
	}
	if decode[automation.Script](t, rec).Meta.Enabled {
		t.Error("toggle should disable the script")
	}
	if engine.Running() != 0 {
		t.Error("disabled script still running")
	}

	rec = doRequest(t, s, "PUT", "/api/automations/"+created.ID, map[string]any{
		"name":     "Night Mode",
		"lua_code": `ac.log("v2")`,
		"enabled":  true,
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d", rec.Code)
	}
	if got := decode[automation.Script](t, rec).LuaCode; got != `ac.log("v2")` {
		t.Errorf("lua_code = %q", got)
	}

	rec = doRequest(t, s, "GET", "/api/automations", nil, nil)
	if list := decode[[]automation.Script](t, rec); len(list) != 1 {
		t.Errorf("list len = %d", len(list))
	}

	rec = doRequest(t, s, "DELETE", "/api/automations/"+created.ID, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if engine.Running() != 0 {
		t.Error("deleted script still running")
	}
	rec = doRequest(t, s, "GET", "/api/automations/"+created.ID, nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d", rec.Code)
	}
}

func TestAutomationValidation(t *testing.T) {
	s, _, _ := newAutomationServer(t)

	rec := doRequest(t, s, "POST", "/api/automations", map[string]any{"lua_code": "x = 1"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing name status = %d, want 400", rec.Code)
	}
	rec = doRequest(t, s, "PUT", "/api/automations/missing", map[string]any{"name": "x"}, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("update missing status = %d, want 404", rec.Code)
	}
	rec = doRequest(t, s, "DELETE", "/api/automations/missing", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("delete missing status = %d, want 404", rec.Code)
	}
}

func TestRunInlineAutomation(t *testing.T) {
	s, _, rig := newAutomationServer(t)

	rec := doRequest(t, s, "POST", "/api/automations/_inline/run", map[string]any{
		"lua_code": `ac.log("hi") ac.write("20.00.00", "power", true)`,
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	res := decode[automation.RunResult](t, rec)
	if !res.OK || len(res.Logs) != 1 {
		t.Errorf("result = %+v", res)
	}
	if _, ok := rig.outbox.Next(); !ok {
		t.Error("inline script write was not queued")
	}

	rec = doRequest(t, s, "POST", "/api/automations/_inline/run", map[string]any{"lua_code": `error("boom")`}, nil)
	if res := decode[automation.RunResult](t, rec); res.OK || res.Error == "" {
		t.Errorf("failing script result = %+v", res)
	}
}
