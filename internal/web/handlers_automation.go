package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"samsung-ac-bridge/internal/automation"
)

func (s *Server) handleAPIListAutomations(w http.ResponseWriter, r *http.Request) {
	if s.scriptMgr == nil {
		s.writeJSON(w, http.StatusOK, []any{})
		return
	}
	scripts, err := s.scriptMgr.List()
	if err != nil {
		s.logger.Error("list scripts", "err", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if scripts == nil {
		scripts = []*automation.Script{}
	}
	s.writeJSON(w, http.StatusOK, scripts)
}

func (s *Server) handleAPIGetAutomation(w http.ResponseWriter, r *http.Request) {
	if s.scriptMgr == nil {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	script, err := s.scriptMgr.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, "script not found")
		return
	}
	s.writeJSON(w, http.StatusOK, script)
}

type saveAutomationRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	LuaCode     string `json:"lua_code"`
	Enabled     bool   `json:"enabled"`
}

func (s *Server) decodeAutomation(w http.ResponseWriter, r *http.Request) (saveAutomationRequest, bool) {
	var req saveAutomationRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	if req.Name == "" {
		s.writeError(w, http.StatusBadRequest, "name is required")
		return req, false
	}
	return req, true
}

// reload restarts a script after it was saved; disabled scripts are stopped.
func (s *Server) reload(script *automation.Script) {
	if s.autoEngine == nil {
		return
	}
	if err := s.autoEngine.ReloadScript(script.ID); err != nil {
		s.logger.Error("reload script", "id", script.ID, "err", err)
	}
}

func (s *Server) handleAPICreateAutomation(w http.ResponseWriter, r *http.Request) {
	if s.scriptMgr == nil {
		s.writeError(w, http.StatusNotImplemented, "automations not available")
		return
	}
	req, ok := s.decodeAutomation(w, r)
	if !ok {
		return
	}

	saved, err := s.scriptMgr.Save(&automation.Script{
		Meta: automation.ScriptMeta{
			Name:        req.Name,
			Description: req.Description,
			Enabled:     req.Enabled,
		},
		LuaCode: req.LuaCode,
	})
	if err != nil {
		s.logger.Error("create script", "err", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.reload(saved)
	s.writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleAPIUpdateAutomation(w http.ResponseWriter, r *http.Request) {
	if s.scriptMgr == nil {
		s.writeError(w, http.StatusNotImplemented, "automations not available")
		return
	}
	existing, err := s.scriptMgr.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, "script not found")
		return
	}
	req, ok := s.decodeAutomation(w, r)
	if !ok {
		return
	}

	existing.Meta = automation.ScriptMeta{Name: req.Name, Description: req.Description, Enabled: req.Enabled}
	existing.LuaCode = req.LuaCode
	saved, err := s.scriptMgr.Save(existing)
	if err != nil {
		s.logger.Error("update script", "err", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.reload(saved)
	s.writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleAPIDeleteAutomation(w http.ResponseWriter, r *http.Request) {
	if s.scriptMgr == nil {
		s.writeError(w, http.StatusNotImplemented, "automations not available")
		return
	}
	id := r.PathValue("id")
	if s.autoEngine != nil {
		s.autoEngine.StopScript(id)
	}
	if err := s.scriptMgr.Delete(id); err != nil {
		if errors.Is(err, automation.ErrScriptNotFound) {
			s.writeError(w, http.StatusNotFound, "script not found")
			return
		}
		s.logger.Error("delete script", "err", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAPIToggleAutomation(w http.ResponseWriter, r *http.Request) {
	if s.scriptMgr == nil {
		s.writeError(w, http.StatusNotImplemented, "automations not available")
		return
	}
	script, err := s.scriptMgr.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, "script not found")
		return
	}
	script.Meta.Enabled = !script.Meta.Enabled
	saved, err := s.scriptMgr.Save(script)
	if err != nil {
		s.logger.Error("toggle script", "err", err)
		s.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.reload(saved)
	s.writeJSON(w, http.StatusOK, saved)
}

// handleAPIRunAutomation runs a saved script once, or inline code posted
// to /api/automations/_inline/run.
func (s *Server) handleAPIRunAutomation(w http.ResponseWriter, r *http.Request) {
	if s.autoEngine == nil {
		s.writeError(w, http.StatusNotImplemented, "automation engine not available")
		return
	}
	id := r.PathValue("id")
	if id != "_inline" {
		s.writeJSON(w, http.StatusOK, s.autoEngine.RunScript(id))
		return
	}

	var req struct {
		LuaCode string `json:"lua_code"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.writeJSON(w, http.StatusOK, s.autoEngine.RunLuaCode(req.LuaCode))
}
