package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"markestedt/macroflow/macro"
	"markestedt/macroflow/storage"
)

const maxDocumentSize = 4 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// handleStatus returns the current engine snapshot
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, s.ctrl.Stats())
}

// handleMacro handles GET and PUT requests for the loaded macro
func (s *Server) handleMacro(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleGetMacro(w, r)
	case http.MethodPut:
		s.handlePutMacro(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleGetMacro returns the loaded macro as a document
func (s *Server) handleGetMacro(w http.ResponseWriter, r *http.Request) {
	data, err := s.ctrl.Document().Marshal(macro.FormatJSON)
	if err != nil {
		s.logger.Error("Failed to encode macro", "error", err)
		http.Error(w, "Failed to encode macro", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// handlePutMacro replaces the loaded macro. Unknown steps are skipped.
func (s *Server) handlePutMacro(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxDocumentSize))
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	doc, err := macro.Parse(body, macro.FormatJSON, s.logger)
	if err != nil {
		http.Error(w, "Invalid macro document", http.StatusBadRequest)
		return
	}

	if err := s.ctrl.LoadDocument(doc); err != nil {
		s.controlError(w, "load", err)
		return
	}

	s.mu.RLock()
	fn := s.onMacroChange
	s.mu.RUnlock()
	if fn != nil {
		fn(doc)
	}

	s.hub.BroadcastMessage(MessageTypeMacro, map[string]int{
		"actions": len(doc.Actions),
		"skipped": len(doc.Skipped),
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"actions": len(doc.Actions),
		"skipped": len(doc.Skipped),
	})
}

// handleControl maps POST /api/control/{op} onto engine transitions
func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	op := strings.TrimPrefix(r.URL.Path, "/api/control/")

	var err error
	switch op {
	case "start":
		err = s.ctrl.Start(s.runCtx)
	case "pause":
		err = s.ctrl.Pause()
	case "resume":
		err = s.ctrl.Resume()
	case "stop":
		err = s.ctrl.Stop()
	default:
		http.Error(w, "Unknown operation", http.StatusNotFound)
		return
	}

	if err != nil {
		s.controlError(w, op, err)
		return
	}

	writeJSON(w, http.StatusOK, s.ctrl.Stats())
}

// controlError reports state violations as 409 and everything else as 500
func (s *Server) controlError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, macro.ErrAlreadyRunning),
		errors.Is(err, macro.ErrNotRunning),
		errors.Is(err, macro.ErrRunning),
		errors.Is(err, macro.ErrNoActions):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		s.logger.Error("Control request failed", "op", op, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

// handleStats returns statistics for the specified time range
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.db == nil {
		http.Error(w, "History is disabled", http.StatusServiceUnavailable)
		return
	}

	days := 7
	if d, err := strconv.Atoi(r.URL.Query().Get("days")); err == nil && d > 0 {
		days = d
	}

	overall, err := s.db.GetOverallStats(days)
	if err != nil {
		s.logger.Error("Failed to get overall stats", "error", err)
		http.Error(w, "Failed to get statistics", http.StatusInternalServerError)
		return
	}

	daily, err := s.db.GetDailyStats(days)
	if err != nil {
		s.logger.Error("Failed to get daily stats", "error", err)
		http.Error(w, "Failed to get statistics", http.StatusInternalServerError)
		return
	}

	macros, err := s.db.GetMacroStats(days)
	if err != nil {
		s.logger.Error("Failed to get macro stats", "error", err)
		http.Error(w, "Failed to get statistics", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"overall": overall,
		"daily":   daily,
		"macros":  macros,
	})
}

// handleHistory handles GET and DELETE requests for run history
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		http.Error(w, "History is disabled", http.StatusServiceUnavailable)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGetHistory(w, r)
	case http.MethodDelete:
		s.handleDeleteHistory(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleGetHistory returns paginated run history
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	offset := 0

	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		limit = l
	}
	if o, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && o >= 0 {
		offset = o
	}

	runs, err := s.db.GetRuns(limit, offset)
	if err != nil {
		s.logger.Error("Failed to get runs", "error", err)
		http.Error(w, "Failed to get history", http.StatusInternalServerError)
		return
	}

	total, err := s.db.GetRunCount()
	if err != nil {
		s.logger.Error("Failed to get run count", "error", err)
		http.Error(w, "Failed to get history", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"runs":   runs,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// handleDeleteHistory deletes a run by id (e.g. /api/history/<uuid>)
func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/history/")
	if id == "" || id == r.URL.Path || strings.Contains(id, "/") {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}

	if err := s.db.DeleteRun(id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "Run not found", http.StatusNotFound)
			return
		}
		s.logger.Error("Failed to delete run", "error", err, "id", id)
		http.Error(w, "Failed to delete run", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// handleConfig handles GET and PUT requests for configuration
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.GetConfig())
	case http.MethodPut:
		s.handlePutConfig(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handlePutConfig overlays the request body onto the current configuration.
// Fields absent from the body keep their values.
func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	current := s.GetConfig()
	updated := *current
	updated.RecentFiles = slices.Clone(current.RecentFiles)

	if err := json.NewDecoder(r.Body).Decode(&updated); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if updated.Web.Port <= 0 || updated.Web.Port > 65535 {
		http.Error(w, "Invalid web port", http.StatusBadRequest)
		return
	}
	if updated.Macro.Delay < 0 {
		http.Error(w, "Delay must not be negative", http.StatusBadRequest)
		return
	}

	if err := updated.Save(); err != nil {
		s.logger.Error("Failed to save config", "error", err)
		http.Error(w, "Failed to save configuration", http.StatusInternalServerError)
		return
	}

	s.UpdateConfig(&updated)

	s.mu.RLock()
	fn := s.onConfigChange
	s.mu.RUnlock()
	if fn != nil {
		fn(&updated)
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
