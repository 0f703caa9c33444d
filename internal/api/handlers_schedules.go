package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"roombalink/internal/core"
	"roombalink/internal/robot"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type createScheduleRequest struct {
	ScheduledAt *int64          `json:"scheduledAt"`
	Action      string          `json:"action"`
	Payload     json.RawMessage `json:"payload"`
	IntervalMs  *int64          `json:"intervalMs"`
	RequestID   string          `json:"requestId"`
}

// updateScheduleRequest keeps intervalMs as raw JSON so an explicit null
// (clear the recurrence) can be told apart from an absent field.
type updateScheduleRequest struct {
	ScheduledAt *int64          `json:"scheduledAt"`
	Action      *string         `json:"action"`
	Payload     json.RawMessage `json:"payload"`
	IntervalMs  json.RawMessage `json:"intervalMs"`
}

func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req createScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	if req.ScheduledAt == nil || *req.ScheduledAt <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_input", "scheduledAt must be a positive epoch-millisecond timestamp")
		return
	}
	if !robot.KnownAction(req.Action) {
		writeError(w, http.StatusBadRequest, "invalid_input", "unknown action")
		return
	}
	if req.IntervalMs != nil && *req.IntervalMs <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_input", "intervalMs must be positive")
		return
	}
	requestID := req.RequestID
	if requestID == "" {
		requestID = middleware.GetReqID(r.Context())
	}

	task := s.scheduler.Create(core.CreateInput{
		ScheduledAt: *req.ScheduledAt,
		Action:      req.Action,
		Payload:     req.Payload,
		RequestID:   requestID,
		IntervalMs:  req.IntervalMs,
	})
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.scheduler.List())
}

func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	task := s.scheduler.Get(chi.URLParam(r, "scheduleID"))
	if task == nil {
		writeError(w, http.StatusNotFound, "not_found", "schedule not found")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	scheduleID := chi.URLParam(r, "scheduleID")
	var req updateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	if req.ScheduledAt != nil && *req.ScheduledAt <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_input", "scheduledAt must be a positive epoch-millisecond timestamp")
		return
	}
	if req.Action != nil && !robot.KnownAction(*req.Action) {
		writeError(w, http.StatusBadRequest, "invalid_input", "unknown action")
		return
	}

	patch := core.Patch{
		ScheduledAt: req.ScheduledAt,
		Action:      req.Action,
		Payload:     req.Payload,
	}
	if len(req.IntervalMs) > 0 {
		if bytes.Equal(bytes.TrimSpace(req.IntervalMs), []byte("null")) {
			patch.ClearInterval = true
		} else {
			var interval int64
			if err := json.Unmarshal(req.IntervalMs, &interval); err != nil || interval <= 0 {
				writeError(w, http.StatusBadRequest, "invalid_input", "intervalMs must be a positive number or null")
				return
			}
			patch.IntervalMs = &interval
		}
	}

	task := s.scheduler.Update(scheduleID, patch)
	if task == nil {
		writeError(w, http.StatusNotFound, "not_found", "schedule not found")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleCancelSchedule(w http.ResponseWriter, r *http.Request) {
	task := s.scheduler.Cancel(chi.URLParam(r, "scheduleID"))
	if task == nil {
		writeError(w, http.StatusNotFound, "not_found", "schedule not found")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func parseIntDefault(value string, def int) int {
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	payload := map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	}
	writeJSON(w, status, payload)
}
