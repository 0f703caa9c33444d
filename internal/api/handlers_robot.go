package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"roombalink/internal/core"
	"roombalink/internal/robot"

	"github.com/go-chi/chi/v5/middleware"
)

type robotCommandRequest struct {
	Action    string          `json:"action"`
	Payload   json.RawMessage `json:"payload"`
	RequestID string          `json:"requestId"`
}

func (s *Server) handleRobotCommand(w http.ResponseWriter, r *http.Request) {
	var req robotCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	if !robot.KnownAction(req.Action) {
		writeError(w, http.StatusBadRequest, "invalid_input", "unknown action")
		return
	}
	requestID := req.RequestID
	if requestID == "" {
		requestID = middleware.GetReqID(r.Context())
	}

	executionID := core.NewExecutionID()
	entry := core.AuditEntry{
		ExecutionRequestID: executionID,
		RequestID:          requestID,
		Command:            "robot:" + req.Action,
	}
	err := s.robot.SendCommand(r.Context(), req.Action, req.Payload)
	if err != nil {
		entry.Status = core.AuditStatusError
		entry.Message = err.Error()
	} else {
		entry.Status = core.AuditStatusOK
	}
	if auditErr := s.store.AppendAudit(r.Context(), entry); auditErr != nil {
		s.logger.Warn("append audit row", "err", auditErr)
	}

	if err != nil {
		switch {
		case errors.Is(err, robot.ErrNotConfigured):
			writeError(w, http.StatusServiceUnavailable, "robot_unavailable", "robot is not configured")
		case errors.Is(err, robot.ErrNotConnected):
			writeError(w, http.StatusServiceUnavailable, "robot_unavailable", "robot is not connected")
		default:
			s.logger.Error("send robot command", "action", req.Action, "err", err)
			writeError(w, http.StatusBadGateway, "command_failed", err.Error())
		}
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"executionRequestId": executionID,
		"status":             "sent",
	})
}

func (s *Server) handleRobotState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.robot.State())
}

func (s *Server) handleRobotDiscover(w http.ResponseWriter, r *http.Request) {
	timeout := time.Duration(parseIntDefault(r.URL.Query().Get("timeout_ms"), 3000)) * time.Millisecond
	if timeout > 15*time.Second {
		timeout = 15 * time.Second
	}
	robots, err := robot.Discover(r.Context(), timeout)
	if err != nil {
		s.logger.Error("robot discovery", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "discovery failed")
		return
	}
	if robots == nil {
		robots = []robot.Announcement{}
	}
	writeJSON(w, http.StatusOK, robots)
}
