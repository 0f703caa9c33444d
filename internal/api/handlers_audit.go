package api

import (
	"net/http"
	"time"

	"roombalink/internal/store"
)

type auditResponse struct {
	ID                 int64   `json:"id"`
	ExecutionRequestID string  `json:"executionRequestId"`
	RequestID          *string `json:"requestId,omitempty"`
	Command            string  `json:"command"`
	Status             string  `json:"status"`
	Message            *string `json:"message,omitempty"`
	ScheduleID         *string `json:"scheduleId,omitempty"`
	CreatedAt          string  `json:"createdAt"`
}

func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	limit := parseIntDefault(r.URL.Query().Get("limit"), 50)
	offset := parseIntDefault(r.URL.Query().Get("offset"), 0)
	records, err := s.store.ListAudit(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list audit rows", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list audit entries")
		return
	}
	resp := make([]auditResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, auditToResponse(rec))
	}
	writeJSON(w, http.StatusOK, resp)
}

func auditToResponse(rec *store.AuditRecord) auditResponse {
	return auditResponse{
		ID:                 rec.ID,
		ExecutionRequestID: rec.ExecutionRequestID,
		RequestID:          rec.RequestID,
		Command:            rec.Command,
		Status:             rec.Status,
		Message:            rec.Message,
		ScheduleID:         rec.ScheduleID,
		CreatedAt:          rec.CreatedAt.UTC().Format(time.RFC3339),
	}
}
