package store

import (
	"context"
	"fmt"
	"time"

	"roombalink/internal/core"
)

// AuditRecord is a stored audit row with its bookkeeping fields.
type AuditRecord struct {
	ID                 int64
	ExecutionRequestID string
	RequestID          *string
	Command            string
	Status             string
	Message            *string
	ScheduleID         *string
	CreatedAt          time.Time
}

// AppendAudit inserts one flat history row for an execution attempt.
func (s *Store) AppendAudit(ctx context.Context, entry core.AuditEntry) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO audit_log (execution_request_id, request_id, command, status, message, schedule_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, entry.ExecutionRequestID, emptyToNull(entry.RequestID), entry.Command, entry.Status,
		emptyToNull(entry.Message), emptyToNull(entry.ScheduleID),
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert audit row: %w", err)
	}
	return nil
}

// ListAudit returns the newest audit rows first.
func (s *Store) ListAudit(ctx context.Context, limit, offset int) ([]*AuditRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, execution_request_id, request_id, command, status, message, schedule_id, created_at
		FROM audit_log
		ORDER BY id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list audit rows: %w", err)
	}
	defer rows.Close()
	var records []*AuditRecord
	for rows.Next() {
		var (
			rec        AuditRecord
			requestID  *string
			message    *string
			scheduleID *string
			createdAt  string
		)
		if err := rows.Scan(&rec.ID, &rec.ExecutionRequestID, &requestID, &rec.Command,
			&rec.Status, &message, &scheduleID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		rec.RequestID = requestID
		rec.Message = message
		rec.ScheduleID = scheduleID
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			rec.CreatedAt = t
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

func emptyToNull(value string) any {
	if value == "" {
		return nil
	}
	return value
}
