package robot

import (
	"context"
	"log/slog"

	"roombalink/internal/core"
)

// CommandExecutor adapts the robot client to the scheduler's Executor
// contract: a scheduled task's action and payload become one command send.
type CommandExecutor struct {
	client *Client
	logger *slog.Logger
}

// NewCommandExecutor creates the scheduler-facing execution adapter.
func NewCommandExecutor(client *Client, logger *slog.Logger) *CommandExecutor {
	return &CommandExecutor{client: client, logger: logger}
}

// Execute sends the task's command to the robot. The returned error is the
// scheduler's sole source of truth for the firing outcome.
func (e *CommandExecutor) Execute(ctx context.Context, task *core.Task, executionRequestID string) error {
	e.logger.Info("executing scheduled command",
		"schedule_id", task.ID,
		"action", task.Action,
		"execution_request_id", executionRequestID)
	return e.client.SendCommand(ctx, task.Action, task.Payload)
}
