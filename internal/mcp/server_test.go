package mcp

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roombalink/internal/core"
	"roombalink/internal/robot"
	"roombalink/internal/store"
)

type sinkExecutor struct{}

func (sinkExecutor) Execute(ctx context.Context, task *core.Task, executionRequestID string) error {
	return nil
}

func newTestMCPServer(t *testing.T) *MCPServer {
	t.Helper()
	logger := slog.Default()
	scheduler := core.NewScheduler(store.NewTaskFile(t.TempDir(), logger), sinkExecutor{}, nil, nil, logger)
	scheduler.Start(context.Background())
	t.Cleanup(scheduler.Dispose)
	return NewMCPServer(scheduler, robot.NewClient("", "", "", logger), logger)
}

func toolRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func TestScheduleCreateListCancel(t *testing.T) {
	s := newTestMCPServer(t)
	ctx := context.Background()

	result, err := s.handleScheduleCreate(ctx, toolRequest(map[string]any{
		"action":      "start",
		"delay_ms":    float64(time.Hour.Milliseconds()),
		"interval_ms": float64(86400000),
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "Schedule created")
	assert.Contains(t, resultText(t, result), "Repeats every: 24h0m0s")

	result, err = s.handleScheduleList(ctx, toolRequest(nil))
	require.NoError(t, err)
	text := resultText(t, result)
	assert.Contains(t, text, "Found 1 schedules")
	assert.Contains(t, text, "status: pending")

	tasks := s.scheduler.List()
	require.Len(t, tasks, 1)
	result, err = s.handleScheduleCancel(ctx, toolRequest(map[string]any{"schedule_id": tasks[0].ID}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "is now canceled")
}

func TestScheduleCreateRejectsBadInput(t *testing.T) {
	s := newTestMCPServer(t)
	ctx := context.Background()

	result, err := s.handleScheduleCreate(ctx, toolRequest(map[string]any{
		"action":   "flyToMoon",
		"delay_ms": float64(0),
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = s.handleScheduleCreate(ctx, toolRequest(map[string]any{
		"action": "start",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = s.handleScheduleCreate(ctx, toolRequest(map[string]any{
		"action":       "start",
		"delay_ms":     float64(1000),
		"payload_json": "{broken",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestScheduleListEmpty(t *testing.T) {
	s := newTestMCPServer(t)
	result, err := s.handleScheduleList(context.Background(), toolRequest(nil))
	require.NoError(t, err)
	assert.Equal(t, "No schedules", resultText(t, result))
}

func TestScheduleCancelUnknown(t *testing.T) {
	s := newTestMCPServer(t)
	result, err := s.handleScheduleCancel(context.Background(), toolRequest(map[string]any{"schedule_id": "nope"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestCommandWithUnconfiguredRobot(t *testing.T) {
	s := newTestMCPServer(t)
	result, err := s.handleCommand(context.Background(), toolRequest(map[string]any{"action": "start"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "command failed")
}

func TestStatusBeforeFirstReport(t *testing.T) {
	s := newTestMCPServer(t)
	result, err := s.handleStatus(context.Background(), toolRequest(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "No state received")
}
