package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"roombalink/internal/core"
	"roombalink/internal/robot"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// MCPServer exposes robot control and schedule management as MCP tools over
// stdio, so an LLM agent on the same machine can drive the vacuum.
type MCPServer struct {
	scheduler *core.Scheduler
	robot     *robot.Client
	logger    *slog.Logger
}

// NewMCPServer creates a new MCP server instance.
func NewMCPServer(scheduler *core.Scheduler, robotClient *robot.Client, logger *slog.Logger) *MCPServer {
	return &MCPServer{
		scheduler: scheduler,
		robot:     robotClient,
		logger:    logger,
	}
}

// Run starts the MCP server using stdio transport.
func (s *MCPServer) Run() error {
	mcpServer := server.NewMCPServer(
		"roombalink",
		"1.0.0",
		server.WithToolCapabilities(true),
	)
	s.registerTools(mcpServer)
	s.logger.Info("MCP server starting on stdio")
	return server.ServeStdio(mcpServer)
}

func (s *MCPServer) registerTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(mcp.NewTool("roomba_command",
		mcp.WithDescription("Send a command to the robot right now"),
		mcp.WithString("action",
			mcp.Required(),
			mcp.Description("Command to send"),
			mcp.Enum(robot.Actions()...),
		),
		mcp.WithString("payload_json",
			mcp.Description("Optional JSON payload, e.g. region ids for cleanRoom"),
		),
	), s.handleCommand)

	mcpServer.AddTool(mcp.NewTool("roomba_status",
		mcp.WithDescription("Get the robot's current state (battery, phase, bin)"),
	), s.handleStatus)

	mcpServer.AddTool(mcp.NewTool("schedule_create",
		mcp.WithDescription("Schedule a robot command for later, optionally repeating"),
		mcp.WithString("action",
			mcp.Required(),
			mcp.Description("Command to schedule"),
			mcp.Enum(robot.Actions()...),
		),
		mcp.WithNumber("delay_ms",
			mcp.Required(),
			mcp.Description("Milliseconds from now until the first firing"),
			mcp.Min(0),
		),
		mcp.WithNumber("interval_ms",
			mcp.Description("Repeat interval in milliseconds; omit for a one-shot"),
			mcp.Min(1),
		),
		mcp.WithString("payload_json",
			mcp.Description("Optional JSON payload for the command"),
		),
	), s.handleScheduleCreate)

	mcpServer.AddTool(mcp.NewTool("schedule_list",
		mcp.WithDescription("List all schedules, soonest first"),
	), s.handleScheduleList)

	mcpServer.AddTool(mcp.NewTool("schedule_cancel",
		mcp.WithDescription("Cancel a pending schedule"),
		mcp.WithString("schedule_id",
			mcp.Required(),
			mcp.Description("Schedule ID"),
		),
	), s.handleScheduleCancel)

	s.logger.Info("MCP tools registered", "count", 5)
}

func (s *MCPServer) handleCommand(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	action := mcp.ParseString(request, "action", "")
	payload, errResult := parsePayload(request)
	if errResult != nil {
		return errResult, nil
	}
	if err := s.robot.SendCommand(ctx, action, payload); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("command failed: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Sent %q to the robot", action)), nil
}

func (s *MCPServer) handleStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state := s.robot.State()
	if state.UpdatedAt.IsZero() {
		return mcp.NewToolResultText("No state received from the robot yet"), nil
	}
	result := fmt.Sprintf("Robot: %s\n", state.Name)
	result += fmt.Sprintf("Battery: %d%%\n", state.BatteryPercent)
	result += fmt.Sprintf("Phase: %s\n", state.Phase)
	result += fmt.Sprintf("Bin full: %t\n", state.BinFull)
	if state.ErrorCode != 0 {
		result += fmt.Sprintf("Error code: %d\n", state.ErrorCode)
	}
	result += fmt.Sprintf("Last update: %s\n", state.UpdatedAt.Format(time.RFC3339))
	return mcp.NewToolResultText(result), nil
}

func (s *MCPServer) handleScheduleCreate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	action := mcp.ParseString(request, "action", "")
	if !robot.KnownAction(action) {
		return mcp.NewToolResultError(fmt.Sprintf("unknown action %q", action)), nil
	}
	delayMs := mcp.ParseFloat64(request, "delay_ms", -1)
	if delayMs < 0 {
		return mcp.NewToolResultError("delay_ms must be zero or positive"), nil
	}
	payload, errResult := parsePayload(request)
	if errResult != nil {
		return errResult, nil
	}

	input := core.CreateInput{
		ScheduledAt: time.Now().UnixMilli() + int64(delayMs),
		Action:      action,
		Payload:     payload,
	}
	if intervalMs := mcp.ParseFloat64(request, "interval_ms", 0); intervalMs > 0 {
		interval := int64(intervalMs)
		input.IntervalMs = &interval
	}
	task := s.scheduler.Create(input)

	result := fmt.Sprintf("Schedule created\nID: %s\nFires at: %s\n",
		task.ID, formatMillis(task.ScheduledAt))
	if task.Recurring() {
		result += fmt.Sprintf("Repeats every: %s\n", time.Duration(*task.IntervalMs)*time.Millisecond)
	}
	return mcp.NewToolResultText(result), nil
}

func (s *MCPServer) handleScheduleList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tasks := s.scheduler.List()
	if len(tasks) == 0 {
		return mcp.NewToolResultText("No schedules"), nil
	}
	result := fmt.Sprintf("Found %d schedules:\n\n", len(tasks))
	for _, t := range tasks {
		result += fmt.Sprintf("%s  %s\n", t.ID, t.Action)
		result += fmt.Sprintf("  status: %s\n", t.Status)
		result += fmt.Sprintf("  fires at: %s\n", formatMillis(t.ScheduledAt))
		if t.Recurring() {
			result += fmt.Sprintf("  repeats every: %s\n", time.Duration(*t.IntervalMs)*time.Millisecond)
		}
		if t.LastRunAt != nil {
			result += fmt.Sprintf("  last run: %s\n", formatMillis(*t.LastRunAt))
		}
		result += "\n"
	}
	return mcp.NewToolResultText(result), nil
}

func (s *MCPServer) handleScheduleCancel(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scheduleID := mcp.ParseString(request, "schedule_id", "")
	task := s.scheduler.Cancel(scheduleID)
	if task == nil {
		return mcp.NewToolResultError(fmt.Sprintf("schedule not found: %s", scheduleID)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Schedule %s is now %s", task.ID, task.Status)), nil
}

func parsePayload(request mcp.CallToolRequest) (json.RawMessage, *mcp.CallToolResult) {
	raw := mcp.ParseString(request, "payload_json", "")
	if raw == "" {
		return nil, nil
	}
	if !json.Valid([]byte(raw)) {
		return nil, mcp.NewToolResultError("payload_json is not valid JSON")
	}
	return json.RawMessage(raw), nil
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).Format(time.RFC3339)
}
