package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roombalink/internal/core"
	"roombalink/internal/eventbus"
	"roombalink/internal/robot"
	"roombalink/internal/store"
)

// noopExecutor succeeds instantly; handler tests exercise the HTTP surface,
// not firing behavior.
type noopExecutor struct{}

func (noopExecutor) Execute(ctx context.Context, task *core.Task, executionRequestID string) error {
	return nil
}

type testEnv struct {
	server    *Server
	store     *store.Store
	scheduler *core.Scheduler
	bus       eventbus.Bus
}

func newTestEnv(t *testing.T, authToken string) *testEnv {
	t.Helper()
	logger := slog.Default()
	dir := t.TempDir()

	st, err := store.Open(context.Background(), dir)
	require.NoError(t, err)
	t.Cleanup(func() { st.DB.Close() })

	scheduler := core.NewScheduler(store.NewTaskFile(dir, logger), noopExecutor{}, nil, nil, logger)
	scheduler.Start(context.Background())
	t.Cleanup(scheduler.Dispose)

	robotClient := robot.NewClient("", "", "", logger) // unconfigured

	bus := eventbus.New()
	server, err := NewServer("127.0.0.1:0", authToken, scheduler, robotClient, st, bus, logger)
	require.NoError(t, err)
	return &testEnv{server: server, store: st, scheduler: scheduler, bus: bus}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeTask(t *testing.T, rec *httptest.ResponseRecorder) core.Task {
	t.Helper()
	var task core.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &task))
	return task
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Error.Code
}

func futureMs() int64 {
	return time.Now().Add(time.Hour).UnixMilli()
}

func TestCreateAndListSchedules(t *testing.T) {
	env := newTestEnv(t, "")

	rec := env.do(t, http.MethodPost, "/v1/schedules", map[string]any{
		"scheduledAt": futureMs(),
		"action":      "start",
		"intervalMs":  3600000,
		"requestId":   "cli-1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeTask(t, rec)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, core.TaskStatusPending, created.Status)
	assert.Equal(t, "cli-1", created.RequestID)
	require.NotNil(t, created.IntervalMs)
	assert.Equal(t, int64(3600000), *created.IntervalMs)

	rec = env.do(t, http.MethodGet, "/v1/schedules", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tasks []core.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	require.Len(t, tasks, 1)
	assert.Equal(t, created.ID, tasks[0].ID)
}

func TestCreateScheduleDefaultsRequestID(t *testing.T) {
	env := newTestEnv(t, "")

	rec := env.do(t, http.MethodPost, "/v1/schedules", map[string]any{
		"scheduledAt": futureMs(),
		"action":      "dock",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	// chi's RequestID middleware fills the gap.
	assert.NotEmpty(t, decodeTask(t, rec).RequestID)
}

func TestCreateScheduleValidation(t *testing.T) {
	env := newTestEnv(t, "")

	cases := []struct {
		name string
		body map[string]any
		code string
	}{
		{"missing scheduledAt", map[string]any{"action": "start"}, "invalid_input"},
		{"negative scheduledAt", map[string]any{"scheduledAt": -1, "action": "start"}, "invalid_input"},
		{"unknown action", map[string]any{"scheduledAt": futureMs(), "action": "flyToMoon"}, "invalid_input"},
		{"zero interval", map[string]any{"scheduledAt": futureMs(), "action": "start", "intervalMs": 0}, "invalid_input"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/v1/schedules", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tc.code, errorCode(t, rec))
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/schedules", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_json", errorCode(t, rec))
}

func TestGetScheduleNotFound(t *testing.T) {
	env := newTestEnv(t, "")
	rec := env.do(t, http.MethodGet, "/v1/schedules/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errorCode(t, rec))
}

func TestUpdateSchedule(t *testing.T) {
	env := newTestEnv(t, "")
	created := decodeTask(t, env.do(t, http.MethodPost, "/v1/schedules", map[string]any{
		"scheduledAt": futureMs(),
		"action":      "start",
		"intervalMs":  3600000,
	}))

	newAt := futureMs() + 60000
	rec := env.do(t, http.MethodPatch, "/v1/schedules/"+created.ID, map[string]any{
		"scheduledAt": newAt,
		"action":      "dock",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decodeTask(t, rec)
	assert.Equal(t, newAt, updated.ScheduledAt)
	assert.Equal(t, "dock", updated.Action)
	require.NotNil(t, updated.IntervalMs) // untouched

	// Explicit null clears the recurrence.
	rec = env.do(t, http.MethodPatch, "/v1/schedules/"+created.ID, map[string]any{
		"intervalMs": nil,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decodeTask(t, rec).IntervalMs)
}

func TestUpdateScheduleValidation(t *testing.T) {
	env := newTestEnv(t, "")
	created := decodeTask(t, env.do(t, http.MethodPost, "/v1/schedules", map[string]any{
		"scheduledAt": futureMs(),
		"action":      "start",
	}))

	rec := env.do(t, http.MethodPatch, "/v1/schedules/"+created.ID, map[string]any{"intervalMs": -5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPatch, "/v1/schedules/"+created.ID, map[string]any{"intervalMs": "weekly"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPatch, "/v1/schedules/"+created.ID, map[string]any{"action": "flyToMoon"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPatch, "/v1/schedules/missing", map[string]any{"action": "dock"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelSchedule(t *testing.T) {
	env := newTestEnv(t, "")
	created := decodeTask(t, env.do(t, http.MethodPost, "/v1/schedules", map[string]any{
		"scheduledAt": futureMs(),
		"action":      "start",
	}))

	rec := env.do(t, http.MethodDelete, "/v1/schedules/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, core.TaskStatusCanceled, decodeTask(t, rec).Status)

	// Canceling again is a no-op, not an error.
	rec = env.do(t, http.MethodDelete, "/v1/schedules/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, core.TaskStatusCanceled, decodeTask(t, rec).Status)

	rec = env.do(t, http.MethodDelete, "/v1/schedules/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRobotCommandUnavailable(t *testing.T) {
	env := newTestEnv(t, "")

	rec := env.do(t, http.MethodPost, "/v1/robot/command", map[string]any{"action": "start"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "robot_unavailable", errorCode(t, rec))

	// The failed attempt still leaves an audit row.
	records, err := env.store.ListAudit(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "robot:start", records[0].Command)
	assert.Equal(t, core.AuditStatusError, records[0].Status)
	assert.NotEmpty(t, records[0].ExecutionRequestID)
}

func TestRobotCommandValidation(t *testing.T) {
	env := newTestEnv(t, "")
	rec := env.do(t, http.MethodPost, "/v1/robot/command", map[string]any{"action": "flyToMoon"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_input", errorCode(t, rec))
}

func TestRobotState(t *testing.T) {
	env := newTestEnv(t, "")
	rec := env.do(t, http.MethodGet, "/v1/robot/state", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var state robot.State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Zero(t, state.BatteryPercent)
}

func TestTelemetryEndpoints(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	at := time.Now().Add(-time.Hour).UTC()
	require.NoError(t, env.store.InsertSample(ctx, store.Sample{At: at, BatteryPercent: 77, Phase: "run"}))

	rec := env.do(t, http.MethodGet, "/v1/telemetry/samples", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var samples []sampleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &samples))
	require.Len(t, samples, 1)
	assert.Equal(t, 77, samples[0].BatteryPercent)
	assert.Equal(t, "run", samples[0].Phase)

	require.NoError(t, env.store.RollupHourly(ctx, time.Now()))
	rec = env.do(t, http.MethodGet, fmt.Sprintf("/v1/telemetry/hourly?since_ms=%d", at.Add(-2*time.Hour).UnixMilli()), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var hourly []hourlyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hourly))
	require.Len(t, hourly, 1)
	assert.Equal(t, 77, hourly[0].BatteryMin)
	assert.Equal(t, 1, hourly[0].Samples)
}

func TestAuditEndpoint(t *testing.T) {
	env := newTestEnv(t, "")
	require.NoError(t, env.store.AppendAudit(context.Background(), core.AuditEntry{
		ExecutionRequestID: "exec-1",
		Command:            "schedule:start",
		Status:             core.AuditStatusOK,
		ScheduleID:         "sched-1",
	}))

	rec := env.do(t, http.MethodGet, "/v1/audit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []auditResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "schedule:start", entries[0].Command)
	require.NotNil(t, entries[0].ScheduleID)
	assert.Equal(t, "sched-1", *entries[0].ScheduleID)
}

func TestAuthMiddleware(t *testing.T) {
	env := newTestEnv(t, "secret")

	rec := env.do(t, http.MethodGet, "/v1/schedules", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/schedules", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec2 := env.do(t, http.MethodGet, "/v1/schedules?token=secret", nil)
	assert.Equal(t, http.StatusOK, rec2.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/schedules", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// The UI itself stays reachable without a token.
	rec = env.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
