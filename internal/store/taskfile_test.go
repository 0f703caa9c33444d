package store

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roombalink/internal/core"
)

func TestTaskFileLoadMissingFile(t *testing.T) {
	f := NewTaskFile(t.TempDir(), slog.Default())
	assert.Empty(t, f.Load())
}

func TestTaskFileLoadCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schedules.json"), []byte("{not json"), 0o644))

	f := NewTaskFile(dir, slog.Default())
	assert.Empty(t, f.Load())
}

func TestTaskFileRoundTrip(t *testing.T) {
	f := NewTaskFile(t.TempDir(), slog.Default())

	interval := int64(3600000)
	tasks := []*core.Task{
		{
			ID:          "t1",
			Action:      "start",
			ScheduledAt: 1700000000000,
			IntervalMs:  &interval,
			Status:      core.TaskStatusPending,
			CreatedAt:   1699999000000,
			UpdatedAt:   1699999000000,
		},
		{
			ID:          "t2",
			Action:      "dock",
			ScheduledAt: 1700000500000,
			Status:      core.TaskStatusExecuted,
			Result:      &core.Result{OK: true},
		},
	}
	f.Save(tasks)

	loaded := f.Load()
	require.Len(t, loaded, 2)
	assert.Equal(t, "t1", loaded[0].ID)
	require.NotNil(t, loaded[0].IntervalMs)
	assert.Equal(t, interval, *loaded[0].IntervalMs)
	assert.Equal(t, core.TaskStatusExecuted, loaded[1].Status)
	require.NotNil(t, loaded[1].Result)
	assert.True(t, loaded[1].Result.OK)
}

func TestTaskFileSaveCreatesStateDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")
	f := NewTaskFile(dir, slog.Default())

	f.Save([]*core.Task{{ID: "t1", Action: "start", Status: core.TaskStatusPending}})

	data, err := os.ReadFile(f.Path())
	require.NoError(t, err)
	// Pretty-printed with a trailing newline so the file diffs cleanly.
	assert.True(t, strings.HasPrefix(string(data), "[\n"))
	assert.True(t, strings.HasSuffix(string(data), "\n"))
}

func TestTaskFileSaveNilWritesEmptyList(t *testing.T) {
	f := NewTaskFile(t.TempDir(), slog.Default())
	f.Save(nil)
	assert.Empty(t, f.Load())

	data, err := os.ReadFile(f.Path())
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}
