package store

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"roombalink/internal/core"
)

// TaskFile persists the scheduler's task list as one pretty-printed JSON
// array. The whole list is rewritten on every save; task counts are small so
// simplicity wins over throughput.
type TaskFile struct {
	path   string
	logger *slog.Logger
}

// NewTaskFile returns a task file store rooted in stateDir.
func NewTaskFile(stateDir string, logger *slog.Logger) *TaskFile {
	return &TaskFile{
		path:   filepath.Join(stateDir, "schedules.json"),
		logger: logger,
	}
}

// Path returns the backing file location.
func (f *TaskFile) Path() string {
	return f.path
}

// Load reads the task list. A missing file yields an empty list; a corrupt
// file is logged and also yields an empty list. Load never fails the caller.
func (f *TaskFile) Load() []*core.Task {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			f.logger.Warn("read schedule file", "path", f.path, "err", err)
		}
		return nil
	}
	var tasks []*core.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		f.logger.Warn("schedule file is corrupt, starting empty", "path", f.path, "err", err)
		return nil
	}
	return tasks
}

// Save overwrites the backing file with the full list. Failures are logged,
// not propagated; the scheduler keeps operating in memory and retries on the
// next mutation.
func (f *TaskFile) Save(tasks []*core.Task) {
	if tasks == nil {
		tasks = []*core.Task{}
	}
	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		f.logger.Error("encode schedule file", "err", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		f.logger.Error("ensure state dir", "path", f.path, "err", err)
		return
	}
	if err := os.WriteFile(f.path, append(data, '\n'), 0o644); err != nil {
		f.logger.Error("write schedule file", "path", f.path, "err", err)
	}
}
