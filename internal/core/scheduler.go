package core

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"time"
)

// TaskStore persists the full task list. Implementations must absorb their
// own I/O failures: Load returns an empty list on a missing or corrupt file
// and Save logs instead of propagating, so the scheduler can keep operating
// in memory and retry on the next mutation.
type TaskStore interface {
	Load() []*Task
	Save(tasks []*Task)
}

// Executor performs the real-world effect of a task (e.g. sending a robot
// command). A nil return marks the firing as succeeded; any error marks it
// as failed. The scheduler never retries beyond the task's own recurrence.
type Executor interface {
	Execute(ctx context.Context, task *Task, executionRequestID string) error
}

// maxTimerDelay is the longest single wake-up the scheduler arms. Tasks
// further out are re-evaluated when the cap elapses rather than scheduled
// directly, so they are never fired early.
const maxTimerDelay = time.Duration(math.MaxInt32) * time.Millisecond

// Scheduler owns the in-memory task list, fires due tasks at the right
// wall-clock time and reschedules recurring ones. A single mutex serializes
// every mutation, including the catch-up loop, so callers may use it from
// any goroutine.
type Scheduler struct {
	store     TaskStore
	executor  Executor
	broadcast func(Event)
	audit     func(AuditEntry)
	logger    *slog.Logger

	mu       sync.Mutex
	tasks    []*Task
	timer    *time.Timer
	wakeSeq  uint64
	inBatch  bool
	disposed bool
	ctx      context.Context

	// test seam; defaults to time.Now
	now func() time.Time
}

// NewScheduler constructs a scheduler. store and executor are required;
// broadcast and audit may be nil, in which case events and audit rows are
// discarded.
func NewScheduler(store TaskStore, executor Executor, broadcast func(Event), audit func(AuditEntry), logger *slog.Logger) *Scheduler {
	if store == nil {
		panic("core: scheduler requires a task store")
	}
	if executor == nil {
		panic("core: scheduler requires an executor")
	}
	if broadcast == nil {
		broadcast = func(Event) {}
	}
	if audit == nil {
		audit = func(AuditEntry) {}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:     store,
		executor:  executor,
		broadcast: broadcast,
		audit:     audit,
		logger:    logger,
		now:       time.Now,
	}
}

// Start loads persisted tasks and arms the timer. ctx is passed to executor
// calls for the lifetime of the scheduler.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	s.ctx = ctx
	s.tasks = s.store.Load()
	recovered := 0
	for _, t := range s.tasks {
		// A task left in "executing" means the process died mid-firing.
		// Put it back to pending so it fires again on the next wake-up.
		if t.Status == TaskStatusExecuting {
			t.Status = TaskStatusPending
			recovered++
		}
	}
	if recovered > 0 {
		s.logger.Warn("recovered interrupted executions", "count", recovered)
		s.persistLocked()
	}
	s.armLocked()
}

// CreateInput carries the caller-supplied fields for a new task.
type CreateInput struct {
	ScheduledAt int64
	Action      string
	Payload     []byte
	RequestID   string
	IntervalMs  *int64
}

// Create allocates a new pending task, persists it and re-arms the timer.
func (s *Scheduler) Create(in CreateInput) *Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowMillis()
	t := &Task{
		ID:          NewID(),
		Action:      in.Action,
		Payload:     in.Payload,
		ScheduledAt: in.ScheduledAt,
		Status:      TaskStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
		RequestID:   in.RequestID,
	}
	if in.IntervalMs != nil && *in.IntervalMs > 0 {
		v := *in.IntervalMs
		t.IntervalMs = &v
	}
	s.tasks = append(s.tasks, t)
	s.persistLocked()
	s.emitLocked(EventCreated, t)
	s.armLocked()
	return t.Clone()
}

// List returns all tasks ordered ascending by scheduledAt.
func (s *Scheduler) List() []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ScheduledAt < out[j].ScheduledAt })
	return out
}

// Get returns the task with the given id, or nil if unknown.
func (s *Scheduler) Get(id string) *Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t := s.findLocked(id); t != nil {
		return t.Clone()
	}
	return nil
}

// Patch carries the optional fields of an update. A nil pointer means the
// field is left untouched; ClearInterval turns a recurring task back into a
// one-shot.
type Patch struct {
	ScheduledAt   *int64
	Action        *string
	Payload       []byte
	IntervalMs    *int64
	ClearInterval bool
}

// Update applies the patch to a pending task. Unknown id returns nil; a task
// that already left pending is returned unchanged with no event. Invalid
// patch fields (empty action, non-positive interval) are silently dropped
// rather than failing the whole call.
func (s *Scheduler) Update(id string, patch Patch) *Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.findLocked(id)
	if t == nil {
		return nil
	}
	if t.Status != TaskStatusPending {
		return t.Clone()
	}
	if patch.ScheduledAt != nil {
		t.ScheduledAt = *patch.ScheduledAt
	}
	if patch.Action != nil {
		if action := strings.TrimSpace(*patch.Action); action != "" {
			t.Action = action
		}
	}
	if patch.Payload != nil {
		t.Payload = patch.Payload
	}
	if patch.ClearInterval {
		t.IntervalMs = nil
	} else if patch.IntervalMs != nil && *patch.IntervalMs > 0 {
		v := *patch.IntervalMs
		t.IntervalMs = &v
	}
	t.UpdatedAt = s.nowMillis()
	s.persistLocked()
	s.emitLocked(EventUpdated, t)
	s.armLocked()
	return t.Clone()
}

// Cancel moves a pending task to canceled. Unknown id returns nil. Canceling
// a task that already finished (or was already canceled) is an idempotent
// no-op returning the task unchanged.
func (s *Scheduler) Cancel(id string) *Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.findLocked(id)
	if t == nil {
		return nil
	}
	if t.Status != TaskStatusPending {
		return t.Clone()
	}
	t.Status = TaskStatusCanceled
	t.UpdatedAt = s.nowMillis()
	s.persistLocked()
	s.emitLocked(EventCanceled, t)
	s.armLocked()
	return t.Clone()
}

// Dispose shuts the scheduler down: the pending timer is stopped and all
// further firing is suppressed. An in-progress catch-up batch stops after
// the task currently executing. Idempotent.
func (s *Scheduler) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	s.disposed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Scheduler) findLocked(id string) *Task {
	for _, t := range s.tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

func (s *Scheduler) nowMillis() int64 {
	return s.now().UnixMilli()
}

func (s *Scheduler) persistLocked() {
	snapshot := make([]*Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		snapshot = append(snapshot, t.Clone())
	}
	s.store.Save(snapshot)
}

// emitLocked publishes a lifecycle event. The sink must not block; a
// panicking sink is contained so it cannot take down the timer loop.
func (s *Scheduler) emitLocked(event string, t *Task) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("event sink panicked", "event", event, "recover", r)
		}
	}()
	s.broadcast(Event{Kind: "schedule", Event: event, Task: t.Clone()})
}

func (s *Scheduler) recordAudit(entry AuditEntry) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("audit sink panicked", "recover", r)
		}
	}()
	s.audit(entry)
}

// armLocked cancels the current wake-up and arms a new one for the earliest
// pending task, clamped to maxTimerDelay.
func (s *Scheduler) armLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.disposed {
		return
	}
	var earliest *Task
	for _, t := range s.tasks {
		if t.Status != TaskStatusPending {
			continue
		}
		if earliest == nil || t.ScheduledAt < earliest.ScheduledAt {
			earliest = t
		}
	}
	if earliest == nil {
		return
	}
	delay := time.Duration(earliest.ScheduledAt-s.nowMillis()) * time.Millisecond
	if delay < 0 {
		delay = 0
	}
	if delay > maxTimerDelay {
		delay = maxTimerDelay
	}
	s.wakeSeq++
	seq := s.wakeSeq
	s.timer = time.AfterFunc(delay, func() { s.wake(seq) })
}

// wake runs one catch-up batch: every pending task whose deadline has passed
// fires exactly once, strictly in ascending scheduledAt order, one at a
// time. The list is re-scanned after each firing so a task canceled while a
// batch is in flight is skipped and recurring tasks rescheduled into the
// future do not loop.
func (s *Scheduler) wake(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed || seq != s.wakeSeq {
		return
	}
	// A mutation during a firing can arm a zero-delay timer whose wake-up
	// lands while the batch is suspended in the executor. The running batch
	// re-scans after every firing, so a second loop would only break the
	// one-at-a-time guarantee.
	if s.inBatch {
		return
	}
	s.inBatch = true
	defer func() { s.inBatch = false }()
	for !s.disposed {
		now := s.nowMillis()
		var due *Task
		for _, t := range s.tasks {
			if t.Status != TaskStatusPending || t.ScheduledAt > now {
				continue
			}
			if due == nil || t.ScheduledAt < due.ScheduledAt {
				due = t
			}
		}
		if due == nil {
			break
		}
		s.fireLocked(due)
	}
	s.armLocked()
}

// fireLocked executes a single task. The caller holds the mutex; it is
// released only while the executor runs, which is the sole point where
// create/update/cancel calls can interleave with a batch.
func (s *Scheduler) fireLocked(t *Task) {
	execID := NewExecutionID()
	t.Status = TaskStatusExecuting
	t.ExecutionRequestID = execID
	s.emitLocked(EventExecuting, t)

	exec := t.Clone()
	ctx := s.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Unlock()
	err := s.executor.Execute(ctx, exec, execID)
	s.mu.Lock()

	now := s.nowMillis()
	t.ExecutedAt = &now
	t.UpdatedAt = now
	entry := AuditEntry{
		ExecutionRequestID: execID,
		RequestID:          t.RequestID,
		Command:            "schedule:" + t.Action,
		ScheduleID:         t.ID,
	}
	if err == nil {
		runAt := now
		t.LastRunAt = &runAt
		t.Result = &Result{OK: true}
		if t.Recurring() {
			t.ScheduledAt = now + *t.IntervalMs
			t.Status = TaskStatusPending
		} else {
			t.Status = TaskStatusExecuted
		}
		s.persistLocked()
		s.emitLocked(EventExecuted, t)
		entry.Status = AuditStatusOK
	} else {
		t.Result = &Result{OK: false, Message: err.Error()}
		if t.Recurring() {
			// Failure does not break the recurrence cadence.
			runAt := now
			t.LastRunAt = &runAt
			t.ScheduledAt = now + *t.IntervalMs
			t.Status = TaskStatusPending
		} else {
			t.Status = TaskStatusFailed
		}
		s.persistLocked()
		s.emitLocked(EventFailed, t)
		entry.Status = AuditStatusError
		entry.Message = err.Error()
	}
	s.recordAudit(entry)
}
