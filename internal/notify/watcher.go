package notify

import (
	"context"
	"fmt"
	"log/slog"

	"roombalink/internal/core"
	"roombalink/internal/eventbus"
)

// Watch subscribes to the event bus and pushes a notification whenever a
// scheduled command fails. Runs until ctx is done.
func Watch(ctx context.Context, bus eventbus.Bus, notifier Notifier, logger *slog.Logger) {
	events, unsubscribe := bus.Subscribe(32)
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			scheduleEvent, isSchedule := e.Data.(core.Event)
			if !isSchedule || scheduleEvent.Event != core.EventFailed {
				continue
			}
			task := scheduleEvent.Task
			body := fmt.Sprintf("action %q failed", task.Action)
			if task.Result != nil && task.Result.Message != "" {
				body = fmt.Sprintf("action %q failed: %s", task.Action, task.Result.Message)
			}
			if err := notifier.Send(ctx, "Scheduled command failed", body); err != nil {
				logger.Warn("send failure notification", "schedule_id", task.ID, "err", err)
			}
		}
	}
}
