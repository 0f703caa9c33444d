package notify

import (
	"context"
)

// Notifier delivers a push notification to the user's device.
type Notifier interface {
	Send(ctx context.Context, title, body string) error
}

// NoOpNotifier does nothing. Used when no notification channel is configured.
type NoOpNotifier struct{}

func (n *NoOpNotifier) Send(ctx context.Context, title, body string) error {
	return nil
}
