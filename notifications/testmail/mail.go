// Package testmail provides an in-memory NotificationService used by tests
// to observe what the pipeline would have sent.
package testmail

import (
	"context"
	"sync"

	"github.com/keepsakeprints/backend/notifications"
)

type TestMail struct {
	mu   sync.Mutex
	sent []notifications.Notification
}

func (*TestMail) Init(any) error { return nil }

func (tm *TestMail) SendNotification(_ context.Context, notification *notifications.Notification) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.sent = append(tm.sent, *notification)
	return nil
}

// Sent returns a copy of every notification recorded so far.
func (tm *TestMail) Sent() []notifications.Notification {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	out := make([]notifications.Notification, len(tm.sent))
	copy(out, tm.sent)
	return out
}

// FindEmail returns the first recorded notification addressed to the given
// recipient, or false when none exists.
func (tm *TestMail) FindEmail(to string) (notifications.Notification, bool) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	for _, n := range tm.sent {
		if n.ToAddress == to {
			return n, true
		}
	}
	return notifications.Notification{}, false
}
