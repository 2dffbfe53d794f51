package notifications

import (
	"context"
	"time"
)

// DueCursor is the position of the last row of a ListDue page.
// The zero value starts before the first row.
type DueCursor struct {
	ScheduledFor time.Time
	ID           string
}

// CursorAfter returns the cursor positioned on n.
func CursorAfter(n Notification) DueCursor {
	return DueCursor{ScheduledFor: n.ScheduledFor, ID: n.ID}
}

// covers reports whether n sorts at or before the cursor position.
func (c DueCursor) covers(n Notification) bool {
	if c.ID == "" {
		return false
	}
	if n.ScheduledFor.Equal(c.ScheduledFor) {
		return n.ID <= c.ID
	}
	return n.ScheduledFor.Before(c.ScheduledFor)
}

// Store persists scheduled notifications and their delivery state.
type Store interface {
	Create(ctx context.Context, n Notification) error
	Get(ctx context.Context, id string) (Notification, error)
	// ListDue returns up to limit unsent rows scheduled at or before now that sort
	// after the cursor, ordered by (scheduled_for, id). A limit of zero means no cap.
	ListDue(ctx context.Context, now time.Time, after DueCursor, limit int) ([]Notification, error)
	// MarkSent flips a pending row to sent. It reports false when the row is missing or already sent.
	MarkSent(ctx context.Context, id string, at time.Time) (bool, error)
}
