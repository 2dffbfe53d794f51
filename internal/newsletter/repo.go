package newsletter

import (
	"context"
	"time"
)

// Repo persists subscriptions.
type Repo interface {
	// Upsert inserts a subscription or reactivates an existing one.
	Upsert(ctx context.Context, s Subscription) (Subscription, error)
	// Deactivate reports whether a subscription for email existed.
	Deactivate(ctx context.Context, email string, at time.Time) (bool, error)
}
