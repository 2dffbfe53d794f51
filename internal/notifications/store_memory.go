package notifications

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps notifications in memory and is safe for concurrent use.
type MemoryStore struct {
	mu   sync.Mutex
	byID map[string]Notification
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]Notification)}
}

func (s *MemoryStore) Create(ctx context.Context, n Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[n.ID] = cloneNotification(n)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Notification, error) {
	if err := ctx.Err(); err != nil {
		return Notification{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.byID[id]
	if !ok {
		return Notification{}, ErrNotFound
	}
	return cloneNotification(n), nil
}

func (s *MemoryStore) ListDue(ctx context.Context, now time.Time, after DueCursor, limit int) ([]Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notification, 0)
	for _, n := range s.byID {
		if n.Due(now) && !after.covers(n) {
			out = append(out, cloneNotification(n))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ScheduledFor.Equal(out[j].ScheduledFor) {
			return out[i].ID < out[j].ID
		}
		return out[i].ScheduledFor.Before(out[j].ScheduledFor)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) MarkSent(ctx context.Context, id string, at time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.byID[id]
	if !ok || n.Sent {
		return false, nil
	}
	sentAt := at
	n.Sent = true
	n.SentAt = &sentAt
	s.byID[id] = n
	return true, nil
}

func cloneNotification(n Notification) Notification {
	if n.SentAt != nil {
		at := *n.SentAt
		n.SentAt = &at
	}
	return n
}

var _ Store = (*MemoryStore)(nil)
