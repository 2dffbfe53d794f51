package newsletter

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo keeps subscriptions in memory.
type MemoryRepo struct {
	mu      sync.Mutex
	byEmail map[string]Subscription
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byEmail: make(map[string]Subscription)}
}

func (r *MemoryRepo) Upsert(ctx context.Context, s Subscription) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return Subscription{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byEmail[s.Email]; ok {
		existing.IsActive = true
		existing.UpdatedAt = s.UpdatedAt
		r.byEmail[s.Email] = existing
		return existing, nil
	}
	s.IsActive = true
	r.byEmail[s.Email] = s
	return s, nil
}

func (r *MemoryRepo) Deactivate(ctx context.Context, email string, at time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.byEmail[email]
	if !ok {
		return false, nil
	}
	existing.IsActive = false
	existing.UpdatedAt = at
	r.byEmail[email] = existing
	return true, nil
}

var _ Repo = (*MemoryRepo)(nil)
