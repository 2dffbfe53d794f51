package contracts

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores contracts in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Contract
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Contract)}
}

func (r *MemoryRepo) Create(ctx context.Context, c Contract) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[c.ID] = cloneContract(c)
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, id, ownerID string) (Contract, error) {
	if err := ctx.Err(); err != nil {
		return Contract{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	if !ok || c.UserID != ownerID {
		return Contract{}, ErrNotFound
	}
	return cloneContract(c), nil
}

func (r *MemoryRepo) List(ctx context.Context, ownerID string) ([]Contract, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Contract, 0)
	for _, c := range r.byID {
		if c.UserID == ownerID {
			out = append(out, cloneContract(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryRepo) BeginAttempt(ctx context.Context, id, ownerID, token string, at time.Time) (bool, error) {
	return r.update(ctx, id, ownerID, "", func(c *Contract) {
		c.Status = StatusAnalyzing
		c.AttemptToken = token
		c.UpdatedAt = at
	})
}

func (r *MemoryRepo) CompleteAttempt(ctx context.Context, id, ownerID, token string, result map[string]any, at time.Time) (bool, error) {
	return r.update(ctx, id, ownerID, token, func(c *Contract) {
		c.Status = StatusAnalyzed
		c.Result = cloneResult(result)
		c.FailureReason = ""
		c.UpdatedAt = at
	})
}

func (r *MemoryRepo) FailAttempt(ctx context.Context, id, ownerID, token, reason string, at time.Time) (bool, error) {
	return r.update(ctx, id, ownerID, token, func(c *Contract) {
		c.Status = StatusFailed
		c.FailureReason = reason
		c.UpdatedAt = at
	})
}

func (r *MemoryRepo) Delete(ctx context.Context, id, ownerID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok || c.UserID != ownerID {
		return false, nil
	}
	delete(r.byID, id)
	return true, nil
}

func (r *MemoryRepo) CountByStatus(ctx context.Context, ownerID string) (map[Status]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[Status]int)
	for _, c := range r.byID {
		if c.UserID == ownerID {
			counts[c.Status]++
		}
	}
	return counts, nil
}

// update applies fn when the row exists, is owned by ownerID and, if token is set, token is current.
func (r *MemoryRepo) update(ctx context.Context, id, ownerID, token string, fn func(*Contract)) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok || c.UserID != ownerID {
		return false, nil
	}
	if token != "" && c.AttemptToken != token {
		return false, nil
	}
	fn(&c)
	r.byID[id] = c
	return true, nil
}

func cloneContract(c Contract) Contract {
	c.Result = cloneResult(c.Result)
	return c
}

// cloneResult deep-copies through a JSON-shaped value so callers never share maps with the store.
func cloneResult(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	return cloneValue(in).(map[string]any)
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	default:
		return v
	}
}

var _ Repo = (*MemoryRepo)(nil)
