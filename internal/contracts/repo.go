package contracts

import (
	"context"
	"time"
)

// Repo persists contracts. Every operation is scoped by owner.
// Mutations report whether a row matched instead of failing on zero rows.
type Repo interface {
	Create(ctx context.Context, c Contract) error
	Get(ctx context.Context, id, ownerID string) (Contract, error)
	List(ctx context.Context, ownerID string) ([]Contract, error)
	// BeginAttempt moves the contract to analyzing and stamps token as the current attempt.
	BeginAttempt(ctx context.Context, id, ownerID, token string, at time.Time) (bool, error)
	// CompleteAttempt stores result and marks the contract analyzed if token is still current.
	CompleteAttempt(ctx context.Context, id, ownerID, token string, result map[string]any, at time.Time) (bool, error)
	// FailAttempt marks the contract failed if token is still current. The stored result is kept.
	FailAttempt(ctx context.Context, id, ownerID, token, reason string, at time.Time) (bool, error)
	Delete(ctx context.Context, id, ownerID string) (bool, error)
	CountByStatus(ctx context.Context, ownerID string) (map[Status]int, error)
}
