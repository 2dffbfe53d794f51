package newsletter

import (
	"context"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"

	"contract-backend/internal/shared/errs"
	"contract-backend/internal/shared/telemetry"
)

// Confirmer schedules the confirmation email for a new or reactivated subscriber.
type Confirmer interface {
	NewsletterConfirmation(ctx context.Context, email string) error
}

type Service struct {
	repo      Repo
	confirmer Confirmer
	now       func() time.Time
}

func NewService(repo Repo, confirmer Confirmer) *Service {
	return &Service{
		repo:      repo,
		confirmer: confirmer,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Subscribe upserts the subscription and schedules a confirmation due immediately.
// A scheduling failure is logged; the subscription stands.
func (s *Service) Subscribe(ctx context.Context, email string) (Subscription, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return Subscription{}, err
	}
	now := s.now()
	sub, err := s.repo.Upsert(ctx, Subscription{
		ID:        uuid.NewString(),
		Email:     normalized,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Subscription{}, errs.Storage("subscribe", err)
	}
	if s.confirmer != nil {
		if err := s.confirmer.NewsletterConfirmation(ctx, normalized); err != nil {
			telemetry.Warn("newsletter.confirmation_failed", map[string]any{"error": err.Error()})
		}
	}
	telemetry.Info("newsletter.subscribed", map[string]any{"subscription_id": sub.ID})
	return sub, nil
}

// Unsubscribe deactivates the subscription and reports whether it existed.
func (s *Service) Unsubscribe(ctx context.Context, email string) (bool, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return false, nil
	}
	ok, err := s.repo.Deactivate(ctx, normalized, s.now())
	if err != nil {
		return false, errs.Storage("unsubscribe", err)
	}
	return ok, nil
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil || addr.Name != "" {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(addr.Address), nil
}
