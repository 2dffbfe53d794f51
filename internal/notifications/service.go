package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"

	"contract-backend/internal/shared/errs"
	"contract-backend/internal/shared/telemetry"
)

// Request describes a notification to schedule. A zero ScheduledFor means now.
type Request struct {
	Recipient    string
	Subject      string
	Body         string
	Kind         Kind
	ContractID   string
	ScheduledFor time.Time
}

// Service is the producer side of the pipeline: it only inserts rows. Delivery is the dispatcher's job.
type Service struct {
	store      Store
	appBaseURL string
	now        func() time.Time
}

// NewService constructs a notification scheduler. appBaseURL is used for links in email bodies.
func NewService(store Store, appBaseURL string) *Service {
	return &Service{
		store:      store,
		appBaseURL: strings.TrimRight(appBaseURL, "/"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Schedule validates req and stores it as a pending notification.
func (s *Service) Schedule(ctx context.Context, req Request) (Notification, error) {
	recipient := strings.TrimSpace(req.Recipient)
	if _, err := mail.ParseAddress(recipient); err != nil {
		return Notification{}, fmt.Errorf("%w: recipient %q", ErrInvalidInput, recipient)
	}
	if strings.TrimSpace(req.Subject) == "" {
		return Notification{}, fmt.Errorf("%w: subject is required", ErrInvalidInput)
	}
	kind := req.Kind
	if kind == "" {
		kind = KindGeneric
	}

	now := s.now()
	scheduledFor := req.ScheduledFor
	if scheduledFor.IsZero() {
		scheduledFor = now
	}
	n := Notification{
		ID:           uuid.NewString(),
		Recipient:    recipient,
		Subject:      req.Subject,
		Body:         req.Body,
		Kind:         kind,
		ContractID:   req.ContractID,
		ScheduledFor: scheduledFor.UTC(),
		CreatedAt:    now,
	}
	if err := s.store.Create(ctx, n); err != nil {
		return Notification{}, errs.Storage("schedule notification", err)
	}
	telemetry.Info("notification.scheduled", map[string]any{
		"notification_id": n.ID,
		"kind":            string(n.Kind),
		"scheduled_for":   n.ScheduledFor.Format(time.RFC3339),
	})
	return n, nil
}

// AnalysisReady schedules the "your analysis is ready" email for the next sweep.
func (s *Service) AnalysisReady(ctx context.Context, recipient, contractID, fileName string) error {
	body := fmt.Sprintf("The analysis of %s is complete.", fileName)
	if s.appBaseURL != "" {
		body += fmt.Sprintf("\n\nView the results: %s/contracts/%s", s.appBaseURL, contractID)
	}
	_, err := s.Schedule(ctx, Request{
		Recipient:  recipient,
		Subject:    "Your contract analysis is ready",
		Body:       body,
		Kind:       KindAnalysisReady,
		ContractID: contractID,
	})
	return err
}

// NewsletterConfirmation schedules the subscription confirmation email.
func (s *Service) NewsletterConfirmation(ctx context.Context, email string) error {
	body := "Thanks for subscribing to our newsletter."
	if s.appBaseURL != "" {
		body += fmt.Sprintf("\n\nYou can unsubscribe at any time from %s.", s.appBaseURL)
	}
	_, err := s.Schedule(ctx, Request{
		Recipient: email,
		Subject:   "Newsletter subscription confirmed",
		Body:      body,
		Kind:      KindNewsletterConfirmation,
	})
	return err
}
