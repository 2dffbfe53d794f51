package newsletter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingConfirmer struct {
	emails []string
	err    error
}

func (r *recordingConfirmer) NewsletterConfirmation(ctx context.Context, email string) error {
	r.emails = append(r.emails, email)
	return r.err
}

func TestSubscribeUpsertsAndReactivates(t *testing.T) {
	repo := NewMemoryRepo()
	conf := &recordingConfirmer{}
	svc := NewService(repo, conf)
	ctx := context.Background()

	first, err := svc.Subscribe(ctx, "Reader@Example.com")
	require.NoError(t, err)
	require.Equal(t, "reader@example.com", first.Email)
	require.True(t, first.IsActive)

	ok, err := svc.Unsubscribe(ctx, "reader@example.com")
	require.NoError(t, err)
	require.True(t, ok)

	again, err := svc.Subscribe(ctx, "reader@example.com")
	require.NoError(t, err)
	require.True(t, again.IsActive)
	require.Equal(t, first.ID, again.ID)
	require.Equal(t, []string{"reader@example.com", "reader@example.com"}, conf.emails)
}

func TestSubscribeRejectsInvalidEmail(t *testing.T) {
	svc := NewService(NewMemoryRepo(), nil)
	for _, email := range []string{"", "not-an-email", "Name <a@example.com>"} {
		_, err := svc.Subscribe(context.Background(), email)
		require.True(t, errors.Is(err, ErrInvalidEmail), "email %q", email)
	}
}

func TestSubscribeKeepsSubscriptionWhenConfirmationFails(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo, &recordingConfirmer{err: errors.New("store down")})

	sub, err := svc.Subscribe(context.Background(), "a@example.com")
	require.NoError(t, err)
	require.True(t, sub.IsActive)
}

func TestUnsubscribeUnknownEmailReportsFalse(t *testing.T) {
	svc := NewService(NewMemoryRepo(), nil)

	ok, err := svc.Unsubscribe(context.Background(), "ghost@example.com")
	require.NoError(t, err)
	require.False(t, ok)
}
