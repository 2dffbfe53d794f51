package notifications

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"contract-backend/internal/shared/errs"
)

var sweepNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeTransport struct {
	mu      sync.Mutex
	sent    []Message
	failFor map[string]error
}

func (f *fakeTransport) Send(ctx context.Context, msg Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[msg.To]; err != nil {
		return err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// flakyMarkStore fails MarkSent a fixed number of times.
type flakyMarkStore struct {
	*MemoryStore
	markFailures int
	listCalls    atomic.Int32
}

func (s *flakyMarkStore) ListDue(ctx context.Context, now time.Time, after DueCursor, limit int) ([]Notification, error) {
	s.listCalls.Add(1)
	return s.MemoryStore.ListDue(ctx, now, after, limit)
}

func (s *flakyMarkStore) MarkSent(ctx context.Context, id string, at time.Time) (bool, error) {
	if s.markFailures > 0 {
		s.markFailures--
		return false, errors.New("connection reset")
	}
	return s.MemoryStore.MarkSent(ctx, id, at)
}

type brokenStore struct{ *MemoryStore }

func (brokenStore) ListDue(ctx context.Context, now time.Time, after DueCursor, limit int) ([]Notification, error) {
	return nil, errors.New("db down")
}

func seed(t *testing.T, store Store, id, recipient string, scheduledFor time.Time) {
	t.Helper()
	require.NoError(t, store.Create(context.Background(), Notification{
		ID:           id,
		Recipient:    recipient,
		Subject:      "subject " + id,
		Body:         "body",
		Kind:         KindGeneric,
		ScheduledFor: scheduledFor,
		CreatedAt:    scheduledFor.Add(-time.Hour),
	}))
}

func newTestDispatcher(store Store, tr Transport, opts ...DispatcherOption) *Dispatcher {
	opts = append([]DispatcherOption{WithDispatcherClock(func() time.Time { return sweepNow })}, opts...)
	return NewDispatcher(store, tr, opts...)
}

func TestSweepDeliversDueNotificationOnce(t *testing.T) {
	store := NewMemoryStore()
	tr := &fakeTransport{}
	seed(t, store, "n1", "a@example.com", sweepNow.Add(-time.Second))
	d := newTestDispatcher(store, tr)

	res, err := d.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, SweepResult{Due: 1, Sent: 1, Failed: 0}, res)
	require.Equal(t, 1, tr.count())

	n, err := store.Get(context.Background(), "n1")
	require.NoError(t, err)
	require.True(t, n.Sent)
	require.NotNil(t, n.SentAt)
	require.True(t, n.SentAt.Equal(sweepNow))

	res, err = d.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, SweepResult{}, res)
	require.Equal(t, 1, tr.count())
}

func TestSweepNeverSelectsFutureNotifications(t *testing.T) {
	store := NewMemoryStore()
	tr := &fakeTransport{}
	seed(t, store, "future", "a@example.com", sweepNow.Add(time.Minute))
	d := newTestDispatcher(store, tr)

	res, err := d.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, res.Due)
	require.Equal(t, 0, tr.count())

	n, err := store.Get(context.Background(), "future")
	require.NoError(t, err)
	require.False(t, n.Sent)
	require.Nil(t, n.SentAt)
}

func TestSweepTransportFailureKeepsRowPendingAndContinues(t *testing.T) {
	store := NewMemoryStore()
	tr := &fakeTransport{failFor: map[string]error{"bad@example.com": errors.New("550 rejected")}}
	seed(t, store, "n1", "bad@example.com", sweepNow.Add(-2*time.Minute))
	seed(t, store, "n2", "good@example.com", sweepNow.Add(-time.Minute))
	d := newTestDispatcher(store, tr)

	res, err := d.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, SweepResult{Due: 2, Sent: 1, Failed: 1}, res)

	failed, err := store.Get(context.Background(), "n1")
	require.NoError(t, err)
	require.False(t, failed.Sent)
	require.Nil(t, failed.SentAt)

	delivered, err := store.Get(context.Background(), "n2")
	require.NoError(t, err)
	require.True(t, delivered.Sent)

	tr.mu.Lock()
	tr.failFor = nil
	tr.mu.Unlock()
	res, err = d.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, SweepResult{Due: 1, Sent: 1}, res)
}

func TestSweepMarkSentFailureRedeliversOnNextSweep(t *testing.T) {
	store := &flakyMarkStore{MemoryStore: NewMemoryStore(), markFailures: 1}
	tr := &fakeTransport{}
	seed(t, store, "n1", "a@example.com", sweepNow.Add(-time.Second))
	d := newTestDispatcher(store, tr)

	res, err := d.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, SweepResult{Due: 1, Sent: 0, Failed: 1}, res)
	require.Equal(t, 1, tr.count())

	res, err = d.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, SweepResult{Due: 1, Sent: 1}, res)
	// at-least-once: the message went out twice
	require.Equal(t, 2, tr.count())
}

func TestSweepTransportTimeoutIsOrdinaryFailure(t *testing.T) {
	store := NewMemoryStore()
	seed(t, store, "n1", "a@example.com", sweepNow.Add(-time.Second))
	slow := TransportFunc(func(ctx context.Context, msg Message) error {
		<-ctx.Done()
		return ctx.Err()
	})
	d := newTestDispatcher(store, slow, WithTransportTimeout(20*time.Millisecond))

	res, err := d.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, SweepResult{Due: 1, Failed: 1}, res)

	n, err := store.Get(context.Background(), "n1")
	require.NoError(t, err)
	require.False(t, n.Sent)
}

func TestSweepRecoversTransportPanic(t *testing.T) {
	store := NewMemoryStore()
	seed(t, store, "n1", "panic@example.com", sweepNow.Add(-2*time.Second))
	seed(t, store, "n2", "ok@example.com", sweepNow.Add(-time.Second))
	tr := TransportFunc(func(ctx context.Context, msg Message) error {
		if msg.To == "panic@example.com" {
			panic("boom")
		}
		return nil
	})
	d := newTestDispatcher(store, tr)

	res, err := d.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, SweepResult{Due: 2, Sent: 1, Failed: 1}, res)
}

func TestSweepDeliversRowsBehindFailingBatch(t *testing.T) {
	store := &flakyMarkStore{MemoryStore: NewMemoryStore()}
	bounced := errors.New("550 mailbox unavailable")
	tr := &fakeTransport{failFor: map[string]error{
		"gone1@example.com": bounced,
		"gone2@example.com": bounced,
	}}
	seed(t, store, "n1", "gone1@example.com", sweepNow.Add(-3*time.Second))
	seed(t, store, "n2", "gone2@example.com", sweepNow.Add(-2*time.Second))
	seed(t, store, "n3", "c@example.com", sweepNow.Add(-time.Second))
	d := newTestDispatcher(store, tr, WithBatchSize(2))

	res, err := d.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, SweepResult{Due: 3, Sent: 1, Failed: 2}, res)
	require.Equal(t, int32(2), store.listCalls.Load())

	n3, err := store.Get(context.Background(), "n3")
	require.NoError(t, err)
	require.True(t, n3.Sent)

	res, err = d.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, SweepResult{Due: 2, Sent: 0, Failed: 2}, res)
	require.Equal(t, 1, tr.count())
}

func TestSweepPagesUntilShortPage(t *testing.T) {
	store := &flakyMarkStore{MemoryStore: NewMemoryStore()}
	tr := &fakeTransport{}
	for _, id := range []string{"n1", "n2", "n3", "n4"} {
		seed(t, store, id, id+"@example.com", sweepNow.Add(-time.Minute))
	}
	d := newTestDispatcher(store, tr, WithBatchSize(2))

	res, err := d.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, SweepResult{Due: 4, Sent: 4}, res)
	require.Equal(t, int32(3), store.listCalls.Load())
	require.Equal(t, 4, tr.count())
}

func TestSweepListFailureIsStorageError(t *testing.T) {
	d := newTestDispatcher(brokenStore{NewMemoryStore()}, &fakeTransport{})

	_, err := d.Sweep(context.Background())
	require.Error(t, err)
	require.True(t, errs.IsStorage(err))
}

func TestConcurrentSweepsDoNotOverlap(t *testing.T) {
	store := &flakyMarkStore{MemoryStore: NewMemoryStore()}
	seed(t, store, "n1", "a@example.com", sweepNow.Add(-time.Second))

	entered := make(chan struct{})
	release := make(chan struct{})
	var sends atomic.Int32
	tr := TransportFunc(func(ctx context.Context, msg Message) error {
		if sends.Add(1) == 1 {
			close(entered)
			<-release
		}
		return nil
	})
	d := newTestDispatcher(store, tr)

	results := make(chan SweepResult, 2)
	go func() {
		res, _ := d.Sweep(context.Background())
		results <- res
	}()
	<-entered

	go func() {
		res, _ := d.Sweep(context.Background())
		results <- res
	}()
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, int32(1), store.listCalls.Load(), "second sweep must wait for the first")

	close(release)
	first, second := <-results, <-results
	require.Equal(t, 1, first.Sent+second.Sent)
	require.Equal(t, int32(1), sends.Load())
	require.Equal(t, int32(2), store.listCalls.Load())
}

func TestSweepWaitingForRunLockHonorsContext(t *testing.T) {
	store := NewMemoryStore()
	seed(t, store, "n1", "a@example.com", sweepNow.Add(-time.Second))
	entered := make(chan struct{})
	release := make(chan struct{})
	tr := TransportFunc(func(ctx context.Context, msg Message) error {
		close(entered)
		<-release
		return nil
	})
	d := newTestDispatcher(store, tr)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = d.Sweep(context.Background())
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := d.Sweep(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	<-done
}

func TestRunSweepsUntilCancelled(t *testing.T) {
	store := NewMemoryStore()
	tr := &fakeTransport{}
	seed(t, store, "n1", "a@example.com", sweepNow.Add(-time.Second))
	d := newTestDispatcher(store, tr)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, 10*time.Millisecond) }()

	require.Eventually(t, func() bool { return tr.count() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
	require.Equal(t, 1, tr.count())
}

func TestRunRejectsNonPositiveInterval(t *testing.T) {
	d := newTestDispatcher(NewMemoryStore(), &fakeTransport{})
	require.Error(t, d.Run(context.Background(), 0))
}
