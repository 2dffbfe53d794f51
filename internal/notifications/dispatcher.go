package notifications

import (
	"context"
	"fmt"
	"time"

	"contract-backend/internal/shared/errs"
	"contract-backend/internal/shared/metrics"
	"contract-backend/internal/shared/telemetry"
)

const (
	defaultTransportTimeout = 30 * time.Second
	defaultBatchSize        = 100
)

// Dispatcher delivers due notifications. Delivery is at-least-once: a crash or store
// fault between a successful send and MarkSent leaves the row pending, and the next
// sweep sends it again.
type Dispatcher struct {
	store     Store
	transport Transport
	timeout   time.Duration
	batchSize int
	now       func() time.Time
	runLock   chan struct{}
}

// DispatcherOption customizes a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithTransportTimeout bounds each transport call.
func WithTransportTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithBatchSize sets how many due rows a sweep loads per page.
func WithBatchSize(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.batchSize = n
		}
	}
}

// WithDispatcherClock overrides the time source.
func WithDispatcherClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(store Store, transport Transport, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		store:     store,
		transport: transport,
		timeout:   defaultTransportTimeout,
		batchSize: defaultBatchSize,
		now:       func() time.Time { return time.Now().UTC() },
		runLock:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run sweeps every interval until ctx is cancelled. Sweep errors are logged and never stop the loop.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("notifications: sweep interval must be positive, got %s", interval)
	}
	telemetry.Info("notification.dispatcher.started", map[string]any{"interval": interval.String()})

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			telemetry.Info("notification.dispatcher.stopped", nil)
			return nil
		case <-ticker.C:
			if _, err := d.Sweep(ctx); err != nil && ctx.Err() == nil {
				telemetry.Error("notification.sweep.failed", map[string]any{"error": err.Error()})
			}
		}
	}
}

// Sweep sends every due notification once, paging through them in batches ordered by
// (scheduled_for, id). Rows that fail stay pending and are retried by the next sweep
// without holding back the rows behind them. Sweeps never overlap: a caller arriving
// while another sweep runs waits for it, then performs its own.
func (d *Dispatcher) Sweep(ctx context.Context) (SweepResult, error) {
	select {
	case d.runLock <- struct{}{}:
	case <-ctx.Done():
		return SweepResult{}, ctx.Err()
	}
	defer func() { <-d.runLock }()

	metrics.IncNotificationSweeps()
	start := time.Now()

	now := d.now()
	var (
		result SweepResult
		after  DueCursor
	)
	for {
		page, err := d.store.ListDue(ctx, now, after, d.batchSize)
		if err != nil {
			if result.Due > 0 {
				d.logCompleted(result, start)
			}
			return result, errs.Storage("list due notifications", err)
		}
		result.Due += len(page)
		for _, n := range page {
			if err := ctx.Err(); err != nil {
				d.logCompleted(result, start)
				return result, err
			}
			if d.dispatchOne(ctx, n) {
				result.Sent++
			} else {
				result.Failed++
			}
		}
		if len(page) < d.batchSize {
			break
		}
		after = CursorAfter(page[len(page)-1])
	}
	d.logCompleted(result, start)
	return result, nil
}

// dispatchOne sends n and marks it sent. It reports whether the row ended up sent.
func (d *Dispatcher) dispatchOne(ctx context.Context, n Notification) bool {
	if err := d.send(ctx, n); err != nil {
		extErr := errs.External("email transport", err)
		metrics.IncNotificationFailed()
		telemetry.Error("notification.send_failed", map[string]any{
			"notification_id": n.ID,
			"timeout":         extErr.Timeout,
			"error":           extErr.Error(),
		})
		return false
	}

	marked, err := d.store.MarkSent(context.WithoutCancel(ctx), n.ID, d.now())
	if err != nil {
		metrics.IncNotificationFailed()
		telemetry.Error("notification.mark_sent_failed", map[string]any{
			"notification_id": n.ID,
			"error":           err.Error(),
		})
		return false
	}
	if !marked {
		telemetry.Warn("notification.already_sent", map[string]any{"notification_id": n.ID})
	}
	metrics.IncNotificationSent()
	telemetry.Info("notification.sent", map[string]any{
		"notification_id": n.ID,
		"kind":            string(n.Kind),
	})
	return true
}

func (d *Dispatcher) send(ctx context.Context, n Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transport panic: %v", r)
		}
	}()
	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.transport.Send(sendCtx, Message{
		To:      n.Recipient,
		Subject: n.Subject,
		Body:    n.Body,
	})
}

func (d *Dispatcher) logCompleted(r SweepResult, start time.Time) {
	telemetry.Info("notification.sweep.completed", map[string]any{
		"due":         r.Due,
		"sent":        r.Sent,
		"failed":      r.Failed,
		"duration_ms": time.Since(start).Milliseconds(),
	})
}
