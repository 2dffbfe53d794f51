package contracts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"contract-backend/internal/extractor"
	"contract-backend/internal/shared/errs"
	"contract-backend/internal/shared/metrics"
	"contract-backend/internal/shared/storage/object"
	"contract-backend/internal/shared/telemetry"
)

const defaultExtractTimeout = 90 * time.Second

// Notifier schedules deferred email about a contract. Implementations only enqueue.
type Notifier interface {
	AnalysisReady(ctx context.Context, recipient, contractID, fileName string) error
}

// Service drives contracts through pending → analyzing → analyzed | failed.
type Service struct {
	repo      Repo
	store     object.ObjectStore
	extractor extractor.Extractor
	notifier  Notifier
	timeout   time.Duration
	now       func() time.Time
	locks     *keyedLock
}

// Option customizes a Service.
type Option func(*Service)

// WithNotifier enables "analysis ready" emails for owners with a known address.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithExtractTimeout bounds each extractor call.
func WithExtractTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs the analysis orchestrator.
func NewService(repo Repo, store object.ObjectStore, ext extractor.Extractor, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		store:     store,
		extractor: ext,
		timeout:   defaultExtractTimeout,
		now:       func() time.Time { return time.Now().UTC() },
		locks:     newKeyedLock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AnalyzeNew stores the document, creates its contract row and runs the first analysis.
// Once the row exists the id is returned whatever the extractor did; the outcome is in
// the row's status. Failing to store content or create the row yields a StorageError and no id.
func (s *Service) AnalyzeNew(ctx context.Context, owner Owner, up Upload) (string, error) {
	if owner.ID == "" {
		return "", fmt.Errorf("%w: owner is required", ErrInvalidInput)
	}

	storageKey, size, err := s.store.Save(ctx, owner.ID, up.FileName, up.ContentType, bytes.NewReader(up.Content))
	if err != nil {
		return "", errs.Storage("save content", err)
	}

	now := s.now()
	c := Contract{
		ID:          uuid.NewString(),
		UserID:      owner.ID,
		FileName:    up.FileName,
		ContentType: up.ContentType,
		SizeBytes:   size,
		StorageKey:  storageKey,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		if delErr := s.store.Delete(context.WithoutCancel(ctx), storageKey); delErr != nil {
			telemetry.Warn("contract.content_orphaned", map[string]any{
				"storage_key": storageKey,
				"error":       delErr.Error(),
			})
		}
		return "", errs.Storage("create contract", err)
	}
	telemetry.Info("contract.created", map[string]any{
		"contract_id":  c.ID,
		"user_id":      owner.ID,
		"content_type": c.ContentType,
		"size_bytes":   size,
	})

	// The row is new so its lock is uncontended; a caller that goes away now must
	// still see the attempt through to analyzed or failed.
	analyzed, err := s.runAttempt(ctx, context.WithoutCancel(ctx), c, up.Content)
	if err != nil {
		return c.ID, err
	}
	if analyzed {
		s.notifyReady(ctx, owner, c)
	}
	return c.ID, nil
}

// Reanalyze re-runs extraction against the originally stored content.
// It returns false when the extractor fails; the previous result is kept and only the
// status and failure reason change. A missing or foreign contract yields ErrNotFound.
func (s *Service) Reanalyze(ctx context.Context, id, ownerID string) (bool, error) {
	c, err := s.repo.Get(ctx, id, ownerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, ErrNotFound
		}
		return false, errs.Storage("load contract", err)
	}

	content, err := s.readContent(ctx, c.StorageKey)
	if err != nil {
		return false, errs.Storage("read content", err)
	}
	return s.runAttempt(ctx, ctx, c, content)
}

// Get returns one of the owner's contracts.
func (s *Service) Get(ctx context.Context, id, ownerID string) (Contract, error) {
	c, err := s.repo.Get(ctx, id, ownerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Contract{}, ErrNotFound
		}
		return Contract{}, errs.Storage("load contract", err)
	}
	return c, nil
}

// List returns the owner's contracts, newest first.
func (s *Service) List(ctx context.Context, ownerID string) ([]Contract, error) {
	out, err := s.repo.List(ctx, ownerID)
	if err != nil {
		return nil, errs.Storage("list contracts", err)
	}
	return out, nil
}

// Delete hard-deletes the contract and reports whether it existed.
// Stored content is removed best-effort after the row is gone.
func (s *Service) Delete(ctx context.Context, id, ownerID string) (bool, error) {
	c, err := s.repo.Get(ctx, id, ownerID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errs.Storage("load contract", err)
	}

	deleted, err := s.repo.Delete(ctx, id, ownerID)
	if err != nil {
		return false, errs.Storage("delete contract", err)
	}
	if !deleted {
		return false, nil
	}
	if err := s.store.Delete(context.WithoutCancel(ctx), c.StorageKey); err != nil {
		telemetry.Warn("contract.content_orphaned", map[string]any{
			"contract_id": id,
			"storage_key": c.StorageKey,
			"error":       err.Error(),
		})
	}
	telemetry.Info("contract.deleted", map[string]any{"contract_id": id, "user_id": ownerID})
	return true, nil
}

// Stats aggregates the owner's contracts by status.
func (s *Service) Stats(ctx context.Context, ownerID string) (Stats, error) {
	counts, err := s.repo.CountByStatus(ctx, ownerID)
	if err != nil {
		return Stats{}, errs.Storage("count contracts", err)
	}
	var st Stats
	for status, n := range counts {
		st.Total += n
		switch status {
		case StatusAnalyzed:
			st.Analyzed += n
		case StatusFailed:
			st.Failed += n
		case StatusPending, StatusAnalyzing:
			st.Pending += n
		}
	}
	return st, nil
}

// runAttempt performs one extraction attempt under the contract's lock, waiting for it
// with lockCtx. Extractor failures become a failed status and a false return; only store
// faults are errors. Writes run detached from ctx cancellation so an abandoned request
// cannot strand the row in analyzing.
func (s *Service) runAttempt(ctx, lockCtx context.Context, c Contract, content []byte) (bool, error) {
	unlock, err := s.locks.Lock(lockCtx, c.ID)
	if err != nil {
		return false, err
	}
	defer unlock()

	writeCtx := context.WithoutCancel(ctx)
	token := uuid.NewString()
	ok, err := s.repo.BeginAttempt(writeCtx, c.ID, c.UserID, token, s.now())
	if err != nil {
		return false, errs.Storage("begin analysis", err)
	}
	if !ok {
		return false, ErrNotFound
	}
	logTransition(c.ID, c.Status, StatusAnalyzing)

	metrics.IncContractAnalysisStarted()
	start := time.Now()
	extractCtx, cancel := context.WithTimeout(ctx, s.timeout)
	result, extractErr := s.extractor.Extract(extractCtx, extractor.Input{
		FileName:    c.FileName,
		ContentType: c.ContentType,
		Content:     content,
	})
	cancel()
	metrics.ObserveContractAnalysisDurationMs(float64(time.Since(start).Milliseconds()))

	if extractErr != nil {
		extErr := errs.External("extractor", extractErr)
		metrics.IncContractAnalysisFailed()
		telemetry.Error("contract.analysis_failed", map[string]any{
			"contract_id": c.ID,
			"timeout":     extErr.Timeout,
			"error":       extErr.Error(),
		})
		ok, err := s.repo.FailAttempt(writeCtx, c.ID, c.UserID, token, failureReason(extErr), s.now())
		if err != nil {
			return false, errs.Storage("record failure", err)
		}
		if !ok {
			logSuperseded(c.ID)
			return false, nil
		}
		logTransition(c.ID, StatusAnalyzing, StatusFailed)
		return false, nil
	}

	ok, err = s.repo.CompleteAttempt(writeCtx, c.ID, c.UserID, token, result, s.now())
	if err != nil {
		return false, errs.Storage("save result", err)
	}
	if !ok {
		logSuperseded(c.ID)
		return false, nil
	}
	metrics.IncContractAnalysisCompleted()
	logTransition(c.ID, StatusAnalyzing, StatusAnalyzed)
	return true, nil
}

func (s *Service) readContent(ctx context.Context, storageKey string) ([]byte, error) {
	rc, err := s.store.Open(ctx, storageKey)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(io.LimitReader(rc, MaxUploadBytes+1))
}

func (s *Service) notifyReady(ctx context.Context, owner Owner, c Contract) {
	if s.notifier == nil || owner.Email == "" {
		return
	}
	if err := s.notifier.AnalysisReady(ctx, owner.Email, c.ID, c.FileName); err != nil {
		telemetry.Warn("contract.notify_failed", map[string]any{
			"contract_id": c.ID,
			"error":       err.Error(),
		})
	}
}

func failureReason(err *errs.ExternalServiceError) string {
	if err.Timeout {
		return "analysis timed out"
	}
	return "analysis failed: " + err.Err.Error()
}

func logTransition(id string, from, to Status) {
	telemetry.Info("contract.status", map[string]any{
		"contract_id": id,
		"from":        string(from),
		"to":          string(to),
	})
}

func logSuperseded(id string) {
	telemetry.Warn("contract.attempt_superseded", map[string]any{"contract_id": id})
}
