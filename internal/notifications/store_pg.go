package notifications

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

const notificationsTable = "email_notifications"

var notificationColumns = []string{
	"id", "recipient", "subject", "body", "kind", "contract_id",
	"scheduled_for", "sent", "sent_at", "created_at",
}

// PGStore implements Store using Postgres.
type PGStore struct {
	DB *sql.DB
}

func psql() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

// Create inserts a pending notification.
func (s *PGStore) Create(ctx context.Context, n Notification) error {
	query, args, err := psql().Insert(notificationsTable).
		Columns(notificationColumns...).
		Values(
			n.ID, n.Recipient, n.Subject, n.Body, string(n.Kind), nullString(n.ContractID),
			n.ScheduledFor, n.Sent, nullTime(n.SentAt), n.CreatedAt,
		).
		ToSql()
	if err != nil {
		return createQueryError(err)
	}
	if _, err := s.DB.ExecContext(ctx, query, args...); err != nil {
		return executeQueryError(err)
	}
	return nil
}

// Get loads a notification by id.
func (s *PGStore) Get(ctx context.Context, id string) (Notification, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Notification{}, ErrNotFound
	}
	query, args, err := psql().Select(notificationColumns...).
		From(notificationsTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return Notification{}, createQueryError(err)
	}
	n, err := scanNotification(s.DB.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Notification{}, ErrNotFound
	}
	return n, err
}

// ListDue selects one keyset page of pending rows whose schedule has passed.
func (s *PGStore) ListDue(ctx context.Context, now time.Time, after DueCursor, limit int) ([]Notification, error) {
	b := psql().Select(notificationColumns...).
		From(notificationsTable).
		Where(sq.Eq{"sent": false}).
		Where(sq.LtOrEq{"scheduled_for": now})
	if after.ID != "" {
		b = b.Where(sq.Expr("(scheduled_for, id) > (?, ?::uuid)", after.ScheduledFor, after.ID))
	}
	b = b.OrderBy("scheduled_for ASC", "id ASC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, createQueryError(err)
	}
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, executeQueryError(err)
	}
	defer rows.Close()

	out := make([]Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return out, nil
}

// MarkSent sets sent and sent_at on a row that is still pending.
func (s *PGStore) MarkSent(ctx context.Context, id string, at time.Time) (bool, error) {
	query, args, err := psql().Update(notificationsTable).
		Set("sent", true).
		Set("sent_at", at).
		Where(sq.Eq{"id": id}).
		Where(sq.Eq{"sent": false}).
		ToSql()
	if err != nil {
		return false, createQueryError(err)
	}
	res, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return false, executeQueryError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, executeQueryError(err)
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotification(row rowScanner) (Notification, error) {
	var (
		n          Notification
		kind       string
		contractID sql.NullString
		sentAt     sql.NullTime
	)
	err := row.Scan(
		&n.ID, &n.Recipient, &n.Subject, &n.Body, &kind, &contractID,
		&n.ScheduledFor, &n.Sent, &sentAt, &n.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Notification{}, err
	}
	if err != nil {
		return Notification{}, scanRowError(err)
	}
	n.Kind = Kind(kind)
	n.ContractID = contractID.String
	if sentAt.Valid {
		at := sentAt.Time
		n.SentAt = &at
	}
	return n, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func createQueryError(err error) error {
	return fmt.Errorf("failed to create query: %w", err)
}

func executeQueryError(err error) error {
	return fmt.Errorf("failed to execute query: %w", err)
}

func scanRowError(err error) error {
	return fmt.Errorf("failed to scan row: %w", err)
}

var _ Store = (*PGStore)(nil)
