package newsletter

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

const subscriptionsTable = "newsletter_subscriptions"

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

func psql() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

// Upsert relies on the unique email index to reactivate existing rows.
func (r *PGRepo) Upsert(ctx context.Context, s Subscription) (Subscription, error) {
	query, args, err := psql().Insert(subscriptionsTable).
		Columns("id", "email", "is_active", "created_at", "updated_at").
		Values(s.ID, s.Email, true, s.CreatedAt, s.UpdatedAt).
		Suffix("ON CONFLICT (email) DO UPDATE SET is_active = true, updated_at = EXCLUDED.updated_at " +
			"RETURNING id, email, is_active, created_at, updated_at").
		ToSql()
	if err != nil {
		return Subscription{}, fmt.Errorf("failed to create query: %w", err)
	}

	var out Subscription
	err = r.DB.QueryRowContext(ctx, query, args...).
		Scan(&out.ID, &out.Email, &out.IsActive, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return Subscription{}, fmt.Errorf("failed to execute query: %w", err)
	}
	return out, nil
}

func (r *PGRepo) Deactivate(ctx context.Context, email string, at time.Time) (bool, error) {
	query, args, err := psql().Update(subscriptionsTable).
		Set("is_active", false).
		Set("updated_at", at).
		Where(sq.Eq{"email": email}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to create query: %w", err)
	}
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to execute query: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to execute query: %w", err)
	}
	return n > 0, nil
}

var _ Repo = (*PGRepo)(nil)
