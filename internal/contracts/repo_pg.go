package contracts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

const contractsTable = "contracts"

var contractColumns = []string{
	"id", "user_id", "file_name", "content_type", "size_bytes", "storage_key",
	"status", "result", "failure_reason", "attempt_token", "created_at", "updated_at",
}

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

func psql() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

// Create inserts a new contract row.
func (r *PGRepo) Create(ctx context.Context, c Contract) error {
	result, err := marshalResult(c.Result)
	if err != nil {
		return err
	}
	query, args, err := psql().Insert(contractsTable).
		Columns(contractColumns...).
		Values(
			c.ID, c.UserID, c.FileName, c.ContentType, c.SizeBytes, c.StorageKey,
			string(c.Status), result, nullString(c.FailureReason), nullString(c.AttemptToken),
			c.CreatedAt, c.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return createQueryError(err)
	}
	if _, err := r.DB.ExecContext(ctx, query, args...); err != nil {
		return executeQueryError(err)
	}
	return nil
}

// Get returns the contract when it exists and belongs to ownerID.
func (r *PGRepo) Get(ctx context.Context, id, ownerID string) (Contract, error) {
	if !validID(id) {
		return Contract{}, ErrNotFound
	}
	query, args, err := psql().Select(contractColumns...).
		From(contractsTable).
		Where(sq.Eq{"id": id}).
		Where(sq.Eq{"user_id": ownerID}).
		Limit(1).
		ToSql()
	if err != nil {
		return Contract{}, createQueryError(err)
	}
	c, err := scanContract(r.DB.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Contract{}, ErrNotFound
	}
	return c, err
}

// List returns the owner's contracts, newest first.
func (r *PGRepo) List(ctx context.Context, ownerID string) ([]Contract, error) {
	query, args, err := psql().Select(contractColumns...).
		From(contractsTable).
		Where(sq.Eq{"user_id": ownerID}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, createQueryError(err)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, executeQueryError(err)
	}
	defer rows.Close()

	out := make([]Contract, 0)
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, executeQueryError(err)
	}
	return out, nil
}

func (r *PGRepo) BeginAttempt(ctx context.Context, id, ownerID, token string, at time.Time) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	return r.exec(ctx, psql().Update(contractsTable).
		Set("status", string(StatusAnalyzing)).
		Set("attempt_token", token).
		Set("updated_at", at).
		Where(sq.Eq{"id": id}).
		Where(sq.Eq{"user_id": ownerID}))
}

func (r *PGRepo) CompleteAttempt(ctx context.Context, id, ownerID, token string, result map[string]any, at time.Time) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	payload, err := marshalResult(result)
	if err != nil {
		return false, err
	}
	return r.exec(ctx, psql().Update(contractsTable).
		Set("status", string(StatusAnalyzed)).
		Set("result", payload).
		Set("failure_reason", nil).
		Set("updated_at", at).
		Where(sq.Eq{"id": id}).
		Where(sq.Eq{"user_id": ownerID}).
		Where(sq.Eq{"attempt_token": token}))
}

func (r *PGRepo) FailAttempt(ctx context.Context, id, ownerID, token, reason string, at time.Time) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	return r.exec(ctx, psql().Update(contractsTable).
		Set("status", string(StatusFailed)).
		Set("failure_reason", reason).
		Set("updated_at", at).
		Where(sq.Eq{"id": id}).
		Where(sq.Eq{"user_id": ownerID}).
		Where(sq.Eq{"attempt_token": token}))
}

// Delete hard-deletes the contract row.
func (r *PGRepo) Delete(ctx context.Context, id, ownerID string) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	return r.exec(ctx, psql().Delete(contractsTable).
		Where(sq.Eq{"id": id}).
		Where(sq.Eq{"user_id": ownerID}))
}

func (r *PGRepo) CountByStatus(ctx context.Context, ownerID string) (map[Status]int, error) {
	query, args, err := psql().Select("status", "COUNT(*)").
		From(contractsTable).
		Where(sq.Eq{"user_id": ownerID}).
		GroupBy("status").
		ToSql()
	if err != nil {
		return nil, createQueryError(err)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, executeQueryError(err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, scanRowError(err)
		}
		counts[Status(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, executeQueryError(err)
	}
	return counts, nil
}

type sqlizer interface {
	ToSql() (string, []any, error)
}

func (r *PGRepo) exec(ctx context.Context, b sqlizer) (bool, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return false, createQueryError(err)
	}
	res, err := r.DB.ExecContext(ctx, query, args...)
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

func scanContract(row rowScanner) (Contract, error) {
	var (
		c             Contract
		status        string
		result        []byte
		failureReason sql.NullString
		attemptToken  sql.NullString
	)
	err := row.Scan(
		&c.ID, &c.UserID, &c.FileName, &c.ContentType, &c.SizeBytes, &c.StorageKey,
		&status, &result, &failureReason, &attemptToken, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Contract{}, err
	}
	if err != nil {
		return Contract{}, scanRowError(err)
	}
	c.Status = Status(status)
	c.FailureReason = failureReason.String
	c.AttemptToken = attemptToken.String
	if len(result) > 0 {
		if err := json.Unmarshal(result, &c.Result); err != nil {
			return Contract{}, fmt.Errorf("decode contract result: %w", err)
		}
	}
	return c, nil
}

// marshalResult encodes the findings for the jsonb column; a nil map is SQL NULL.
func marshalResult(result map[string]any) (any, error) {
	if result == nil {
		return nil, nil
	}
	b, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode contract result: %w", err)
	}
	return b, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// validID guards the uuid column from malformed path ids, which are simply unknown contracts.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
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

var _ Repo = (*PGRepo)(nil)
