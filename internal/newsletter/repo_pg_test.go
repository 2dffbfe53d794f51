package newsletter

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGRepoUpsertReactivatesOnConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	repo := &PGRepo{DB: db}
	now := time.Now().UTC()

	mock.ExpectQuery(`INSERT INTO newsletter_subscriptions (.+) ON CONFLICT \(email\) DO UPDATE SET is_active = true`).
		WithArgs("sub-1", "a@example.com", true, now, now).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "is_active", "created_at", "updated_at"}).
			AddRow("sub-0", "a@example.com", true, now.Add(-time.Hour), now))

	sub, err := repo.Upsert(context.Background(), Subscription{
		ID: "sub-1", Email: "a@example.com", CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if sub.ID != "sub-0" || !sub.IsActive {
		t.Fatalf("expected the existing row reactivated, got %+v", sub)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoDeactivateReportsAffectedRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	repo := &PGRepo{DB: db}
	now := time.Now().UTC()

	mock.ExpectExec(`UPDATE newsletter_subscriptions SET is_active = \$1, updated_at = \$2 WHERE email = \$3`).
		WithArgs(false, now, "a@example.com").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE newsletter_subscriptions`).
		WithArgs(false, now, "ghost@example.com").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if ok, err := repo.Deactivate(context.Background(), "a@example.com", now); err != nil || !ok {
		t.Fatalf("expected true, got %v %v", ok, err)
	}
	if ok, err := repo.Deactivate(context.Background(), "ghost@example.com", now); err != nil || ok {
		t.Fatalf("expected false, got %v %v", ok, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
