package db

import (
	"strings"
	"testing"
)

func TestNotificationsMigrationEnforcesSentAt(t *testing.T) {
	raw, err := migrationFiles.ReadFile("migrations/00002_create_email_notifications.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	sql := string(raw)
	if !strings.Contains(sql, "CHECK (NOT sent OR sent_at IS NOT NULL)") {
		t.Fatalf("email_notifications must reject sent rows without sent_at")
	}
	if !strings.Contains(sql, "ON email_notifications (scheduled_for, id)") {
		t.Fatalf("due index must cover the sweep keyset")
	}
}
