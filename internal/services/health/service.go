package health

import (
	"context"
	"database/sql"
	"time"
)

const pingTimeout = 2 * time.Second

// Service reports process and database health.
type Service struct {
	db *sql.DB
}

// NewService constructs a health service. A nil db means in-memory repositories.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Status returns the health payload and whether the service is usable.
func (s *Service) Status(ctx context.Context) (map[string]any, bool) {
	if s == nil || s.db == nil {
		return map[string]any{"ok": true, "database": "memory"}, true
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		return map[string]any{"ok": false, "database": "down"}, false
	}
	return map[string]any{"ok": true, "database": "up"}, true
}
