package postgres

import (
	"context"
	"fmt"

	"github.com/backendauth/identity-service/internal/core/domain"
)

const insertAuditEventSQL = `INSERT INTO audit_events (id, action, user_id, subject, occurred_at) VALUES ($1, $2, $3, $4, $5)`

// AuditRepository implements ports.AuditRepository on PostgreSQL.
type AuditRepository struct {
	db DB
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(db DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// InsertAuditEvent appends event to audit_events. A zero UserID is stored
// as NULL.
func (r *AuditRepository) InsertAuditEvent(ctx context.Context, event *domain.AuditEvent) error {
	var userID *int64
	if event.UserID != 0 {
		userID = &event.UserID
	}
	_, err := r.db.Exec(ctx, insertAuditEventSQL,
		event.ID, string(event.Action), userID, event.Subject, event.OccurredAt.UTC())
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}
