package ports

import (
	"context"

	"github.com/backendauth/identity-service/internal/core/domain"
)

// AuditRepository appends entries to the account audit trail.
type AuditRepository interface {
	InsertAuditEvent(ctx context.Context, event *domain.AuditEvent) error
}

// AuditRecorder accepts audit events for asynchronous persistence.
type AuditRecorder interface {
	Record(event domain.AuditEvent)
}
