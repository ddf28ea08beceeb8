package domain

import "time"

// AuditAction names something that happened to an account.
type AuditAction string

const (
	AuditUserCreated    AuditAction = "user.created"
	AuditUserUpdated    AuditAction = "user.updated"
	AuditUserDeleted    AuditAction = "user.deleted"
	AuditLoginSucceeded AuditAction = "auth.login_succeeded"
	AuditLoginFailed    AuditAction = "auth.login_failed"
)

// AuditEvent is one entry of the account audit trail.
type AuditEvent struct {
	ID         string
	Action     AuditAction
	UserID     int64  // zero when the subject could not be resolved
	Subject    string // username or email as presented
	OccurredAt time.Time
}
