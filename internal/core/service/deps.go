package service

import (
	"context"
	"time"

	"github.com/backendauth/identity-service/internal/core/domain"
	"github.com/backendauth/identity-service/internal/core/ports"
	"github.com/backendauth/identity-service/internal/pkg/token"
)

// PasswordHasher abstracts the credential verifier (bcrypt).
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
}

// TokenIssuer abstracts the token codec.
type TokenIssuer interface {
	Issue(sub token.Subject, ttl time.Duration) (string, time.Time, error)
	Validate(raw string) bool
}

type noopLimiter struct{}

func (noopLimiter) Blocked(context.Context, string) (bool, error) { return false, nil }
func (noopLimiter) RegisterFailure(context.Context, string) error { return nil }
func (noopLimiter) Reset(context.Context, string) error { return nil }

type noopRecorder struct{}

func (noopRecorder) Record(domain.AuditEvent) {}

// toUserDetail projects a user onto its external shape.
func toUserDetail(u *domain.User) *ports.UserDetail {
	return &ports.UserDetail{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
		Roles:     u.RoleNames(),
	}
}
