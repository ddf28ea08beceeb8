package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/backendauth/identity-service/internal/core/domain"
	"github.com/backendauth/identity-service/internal/core/ports"
	"github.com/backendauth/identity-service/internal/pkg/metrics"
	"github.com/backendauth/identity-service/internal/pkg/token"
)

const defaultTokenTTL = time.Hour

// AuthService implements login and token validation.
type AuthService struct {
	users    ports.UserRepository
	hasher   PasswordHasher
	tokens   TokenIssuer
	limiter  ports.LoginLimiter
	audit    ports.AuditRecorder
	tokenTTL time.Duration
	log      zerolog.Logger

	// dummyHash is compared against on the unknown-email path so every
	// failure branch costs one bcrypt comparison.
	dummyHash string
}

// NewAuthService returns an AuthService. limiter and audit may be nil.
func NewAuthService(
	users ports.UserRepository,
	hasher PasswordHasher,
	tokens TokenIssuer,
	limiter ports.LoginLimiter,
	audit ports.AuditRecorder,
	tokenTTL time.Duration,
	log zerolog.Logger,
) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = defaultTokenTTL
	}
	if limiter == nil {
		limiter = noopLimiter{}
	}
	if audit == nil {
		audit = noopRecorder{}
	}
	dummy, err := hasher.Hash("no-such-account")
	if err != nil {
		log.Warn().Err(err).Msg("could not prepare timing hash")
	}
	return &AuthService{
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		limiter:   limiter,
		audit:     audit,
		tokenTTL:  tokenTTL,
		log:       log,
		dummyHash: dummy,
	}
}

// Login verifies email/password and issues a token carrying the user's
// role names. Unknown email, inactive account and wrong password all yield
// domain.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (*ports.LoginResult, error) {
	blocked, err := s.limiter.Blocked(ctx, email)
	if err != nil {
		s.log.Warn().Err(err).Msg("login limiter check failed, continuing")
	} else if blocked {
		metrics.LoginAttemptsTotal.WithLabelValues("throttled").Inc()
		return nil, domain.ErrTooManyAttempts
	}

	user, err := s.users.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		s.hasher.Verify(password, s.dummyHash)
		return nil, s.fail(ctx, email, 0)
	case err != nil:
		metrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("login: find user: %w", err)
	}

	if !user.IsActive {
		s.hasher.Verify(password, user.PasswordHash)
		return nil, s.fail(ctx, email, user.ID)
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, s.fail(ctx, email, user.ID)
	}

	signed, expiresAt, err := s.tokens.Issue(token.Subject{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		Roles:    user.RoleNames(),
	}, s.tokenTTL)
	if err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("login: %w", err)
	}

	if err := s.limiter.Reset(ctx, email); err != nil {
		s.log.Warn().Err(err).Int64("user_id", user.ID).Msg("failed to reset login limiter")
	}
	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	s.audit.Record(domain.AuditEvent{
		Action:     domain.AuditLoginSucceeded,
		UserID:     user.ID,
		Subject:    email,
		OccurredAt: time.Now().UTC(),
	})
	s.log.Info().Int64("user_id", user.ID).Msg("login succeeded")

	return &ports.LoginResult{
		Token:     signed,
		User:      toUserDetail(user),
		ExpiresAt: expiresAt,
	}, nil
}

// Validate reports whether raw is a currently valid token.
func (s *AuthService) Validate(raw string) bool {
	return s.tokens.Validate(raw)
}

// fail records a failed attempt and returns the uniform failure.
// userID is only used for the audit trail, never returned to the caller.
func (s *AuthService) fail(ctx context.Context, email string, userID int64) error {
	if err := s.limiter.RegisterFailure(ctx, email); err != nil {
		s.log.Warn().Err(err).Msg("failed to register login failure")
	}
	metrics.LoginAttemptsTotal.WithLabelValues("failure").Inc()
	s.audit.Record(domain.AuditEvent{
		Action:     domain.AuditLoginFailed,
		UserID:     userID,
		Subject:    email,
		OccurredAt: time.Now().UTC(),
	})
	s.log.Warn().Msg("login failed")
	return domain.ErrInvalidCredentials
}
