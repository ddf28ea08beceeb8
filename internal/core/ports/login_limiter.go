package ports

import "context"

// LoginLimiter throttles repeated failed logins for the same email.
type LoginLimiter interface {
	// Blocked reports whether further attempts for email must be refused.
	Blocked(ctx context.Context, email string) (bool, error)
	RegisterFailure(ctx context.Context, email string) error
	Reset(ctx context.Context, email string) error
}
