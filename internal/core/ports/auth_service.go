package ports

import (
	"context"
	"time"
)

// LoginResult is returned on a successful login.
type LoginResult struct {
	Token     string
	User      *UserDetail
	ExpiresAt time.Time
}

// AuthService answers login and token validation requests.
type AuthService interface {
	// Login returns domain.ErrInvalidCredentials for an unknown email, an
	// inactive account and a wrong password alike.
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	Validate(token string) bool
}
