package ports

import (
	"context"
	"time"

	"github.com/backendauth/identity-service/internal/core/domain"
)

// UserDetail is the external projection of a user. It never carries the
// password hash.
type UserDetail struct {
	ID        int64
	Username  string
	Email     string
	FirstName string
	LastName  string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
	Roles     []string
}

// CreateUserInput carries everything needed to create a user.
type CreateUserInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
	IsActive  bool
	Roles     domain.RoleInput
}

// UpdateUserInput is a partial update: nil fields are left unchanged.
// A non-nil RoleIDs, even empty, replaces every existing assignment.
type UpdateUserInput struct {
	Username  *string
	Email     *string
	FirstName *string
	LastName  *string
	IsActive  *bool
	RoleIDs   *[]domain.RoleID
}

// UserService is the user directory consumed by the transport layer.
type UserService interface {
	List(ctx context.Context) ([]*UserDetail, error)
	Get(ctx context.Context, id int64) (*UserDetail, error)
	Create(ctx context.Context, in CreateUserInput) (*UserDetail, error)
	Update(ctx context.Context, id int64, in UpdateUserInput) (*UserDetail, error)
	Delete(ctx context.Context, id int64) error
	Roles() []domain.Role
}
