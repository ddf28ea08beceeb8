package ports

import (
	"context"

	"github.com/backendauth/identity-service/internal/core/domain"
)

// UserRepository persists users together with their role assignments.
//
// Implementations map unique-constraint violations on username or email to
// domain.ErrConflict and missing rows to domain.ErrUserNotFound.
type UserRepository interface {
	List(ctx context.Context) ([]*domain.User, error)
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	// ExistsByUsername reports whether a user other than excludeID holds
	// username. Pass 0 to consider every user.
	ExistsByUsername(ctx context.Context, username string, excludeID int64) (bool, error)
	ExistsByEmail(ctx context.Context, email string, excludeID int64) (bool, error)
	// Create stores user and its assignments atomically and sets user.ID.
	Create(ctx context.Context, user *domain.User) error
	// Update writes the user's scalar fields. When replaceRoles is true the
	// stored assignments are replaced by user.Roles in the same transaction.
	Update(ctx context.Context, user *domain.User, replaceRoles bool) error
	// Delete removes the user and its assignments.
	Delete(ctx context.Context, id int64) error
}
