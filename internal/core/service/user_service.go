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
)

// UserService implements the user directory on top of a UserRepository.
type UserService struct {
	repo   ports.UserRepository
	hasher PasswordHasher
	audit  ports.AuditRecorder
	log    zerolog.Logger
	now    func() time.Time
}

// NewUserService returns a UserService. A nil audit recorder disables the
// audit trail.
func NewUserService(repo ports.UserRepository, hasher PasswordHasher, audit ports.AuditRecorder, log zerolog.Logger) *UserService {
	if audit == nil {
		audit = noopRecorder{}
	}
	return &UserService{repo: repo, hasher: hasher, audit: audit, log: log, now: time.Now}
}

func (s *UserService) List(ctx context.Context) ([]*ports.UserDetail, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]*ports.UserDetail, 0, len(users))
	for _, u := range users {
		out = append(out, toUserDetail(u))
	}
	return out, nil
}

func (s *UserService) Get(ctx context.Context, id int64) (*ports.UserDetail, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toUserDetail(user), nil
}

// Create stores a new user. Roles are resolved from in.Roles; ids missing
// from the catalog are skipped.
func (s *UserService) Create(ctx context.Context, in ports.CreateUserInput) (*ports.UserDetail, error) {
	if err := s.ensureAvailable(ctx, in.Username, in.Email, 0); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user := &domain.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		IsActive:     in.IsActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.assignRoles(user, domain.ResolveRoles(in.Roles), now)

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	metrics.UserMutationsTotal.WithLabelValues("create").Inc()
	s.record(domain.AuditUserCreated, user.ID, user.Username, now)
	s.log.Info().Int64("user_id", user.ID).Str("username", user.Username).Strs("roles", user.RoleNames()).Msg("user created")

	return toUserDetail(user), nil
}

// Update applies a partial update. Empty username or email values are
// treated as absent.
func (s *UserService) Update(ctx context.Context, id int64, in ports.UpdateUserInput) (*ports.UserDetail, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var username, email string
	if in.Username != nil && *in.Username != "" && *in.Username != user.Username {
		username = *in.Username
	}
	if in.Email != nil && *in.Email != "" && *in.Email != user.Email {
		email = *in.Email
	}
	if err := s.ensureAvailable(ctx, username, email, id); err != nil {
		return nil, err
	}
	if username != "" {
		user.Username = username
	}
	if email != "" {
		user.Email = email
	}
	if in.FirstName != nil {
		user.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		user.LastName = *in.LastName
	}
	if in.IsActive != nil {
		user.IsActive = *in.IsActive
	}

	now := s.now().UTC()
	user.UpdatedAt = now

	replaceRoles := in.RoleIDs != nil
	if replaceRoles {
		s.assignRoles(user, *in.RoleIDs, now)
	}

	if err := s.repo.Update(ctx, user, replaceRoles); err != nil {
		if errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update user %d: %w", id, err)
	}

	metrics.UserMutationsTotal.WithLabelValues("update").Inc()
	s.record(domain.AuditUserUpdated, user.ID, user.Username, now)
	s.log.Info().Int64("user_id", id).Bool("roles_replaced", replaceRoles).Msg("user updated")

	return toUserDetail(user), nil
}

// Delete removes the user and its role assignments. An unknown id yields
// domain.ErrUserNotFound.
func (s *UserService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("delete user %d: %w", id, err)
	}

	metrics.UserMutationsTotal.WithLabelValues("delete").Inc()
	s.record(domain.AuditUserDeleted, id, "", s.now().UTC())
	s.log.Info().Int64("user_id", id).Msg("user deleted")
	return nil
}

// Roles returns the fixed role catalog.
func (s *UserService) Roles() []domain.Role {
	return domain.Roles()
}

// ensureAvailable fails with ErrConflict when username or email is held by
// a user other than excludeID. Empty values are not checked.
func (s *UserService) ensureAvailable(ctx context.Context, username, email string, excludeID int64) error {
	if username != "" {
		taken, err := s.repo.ExistsByUsername(ctx, username, excludeID)
		if err != nil {
			return fmt.Errorf("check username: %w", err)
		}
		if taken {
			return domain.ErrConflict
		}
	}
	if email != "" {
		taken, err := s.repo.ExistsByEmail(ctx, email, excludeID)
		if err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if taken {
			return domain.ErrConflict
		}
	}
	return nil
}

func (s *UserService) assignRoles(user *domain.User, ids []domain.RoleID, at time.Time) {
	user.AssignRoles(ids, at)
	if dropped := len(distinctRoleIDs(ids)) - len(user.Roles); dropped > 0 {
		s.log.Warn().
			Str("username", user.Username).
			Interface("requested", ids).
			Interface("assigned", user.RoleIDs()).
			Msg("unknown role ids skipped")
	}
}

func (s *UserService) record(action domain.AuditAction, userID int64, subject string, at time.Time) {
	s.audit.Record(domain.AuditEvent{Action: action, UserID: userID, Subject: subject, OccurredAt: at})
}

func distinctRoleIDs(ids []domain.RoleID) map[domain.RoleID]struct{} {
	set := make(map[domain.RoleID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
