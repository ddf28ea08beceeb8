package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/backendauth/identity-service/internal/core/domain"
)

const userColumns = `id, username, email, password_hash, first_name, last_name, is_active, created_at, updated_at`

const (
	selectUsersSQL      = `SELECT ` + userColumns + ` FROM users ORDER BY id`
	selectUserByIDSQL   = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	selectUserByMailSQL = `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	selectAllRolesSQL  = `SELECT user_id, role_id, assigned_at FROM user_roles ORDER BY user_id, id`
	selectUserRolesSQL = `SELECT role_id, assigned_at FROM user_roles WHERE user_id = $1 ORDER BY id`

	existsUsernameSQL = `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 AND id <> $2)`
	existsEmailSQL    = `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 AND id <> $2)`

	insertUserSQL = `INSERT INTO users (username, email, password_hash, first_name, last_name, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	insertUserRoleSQL  = `INSERT INTO user_roles (user_id, role_id, assigned_at) VALUES ($1, $2, $3)`
	updateUserSQL      = `UPDATE users SET username = $2, email = $3, first_name = $4, last_name = $5, is_active = $6, updated_at = $7 WHERE id = $1`
	deleteUserRolesSQL = `DELETE FROM user_roles WHERE user_id = $1`
	deleteUserSQL      = `DELETE FROM users WHERE id = $1`
)

// UserRepository implements ports.UserRepository on PostgreSQL.
type UserRepository struct {
	db DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row pgx.Row) (*domain.User, error) {
	u := &domain.User{}
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash,
		&u.FirstName, &u.LastName, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Roles = []domain.RoleAssignment{}
	return u, nil
}

// List returns every user with its assignments, ordered by id.
func (r *UserRepository) List(ctx context.Context) ([]*domain.User, error) {
	rows, err := r.db.Query(ctx, selectUsersSQL)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	var users []*domain.User
	byID := make(map[int64]*domain.User)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
		byID[u.ID] = u
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	roleRows, err := r.db.Query(ctx, selectAllRolesSQL)
	if err != nil {
		return nil, fmt.Errorf("list user roles: %w", err)
	}
	defer roleRows.Close()
	for roleRows.Next() {
		var (
			userID, roleID int64
			assignedAt     time.Time
		)
		if err := roleRows.Scan(&userID, &roleID, &assignedAt); err != nil {
			return nil, fmt.Errorf("scan user role: %w", err)
		}
		if u, ok := byID[userID]; ok {
			u.Roles = append(u.Roles, domain.RoleAssignment{RoleID: domain.RoleID(roleID), AssignedAt: assignedAt})
		}
	}
	if err := roleRows.Err(); err != nil {
		return nil, fmt.Errorf("list user roles: %w", err)
	}
	return users, nil
}

// FindByID returns domain.ErrUserNotFound when no user has id.
func (r *UserRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.findOne(ctx, selectUserByIDSQL, id)
}

// FindByEmail returns domain.ErrUserNotFound when no user has email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, selectUserByMailSQL, email)
}

func (r *UserRepository) findOne(ctx context.Context, sql string, arg any) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, sql, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if err := r.loadRoles(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (r *UserRepository) loadRoles(ctx context.Context, u *domain.User) error {
	rows, err := r.db.Query(ctx, selectUserRolesSQL, u.ID)
	if err != nil {
		return fmt.Errorf("load user roles: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			roleID     int64
			assignedAt time.Time
		)
		if err := rows.Scan(&roleID, &assignedAt); err != nil {
			return fmt.Errorf("scan user role: %w", err)
		}
		u.Roles = append(u.Roles, domain.RoleAssignment{RoleID: domain.RoleID(roleID), AssignedAt: assignedAt})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load user roles: %w", err)
	}
	return nil
}

func (r *UserRepository) ExistsByUsername(ctx context.Context, username string, excludeID int64) (bool, error) {
	return r.exists(ctx, existsUsernameSQL, username, excludeID)
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string, excludeID int64) (bool, error) {
	return r.exists(ctx, existsEmailSQL, email, excludeID)
}

func (r *UserRepository) exists(ctx context.Context, sql, value string, excludeID int64) (bool, error) {
	var found bool
	if err := r.db.QueryRow(ctx, sql, value, excludeID).Scan(&found); err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return found, nil
}

// Create inserts the user and its assignments in one transaction.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create user: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id int64
	err = tx.QueryRow(ctx, insertUserSQL,
		user.Username, user.Email, user.PasswordHash, user.FirstName, user.LastName,
		user.IsActive, user.CreatedAt, user.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return wrapWrite("insert user", err)
	}
	if err := insertRoles(ctx, tx, id, user.Roles); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return wrapWrite("commit create user", err)
	}
	user.ID = id
	return nil
}

// Update writes the scalar fields and, when replaceRoles is set, replaces
// every assignment in the same transaction.
func (r *UserRepository) Update(ctx context.Context, user *domain.User, replaceRoles bool) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin update user: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, updateUserSQL,
		user.ID, user.Username, user.Email, user.FirstName, user.LastName,
		user.IsActive, user.UpdatedAt,
	)
	if err != nil {
		return wrapWrite("update user", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}

	if replaceRoles {
		if _, err := tx.Exec(ctx, deleteUserRolesSQL, user.ID); err != nil {
			return fmt.Errorf("clear user roles: %w", err)
		}
		if err := insertRoles(ctx, tx, user.ID, user.Roles); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return wrapWrite("commit update user", err)
	}
	return nil
}

func insertRoles(ctx context.Context, tx pgx.Tx, userID int64, roles []domain.RoleAssignment) error {
	for _, a := range roles {
		if _, err := tx.Exec(ctx, insertUserRoleSQL, userID, int64(a.RoleID), a.AssignedAt); err != nil {
			return wrapWrite("insert user role", err)
		}
	}
	return nil
}

// Delete removes the user; assignments go with it through ON DELETE CASCADE.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, deleteUserSQL, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func wrapWrite(op string, err error) error {
	if mapped := mapError(err); errors.Is(mapped, domain.ErrConflict) {
		return mapped
	}
	return fmt.Errorf("%s: %w", op, err)
}
