package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"site-inspector/internal/model"
)

const userColumns = `id, email, username, full_name, password_hash, role, is_active,
		        failed_login_attempts, locked_until, created_at, updated_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (model.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return r.scanOne(row, "find user by id")
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, strings.TrimSpace(email))
	return r.scanOne(row, "find user by email")
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE lower(email) = lower($1))`,
		strings.TrimSpace(email)).Scan(&exists)
	if err != nil {
		return false, storeErr("check email exists", err)
	}
	return exists, nil
}

func (r *UserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE lower(username) = lower($1))`,
		strings.TrimSpace(username)).Scan(&exists)
	if err != nil {
		return false, storeErr("check username exists", err)
	}
	return exists, nil
}

func (r *UserRepository) Create(ctx context.Context, u model.User) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, email, username, full_name, password_hash, role, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		u.ID, u.Email, u.Username, u.FullName, u.PasswordHash, u.Role, u.IsActive, u.CreatedAt, u.UpdatedAt)
	if isUniqueViolation(err) {
		return model.ErrUserAlreadyExists
	}
	if err != nil {
		return storeErr("create user", err)
	}
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, userID string, passwordHash string, now time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users
		 SET password_hash = $2, failed_login_attempts = 0, locked_until = NULL, updated_at = $3
		 WHERE id = $1`,
		userID, passwordHash, now)
	if err != nil {
		return storeErr("update password", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

// IncrementFailedAttempts returns the counter value after the increment.
func (r *UserRepository) IncrementFailedAttempts(ctx context.Context, userID string, now time.Time) (int, error) {
	var attempts int
	err := r.pool.QueryRow(ctx,
		`UPDATE users SET failed_login_attempts = failed_login_attempts + 1, updated_at = $2
		 WHERE id = $1
		 RETURNING failed_login_attempts`,
		userID, now).Scan(&attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, model.ErrUserNotFound
	}
	if err != nil {
		return 0, storeErr("increment failed attempts", err)
	}
	return attempts, nil
}

func (r *UserRepository) LockAccount(ctx context.Context, userID string, until time.Time, now time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET locked_until = $2, updated_at = $3 WHERE id = $1`,
		userID, until, now)
	if err != nil {
		return storeErr("lock account", err)
	}
	return nil
}

func (r *UserRepository) ResetFailedAttempts(ctx context.Context, userID string, now time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET failed_login_attempts = 0, locked_until = NULL, updated_at = $2
		 WHERE id = $1 AND (failed_login_attempts <> 0 OR locked_until IS NOT NULL)`,
		userID, now)
	if err != nil {
		return storeErr("reset failed attempts", err)
	}
	return nil
}

func (r *UserRepository) SetActive(ctx context.Context, userID string, active bool, now time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET is_active = $2, updated_at = $3 WHERE id = $1`,
		userID, active, now)
	if err != nil {
		return storeErr("set user active", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) CountActiveAdmins(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role = $1 AND is_active`, model.RoleAdmin).Scan(&count)
	if err != nil {
		return 0, storeErr("count active admins", err)
	}
	return count, nil
}

func (r *UserRepository) scanOne(row pgx.Row, op string) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.FullName, &u.PasswordHash, &u.Role, &u.IsActive,
		&u.FailedLoginAttempts, &u.LockedUntil, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, storeErr(op, err)
	}
	return u, nil
}
