package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"site-inspector/internal/model"
)

// TokenStore persists refresh-token rows. Only hashes reach it.
type TokenStore interface {
	Create(ctx context.Context, token model.RefreshToken) error
	FindByHash(ctx context.Context, tokenHash string) (model.RefreshToken, error)
	// RevokeActive atomically revokes the row with tokenHash if it is still
	// usable at now and returns it. Concurrent callers for the same hash see
	// exactly one success; the rest get model.ErrTokenNotFound.
	RevokeActive(ctx context.Context, tokenHash string, now time.Time, actor string) (model.RefreshToken, error)
	RevokeAllForUser(ctx context.Context, userID string, now time.Time, actor string) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type UserStore interface {
	FindByID(ctx context.Context, id string) (model.User, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, u model.User) error
	UpdatePassword(ctx context.Context, userID string, passwordHash string, now time.Time) error
	IncrementFailedAttempts(ctx context.Context, userID string, now time.Time) (int, error)
	LockAccount(ctx context.Context, userID string, until time.Time, now time.Time) error
	ResetFailedAttempts(ctx context.Context, userID string, now time.Time) error
	SetActive(ctx context.Context, userID string, active bool, now time.Time) error
	CountActiveAdmins(ctx context.Context) (int, error)
}

type SiteStore interface {
	GetByID(ctx context.Context, id string) (model.Site, error)
	Create(ctx context.Context, site model.Site) error
}

type VisitStore interface {
	GetByID(ctx context.Context, id string) (model.Visit, error)
	Create(ctx context.Context, visit model.Visit) error
	UpdateNotes(ctx context.Context, id string, notes string, now time.Time) (model.Visit, error)
	// UpdateStatus applies change only while the visit is still in change.From.
	UpdateStatus(ctx context.Context, change model.StatusChange) (model.Visit, error)
	ExistsForEngineerAtSite(ctx context.Context, engineerID string, siteID string) (bool, error)
}

// ResetTokenStore keeps single-use password-reset tokens keyed by hash.
type ResetTokenStore interface {
	Save(ctx context.Context, tokenHash string, userID string, ttl time.Duration) error
	// Consume returns the owner and deletes the token in one step.
	Consume(ctx context.Context, tokenHash string) (string, error)
}

type AuditStore interface {
	Log(ctx context.Context, entry model.AuditEntry) error
	Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error)
}

const uniqueViolation = "23505"

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(model.ErrStoreUnavailable, err))
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
