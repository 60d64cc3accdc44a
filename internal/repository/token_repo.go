package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"site-inspector/internal/model"
)

const tokenColumns = `id, user_id, token_hash, expires_at, is_revoked, revoked_at, revoked_by,
		        created_by_ip, user_agent, created_at`

type TokenRepository struct {
	pool *pgxpool.Pool
}

func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{pool: pool}
}

func (r *TokenRepository) Create(ctx context.Context, t model.RefreshToken) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO refresh_tokens
		 (id, user_id, token_hash, expires_at, is_revoked, created_by_ip, user_agent, created_at)
		 VALUES ($1, $2, $3, $4, false, $5, $6, $7)`,
		t.ID, t.UserID, t.TokenHash, t.ExpiresAt, t.CreatedByIP, t.UserAgent, t.CreatedAt)
	if err != nil {
		return storeErr("create refresh token", err)
	}
	return nil
}

func (r *TokenRepository) FindByHash(ctx context.Context, tokenHash string) (model.RefreshToken, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+tokenColumns+` FROM refresh_tokens WHERE token_hash = $1`, tokenHash)

	t, err := scanToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.RefreshToken{}, model.ErrTokenNotFound
	}
	if err != nil {
		return model.RefreshToken{}, storeErr("find refresh token", err)
	}
	return t, nil
}

// RevokeActive is a single conditional UPDATE, so two concurrent rotations of
// the same token cannot both match the row.
func (r *TokenRepository) RevokeActive(ctx context.Context, tokenHash string, now time.Time, actor string) (model.RefreshToken, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE refresh_tokens
		 SET is_revoked = true, revoked_at = $2, revoked_by = $3
		 WHERE token_hash = $1 AND NOT is_revoked AND expires_at > $2
		 RETURNING `+tokenColumns,
		tokenHash, now, actor)

	t, err := scanToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.RefreshToken{}, model.ErrTokenNotFound
	}
	if err != nil {
		return model.RefreshToken{}, storeErr("revoke refresh token", err)
	}
	return t, nil
}

func (r *TokenRepository) RevokeAllForUser(ctx context.Context, userID string, now time.Time, actor string) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE refresh_tokens
		 SET is_revoked = true, revoked_at = $2, revoked_by = $3
		 WHERE user_id = $1 AND NOT is_revoked`,
		userID, now, actor)
	if err != nil {
		return 0, storeErr("revoke all refresh tokens", err)
	}
	return tag.RowsAffected(), nil
}

func (r *TokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, storeErr("delete expired refresh tokens", err)
	}
	return tag.RowsAffected(), nil
}

func scanToken(row pgx.Row) (model.RefreshToken, error) {
	var t model.RefreshToken
	err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.IsRevoked, &t.RevokedAt,
		&t.RevokedBy, &t.CreatedByIP, &t.UserAgent, &t.CreatedAt)
	return t, err
}
