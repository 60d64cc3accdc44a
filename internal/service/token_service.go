package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"site-inspector/internal/metrics"
	"site-inspector/internal/model"
	"site-inspector/internal/repository"
)

const (
	tokenTypeAccess    = "access"
	refreshSecretBytes = 32

	// ActorRotation marks rows revoked by a successful refresh.
	ActorRotation = "rotation"
	// ActorSystem marks rows revoked by the service itself.
	ActorSystem = "system"
)

type TokenConfig struct {
	Secret     string
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type TokenOption func(*TokenService)

// WithClock replaces time.Now; expiry checks and SQL predicates both use it.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		if now != nil {
			s.now = now
		}
	}
}

func WithTokenMetrics(m *metrics.Metrics) TokenOption {
	return func(s *TokenService) {
		s.metrics = m
	}
}

type TokenService struct {
	tokens  repository.TokenStore
	users   repository.UserStore
	cfg     TokenConfig
	secret  []byte
	now     func() time.Time
	metrics *metrics.Metrics
}

type accessClaims struct {
	Role model.Role `json:"role"`
	Type string     `json:"typ"`
	jwt.RegisteredClaims
}

func NewTokenService(tokens repository.TokenStore, users repository.UserStore, cfg TokenConfig, opts ...TokenOption) *TokenService {
	s := &TokenService{
		tokens: tokens,
		users:  users,
		cfg:    cfg,
		secret: []byte(cfg.Secret),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now is the service clock in UTC.
func (s *TokenService) Now() time.Time {
	return s.now().UTC()
}

// IssueTokens mints an access token and a fresh refresh secret for user. Only
// the hash of the secret is persisted; the raw value is returned once.
func (s *TokenService) IssueTokens(ctx context.Context, user model.User, client model.ClientInfo) (model.TokenPair, error) {
	now := s.Now()

	access, accessExp, err := s.signAccessToken(user, now)
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	raw, err := newRefreshSecret()
	if err != nil {
		return model.TokenPair{}, fmt.Errorf("generate refresh token: %w", err)
	}

	row := model.RefreshToken{
		ID:          uuid.NewString(),
		UserID:      user.ID,
		TokenHash:   HashToken(raw),
		ExpiresAt:   now.Add(s.cfg.RefreshTTL),
		CreatedByIP: client.IP,
		UserAgent:   truncate(client.UserAgent, 512),
		CreatedAt:   now,
	}
	if err := s.tokens.Create(ctx, row); err != nil {
		return model.TokenPair{}, err
	}

	s.metrics.TokenIssued()

	return model.TokenPair{
		AccessToken:      access,
		RefreshToken:     raw,
		TokenType:        "Bearer",
		ExpiresIn:        int64(s.cfg.AccessTTL.Seconds()),
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: row.ExpiresAt,
		User:             user.Public(),
	}, nil
}

// ValidateAndRotate consumes raw and returns a brand-new pair. Any failure to
// match a usable row is model.ErrInvalidToken; callers must re-authenticate.
func (s *TokenService) ValidateAndRotate(ctx context.Context, raw string, client model.ClientInfo) (model.TokenPair, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		s.metrics.Rotation("invalid")
		return model.TokenPair{}, model.ErrInvalidToken
	}

	old, err := s.tokens.RevokeActive(ctx, HashToken(raw), s.Now(), ActorRotation)
	if errors.Is(err, model.ErrTokenNotFound) {
		s.metrics.Rotation("invalid")
		return model.TokenPair{}, model.ErrInvalidToken
	}
	if err != nil {
		s.metrics.Rotation("error")
		return model.TokenPair{}, err
	}

	user, err := s.users.FindByID(ctx, old.UserID)
	if errors.Is(err, model.ErrUserNotFound) {
		s.metrics.Rotation("invalid")
		return model.TokenPair{}, model.ErrInvalidToken
	}
	if err != nil {
		s.metrics.Rotation("error")
		return model.TokenPair{}, err
	}

	if !user.IsActive {
		slog.Warn("refresh rejected for inactive user", "user_id", user.ID)
		s.metrics.Rotation("invalid")
		return model.TokenPair{}, model.ErrInvalidToken
	}

	pair, err := s.IssueTokens(ctx, user, client)
	if err != nil {
		s.metrics.Rotation("error")
		return model.TokenPair{}, err
	}

	s.metrics.Rotation("ok")
	return pair, nil
}

// Revoke reports false when raw matched no active row.
func (s *TokenService) Revoke(ctx context.Context, raw string, actor string) (bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, nil
	}

	_, err := s.tokens.RevokeActive(ctx, HashToken(raw), s.Now(), actor)
	if errors.Is(err, model.ErrTokenNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	s.metrics.Revoked("single", 1)
	return true, nil
}

func (s *TokenService) RevokeAllForUser(ctx context.Context, userID string, actor string) (int64, error) {
	n, err := s.tokens.RevokeAllForUser(ctx, userID, s.Now(), actor)
	if err != nil {
		return 0, err
	}

	s.metrics.Revoked("all", n)
	return n, nil
}

// CleanupExpired deletes rows whose expiry is at or before now.
func (s *TokenService) CleanupExpired(ctx context.Context) (int64, error) {
	n, err := s.tokens.DeleteExpired(ctx, s.Now())
	if err != nil {
		return 0, err
	}

	s.metrics.ExpiredCleaned(n)
	return n, nil
}

func (s *TokenService) ValidateAccessToken(token string) (*model.AuthClaims, error) {
	claims := &accessClaims{}
	parsed, err := jwt.ParseWithClaims(strings.TrimSpace(token), claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithAudience(s.cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.Now),
	)
	if err != nil || !parsed.Valid {
		return nil, model.ErrInvalidToken
	}

	if claims.Type != tokenTypeAccess || claims.Subject == "" || !claims.Role.Valid() {
		return nil, model.ErrInvalidToken
	}

	return &model.AuthClaims{
		UserID:  claims.Subject,
		Role:    claims.Role,
		Type:    claims.Type,
		TokenID: claims.ID,
	}, nil
}

func (s *TokenService) signAccessToken(user model.User, now time.Time) (string, time.Time, error) {
	exp := now.Add(s.cfg.AccessTTL)
	claims := accessClaims{
		Role: user.Role,
		Type: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    s.cfg.Issuer,
			Audience:  jwt.ClaimStrings{s.cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// HashToken is the one-way digest stored in place of a raw token.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func newRefreshSecret() (string, error) {
	buf := make([]byte, refreshSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// truncate caps s at n bytes without splitting a character. Invalid byte
// sequences are dropped first because TEXT columns reject them.
func truncate(s string, n int) string {
	s = strings.ToValidUTF8(s, "")
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
