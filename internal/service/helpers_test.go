package service

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"site-inspector/internal/model"
	"site-inspector/internal/repository/memrepo"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testTokenConfig() TokenConfig {
	return TokenConfig{
		Secret:     testSecret,
		Issuer:     "site-inspector",
		Audience:   "site-inspector-api",
		AccessTTL:  time.Hour,
		RefreshTTL: 7 * 24 * time.Hour,
	}
}

func seedUser(t *testing.T, users *memrepo.Users, email string, password string, role model.Role) model.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	u := model.User{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     email[:len(email)-len("@example.com")],
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, users.Create(t.Context(), u))
	return u
}
