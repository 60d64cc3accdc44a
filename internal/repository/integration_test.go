//go:build integration

package repository

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"site-inspector/internal/database"
	"site-inspector/internal/model"
)

// setupPostgres starts a throwaway Postgres and applies the embedded schema.
func setupPostgres(t *testing.T) *database.DB {
	t.Helper()

	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("site_inspector_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "failed to start postgres container")

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := database.New(ctx, database.Options{URL: connStr, MaxConns: 40, MinConns: 1})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.EnsureSchema(ctx))
	// A second call sees every table and is a no-op.
	require.NoError(t, db.EnsureSchema(ctx))
	return db
}

func createUser(t *testing.T, repo *UserRepository, email string, role model.Role) model.User {
	t.Helper()

	now := time.Now().UTC().Truncate(time.Microsecond)
	u := model.User{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     email[:len(email)-len("@example.com")],
		PasswordHash: "$2a$04$placeholder",
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, repo.Create(context.Background(), u))
	return u
}

func TestPostgresRepositories(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()

	users := NewUserRepository(db.Pool)
	tokens := NewTokenRepository(db.Pool)
	sites := NewSiteRepository(db.Pool)
	visits := NewVisitRepository(db.Pool)
	audit := NewAuditRepository(db.Pool)

	alice := createUser(t, users, "alice@example.com", model.RoleEngineer)
	admin := createUser(t, users, "root@example.com", model.RoleAdmin)

	t.Run("users", func(t *testing.T) {
		dup := alice
		dup.ID = uuid.NewString()
		dup.Email = "ALICE@example.com"
		dup.Username = "alice-two"
		assert.ErrorIs(t, users.Create(ctx, dup), model.ErrUserAlreadyExists)

		found, err := users.FindByEmail(ctx, "Alice@Example.com")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, found.ID)

		exists, err := users.ExistsByUsername(ctx, "ALICE")
		require.NoError(t, err)
		assert.True(t, exists)

		_, err = users.FindByID(ctx, uuid.NewString())
		assert.ErrorIs(t, err, model.ErrUserNotFound)

		now := time.Now().UTC()
		n, err := users.IncrementFailedAttempts(ctx, alice.ID, now)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		n, err = users.IncrementFailedAttempts(ctx, alice.ID, now)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		require.NoError(t, users.LockAccount(ctx, alice.ID, now.Add(time.Hour), now))
		locked, err := users.FindByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.True(t, locked.IsLocked(now))

		require.NoError(t, users.UpdatePassword(ctx, alice.ID, "$2a$04$other", now))
		cleared, err := users.FindByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.False(t, cleared.IsLocked(now))
		assert.Zero(t, cleared.FailedLoginAttempts)

		admins, err := users.CountActiveAdmins(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, admins)

		require.NoError(t, users.SetActive(ctx, admin.ID, false, now))
		admins, err = users.CountActiveAdmins(ctx)
		require.NoError(t, err)
		assert.Zero(t, admins)
		require.NoError(t, users.SetActive(ctx, admin.ID, true, now))
	})

	t.Run("refresh tokens", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Microsecond)
		row := model.RefreshToken{
			ID:        uuid.NewString(),
			UserID:    alice.ID,
			TokenHash: uuid.NewString(),
			ExpiresAt: now.Add(time.Hour),
			CreatedAt: now,
		}
		require.NoError(t, tokens.Create(ctx, row))

		revoked, err := tokens.RevokeActive(ctx, row.TokenHash, now, "rotation")
		require.NoError(t, err)
		assert.True(t, revoked.IsRevoked)
		assert.Equal(t, "rotation", revoked.RevokedBy)
		require.NotNil(t, revoked.RevokedAt)

		_, err = tokens.RevokeActive(ctx, row.TokenHash, now, "rotation")
		assert.ErrorIs(t, err, model.ErrTokenNotFound)

		boundary := model.RefreshToken{
			ID:        uuid.NewString(),
			UserID:    alice.ID,
			TokenHash: uuid.NewString(),
			ExpiresAt: now,
			CreatedAt: now.Add(-time.Hour),
		}
		require.NoError(t, tokens.Create(ctx, boundary))
		_, err = tokens.RevokeActive(ctx, boundary.TokenHash, now, "rotation")
		assert.ErrorIs(t, err, model.ErrTokenNotFound, "a token expiring exactly now is not usable")

		deleted, err := tokens.DeleteExpired(ctx, now)
		require.NoError(t, err)
		assert.EqualValues(t, 1, deleted)

		for i := 0; i < 3; i++ {
			require.NoError(t, tokens.Create(ctx, model.RefreshToken{
				ID: uuid.NewString(), UserID: admin.ID, TokenHash: uuid.NewString(),
				ExpiresAt: now.Add(time.Hour), CreatedAt: now,
			}))
		}
		n, err := tokens.RevokeAllForUser(ctx, admin.ID, now, admin.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 3, n)
	})

	t.Run("concurrent rotation has one winner", func(t *testing.T) {
		now := time.Now().UTC()
		row := model.RefreshToken{
			ID: uuid.NewString(), UserID: alice.ID, TokenHash: uuid.NewString(),
			ExpiresAt: now.Add(time.Hour), CreatedAt: now,
		}
		require.NoError(t, tokens.Create(ctx, row))

		var wins, misses atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := tokens.RevokeActive(ctx, row.TokenHash, now, "rotation")
				switch {
				case err == nil:
					wins.Add(1)
				case errors.Is(err, model.ErrTokenNotFound):
					misses.Add(1)
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		assert.EqualValues(t, 1, wins.Load())
		assert.EqualValues(t, 15, misses.Load())
	})

	t.Run("sites and visits", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Microsecond)
		site := model.Site{ID: uuid.NewString(), Name: "Depot", CreatedAt: now}
		require.NoError(t, sites.Create(ctx, site))

		_, err := sites.GetByID(ctx, uuid.NewString())
		assert.ErrorIs(t, err, model.ErrSiteNotFound)

		visit := model.Visit{
			ID: uuid.NewString(), SiteID: site.ID, EngineerID: alice.ID, Status: model.VisitPending,
			VisitedAt: now, CreatedAt: now, UpdatedAt: now,
		}
		require.NoError(t, visits.Create(ctx, visit))

		ok, err := visits.ExistsForEngineerAtSite(ctx, alice.ID, site.ID)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = visits.ExistsForEngineerAtSite(ctx, admin.ID, site.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		edited, err := visits.UpdateNotes(ctx, visit.ID, "checked", now)
		require.NoError(t, err)
		assert.Equal(t, "checked", edited.Notes)

		change := model.StatusChange{
			VisitID: visit.ID, From: model.VisitPending, To: model.VisitApproved,
			ReviewerID: admin.ID, Note: "fine", At: now,
		}
		approved, err := visits.UpdateStatus(ctx, change)
		require.NoError(t, err)
		assert.Equal(t, model.VisitApproved, approved.Status)
		assert.Equal(t, admin.ID, approved.ReviewedBy)

		_, err = visits.UpdateStatus(ctx, change)
		assert.ErrorIs(t, err, model.ErrInvalidTransition)
		_, err = visits.UpdateNotes(ctx, visit.ID, "late edit", now)
		assert.ErrorIs(t, err, model.ErrInvalidTransition)

		change.VisitID = uuid.NewString()
		_, err = visits.UpdateStatus(ctx, change)
		assert.ErrorIs(t, err, model.ErrVisitNotFound)
	})

	t.Run("audit", func(t *testing.T) {
		base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		for i, action := range []string{"auth.login_succeeded", "auth.login_failed", "auth.login_succeeded"} {
			require.NoError(t, audit.Log(ctx, model.AuditEntry{
				Action:     action,
				OccurredAt: base.Add(time.Duration(i) * time.Minute).Format(time.RFC3339Nano),
				Actor:      model.AuditActor{UserID: alice.ID, Role: model.RoleEngineer, IP: "10.0.0.1"},
				Status:     "success",
				Details:    map[string]any{"n": i},
			}))
		}

		items, meta, err := audit.Query(ctx, NormalizeAuditQuery(model.AuditQuery{Action: "auth.login_succeeded"}))
		require.NoError(t, err)
		assert.Len(t, items, 2)
		assert.Equal(t, 2, meta.Total)

		items, _, err = audit.Query(ctx, NormalizeAuditQuery(model.AuditQuery{
			From: base.Add(30 * time.Second).Format(time.RFC3339),
			To:   base.Add(90 * time.Second).Format(time.RFC3339),
		}))
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "auth.login_failed", items[0].Action)
	})

	t.Run("store failures are wrapped", func(t *testing.T) {
		canceled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := users.FindByID(canceled, alice.ID)
		assert.ErrorIs(t, err, model.ErrStoreUnavailable)
	})
}
