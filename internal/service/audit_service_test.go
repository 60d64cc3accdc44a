package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"site-inspector/internal/event"
	"site-inspector/internal/model"
	"site-inspector/internal/repository/memrepo"
	"site-inspector/pkg/apierror"
)

func TestAuditService_PersistsBusEvents(t *testing.T) {
	bus := event.NewBus()
	store := memrepo.NewAudit()
	svc := NewAuditService(store, bus)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()

	// Run subscribes asynchronously; publish until the entry lands.
	e := event.New(event.TypeLoginFailed, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)).Failed("invalid credentials")
	e.ActorID = "user-1"
	e.ActorIP = "10.0.0.1"
	e.Details = map[string]any{"reason": "bad_password"}

	require.Eventually(t, func() bool {
		bus.Publish(e)
		return len(store.Entries()) > 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	entry := store.Entries()[0]
	assert.Equal(t, "auth.login_failed", entry.Action)
	assert.Equal(t, event.StatusFailure, entry.Status)
	assert.Equal(t, "user-1", entry.Actor.UserID)
	assert.Equal(t, "10.0.0.1", entry.Actor.IP)
	assert.Equal(t, "2026-03-01T09:00:00Z", entry.OccurredAt)
	assert.Equal(t, "bad_password", entry.Details["reason"])
}

func TestAuditService_Query(t *testing.T) {
	store := memrepo.NewAudit()
	svc := NewAuditService(store, event.NopBus{})
	ctx := context.Background()

	for _, typ := range []event.Type{event.TypeLoginSucceeded, event.TypeLogout, event.TypeLoginSucceeded} {
		require.NoError(t, store.Log(ctx, EntryFromEvent(event.New(typ, time.Now()))))
	}

	items, meta, err := svc.Query(ctx, model.AuditQuery{Action: "auth.login", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, model.Meta{Page: 1, Limit: 1, Total: 2, TotalPages: 2}, meta)

	_, _, err = svc.Query(ctx, model.AuditQuery{From: "yesterday"})
	var apiErr *apierror.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.HTTPStatus)
}
