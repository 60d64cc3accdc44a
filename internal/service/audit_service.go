package service

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"site-inspector/internal/event"
	"site-inspector/internal/model"
	"site-inspector/internal/repository"
	"site-inspector/pkg/apierror"
)

// AuditService persists bus events as audit entries and serves queries.
type AuditService struct {
	store repository.AuditStore
	bus   event.Bus
}

func NewAuditService(store repository.AuditStore, bus event.Bus) *AuditService {
	return &AuditService{store: store, bus: bus}
}

// Run consumes events until ctx is done. Entries are written with a short
// detached context so shutdown does not abort an in-flight insert.
func (s *AuditService) Run(ctx context.Context) {
	events, unsubscribe := s.bus.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			s.drain(ctx, events)
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			s.record(ctx, e)
		}
	}
}

// drain writes whatever is already buffered so a clean shutdown keeps the
// tail of the trail.
func (s *AuditService) drain(ctx context.Context, events <-chan event.Event) {
	for {
		select {
		case e, ok := <-events:
			if !ok {
				return
			}
			s.record(ctx, e)
		default:
			return
		}
	}
}

func (s *AuditService) record(ctx context.Context, e event.Event) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := s.store.Log(writeCtx, EntryFromEvent(e)); err != nil {
		slog.Error("audit entry not persisted", "type", e.Type, "event_id", e.ID, "error", err)
	}
}

func EntryFromEvent(e event.Event) model.AuditEntry {
	return model.AuditEntry{
		Action:     string(e.Type),
		OccurredAt: e.OccurredAt.UTC().Format(time.RFC3339Nano),
		Actor: model.AuditActor{
			UserID: e.ActorID,
			Role:   model.Role(e.ActorRole),
			IP:     e.ActorIP,
		},
		Status:   e.Status,
		Resource: e.Resource,
		Details:  e.Details,
		Error:    e.Error,
	}
}

func (s *AuditService) Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	for field, raw := range map[string]string{"from": query.From, "to": query.To} {
		if err := checkAuditTime(raw); err != nil {
			return nil, model.Meta{}, apierror.New("BAD_REQUEST", "invalid '"+field+"' datetime format", raw, http.StatusBadRequest)
		}
	}

	return s.store.Query(ctx, repository.NormalizeAuditQuery(query))
}

func checkAuditTime(raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	_, err := time.Parse(time.RFC3339Nano, trimmed)
	return err
}
