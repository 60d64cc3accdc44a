package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"site-inspector/internal/authz"
	"site-inspector/internal/event"
	"site-inspector/internal/model"
	"site-inspector/internal/repository"
	"site-inspector/internal/validate"
)

// futureSkew tolerates client clocks running slightly ahead.
const futureSkew = 5 * time.Minute

type VisitService struct {
	visits repository.VisitStore
	sites  repository.SiteStore
	authz  *authz.Evaluator
	bus    event.Bus
	now    func() time.Time
}

func NewVisitService(visits repository.VisitStore, sites repository.SiteStore, evaluator *authz.Evaluator, bus event.Bus, now func() time.Time) *VisitService {
	if bus == nil {
		bus = event.NopBus{}
	}
	if now == nil {
		now = time.Now
	}
	return &VisitService{visits: visits, sites: sites, authz: evaluator, bus: bus, now: now}
}

// Create records a Pending visit owned by the caller.
func (s *VisitService) Create(ctx context.Context, caller authz.Caller, req model.CreateVisitRequest) (model.Visit, error) {
	if !caller.Valid() {
		return model.Visit{}, model.ErrUnauthorized
	}

	req.SiteID = strings.TrimSpace(req.SiteID)
	if err := validate.Struct(&req); err != nil {
		return model.Visit{}, err
	}

	if _, err := s.sites.GetByID(ctx, req.SiteID); err != nil {
		return model.Visit{}, err
	}

	now := s.now().UTC()
	visitedAt := now
	if req.VisitedAt != nil {
		visitedAt = req.VisitedAt.UTC()
		if visitedAt.After(now.Add(futureSkew)) {
			return model.Visit{}, validate.Fail("The field 'visited_at' cannot be in the future.")
		}
	}

	visit := model.Visit{
		ID:         uuid.NewString(),
		SiteID:     req.SiteID,
		EngineerID: caller.UserID,
		Status:     model.VisitPending,
		Notes:      strings.TrimSpace(req.Notes),
		VisitedAt:  visitedAt,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.visits.Create(ctx, visit); err != nil {
		return model.Visit{}, err
	}

	e := s.event(event.TypeVisitCreated, caller, visit.ID)
	e.Details = map[string]any{"site_id": visit.SiteID}
	s.bus.Publish(e)
	return visit, nil
}

func (s *VisitService) Get(ctx context.Context, caller authz.Caller, id string) (model.Visit, error) {
	if err := s.authz.Require(ctx, caller, authz.Check{Kind: authz.Ownership, Action: authz.ActionRead, ResourceID: id}); err != nil {
		return model.Visit{}, err
	}
	return s.visits.GetByID(ctx, id)
}

// UpdateNotes edits a visit that is still Pending.
func (s *VisitService) UpdateNotes(ctx context.Context, caller authz.Caller, id string, req model.UpdateVisitRequest) (model.Visit, error) {
	if err := validate.Struct(&req); err != nil {
		return model.Visit{}, err
	}

	if err := s.authz.Require(ctx, caller, authz.Check{Kind: authz.Management, Action: authz.ActionEdit, ResourceID: id}); err != nil {
		return model.Visit{}, err
	}

	visit, err := s.visits.UpdateNotes(ctx, id, strings.TrimSpace(req.Notes), s.now().UTC())
	if err != nil {
		return model.Visit{}, err
	}

	s.bus.Publish(s.event(event.TypeVisitUpdated, caller, visit.ID))
	return visit, nil
}

// ChangeStatus moves a Pending visit to Approved or Rejected. The store
// applies the change only if the visit is still Pending.
func (s *VisitService) ChangeStatus(ctx context.Context, caller authz.Caller, id string, req model.ChangeVisitStatusRequest) (model.Visit, error) {
	if err := validate.Struct(&req); err != nil {
		return model.Visit{}, err
	}

	if err := s.authz.Require(ctx, caller, authz.Check{Kind: authz.Management, Action: authz.ActionTransition, ResourceID: id}); err != nil {
		return model.Visit{}, err
	}

	to, _ := model.ParseVisitStatus(req.Status)
	visit, err := s.visits.UpdateStatus(ctx, model.StatusChange{
		VisitID:    id,
		From:       model.VisitPending,
		To:         to,
		ReviewerID: caller.UserID,
		Note:       strings.TrimSpace(req.Note),
		At:         s.now().UTC(),
	})
	if err != nil {
		return model.Visit{}, err
	}

	e := s.event(event.TypeVisitStatusChanged, caller, visit.ID)
	e.Details = map[string]any{"from": model.VisitPending, "to": to}
	s.bus.Publish(e)
	return visit, nil
}

func (s *VisitService) event(t event.Type, caller authz.Caller, visitID string) event.Event {
	e := event.New(t, s.now())
	e.ActorID = caller.UserID
	e.ActorRole = string(caller.Role)
	e.Resource = "visit:" + visitID
	return e
}
