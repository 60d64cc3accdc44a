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

type SiteService struct {
	sites repository.SiteStore
	authz *authz.Evaluator
	bus   event.Bus
	now   func() time.Time
}

func NewSiteService(sites repository.SiteStore, evaluator *authz.Evaluator, bus event.Bus, now func() time.Time) *SiteService {
	if bus == nil {
		bus = event.NopBus{}
	}
	if now == nil {
		now = time.Now
	}
	return &SiteService{sites: sites, authz: evaluator, bus: bus, now: now}
}

func (s *SiteService) Create(ctx context.Context, caller authz.Caller, req model.CreateSiteRequest) (model.Site, error) {
	if !caller.IsAdmin() {
		return model.Site{}, model.ErrForbidden
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Address = strings.TrimSpace(req.Address)
	if err := validate.Struct(&req); err != nil {
		return model.Site{}, err
	}

	site := model.Site{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Address:   req.Address,
		CreatedAt: s.now().UTC(),
	}
	if err := s.sites.Create(ctx, site); err != nil {
		return model.Site{}, err
	}

	e := event.New(event.TypeSiteCreated, s.now())
	e.ActorID = caller.UserID
	e.ActorRole = string(caller.Role)
	e.Resource = "site:" + site.ID
	s.bus.Publish(e)
	return site, nil
}

// Get returns the site to admins and to engineers who have visited it.
func (s *SiteService) Get(ctx context.Context, caller authz.Caller, id string) (model.Site, error) {
	if err := s.authz.Require(ctx, caller, authz.Check{Kind: authz.DerivedAccess, Action: authz.ActionRead, ResourceID: id}); err != nil {
		return model.Site{}, err
	}
	return s.sites.GetByID(ctx, id)
}
