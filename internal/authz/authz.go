// Package authz decides whether a caller may act on a visit or site.
//
// Every decision takes the caller explicitly. Admins pass every check; other
// callers are judged by their relationship to the resource. A deny is a
// Decision value, only store failures are returned as errors.
package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"site-inspector/internal/metrics"
	"site-inspector/internal/model"
)

type Caller struct {
	UserID string
	Role   model.Role
}

func (c Caller) Valid() bool {
	return c.UserID != "" && c.Role.Valid()
}

func (c Caller) IsAdmin() bool {
	return c.Valid() && c.Role == model.RoleAdmin
}

// FromClaims returns the zero Caller for nil claims, which every check denies.
func FromClaims(claims *model.AuthClaims) Caller {
	if claims == nil {
		return Caller{}
	}
	return Caller{UserID: claims.UserID, Role: claims.Role}
}

type Kind int

const (
	// Ownership: the caller created the visit.
	Ownership Kind = iota + 1
	// DerivedAccess: the caller has at least one visit at the site.
	DerivedAccess
	// Management: ownership for read and edit, admin-only for status transitions.
	Management
)

func (k Kind) String() string {
	switch k {
	case Ownership:
		return "ownership"
	case DerivedAccess:
		return "derived_access"
	case Management:
		return "management"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

type Action int

const (
	ActionRead Action = iota + 1
	ActionEdit
	ActionTransition
)

func (a Action) String() string {
	switch a {
	case ActionRead:
		return "read"
	case ActionEdit:
		return "edit"
	case ActionTransition:
		return "transition"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Check names a rule and the resource it applies to: a visit id for
// Ownership and Management, a site id for DerivedAccess.
type Check struct {
	Kind       Kind
	Action     Action
	ResourceID string
}

const (
	ReasonAdmin           = "admin"
	ReasonOwner           = "owner"
	ReasonVisitedSite     = "caller has visited site"
	ReasonNoCaller        = "caller identity missing"
	ReasonNotOwner        = "caller does not own resource"
	ReasonNotFound        = "resource not found"
	ReasonNoSiteVisit     = "caller has no visit at site"
	ReasonAdminOnly       = "status transitions are admin-only"
	ReasonUnknownKind     = "unknown check kind"
	ReasonMissingResource = "resource id missing"
)

type Decision struct {
	Allowed bool
	Reason  string
}

func allow(reason string) Decision { return Decision{Allowed: true, Reason: reason} }
func deny(reason string) Decision  { return Decision{Allowed: false, Reason: reason} }

// Resources is the read side of the visit store the evaluator needs.
type Resources interface {
	GetByID(ctx context.Context, id string) (model.Visit, error)
	ExistsForEngineerAtSite(ctx context.Context, engineerID string, siteID string) (bool, error)
}

type Evaluator struct {
	visits  Resources
	metrics *metrics.Metrics
}

func NewEvaluator(visits Resources, m *metrics.Metrics) *Evaluator {
	return &Evaluator{visits: visits, metrics: m}
}

func (e *Evaluator) Evaluate(ctx context.Context, caller Caller, check Check) (Decision, error) {
	d, err := e.evaluate(ctx, caller, check)
	if err != nil {
		return Decision{}, err
	}

	e.metrics.AuthzDecision(check.Kind.String(), d.Allowed)
	if !d.Allowed {
		slog.Debug("authorization denied",
			"user_id", caller.UserID, "kind", check.Kind.String(), "action", check.Action.String(),
			"resource_id", check.ResourceID, "reason", d.Reason)
	}
	return d, nil
}

// Require is Evaluate with a deny turned into model.ErrForbidden.
func (e *Evaluator) Require(ctx context.Context, caller Caller, check Check) error {
	d, err := e.Evaluate(ctx, caller, check)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return fmt.Errorf("%w: %s", model.ErrForbidden, d.Reason)
	}
	return nil
}

func (e *Evaluator) evaluate(ctx context.Context, caller Caller, check Check) (Decision, error) {
	if !caller.Valid() {
		return deny(ReasonNoCaller), nil
	}

	switch check.Kind {
	case Ownership:
		if caller.IsAdmin() {
			return allow(ReasonAdmin), nil
		}
		return e.owns(ctx, caller, check.ResourceID)

	case DerivedAccess:
		if caller.IsAdmin() {
			return allow(ReasonAdmin), nil
		}
		if check.ResourceID == "" {
			return deny(ReasonMissingResource), nil
		}
		visited, err := e.visits.ExistsForEngineerAtSite(ctx, caller.UserID, check.ResourceID)
		if err != nil {
			return Decision{}, err
		}
		if !visited {
			return deny(ReasonNoSiteVisit), nil
		}
		return allow(ReasonVisitedSite), nil

	case Management:
		if caller.IsAdmin() {
			return allow(ReasonAdmin), nil
		}
		if check.Action == ActionTransition {
			return deny(ReasonAdminOnly), nil
		}
		return e.owns(ctx, caller, check.ResourceID)

	default:
		return deny(ReasonUnknownKind), nil
	}
}

func (e *Evaluator) owns(ctx context.Context, caller Caller, visitID string) (Decision, error) {
	if visitID == "" {
		return deny(ReasonMissingResource), nil
	}

	visit, err := e.visits.GetByID(ctx, visitID)
	if errors.Is(err, model.ErrVisitNotFound) {
		return deny(ReasonNotFound), nil
	}
	if err != nil {
		return Decision{}, err
	}

	if visit.EngineerID != caller.UserID {
		return deny(ReasonNotOwner), nil
	}
	return allow(ReasonOwner), nil
}
