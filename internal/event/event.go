package event

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeUserRegistered     Type = "auth.register"
	TypeLoginSucceeded     Type = "auth.login"
	TypeLoginFailed        Type = "auth.login_failed"
	TypeAccountLocked      Type = "auth.account_locked"
	TypeLogout             Type = "auth.logout"
	TypeLogoutAll          Type = "auth.logout_all"
	TypeTokenRotated       Type = "auth.token_rotated"
	TypeTokenRejected      Type = "auth.token_rejected"
	TypePasswordChanged    Type = "auth.password_changed"
	TypePasswordReset      Type = "auth.password_reset"
	TypeResetRequested     Type = "auth.reset_requested"
	TypeUserActivated      Type = "user.activated"
	TypeUserDeactivated    Type = "user.deactivated"
	TypeSiteCreated        Type = "site.created"
	TypeVisitCreated       Type = "visit.created"
	TypeVisitUpdated       Type = "visit.updated"
	TypeVisitStatusChanged Type = "visit.status_changed"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

type Event struct {
	ID         string         `json:"id"`
	Type       Type           `json:"type"`
	Status     string         `json:"status"`
	ActorID    string         `json:"actor_id,omitempty"`
	ActorRole  string         `json:"actor_role,omitempty"`
	ActorIP    string         `json:"actor_ip,omitempty"`
	Resource   string         `json:"resource,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	Error      string         `json:"error,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// New stamps a successful event of type t with a fresh id and at.
func New(t Type, at time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		Status:     StatusSuccess,
		OccurredAt: at.UTC(),
	}
}

func (e Event) Failed(reason string) Event {
	e.Status = StatusFailure
	e.Error = reason
	return e
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func()) // Returns channel and unsubscribe function
}

// NopBus drops every event.
type NopBus struct{}

func (NopBus) Publish(Event) {}

func (NopBus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event)
	return ch, func() {}
}
