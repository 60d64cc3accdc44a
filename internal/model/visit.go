package model

import "time"

type VisitStatus string

const (
	VisitPending  VisitStatus = "Pending"
	VisitApproved VisitStatus = "Approved"
	VisitRejected VisitStatus = "Rejected"
)

func ParseVisitStatus(raw string) (VisitStatus, bool) {
	switch VisitStatus(raw) {
	case VisitPending, VisitApproved, VisitRejected:
		return VisitStatus(raw), true
	default:
		return "", false
	}
}

type Site struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
}

// Visit references its site and engineer by id only.
type Visit struct {
	ID         string      `json:"id"`
	SiteID     string      `json:"site_id"`
	EngineerID string      `json:"engineer_id"`
	Status     VisitStatus `json:"status"`
	Notes      string      `json:"notes"`
	VisitedAt  time.Time   `json:"visited_at"`
	ReviewedBy string      `json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time  `json:"reviewed_at,omitempty"`
	ReviewNote string      `json:"review_note,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

type StatusChange struct {
	VisitID    string
	From       VisitStatus
	To         VisitStatus
	ReviewerID string
	Note       string
	At         time.Time
}
