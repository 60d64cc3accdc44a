package model

type AuditActor struct {
	UserID string `json:"user_id,omitempty"`
	Role   Role   `json:"role,omitempty"`
	IP     string `json:"ip,omitempty"`
}

type AuditEntry struct {
	Action     string         `json:"action"`
	OccurredAt string         `json:"occurred_at"`
	Actor      AuditActor     `json:"actor"`
	Status     string         `json:"status"`
	Resource   string         `json:"resource,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	Error      string         `json:"error,omitempty"`
}

type AuditQuery struct {
	Action  string `json:"action" validate:"max=64"`
	ActorID string `json:"actor_id" validate:"omitempty,uuid"`
	Status  string `json:"status" validate:"omitempty,oneof=success failure"`
	From    string `json:"from"`
	To      string `json:"to"`
	Page    int    `json:"page"`
	Limit   int    `json:"limit"`
}

type AuditListData struct {
	Items []AuditEntry `json:"items"`
}
