package model

// APIResponse is the envelope every endpoint returns.
type APIResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
	Code    string   `json:"code,omitempty"`
	Data    any      `json:"data,omitempty"`
	Errors  []string `json:"errors,omitempty"`
	Meta    *Meta    `json:"meta,omitempty"`
}

type Meta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}
