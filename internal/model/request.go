package model

import "time"

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Username string `json:"username" validate:"required,min=3,max=64"`
	FullName string `json:"full_name" validate:"max=128"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72,nefield=CurrentPassword"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

type SetUserActiveRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

type CreateSiteRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Address string `json:"address" validate:"max=500"`
}

type CreateVisitRequest struct {
	SiteID    string     `json:"site_id" validate:"required,uuid"`
	Notes     string     `json:"notes" validate:"max=4000"`
	VisitedAt *time.Time `json:"visited_at"`
}

type UpdateVisitRequest struct {
	Notes string `json:"notes" validate:"max=4000"`
}

type ChangeVisitStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=Approved Rejected"`
	Note   string `json:"note" validate:"max=2000"`
}

type MessageData struct {
	Message string `json:"message"`
}
