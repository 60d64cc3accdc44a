package model

import "errors"

var (
	// Input
	ErrValidation = errors.New("validation failed")

	// Authentication
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrInvalidToken           = errors.New("invalid token")
	ErrInvalidCurrentPassword = errors.New("invalid current password")
	ErrUnauthorized           = errors.New("unauthorized")

	// Authorization
	ErrForbidden = errors.New("forbidden")

	// Users
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")

	// Refresh tokens
	ErrTokenNotFound = errors.New("token not found")

	// Sites and visits
	ErrSiteNotFound      = errors.New("site not found")
	ErrVisitNotFound     = errors.New("visit not found")
	ErrInvalidTransition = errors.New("invalid status transition")

	// Infrastructure
	ErrStoreUnavailable = errors.New("store unavailable")
)
