package model

import (
	"strings"
	"time"
)

type Role string

const (
	RoleAdmin    Role = "Admin"
	RoleEngineer Role = "Engineer"
)

// ParseRole accepts any casing and returns false for unknown roles.
func ParseRole(raw string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "admin":
		return RoleAdmin, true
	case "engineer":
		return RoleEngineer, true
	default:
		return "", false
	}
}

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleEngineer
}

type User struct {
	ID                  string     `json:"id"`
	Email               string     `json:"email"`
	Username            string     `json:"username"`
	FullName            string     `json:"full_name"`
	PasswordHash        string     `json:"-"`
	Role                Role       `json:"role"`
	IsActive            bool       `json:"is_active"`
	FailedLoginAttempts int        `json:"-"`
	LockedUntil         *time.Time `json:"-"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// IsLocked reports whether a lockout window is still open at now.
func (u User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

func (u User) Public() AuthUser {
	return AuthUser{
		ID:       u.ID,
		Email:    u.Email,
		Username: u.Username,
		FullName: u.FullName,
		Role:     u.Role,
		IsActive: u.IsActive,
	}
}

type AuthClaims struct {
	UserID  string `json:"sub"`
	Role    Role   `json:"role"`
	Type    string `json:"typ"`
	TokenID string `json:"jti"`
}

type AuthUser struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	FullName string `json:"full_name,omitempty"`
	Role     Role   `json:"role"`
	IsActive bool   `json:"is_active"`
}
