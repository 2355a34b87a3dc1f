package model

import "time"

const (
	UserRoleAdmin  = "admin"
	UserRoleViewer = "viewer"
)

// User is an admin-console account managed by the backend.
type User struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	CreatedAt Timestamp `json:"createdAt"`
	LastLogin Timestamp `json:"lastLogin"`
}

type UserInput struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Role     string `json:"role,omitempty"`
}

// Login is what the backend returns from /login and what the client keeps.
type Login struct {
	Token     string    `json:"token"`
	Role      string    `json:"role"`
	Username  string    `json:"username,omitempty"`
	ExpiresAt time.Time `json:"-"`
}
