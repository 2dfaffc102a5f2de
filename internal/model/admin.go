package model

import "time"

// AdminLoginRequest is the payload for admin authentication.
type AdminLoginRequest struct {
	Password string `json:"password" binding:"required,max=200"`
}

// AdminSession describes the admin token in use.
type AdminSession struct {
	TokenID   string    `json:"token_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
