package identity

import (
	"context"
	"errors"
)

// Claims is the verified identity attached to a request after the token
// gate has accepted it.
type Claims struct {
	UserID string `json:"sub"`
	Email  string `json:"email"`
}

var (
	ErrEmailTaken         = errors.New("email already in use")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Provider is the boundary to the identity service. Keep it small so tests
// can fake it easily.
type Provider interface {
	CreateUser(ctx context.Context, email, password string) (Claims, error)
	SignIn(ctx context.Context, email, password string) (string, error)
	VerifyToken(ctx context.Context, token string) (Claims, error)
}
