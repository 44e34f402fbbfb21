package pasetotoken

import (
	"time"

	"github.com/google/uuid"
)

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims is what a Bookspot token carries. Every token belongs to a session
// and records the account role it was issued for; roles never change, so a
// mismatch with the stored account means the token is stale.
type Claims struct {
	Type      TokenType
	UserID    uuid.UUID
	Role      string
	SessionID uuid.UUID
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func (c *Claims) GetUserID() uuid.UUID    { return c.UserID }
func (c *Claims) GetSessionID() uuid.UUID { return c.SessionID }
func (c *Claims) GetRole() string         { return c.Role }
