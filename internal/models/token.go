package models

import (
	"time"

	"github.com/google/uuid"
)

type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

// Ledger entry for every credential ever issued
type Token struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Kind      TokenKind
	Value     string
	ExpiresAt time.Time
	Disabled  bool
	CreatedAt time.Time
}

func (t Token) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Signed credential as it is given to the client
type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}
