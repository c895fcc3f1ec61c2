package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID             uuid.UUID
	CreatedAt      time.Time
	Username       string
	HashedPassword string
	Role           Role

	// Chat id used for out of band notifications. Nil if user never set it
	ContactID *int64
}
