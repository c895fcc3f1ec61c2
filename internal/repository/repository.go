package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/nkiryanov/smarthome/internal/models"
)

type CreateUserParams struct {
	Username     string
	PasswordHash string
	Role         string
}

// User repository interface
type UserRepo interface {
	// Create user with the given role name
	// If user with username exists already has to return error apperrors.ErrUserAlreadyExists
	// If role doesn't exist has to return apperrors.ErrRoleNotFound
	CreateUser(ctx context.Context, arg CreateUserParams) (models.User, error)

	// Get user by it's id or username, the role is loaded with its permissions
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)

	UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
	UpdateContact(ctx context.Context, userID uuid.UUID, contactID *int64) error
}

// Token repository interface
// Every access and refresh token issued is stored here
type TokenRepo interface {
	Create(ctx context.Context, token models.Token) (models.Token, error)

	// Return the token even it expired or disabled
	// If not found must return apperrors.ErrTokenNotFound
	GetByValue(ctx context.Context, value string) (models.Token, error)

	// Must be idempotent: disabling disabled token is ok
	Disable(ctx context.Context, tokenID uuid.UUID) error
	Delete(ctx context.Context, tokenID uuid.UUID) error

	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Token, error)
}

type Storage interface {
	User() UserRepo
	Token() TokenRepo

	// Run fn in transaction. Commit if fn returns nil, rollback otherwise
	InTx(ctx context.Context, fn func(Storage) error) error
}
