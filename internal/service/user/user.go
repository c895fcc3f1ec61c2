package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nkiryanov/smarthome/internal/models"
	"github.com/nkiryanov/smarthome/internal/repository"
	"github.com/nkiryanov/smarthome/internal/service/auth"
)

// Users are created by administrator, there is no self registration
type UserService struct {
	hasher  auth.PasswordHasher
	storage repository.Storage
}

func NewService(hasher auth.PasswordHasher, storage repository.Storage) *UserService {
	if hasher == nil {
		hasher = auth.DefaultHasher
	}

	return &UserService{
		hasher:  hasher,
		storage: storage,
	}
}

func (s *UserService) CreateUser(ctx context.Context, username string, password string, role string) (models.User, error) {
	var user models.User
	if username == "" || password == "" {
		return user, errors.New("username and password must not be empty")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return user, fmt.Errorf("can't use this as password, Err: %w", err)
	}

	user, err = s.storage.User().CreateUser(ctx, repository.CreateUserParams{
		Username:     username,
		PasswordHash: hash,
		Role:         strings.ToUpper(role),
	})
	if err != nil {
		return user, fmt.Errorf("can't create user. Err: %w", err)
	}

	return user, nil
}
