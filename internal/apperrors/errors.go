package apperrors

import (
	"errors"
)

var (
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")
	ErrRoleNotFound      = errors.New("role not found")

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPasswordUnchanged  = errors.New("new password can't be equal to old password")
	ErrPasswordMismatch   = errors.New("new passwords don't match")

	ErrTokenInvalid  = errors.New("token is invalid")
	ErrTokenNotFound = errors.New("token not found")

	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)
