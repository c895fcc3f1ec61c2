package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/smarthome/internal/apperrors"
	"github.com/nkiryanov/smarthome/internal/models"
	"github.com/nkiryanov/smarthome/internal/repository"
)

type UserRepo struct {
	DB DBTX
}

const createUser = `-- name: CreateUser
INSERT INTO users (id, username, password_hash, role_id)
SELECT $1, $2, $3, roles.id
FROM roles
WHERE roles.name = $4
RETURNING id
`

func (r *UserRepo) CreateUser(ctx context.Context, arg repository.CreateUserParams) (models.User, error) {
	rows, _ := r.DB.Query(ctx, createUser, uuid.New(), arg.Username, arg.PasswordHash, arg.Role)
	userID, err := pgx.CollectOneRow(rows, pgx.RowTo[uuid.UUID])

	if err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation:
			return models.User{}, apperrors.ErrUserAlreadyExists
		case errors.Is(err, pgx.ErrNoRows):
			return models.User{}, fmt.Errorf("role %q: %w", arg.Role, apperrors.ErrRoleNotFound)
		default:
			return models.User{}, fmt.Errorf("db error: %w", err)
		}
	}

	return r.GetUserByID(ctx, userID)
}

// Users with role and role permissions
// Permissions aggregated into two parallel arrays to keep scan simple
const selectUser = `
SELECT
	u.id, u.created_at, u.username, u.password_hash, u.contact_id, r.name,
	COALESCE(array_agg(p.resource ORDER BY p.id) FILTER (WHERE p.id IS NOT NULL), '{}')::text[],
	COALESCE(array_agg(p.operation ORDER BY p.id) FILTER (WHERE p.id IS NOT NULL), '{}')::text[]
FROM users u
JOIN roles r ON r.id = u.role_id
LEFT JOIN role_permissions rp ON rp.role_id = r.id
LEFT JOIN permissions p ON p.id = rp.permission_id
`

const getUserByID = `-- name: getUserByID` + selectUser + `
WHERE u.id = $1
GROUP BY u.id, r.name
`

func (r *UserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByID, id)
	return collectUser(rows)
}

const getUserByUsername = `-- name: getUserByUsername` + selectUser + `
WHERE u.username = $1
GROUP BY u.id, r.name
`

func (r *UserRepo) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByUsername, username)
	return collectUser(rows)
}

const updatePassword = `-- name: UpdatePassword
UPDATE users SET password_hash = $2
WHERE id = $1
`

func (r *UserRepo) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	tag, err := r.DB.Exec(ctx, updatePassword, userID, passwordHash)
	return checkUpdated(tag, err)
}

const updateContact = `-- name: UpdateContact
UPDATE users SET contact_id = $2
WHERE id = $1
`

func (r *UserRepo) UpdateContact(ctx context.Context, userID uuid.UUID, contactID *int64) error {
	tag, err := r.DB.Exec(ctx, updateContact, userID, contactID)
	return checkUpdated(tag, err)
}

func checkUpdated(tag pgconn.CommandTag, err error) error {
	switch {
	case err != nil:
		return fmt.Errorf("db error: %w", err)
	case tag.RowsAffected() == 0:
		return apperrors.ErrUserNotFound
	default:
		return nil
	}
}

func collectUser(rows pgx.Rows) (models.User, error) {
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, apperrors.ErrUserNotFound
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

func rowToUser(row pgx.CollectableRow) (models.User, error) {
	var u models.User
	var resources, operations []string

	err := row.Scan(&u.ID, &u.CreatedAt, &u.Username, &u.HashedPassword, &u.ContactID, &u.Role.Name, &resources, &operations)
	if err != nil {
		return u, err
	}

	u.Role.Permissions = make([]models.Permission, len(resources))
	for i := range resources {
		u.Role.Permissions[i] = models.Permission{Resource: resources[i], Operation: operations[i]}
	}

	return u, nil
}
