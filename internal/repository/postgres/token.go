package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/smarthome/internal/apperrors"
	"github.com/nkiryanov/smarthome/internal/models"
)

type TokenRepo struct {
	DB DBTX
}

const createToken = `-- name: CreateToken
INSERT INTO tokens (id, user_id, kind, value, expires_at, disabled)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, user_id, kind, value, expires_at, disabled, created_at
`

// Create token. ID is generated if it not set
func (r *TokenRepo) Create(ctx context.Context, token models.Token) (models.Token, error) {
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}

	rows, _ := r.DB.Query(ctx, createToken, token.ID, token.UserID, token.Kind, token.Value, token.ExpiresAt, token.Disabled)
	created, err := pgx.CollectOneRow(rows, rowToToken)
	if err != nil {
		return created, fmt.Errorf("db error: %w", err)
	}

	return created, nil
}

const getTokenByValue = `-- name: GetTokenByValue
SELECT id, user_id, kind, value, expires_at, disabled, created_at
FROM tokens
WHERE value = $1
`

func (r *TokenRepo) GetByValue(ctx context.Context, value string) (models.Token, error) {
	rows, _ := r.DB.Query(ctx, getTokenByValue, value)
	token, err := pgx.CollectOneRow(rows, rowToToken)

	switch {
	case err == nil:
		return token, nil
	case errors.Is(err, pgx.ErrNoRows):
		return token, fmt.Errorf("repo error: %w", apperrors.ErrTokenNotFound)
	default:
		return token, fmt.Errorf("db error: %w", err)
	}
}

const disableToken = `-- name: DisableToken
UPDATE tokens SET disabled = TRUE
WHERE id = $1
`

func (r *TokenRepo) Disable(ctx context.Context, tokenID uuid.UUID) error {
	_, err := r.DB.Exec(ctx, disableToken, tokenID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const deleteToken = `-- name: DeleteToken
DELETE FROM tokens
WHERE id = $1
`

func (r *TokenRepo) Delete(ctx context.Context, tokenID uuid.UUID) error {
	_, err := r.DB.Exec(ctx, deleteToken, tokenID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const listTokensByUser = `-- name: ListTokensByUser
SELECT id, user_id, kind, value, expires_at, disabled, created_at
FROM tokens
WHERE user_id = $1
ORDER BY created_at, id
`

func (r *TokenRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Token, error) {
	rows, _ := r.DB.Query(ctx, listTokensByUser, userID)
	tokens, err := pgx.CollectRows(rows, rowToToken)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return tokens, nil
}

func rowToToken(row pgx.CollectableRow) (models.Token, error) {
	var t models.Token
	err := row.Scan(&t.ID, &t.UserID, &t.Kind, &t.Value, &t.ExpiresAt, &t.Disabled, &t.CreatedAt)
	return t, err
}
