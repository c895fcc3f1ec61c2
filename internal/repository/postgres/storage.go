package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/smarthome/internal/repository"
)

type Storage struct {
	db DBTX
}

func NewStorage(db DBTX) repository.Storage {
	return &Storage{db: db}
}

func (s *Storage) User() repository.UserRepo {
	return &UserRepo{DB: s.db}
}

func (s *Storage) Token() repository.TokenRepo {
	return &TokenRepo{DB: s.db}
}

// Run fn in transaction, commit if fn returns nil
// Storage inside a transaction makes a savepoint instead of new transaction
func (s *Storage) InTx(ctx context.Context, fn func(repository.Storage) error) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		return fn(NewStorage(tx))
	})
}
