package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"

	"github.com/nkiryanov/smarthome/internal/apperrors"
	"github.com/nkiryanov/smarthome/internal/models"
	"github.com/nkiryanov/smarthome/internal/repository"
)

// Outcome of the sweep over user tokens
type SweepResult struct {
	Deleted  int
	Disabled int
}

// Ledger keeps every issued token and decides whether the token is still honored
// The signature proves the token was issued, the ledger proves it wasn't revoked
type Ledger struct {
	repo repository.TokenRepo
	now  func() time.Time

	// Values known to be disabled. Disabled never flips back
	// so the cache can only reject, never accept
	revoked *ttlcache.Cache[string, struct{}]
}

// New ledger over the repo
// Call Close to stop the cache cleanup goroutine
func New(repo repository.TokenRepo, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}

	revoked := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, struct{}](),
	)
	go revoked.Start()

	return &Ledger{
		repo:    repo,
		now:     now,
		revoked: revoked,
	}
}

// With returns ledger bound to another repo (usually transactional) sharing the same cache
func (l *Ledger) With(repo repository.TokenRepo) *Ledger {
	return &Ledger{
		repo:    repo,
		now:     l.now,
		revoked: l.revoked,
	}
}

func (l *Ledger) Close() {
	l.revoked.Stop()
}

func (l *Ledger) Record(ctx context.Context, kind models.TokenKind, userID uuid.UUID, issued models.IssuedToken) (models.Token, error) {
	token, err := l.repo.Create(ctx, models.Token{
		UserID:    userID,
		Kind:      kind,
		Value:     issued.Value,
		ExpiresAt: issued.ExpiresAt,
	})
	if err != nil {
		return token, fmt.Errorf("error while recording %s token. Err: %w", kind, err)
	}
	return token, nil
}

func (l *Ledger) FindByValue(ctx context.Context, value string) (models.Token, error) {
	return l.repo.GetByValue(ctx, value)
}

// Disable token. Nothing is written if it disabled already
func (l *Ledger) Disable(ctx context.Context, token models.Token) error {
	if token.Disabled {
		return nil
	}
	return l.repo.Disable(ctx, token.ID)
}

func (l *Ledger) Delete(ctx context.Context, token models.Token) error {
	return l.repo.Delete(ctx, token.ID)
}

func (l *Ledger) TokensOf(ctx context.Context, userID uuid.UUID) ([]models.Token, error) {
	return l.repo.ListByUser(ctx, userID)
}

// Revoke every token of the user
// Expired tokens are deleted, live ones disabled
func (l *Ledger) RevokeAll(ctx context.Context, userID uuid.UUID) (SweepResult, error) {
	var result SweepResult

	tokens, err := l.TokensOf(ctx, userID)
	if err != nil {
		return result, fmt.Errorf("error while listing user tokens. Err: %w", err)
	}

	now := l.now()
	for _, token := range tokens {
		switch {
		case token.Expired(now):
			if err := l.Delete(ctx, token); err != nil {
				return result, fmt.Errorf("error while deleting expired token. Err: %w", err)
			}
			result.Deleted++
		case !token.Disabled:
			if err := l.Disable(ctx, token); err != nil {
				return result, fmt.Errorf("error while disabling token. Err: %w", err)
			}
			result.Disabled++
		}
	}

	return result, nil
}

// Check the token is honored: it is known, of expected kind, belongs to the user,
// not disabled and not expired
// Any failure is reported as apperrors.ErrTokenInvalid
func (l *Ledger) Check(ctx context.Context, value string, kind models.TokenKind, userID uuid.UUID) (models.Token, error) {
	if l.revoked.Has(value) {
		return models.Token{}, fmt.Errorf("%w: token is disabled", apperrors.ErrTokenInvalid)
	}

	token, err := l.FindByValue(ctx, value)
	switch {
	case errors.Is(err, apperrors.ErrTokenNotFound):
		return token, fmt.Errorf("%w: %w", apperrors.ErrTokenInvalid, err)
	case err != nil:
		return token, err
	}

	now := l.now()
	switch {
	case token.Kind != kind:
		return token, fmt.Errorf("%w: %s token expected, got %s", apperrors.ErrTokenInvalid, kind, token.Kind)
	case token.UserID != userID:
		return token, fmt.Errorf("%w: token belongs to another user", apperrors.ErrTokenInvalid)
	case token.Expired(now):
		return token, fmt.Errorf("%w: token is expired", apperrors.ErrTokenInvalid)
	case token.Disabled:
		l.revoked.Set(value, struct{}{}, token.ExpiresAt.Sub(now))
		return token, fmt.Errorf("%w: token is disabled", apperrors.ErrTokenInvalid)
	}

	return token, nil
}
