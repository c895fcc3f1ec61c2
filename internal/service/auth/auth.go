package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/nkiryanov/smarthome/internal/apperrors"
	"github.com/nkiryanov/smarthome/internal/logger"
	"github.com/nkiryanov/smarthome/internal/models"
	"github.com/nkiryanov/smarthome/internal/repository"
	"github.com/nkiryanov/smarthome/internal/service/auth/cookie"
	"github.com/nkiryanov/smarthome/internal/service/auth/ledger"
	"github.com/nkiryanov/smarthome/internal/service/auth/signer"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 24 * time.Hour

	notifyTimeLayout = "2006-01-02 15:04:05 MST"
)

// Out of band messages to the user and the administrator
// Delivery is asynchronous, the service never waits for it
type Notifier interface {
	NotifyUser(ctx context.Context, chatID int64, text string)
	NotifyAdmin(ctx context.Context, text string)
}

type Config struct {
	// Access and refresh token lifetimes
	// If not set than default is used
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Hasher to compare and hash user passwords
	// DefaultHasher if not set
	Hasher PasswordHasher

	// Clock, time.Now if not set
	Now func() time.Time
}

// Auth service issues, refreshes and revokes user sessions
type AuthService struct {
	accessTTL  time.Duration
	refreshTTL time.Duration
	hasher     PasswordHasher
	now        func() time.Time

	storage  repository.Storage
	signer   *signer.Signer
	ledger   *ledger.Ledger
	cookies  *cookie.Transport
	notifier Notifier
	logger   logger.Logger
}

func NewService(
	cfg Config,
	storage repository.Storage,
	signer *signer.Signer,
	ledger *ledger.Ledger,
	cookies *cookie.Transport,
	notifier Notifier,
	logger logger.Logger,
) (*AuthService, error) {
	if storage == nil || signer == nil || ledger == nil || cookies == nil {
		return nil, errors.New("storage, signer, ledger and cookies must not be nil")
	}

	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = defaultAccessTTL
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = defaultRefreshTTL
	}
	if cfg.Hasher == nil {
		cfg.Hasher = DefaultHasher
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &AuthService{
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		hasher:     cfg.Hasher,
		now:        cfg.Now,
		storage:    storage,
		signer:     signer,
		ledger:     ledger,
		cookies:    cookies,
		notifier:   notifier,
		logger:     logger,
	}, nil
}

// Login checks the user password and starts a new session
// Every token the user has is revoked, so only the session returned stays alive
//
// Tokens from request cookies are checked before revocation. If the access token
// was still honored no new access token is issued, but a new refresh token is.
// If the refresh token was not honored a new one is issued as well.
func (s *AuthService) Login(ctx context.Context, username string, password string, access string, refresh string) (models.Session, error) {
	var session models.Session

	err := s.storage.InTx(ctx, func(storage repository.Storage) error {
		user, err := storage.User().GetUserByUsername(ctx, username)
		switch {
		case errors.Is(err, apperrors.ErrUserNotFound):
			return apperrors.ErrInvalidCredentials
		case err != nil:
			return err
		}

		if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
			return apperrors.ErrInvalidCredentials
		}

		l := s.ledger.With(storage.Token())

		accessValid, err := s.honored(ctx, l, access, models.TokenAccess, user)
		if err != nil {
			return err
		}
		refreshValid, err := s.honored(ctx, l, refresh, models.TokenRefresh, user)
		if err != nil {
			return err
		}

		swept, err := l.RevokeAll(ctx, user.ID)
		if err != nil {
			return err
		}

		session.User = user
		if !accessValid {
			session.Access, err = s.issue(ctx, l, user, models.TokenAccess)
			if err != nil {
				return err
			}
		}
		if !refreshValid || accessValid {
			session.Refresh, err = s.issue(ctx, l, user, models.TokenRefresh)
			if err != nil {
				return err
			}
		}

		s.logger.Info("User logged in",
			"user_id", user.ID,
			"access_issued", session.Access != nil,
			"refresh_issued", session.Refresh != nil,
			"tokens_disabled", swept.Disabled,
			"tokens_deleted", swept.Deleted,
		)
		return nil
	})
	if err != nil {
		return models.Session{}, fmt.Errorf("login failed: %w", err)
	}

	if session.User.ContactID != nil {
		s.notifyUser(ctx, *session.User.ContactID, "Someone logged in to your account at "+s.now().Format(notifyTimeLayout))
	}

	return session, nil
}

// Refresh issues a new access token for a honored refresh token
// The refresh token itself stays as is
func (s *AuthService) Refresh(ctx context.Context, refresh string) (models.Session, error) {
	var session models.Session

	cred, err := s.signer.Verify(refresh)
	if err != nil {
		return session, fmt.Errorf("refresh failed: %w", err)
	}

	err = s.storage.InTx(ctx, func(storage repository.Storage) error {
		user, err := storage.User().GetUserByUsername(ctx, cred.Subject)
		switch {
		case errors.Is(err, apperrors.ErrUserNotFound):
			return fmt.Errorf("%w: %w", apperrors.ErrTokenInvalid, err)
		case err != nil:
			return err
		}

		l := s.ledger.With(storage.Token())
		if _, err := l.Check(ctx, refresh, models.TokenRefresh, user.ID); err != nil {
			return err
		}

		session.User = user
		session.Access, err = s.issue(ctx, l, user, models.TokenAccess)
		if err != nil {
			return err
		}

		s.logger.Debug("Access token refreshed", "user_id", user.ID)
		return nil
	})
	if err != nil {
		return models.Session{}, fmt.Errorf("refresh failed: %w", err)
	}

	return session, nil
}

// Logout revokes every token of the access token owner
// The access token may be expired. Unknown or broken token is not an error:
// there is nothing to revoke and the client cookies are cleared anyway
func (s *AuthService) Logout(ctx context.Context, access string) error {
	if access == "" {
		s.logger.Debug("Logout without access token, nothing to revoke")
		return nil
	}

	cred, err := s.signer.Decode(access)
	if err != nil {
		s.logger.Warn("Logout with undecodable access token, nothing to revoke", "error", err)
		return nil
	}

	err = s.storage.InTx(ctx, func(storage repository.Storage) error {
		user, err := storage.User().GetUserByUsername(ctx, cred.Subject)
		switch {
		case errors.Is(err, apperrors.ErrUserNotFound):
			s.logger.Warn("Logout of unknown user, nothing to revoke")
			return nil
		case err != nil:
			return err
		}

		swept, err := s.ledger.With(storage.Token()).RevokeAll(ctx, user.ID)
		if err != nil {
			return err
		}

		s.logger.Info("User logged out", "user_id", user.ID, "tokens_disabled", swept.Disabled, "tokens_deleted", swept.Deleted)
		return nil
	})
	if err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}

	return nil
}

// ChangePassword sets new password and revokes every user token
func (s *AuthService) ChangePassword(ctx context.Context, principal models.Principal, oldPassword string, newPassword string, newPasswordAgain string) error {
	var user models.User

	err := s.storage.InTx(ctx, func(storage repository.Storage) error {
		var err error
		user, err = storage.User().GetUserByID(ctx, principal.UserID)
		if err != nil {
			return err
		}

		if err := s.hasher.Compare(user.HashedPassword, oldPassword); err != nil {
			return apperrors.ErrInvalidCredentials
		}
		if err := s.hasher.Compare(user.HashedPassword, newPassword); err == nil {
			return apperrors.ErrPasswordUnchanged
		}
		if newPassword != newPasswordAgain {
			return apperrors.ErrPasswordMismatch
		}

		hash, err := s.hasher.Hash(newPassword)
		if err != nil {
			return fmt.Errorf("can't use this as password, Err: %w", err)
		}
		if err := storage.User().UpdatePassword(ctx, user.ID, hash); err != nil {
			return err
		}

		swept, err := s.ledger.With(storage.Token()).RevokeAll(ctx, user.ID)
		if err != nil {
			return err
		}

		s.logger.Info("User password changed", "user_id", user.ID, "tokens_disabled", swept.Disabled, "tokens_deleted", swept.Deleted)
		return nil
	})
	if err != nil {
		return fmt.Errorf("change password failed: %w", err)
	}

	s.notifyAdmin(ctx, fmt.Sprintf("Password of user %s was changed", user.Username))
	if user.ContactID != nil {
		s.notifyUser(ctx, *user.ContactID, "Your password was changed at "+s.now().Format(notifyTimeLayout))
	}

	return nil
}

// ChangeContact sets chat id for notifications and revokes every user token
func (s *AuthService) ChangeContact(ctx context.Context, principal models.Principal, password string, contactID int64) error {
	var user models.User

	err := s.storage.InTx(ctx, func(storage repository.Storage) error {
		var err error
		user, err = storage.User().GetUserByID(ctx, principal.UserID)
		if err != nil {
			return err
		}

		if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
			return apperrors.ErrInvalidCredentials
		}

		if err := storage.User().UpdateContact(ctx, user.ID, &contactID); err != nil {
			return err
		}

		swept, err := s.ledger.With(storage.Token()).RevokeAll(ctx, user.ID)
		if err != nil {
			return err
		}

		s.logger.Info("User contact changed", "user_id", user.ID, "tokens_disabled", swept.Disabled, "tokens_deleted", swept.Deleted)
		return nil
	})
	if err != nil {
		return fmt.Errorf("change contact failed: %w", err)
	}

	s.notifyAdmin(ctx, fmt.Sprintf("Contact of user %s was changed from %s to %d", user.Username, formatContact(user.ContactID), contactID))

	return nil
}

// Authenticate resolves the principal from access token
// Any error means the request is anonymous
func (s *AuthService) Authenticate(ctx context.Context, access string) (models.Principal, error) {
	cred, err := s.signer.Verify(access)
	if err != nil {
		return models.Principal{}, err
	}

	user, err := s.storage.User().GetUserByUsername(ctx, cred.Subject)
	if err != nil {
		return models.Principal{}, fmt.Errorf("error while getting token owner. Err: %w", err)
	}

	if _, err := s.ledger.Check(ctx, access, models.TokenAccess, user.ID); err != nil {
		return models.Principal{}, err
	}

	return models.NewPrincipal(user), nil
}

// Write cookies for the tokens issued in the session
func (s *AuthService) SetSession(w http.ResponseWriter, session models.Session) {
	if session.Access != nil {
		http.SetCookie(w, s.cookies.Access(session.Access.Value))
	}
	if session.Refresh != nil {
		http.SetCookie(w, s.cookies.Refresh(session.Refresh.Value))
	}
}

// Ask client to delete both session cookies
func (s *AuthService) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, s.cookies.ClearAccess())
	http.SetCookie(w, s.cookies.ClearRefresh())
}

func (s *AuthService) AccessFromRequest(r *http.Request) string {
	return s.cookies.ReadAccess(r)
}

func (s *AuthService) RefreshFromRequest(r *http.Request) string {
	return s.cookies.ReadRefresh(r)
}

// Check the token from client is still good for the user
// Only database errors are returned, any other failure means 'not honored'
func (s *AuthService) honored(ctx context.Context, l *ledger.Ledger, value string, kind models.TokenKind, user models.User) (bool, error) {
	if value == "" {
		return false, nil
	}

	cred, err := s.signer.Verify(value)
	if err != nil || cred.Subject != user.Username {
		return false, nil
	}

	_, err = l.Check(ctx, value, kind, user.ID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, apperrors.ErrTokenInvalid):
		return false, nil
	default:
		return false, err
	}
}

// Sign and record new token
func (s *AuthService) issue(ctx context.Context, l *ledger.Ledger, user models.User, kind models.TokenKind) (*models.IssuedToken, error) {
	ttl, claims := s.refreshTTL, signer.Claims{}
	if kind == models.TokenAccess {
		ttl, claims = s.accessTTL, signer.Claims{Role: user.Role.Authority()}
	}

	issued, err := s.signer.Issue(user.Username, claims, ttl)
	if err != nil {
		return nil, err
	}

	if _, err := l.Record(ctx, kind, user.ID, issued); err != nil {
		return nil, err
	}

	return &issued, nil
}

func (s *AuthService) notifyUser(ctx context.Context, chatID int64, text string) {
	if s.notifier != nil {
		s.notifier.NotifyUser(ctx, chatID, text)
	}
}

func (s *AuthService) notifyAdmin(ctx context.Context, text string) {
	if s.notifier != nil {
		s.notifier.NotifyAdmin(ctx, text)
	}
}

func formatContact(contactID *int64) string {
	if contactID == nil {
		return "none"
	}
	return strconv.FormatInt(*contactID, 10)
}
