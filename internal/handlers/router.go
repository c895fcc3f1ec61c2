package handlers

import (
	"context"
	"net/http"

	"github.com/nkiryanov/smarthome/internal/handlers/middleware"
	"github.com/nkiryanov/smarthome/internal/logger"
	"github.com/nkiryanov/smarthome/internal/models"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(authService authService, logger logger.Logger) http.Handler {
	apiauth := http.NewServeMux()

	apiauth.Handle("POST /login", handleLogin(authService, logger))
	apiauth.Handle("POST /refresh", handleRefresh(authService, logger))
	apiauth.Handle("POST /logout", handleLogout(authService, logger))

	apiauth.Handle("GET /info", middleware.RequireAuth(handleInfo()))
	apiauth.Handle("PATCH /change-password", middleware.RequireAuth(handleChangePassword(authService, logger)))
	apiauth.Handle("PATCH /change-contact", middleware.RequireAuth(handleChangeContact(authService, logger)))

	root := http.NewServeMux()
	root.Handle("/auth/", http.StripPrefix("/auth", apiauth))

	handler := chain(root,
		middleware.Authenticate(authService, logger),
		middleware.LoggerMiddleware(logger),
	)

	return handler
}

type authService interface {
	// Login user with username and password
	// Tokens from request cookies are passed to keep the ones still honored
	// Has to return apperrors.ErrInvalidCredentials if username or password is wrong
	Login(ctx context.Context, username string, password string, access string, refresh string) (models.Session, error)

	// Issue new access token using refresh token
	// Has to return apperrors.ErrTokenInvalid if refresh token is not honored
	Refresh(ctx context.Context, refresh string) (models.Session, error)

	// Revoke every token of the access token owner
	Logout(ctx context.Context, access string) error

	ChangePassword(ctx context.Context, principal models.Principal, oldPassword string, newPassword string, newPasswordAgain string) error
	ChangeContact(ctx context.Context, principal models.Principal, password string, contactID int64) error

	// Resolve principal by access token, any error means request is anonymous
	Authenticate(ctx context.Context, access string) (models.Principal, error)

	// Cookies transport
	SetSession(w http.ResponseWriter, session models.Session)
	ClearSession(w http.ResponseWriter)
	AccessFromRequest(r *http.Request) string
	RefreshFromRequest(r *http.Request) string
}
