package handlers

import (
	"errors"
	"net/http"

	"github.com/nkiryanov/smarthome/internal/apperrors"
	"github.com/nkiryanov/smarthome/internal/handlers/render"
	"github.com/nkiryanov/smarthome/internal/handlers/userctx"
	"github.com/nkiryanov/smarthome/internal/logger"
)

type sessionResponse struct {
	Authenticated bool    `json:"authenticated"`
	Role          *string `json:"role"`
}

func authenticated(role string) sessionResponse {
	return sessionResponse{Authenticated: true, Role: &role}
}

var anonymous = sessionResponse{Authenticated: false, Role: nil}

// Render service error as http response
func renderError(w http.ResponseWriter, err error, l logger.Logger) {
	switch {
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		render.ServiceError(w, "Invalid credentials", http.StatusUnauthorized)
	case errors.Is(err, apperrors.ErrTokenInvalid),
		errors.Is(err, apperrors.ErrTokenNotFound),
		errors.Is(err, apperrors.ErrUserNotFound):
		render.ServiceError(w, "Token is invalid, please log in again", http.StatusUnauthorized)
	case errors.Is(err, apperrors.ErrPasswordUnchanged):
		render.ServiceError(w, "New password can't be equal to old password", http.StatusBadRequest)
	case errors.Is(err, apperrors.ErrPasswordMismatch):
		render.ServiceError(w, "New passwords don't match", http.StatusBadRequest)
	default:
		l.Error("Request failed", "error", err)
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
	}
}

func handleLogin(s authService, l logger.Logger) http.Handler {
	type request struct {
		Username string `json:"username" validate:"required,notblank,max=255"`
		Password string `json:"password" validate:"required,notblank"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		session, err := s.Login(r.Context(), data.Username, data.Password, s.AccessFromRequest(r), s.RefreshFromRequest(r))
		if err != nil {
			renderError(w, err, l)
			return
		}

		s.SetSession(w, session)
		render.JSON(w, authenticated(session.User.Role.Name))
	})
}

func handleRefresh(s authService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refresh := s.RefreshFromRequest(r)
		if refresh == "" {
			render.ServiceError(w, "Token is invalid, please log in again", http.StatusUnauthorized)
			return
		}

		session, err := s.Refresh(r.Context(), refresh)
		if err != nil {
			renderError(w, err, l)
			return
		}

		s.SetSession(w, session)
		render.JSON(w, authenticated(session.User.Role.Name))
	})
}

func handleLogout(s authService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := s.Logout(r.Context(), s.AccessFromRequest(r))
		if err != nil {
			renderError(w, err, l)
			return
		}

		s.ClearSession(w)
		render.JSON(w, anonymous)
	})
}

func handleChangePassword(s authService, l logger.Logger) http.Handler {
	type request struct {
		OldPassword      string `json:"oldPassword" validate:"required"`
		NewPassword      string `json:"newPassword" validate:"required,notblank"`
		NewPasswordAgain string `json:"newPasswordAgain" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		err = s.ChangePassword(r.Context(), principal, data.OldPassword, data.NewPassword, data.NewPasswordAgain)
		if err != nil {
			renderError(w, err, l)
			return
		}

		s.ClearSession(w)
		render.JSON(w, anonymous)
	})
}

func handleChangeContact(s authService, l logger.Logger) http.Handler {
	type request struct {
		Password     string `json:"password" validate:"required"`
		NewContactID int64  `json:"newContactId" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		err = s.ChangeContact(r.Context(), principal, data.Password, data.NewContactID)
		if err != nil {
			renderError(w, err, l)
			return
		}

		s.ClearSession(w)
		render.JSON(w, anonymous)
	})
}
