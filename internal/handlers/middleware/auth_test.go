package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/smarthome/internal/handlers/userctx"
	applogger "github.com/nkiryanov/smarthome/internal/logger"
	"github.com/nkiryanov/smarthome/internal/models"
)

// Allow to use a function as authenticator
// Access token is read from 'access-token' cookie
type authFunc func(ctx context.Context, access string) (models.Principal, error)

func (f authFunc) AccessFromRequest(r *http.Request) string {
	c, err := r.Cookie("access-token")
	if err != nil {
		return ""
	}
	return c.Value
}

func (f authFunc) Authenticate(ctx context.Context, access string) (models.Principal, error) {
	return f(ctx, access)
}

// Simple handler that writes username of principal or 'anonymous'
var whoami = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	principal, ok := userctx.FromContext(r.Context())
	if !ok {
		_, _ = w.Write([]byte("anonymous"))
		return
	}
	_, _ = w.Write([]byte(principal.Username))
})

func serve(t *testing.T, h http.Handler, access string) (int, string) {
	r := httptest.NewRequest(http.MethodGet, "/test", nil)
	if access != "" {
		r.AddCookie(&http.Cookie{Name: "access-token", Value: access})
	}
	w := httptest.NewRecorder()

	h.ServeHTTP(w, r)

	resp := w.Result()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "should read response body")
	defer resp.Body.Close() // nolint:errcheck

	return resp.StatusCode, string(body)
}

func TestAuthenticate(t *testing.T) {
	called := 0
	as := authFunc(func(ctx context.Context, access string) (models.Principal, error) {
		called++
		if access != "good" {
			return models.Principal{}, errors.New("token is not honored")
		}
		return models.Principal{Username: "alice"}, nil
	})
	h := Authenticate(as, applogger.NewNoOpLogger())(whoami)

	t.Run("honored token", func(t *testing.T) {
		code, body := serve(t, h, "good")

		require.Equal(t, http.StatusOK, code)
		require.Equal(t, "alice", body)
	})

	t.Run("not honored token is anonymous", func(t *testing.T) {
		code, body := serve(t, h, "bad")

		require.Equal(t, http.StatusOK, code, "authenticator never rejects")
		require.Equal(t, "anonymous", body)
	})

	t.Run("no cookie", func(t *testing.T) {
		called = 0

		code, body := serve(t, h, "")

		require.Equal(t, http.StatusOK, code)
		require.Equal(t, "anonymous", body)
		require.Zero(t, called, "nothing to authenticate without cookie")
	})
}

func TestRequireAuth(t *testing.T) {
	as := authFunc(func(ctx context.Context, access string) (models.Principal, error) {
		return models.Principal{Username: "alice"}, nil
	})

	t.Run("principal passes", func(t *testing.T) {
		h := Authenticate(as, applogger.NewNoOpLogger())(RequireAuth(whoami))

		code, body := serve(t, h, "good")

		require.Equal(t, http.StatusOK, code)
		require.Equal(t, "alice", body)
	})

	t.Run("anonymous rejected", func(t *testing.T) {
		h := Authenticate(as, applogger.NewNoOpLogger())(RequireAuth(whoami))

		code, body := serve(t, h, "")

		require.Equal(t, http.StatusUnauthorized, code)
		require.JSONEq(t,
			`{
				"error": "service_error",
				"message": "Unauthorized"
			}`,
			body,
		)
	})
}

func TestRequirePermission(t *testing.T) {
	as := authFunc(func(ctx context.Context, access string) (models.Principal, error) {
		return models.Principal{Username: "alice", Role: "ROLE_USER", Permissions: []string{"DEVICE:READ"}}, nil
	})

	t.Run("has permission", func(t *testing.T) {
		h := Authenticate(as, applogger.NewNoOpLogger())(RequirePermission("DEVICE:READ")(whoami))

		code, body := serve(t, h, "good")

		require.Equal(t, http.StatusOK, code)
		require.Equal(t, "alice", body)
	})

	t.Run("lacks permission", func(t *testing.T) {
		h := Authenticate(as, applogger.NewNoOpLogger())(RequirePermission("DEVICE:DELETE")(whoami))

		code, body := serve(t, h, "good")

		require.Equal(t, http.StatusForbidden, code)
		require.JSONEq(t, `{"error": "service_error", "message": "Forbidden"}`, body)
	})

	t.Run("anonymous", func(t *testing.T) {
		h := Authenticate(as, applogger.NewNoOpLogger())(RequirePermission("DEVICE:READ")(whoami))

		code, _ := serve(t, h, "")

		require.Equal(t, http.StatusUnauthorized, code)
	})
}
