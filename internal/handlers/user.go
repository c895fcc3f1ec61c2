package handlers

import (
	"net/http"

	"github.com/nkiryanov/smarthome/internal/handlers/render"
	"github.com/nkiryanov/smarthome/internal/handlers/userctx"
)

func handleInfo() http.Handler {
	type response struct {
		Username    string   `json:"username"`
		Role        string   `json:"role"`
		Permissions []string `json:"permissions"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, _ := userctx.FromContext(r.Context())
		render.JSON(w, response{
			Username:    principal.Username,
			Role:        principal.Role,
			Permissions: principal.Permissions,
		})
	})
}
