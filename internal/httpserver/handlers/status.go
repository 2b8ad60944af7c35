package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/standby/internal/httpserver/deps"
)

func Status(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, d.Status(), d.Logger)
	}
}
