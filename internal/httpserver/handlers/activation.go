package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/standby/internal/api"
	"github.com/MrSnakeDoc/standby/internal/domain"
	"github.com/MrSnakeDoc/standby/internal/httpserver/deps"
	"github.com/MrSnakeDoc/standby/internal/logger"
)

// Activate refuses a stopping instance with 503 so callers treat it like a
// member that is already gone.
func Activate(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Service.ShuttingDown() {
			writeError(w, http.StatusServiceUnavailable, domain.RejectShuttingDown, d.Logger)
			return
		}
		msg := d.Service.Activate()
		d.Logger.Info("instance activated", logger.String("member", d.Service.ID()))
		writeJSON(w, http.StatusOK, api.MessageResponse{Message: msg}, d.Logger)
	}
}

func Deactivate(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		msg := d.Service.Deactivate()
		d.Logger.Info("instance deactivated", logger.String("member", d.Service.ID()))
		writeJSON(w, http.StatusOK, api.MessageResponse{Message: msg}, d.Logger)
	}
}

func Active(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, api.ActiveResponse{Active: d.Service.IsActive()}, d.Logger)
	}
}
