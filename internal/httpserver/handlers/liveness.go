package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/standby/internal/api"
	"github.com/MrSnakeDoc/standby/internal/httpserver/deps"
	"github.com/MrSnakeDoc/standby/internal/logger"
)

func Alive(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, api.AliveResponse{Alive: d.Service.IsAlive()}, d.Logger)
	}
}

// Shutdown acknowledges first and latches the instance afterwards: callers
// do not wait for a reply, and the worker stops serving once Done fires.
func Shutdown(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		d.Logger.Info("shutting down instance", logger.String("member", d.Service.ID()))
		d.Service.Shutdown()
	}
}
