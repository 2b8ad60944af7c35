package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/standby/internal/api"
	"github.com/MrSnakeDoc/standby/internal/httpserver/deps"
	"github.com/MrSnakeDoc/standby/internal/httpserver/handlers"
)

func init() { Register(Instance, registerLiveness) }

func registerLiveness(r chi.Router, d deps.Deps) {
	r.Get(api.PathAlive, handlers.Alive(d))
	r.Post(api.PathShutdown, handlers.Shutdown(d))
}
