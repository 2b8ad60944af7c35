package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/standby/internal/api"
	"github.com/MrSnakeDoc/standby/internal/httpserver/deps"
	"github.com/MrSnakeDoc/standby/internal/httpserver/handlers"
)

func init() { Register(Instance, registerActivation) }

func registerActivation(r chi.Router, d deps.Deps) {
	r.Post(api.PathActivate, handlers.Activate(d))
	r.Post(api.PathDeactivate, handlers.Deactivate(d))
	r.Get(api.PathActive, handlers.Active(d))
}
