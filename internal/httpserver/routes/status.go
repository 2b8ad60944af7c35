package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/standby/internal/httpserver/deps"
	"github.com/MrSnakeDoc/standby/internal/httpserver/handlers"
)

func init() { Register(Supervisor, registerStatus) }

func registerStatus(r chi.Router, d deps.Deps) {
	r.Get("/healthz", handlers.Healthz(d))
	r.Get("/readyz", handlers.Readyz(d))
	r.Get("/status", handlers.Status(d))
}
