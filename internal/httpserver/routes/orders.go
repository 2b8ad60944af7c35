package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/standby/internal/api"
	"github.com/MrSnakeDoc/standby/internal/httpserver/deps"
	"github.com/MrSnakeDoc/standby/internal/httpserver/handlers"
)

func init() { Register(Instance, registerOrders, middleware.AllowContentType("application/json")) }

func registerOrders(r chi.Router, d deps.Deps) {
	r.Post(api.PathOrders, handlers.ProcessOrder(d))
	r.Get(api.PathOrders, handlers.OrderHistory(d))
}
