package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/standby/internal/httpserver/deps"
)

// Surface selects which set of routes a server exposes.
type Surface int

const (
	// Instance is the RPC surface of one OrderService worker.
	Instance Surface = iota
	// Supervisor is the read-only status surface of the supervisor process.
	Supervisor
)

type (
	Registrar  func(r chi.Router, d deps.Deps)
	Middleware = func(http.Handler) http.Handler
)

type entry struct {
	reg Registrar
	mws []Middleware
}

var registry = map[Surface][]entry{}

// Register a registrar on a surface with optional per-route middlewares.
func Register(s Surface, reg Registrar, mws ...Middleware) {
	registry[s] = append(registry[s], entry{reg: reg, mws: mws})
}

// Called once per server from httpserver.New()
func RegisterAll(s Surface, r chi.Router, d deps.Deps) {
	for _, e := range registry[s] {
		if len(e.mws) == 0 {
			e.reg(r, d)
			continue
		}
		sub := r.With(e.mws...) // apply per-route middlewares
		e.reg(sub, d)
	}
}
