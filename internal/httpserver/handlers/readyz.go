package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/standby/internal/httpserver/deps"
)

type readyzResponse struct {
	Ready bool   `json:"ready"`
	State string `json:"state"`
}

// Readyz is ready only while an active member is confirmed.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := d.Status()
		ready := st.State == "stable"

		code := http.StatusOK
		if !ready {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, readyzResponse{Ready: ready, State: st.State}, d.Logger)
	}
}
