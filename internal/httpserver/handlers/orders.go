package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/MrSnakeDoc/standby/internal/api"
	"github.com/MrSnakeDoc/standby/internal/httpserver/deps"
)

// maxOrderBody bounds the size of an order request body.
const maxOrderBody = 64 << 10

func ProcessOrder(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req api.OrderRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxOrderBody)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid order body", d.Logger)
			return
		}

		writeJSON(w, http.StatusOK, api.MessageResponse{
			Message: d.Service.ProcessOrder(req.Description),
		}, d.Logger)
	}
}

func OrderHistory(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, api.HistoryResponse{
			History: d.Service.OrderHistory(),
		}, d.Logger)
	}
}
