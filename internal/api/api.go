// Package api holds the JSON wire types shared by the instance workers and
// the transport client, plus the read-only supervisor status document.
package api

import "time"

// Instance RPC paths.
const (
	PathOrders     = "/orders"
	PathActivate   = "/activate"
	PathDeactivate = "/deactivate"
	PathActive     = "/active"
	PathAlive      = "/alive"
	PathShutdown   = "/shutdown"
)

type OrderRequest struct {
	Description string `json:"description"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type HistoryResponse struct {
	History []string `json:"history"`
}

type ActiveResponse struct {
	Active bool `json:"active"`
}

type AliveResponse struct {
	Alive bool `json:"alive"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// MemberStatus describes one registry member in the status document.
type MemberStatus struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"`
}

// Status is served by the supervisor on /status.
type Status struct {
	State        string         `json:"state"`
	ActiveMember string         `json:"active_member,omitempty"`
	LastPoll     time.Time      `json:"last_poll,omitempty"`
	Promotions   int            `json:"promotions"`
	Members      []MemberStatus `json:"members"`
}
