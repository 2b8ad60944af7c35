package domain

import (
	"sync"
)

// Fixed replies of an OrderService. Callers only ever see one of these or a
// confirmation built by ProcessOrder.
const (
	RejectInactive     = "Sorry, this server is not active."
	RejectShuttingDown = "Sorry, this server is shutting down."
	ReplyActivated     = "Server activated."
	ReplyDeactivated   = "Server deactivated."
)

// OrderService is a single order-processing instance.
//
// Its mutable state (active flag, history and shutdown latch) is owned by the
// instance; remote callers only reach it through the transport.
type OrderService struct {
	id string

	mu           sync.RWMutex
	active       bool
	history      []string
	shuttingDown bool
	done         chan struct{}
}

// NewOrderService creates an instance with the given identifier and initial activation state.
func NewOrderService(id string, active bool) *OrderService {
	return &OrderService{
		id:     id,
		active: active,
		done:   make(chan struct{}),
	}
}

// ID returns the immutable identifier of the instance.
func (s *OrderService) ID() string {
	return s.id
}

// ProcessOrder records the order when the instance is active and returns a
// confirmation embedding the description. It never fails: an inactive or
// stopping instance answers with a fixed rejection and keeps its history untouched.
func (s *OrderService) ProcessOrder(description string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shuttingDown {
		return RejectShuttingDown
	}
	if !s.active {
		return RejectInactive
	}

	s.history = append(s.history, description)
	return "Your order of " + description + " has been received."
}

// OrderHistory returns a copy of the orders processed so far, oldest first.
func (s *OrderService) OrderHistory() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.history))
	copy(out, s.history)
	return out
}

func (s *OrderService) Activate() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = true
	return ReplyActivated
}

func (s *OrderService) Deactivate() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = false
	return ReplyDeactivated
}

func (s *OrderService) IsActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.active
}

// IsAlive reports whether the instance still serves requests.
func (s *OrderService) IsAlive() bool {
	return !s.ShuttingDown()
}

func (s *OrderService) ShuttingDown() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.shuttingDown
}

// Shutdown latches the instance into its terminal state. Calling it again is a no-op.
func (s *OrderService) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shuttingDown {
		return
	}
	s.shuttingDown = true
	close(s.done)
}

// Done is closed once Shutdown has been called.
func (s *OrderService) Done() <-chan struct{} {
	return s.done
}
