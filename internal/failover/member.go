package failover

import "context"

// Member is the coordinator's remote handle on one OrderService.
type Member interface {
	ID() string
	IsActive(ctx context.Context) (bool, error)
	IsAlive(ctx context.Context) (bool, error)
	Activate(ctx context.Context) (string, error)
}

// ShutdownProtocol stops every member: signal, deregister, release.
type ShutdownProtocol interface {
	Shutdown(ctx context.Context) error
}
