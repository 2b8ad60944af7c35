package failover

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/MrSnakeDoc/standby/internal/domain"
	"github.com/MrSnakeDoc/standby/internal/logger"
)

const (
	DefaultPollInterval    = 5 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
)

// errNotServing is the verified-promotion failure: the activate call went
// through but the member does not answer the liveness probe.
var errNotServing = fmt.Errorf("activated but not alive: %w", domain.ErrUnreachable)

// Options configures a Coordinator.
type Options struct {
	PollInterval time.Duration
	// VerifyPromotion re-checks liveness after a successful activate call and
	// counts a dead member as a failed attempt. Off by default: a returned
	// activate call is enough to leave the degraded state.
	VerifyPromotion bool
	// ShutdownTimeout bounds the shutdown protocol run on termination.
	ShutdownTimeout time.Duration
}

// Snapshot is a point-in-time view of the coordinator.
type Snapshot struct {
	State      State
	Active     string
	LastPoll   time.Time
	Promotions int
}

// Coordinator owns the monitoring loop. It holds member handles for
// monitoring and control only; it does not own their lifetime.
type Coordinator struct {
	members  []Member
	shutdown ShutdownProtocol
	logger   logger.Logger
	opts     Options
	now      func() time.Time

	terminated *atomic.Bool
	promotions *atomic.Int64

	mu       sync.RWMutex
	state    State
	active   string
	lastPoll time.Time
}

// New creates a coordinator over members, in promotion order.
func New(members []Member, shutdown ShutdownProtocol, opts Options, log logger.Logger) *Coordinator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}

	return &Coordinator{
		members:    members,
		shutdown:   shutdown,
		logger:     log,
		opts:       opts,
		now:        time.Now,
		terminated: atomic.NewBool(false),
		promotions: atomic.NewInt64(0),
	}
}

// Start activates the first member. It is the only forced transition into
// Stable; if the call fails the first poll finds the system degraded.
func (c *Coordinator) Start(ctx context.Context) error {
	if len(c.members) == 0 {
		return fmt.Errorf("no members to supervise")
	}

	first := c.members[0]
	if _, err := first.Activate(ctx); err != nil {
		if !errors.Is(err, domain.ErrUnreachable) {
			return fmt.Errorf("activate %s: %w", first.ID(), err)
		}
		c.logger.Warn("initial activation failed, waiting for first poll",
			logger.String("member", first.ID()),
			logger.Error(err))
		c.setState(StateDegraded, "")
		return nil
	}

	c.logger.Info("member activated", logger.String("member", first.ID()), logger.Int("index", 0))
	c.setState(StateStable, first.ID())
	return nil
}

// Run polls until the coordinator terminates or ctx is cancelled. The wait
// between polls is a ticker select, so cancellation is honoured between
// iterations and never interrupts one.
func (c *Coordinator) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	c.logger.Info("failover coordinator started",
		logger.Duration("interval", c.opts.PollInterval),
		logger.Int("members", len(c.members)),
		logger.Bool("verify_promotion", c.opts.VerifyPromotion))

	for !c.terminated.Load() {
		select {
		case <-ctx.Done():
			c.logger.Info("failover coordinator stopping", logger.Error(ctx.Err()))
			return nil
		case <-ticker.C:
			if err := c.Tick(ctx); err != nil {
				if ctx.Err() != nil {
					c.logger.Info("failover coordinator stopping", logger.Error(ctx.Err()))
					return nil
				}
				c.logger.Error("failover coordinator aborted", logger.Error(err))
				return err
			}
		}
	}

	c.logger.Info("failover coordinator terminated")
	return nil
}

// Tick runs one loop body: scan, then promote if degraded, then terminate
// if promotion is impossible.
func (c *Coordinator) Tick(ctx context.Context) error {
	if c.terminated.Load() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.lastPoll = c.now()
	c.mu.Unlock()

	active, err := c.Scan(ctx)
	if err != nil {
		return err
	}
	if active != nil {
		c.setState(StateStable, active.ID())
		return nil
	}

	c.logger.Warn("degraded: no confirmed active member")
	c.setState(StateDegraded, "")

	p, err := c.Promote(ctx)
	switch {
	case err == nil:
		c.promotions.Inc()
		c.setState(StateStable, p.Promoted)
		return nil
	case errors.Is(err, ErrAllMembersUnpromotable):
		c.terminate(ctx, p)
		return nil
	default:
		return err
	}
}

// Scan returns the first member, in registry order, that reports itself
// both active and alive, or nil when there is none. Unreachable members are
// skipped.
func (c *Coordinator) Scan(ctx context.Context) (Member, error) {
	for _, m := range c.members {
		ok, err := c.confirm(ctx, m)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if errors.Is(err, domain.ErrUnreachable) {
				c.logger.Debug("member unreachable during scan",
					logger.String("member", m.ID()),
					logger.Error(err))
				continue
			}
			return nil, fmt.Errorf("scan %s: %w", m.ID(), err)
		}
		if ok {
			return m, nil
		}
	}
	return nil, nil
}

func (c *Coordinator) confirm(ctx context.Context, m Member) (bool, error) {
	active, err := m.IsActive(ctx)
	if err != nil || !active {
		return false, err
	}
	return m.IsAlive(ctx)
}

// Promote tries to activate members from index 0 upward and stops at the
// first success. Unreachable members are recorded and skipped; any other
// error aborts the episode.
func (c *Coordinator) Promote(ctx context.Context) (Promotion, error) {
	p := Promotion{Index: -1}

	for i, m := range c.members {
		c.logger.Info("promotion attempt", logger.String("member", m.ID()), logger.Int("index", i))

		err := c.activate(ctx, m)
		if err != nil && ctx.Err() != nil {
			// An interrupted episode says nothing about the members.
			return p, ctx.Err()
		}
		p.Attempts = append(p.Attempts, Attempt{Index: i, Member: m.ID(), Err: err})

		if err == nil {
			p.Promoted = m.ID()
			p.Index = i
			c.logger.Info("member promoted",
				logger.String("member", m.ID()),
				logger.Int("index", i),
				logger.String("promotion", p.String()))
			return p, nil
		}
		if !errors.Is(err, domain.ErrUnreachable) {
			return p, fmt.Errorf("activate %s: %w", m.ID(), err)
		}

		c.logger.Warn("promotion attempt failed",
			logger.String("member", m.ID()),
			logger.Int("index", i),
			logger.Error(err))
	}

	return p, ErrAllMembersUnpromotable
}

func (c *Coordinator) activate(ctx context.Context, m Member) error {
	if _, err := m.Activate(ctx); err != nil {
		return err
	}
	if !c.opts.VerifyPromotion {
		return nil
	}

	alive, err := m.IsAlive(ctx)
	if err != nil {
		return err
	}
	if !alive {
		return errNotServing
	}
	return nil
}

func (c *Coordinator) terminate(ctx context.Context, p Promotion) {
	c.terminated.Store(true)
	c.setState(StateTerminated, "")

	c.logger.Error("no member could be activated, shutting down",
		logger.Strings("failed", p.Failed()),
		logger.String("promotion", p.String()))

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.ShutdownTimeout)
	defer cancel()

	if err := c.shutdown.Shutdown(sctx); err != nil {
		c.logger.Warn("shutdown completed with errors", logger.Error(err))
	}
}

// Terminated reports whether the coordinator reached its final state.
func (c *Coordinator) Terminated() bool {
	return c.terminated.Load()
}

func (c *Coordinator) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		State:      c.state,
		Active:     c.active,
		LastPoll:   c.lastPoll,
		Promotions: int(c.promotions.Load()),
	}
}

func (c *Coordinator) setState(s State, active string) {
	c.mu.Lock()
	prev := c.state
	c.state = s
	c.active = active
	c.mu.Unlock()

	if prev != s {
		c.logger.Info("state changed",
			logger.String("from", prev.String()),
			logger.String("to", s.String()),
			logger.String("active", active))
	}
}
