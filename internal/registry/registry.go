// Package registry owns the fixed set of OrderService instances supervised
// by this process: it starts one worker per instance, publishes each under a
// unique directory name, and tears everything down again.
package registry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/standby/internal/directory"
	"github.com/MrSnakeDoc/standby/internal/domain"
	"github.com/MrSnakeDoc/standby/internal/failover"
	"github.com/MrSnakeDoc/standby/internal/httpserver"
	"github.com/MrSnakeDoc/standby/internal/httpserver/deps"
	"github.com/MrSnakeDoc/standby/internal/httpserver/routes"
	"github.com/MrSnakeDoc/standby/internal/logger"
	"github.com/MrSnakeDoc/standby/internal/transport"
	"github.com/MrSnakeDoc/standby/internal/utils"
	"github.com/MrSnakeDoc/standby/internal/version"
)

// ErrDirectoryRegistration is returned by Bootstrap when a member could not
// be published. The registry is unusable afterwards.
var ErrDirectoryRegistration = errors.New("directory registration failed")

const (
	DefaultPrefix      = "order-service-"
	DefaultCallTimeout = 2 * time.Second
)

// MemberSpec describes how to start one member.
type MemberSpec struct {
	ID     string
	Listen string // host:port, port 0 picks a free one
}

// Options configures a Registry.
type Options struct {
	Prefix      string        // directory name prefix
	Host        string        // bind host for members without a Fleet entry
	BasePort    int           // member i listens on BasePort+i, 0 = ephemeral
	Fleet       []MemberSpec  // explicit specs, used by index before the defaults
	CallTimeout time.Duration // per remote call timeout of member clients
}

// Member is one registry entry.
type Member struct {
	Index    int
	ID       string
	Name     string
	Endpoint string
	Service  *domain.OrderService
	Client   *transport.Client

	worker *httpserver.Server
	ln     net.Listener
}

// Registry is index-stable once Bootstrap has returned.
type Registry struct {
	dir    directory.Directory
	logger logger.Logger
	opts   Options

	members  []*Member
	workers  *errgroup.Group
	released chan struct{}
	once     sync.Once

	// mu serializes directory writes made after Bootstrap.
	mu sync.Mutex

	shuttingDown *atomic.Bool
}

func New(dir directory.Directory, opts Options, log logger.Logger) *Registry {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.Host == "" {
		opts.Host = "127.0.0.1"
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}

	return &Registry{
		dir:          dir,
		logger:       log,
		opts:         opts,
		workers:      new(errgroup.Group),
		released:     make(chan struct{}),
		shuttingDown: atomic.NewBool(false),
	}
}

// Name returns the directory name of a member id.
func (r *Registry) Name(id string) string {
	return r.opts.Prefix + id
}

func (r *Registry) spec(i int) MemberSpec {
	if i < len(r.opts.Fleet) {
		s := r.opts.Fleet[i]
		if s.ID == "" {
			s.ID = strconv.Itoa(i)
		}
		return s
	}
	port := 0
	if r.opts.BasePort > 0 {
		port = r.opts.BasePort + i
	}
	return MemberSpec{
		ID:     strconv.Itoa(i),
		Listen: net.JoinHostPort(r.opts.Host, strconv.Itoa(port)),
	}
}

// Bootstrap creates n inactive members, starts their workers and registers
// them in the directory, in creation order. Any failure is fatal: whatever
// was started is released and an error is returned.
func (r *Registry) Bootstrap(ctx context.Context, n int) ([]*Member, error) {
	if n <= 0 {
		return nil, fmt.Errorf("bootstrap: member count must be > 0, got %d", n)
	}
	if len(r.members) > 0 {
		return nil, fmt.Errorf("bootstrap: registry already populated")
	}

	specs := make([]MemberSpec, n)
	names := make([]string, n)
	seen := make(map[string]bool, n)
	for i := range specs {
		specs[i] = r.spec(i)
		names[i] = r.Name(specs[i].ID)
		if seen[names[i]] {
			return nil, fmt.Errorf("bootstrap: duplicate member id %q", specs[i].ID)
		}
		seen[names[i]] = true
	}

	if err := r.claimNamespace(ctx, names); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDirectoryRegistration, err)
	}

	for i, spec := range specs {
		m, err := r.startMember(i, spec)
		if err != nil {
			r.abort(ctx)
			return nil, fmt.Errorf("bootstrap member %s: %w", spec.ID, err)
		}
		r.members = append(r.members, m)

		if err := r.dir.Register(ctx, m.Name, m.Endpoint); err != nil {
			r.abort(ctx)
			return nil, fmt.Errorf("%w: %s: %w", ErrDirectoryRegistration, m.Name, err)
		}

		r.logger.Info("member registered",
			logger.String("member", m.ID),
			logger.String("name", m.Name),
			logger.String("endpoint", m.Endpoint))
	}

	return r.Members(), nil
}

// claimNamespace removes stale entries for the names this registry is about
// to publish. Entries owned by anyone else are left alone.
func (r *Registry) claimNamespace(ctx context.Context, names []string) error {
	existing, err := r.dir.List(ctx)
	if err != nil {
		return fmt.Errorf("claim namespace: %w", err)
	}

	ours := make(map[string]bool, len(names))
	for _, n := range names {
		ours[n] = true
	}

	for _, name := range existing {
		if !ours[name] {
			continue
		}
		if err := r.dir.Remove(ctx, name); err != nil {
			return fmt.Errorf("claim namespace: remove %s: %w", name, err)
		}
		r.logger.Info("removed stale directory entry", logger.String("name", name))
	}
	return nil
}

func (r *Registry) startMember(i int, spec MemberSpec) (*Member, error) {
	ln, err := net.Listen("tcp", spec.Listen)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", spec.Listen, err)
	}

	addr := ln.Addr().String()
	name := r.Name(spec.ID)
	svc := domain.NewOrderService(spec.ID, false)
	log := r.logger.With(logger.String("member", spec.ID))

	worker := httpserver.New(addr, routes.Instance, log, deps.Deps{
		Logger:    log,
		StartTime: time.Now(),
		Version:   version.Version,
		Commit:    version.Commit,
		BuildDate: version.BuildDate,
		GoVersion: version.GoVersion,
		TimeNow:   time.Now,
		Service:   svc,
	})

	m := &Member{
		Index:    i,
		ID:       spec.ID,
		Name:     name,
		Endpoint: "http://" + addr,
		Service:  svc,
		Client:   transport.New(spec.ID, name, "http://"+addr, r.opts.CallTimeout, r.logger),
		worker:   worker,
		ln:       ln,
	}

	r.workers.Go(func() error {
		if err := worker.Serve(ln); err != nil {
			return fmt.Errorf("member %s worker: %w", spec.ID, err)
		}
		return nil
	})

	// The worker stops serving once its instance has been told to shut down.
	go func() {
		select {
		case <-svc.Done():
			ctx, cancel := context.WithTimeout(context.Background(), r.opts.CallTimeout)
			defer cancel()
			if err := worker.Stop(ctx); err != nil {
				log.Warn("worker did not stop cleanly", logger.Error(err))
			}
		case <-r.released:
		}
	}()

	return m, nil
}

// abort undoes a partial bootstrap.
func (r *Registry) abort(ctx context.Context) {
	if err := r.Teardown(ctx); err != nil {
		r.logger.Warn("cleanup after failed bootstrap incomplete", logger.Error(err))
	}
	r.members = nil
}

// Members returns the members in registry order.
func (r *Registry) Members() []*Member {
	out := make([]*Member, len(r.members))
	copy(out, r.members)
	return out
}

// Member looks a member up by id.
func (r *Registry) Member(id string) (*Member, bool) {
	for _, m := range r.members {
		if m.ID == id {
			return m, true
		}
	}
	return nil, false
}

func (r *Registry) Len() int { return len(r.members) }

// Clients returns the coordinator's handles on the members, in registry order.
func (r *Registry) Clients() []failover.Member {
	out := make([]failover.Member, len(r.members))
	for i, m := range r.members {
		out[i] = m.Client
	}
	return out
}

// ShuttingDown reports whether the shutdown protocol has started.
func (r *Registry) ShuttingDown() bool {
	return r.shuttingDown.Load()
}

// Shutdown is the shutdown protocol: for every member, in registry order,
// send the stop signal, remove its directory name and release its worker.
// Failures are collected and never stop the remaining members.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.shuttingDown.Store(true)
	r.logger.Info("shutdown initiated", logger.Int("members", len(r.members)))

	var errs error
	for _, m := range r.members {
		m.Client.Shutdown(ctx)
		errs = multierr.Append(errs, r.teardownMember(ctx, m))
	}
	r.finish()
	return errs
}

// Teardown removes every member's directory name and releases its worker,
// without signalling the instances first.
func (r *Registry) Teardown(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs error
	for _, m := range r.members {
		errs = multierr.Append(errs, r.teardownMember(ctx, m))
	}
	r.finish()
	return errs
}

// Reconcile re-registers members whose directory entry is missing or points
// elsewhere, and returns how many were restored. It does nothing once the
// registry has been torn down.
func (r *Registry) Reconcile(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	select {
	case <-r.released:
		return 0, nil
	default:
	}

	restored := 0
	for _, m := range r.members {
		endpoint, err := r.dir.Lookup(ctx, m.Name)
		switch {
		case err == nil && endpoint == m.Endpoint:
			continue
		case err != nil && !errors.Is(err, directory.ErrNotFound):
			return restored, fmt.Errorf("lookup %s: %w", m.Name, err)
		}

		if err := r.dir.Register(ctx, m.Name, m.Endpoint); err != nil {
			return restored, fmt.Errorf("%w: %s: %w", ErrDirectoryRegistration, m.Name, err)
		}
		r.logger.Warn("restored directory entry",
			logger.String("member", m.ID),
			logger.String("name", m.Name),
			logger.String("previous", endpoint))
		restored++
	}
	return restored, nil
}

func (r *Registry) teardownMember(ctx context.Context, m *Member) error {
	var errs error

	if err := r.dir.Remove(ctx, m.Name); err != nil {
		r.logger.Warn("failed to deregister member",
			logger.String("member", m.ID),
			logger.String("name", m.Name),
			logger.Error(err))
		errs = multierr.Append(errs, fmt.Errorf("deregister %s: %w", m.Name, err))
	}

	if err := r.release(ctx, m); err != nil {
		r.logger.Warn("failed to release member",
			logger.String("member", m.ID),
			logger.Error(err))
		errs = multierr.Append(errs, fmt.Errorf("release %s: %w", m.ID, err))
	}

	if errs == nil {
		r.logger.Info("member torn down", logger.String("member", m.ID), logger.String("name", m.Name))
	}
	return errs
}

// release latches the hosted instance and stops its worker.
func (r *Registry) release(ctx context.Context, m *Member) error {
	m.Service.Shutdown()
	err := m.worker.Stop(ctx)
	utils.Close(m.ln)
	return multierr.Append(err, m.Client.Close())
}

func (r *Registry) finish() {
	r.once.Do(func() { close(r.released) })
}

// Wait blocks until every worker has returned and reports the first worker error.
func (r *Registry) Wait() error {
	return r.workers.Wait()
}
