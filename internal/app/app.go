package app

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/standby/internal/api"
	"github.com/MrSnakeDoc/standby/internal/config"
	"github.com/MrSnakeDoc/standby/internal/directory"
	"github.com/MrSnakeDoc/standby/internal/failover"
	"github.com/MrSnakeDoc/standby/internal/httpserver"
	"github.com/MrSnakeDoc/standby/internal/httpserver/deps"
	"github.com/MrSnakeDoc/standby/internal/httpserver/routes"
	"github.com/MrSnakeDoc/standby/internal/logger"
	"github.com/MrSnakeDoc/standby/internal/redis"
	"github.com/MrSnakeDoc/standby/internal/registry"
	"github.com/MrSnakeDoc/standby/internal/scheduler"
	"github.com/MrSnakeDoc/standby/internal/utils"
	"github.com/MrSnakeDoc/standby/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	dir         directory.Directory
	redisClient *goredis.Client
	registry    *registry.Registry
	coordinator *failover.Coordinator
	reconciler  *scheduler.Reconciler
	status      *httpserver.Server
	statusAddr  string

	ready chan struct{} // closed once the coordinator and status server are up
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	a, err := NewWithConfig(cfg, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to initialize: %v", err)
		os.Exit(1)
	}
	return a
}

// NewWithConfig wires the directory and the registry. Nothing is started yet.
func NewWithConfig(cfg *config.Config, loggerClient logger.Logger) (*App, error) {
	a := &App{
		cfg:    cfg,
		logger: loggerClient,
		ready:  make(chan struct{}),
	}

	switch cfg.Directory {
	case config.DirectoryMemory:
		loggerClient.Warn("using in-process directory, names are not visible to other processes")
		a.dir = directory.NewMemory()

	default:
		// Initialize Redis early - fail fast if unavailable
		loggerClient.Infof("Connecting to Redis at %s", cfg.RedisAddr)
		redisClient, err := redis.New(redis.ConnectOptions{
			Addr:           cfg.RedisAddr,
			User:           cfg.RedisUser,
			Password:       cfg.RedisPassword,
			RedisDB:        cfg.RedisDB,
			DialTimeout:    cfg.RedisDT,
			ReadTimeout:    cfg.RedisRT,
			WriteTimeout:   cfg.RedisWT,
			PoolSize:       cfg.RedisPoolSize,
			ConnectTimeout: cfg.RedisConnectTimeout,
			RetryInterval:  cfg.RedisRetryInterval,
			MaxWait:        cfg.RedisMaxWait,
			PingTimeout:    cfg.RedisPingTimeout,
			WarnThreshold:  cfg.RedisWarnThreshold,
		}, loggerClient)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		loggerClient.Info("Redis initialized successfully")

		dir := directory.NewRedis(redisClient)
		if n, err := dir.Sweep(context.Background()); err != nil {
			loggerClient.Warn("directory sweep failed", logger.Error(err))
		} else if n > 0 {
			loggerClient.Info("swept orphaned directory entries", logger.Int("count", n))
		}

		a.redisClient = redisClient
		a.dir = dir
	}

	fleet := make([]registry.MemberSpec, len(cfg.Fleet))
	for i, m := range cfg.Fleet {
		fleet[i] = registry.MemberSpec{ID: m.ID, Listen: m.Listen}
	}

	a.registry = registry.New(a.dir, registry.Options{
		Prefix:      cfg.NamePrefix,
		Host:        cfg.MemberHost,
		BasePort:    cfg.BasePort,
		Fleet:       fleet,
		CallTimeout: cfg.CallTimeout,
	}, loggerClient)

	if cfg.ReconcileInterval > 0 {
		sweeper, _ := a.dir.(scheduler.Sweeper)
		a.reconciler = scheduler.NewReconciler(a.registry, sweeper, loggerClient, cfg.ReconcileInterval)
	}

	return a, nil
}

func (a *App) Run() error {
	defer func() { _ = a.logger.Sync() }()

	a.logger.Infof("🚀 Starting standby supervisor v%s with %d members", version.Version, a.cfg.Members)
	a.logger.Info(version.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return a.RunContext(ctx)
}

// RunContext bootstraps the members, then supervises them until ctx is
// cancelled or the coordinator terminates. Cancellation runs the shutdown
// protocol; termination already has.
func (a *App) RunContext(ctx context.Context) error {
	defer a.closeRedis()

	if _, err := a.registry.Bootstrap(ctx, a.cfg.Members); err != nil {
		return fmt.Errorf("failed to bootstrap members: %w", err)
	}

	a.coordinator = failover.New(a.registry.Clients(), a.registry, failover.Options{
		PollInterval:    a.cfg.PollInterval,
		VerifyPromotion: a.cfg.VerifyPromotion,
		ShutdownTimeout: a.cfg.ShutdownTimeout,
	}, a.logger)

	if err := a.coordinator.Start(ctx); err != nil {
		a.shutdownMembers()
		return fmt.Errorf("failed to start coordinator: %w", err)
	}

	if a.reconciler != nil {
		if err := a.reconciler.Start(ctx); err != nil {
			a.shutdownMembers()
			return fmt.Errorf("failed to start reconciler: %w", err)
		}
		defer a.reconciler.Stop()
		a.logger.Info("directory reconciler started",
			logger.Duration("interval", a.cfg.ReconcileInterval))
	}

	errCh := make(chan error, 1)
	if a.cfg.StatusAddr != "" {
		if err := a.startStatusServer(errCh); err != nil {
			a.shutdownMembers()
			return err
		}
	}
	close(a.ready)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	coordDone := make(chan error, 1)
	go func() { coordDone <- a.coordinator.Run(runCtx) }()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
		runErr = <-coordDone
	case runErr = <-coordDone:
	case runErr = <-errCh:
		cancel()
		<-coordDone
	}

	if !a.coordinator.Terminated() {
		a.shutdownMembers()
	}

	if a.status != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer stopCancel()
		if err := a.status.Stop(stopCtx); err != nil {
			a.logger.Warn("failed to stop status server", logger.Error(err))
		}
	}

	if err := a.registry.Wait(); err != nil {
		a.logger.Warn("member worker failed", logger.Error(err))
	}

	if runErr != nil {
		return runErr
	}
	a.logger.Info("✅ standby supervisor stopped cleanly")
	return nil
}

func (a *App) startStatusServer(errCh chan<- error) error {
	ln, err := net.Listen("tcp", a.cfg.StatusAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.cfg.StatusAddr, err)
	}
	a.statusAddr = ln.Addr().String()

	a.status = httpserver.New(a.statusAddr, routes.Supervisor, a.logger, deps.Deps{
		Logger:    a.logger,
		StartTime: time.Now(),
		Version:   version.Version,
		Commit:    version.Commit,
		BuildDate: version.BuildDate,
		GoVersion: version.GoVersion,
		TimeNow:   time.Now,
		Status:    a.snapshot,
	})

	go func() {
		if err := a.status.Serve(ln); err != nil {
			errCh <- fmt.Errorf("status server error: %w", err)
		}
	}()
	a.logger.Info("status server listening", logger.String("addr", a.statusAddr))
	return nil
}

func (a *App) shutdownMembers() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.registry.Shutdown(ctx); err != nil {
		a.logger.Warn("shutdown completed with errors", logger.Error(err))
	}
}

func (a *App) closeRedis() {
	if a.redisClient != nil {
		utils.MustClose(a.redisClient, "redis", a.logger)
	}
}

// snapshot feeds the status server.
func (a *App) snapshot() api.Status {
	snap := a.coordinator.Snapshot()

	st := api.Status{
		State:        snap.State.String(),
		ActiveMember: snap.Active,
		LastPoll:     snap.LastPoll,
		Promotions:   snap.Promotions,
	}
	for _, m := range a.registry.Members() {
		st.Members = append(st.Members, api.MemberStatus{
			ID:       m.ID,
			Name:     m.Name,
			Endpoint: m.Endpoint,
		})
	}
	return st
}
