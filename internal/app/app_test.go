package app

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/standby/internal/api"
	"github.com/MrSnakeDoc/standby/internal/config"
	"github.com/MrSnakeDoc/standby/internal/logger"
)

func testConfig() *config.Config {
	return &config.Config{
		Members:         3,
		NamePrefix:      "order-service-",
		MemberHost:      "127.0.0.1",
		BasePort:        0,
		CallTimeout:     500 * time.Millisecond,
		PollInterval:    20 * time.Millisecond,
		ShutdownTimeout: 2 * time.Second,
		StatusAddr:      "127.0.0.1:0",
		Directory:       config.DirectoryMemory,
		LogLevel:        "error",
	}
}

// start runs the app in the background and waits until it is supervising.
func start(t *testing.T, cfg *config.Config) (*App, context.CancelFunc, <-chan error) {
	t.Helper()

	a, err := NewWithConfig(cfg, logger.New("error", false))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- a.RunContext(ctx)
		close(done)
	}()

	select {
	case <-a.ready:
	case err := <-done:
		cancel()
		t.Fatalf("app exited during startup: %v", err)
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("app did not become ready")
	}

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
		}
	})
	return a, cancel, done
}

func getStatus(t *testing.T, a *App) api.Status {
	t.Helper()
	resp, err := http.Get("http://" + a.statusAddr + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	var st api.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	return st
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
		return nil
	}
}

func TestStableSupervision(t *testing.T) {
	a, _, _ := start(t, testConfig())
	ctx := context.Background()

	st := getStatus(t, a)
	assert.Equal(t, "stable", st.State)
	assert.Equal(t, "0", st.ActiveMember)
	require.Len(t, st.Members, 3)
	assert.Equal(t, "order-service-2", st.Members[2].Name)

	members := a.registry.Members()
	msg, err := members[0].Client.ProcessOrder(ctx, "1 coffee")
	require.NoError(t, err)
	assert.Equal(t, "Your order of 1 coffee has been received.", msg)

	msg, err = members[1].Client.ProcessOrder(ctx, "1 coffee")
	require.NoError(t, err)
	assert.Equal(t, "Sorry, this server is not active.", msg)

	names, err := a.dir.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"order-service-0", "order-service-1", "order-service-2"}, names)
}

func TestFailoverPromotesNextMember(t *testing.T) {
	a, _, _ := start(t, testConfig())
	ctx := context.Background()
	members := a.registry.Members()

	members[0].Client.Shutdown(ctx)

	require.Eventually(t, func() bool {
		return getStatus(t, a).ActiveMember == "1"
	}, 5*time.Second, 20*time.Millisecond)

	st := getStatus(t, a)
	assert.Equal(t, "stable", st.State)
	assert.GreaterOrEqual(t, st.Promotions, 1)
	assert.True(t, members[1].Service.IsActive())
	assert.False(t, members[2].Service.IsActive())
}

func TestTerminatesWhenNoMemberCanServe(t *testing.T) {
	a, _, done := start(t, testConfig())
	ctx := context.Background()

	for _, m := range a.registry.Members() {
		m.Client.Shutdown(ctx)
	}

	require.NoError(t, waitDone(t, done))
	assert.True(t, a.coordinator.Terminated())

	names, err := a.dir.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestCancelRunsShutdownProtocol(t *testing.T) {
	a, cancel, done := start(t, testConfig())

	cancel()
	require.NoError(t, waitDone(t, done))

	assert.False(t, a.coordinator.Terminated())
	assert.True(t, a.registry.ShuttingDown())
	for _, m := range a.registry.Members() {
		assert.True(t, m.Service.ShuttingDown())
	}

	names, err := a.dir.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestBootstrapFailureAbortsBeforeSupervision(t *testing.T) {
	cfg := testConfig()
	cfg.Members = 2
	cfg.Fleet = []config.FleetMember{
		{ID: "0", Listen: "127.0.0.1:0"},
		{ID: "1", Listen: "not-an-address"},
	}

	a, err := NewWithConfig(cfg, logger.Nop())
	require.NoError(t, err)

	err = a.RunContext(context.Background())
	require.Error(t, err)
	assert.Nil(t, a.coordinator)

	names, err := a.dir.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestReconcilerRestoresDirectory(t *testing.T) {
	cfg := testConfig()
	cfg.ReconcileInterval = 20 * time.Millisecond
	a, _, _ := start(t, cfg)
	ctx := context.Background()

	require.NoError(t, a.dir.Remove(ctx, "order-service-1"))

	require.Eventually(t, func() bool {
		_, err := a.dir.Lookup(ctx, "order-service-1")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}
