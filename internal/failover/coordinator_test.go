package failover

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/standby/internal/domain"
	"github.com/MrSnakeDoc/standby/internal/logger"
)

var errUnreachable = fmt.Errorf("dial tcp: connection refused: %w", domain.ErrUnreachable)

// fakeMember is an in-memory Member whose failures can be scripted.
type fakeMember struct {
	id string

	mu          sync.Mutex
	active      bool
	dead        bool  // IsAlive reports false
	unreachable bool  // every call fails with ErrUnreachable
	activateErr error // overrides Activate
	activations int
}

func newFake(id string) *fakeMember { return &fakeMember{id: id} }

func (f *fakeMember) ID() string { return f.id }

func (f *fakeMember) IsActive(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unreachable {
		return false, errUnreachable
	}
	return f.active, nil
}

func (f *fakeMember) IsAlive(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unreachable {
		return false, errUnreachable
	}
	return !f.dead, nil
}

func (f *fakeMember) Activate(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activations++
	if f.activateErr != nil {
		return "", f.activateErr
	}
	if f.unreachable {
		return "", errUnreachable
	}
	f.active = true
	return domain.ReplyActivated, nil
}

func (f *fakeMember) set(fn func(f *fakeMember)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeMember) activationCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.activations
}

type fakeShutdown struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *fakeShutdown) Shutdown(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.err
}

func (s *fakeShutdown) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newCoordinator(t *testing.T, opts Options, fakes ...*fakeMember) (*Coordinator, *fakeShutdown) {
	t.Helper()
	members := make([]Member, len(fakes))
	for i, f := range fakes {
		members[i] = f
	}
	sd := &fakeShutdown{}
	return New(members, sd, opts, logger.New("error", false)), sd
}

func threeFakes() (*fakeMember, *fakeMember, *fakeMember) {
	return newFake("0"), newFake("1"), newFake("2")
}

func TestStableWhenFirstMemberActive(t *testing.T) {
	ctx := context.Background()
	m0, m1, m2 := threeFakes()
	c, sd := newCoordinator(t, Options{}, m0, m1, m2)

	require.NoError(t, c.Start(ctx))
	require.NoError(t, c.Tick(ctx))

	snap := c.Snapshot()
	assert.Equal(t, StateStable, snap.State)
	assert.Equal(t, "0", snap.Active)
	assert.Zero(t, snap.Promotions)
	assert.False(t, snap.LastPoll.IsZero())
	assert.Zero(t, m1.activationCount())
	assert.Zero(t, m2.activationCount())
	assert.Zero(t, sd.count())
}

func TestPromotesNextWhenActiveUnreachable(t *testing.T) {
	ctx := context.Background()
	m0, m1, m2 := threeFakes()
	c, sd := newCoordinator(t, Options{}, m0, m1, m2)
	require.NoError(t, c.Start(ctx))

	m0.set(func(f *fakeMember) { f.unreachable = true })

	require.NoError(t, c.Tick(ctx))

	snap := c.Snapshot()
	assert.Equal(t, StateStable, snap.State)
	assert.Equal(t, "1", snap.Active)
	assert.Equal(t, 1, snap.Promotions)
	assert.Equal(t, 2, m0.activationCount()) // Start + failed promotion
	assert.Equal(t, 1, m1.activationCount())
	assert.Zero(t, m2.activationCount())
	assert.Zero(t, sd.count())

	// next poll confirms member 1 without promoting again
	require.NoError(t, c.Tick(ctx))
	assert.Equal(t, 1, m1.activationCount())
	assert.Equal(t, "1", c.Snapshot().Active)
}

func TestTerminatesWhenNoMemberCanBeActivated(t *testing.T) {
	ctx := context.Background()
	m0, m1, m2 := threeFakes()
	c, sd := newCoordinator(t, Options{}, m0, m1, m2)
	require.NoError(t, c.Start(ctx))

	for _, m := range []*fakeMember{m0, m1, m2} {
		m.set(func(f *fakeMember) { f.unreachable = true })
	}

	require.NoError(t, c.Tick(ctx))

	assert.True(t, c.Terminated())
	assert.Equal(t, StateTerminated, c.Snapshot().State)
	assert.Equal(t, 1, sd.count())
	assert.Equal(t, 1, m1.activationCount())
	assert.Equal(t, 1, m2.activationCount())

	// terminated coordinator does nothing more
	require.NoError(t, c.Tick(ctx))
	assert.Equal(t, 1, sd.count())
}

func TestTerminationToleratesShutdownErrors(t *testing.T) {
	ctx := context.Background()
	m0 := newFake("0")
	m0.set(func(f *fakeMember) { f.unreachable = true })
	c, sd := newCoordinator(t, Options{}, m0)
	sd.err = errors.New("partial teardown")

	require.NoError(t, c.Tick(ctx))
	assert.True(t, c.Terminated())
}

func TestScanIsFirstMatchAndDeterministic(t *testing.T) {
	ctx := context.Background()
	m0, m1, m2 := threeFakes()
	m0.set(func(f *fakeMember) { f.unreachable = true })
	m1.set(func(f *fakeMember) { f.active = true })
	m2.set(func(f *fakeMember) { f.active = true })
	c, _ := newCoordinator(t, Options{}, m0, m1, m2)

	for i := 0; i < 5; i++ {
		got, err := c.Scan(ctx)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "1", got.ID())
	}
}

func TestScanSkipsActiveButDeadMembers(t *testing.T) {
	ctx := context.Background()
	m0, m1, m2 := threeFakes()
	m0.set(func(f *fakeMember) { f.active = true; f.dead = true })
	m2.set(func(f *fakeMember) { f.active = true })
	c, _ := newCoordinator(t, Options{}, m0, m1, m2)

	got, err := c.Scan(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "2", got.ID())
}

func TestScanFindsNothing(t *testing.T) {
	m0, m1, m2 := threeFakes()
	c, _ := newCoordinator(t, Options{}, m0, m1, m2)

	got, err := c.Scan(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPromotionPrefersLowestIndex(t *testing.T) {
	ctx := context.Background()
	m0, m1, m2 := threeFakes()
	m1.set(func(f *fakeMember) { f.unreachable = true })
	c, _ := newCoordinator(t, Options{}, m0, m1, m2)

	p, err := c.Promote(ctx)
	require.NoError(t, err)
	assert.True(t, p.OK())
	assert.Equal(t, "0", p.Promoted)
	assert.Equal(t, 0, p.Index)
	assert.Len(t, p.Attempts, 1)
	assert.Zero(t, m2.activationCount())
}

func TestPromotionRecordsFailedAttempts(t *testing.T) {
	ctx := context.Background()
	m0, m1, m2 := threeFakes()
	m0.set(func(f *fakeMember) { f.unreachable = true })
	m1.set(func(f *fakeMember) { f.unreachable = true })
	c, _ := newCoordinator(t, Options{}, m0, m1, m2)

	p, err := c.Promote(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2", p.Promoted)
	assert.Equal(t, []string{"0", "1"}, p.Failed())
	assert.Contains(t, p.String(), "promoted 2")
}

func TestPromotionAllFail(t *testing.T) {
	ctx := context.Background()
	m0, m1, m2 := threeFakes()
	for _, m := range []*fakeMember{m0, m1, m2} {
		m.set(func(f *fakeMember) { f.unreachable = true })
	}
	c, _ := newCoordinator(t, Options{}, m0, m1, m2)

	p, err := c.Promote(ctx)
	assert.ErrorIs(t, err, ErrAllMembersUnpromotable)
	assert.False(t, p.OK())
	assert.Equal(t, -1, p.Index)
	assert.Equal(t, []string{"0", "1", "2"}, p.Failed())
}

func TestUnexpectedActivationFaultPropagates(t *testing.T) {
	ctx := context.Background()
	m0, m1, m2 := threeFakes()
	bug := errors.New("bad request")
	m0.set(func(f *fakeMember) { f.activateErr = bug })
	c, sd := newCoordinator(t, Options{}, m0, m1, m2)

	err := c.Tick(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, bug)
	assert.False(t, c.Terminated())
	assert.Zero(t, m1.activationCount())
	assert.Zero(t, sd.count())
}

func TestVerifyPromotion(t *testing.T) {
	tests := []struct {
		name   string
		verify bool
		want   string
	}{
		{name: "activate call is enough by default", verify: false, want: "0"},
		{name: "verified promotion skips dead member", verify: true, want: "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m0, m1, m2 := threeFakes()
			m0.set(func(f *fakeMember) { f.dead = true })
			c, _ := newCoordinator(t, Options{VerifyPromotion: tt.verify}, m0, m1, m2)

			p, err := c.Promote(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Promoted)
		})
	}
}

func TestStartActivatesFirstMember(t *testing.T) {
	m0, m1 := newFake("0"), newFake("1")
	c, _ := newCoordinator(t, Options{}, m0, m1)

	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, 1, m0.activationCount())
	assert.Zero(t, m1.activationCount())
	assert.Equal(t, StateStable, c.Snapshot().State)
}

func TestStartWithUnreachableFirstMember(t *testing.T) {
	m0, m1 := newFake("0"), newFake("1")
	m0.set(func(f *fakeMember) { f.unreachable = true })
	c, _ := newCoordinator(t, Options{}, m0, m1)

	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, StateDegraded, c.Snapshot().State)
}

func TestStartWithoutMembers(t *testing.T) {
	c, _ := newCoordinator(t, Options{})
	assert.Error(t, c.Start(context.Background()))
}

func TestRunStaysLiveWhileActiveMemberHealthy(t *testing.T) {
	m0, m1 := newFake("0"), newFake("1")
	c, sd := newCoordinator(t, Options{PollInterval: 5 * time.Millisecond}, m0, m1)
	require.NoError(t, c.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	require.NoError(t, c.Run(ctx))
	assert.False(t, c.Terminated())
	assert.Zero(t, sd.count())
	assert.Equal(t, 1, m0.activationCount())
}

func TestRunExitsOnTermination(t *testing.T) {
	m0, m1 := newFake("0"), newFake("1")
	c, sd := newCoordinator(t, Options{PollInterval: 5 * time.Millisecond}, m0, m1)
	require.NoError(t, c.Start(context.Background()))

	m0.set(func(f *fakeMember) { f.unreachable = true })
	m1.set(func(f *fakeMember) { f.unreachable = true })

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not exit after all members became unpromotable")
	}
	assert.True(t, c.Terminated())
	assert.Equal(t, 1, sd.count())
}

// cancellingMember cancels the poll while it is being asked.
type cancellingMember struct {
	*fakeMember
	cancel context.CancelFunc
}

func (m cancellingMember) IsActive(context.Context) (bool, error) {
	m.cancel()
	return false, errUnreachable
}

func TestCancelledPollDoesNotTerminate(t *testing.T) {
	m0, m1, m2 := threeFakes()
	for _, m := range []*fakeMember{m0, m1, m2} {
		m.set(func(f *fakeMember) { f.unreachable = true })
	}
	c, sd := newCoordinator(t, Options{}, m0, m1, m2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	p, err := c.Promote(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrAllMembersUnpromotable)
	assert.False(t, p.OK())

	assert.ErrorIs(t, c.Tick(ctx), context.Canceled)
	assert.False(t, c.Terminated())
	assert.Zero(t, sd.count())
}

func TestRunExitsCleanlyWhenCancelledMidPoll(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m0 := cancellingMember{fakeMember: newFake("0"), cancel: cancel}
	m1 := newFake("1")
	m1.set(func(f *fakeMember) { f.unreachable = true })

	sd := &fakeShutdown{}
	c := New([]Member{m0, m1}, sd, Options{PollInterval: 5 * time.Millisecond}, logger.New("error", false))

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not exit after cancellation")
	}
	assert.False(t, c.Terminated())
	assert.Zero(t, sd.count())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "stable", StateStable.String())
	assert.Equal(t, "degraded", StateDegraded.String())
	assert.Equal(t, "terminated", StateTerminated.String())
	assert.Equal(t, "unknown", State(42).String())
}
