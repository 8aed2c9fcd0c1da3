package lifecycle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/autobot/core/domain"
	"github.com/m3rciful/autobot/core/menu"
)

type fakeConn struct {
	id      Identity
	snap    *Snapshot
	started atomic.Bool
	stopped atomic.Bool
	stopErr error
}

func (c *fakeConn) Start()             { c.started.Store(true) }
func (c *fakeConn) Identity() Identity { return c.id }
func (c *fakeConn) Stop(context.Context) error {
	c.stopped.Store(true)
	return c.stopErr
}

type fakeConnector struct {
	mu    sync.Mutex
	conns []*fakeConn
	fail  map[string]error
}

func newFakeConnector() *fakeConnector {
	return &fakeConnector{fail: map[string]error{}}
}

func (f *fakeConnector) Connect(_ context.Context, snap *Snapshot) (Connection, error) {
	bot := snap.Load()
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[bot.Token]; err != nil {
		return nil, err
	}
	// a token must never be polled twice at once
	for _, c := range f.conns {
		if c.snap.Load().Token == bot.Token && !c.stopped.Load() {
			return nil, errors.New("conflict: terminated by other getUpdates request")
		}
	}
	c := &fakeConn{id: Identity{ID: bot.TelegramID, Username: bot.Username}, snap: snap}
	f.conns = append(f.conns, c)
	return c, nil
}

func autobot(token, username string, active bool) *domain.AutoBot {
	return &domain.AutoBot{Token: token, Username: username, IsActive: active, TelegramID: int64(len(username))}
}

func TestStartStop(t *testing.T) {
	ctx := context.Background()
	conn := newFakeConnector()
	m := NewManager(conn, Options{})

	require.NoError(t, m.Start(ctx, autobot("t1", "one_bot", true)))
	require.True(t, m.IsRunning("t1"))
	require.True(t, conn.conns[0].started.Load())

	require.True(t, m.Stop(ctx, "t1"))
	require.False(t, m.IsRunning("t1"))
	require.True(t, conn.conns[0].stopped.Load())
	require.False(t, m.Stop(ctx, "t1"))
}

func TestStartReplacesRunningToken(t *testing.T) {
	ctx := context.Background()
	conn := newFakeConnector()
	m := NewManager(conn, Options{})

	require.NoError(t, m.Start(ctx, autobot("t1", "one_bot", true)))
	require.NoError(t, m.Start(ctx, autobot("t1", "one_bot", true)))
	require.Len(t, conn.conns, 2)
	require.True(t, conn.conns[0].stopped.Load())
	require.False(t, conn.conns[1].stopped.Load())
	require.Len(t, m.Running(), 1)
}

func TestStartErrors(t *testing.T) {
	ctx := context.Background()
	conn := newFakeConnector()
	conn.fail["bad"] = ErrInvalidToken
	m := NewManager(conn, Options{})

	require.ErrorIs(t, m.Start(ctx, nil), ErrNoToken)
	require.ErrorIs(t, m.Start(ctx, &domain.AutoBot{}), ErrNoToken)
	require.ErrorIs(t, m.Start(ctx, autobot("bad", "x", true)), ErrInvalidToken)
	require.False(t, m.IsRunning("bad"))
}

func TestReloadSwapsSnapshot(t *testing.T) {
	ctx := context.Background()
	conn := newFakeConnector()
	m := NewManager(conn, Options{})
	bot := autobot("t1", "one_bot", true)
	require.NoError(t, m.Start(ctx, bot))

	updated := bot.Clone()
	updated.Buttons = menu.Buttons{{ID: "a", Text: "Info", CallbackData: "info"}}
	require.True(t, m.Reload(updated))
	require.Equal(t, "info", conn.conns[0].snap.Load().Buttons[0].CallbackData)

	updated.Buttons[0].CallbackData = "mutated"
	require.Equal(t, "info", conn.conns[0].snap.Load().Buttons[0].CallbackData, "snapshot must be isolated from caller")

	require.False(t, m.Reload(autobot("t2", "two_bot", true)))
	require.False(t, m.Reload(nil))
}

func TestRestartAllStartsActiveOnly(t *testing.T) {
	ctx := context.Background()
	conn := newFakeConnector()
	conn.fail["broken"] = errors.New("telegram: Unauthorized (401)")
	m := NewManager(conn, Options{StartParallelism: 2})

	require.NoError(t, m.Start(ctx, autobot("old", "old_bot", true)))

	err := m.RestartAll(ctx, []*domain.AutoBot{
		autobot("t1", "a_bot", true),
		autobot("t2", "b_bot", false),
		autobot("t3", "c_bot", true),
		autobot("broken", "d_bot", true),
		nil,
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "Unauthorized")

	require.False(t, m.IsRunning("old"))
	require.True(t, m.IsRunning("t1"))
	require.False(t, m.IsRunning("t2"))
	require.True(t, m.IsRunning("t3"))
	require.Equal(t, []Identity{{ID: 5, Username: "a_bot"}, {ID: 5, Username: "c_bot"}}, m.Running())
}

func TestStopAllAggregatesErrors(t *testing.T) {
	ctx := context.Background()
	conn := newFakeConnector()
	m := NewManager(conn, Options{})
	require.NoError(t, m.Start(ctx, autobot("t1", "a_bot", true)))
	require.NoError(t, m.Start(ctx, autobot("t2", "b_bot", true)))
	conn.conns[0].stopErr = context.DeadlineExceeded

	err := m.StopAll(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Empty(t, m.Running())
	require.NoError(t, m.StopAll(ctx))
}

func TestConcurrentStartsSameToken(t *testing.T) {
	ctx := context.Background()
	conn := newFakeConnector()
	m := NewManager(conn, Options{})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, m.Start(ctx, autobot("t1", "one_bot", true)))
		}()
	}
	wg.Wait()
	require.Len(t, m.Running(), 1)
	live := 0
	for _, c := range conn.conns {
		if !c.stopped.Load() {
			live++
		}
	}
	require.Equal(t, 1, live)
}

func lockCount(m *Manager) int {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	return len(m.locks)
}

func TestTokenLocksAreReleased(t *testing.T) {
	ctx := context.Background()
	m := NewManager(newFakeConnector(), Options{})

	for _, token := range []string{"t1", "t2", "t3"} {
		require.NoError(t, m.Start(ctx, autobot(token, token+"_bot", true)))
	}
	require.Zero(t, lockCount(m))

	require.True(t, m.Stop(ctx, "t1"))
	require.False(t, m.Stop(ctx, "never-started"))
	require.NoError(t, m.StopAll(ctx))
	require.NoError(t, m.RestartAll(ctx, []*domain.AutoBot{autobot("t4", "t4_bot", true)}))
	require.Zero(t, lockCount(m))
}

func TestTokenLockSharedWhileContended(t *testing.T) {
	m := NewManager(newFakeConnector(), Options{})
	unlock := m.lockToken("t1")
	require.Equal(t, 1, lockCount(m))

	acquired := make(chan func())
	go func() { acquired <- m.lockToken("t1") }()
	require.Eventually(t, func() bool {
		m.locksMu.Lock()
		defer m.locksMu.Unlock()
		return m.locks["t1"] != nil && m.locks["t1"].refs == 2
	}, time.Second, time.Millisecond)

	unlock()
	second := <-acquired
	require.Equal(t, 1, lockCount(m))
	second()
	require.Zero(t, lockCount(m))
}
