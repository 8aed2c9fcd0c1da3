// Package lifecycle owns the long-poll connections of hosted auto bots.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/m3rciful/autobot/core/domain"
	"github.com/m3rciful/autobot/core/logger"
)

// ErrNoToken is returned when a bot config lacks a token.
var ErrNoToken = errors.New("lifecycle: bot has no token")

const defaultStopTimeout = 15 * time.Second

// Snapshot is the configuration a running bot reads on every update.
// Swapping it hot-reloads the bot without reconnecting.
type Snapshot struct {
	p atomic.Pointer[domain.AutoBot]
}

// NewSnapshot returns a snapshot holding bot.
func NewSnapshot(bot *domain.AutoBot) *Snapshot {
	s := &Snapshot{}
	s.p.Store(bot)
	return s
}

// Load returns the current configuration.
func (s *Snapshot) Load() *domain.AutoBot { return s.p.Load() }

// Store replaces the configuration.
func (s *Snapshot) Store(bot *domain.AutoBot) { s.p.Store(bot) }

// Connection is one live bot connection.
type Connection interface {
	// Start begins polling in the background.
	Start()
	// Stop ends polling and waits for the poll loop to exit or ctx to expire.
	Stop(ctx context.Context) error
	Identity() Identity
}

// Connector authenticates a token and wires a bot that serves snap.
type Connector interface {
	Connect(ctx context.Context, snap *Snapshot) (Connection, error)
}

// Options tunes a Manager.
type Options struct {
	// StartParallelism bounds concurrent connects in RestartAll.
	StartParallelism int
	StopTimeout      time.Duration
}

type running struct {
	conn Connection
	snap *Snapshot
}

// Manager keeps at most one connection per bot token.
type Manager struct {
	connector Connector
	opts      Options

	mu   sync.RWMutex
	bots map[string]*running

	locksMu sync.Mutex
	locks   map[string]*tokenLock
}

// NewManager returns a Manager connecting bots through connector.
func NewManager(connector Connector, opts Options) *Manager {
	if opts.StartParallelism <= 0 {
		opts.StartParallelism = 4
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = defaultStopTimeout
	}
	return &Manager{
		connector: connector,
		opts:      opts,
		bots:      make(map[string]*running),
		locks:     make(map[string]*tokenLock),
	}
}

// tokenLock is a per-token mutex with the number of goroutines holding or
// waiting for it.
type tokenLock struct {
	mu   sync.Mutex
	refs int
}

// lockToken serializes start and stop of one token without blocking other bots.
// The entry is dropped once nobody holds or waits for it.
func (m *Manager) lockToken(token string) func() {
	m.locksMu.Lock()
	l, ok := m.locks[token]
	if !ok {
		l = &tokenLock{}
		m.locks[token] = l
	}
	l.refs++
	m.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.locksMu.Lock()
		if l.refs--; l.refs == 0 {
			delete(m.locks, token)
		}
		m.locksMu.Unlock()
	}
}

// Start connects bot and begins polling. A connection already running for the
// same token is stopped first.
func (m *Manager) Start(ctx context.Context, bot *domain.AutoBot) error {
	if bot == nil || bot.Token == "" {
		return ErrNoToken
	}
	ctx = logger.WithBot(ctx, bot.TelegramID, bot.Username)
	unlock := m.lockToken(bot.Token)
	defer unlock()

	m.stopLocked(ctx, bot.Token)

	start := time.Now()
	snap := NewSnapshot(bot.Clone())
	conn, err := m.connector.Connect(ctx, snap)
	if err != nil {
		logger.Error(ctx, logger.CompLifecycle, "bot.start",
			slog.String("status", "fail"),
			slog.Int64("config_id", bot.ID),
			slog.Any("err", err),
		)
		return fmt.Errorf("start bot %d: %w", bot.ID, err)
	}
	conn.Start()

	m.mu.Lock()
	m.bots[bot.Token] = &running{conn: conn, snap: snap}
	m.mu.Unlock()

	id := conn.Identity()
	logger.Info(logger.WithBot(ctx, id.ID, id.Username), logger.CompLifecycle, "bot.start",
		slog.String("status", "ok"),
		slog.Int64("config_id", bot.ID),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// Stop ends the connection for token and reports whether one was running.
func (m *Manager) Stop(ctx context.Context, token string) bool {
	unlock := m.lockToken(token)
	defer unlock()
	return m.stopLocked(ctx, token)
}

func (m *Manager) stopLocked(ctx context.Context, token string) bool {
	m.mu.Lock()
	r, ok := m.bots[token]
	delete(m.bots, token)
	m.mu.Unlock()
	if !ok {
		return false
	}
	if err := m.halt(ctx, r); err != nil {
		logger.Warn(ctx, logger.CompLifecycle, "bot.stop",
			slog.String("status", "fail"),
			slog.Any("err", err),
		)
	}
	return true
}

func (m *Manager) halt(ctx context.Context, r *running) error {
	id := r.conn.Identity()
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.opts.StopTimeout)
	defer cancel()
	if err := r.conn.Stop(stopCtx); err != nil {
		return fmt.Errorf("stop @%s: %w", id.Username, err)
	}
	logger.Info(logger.WithBot(ctx, id.ID, id.Username), logger.CompLifecycle, "bot.stop",
		slog.String("status", "ok"),
	)
	return nil
}

// IsRunning reports whether a connection for token is live.
func (m *Manager) IsRunning(token string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.bots[token]
	return ok
}

// Reload swaps the configuration of a running bot in place. It returns false
// when no connection for the bot's token is running.
func (m *Manager) Reload(bot *domain.AutoBot) bool {
	if bot == nil {
		return false
	}
	m.mu.RLock()
	r, ok := m.bots[bot.Token]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	r.snap.Store(bot.Clone())
	return true
}

// RestartAll stops every running bot and starts the active ones among bots.
// Starts run in parallel; failures are collected and do not stop other bots.
func (m *Manager) RestartAll(ctx context.Context, bots []*domain.AutoBot) error {
	var result *multierror.Error
	if err := m.StopAll(ctx); err != nil {
		result = multierror.Append(result, err)
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(m.opts.StartParallelism)
	started := 0
	for _, bot := range bots {
		if bot == nil || !bot.IsActive {
			continue
		}
		g.Go(func() error {
			err := m.Start(ctx, bot)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result = multierror.Append(result, err)
			} else {
				started++
			}
			return nil
		})
	}
	_ = g.Wait()

	logger.Info(ctx, logger.CompLifecycle, "bots.restart",
		slog.String("status", statusOf(result)),
		slog.Int("count", started),
	)
	return result.ErrorOrNil()
}

// StopAll stops every running bot in parallel.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	tokens := make([]string, 0, len(m.bots))
	for token := range m.bots {
		tokens = append(tokens, token)
	}
	m.mu.Unlock()

	var (
		mu     sync.Mutex
		result *multierror.Error
		wg     sync.WaitGroup
	)
	for _, token := range tokens {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := m.lockToken(token)
			defer unlock()
			m.mu.Lock()
			r, ok := m.bots[token]
			delete(m.bots, token)
			m.mu.Unlock()
			if !ok {
				return
			}
			if err := m.halt(ctx, r); err != nil {
				mu.Lock()
				result = multierror.Append(result, err)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return result.ErrorOrNil()
}

// Running lists the identities of live connections sorted by username.
func (m *Manager) Running() []Identity {
	m.mu.RLock()
	out := make([]Identity, 0, len(m.bots))
	for _, r := range m.bots {
		out = append(out, r.conn.Identity())
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

func statusOf(err *multierror.Error) string {
	if err.ErrorOrNil() != nil {
		return "fail"
	}
	return "ok"
}
