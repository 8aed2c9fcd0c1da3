package autobot

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/m3rciful/autobot/core/domain"
	"github.com/m3rciful/autobot/core/lifecycle"
	"github.com/m3rciful/autobot/core/menu"
	"github.com/m3rciful/autobot/core/store"
)

type memStore struct {
	mu   sync.Mutex
	next int64
	rows map[int64]*domain.AutoBot
}

func newMemStore() *memStore { return &memStore{rows: map[int64]*domain.AutoBot{}} }

func (m *memStore) GetActiveConfigs(context.Context) ([]*domain.AutoBot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.AutoBot
	for id := int64(1); id <= m.next; id++ {
		if b, ok := m.rows[id]; ok && b.IsActive {
			out = append(out, b.Clone())
		}
	}
	return out, nil
}

func (m *memStore) GetConfig(_ context.Context, id int64) (*domain.AutoBot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.rows[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return b.Clone(), nil
}

func (m *memStore) GetConfigsByOwner(_ context.Context, ownerID int64) ([]*domain.AutoBot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.AutoBot
	for id := int64(1); id <= m.next; id++ {
		if b, ok := m.rows[id]; ok && b.OwnerID == ownerID {
			out = append(out, b.Clone())
		}
	}
	return out, nil
}

func (m *memStore) Create(_ context.Context, bot *domain.AutoBot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.rows {
		if b.Token == bot.Token {
			return store.ErrDuplicateToken
		}
	}
	m.next++
	bot.ID = m.next
	m.rows[bot.ID] = bot.Clone()
	return nil
}

func (m *memStore) with(id int64, fn func(*domain.AutoBot)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.rows[id]
	if !ok {
		return store.ErrNotFound
	}
	fn(b)
	return nil
}

func (m *memStore) SaveButtons(_ context.Context, id int64, buttons menu.Buttons) error {
	return m.with(id, func(b *domain.AutoBot) { b.Buttons = append(menu.Buttons(nil), buttons...) })
}

func (m *memStore) UpdateMessages(_ context.Context, id int64, welcome, imageURL string) error {
	return m.with(id, func(b *domain.AutoBot) { b.WelcomeMessage, b.WelcomeImageURL = welcome, imageURL })
}

func (m *memStore) SetActive(_ context.Context, id int64, active bool) error {
	return m.with(id, func(b *domain.AutoBot) { b.IsActive = active })
}

func (m *memStore) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

type fakeRuntime struct {
	running  map[string]*domain.AutoBot
	startErr error
	restarts int
}

func newFakeRuntime() *fakeRuntime { return &fakeRuntime{running: map[string]*domain.AutoBot{}} }

func (r *fakeRuntime) Start(_ context.Context, bot *domain.AutoBot) error {
	if r.startErr != nil {
		return r.startErr
	}
	r.running[bot.Token] = bot.Clone()
	return nil
}

func (r *fakeRuntime) Stop(_ context.Context, token string) bool {
	_, ok := r.running[token]
	delete(r.running, token)
	return ok
}

func (r *fakeRuntime) Reload(bot *domain.AutoBot) bool {
	if _, ok := r.running[bot.Token]; !ok {
		return false
	}
	r.running[bot.Token] = bot.Clone()
	return true
}

func (r *fakeRuntime) RestartAll(ctx context.Context, bots []*domain.AutoBot) error {
	r.restarts++
	r.running = map[string]*domain.AutoBot{}
	for _, b := range bots {
		if err := r.Start(ctx, b); err != nil {
			return err
		}
	}
	return nil
}

type fakeValidator map[string]lifecycle.Identity

func (v fakeValidator) Validate(_ context.Context, token string) (lifecycle.Identity, error) {
	id, ok := v[token]
	if !ok {
		return lifecycle.Identity{}, lifecycle.ErrInvalidToken
	}
	return id, nil
}

const shopToken = "12345:shop"

func newTestService(t *testing.T) (*Service, *memStore, *fakeRuntime) {
	t.Helper()
	st, rt := newMemStore(), newFakeRuntime()
	v := fakeValidator{shopToken: {ID: 12345, Username: "shop_bot", FirstName: "Shop"}}
	return NewService(st, rt, v), st, rt
}

func TestCreateValidatesAndStarts(t *testing.T) {
	svc, st, rt := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, 7, "999:nope", "hi")
	require.ErrorIs(t, err, ErrInvalidToken)
	require.Empty(t, st.rows)

	bot, err := svc.Create(ctx, 7, " "+shopToken+" ", " Welcome ")
	require.NoError(t, err)
	require.Equal(t, "shop_bot", bot.Username)
	require.Equal(t, "Shop", bot.Name)
	require.Equal(t, int64(12345), bot.TelegramID)
	require.Equal(t, "Welcome", bot.WelcomeMessage)
	require.True(t, bot.IsActive)
	require.Contains(t, rt.running, shopToken)

	_, err = svc.Create(ctx, 8, shopToken, "")
	require.ErrorIs(t, err, store.ErrDuplicateToken)
}

func TestCreateKeepsBotWhenStartFails(t *testing.T) {
	svc, st, rt := newTestService(t)
	rt.startErr = errors.New("conflict")

	bot, err := svc.Create(context.Background(), 7, shopToken, "")
	require.Error(t, err)
	require.NotNil(t, bot)
	require.Contains(t, st.rows, bot.ID)
}

func TestOwned(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	bot, err := svc.Create(ctx, 7, shopToken, "")
	require.NoError(t, err)

	got, err := svc.Owned(ctx, 7, bot.ID)
	require.NoError(t, err)
	require.Equal(t, bot.ID, got.ID)

	_, err = svc.Owned(ctx, 8, bot.ID)
	require.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Owned(ctx, 7, 999)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestButtonEditsPersistAndReload(t *testing.T) {
	svc, st, rt := newTestService(t)
	ctx := context.Background()
	bot, err := svc.Create(ctx, 7, shopToken, "")
	require.NoError(t, err)

	info, err := svc.AddButton(ctx, bot.ID, menu.Button{Text: "Info", CallbackData: "info"})
	require.NoError(t, err)
	require.NotEmpty(t, info.ID)
	shop, err := svc.AddButton(ctx, bot.ID, menu.Button{Text: "Shop", CallbackData: "shop", Level: 1, ParentID: info.ID})
	require.NoError(t, err)

	_, err = svc.AddButton(ctx, bot.ID, menu.Button{Text: "Deep", Level: 3, ParentID: shop.ID})
	require.ErrorIs(t, err, menu.ErrInvalidLevel)
	require.Len(t, st.rows[bot.ID].Buttons, 2)

	live := rt.running[shopToken]
	require.Len(t, live.Buttons, 2)
	require.Equal(t, "shop", live.Buttons[1].CallbackData)

	shop.Text = "Toko"
	require.NoError(t, svc.UpdateButton(ctx, bot.ID, shop))
	require.Equal(t, "Toko", rt.running[shopToken].Buttons[1].Text)

	require.NoError(t, svc.RemoveButton(ctx, bot.ID, info.ID))
	require.Empty(t, st.rows[bot.ID].Buttons)
	require.Empty(t, rt.running[shopToken].Buttons)

	require.ErrorIs(t, svc.RemoveButton(ctx, bot.ID, "missing"), menu.ErrNotFound)
	require.ErrorIs(t, svc.UpdateButton(ctx, 999, shop), store.ErrNotFound)
}

func TestEditWhileStoppedDoesNotStart(t *testing.T) {
	svc, st, rt := newTestService(t)
	ctx := context.Background()
	bot, err := svc.Create(ctx, 7, shopToken, "")
	require.NoError(t, err)
	require.NoError(t, svc.SetActive(ctx, bot.ID, false))
	require.Empty(t, rt.running)

	_, err = svc.AddButton(ctx, bot.ID, menu.Button{Text: "Info"})
	require.NoError(t, err)
	require.Empty(t, rt.running)
	require.Len(t, st.rows[bot.ID].Buttons, 1)
}

func TestUpdateMessagesReloads(t *testing.T) {
	svc, _, rt := newTestService(t)
	ctx := context.Background()
	bot, err := svc.Create(ctx, 7, shopToken, "old")
	require.NoError(t, err)

	require.NoError(t, svc.UpdateMessages(ctx, bot.ID, " new ", "https://example.com/w.png"))
	require.Equal(t, "new", rt.running[shopToken].WelcomeMessage)
	require.Equal(t, "https://example.com/w.png", rt.running[shopToken].WelcomeImageURL)
}

func TestSetActiveAndDelete(t *testing.T) {
	svc, st, rt := newTestService(t)
	ctx := context.Background()
	bot, err := svc.Create(ctx, 7, shopToken, "")
	require.NoError(t, err)

	require.NoError(t, svc.SetActive(ctx, bot.ID, false))
	require.NotContains(t, rt.running, shopToken)
	require.NoError(t, svc.SetActive(ctx, bot.ID, true))
	require.Contains(t, rt.running, shopToken)

	require.NoError(t, svc.Delete(ctx, bot.ID))
	require.NotContains(t, rt.running, shopToken)
	require.NotContains(t, st.rows, bot.ID)
	require.ErrorIs(t, svc.Delete(ctx, bot.ID), store.ErrNotFound)
}

func TestStartAllAndList(t *testing.T) {
	svc, st, rt := newTestService(t)
	ctx := context.Background()
	require.NoError(t, st.Create(ctx, &domain.AutoBot{OwnerID: 1, Token: "a", IsActive: true}))
	require.NoError(t, st.Create(ctx, &domain.AutoBot{OwnerID: 1, Token: "b"}))
	require.NoError(t, st.Create(ctx, &domain.AutoBot{OwnerID: 2, Token: "c", IsActive: true}))

	require.NoError(t, svc.StartAll(ctx))
	require.Equal(t, 1, rt.restarts)
	require.Len(t, rt.running, 2)
	require.NotContains(t, rt.running, "b")

	mine, err := svc.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, mine, 2)
}
