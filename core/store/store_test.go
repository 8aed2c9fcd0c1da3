package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/autobot/core/domain"
	"github.com/m3rciful/autobot/core/menu"
)

func TestIsUniqueViolation(t *testing.T) {
	require.True(t, isUniqueViolation(fmt.Errorf("wrapped: %w", &pq.Error{Code: "23505"})))
	require.False(t, isUniqueViolation(&pq.Error{Code: "23503"}))
	require.False(t, isUniqueViolation(errors.New("boom")))
	require.False(t, isUniqueViolation(nil))
}

// openTestDB connects to AUTOBOT_TEST_DSN, a database with migrations applied.
func openTestDB(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("AUTOBOT_TEST_DSN")
	if dsn == "" {
		t.Skip("AUTOBOT_TEST_DSN not set")
	}
	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`TRUNCATE auto_bots RESTART IDENTITY`)
	require.NoError(t, err)
	return New(db)
}

func TestStoreRoundTrip(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()

	bot := &domain.AutoBot{OwnerID: 9, Token: "111111:token-a", Username: "a_bot", IsActive: true}
	require.NoError(t, s.Create(ctx, bot))
	require.NotZero(t, bot.ID)
	require.ErrorIs(t, s.Create(ctx, &domain.AutoBot{OwnerID: 9, Token: bot.Token}), ErrDuplicateToken)

	got, err := s.GetConfig(ctx, bot.ID)
	require.NoError(t, err)
	require.Equal(t, menu.Buttons{}, got.Buttons)

	buttons := menu.Buttons{
		{ID: "r", Text: "Info", CallbackData: "info"},
		{ID: "c", Text: "Shop", CallbackData: "shop", Level: 1, ParentID: "r"},
	}
	require.NoError(t, s.SaveButtons(ctx, bot.ID, buttons))
	require.NoError(t, s.UpdateMessages(ctx, bot.ID, "Hi", "https://example.com/w.png"))

	got, err = s.GetConfigByToken(ctx, bot.Token)
	require.NoError(t, err)
	require.Equal(t, buttons, got.Buttons)
	require.Equal(t, "Hi", got.WelcomeMessage)
	require.Equal(t, "https://example.com/w.png", got.WelcomeImageURL)

	require.NoError(t, s.SetActive(ctx, bot.ID, false))
	active, err := s.GetActiveConfigs(ctx)
	require.NoError(t, err)
	require.Empty(t, active)

	owned, err := s.GetConfigsByOwner(ctx, 9)
	require.NoError(t, err)
	require.Len(t, owned, 1)

	require.NoError(t, s.Delete(ctx, bot.ID))
	_, err = s.GetConfig(ctx, bot.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, s.Delete(ctx, bot.ID), ErrNotFound)
	require.ErrorIs(t, s.SetActive(ctx, bot.ID, true), ErrNotFound)
}

func TestStoreUpsertKeepsOwner(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()

	first := &domain.AutoBot{OwnerID: 1, Token: "222222:token-b", Name: "Old"}
	require.NoError(t, s.Upsert(ctx, first))
	second := &domain.AutoBot{OwnerID: 2, Token: first.Token, Name: "New", IsActive: true}
	require.NoError(t, s.Upsert(ctx, second))
	require.Equal(t, first.ID, second.ID)

	got, err := s.GetConfig(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), got.OwnerID)
	require.Equal(t, "New", got.Name)
}
