package bootstrap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/autobot/core/config"
	"github.com/m3rciful/autobot/core/domain"
	"github.com/m3rciful/autobot/core/lifecycle"
)

type recordingUpserter struct {
	bots []*domain.AutoBot
}

func (r *recordingUpserter) Upsert(_ context.Context, bot *domain.AutoBot) error {
	r.bots = append(r.bots, bot)
	return nil
}

const seedYAML = `bots:
  - token: "11111:aaa"
    username: "@shop_bot"
    welcome_message: "Halo"
    buttons:
      - id: info
        text: Info
        callback_data: info
      - id: shop
        text: Shop
        callback_data: shop
        level: 1
        parent_id: info
      - text: Site
        url: https://example.com
  - token: "22222:bbb"
    active: false
  - token: "33333:ccc"
    buttons:
      - id: orphan
        text: Orphan
        level: 2
        parent_id: nowhere
`

func writeSeed(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestFileSeederStoresValidBots(t *testing.T) {
	dst := &recordingUpserter{}
	err := FileSeeder(writeSeed(t, seedYAML), 42, nil).Seed(context.Background(), dst)
	require.NoError(t, err)
	require.Len(t, dst.bots, 2)

	shop := dst.bots[0]
	require.Equal(t, int64(42), shop.OwnerID)
	require.Equal(t, "shop_bot", shop.Username)
	require.True(t, shop.IsActive)
	require.Len(t, shop.Buttons, 3)
	require.Equal(t, "info", shop.Buttons[1].ParentID)
	require.NotEmpty(t, shop.Buttons[2].ID)
	require.Empty(t, shop.Buttons[2].CallbackData)

	require.False(t, dst.bots[1].IsActive)
}

func TestFileSeederFailsWhenNothingStored(t *testing.T) {
	dst := &recordingUpserter{}
	err := FileSeeder(writeSeed(t, "bots:\n  - token: \"\"\n"), 1, nil).Seed(context.Background(), dst)
	require.ErrorIs(t, err, lifecycle.ErrNoToken)
	require.Empty(t, dst.bots)

	err = FileSeeder(filepath.Join(t.TempDir(), "missing.yaml"), 1, nil).Seed(context.Background(), dst)
	require.Error(t, err)
}

type stubValidator struct{}

func (stubValidator) Validate(_ context.Context, token string) (lifecycle.Identity, error) {
	if token == "22222:bbb" {
		return lifecycle.Identity{}, lifecycle.ErrInvalidToken
	}
	return lifecycle.Identity{ID: 11111, Username: "real_bot", FirstName: "Real"}, nil
}

func TestFileSeederUsesValidator(t *testing.T) {
	dst := &recordingUpserter{}
	err := FileSeeder(writeSeed(t, seedYAML), 1, stubValidator{}).Seed(context.Background(), dst)
	require.NoError(t, err)
	require.Len(t, dst.bots, 1)
	require.Equal(t, "real_bot", dst.bots[0].Username)
	require.Equal(t, "Real", dst.bots[0].Name)
	require.Equal(t, int64(11111), dst.bots[0].TelegramID)
}

func TestRunStopsOnConnectError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Run(context.Background(), Options{
		Config:     &config.Config{},
		LoggerInit: func(*config.Config) error { return nil },
		Connect: func(context.Context, config.DatabaseConfig) (*sqlx.DB, error) {
			return nil, boom
		},
	})
	require.ErrorIs(t, err, boom)

	_, err = Run(context.Background(), Options{})
	require.Error(t, err)
}
