package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/m3rciful/autobot/core/domain"
	"github.com/m3rciful/autobot/core/lifecycle"
	"github.com/m3rciful/autobot/core/logger"
	"github.com/m3rciful/autobot/core/menu"
)

// Upserter stores a bot keyed by its token.
type Upserter interface {
	Upsert(ctx context.Context, bot *domain.AutoBot) error
}

// Seeder loads bot definitions into storage.
type Seeder interface {
	Seed(ctx context.Context, dst Upserter) error
}

// SeederFunc adapts a bare function to the Seeder interface.
type SeederFunc func(ctx context.Context, dst Upserter) error

// Seed executes the underlying function.
func (f SeederFunc) Seed(ctx context.Context, dst Upserter) error {
	return f(ctx, dst)
}

// TokenValidator resolves a token to its bot identity.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (lifecycle.Identity, error)
}

// SeedFile is the YAML document read by FileSeeder.
type SeedFile struct {
	Bots []SeedBot `yaml:"bots"`
}

// SeedBot describes one bot in a seed file.
type SeedBot struct {
	Token           string        `yaml:"token"`
	Name            string        `yaml:"name"`
	Username        string        `yaml:"username"`
	WelcomeMessage  string        `yaml:"welcome_message"`
	WelcomeImageURL string        `yaml:"welcome_image_url"`
	Active          *bool         `yaml:"active"`
	Buttons         []menu.Button `yaml:"buttons"`
}

// LoadSeedFile parses a seed document from path.
func LoadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var f SeedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &f, nil
}

// FileSeeder upserts every bot of the seed file at path as owned by ownerID.
// When validator is set, identities are taken from Telegram. A bad entry is
// skipped and reported; the others are still stored.
func FileSeeder(path string, ownerID int64, validator TokenValidator) Seeder {
	return SeederFunc(func(ctx context.Context, dst Upserter) error {
		f, err := LoadSeedFile(path)
		if err != nil {
			return err
		}
		var result *multierror.Error
		stored := 0
		for i, sb := range f.Bots {
			bot, err := sb.toAutoBot(ctx, ownerID, validator)
			if err == nil {
				err = dst.Upsert(ctx, bot)
			}
			if err != nil {
				result = multierror.Append(result, fmt.Errorf("seed bot #%d (%s): %w", i, logger.MaskToken(sb.Token), err))
				continue
			}
			stored++
		}
		status := "ok"
		if result.ErrorOrNil() != nil {
			status = "fail"
		}
		logger.Info(ctx, logger.CompSeed, "seed.apply",
			slog.String("status", status),
			slog.String("path", path),
			slog.Int("count", stored),
			slog.Int("total", len(f.Bots)),
		)
		if stored == 0 && len(f.Bots) > 0 {
			return result.ErrorOrNil()
		}
		if err := result.ErrorOrNil(); err != nil {
			logger.Warn(ctx, logger.CompSeed, "seed.skip", slog.Any("err", err))
		}
		return nil
	})
}

func (sb SeedBot) toAutoBot(ctx context.Context, ownerID int64, validator TokenValidator) (*domain.AutoBot, error) {
	token := strings.TrimSpace(sb.Token)
	if token == "" {
		return nil, lifecycle.ErrNoToken
	}
	bot := &domain.AutoBot{
		OwnerID:         ownerID,
		Token:           token,
		Name:            sb.Name,
		Username:        strings.TrimPrefix(sb.Username, "@"),
		WelcomeMessage:  sb.WelcomeMessage,
		WelcomeImageURL: sb.WelcomeImageURL,
		IsActive:        sb.Active == nil || *sb.Active,
		Buttons:         make(menu.Buttons, len(sb.Buttons)),
	}
	for i, b := range sb.Buttons {
		if b.ID == "" {
			b.ID = menu.NewButtonID()
		}
		if b.CallbackData == "" && !b.IsLink() {
			b.CallbackData = b.ID
		}
		bot.Buttons[i] = b
	}
	if err := menu.Validate(bot.Buttons); err != nil {
		return nil, err
	}
	if validator != nil {
		id, err := validator.Validate(ctx, token)
		if err != nil {
			return nil, err
		}
		bot.TelegramID, bot.Username = id.ID, id.Username
		if bot.Name == "" {
			bot.Name = id.FirstName
		}
	}
	return bot, nil
}
