// Package autobot is the configuration-edit path for hosted bots: it persists
// changes and pushes them into the running connections.
package autobot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/m3rciful/autobot/core/domain"
	"github.com/m3rciful/autobot/core/lifecycle"
	"github.com/m3rciful/autobot/core/logger"
	"github.com/m3rciful/autobot/core/menu"
)

var (
	// ErrForbidden is returned when a user addresses a bot they do not own.
	ErrForbidden = errors.New("autobot: not the owner of this bot")
	// ErrInvalidToken mirrors lifecycle.ErrInvalidToken for callers of this package.
	ErrInvalidToken = lifecycle.ErrInvalidToken
)

// Store is the persistence the service needs.
type Store interface {
	GetActiveConfigs(ctx context.Context) ([]*domain.AutoBot, error)
	GetConfig(ctx context.Context, id int64) (*domain.AutoBot, error)
	GetConfigsByOwner(ctx context.Context, ownerID int64) ([]*domain.AutoBot, error)
	Create(ctx context.Context, bot *domain.AutoBot) error
	SaveButtons(ctx context.Context, id int64, buttons menu.Buttons) error
	UpdateMessages(ctx context.Context, id int64, welcome, imageURL string) error
	SetActive(ctx context.Context, id int64, active bool) error
	Delete(ctx context.Context, id int64) error
}

// Runtime controls live connections.
type Runtime interface {
	Start(ctx context.Context, bot *domain.AutoBot) error
	Stop(ctx context.Context, token string) bool
	Reload(bot *domain.AutoBot) bool
	RestartAll(ctx context.Context, bots []*domain.AutoBot) error
}

// TokenValidator resolves a token to the bot identity behind it.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (lifecycle.Identity, error)
}

// Service edits bot configurations.
type Service struct {
	store     Store
	runtime   Runtime
	validator TokenValidator

	// menu edits are read-modify-write on one document
	editMu sync.Mutex
}

// NewService wires a Service.
func NewService(store Store, runtime Runtime, validator TokenValidator) *Service {
	return &Service{store: store, runtime: runtime, validator: validator}
}

// StartAll (re)starts every active bot from the store.
func (s *Service) StartAll(ctx context.Context) error {
	bots, err := s.store.GetActiveConfigs(ctx)
	if err != nil {
		return err
	}
	return s.runtime.RestartAll(ctx, bots)
}

// Create registers a bot for ownerID after checking the token with Telegram,
// then starts it. The stored bot is returned even when starting fails.
func (s *Service) Create(ctx context.Context, ownerID int64, token, welcome string) (*domain.AutoBot, error) {
	token = strings.TrimSpace(token)
	id, err := s.validator.Validate(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("validate token: %w", err)
	}
	bot := &domain.AutoBot{
		OwnerID:        ownerID,
		Token:          token,
		TelegramID:     id.ID,
		Name:           id.FirstName,
		Username:       id.Username,
		WelcomeMessage: strings.TrimSpace(welcome),
		IsActive:       true,
		Buttons:        menu.Buttons{},
	}
	if err := s.store.Create(ctx, bot); err != nil {
		return nil, err
	}
	ctx = logger.WithBot(ctx, bot.TelegramID, bot.Username)
	logger.Info(ctx, logger.CompAutobots, "bot.create",
		slog.String("status", "ok"),
		slog.Int64("config_id", bot.ID),
		slog.Int64("owner_id", ownerID),
	)
	if err := s.runtime.Start(ctx, bot); err != nil {
		return bot, err
	}
	return bot, nil
}

// List returns the bots of ownerID.
func (s *Service) List(ctx context.Context, ownerID int64) ([]*domain.AutoBot, error) {
	return s.store.GetConfigsByOwner(ctx, ownerID)
}

// Owned returns bot id when it belongs to ownerID.
func (s *Service) Owned(ctx context.Context, ownerID, id int64) (*domain.AutoBot, error) {
	bot, err := s.store.GetConfig(ctx, id)
	if err != nil {
		return nil, err
	}
	if bot.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	return bot, nil
}

// AddButton appends b to the menu of bot id and returns it with its assigned id.
func (s *Service) AddButton(ctx context.Context, id int64, b menu.Button) (menu.Button, error) {
	var added menu.Button
	err := s.editButtons(ctx, id, "button.add", func(buttons []menu.Button) ([]menu.Button, error) {
		next, btn, err := menu.Add(buttons, b)
		added = btn
		return next, err
	})
	return added, err
}

// UpdateButton replaces the button with b.ID in bot id.
func (s *Service) UpdateButton(ctx context.Context, id int64, b menu.Button) error {
	return s.editButtons(ctx, id, "button.update", func(buttons []menu.Button) ([]menu.Button, error) {
		return menu.Replace(buttons, b)
	})
}

// RemoveButton deletes a button and its descendants from bot id.
func (s *Service) RemoveButton(ctx context.Context, id int64, buttonID string) error {
	return s.editButtons(ctx, id, "button.remove", func(buttons []menu.Button) ([]menu.Button, error) {
		return menu.Remove(buttons, buttonID)
	})
}

func (s *Service) editButtons(ctx context.Context, id int64, event string, edit func([]menu.Button) ([]menu.Button, error)) error {
	s.editMu.Lock()
	defer s.editMu.Unlock()

	bot, err := s.store.GetConfig(ctx, id)
	if err != nil {
		return err
	}
	ctx = logger.WithBot(ctx, bot.TelegramID, bot.Username)
	next, err := edit(bot.Buttons)
	if err != nil {
		logger.Warn(ctx, logger.CompAutobots, event,
			slog.String("status", "fail"),
			slog.Int64("config_id", id),
			slog.Any("err", err),
		)
		return err
	}
	if err := s.store.SaveButtons(ctx, id, next); err != nil {
		return err
	}
	bot.Buttons = next
	reloaded := s.runtime.Reload(bot)
	logger.Info(ctx, logger.CompAutobots, event,
		slog.String("status", "ok"),
		slog.Int64("config_id", id),
		slog.Int("buttons", len(next)),
		slog.Bool("reloaded", reloaded),
	)
	if dups := menu.DuplicateCallbacks(next); len(dups) > 0 {
		preview, _ := logger.SummarizeStrings(dups, 5)
		logger.Warn(ctx, logger.CompAutobots, "menu.duplicate_callbacks",
			slog.Int64("config_id", id),
			slog.String("callbacks", preview),
		)
	}
	return nil
}

// UpdateMessages sets the welcome text and image of bot id.
func (s *Service) UpdateMessages(ctx context.Context, id int64, welcome, imageURL string) error {
	s.editMu.Lock()
	defer s.editMu.Unlock()

	welcome, imageURL = strings.TrimSpace(welcome), strings.TrimSpace(imageURL)
	if err := s.store.UpdateMessages(ctx, id, welcome, imageURL); err != nil {
		return err
	}
	bot, err := s.store.GetConfig(ctx, id)
	if err != nil {
		return err
	}
	s.runtime.Reload(bot)
	return nil
}

// SetActive persists the flag and starts or stops the bot accordingly.
func (s *Service) SetActive(ctx context.Context, id int64, active bool) error {
	if err := s.store.SetActive(ctx, id, active); err != nil {
		return err
	}
	bot, err := s.store.GetConfig(ctx, id)
	if err != nil {
		return err
	}
	ctx = logger.WithBot(ctx, bot.TelegramID, bot.Username)
	logger.Info(ctx, logger.CompAutobots, "bot.set_active",
		slog.Int64("config_id", id),
		slog.Bool("active", active),
	)
	if active {
		return s.runtime.Start(ctx, bot)
	}
	s.runtime.Stop(ctx, bot.Token)
	return nil
}

// Delete stops bot id if running and removes it.
func (s *Service) Delete(ctx context.Context, id int64) error {
	bot, err := s.store.GetConfig(ctx, id)
	if err != nil {
		return err
	}
	s.runtime.Stop(ctx, bot.Token)
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	logger.Info(logger.WithBot(ctx, bot.TelegramID, bot.Username), logger.CompAutobots, "bot.delete",
		slog.String("status", "ok"),
		slog.Int64("config_id", id),
	)
	return nil
}
