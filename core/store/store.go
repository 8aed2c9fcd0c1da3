// Package store persists auto bot configurations in Postgres.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/m3rciful/autobot/core/domain"
	"github.com/m3rciful/autobot/core/logger"
	"github.com/m3rciful/autobot/core/menu"
)

var (
	// ErrNotFound is returned when no row matches.
	ErrNotFound = errors.New("store: auto bot not found")
	// ErrDuplicateToken is returned when another config already uses the token.
	ErrDuplicateToken = errors.New("store: token already registered")
)

const selectColumns = `SELECT id, owner_id, token, telegram_id, name, username,
	welcome_message, welcome_image_url, is_active, keyboard_config, created_at, updated_at
	FROM auto_bots`

// Store reads and writes the auto_bots table.
type Store struct {
	db *sqlx.DB
}

// New returns a Store backed by db.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// GetActiveConfigs returns every active bot ordered by id.
func (s *Store) GetActiveConfigs(ctx context.Context) ([]*domain.AutoBot, error) {
	var out []*domain.AutoBot
	err := s.observe(ctx, "active", func() error {
		return s.db.SelectContext(ctx, &out, selectColumns+` WHERE is_active ORDER BY id`)
	})
	if err != nil {
		return nil, fmt.Errorf("select active bots: %w", err)
	}
	return out, nil
}

// GetConfig returns the bot with id.
func (s *Store) GetConfig(ctx context.Context, id int64) (*domain.AutoBot, error) {
	return s.getOne(ctx, "by_id", selectColumns+` WHERE id = $1`, id)
}

// GetConfigByToken returns the bot registered with token.
func (s *Store) GetConfigByToken(ctx context.Context, token string) (*domain.AutoBot, error) {
	return s.getOne(ctx, "by_token", selectColumns+` WHERE token = $1`, token)
}

// GetConfigsByOwner returns the bots of one owner ordered by id.
func (s *Store) GetConfigsByOwner(ctx context.Context, ownerID int64) ([]*domain.AutoBot, error) {
	var out []*domain.AutoBot
	err := s.observe(ctx, "by_owner", func() error {
		return s.db.SelectContext(ctx, &out, selectColumns+` WHERE owner_id = $1 ORDER BY id`, ownerID)
	})
	if err != nil {
		return nil, fmt.Errorf("select bots of owner %d: %w", ownerID, err)
	}
	return out, nil
}

func (s *Store) getOne(ctx context.Context, op, query string, arg any) (*domain.AutoBot, error) {
	var bot domain.AutoBot
	err := s.observe(ctx, op, func() error {
		return s.db.GetContext(ctx, &bot, query, arg)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select bot %s: %w", op, err)
	}
	return &bot, nil
}

const insertBot = `INSERT INTO auto_bots
	(owner_id, token, telegram_id, name, username, welcome_message, welcome_image_url, is_active, keyboard_config)
	VALUES (:owner_id, :token, :telegram_id, :name, :username, :welcome_message, :welcome_image_url, :is_active, :keyboard_config)`

// Create inserts bot and fills its id and timestamps.
func (s *Store) Create(ctx context.Context, bot *domain.AutoBot) error {
	return s.insert(ctx, "create", insertBot+` RETURNING id, created_at, updated_at`, bot)
}

// Upsert inserts bot or, when its token is already registered, overwrites the
// stored profile and menu. Ownership is never changed.
func (s *Store) Upsert(ctx context.Context, bot *domain.AutoBot) error {
	return s.insert(ctx, "upsert", insertBot+` ON CONFLICT (token) DO UPDATE SET
		telegram_id = EXCLUDED.telegram_id,
		name = EXCLUDED.name,
		username = EXCLUDED.username,
		welcome_message = EXCLUDED.welcome_message,
		welcome_image_url = EXCLUDED.welcome_image_url,
		is_active = EXCLUDED.is_active,
		keyboard_config = EXCLUDED.keyboard_config,
		updated_at = NOW()
		RETURNING id, created_at, updated_at`, bot)
}

func (s *Store) insert(ctx context.Context, op, query string, bot *domain.AutoBot) error {
	if bot.Buttons == nil {
		bot.Buttons = menu.Buttons{}
	}
	err := s.observe(ctx, op, func() error {
		rows, err := s.db.NamedQueryContext(ctx, query, bot)
		if err != nil {
			return err
		}
		defer rows.Close()
		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return err
			}
			return sql.ErrNoRows
		}
		return rows.Scan(&bot.ID, &bot.CreatedAt, &bot.UpdatedAt)
	})
	if isUniqueViolation(err) {
		return ErrDuplicateToken
	}
	if err != nil {
		return fmt.Errorf("%s bot: %w", op, err)
	}
	return nil
}

// SaveButtons replaces the whole menu of bot id.
func (s *Store) SaveButtons(ctx context.Context, id int64, buttons menu.Buttons) error {
	return s.update(ctx, "save_buttons", `UPDATE auto_bots SET keyboard_config = $2, updated_at = NOW() WHERE id = $1`, id, buttons)
}

// UpdateMessages sets the welcome text and image of bot id.
func (s *Store) UpdateMessages(ctx context.Context, id int64, welcome, imageURL string) error {
	return s.update(ctx, "update_messages", `UPDATE auto_bots SET welcome_message = $2, welcome_image_url = $3, updated_at = NOW() WHERE id = $1`, id, welcome, imageURL)
}

// SetActive flips the active flag of bot id.
func (s *Store) SetActive(ctx context.Context, id int64, active bool) error {
	return s.update(ctx, "set_active", `UPDATE auto_bots SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
}

// Delete removes bot id.
func (s *Store) Delete(ctx context.Context, id int64) error {
	return s.update(ctx, "delete", `DELETE FROM auto_bots WHERE id = $1`, id)
}

func (s *Store) update(ctx context.Context, op, query string, args ...any) error {
	var affected int64
	err := s.observe(ctx, op, func() error {
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// observe runs fn and logs failures; successes are sampled at debug level.
func (s *Store) observe(ctx context.Context, op string, fn func() error) error {
	start := time.Now()
	err := fn()
	switch {
	case err == nil:
		if logger.ShouldSampleDebug() {
			logger.Debug(ctx, logger.CompStore, "store.query",
				slog.String("status", "ok"),
				slog.String("op", op),
				slog.Duration("duration", logger.Took(start)),
			)
		}
	case errors.Is(err, sql.ErrNoRows):
	default:
		logger.Error(ctx, logger.CompStore, "store.query",
			slog.String("status", "fail"),
			slog.String("op", op),
			slog.Duration("duration", logger.Took(start)),
			slog.Any("err", err),
		)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
