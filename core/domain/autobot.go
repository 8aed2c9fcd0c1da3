// Package domain holds the auto bot entity shared by storage, runtime and the edit path.
package domain

import (
	"time"

	"github.com/m3rciful/autobot/core/menu"
)

// AutoBot is one user-owned bot definition together with its menu tree.
type AutoBot struct {
	ID              int64        `db:"id"`
	OwnerID         int64        `db:"owner_id"`
	Token           string       `db:"token"`
	TelegramID      int64        `db:"telegram_id"`
	Name            string       `db:"name"`
	Username        string       `db:"username"`
	WelcomeMessage  string       `db:"welcome_message"`
	WelcomeImageURL string       `db:"welcome_image_url"`
	IsActive        bool         `db:"is_active"`
	Buttons         menu.Buttons `db:"keyboard_config"`
	CreatedAt       time.Time    `db:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at"`
}

// Clone returns a copy whose button slice can be edited without touching the original.
func (a *AutoBot) Clone() *AutoBot {
	if a == nil {
		return nil
	}
	c := *a
	c.Buttons = append(menu.Buttons(nil), a.Buttons...)
	return &c
}
