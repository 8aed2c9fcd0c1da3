package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/autobot/core/logger"
)

// ErrInvalidToken is returned for tokens that are malformed or rejected by Telegram.
var ErrInvalidToken = errors.New("lifecycle: invalid bot token")

var tokenPattern = regexp.MustCompile(`^[0-9]{5,}:[A-Za-z0-9_-]{30,}$`)

// Identity is what Telegram reports about a bot through getMe.
type Identity struct {
	ID        int64
	Username  string
	FirstName string
}

// Validator checks tokens against the Bot API.
type Validator struct {
	// Client is used for the getMe call; nil uses telebot's default.
	Client *http.Client
	// APIURL overrides the Bot API endpoint, mostly for tests.
	APIURL string
}

// Validate resolves the bot identity behind token. Rejections by Telegram wrap
// ErrInvalidToken; transport failures are returned as is.
func (v *Validator) Validate(ctx context.Context, token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if !tokenPattern.MatchString(token) {
		return Identity{}, fmt.Errorf("%w: malformed", ErrInvalidToken)
	}
	start := time.Now()
	bot, err := tele.NewBot(tele.Settings{Token: token, Client: v.Client, URL: v.APIURL})
	if err != nil {
		if rejected(err) {
			err = fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		logger.Warn(ctx, logger.CompLifecycle, "token.validate",
			slog.String("status", "fail"),
			slog.String("bot", logger.MaskToken(token)),
			slog.Any("err", err),
			slog.Duration("duration", time.Since(start)),
		)
		return Identity{}, err
	}
	id := identityOf(bot.Me)
	logger.Info(logger.WithBot(ctx, id.ID, id.Username), logger.CompLifecycle, "token.validate",
		slog.String("status", "ok"),
		slog.Duration("duration", time.Since(start)),
	)
	return id, nil
}

func identityOf(u *tele.User) Identity {
	if u == nil {
		return Identity{}
	}
	return Identity{ID: u.ID, Username: u.Username, FirstName: u.FirstName}
}

// rejected reports whether Telegram refused the token itself.
func rejected(err error) bool {
	switch statusCode(err) {
	case http.StatusUnauthorized, http.StatusNotFound:
		return true
	}
	return false
}

func statusCode(err error) int {
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	// telebot reports unmapped API errors as "telegram: <description> (<code>)"
	msg := err.Error()
	open, closing := strings.LastIndex(msg, "("), strings.LastIndex(msg, ")")
	if open >= 0 && closing > open+1 {
		if code, convErr := strconv.Atoi(strings.TrimSpace(msg[open+1 : closing])); convErr == nil {
			return code
		}
	}
	return 0
}
