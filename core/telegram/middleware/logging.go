// Package middleware holds the telebot middlewares shared by hosted bots.
package middleware

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/autobot/core/logger"
	"github.com/m3rciful/autobot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/autobot/core/telegram/helpers"
)

// Identity names the bot a middleware chain belongs to.
type Identity struct {
	ID       int64
	Username string
}

// Logger seeds each update's context with rid, update meta and bot identity,
// and logs a sampled receipt line.
func Logger(id Identity) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			ctx := tghelpers.BuildContext(c)
			ctx = logger.WithBot(ctx, id.ID, id.Username)
			ctx = logger.WithLogger(ctx, logger.Component(logger.CompTelegram))
			tghelpers.StoreContext(c, ctx)

			if logger.ShouldSampleDebug() {
				upd := c.Update()
				attrs := []slog.Attr{slog.String("status", "ok")}
				if chat := c.Chat(); chat != nil {
					attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
				}
				if user := c.Sender(); user != nil && user.LanguageCode != "" {
					attrs = append(attrs, slog.String("lang", user.LanguageCode))
				}
				switch {
				case upd.Callback != nil:
					attrs = append(attrs, slog.String("cb_data", logger.SanitizeLimit(callbacks.Data(upd.Callback), 64)))
				case upd.Message != nil:
					if t := c.Text(); t != "" {
						attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(t, 256)))
					}
				}
				logger.LogEvent(ctx, nil, slog.LevelDebug, "update.received", attrs...)
			}
			return next(c)
		}
	}
}
