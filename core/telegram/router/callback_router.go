package router

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/autobot/core/logger"
	tg "github.com/m3rciful/autobot/core/telegram"
	"github.com/m3rciful/autobot/core/telegram/callbacks"
)

// CallbackRoute sends every callback query to handler. Menu buttons carry raw
// callback data, so telebot dispatches them all to tele.OnCallback.
func CallbackRoute(handler tele.HandlerFunc) tg.Route {
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler: func(c tele.Context) error {
			cb := c.Callback()
			if cb == nil {
				return nil
			}
			return handleWithSummary(c, "callback", func() error { return handler(c) },
				slog.String("cb_data", logger.SanitizeLimit(callbacks.Data(cb), 64)),
			)
		},
	}
}
