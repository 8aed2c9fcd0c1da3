package router

import (
	"context"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/autobot/core/logger"
	tg "github.com/m3rciful/autobot/core/telegram"
)

// CommandRoutes binds every registered command and its aliases.
func CommandRoutes(ctx context.Context, reg *tg.Registry) []tg.Route {
	if reg == nil {
		return nil
	}
	routes := make([]tg.Route, 0, len(reg.Commands()))
	for cmd, def := range reg.Commands() {
		name := "command." + normalizeHandlerName(cmd)
		h := def.Handler
		wrapped := func(c tele.Context) error {
			return handleWithSummary(c, name, func() error { return h(c) })
		}
		routes = append(routes, tg.Route{Endpoint: cmd, Handler: wrapped})
		for _, alias := range def.Aliases {
			if alias != "" && alias[0] != '/' {
				alias = "/" + alias
			}
			routes = append(routes, tg.Route{Endpoint: alias, Handler: wrapped})
		}
	}
	logger.Debug(ctx, logger.CompWire, "tg.wire",
		slog.String("status", "ok"),
		slog.Int("count", len(routes)),
	)
	return routes
}
