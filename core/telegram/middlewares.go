package telegram

import (
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/autobot/core/config"
	"github.com/m3rciful/autobot/core/telegram/middleware"
)

// Middleware describes a global bot middleware to be registered via bot.Use.
type Middleware struct {
	Name string
	Use  tele.MiddlewareFunc
}

// Route declares a single bot handler bound to an endpoint accepted by tele.Bot.Handle.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// DefaultMiddlewares builds the middleware chain shared by every hosted bot.
// Order matters: the logger seeds the context the rest of the chain reads.
func DefaultMiddlewares(id middleware.Identity, rl config.RateLimitConfig, onLimited tele.HandlerFunc) []Middleware {
	mws := []Middleware{
		{Name: "logger", Use: middleware.Logger(id)},
		{Name: "recover", Use: middleware.RecoverMiddleware},
	}
	interval := time.Duration(rl.IntervalMS) * time.Millisecond
	if interval > 0 {
		ex := make(map[string]struct{}, len(rl.ExcludeUpdates))
		for _, t := range rl.ExcludeUpdates {
			ex[strings.ToLower(t)] = struct{}{}
		}
		mws = append(mws, Middleware{
			Name: "rate_limit",
			Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
				Interval:  interval,
				Exclude:   ex,
				OnLimited: onLimited,
			}),
		})
	}
	return mws
}

// Apply registers middlewares and routes on bot.
func Apply(bot *tele.Bot, mws []Middleware, routes []Route) {
	for _, mw := range mws {
		if mw.Use != nil {
			bot.Use(mw.Use)
		}
	}
	for _, route := range routes {
		if route.Endpoint != nil && route.Handler != nil {
			bot.Handle(route.Endpoint, route.Handler)
		}
	}
}
