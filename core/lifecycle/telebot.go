package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/autobot/core/config"
	"github.com/m3rciful/autobot/core/delivery"
	"github.com/m3rciful/autobot/core/logger"
	"github.com/m3rciful/autobot/core/navigation"
	"github.com/m3rciful/autobot/core/telegram"
	"github.com/m3rciful/autobot/core/telegram/callbacks"
	"github.com/m3rciful/autobot/core/telegram/commands"
	tghelpers "github.com/m3rciful/autobot/core/telegram/helpers"
	"github.com/m3rciful/autobot/core/telegram/middleware"
	"github.com/m3rciful/autobot/core/telegram/router"
	"github.com/m3rciful/autobot/core/telegram/sender"
)

// TelebotConnector connects bots through telebot long polling and routes
// their updates into a navigation engine.
type TelebotConnector struct {
	Client     *http.Client
	Telegram   config.TelegramConfig
	RateLimit  config.RateLimitConfig
	Texts      config.TextsConfig
	Dispatcher *sender.Dispatcher
	// APIURL overrides the Bot API endpoint, mostly for tests.
	APIURL string
}

// Connect authenticates the token held by snap and wires handlers. Polling starts with Start.
func (tc *TelebotConnector) Connect(ctx context.Context, snap *Snapshot) (Connection, error) {
	cfg := snap.Load()
	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		URL:    tc.APIURL,
		Client: tc.Client,
		Poller: telegram.BuildPoller(telegram.PollerOptions{LongPollTimeoutSeconds: tc.Telegram.LongPollTimeoutSeconds}),
		OnError: func(err error, c tele.Context) {
			hctx := ctx
			if c != nil {
				hctx = tghelpers.BuildContext(c)
			}
			logger.Error(hctx, logger.CompTelegram, "tg.error",
				slog.String("status", "fail"),
				slog.Any("err", err),
			)
		},
	})
	if err != nil {
		if rejected(err) {
			err = fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		return nil, fmt.Errorf("connect %s: %w", logger.MaskToken(cfg.Token), err)
	}
	id := identityOf(bot.Me)
	ctx = logger.WithBot(ctx, id.ID, id.Username)

	// getUpdates is refused while a webhook is set
	if err := bot.RemoveWebhook(tc.Telegram.DropPendingUpdates); err != nil {
		logger.Warn(ctx, logger.CompWire, "tg.delete_webhook",
			slog.String("status", "fail"),
			slog.Any("err", err),
		)
	}

	var opts []delivery.Option
	if tc.Dispatcher != nil {
		opts = append(opts, delivery.WithDispatcher(tc.Dispatcher))
	}
	if tc.Telegram.SilentMessages {
		opts = append(opts, delivery.WithoutNotification())
	}
	engine := navigation.NewEngine(
		delivery.NewTelegram(bot, opts...),
		navigation.NewRenderer(tc.Texts),
		tc.Texts.UnknownCallback,
	)

	reg := telegram.NewRegistry()
	openMenu := func(c tele.Context) error {
		chat := c.Chat()
		if chat == nil {
			return nil
		}
		return engine.HandleUpdate(tghelpers.BuildContext(c), snap.Load(), navigation.Update{
			Kind:   navigation.UpdateStart,
			ChatID: chat.ID,
		})
	}
	reg.RegisterCommand(ctx, "/start", commands.Command{Handler: openMenu, Description: "Open the main menu"})
	reg.RegisterCommand(ctx, "/menu", commands.Command{Handler: openMenu, Description: "Show the menu again"})

	onCallback := func(c tele.Context) error {
		cb := c.Callback()
		upd := navigation.Update{Kind: navigation.UpdateCallback, CallbackID: cb.ID, Data: callbacks.Data(cb)}
		upd.MessageID, upd.MessageHasMedia = callbacks.MessageRef(cb)
		if chat := c.Chat(); chat != nil {
			upd.ChatID = chat.ID
		} else if cb.Sender != nil {
			upd.ChatID = cb.Sender.ID
		}
		return engine.HandleUpdate(tghelpers.BuildContext(c), snap.Load(), upd)
	}
	onLimited := func(c tele.Context) error {
		if c.Callback() != nil {
			return c.Respond()
		}
		return nil
	}

	routes := append(router.CommandRoutes(ctx, reg), router.CallbackRoute(onCallback))
	telegram.Apply(bot, telegram.DefaultMiddlewares(middleware.Identity{ID: id.ID, Username: id.Username}, tc.RateLimit, onLimited), routes)
	telegram.PublishCommands(ctx, bot, reg)

	return &telebotConn{bot: bot, id: id, done: make(chan struct{})}, nil
}

type telebotConn struct {
	bot     *tele.Bot
	id      Identity
	done    chan struct{}
	start   sync.Once
	stop    sync.Once
	started bool
}

func (c *telebotConn) Identity() Identity { return c.id }

func (c *telebotConn) Start() {
	c.start.Do(func() {
		c.started = true
		go func() {
			defer close(c.done)
			c.bot.Start()
		}()
	})
}

func (c *telebotConn) Stop(ctx context.Context) error {
	c.start.Do(func() { close(c.done) })
	if !c.started {
		return nil
	}
	c.stop.Do(func() { go c.bot.Stop() })
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
