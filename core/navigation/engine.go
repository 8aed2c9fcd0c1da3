package navigation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/autobot/core/delivery"
	"github.com/m3rciful/autobot/core/domain"
	"github.com/m3rciful/autobot/core/logger"
)

// ErrNoConfig is returned when HandleUpdate is called without a bot configuration.
var ErrNoConfig = errors.New("navigation: nil bot config")

// UpdateKind distinguishes the inbound events the engine understands.
type UpdateKind int

const (
	UpdateStart UpdateKind = iota
	UpdateCallback
)

// Update is the transport-neutral form of an inbound event.
type Update struct {
	Kind   UpdateKind
	ChatID int64
	// MessageID references the message carrying the tapped keyboard; 0 when unknown.
	MessageID int
	// MessageHasMedia is set when that message is a photo or other media and cannot take a text edit.
	MessageHasMedia bool
	CallbackID      string
	Data            string
}

// Engine renders views and drives delivery for one bot.
type Engine struct {
	out      delivery.Adapter
	renderer *Renderer
	unknown  string
}

// NewEngine returns an engine delivering through out. unknownText, when set,
// is shown as a toast for callbacks that match nothing.
func NewEngine(out delivery.Adapter, renderer *Renderer, unknownText string) *Engine {
	return &Engine{out: out, renderer: renderer, unknown: unknownText}
}

// HandleUpdate processes one update against bot. Delivery failures are logged
// and swallowed so a bot's poll loop never stops on them.
func (e *Engine) HandleUpdate(ctx context.Context, bot *domain.AutoBot, upd Update) error {
	if bot == nil {
		return ErrNoConfig
	}
	ctx = logger.WithBot(ctx, bot.TelegramID, bot.Username)
	start := time.Now()

	switch upd.Kind {
	case UpdateStart:
		screen := e.renderer.Render(bot, View{Kind: ViewRoot})
		outcome := "ok"
		if _, err := e.sendNew(ctx, upd.ChatID, screen); err != nil {
			outcome = "fail"
		}
		e.logView(ctx, "nav.start", screen, outcome, start)
		return nil

	case UpdateCallback:
		view, known := Resolve(bot.Buttons, upd.Data)
		toast := ""
		if !known {
			toast = e.unknown
		}
		if err := e.out.Acknowledge(ctx, upd.CallbackID, toast); err != nil {
			logger.Warn(ctx, logger.CompNav, "nav.ack",
				slog.String("status", "fail"),
				slog.Any("err", err),
			)
		}
		if !known {
			logger.Info(ctx, logger.CompNav, "nav.callback",
				slog.String("status", "skip"),
				slog.String("cb_data", logger.SanitizeLimit(upd.Data, 64)),
				slog.String("view", "unknown"),
			)
			return nil
		}
		screen := e.renderer.Render(bot, view)
		outcome := e.present(ctx, upd, screen)
		e.logView(ctx, "nav.callback", screen, outcome, start,
			slog.String("cb_data", logger.SanitizeLimit(upd.Data, 64)))
		return nil
	}
	return fmt.Errorf("navigation: unknown update kind %d", upd.Kind)
}

// present replaces the message behind upd with screen, leaving exactly one live message.
func (e *Engine) present(ctx context.Context, upd Update, s Screen) string {
	// Telegram cannot turn a text message into a photo, so image screens always go out fresh.
	if s.ImageURL != "" {
		_, err := e.out.SendImage(ctx, upd.ChatID, s.ImageURL, s.Text, s.Markup)
		if err == nil {
			e.dropOld(ctx, upd)
			return "ok"
		}
		e.logFailure(ctx, "send_image", err)
		if e.replaceOrEdit(ctx, upd, s) {
			return "fallback"
		}
		return "fail"
	}
	if e.replaceOrEdit(ctx, upd, s) {
		return "ok"
	}
	return "fail"
}

func (e *Engine) replaceOrEdit(ctx context.Context, upd Update, s Screen) bool {
	if upd.MessageID != 0 && !upd.MessageHasMedia {
		err := e.out.EditText(ctx, upd.ChatID, upd.MessageID, s.Text, s.Markup)
		if err == nil {
			return true
		}
		e.logFailure(ctx, "edit_text", err)
	}
	// one resend attempt; on failure the old message stays as the live one
	if _, err := e.out.SendText(ctx, upd.ChatID, s.Text, s.Markup); err != nil {
		e.logFailure(ctx, "send_text", err)
		return false
	}
	e.dropOld(ctx, upd)
	return true
}

func (e *Engine) sendNew(ctx context.Context, chatID int64, s Screen) (int, error) {
	if s.ImageURL != "" {
		id, err := e.out.SendImage(ctx, chatID, s.ImageURL, s.Text, s.Markup)
		if err == nil {
			return id, nil
		}
		e.logFailure(ctx, "send_image", err)
	}
	id, err := e.out.SendText(ctx, chatID, s.Text, s.Markup)
	if err != nil {
		e.logFailure(ctx, "send_text", err)
	}
	return id, err
}

func (e *Engine) dropOld(ctx context.Context, upd Update) {
	if upd.MessageID == 0 {
		return
	}
	if err := e.out.DeleteMessage(ctx, upd.ChatID, upd.MessageID); err != nil {
		e.logFailure(ctx, "delete_message", err)
	}
}

func (e *Engine) logFailure(ctx context.Context, action string, err error) {
	logger.Warn(ctx, logger.CompDelivery, "delivery.fail",
		slog.String("status", "fail"),
		slog.String("action", action),
		slog.Any("err", err),
	)
}

func (e *Engine) logView(ctx context.Context, event string, s Screen, outcome string, start time.Time, extra ...slog.Attr) {
	attrs := []slog.Attr{
		slog.String("status", "ok"),
		slog.String("view", s.View.Kind.String()),
		slog.String("outcome", outcome),
		slog.Duration("duration", time.Since(start)),
	}
	if outcome == "fail" {
		attrs[0] = slog.String("status", "fail")
	}
	if s.Markup != nil {
		attrs = append(attrs, slog.Int("rows", len(s.Markup.InlineKeyboard)))
	}
	logger.Info(ctx, logger.CompNav, event, append(attrs, extra...)...)
}
