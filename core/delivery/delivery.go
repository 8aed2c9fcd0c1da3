// Package delivery sends, edits and removes the chat messages rendered by the menu engine.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/autobot/core/logger"
	"github.com/m3rciful/autobot/core/telegram/netutil"
	"github.com/m3rciful/autobot/core/telegram/sender"
)

// Telegram payload limits in runes.
const (
	MaxTextLen    = 4096
	MaxCaptionLen = 1024
)

// ErrNoMessage is returned when an operation needs a message reference that is missing.
var ErrNoMessage = errors.New("delivery: no message reference")

// Adapter is the message surface the navigation engine drives.
type Adapter interface {
	SendText(ctx context.Context, chatID int64, text string, markup *tele.ReplyMarkup) (int, error)
	SendImage(ctx context.Context, chatID int64, imageURL, caption string, markup *tele.ReplyMarkup) (int, error)
	EditText(ctx context.Context, chatID int64, messageID int, text string, markup *tele.ReplyMarkup) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	Acknowledge(ctx context.Context, callbackID, text string) error
}

// API is the subset of *tele.Bot the adapter calls.
type API interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
	Delete(msg tele.Editable) error
	Respond(c *tele.Callback, resp ...*tele.CallbackResponse) error
}

// Telegram implements Adapter on top of a telebot bot.
type Telegram struct {
	api    API
	queue  *sender.Dispatcher
	silent bool
}

// Option customizes a Telegram adapter.
type Option func(*Telegram)

// WithDispatcher routes deletes of superseded messages through d instead of running them inline.
func WithDispatcher(d *sender.Dispatcher) Option {
	return func(t *Telegram) { t.queue = d }
}

// WithoutNotification sends messages silently.
func WithoutNotification() Option {
	return func(t *Telegram) { t.silent = true }
}

// NewTelegram wraps api into an Adapter.
func NewTelegram(api API, opts ...Option) *Telegram {
	t := &Telegram{api: api}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *Telegram) sendOptions(markup *tele.ReplyMarkup) *tele.SendOptions {
	return &tele.SendOptions{ReplyMarkup: markup, DisableNotification: t.silent}
}

// SendText posts a new text message and returns its id.
func (t *Telegram) SendText(ctx context.Context, chatID int64, text string, markup *tele.ReplyMarkup) (int, error) {
	start := time.Now()
	msg, err := t.api.Send(tele.ChatID(chatID), Truncate(text, MaxTextLen), t.sendOptions(markup))
	t.trace(ctx, "send_text", start, err)
	if err != nil {
		return 0, fmt.Errorf("send text: %w", err)
	}
	return msg.ID, nil
}

// SendImage posts a photo fetched by Telegram from imageURL with caption and returns its id.
func (t *Telegram) SendImage(ctx context.Context, chatID int64, imageURL, caption string, markup *tele.ReplyMarkup) (int, error) {
	start := time.Now()
	photo := &tele.Photo{File: tele.FromURL(imageURL), Caption: Truncate(caption, MaxCaptionLen)}
	msg, err := t.api.Send(tele.ChatID(chatID), photo, t.sendOptions(markup))
	t.trace(ctx, "send_image", start, err)
	if err != nil {
		return 0, fmt.Errorf("send image: %w", err)
	}
	return msg.ID, nil
}

// EditText replaces text and keyboard of an existing text message.
// An edit that changes nothing is treated as success.
func (t *Telegram) EditText(ctx context.Context, chatID int64, messageID int, text string, markup *tele.ReplyMarkup) error {
	if messageID == 0 {
		return ErrNoMessage
	}
	start := time.Now()
	_, err := t.api.Edit(stored(chatID, messageID), Truncate(text, MaxTextLen), t.sendOptions(markup))
	if netutil.IsNotModified(err) {
		err = nil
	}
	t.trace(ctx, "edit_text", start, err)
	if err != nil {
		return fmt.Errorf("edit text: %w", err)
	}
	return nil
}

// DeleteMessage removes a message. With a dispatcher configured the call is
// queued and retried in the background and only enqueue errors are returned.
// A message that is already gone counts as deleted.
func (t *Telegram) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if messageID == 0 {
		return ErrNoMessage
	}
	del := func(context.Context) error {
		if err := t.api.Delete(stored(chatID, messageID)); err != nil && !netutil.IsMessageGone(err) {
			return err
		}
		return nil
	}
	if t.queue != nil {
		err := t.queue.Enqueue(ctx, "delete_message", del)
		switch {
		case err == nil:
			return nil
		case !errors.Is(err, sender.ErrQueueFull):
			return fmt.Errorf("queue delete: %w", err)
		}
	}
	start := time.Now()
	err := del(ctx)
	t.trace(ctx, "delete_message", start, err)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// Acknowledge answers a callback query, optionally showing text as a toast.
func (t *Telegram) Acknowledge(ctx context.Context, callbackID, text string) error {
	if callbackID == "" {
		return nil
	}
	start := time.Now()
	var resp []*tele.CallbackResponse
	if text != "" {
		resp = append(resp, &tele.CallbackResponse{Text: text})
	}
	err := t.api.Respond(&tele.Callback{ID: callbackID}, resp...)
	t.trace(ctx, "answer_callback", start, err)
	if err != nil {
		return fmt.Errorf("answer callback: %w", err)
	}
	return nil
}

func (t *Telegram) trace(ctx context.Context, action string, start time.Time, err error) {
	if err != nil || !logger.ShouldSampleDebug() {
		return
	}
	logger.Debug(ctx, logger.CompDelivery, "delivery.call",
		slog.String("action", action),
		slog.String("status", "ok"),
		slog.Duration("duration", time.Since(start)),
	)
}

func stored(chatID int64, messageID int) tele.StoredMessage {
	return tele.StoredMessage{ChatID: chatID, MessageID: strconv.Itoa(messageID)}
}

// Truncate cuts s to at most limit runes, marking the cut with an ellipsis.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}
