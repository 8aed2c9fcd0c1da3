// Package keyboard lays out inline keyboards for menu screens.
package keyboard

import (
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/autobot/core/menu"
)

// PerRow is the number of buttons placed side by side in a menu row.
const PerRow = 2

// Entry is one renderable keyboard button.
type Entry struct {
	Text         string
	CallbackData string
	URL          string
}

// FromButton converts a menu button into a keyboard entry.
func FromButton(b menu.Button) Entry {
	return Entry{Text: b.Text, CallbackData: b.CallbackData, URL: b.URL}
}

// FromButtons converts menu buttons into keyboard entries preserving order.
func FromButtons(buttons []menu.Button) []Entry {
	out := make([]Entry, 0, len(buttons))
	for _, b := range buttons {
		out = append(out, FromButton(b))
	}
	return out
}

// Inline converts the entry into a telebot inline button. Entries with a URL
// become link buttons; everything else carries raw callback data.
func (e Entry) Inline() tele.InlineButton {
	if e.URL != "" {
		return tele.InlineButton{Text: e.Text, URL: e.URL}
	}
	return tele.InlineButton{Text: e.Text, Data: e.CallbackData}
}

// Render lays entries out PerRow per row in arrival order. An empty input yields
// a markup with zero rows.
func Render(entries []Entry) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{}}
	for _, row := range Chunk(entries, PerRow) {
		AppendRow(markup, row...)
	}
	return markup
}

// AppendRow adds one row holding entries to markup. Empty rows are skipped.
func AppendRow(markup *tele.ReplyMarkup, entries ...Entry) {
	if markup == nil || len(entries) == 0 {
		return
	}
	row := make([]tele.InlineButton, 0, len(entries))
	for _, e := range entries {
		row = append(row, e.Inline())
	}
	markup.InlineKeyboard = append(markup.InlineKeyboard, row)
}

// Chunk splits items into rows of up to n elements. n <= 1 puts each item on its own row.
func Chunk[T any](items []T, n int) [][]T {
	if n < 1 {
		n = 1
	}
	rows := make([][]T, 0, (len(items)+n-1)/n)
	for i := 0; i < len(items); i += n {
		rows = append(rows, items[i:min(i+n, len(items))])
	}
	return rows
}

// RowCount returns the number of rows in markup.
func RowCount(markup *tele.ReplyMarkup) int {
	if markup == nil {
		return 0
	}
	return len(markup.InlineKeyboard)
}
