// Package callbacks reads callback query payloads.
package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// ParseCallbackData splits telebot's \f<unique>|<payload> encoding.
// Raw data without the \f marker is returned whole and untouched as unique,
// since menu lookups compare it byte for byte with the stored value.
func ParseCallbackData(cb *tele.Callback) (string, string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	raw := cb.Data
	if !strings.HasPrefix(raw, "\f") {
		return raw, ""
	}
	unique, payload, _ := strings.Cut(strings.TrimPrefix(raw, "\f"), "|")
	return strings.TrimSpace(unique), payload
}

// Data returns the callback data a menu button was created with.
func Data(cb *tele.Callback) string {
	if cb == nil {
		return ""
	}
	unique, payload := ParseCallbackData(cb)
	if payload == "" {
		return unique
	}
	return unique + "|" + payload
}

// MessageRef returns the id of the message carrying the tapped keyboard and
// whether that message holds media. A zero id means there is no usable reference.
func MessageRef(cb *tele.Callback) (int, bool) {
	if cb == nil || cb.Message == nil {
		return 0, false
	}
	m := cb.Message
	return m.ID, m.Photo != nil || m.Video != nil || m.Animation != nil || m.Document != nil || m.Audio != nil
}
