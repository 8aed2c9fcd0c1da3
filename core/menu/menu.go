// Package menu models the configurable inline-keyboard tree of an auto bot.
//
// Buttons live in one flat, ordered collection per bot. Structure is derived
// from Level and ParentID on demand; nothing here builds or caches a tree.
package menu

import (
	"cmp"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// MaxLevel is the deepest level a button may sit at.
const MaxLevel = 5

// MaxCallbackDataLen is Telegram's limit on callback_data, in bytes.
const MaxCallbackDataLen = 64

var (
	// ErrNotFound is returned by edits addressing a button id that does not exist.
	ErrNotFound = errors.New("menu: button not found")
	// ErrInvalidLevel is returned when a button's level or parent is inconsistent.
	ErrInvalidLevel = errors.New("menu: invalid level")
	// ErrCallbackTooLong is returned for callback data Telegram would refuse.
	ErrCallbackTooLong = errors.New("menu: callback data too long")
)

// Button is one configurable node of the keyboard tree.
type Button struct {
	ID            string `json:"id" yaml:"id"`
	Text          string `json:"text" yaml:"text"`
	CallbackData  string `json:"callbackData" yaml:"callback_data"`
	URL           string `json:"url,omitempty" yaml:"url"`
	Level         int    `json:"level" yaml:"level"`
	ParentID      string `json:"parentId,omitempty" yaml:"parent_id"`
	ResponseText  string `json:"responseText,omitempty" yaml:"response_text"`
	ResponseImage string `json:"responseImage,omitempty" yaml:"response_image"`
	IsAllShow     bool   `json:"isAllShow,omitempty" yaml:"is_all_show"`
}

// IsLink reports whether the button opens an external URL instead of producing a callback.
func (b Button) IsLink() bool { return b.URL != "" }

// Buttons is the ordered button collection owned by one bot configuration.
// It is stored as a JSON document.
type Buttons []Button

// Value implements driver.Valuer. The document is passed as text because
// lib/pq would encode a byte slice as bytea, which jsonb rejects.
func (bs Buttons) Value() (driver.Value, error) {
	if bs == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]Button(bs))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (bs *Buttons) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*bs = Buttons{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("menu: cannot scan %T into Buttons", src)
	}
	var out []Button
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("menu: decode buttons: %w", err)
	}
	if out == nil {
		out = []Button{}
	}
	*bs = out
	return nil
}

// ChildrenOf returns the buttons at exactly level whose parent is parentID, in stored order.
func ChildrenOf(buttons []Button, parentID string, level int) []Button {
	if parentID == "" {
		return nil
	}
	var out []Button
	for _, b := range buttons {
		if b.Level == level && b.ParentID == parentID {
			out = append(out, b)
		}
	}
	return out
}

// HasChildren reports whether b has at least one button one level below it.
func HasChildren(buttons []Button, b Button) bool {
	for _, c := range buttons {
		if c.Level == b.Level+1 && c.ParentID == b.ID && b.ID != "" {
			return true
		}
	}
	return false
}

// RootButtons returns level-0 buttons except the all-show trigger.
func RootButtons(buttons []Button) []Button {
	var out []Button
	for _, b := range buttons {
		if b.Level == 0 && !b.IsAllShow {
			out = append(out, b)
		}
	}
	return out
}

// FindAllShowButton returns the first all-show button in stored order.
func FindAllShowButton(buttons []Button) (Button, bool) {
	for _, b := range buttons {
		if b.IsAllShow {
			return b, true
		}
	}
	return Button{}, false
}

// ResolveByCallback returns the first button whose callback data equals data.
// Link buttons never resolve since Telegram sends no callback for them.
func ResolveByCallback(buttons []Button, data string) (Button, bool) {
	if data == "" {
		return Button{}, false
	}
	for _, b := range buttons {
		if b.CallbackData == data && !b.IsLink() {
			return b, true
		}
	}
	return Button{}, false
}

// NonAllShow returns every button except all-show triggers.
func NonAllShow(buttons []Button) []Button {
	out := make([]Button, 0, len(buttons))
	for _, b := range buttons {
		if !b.IsAllShow {
			out = append(out, b)
		}
	}
	return out
}

// LevelGroup is a run of buttons sharing one level.
type LevelGroup struct {
	Level   int
	Buttons []Button
}

// ByLevel groups non all-show buttons by level, shallowest first, keeping stored order inside a group.
func ByLevel(buttons []Button) []LevelGroup {
	idx := make(map[int]int)
	var groups []LevelGroup
	for _, b := range NonAllShow(buttons) {
		i, ok := idx[b.Level]
		if !ok {
			i = len(groups)
			idx[b.Level] = i
			groups = append(groups, LevelGroup{Level: b.Level})
		}
		groups[i].Buttons = append(groups[i].Buttons, b)
	}
	slices.SortStableFunc(groups, func(a, b LevelGroup) int { return cmp.Compare(a.Level, b.Level) })
	return groups
}
