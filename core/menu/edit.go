package menu

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NewButtonID returns a fresh opaque button identifier.
func NewButtonID() string {
	return uuid.NewString()
}

// Validate checks the forest invariants and reports every violation found.
// Duplicate callback data is a quality issue, not a structural one, and is
// reported separately by DuplicateCallbacks.
func Validate(buttons []Button) error {
	byID := make(map[string]Button, len(buttons))
	var errs []error
	allShow := 0
	for i, b := range buttons {
		if b.ID == "" {
			errs = append(errs, fmt.Errorf("button #%d %q: empty id", i, b.Text))
			continue
		}
		if _, dup := byID[b.ID]; dup {
			errs = append(errs, fmt.Errorf("button %s: duplicate id", b.ID))
			continue
		}
		byID[b.ID] = b
	}
	for _, b := range buttons {
		if b.ID == "" {
			continue
		}
		if err := checkPlacement(byID, b); err != nil {
			errs = append(errs, err)
		}
		if err := checkCallback(b); err != nil {
			errs = append(errs, err)
		}
		if b.IsAllShow {
			allShow++
			if allShow == 2 {
				errs = append(errs, fmt.Errorf("button %s: more than one all-show button", b.ID))
			}
		}
	}
	return errors.Join(errs...)
}

// checkCallback rejects callback data that would make Telegram refuse the whole keyboard.
func checkCallback(b Button) error {
	if n := len(b.CallbackData); n > MaxCallbackDataLen {
		return fmt.Errorf("button %s: callback data is %d bytes, max %d: %w", b.ID, n, MaxCallbackDataLen, ErrCallbackTooLong)
	}
	return nil
}

func checkPlacement(byID map[string]Button, b Button) error {
	switch {
	case b.Level < 0 || b.Level > MaxLevel:
		return fmt.Errorf("button %s: level %d out of range 0..%d: %w", b.ID, b.Level, MaxLevel, ErrInvalidLevel)
	case b.IsAllShow && b.Level != 0:
		return fmt.Errorf("button %s: all-show button must be at level 0: %w", b.ID, ErrInvalidLevel)
	case b.Level == 0 && b.ParentID != "":
		return fmt.Errorf("button %s: root button has parent %s: %w", b.ID, b.ParentID, ErrInvalidLevel)
	case b.Level == 0:
		return nil
	}
	parent, ok := byID[b.ParentID]
	if !ok {
		return fmt.Errorf("button %s: parent %q not found: %w", b.ID, b.ParentID, ErrInvalidLevel)
	}
	if parent.Level != b.Level-1 {
		return fmt.Errorf("button %s: parent %s is at level %d, want %d: %w", b.ID, parent.ID, parent.Level, b.Level-1, ErrInvalidLevel)
	}
	if parent.IsAllShow {
		return fmt.Errorf("button %s: all-show button %s cannot have children: %w", b.ID, parent.ID, ErrInvalidLevel)
	}
	return nil
}

// DuplicateCallbacks lists callback data values used by more than one callback button, in first-seen order.
func DuplicateCallbacks(buttons []Button) []string {
	seen := make(map[string]int, len(buttons))
	var dups []string
	for _, b := range buttons {
		if b.IsLink() || b.CallbackData == "" {
			continue
		}
		seen[b.CallbackData]++
		if seen[b.CallbackData] == 2 {
			dups = append(dups, b.CallbackData)
		}
	}
	return dups
}

// Add appends b to buttons after checking its placement. An empty ID is filled in,
// and an empty callback data on a non-link button defaults to the ID.
func Add(buttons []Button, b Button) ([]Button, Button, error) {
	if b.ID == "" {
		b.ID = NewButtonID()
	}
	b.Text = strings.TrimSpace(b.Text)
	if b.CallbackData == "" && !b.IsLink() {
		b.CallbackData = b.ID
	}
	byID := index(buttons)
	if _, exists := byID[b.ID]; exists {
		return buttons, Button{}, fmt.Errorf("button %s: duplicate id", b.ID)
	}
	if b.IsAllShow {
		if existing, ok := FindAllShowButton(buttons); ok {
			return buttons, Button{}, fmt.Errorf("button %s: all-show already set by %s: %w", b.ID, existing.ID, ErrInvalidLevel)
		}
	}
	if err := checkPlacement(byID, b); err != nil {
		return buttons, Button{}, err
	}
	if err := checkCallback(b); err != nil {
		return buttons, Button{}, err
	}
	out := make([]Button, 0, len(buttons)+1)
	out = append(append(out, buttons...), b)
	return out, b, nil
}

// Replace swaps the button carrying b.ID for b, keeping its position.
// Level and parent are preserved from the stored button so edits cannot orphan children.
func Replace(buttons []Button, b Button) ([]Button, error) {
	for i, cur := range buttons {
		if cur.ID != b.ID {
			continue
		}
		b.Level, b.ParentID = cur.Level, cur.ParentID
		if b.IsAllShow && b.Level != 0 {
			return buttons, fmt.Errorf("button %s: all-show button must be at level 0: %w", b.ID, ErrInvalidLevel)
		}
		if err := checkCallback(b); err != nil {
			return buttons, err
		}
		out := make([]Button, len(buttons))
		copy(out, buttons)
		out[i] = b
		return out, nil
	}
	return buttons, fmt.Errorf("button %s: %w", b.ID, ErrNotFound)
}

// Remove deletes the button with id together with all of its descendants.
func Remove(buttons []Button, id string) ([]Button, error) {
	doomed := map[string]bool{id: true}
	found := false
	for _, b := range buttons {
		if b.ID == id {
			found = true
			break
		}
	}
	if !found {
		return buttons, fmt.Errorf("button %s: %w", id, ErrNotFound)
	}
	// levels only grow downwards, so repeating until stable collects every descendant
	for grew := true; grew; {
		grew = false
		for _, b := range buttons {
			if !doomed[b.ID] && b.ParentID != "" && doomed[b.ParentID] {
				doomed[b.ID] = true
				grew = true
			}
		}
	}
	out := make([]Button, 0, len(buttons))
	for _, b := range buttons {
		if !doomed[b.ID] {
			out = append(out, b)
		}
	}
	return out, nil
}

func index(buttons []Button) map[string]Button {
	m := make(map[string]Button, len(buttons))
	for _, b := range buttons {
		m[b.ID] = b
	}
	return m
}
