package navigation

import (
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/autobot/core/config"
	"github.com/m3rciful/autobot/core/domain"
	"github.com/m3rciful/autobot/core/menu"
	"github.com/m3rciful/autobot/core/telegram/keyboard"
)

// Screen is a fully rendered view ready for delivery.
type Screen struct {
	View     View
	Text     string
	ImageURL string
	Markup   *tele.ReplyMarkup
}

// Renderer turns views into screens using configurable labels.
type Renderer struct {
	texts config.TextsConfig
}

// NewRenderer returns a Renderer; empty labels fall back to config.DefaultTexts.
func NewRenderer(texts config.TextsConfig) *Renderer {
	return &Renderer{texts: texts.WithDefaults()}
}

// Render builds the screen for view from the bot's current configuration.
func (r *Renderer) Render(bot *domain.AutoBot, view View) Screen {
	buttons := bot.Buttons
	allShow, hasAllShow := menu.FindAllShowButton(buttons)

	s := Screen{View: view}
	switch view.Kind {
	case ViewRoot:
		s.Text = bot.WelcomeMessage
		if strings.TrimSpace(s.Text) == "" {
			s.Text = r.texts.DefaultWelcome
		}
		s.ImageURL = bot.WelcomeImageURL
		roots := menu.RootButtons(buttons)
		entries := keyboard.FromButtons(roots)
		if hasAllShow {
			// a root carrying the same label already looks like the trigger
			if trigger := r.allShowEntry(allShow); !containsText(roots, trigger.Text) {
				entries = append(entries, trigger)
			}
		}
		s.Markup = keyboard.Render(entries)

	case ViewAllShow:
		s.Text = r.allShowListing(allShow, buttons)
		s.ImageURL = allShow.ResponseImage
		s.Markup = keyboard.Render(keyboard.FromButtons(menu.NonAllShow(buttons)))
		keyboard.AppendRow(s.Markup, r.homeEntry())

	case ViewChildMenu:
		b := view.Button
		s.Text = b.ResponseText
		if s.Text == "" {
			s.Text = fmt.Sprintf(r.texts.MenuHeader, r.levelName(b.Level+1), b.Text)
		}
		s.ImageURL = b.ResponseImage
		children := view.Children
		if children == nil {
			children = menu.ChildrenOf(buttons, b.ID, b.Level+1)
		}
		s.Markup = keyboard.Render(keyboard.FromButtons(children))
		nav := make([]keyboard.Entry, 0, 2)
		if hasAllShow {
			nav = append(nav, r.allShowEntry(allShow))
		}
		keyboard.AppendRow(s.Markup, append(nav, r.homeEntry())...)

	case ViewLeaf:
		b := view.Button
		s.Text = b.ResponseText
		if s.Text == "" {
			s.Text = fmt.Sprintf(r.texts.LeafFallback, b.Text)
		}
		s.ImageURL = b.ResponseImage
		s.Markup = keyboard.Render(nil)
		keyboard.AppendRow(s.Markup, r.homeEntry())
	}
	return s
}

func (r *Renderer) allShowListing(allShow menu.Button, buttons []menu.Button) string {
	var b strings.Builder
	header := allShow.ResponseText
	if header == "" {
		header = r.texts.AllShowHeader
	}
	b.WriteString(header)
	for _, group := range menu.ByLevel(buttons) {
		fmt.Fprintf(&b, "\n\n%s:", r.levelName(group.Level))
		indent := strings.Repeat("  ", group.Level)
		for _, btn := range group.Buttons {
			fmt.Fprintf(&b, "\n%s• %s", indent, btn.Text)
		}
	}
	return b.String()
}

// allShowEntry points at the reserved token so the trigger works even if the
// configured button's own callback data collides with another button.
func (r *Renderer) allShowEntry(allShow menu.Button) keyboard.Entry {
	text := allShow.Text
	if text == "" {
		text = r.texts.AllShowButton
	}
	return keyboard.Entry{Text: text, CallbackData: ShowAllMenus}
}

func (r *Renderer) homeEntry() keyboard.Entry {
	return keyboard.Entry{Text: r.texts.HomeButton, CallbackData: BackToMain}
}

func (r *Renderer) levelName(level int) string {
	if level >= 0 && level < len(r.texts.LevelNames) {
		return r.texts.LevelNames[level]
	}
	return fmt.Sprintf("Level %d", level)
}

func containsText(buttons []menu.Button, text string) bool {
	for _, b := range buttons {
		if b.Text == text {
			return true
		}
	}
	return false
}
