// Package navigation is the menu state machine of an auto bot.
//
// Every update is resolved from the literal callback data and the bot's
// current button snapshot; no per-chat state is kept between updates.
package navigation

import "github.com/m3rciful/autobot/core/menu"

// Reserved callback data handled before button lookup.
const (
	BackToMain   = "back_to_main"
	ShowAllMenus = "show_all_menus"
)

// ViewKind enumerates the screens the engine can render.
type ViewKind int

const (
	ViewRoot ViewKind = iota
	ViewChildMenu
	ViewAllShow
	ViewLeaf
)

func (k ViewKind) String() string {
	switch k {
	case ViewRoot:
		return "root"
	case ViewChildMenu:
		return "child_menu"
	case ViewAllShow:
		return "all_show"
	case ViewLeaf:
		return "leaf"
	}
	return "unknown"
}

// View is the screen derived for one update. Button is set for child menus and leaves.
type View struct {
	Kind     ViewKind
	Button   menu.Button
	Children []menu.Button
}

// Resolve maps callback data to the next view. ok is false for data that matches
// neither a reserved token nor a callback button.
func Resolve(buttons []menu.Button, data string) (View, bool) {
	switch data {
	case BackToMain:
		return View{Kind: ViewRoot}, true
	case ShowAllMenus:
		return View{Kind: ViewAllShow}, true
	}
	b, ok := menu.ResolveByCallback(buttons, data)
	if !ok {
		return View{}, false
	}
	if b.IsAllShow {
		return View{Kind: ViewAllShow}, true
	}
	if children := menu.ChildrenOf(buttons, b.ID, b.Level+1); len(children) > 0 {
		return View{Kind: ViewChildMenu, Button: b, Children: children}, true
	}
	return View{Kind: ViewLeaf, Button: b}, true
}
