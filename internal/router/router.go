// internal/router/router.go
//
// Hash-fragment routing for the portfolio page.
// A fragment ("#about") selects exactly one Section; unknown or empty
// fragments fall back to Home without error. Navigator mirrors the browser
// history stack: in-app links push, back/forward (popstate) do not.

package router

import (
	"strings"
)

// Section is one of the mutually exclusive top-level views.
type Section string

const (
	Home       Section = "home"
	Features   Section = "features"
	About      Section = "about"
	Contact    Section = "contact"
	Games      Section = "games"
	TicTacToe  Section = "tic-tac-toe"
	MemoryGame Section = "memory-game"
	SnakeGame  Section = "snake-game"
	Login      Section = "login"
)

// Sections lists every section in page order.
var Sections = []Section{Home, Features, About, Contact, Games, TicTacToe, MemoryGame, SnakeGame, Login}

var known = func() map[Section]struct{} {
	m := make(map[Section]struct{}, len(Sections))
	for _, s := range Sections {
		m[s] = struct{}{}
	}
	return m
}()

// Parse maps a URL fragment to its Section. "#Games", "games" and " games "
// all resolve to Games; anything unknown resolves to Home.
func Parse(fragment string) Section {
	f := strings.ToLower(strings.TrimSpace(fragment))
	f = strings.TrimPrefix(f, "#")
	if _, ok := known[Section(f)]; ok {
		return Section(f)
	}
	return Home
}

// Fragment returns the "#section" form used in links and history entries.
func (s Section) Fragment() string { return "#" + string(s) }

// View is the render projection of the current route.
type View struct {
	Active     Section          `json:"active"`
	Visible    map[Section]bool `json:"visible"`
	ActiveLink string           `json:"activeLink"`
	// Pushed reports whether this navigation added a history entry.
	Pushed  bool `json:"pushed"`
	CanBack bool `json:"canBack"`
	CanFwd  bool `json:"canForward"`
}

// MaxHistory bounds the history stack; the oldest entries are dropped first.
const MaxHistory = 50

// Navigator tracks the current section and the session history stack.
type Navigator struct {
	history []Section
	index   int
}

// NewNavigator returns a navigator sitting on Home with one history entry.
func NewNavigator() *Navigator {
	return &Navigator{history: []Section{Home}}
}

// Current returns the visible section.
func (n *Navigator) Current() Section { return n.history[n.index] }

// Load handles the initial page load: the fragment replaces the current
// history entry instead of pushing a new one.
func (n *Navigator) Load(fragment string) View {
	n.history[n.index] = Parse(fragment)
	return n.view(false)
}

// Follow handles an in-app link click and pushes a history entry.
// Forward entries beyond the current one are discarded, as in a browser.
func (n *Navigator) Follow(fragment string) View {
	s := Parse(fragment)
	n.history = append(n.history[:n.index+1], s)
	if over := len(n.history) - MaxHistory; over > 0 {
		n.history = append([]Section(nil), n.history[over:]...)
	}
	n.index = len(n.history) - 1
	return n.view(true)
}

// PopState handles arrival on a fragment through back/forward navigation.
// The history stack is left untouched; the current entry shows the fragment.
func (n *Navigator) PopState(fragment string) View {
	n.history[n.index] = Parse(fragment)
	return n.view(false)
}

// Back moves one entry back in history if possible.
func (n *Navigator) Back() View {
	if n.index > 0 {
		n.index--
	}
	return n.view(false)
}

// Forward moves one entry forward in history if possible.
func (n *Navigator) Forward() View {
	if n.index < len(n.history)-1 {
		n.index++
	}
	return n.view(false)
}

// View returns the projection of the current route without navigating.
func (n *Navigator) View() View { return n.view(false) }

// History returns a copy of the history stack.
func (n *Navigator) History() []Section {
	return append([]Section(nil), n.history...)
}

func (n *Navigator) view(pushed bool) View {
	active := n.Current()
	vis := make(map[Section]bool, len(Sections))
	for _, s := range Sections {
		vis[s] = s == active
	}
	return View{
		Active:     active,
		Visible:    vis,
		ActiveLink: active.Fragment(),
		Pushed:     pushed,
		CanBack:    n.index > 0,
		CanFwd:     n.index < len(n.history)-1,
	}
}
