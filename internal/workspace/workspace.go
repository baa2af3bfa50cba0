// internal/workspace/workspace.go
//
// Per-visitor page state.
// A Workspace owns everything one browser tab would hold: the navigator and
// history, the theme, the three games, their delayed transitions and the
// visitor's slice of the flat cache.
//
// Concurrency:
//   - Every exported method takes the workspace lock.
//   - Delayed transitions run on the scheduler's goroutine; they take the
//     same lock and check the game epoch they were scheduled for, so a reset
//     in between turns them into no-ops.
//   - Snake frame listeners and hooks are called after the lock is released.

package workspace

import (
	"context"
	"errors"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/portfolio/apps/go-server/internal/clock"
	"github.com/robalobadob/portfolio/apps/go-server/internal/game/memory"
	"github.com/robalobadob/portfolio/apps/go-server/internal/game/snake"
	"github.com/robalobadob/portfolio/apps/go-server/internal/game/tictactoe"
	"github.com/robalobadob/portfolio/apps/go-server/internal/kv"
	"github.com/robalobadob/portfolio/apps/go-server/internal/router"
	"github.com/robalobadob/portfolio/apps/go-server/internal/sched"
	"github.com/robalobadob/portfolio/apps/go-server/internal/theme"
)

// Scheduler keys.
const (
	keyTicTacToeReset = "tictactoe:reset"
	keyMemoryResolve  = "memory:resolve"
	keyMemoryReset    = "memory:reset"
	keySnakeTick      = "snake:tick"
)

// Game names used by hooks.
const (
	GameTicTacToe = "tictactoe"
	GameMemory    = "memory"
	GameSnake     = "snake"
)

// Hooks observe workspace events. Any field may be nil.
type Hooks struct {
	SectionViewed func(s router.Section)
	GameFinished  func(game, outcome string)
	SnakeOver     func(visitor string, f snake.Frame)
}

// Options configures a new Workspace.
type Options struct {
	Clock      clock.Clock
	Prefs      kv.Store
	Rand       *rand.Rand
	AppVersion string
	Hooks      Hooks
}

// Page is the top-level page projection.
type Page struct {
	Route      router.View `json:"route"`
	Theme      theme.View  `json:"theme"`
	AppVersion string      `json:"appVersion"`
	Upgraded   bool        `json:"upgraded"`
}

// Workspace is one visitor's state.
type Workspace struct {
	id         string
	clock      clock.Clock
	sched      *sched.Scheduler
	prefs      kv.Store
	hooks      Hooks
	appVersion string
	upgraded   bool

	mu        sync.Mutex
	lastSeen  time.Time
	nav       *router.Navigator
	theme     *theme.Controller
	ttt       *tictactoe.Game
	mem       *memory.Game
	snk       *snake.Game
	listeners map[int]func(snake.Frame)
	nextL     int
	closed    bool
}

// New builds a workspace for visitor id, restoring the theme, the snake high
// score and the last seen app version from o.Prefs.
func New(ctx context.Context, id string, o Options) *Workspace {
	if o.Clock == nil {
		o.Clock = clock.Real()
	}
	if o.Prefs == nil {
		o.Prefs = kv.NewMemory()
	}
	w := &Workspace{
		id:         id,
		clock:      o.Clock,
		sched:      sched.New(o.Clock),
		prefs:      o.Prefs,
		hooks:      o.Hooks,
		appVersion: o.AppVersion,
		lastSeen:   o.Clock.Now(),
		nav:        router.NewNavigator(),
		theme:      theme.Load(ctx, o.Prefs),
		ttt:        tictactoe.New(),
		mem:        memory.New(o.Rand),
		snk:        snake.New(o.Rand, loadHighScore(ctx, o.Prefs)),
		listeners:  make(map[int]func(snake.Frame)),
	}
	w.upgraded = w.checkAppVersion(ctx)
	return w
}

func loadHighScore(ctx context.Context, prefs kv.Store) int {
	v, err := prefs.Get(ctx, kv.KeySnakeHighScore)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			log.Warn().Err(err).Msg("workspace: read high score")
		}
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// checkAppVersion records the running version and reports whether it differs
// from the one seen on the previous visit.
func (w *Workspace) checkAppVersion(ctx context.Context) bool {
	if w.appVersion == "" {
		return false
	}
	prev, err := w.prefs.Get(ctx, kv.KeyAppVersion)
	if err != nil && !errors.Is(err, kv.ErrNotFound) {
		log.Warn().Err(err).Msg("workspace: read app version")
	}
	if prev == w.appVersion {
		return false
	}
	if err := w.prefs.Set(ctx, kv.KeyAppVersion, w.appVersion); err != nil {
		log.Warn().Err(err).Msg("workspace: store app version")
	}
	return prev != ""
}

// ID returns the visitor id.
func (w *Workspace) ID() string { return w.id }

// Prefs returns the visitor's flat cache.
func (w *Workspace) Prefs() kv.Store { return w.prefs }

// Touch marks the workspace as used now.
func (w *Workspace) Touch() {
	w.mu.Lock()
	w.lastSeen = w.clock.Now()
	w.mu.Unlock()
}

// LastSeen returns the time of the last Touch or snake input.
func (w *Workspace) LastSeen() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeen
}

// Close cancels every pending transition and drops frame listeners.
func (w *Workspace) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	w.sched.Close()
	w.listeners = make(map[int]func(snake.Frame))
}

// ----------------------------- page & theme --------------------------------

func (w *Workspace) pageLocked(route router.View) Page {
	return Page{Route: route, Theme: w.theme.View(), AppVersion: w.appVersion, Upgraded: w.upgraded}
}

func (w *Workspace) navigate(fn func() router.View) Page {
	w.mu.Lock()
	before := w.nav.Current()
	p := w.pageLocked(fn())
	w.mu.Unlock()
	if p.Route.Active != before && w.hooks.SectionViewed != nil {
		w.hooks.SectionViewed(p.Route.Active)
	}
	return p
}

// Page returns the current page without navigating.
func (w *Workspace) Page() Page {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pageLocked(w.nav.View())
}

// Load applies the fragment of an initial page load.
func (w *Workspace) Load(fragment string) Page {
	return w.navigate(func() router.View { return w.nav.Load(fragment) })
}

// Navigate follows an in-app link.
func (w *Workspace) Navigate(fragment string) Page {
	return w.navigate(func() router.View { return w.nav.Follow(fragment) })
}

// PopState applies a back/forward arrival.
func (w *Workspace) PopState(fragment string) Page {
	return w.navigate(func() router.View { return w.nav.PopState(fragment) })
}

// Back moves back in history.
func (w *Workspace) Back() Page { return w.navigate(w.nav.Back) }

// Forward moves forward in history.
func (w *Workspace) Forward() Page { return w.navigate(w.nav.Forward) }

// Theme returns the theme view.
func (w *Workspace) Theme() theme.View {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.theme.View()
}

// ToggleTheme flips and persists the theme.
func (w *Workspace) ToggleTheme(ctx context.Context) theme.View {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.theme.Toggle(ctx)
}

func (w *Workspace) finished(game, outcome string) {
	if w.hooks.GameFinished != nil {
		w.hooks.GameFinished(game, outcome)
	}
}
