package workspace

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/portfolio/apps/go-server/internal/game/memory"
	"github.com/robalobadob/portfolio/apps/go-server/internal/game/snake"
	"github.com/robalobadob/portfolio/apps/go-server/internal/game/tictactoe"
	"github.com/robalobadob/portfolio/apps/go-server/internal/kv"
)

// ------------------------------ tic-tac-toe --------------------------------

// TicTacToe returns the board view.
func (w *Workspace) TicTacToe() tictactoe.View {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ttt.View()
}

// PlayTicTacToe places the current mark on cell. A finished board clears
// itself after tictactoe.AutoResetDelay.
func (w *Workspace) PlayTicTacToe(cell int) (tictactoe.View, error) {
	w.mu.Lock()
	status, err := w.ttt.Play(cell)
	if err != nil {
		v := w.ttt.View()
		w.mu.Unlock()
		return v, err
	}
	if status != tictactoe.InProgress {
		epoch := w.ttt.Epoch()
		w.sched.Schedule(keyTicTacToeReset, tictactoe.AutoResetDelay, func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			w.ttt.ResetIfEpoch(epoch)
		})
	}
	v := w.ttt.View()
	w.mu.Unlock()

	if status != tictactoe.InProgress {
		w.finished(GameTicTacToe, string(status))
	}
	return v, nil
}

// ResetTicTacToe clears the board now and drops a pending auto-reset.
func (w *Workspace) ResetTicTacToe() tictactoe.View {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sched.Cancel(keyTicTacToeReset)
	w.ttt.Reset()
	return w.ttt.View()
}

// -------------------------------- memory -----------------------------------

// Memory returns the deck view.
func (w *Workspace) Memory() memory.View {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mem.View()
}

// FlipMemory turns card i face up. A second card schedules the comparison
// after memory.CompareDelay.
func (w *Workspace) FlipMemory(i int) (memory.View, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	second, err := w.mem.Flip(i)
	if err != nil {
		return w.mem.View(), err
	}
	if second {
		epoch := w.mem.Epoch()
		w.sched.Schedule(keyMemoryResolve, memory.CompareDelay, func() { w.resolveMemory(epoch) })
	}
	return w.mem.View(), nil
}

func (w *Workspace) resolveMemory(epoch uint64) {
	w.mu.Lock()
	res := w.mem.Resolve(epoch)
	var outcome string
	if res.Finished {
		outcome = "tie"
		if win := w.mem.Winner(); win != 0 {
			outcome = "player" + strconv.Itoa(win)
		}
		w.sched.Schedule(keyMemoryReset, memory.AutoResetDelay, func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			w.mem.ResetIfEpoch(epoch)
		})
	}
	w.mu.Unlock()

	if res.Finished {
		w.finished(GameMemory, outcome)
	}
}

// ResetMemory deals a new deck and drops pending comparisons and resets.
func (w *Workspace) ResetMemory() memory.View {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sched.CancelPrefix("memory:")
	w.mem.Reset()
	return w.mem.View()
}

// -------------------------------- snake ------------------------------------

// Snake returns the current frame.
func (w *Workspace) Snake() snake.Frame {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snk.Frame()
}

// SteerSnake applies a direction input ("ArrowUp", "w", "swipe-left", ...).
// The first accepted input starts the tick loop. Any input counts as a visit.
func (w *Workspace) SteerSnake(input string) (snake.Frame, error) {
	w.mu.Lock()
	w.lastSeen = w.clock.Now()
	d, ok := snake.ParseDirection(input)
	if !ok {
		f := w.snk.Frame()
		w.mu.Unlock()
		return f, snake.ErrBadDirection
	}
	started, err := w.snk.Steer(d)
	if err != nil {
		f := w.snk.Frame()
		w.mu.Unlock()
		return f, err
	}
	if started {
		w.scheduleTickLocked()
	}
	f := w.snk.Frame()
	fns := w.listenersLocked()
	w.mu.Unlock()

	publish(fns, f)
	return f, nil
}

// RestartSnake stops the tick loop and sets up a fresh idle board.
func (w *Workspace) RestartSnake() snake.Frame {
	w.mu.Lock()
	w.lastSeen = w.clock.Now()
	w.sched.Cancel(keySnakeTick)
	w.snk.Restart()
	f := w.snk.Frame()
	fns := w.listenersLocked()
	w.mu.Unlock()

	publish(fns, f)
	return f
}

// Subscribers reports how many snake frame listeners are registered.
func (w *Workspace) Subscribers() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.listeners)
}

// Subscribe registers fn for every snake frame and returns a function that
// removes it.
func (w *Workspace) Subscribe(fn func(snake.Frame)) (unsubscribe func()) {
	w.mu.Lock()
	id := w.nextL
	w.nextL++
	w.listeners[id] = fn
	w.mu.Unlock()
	return func() {
		w.mu.Lock()
		delete(w.listeners, id)
		w.mu.Unlock()
	}
}

func (w *Workspace) scheduleTickLocked() {
	if w.closed {
		return
	}
	epoch := w.snk.Epoch()
	w.sched.Schedule(keySnakeTick, w.snk.Interval(), func() { w.tick(epoch) })
}

func (w *Workspace) tick(epoch uint64) {
	w.mu.Lock()
	if epoch != w.snk.Epoch() || w.snk.Status() != snake.Running {
		w.mu.Unlock()
		return
	}
	res := w.snk.Tick()
	if !res.Crashed {
		w.scheduleTickLocked()
	}
	f := w.snk.Frame()
	fns := w.listenersLocked()
	w.mu.Unlock()

	if res.NewHighScore {
		w.saveHighScore(f.HighScore)
	}
	publish(fns, f)
	if res.Crashed {
		w.finished(GameSnake, "game_over")
		if w.hooks.SnakeOver != nil {
			w.hooks.SnakeOver(w.id, f)
		}
	}
}

func (w *Workspace) saveHighScore(score int) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := w.prefs.Set(ctx, kv.KeySnakeHighScore, strconv.Itoa(score)); err != nil {
		log.Warn().Err(err).Str("visitor", w.id).Int("score", score).Msg("workspace: persist high score")
	}
}

func (w *Workspace) listenersLocked() []func(snake.Frame) {
	fns := make([]func(snake.Frame), 0, len(w.listeners))
	for _, fn := range w.listeners {
		fns = append(fns, fn)
	}
	return fns
}

func publish(fns []func(snake.Frame), f snake.Frame) {
	for _, fn := range fns {
		fn(f)
	}
}
