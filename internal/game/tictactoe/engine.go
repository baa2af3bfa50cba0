// internal/game/tictactoe/engine.go
//
// Move validation, win/draw detection and resets.
//
// Notes:
//   - Both players are local humans; X always opens.
//   - Scores survive resets; only the board clears.
//   - Every reset bumps the epoch so a delayed auto-reset scheduled for an
//     earlier round can recognise itself as stale.

package tictactoe

import (
	"errors"
	"fmt"

	"github.com/robalobadob/portfolio/apps/go-server/internal/fsm"
)

var (
	ErrOutOfRange = errors.New("cell out of range")
	ErrCellTaken  = errors.New("cell taken")
	ErrGameOver   = errors.New("game over")
)

// New returns an empty board with X to move and zeroed scores.
func New() *Game {
	return &Game{
		Current: X,
		Scores:  map[Mark]int{X: 0, O: 0},
		m:       fsm.New(transitions, InProgress),
	}
}

// Status returns the current state.
func (g *Game) Status() Status { return g.m.State() }

// Epoch identifies the current round.
func (g *Game) Epoch() uint64 { return g.epoch }

// Play places the current player's mark on cell and advances the game.
// Returns the resulting status.
func (g *Game) Play(cell int) (Status, error) {
	if cell < 0 || cell >= len(g.Board) {
		return g.Status(), ErrOutOfRange
	}
	if g.Status() != InProgress {
		return g.Status(), ErrGameOver
	}
	if g.Board[cell] != Empty {
		return g.Status(), ErrCellTaken
	}

	g.Board[cell] = g.Current
	if w, line, ok := Winner(g.Board); ok {
		if _, err := g.m.Fire(evWin); err != nil {
			return g.Status(), fmt.Errorf("tictactoe: %w", err)
		}
		g.Winner, g.Line = w, line
		g.Scores[w]++
		return Won, nil
	}
	if Full(g.Board) {
		if _, err := g.m.Fire(evDraw); err != nil {
			return g.Status(), fmt.Errorf("tictactoe: %w", err)
		}
		return Drawn, nil
	}
	_, _ = g.m.Fire(evMove)
	g.Current = other(g.Current)
	return InProgress, nil
}

// Reset clears the board for a new round, keeping scores.
func (g *Game) Reset() {
	_, _ = g.m.Fire(evReset)
	g.Board = Board{}
	g.Current = X
	g.Winner = Empty
	g.Line = nil
	g.epoch++
}

// ResetIfEpoch resets only if epoch still names the current round.
// Reports whether a reset happened.
func (g *Game) ResetIfEpoch(epoch uint64) bool {
	if epoch != g.epoch {
		return false
	}
	g.Reset()
	return true
}

// View projects the game for rendering.
func (g *Game) View() View {
	scores := map[Mark]int{X: g.Scores[X], O: g.Scores[O]}
	return View{
		Board:   g.Board,
		Current: g.Current,
		Status:  g.Status(),
		Winner:  g.Winner,
		Line:    append([]int(nil), g.Line...),
		Scores:  scores,
		Message: g.message(),
	}
}

func (g *Game) message() string {
	switch g.Status() {
	case Won:
		return fmt.Sprintf("Player %s wins!", g.Winner)
	case Drawn:
		return "It's a draw!"
	default:
		return fmt.Sprintf("Player %s's turn", g.Current)
	}
}

// Winner reports the mark occupying a full winning line, if any.
func Winner(b Board) (Mark, []int, bool) {
	for _, l := range Lines {
		a := b[l[0]]
		if a != Empty && a == b[l[1]] && a == b[l[2]] {
			return a, []int{l[0], l[1], l[2]}, true
		}
	}
	return Empty, nil, false
}

// Full reports whether no empty cell remains.
func Full(b Board) bool {
	for _, c := range b {
		if c == Empty {
			return false
		}
	}
	return true
}

func other(m Mark) Mark {
	if m == X {
		return O
	}
	return X
}
