// internal/game/memory/engine.go
//
// Deck construction, card flips and pair resolution.
//
// Flow:
//   - Flip a first card, then a second; the game enters Comparing.
//   - The caller waits CompareDelay and calls Resolve with the epoch it
//     captured when the second card went up.
//   - A match scores for the current player, who keeps the turn; a mismatch
//     turns both cards back down and passes the turn.

package memory

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/robalobadob/portfolio/apps/go-server/internal/fsm"
)

var (
	ErrOutOfRange   = errors.New("card out of range")
	ErrNotFlippable = errors.New("card already face up")
	ErrBusy         = errors.New("comparing cards")
	ErrGameOver     = errors.New("game over")
)

// New deals a fresh shuffled deck using rng (nil means the global source).
func New(rng *rand.Rand) *Game {
	g := &Game{shuffle: rand.Shuffle}
	if rng != nil {
		g.shuffle = rng.Shuffle
	}
	g.deal()
	return g
}

// Deck returns every symbol twice, shuffled uniformly with shuffle.
func Deck(shuffle func(n int, swap func(i, j int))) []Card {
	cards := make([]Card, 0, 2*len(Symbols))
	for _, s := range Symbols {
		cards = append(cards, Card{Symbol: s}, Card{Symbol: s})
	}
	shuffle(len(cards), func(i, j int) { cards[i], cards[j] = cards[j], cards[i] })
	for i := range cards {
		cards[i].ID = i
	}
	return cards
}

func (g *Game) deal() {
	g.Cards = Deck(g.shuffle)
	g.Scores = [2]int{}
	g.Current = 0
	g.flipped = g.flipped[:0]
	if g.m == nil {
		g.m = fsm.New(transitions, Playing)
	} else {
		_, _ = g.m.Fire(evReset)
	}
}

// Status returns the current state.
func (g *Game) Status() Status { return g.m.State() }

// Epoch identifies the current deal.
func (g *Game) Epoch() uint64 { return g.epoch }

// Flip turns card i face up. Reports true when it was the second card of the
// turn, i.e. the caller should schedule Resolve after CompareDelay.
func (g *Game) Flip(i int) (bool, error) {
	if i < 0 || i >= len(g.Cards) {
		return false, ErrOutOfRange
	}
	switch g.Status() {
	case Comparing:
		return false, ErrBusy
	case Finished:
		return false, ErrGameOver
	}
	c := &g.Cards[i]
	if c.Flipped || c.Matched {
		return false, ErrNotFlippable
	}
	c.Flipped = true
	g.flipped = append(g.flipped, i)
	if len(g.flipped) < 2 {
		_, _ = g.m.Fire(evFlip)
		return false, nil
	}
	if _, err := g.m.Fire(evSecond); err != nil {
		return false, fmt.Errorf("memory: %w", err)
	}
	return true, nil
}

// Resolve compares the two face-up cards. A call carrying an epoch from an
// earlier deal, or arriving when nothing is being compared, does nothing.
func (g *Game) Resolve(epoch uint64) Resolution {
	if epoch != g.epoch || g.Status() != Comparing || len(g.flipped) != 2 {
		return Resolution{Stale: true}
	}
	a, b := &g.Cards[g.flipped[0]], &g.Cards[g.flipped[1]]
	g.flipped = g.flipped[:0]

	if a.Symbol == b.Symbol {
		a.Matched, b.Matched = true, true
		g.Scores[g.Current]++
		if g.allMatched() {
			_, _ = g.m.Fire(evLastPair)
			return Resolution{Matched: true, Finished: true}
		}
		_, _ = g.m.Fire(evMatch)
		return Resolution{Matched: true}
	}

	a.Flipped, b.Flipped = false, false
	g.Current = 1 - g.Current
	_, _ = g.m.Fire(evMismatch)
	return Resolution{}
}

// Reset deals a new deck and invalidates pending resolutions.
func (g *Game) Reset() {
	g.epoch++
	g.deal()
}

// ResetIfEpoch resets only if epoch still names the current deal.
func (g *Game) ResetIfEpoch(epoch uint64) bool {
	if epoch != g.epoch {
		return false
	}
	g.Reset()
	return true
}

// Winner returns 1 or 2 for the player with more pairs, 0 on a tie.
func (g *Game) Winner() int {
	switch {
	case g.Scores[0] > g.Scores[1]:
		return 1
	case g.Scores[1] > g.Scores[0]:
		return 2
	default:
		return 0
	}
}

// View projects the game for rendering; face-down symbols are hidden.
func (g *Game) View() View {
	cards := make([]CardView, len(g.Cards))
	for i, c := range g.Cards {
		cards[i] = CardView{ID: c.ID, Flipped: c.Flipped, Matched: c.Matched}
		if c.Flipped || c.Matched {
			cards[i].Symbol = c.Symbol
		}
	}
	v := View{
		Cards:         cards,
		Scores:        g.Scores,
		CurrentPlayer: g.Current + 1,
		Status:        g.Status(),
	}
	if v.Status == Finished {
		v.Winner = g.Winner()
		if v.Winner == 0 {
			v.Message = "It's a tie!"
		} else {
			v.Message = fmt.Sprintf("Player %d wins!", v.Winner)
		}
	} else {
		v.Message = fmt.Sprintf("Player %d's turn", v.CurrentPlayer)
	}
	return v
}

func (g *Game) allMatched() bool {
	for _, c := range g.Cards {
		if !c.Matched {
			return false
		}
	}
	return true
}
