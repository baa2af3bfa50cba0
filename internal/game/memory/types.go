// internal/game/memory/types.go
//
// Core types for the two-player memory (pairs) game.
// Defines:
//   - Card:   one face of the deck with flipped/matched flags.
//   - Status: playing → comparing → playing | finished.
//   - Game:   deck, the two-slot flip buffer, scores and the current player.

package memory

import (
	"time"

	"github.com/robalobadob/portfolio/apps/go-server/internal/fsm"
)

// Symbols is the fixed symbol set; each appears twice in a deck.
var Symbols = []string{"🍎", "🍌", "🍒", "🍇", "🍉", "🍓", "🍍", "🥝"}

const (
	// CompareDelay is how long two face-up cards stay visible before resolving.
	CompareDelay = time.Second
	// AutoResetDelay is how long the final board stays up after the last pair.
	AutoResetDelay = 5 * time.Second
)

// Status is the coarse game state.
type Status string

const (
	Playing   Status = "playing"
	Comparing Status = "comparing"
	Finished  Status = "finished"
)

type event string

const (
	evFlip     event = "flip"
	evSecond   event = "second_flip"
	evMatch    event = "match"
	evMismatch event = "mismatch"
	evLastPair event = "last_pair"
	evReset    event = "reset"
)

var transitions = fsm.Table[Status, event]{
	Playing:   {evFlip: Playing, evSecond: Comparing, evReset: Playing},
	Comparing: {evMatch: Playing, evMismatch: Playing, evLastPair: Finished, evReset: Playing},
	Finished:  {evReset: Playing},
}

// Card is one card of the deck.
type Card struct {
	ID      int    `json:"id"`
	Symbol  string `json:"symbol"`
	Flipped bool   `json:"flipped"`
	Matched bool   `json:"matched"`
}

// Game is one memory match between players 1 and 2.
type Game struct {
	Cards   []Card
	Scores  [2]int
	Current int // 0 or 1

	flipped []int
	m       *fsm.Machine[Status, event]
	epoch   uint64
	shuffle func(n int, swap func(i, j int))
}

// CardView hides the symbol of face-down cards.
type CardView struct {
	ID      int    `json:"id"`
	Symbol  string `json:"symbol,omitempty"`
	Flipped bool   `json:"flipped"`
	Matched bool   `json:"matched"`
}

// View is the JSON projection of a Game.
type View struct {
	Cards         []CardView `json:"cards"`
	Scores        [2]int     `json:"scores"`
	CurrentPlayer int        `json:"currentPlayer"` // 1 or 2
	Status        Status     `json:"status"`
	Winner        int        `json:"winner,omitempty"` // 1, 2, or 0 for tie when finished
	Message       string     `json:"message"`
}

// Resolution describes what Resolve did.
type Resolution struct {
	Matched  bool
	Finished bool
	Stale    bool
}
