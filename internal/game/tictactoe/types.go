// internal/game/tictactoe/types.go
//
// Core type definitions for the two-player tic-tac-toe board.
// Defines:
//   - Mark:   contents of a cell (empty, X, O).
//   - Status: in_progress → won | drawn.
//   - Game:   board, turn, status and per-player win counters.

package tictactoe

import (
	"time"

	"github.com/robalobadob/portfolio/apps/go-server/internal/fsm"
)

// Mark is the contents of one cell.
type Mark string

const (
	Empty Mark = ""
	X     Mark = "X"
	O     Mark = "O"
)

// Board is the 9-cell grid in row-major order.
type Board [9]Mark

// Status is the coarse game state.
type Status string

const (
	InProgress Status = "in_progress"
	Won        Status = "won"
	Drawn      Status = "drawn"
)

type event string

const (
	evMove  event = "move"
	evWin   event = "win"
	evDraw  event = "draw"
	evReset event = "reset"
)

var transitions = fsm.Table[Status, event]{
	InProgress: {evMove: InProgress, evWin: Won, evDraw: Drawn, evReset: InProgress},
	Won:        {evReset: InProgress},
	Drawn:      {evReset: InProgress},
}

// AutoResetDelay is how long a finished board stays up before it clears.
const AutoResetDelay = 3 * time.Second

// Lines are the 8 winning triples.
var Lines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8}, // rows
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8}, // columns
	{0, 4, 8}, {2, 4, 6}, // diagonals
}

// Game holds the state of one tic-tac-toe table.
type Game struct {
	Board   Board
	Current Mark
	Winner  Mark
	Line    []int // winning cells when Status == Won
	Scores  map[Mark]int

	m     *fsm.Machine[Status, event]
	epoch uint64
}

// View is the JSON projection of a Game.
type View struct {
	Board   Board        `json:"board"`
	Current Mark         `json:"current"`
	Status  Status       `json:"status"`
	Winner  Mark         `json:"winner,omitempty"`
	Line    []int        `json:"line,omitempty"`
	Scores  map[Mark]int `json:"scores"`
	Message string       `json:"message"`
}
