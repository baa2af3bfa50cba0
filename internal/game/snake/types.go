// internal/game/snake/types.go
//
// Core types for the snake game.
// Defines:
//   - Point / Direction: grid coordinates in board units, steps of Cell.
//   - Status:            idle → running → game_over.
//   - Game:              body (head first), direction, food, scores.
//   - Frame:             what a renderer draws after each tick.

package snake

import (
	"time"

	"github.com/robalobadob/portfolio/apps/go-server/internal/fsm"
)

const (
	// Size is the width and height of the board in units.
	Size = 400
	// Cell is the grid step in units.
	Cell = 20
	// FoodScore is added per food eaten.
	FoodScore = 10

	InitialInterval  = 150 * time.Millisecond
	MinInterval      = 60 * time.Millisecond
	IntervalDecrease = 5 * time.Millisecond
)

// Point is a cell's top-left corner in board units.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Add returns p moved one cell along d.
func (p Point) Add(d Direction) Point {
	return Point{X: p.X + d.DX*Cell, Y: p.Y + d.DY*Cell}
}

// InBounds reports whether p lies on the board.
func (p Point) InBounds() bool {
	return p.X >= 0 && p.X < Size && p.Y >= 0 && p.Y < Size
}

// Direction is a unit velocity.
type Direction struct {
	DX int `json:"dx"`
	DY int `json:"dy"`
}

var (
	None  = Direction{}
	Up    = Direction{DX: 0, DY: -1}
	Down  = Direction{DX: 0, DY: 1}
	Left  = Direction{DX: -1, DY: 0}
	Right = Direction{DX: 1, DY: 0}
)

// ParseDirection maps arrow keys, WASD and swipe names to a Direction.
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "up", "ArrowUp", "w", "W", "swipe-up":
		return Up, true
	case "down", "ArrowDown", "s", "S", "swipe-down":
		return Down, true
	case "left", "ArrowLeft", "a", "A", "swipe-left":
		return Left, true
	case "right", "ArrowRight", "d", "D", "swipe-right":
		return Right, true
	}
	return None, false
}

// Status is the coarse game state.
type Status string

const (
	Idle     Status = "idle"
	Running  Status = "running"
	GameOver Status = "game_over"
)

type event string

const (
	evStart   event = "start"
	evTick    event = "tick"
	evCrash   event = "crash"
	evRestart event = "restart"
)

var transitions = fsm.Table[Status, event]{
	Idle:     {evStart: Running, evRestart: Idle},
	Running:  {evTick: Running, evCrash: GameOver, evRestart: Idle},
	GameOver: {evRestart: Idle},
}

// Game is one snake board.
type Game struct {
	Body      []Point
	Dir       Direction
	Food      Point
	Score     int
	HighScore int
	Eaten     int

	m     *fsm.Machine[Status, event]
	epoch uint64
	intn  func(n int) int
}

// TickResult reports what one tick did.
type TickResult struct {
	Ate          bool
	Crashed      bool
	NewHighScore bool
}

// Frame is the render projection of a Game.
type Frame struct {
	Body      []Point   `json:"body"`
	Food      Point     `json:"food"`
	Dir       Direction `json:"dir"`
	Score     int       `json:"score"`
	HighScore int       `json:"highScore"`
	Status    Status    `json:"status"`
	Interval  int64     `json:"intervalMs"`
	Size      int       `json:"size"`
	Cell      int       `json:"cell"`
}
