// internal/game/snake/engine.go
//
// Snake simulation: steering, ticks, food and collisions.
//
// Rules:
//   - The game starts idle with a two-segment body and no velocity; the first
//     accepted Steer starts it.
//   - A steer is rejected if the new head would land on the second segment.
//     The same check applies before the first move and mid-game, so the snake
//     can never reverse into itself.
//   - Each Tick advances the head one cell. Leaving the board or hitting any
//     body segment ends the game; only Restart is accepted afterwards.
//   - Food grows the snake by one, scores FoodScore and shortens the tick
//     interval down to MinInterval.

package snake

import (
	"errors"
	"math/rand/v2"
	"time"

	"github.com/robalobadob/portfolio/apps/go-server/internal/fsm"
)

var (
	ErrGameOver     = errors.New("game over")
	ErrReverse      = errors.New("cannot reverse into body")
	ErrBadDirection = errors.New("invalid direction")
)

// Start is the initial head position.
var Start = Point{X: 200, Y: 200}

// New returns an idle game. rng picks food cells (nil means the global source);
// highScore seeds the persisted best.
func New(rng *rand.Rand, highScore int) *Game {
	g := &Game{HighScore: highScore, intn: rand.IntN}
	if rng != nil {
		g.intn = rng.IntN
	}
	g.m = fsm.New(transitions, Idle)
	g.setup()
	return g
}

func (g *Game) setup() {
	g.Body = []Point{Start, {X: Start.X - Cell, Y: Start.Y}}
	g.Dir = None
	g.Score = 0
	g.Eaten = 0
	g.placeFood()
}

// Status returns the current state.
func (g *Game) Status() Status { return g.m.State() }

// Epoch identifies the current run.
func (g *Game) Epoch() uint64 { return g.epoch }

// Head returns the first body segment.
func (g *Game) Head() Point { return g.Body[0] }

// Steer changes direction. Reports true when this input started the game.
func (g *Game) Steer(d Direction) (bool, error) {
	if d == None || d.DX*d.DX+d.DY*d.DY != 1 {
		return false, ErrBadDirection
	}
	if g.Status() == GameOver {
		return false, ErrGameOver
	}
	if len(g.Body) > 1 && g.Head().Add(d) == g.Body[1] {
		return false, ErrReverse
	}
	g.Dir = d
	if g.Status() == Idle {
		_, _ = g.m.Fire(evStart)
		return true, nil
	}
	return false, nil
}

// Tick advances the simulation one step. It does nothing unless running.
func (g *Game) Tick() TickResult {
	if g.Status() != Running || g.Dir == None {
		return TickResult{}
	}
	next := g.Head().Add(g.Dir)
	if !next.InBounds() || g.occupied(next) {
		_, _ = g.m.Fire(evCrash)
		return TickResult{Crashed: true}
	}

	g.Body = append([]Point{next}, g.Body...)
	res := TickResult{}
	if next == g.Food {
		res.Ate = true
		g.Score += FoodScore
		g.Eaten++
		if g.Score > g.HighScore {
			g.HighScore = g.Score
			res.NewHighScore = true
		}
		if !g.placeFood() {
			// Board is full: nothing left to eat.
			_, _ = g.m.Fire(evCrash)
			res.Crashed = true
			return res
		}
	} else {
		g.Body = g.Body[:len(g.Body)-1]
	}
	_, _ = g.m.Fire(evTick)
	return res
}

// Restart sets up a fresh idle game, keeping the high score.
func (g *Game) Restart() {
	_, _ = g.m.Fire(evRestart)
	g.epoch++
	g.setup()
}

// Interval is the current tick period.
func (g *Game) Interval() time.Duration {
	return IntervalFor(g.Eaten)
}

// IntervalFor returns the tick period after eaten foods, never below MinInterval.
func IntervalFor(eaten int) time.Duration {
	d := InitialInterval - time.Duration(eaten)*IntervalDecrease
	if d < MinInterval {
		return MinInterval
	}
	return d
}

// Frame projects the game for rendering.
func (g *Game) Frame() Frame {
	return Frame{
		Body:      append([]Point(nil), g.Body...),
		Food:      g.Food,
		Dir:       g.Dir,
		Score:     g.Score,
		HighScore: g.HighScore,
		Status:    g.Status(),
		Interval:  g.Interval().Milliseconds(),
		Size:      Size,
		Cell:      Cell,
	}
}

func (g *Game) occupied(p Point) bool {
	for _, b := range g.Body {
		if b == p {
			return true
		}
	}
	return false
}

// placeFood moves food to a uniformly random free cell. Reports false when
// the body covers the whole board.
func (g *Game) placeFood() bool {
	const cells = Size / Cell
	free := make([]Point, 0, cells*cells-len(g.Body))
	for y := 0; y < Size; y += Cell {
		for x := 0; x < Size; x += Cell {
			p := Point{X: x, Y: y}
			if !g.occupied(p) {
				free = append(free, p)
			}
		}
	}
	if len(free) == 0 {
		return false
	}
	g.Food = free[g.intn(len(free))]
	return true
}
