package snake

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGame() *Game { return New(rand.New(rand.NewPCG(3, 5)), 0) }

func TestStartsIdleWithTwoSegments(t *testing.T) {
	g := newGame()
	assert.Equal(t, Idle, g.Status())
	assert.Equal(t, []Point{{200, 200}, {180, 200}}, g.Body)
	assert.Equal(t, None, g.Dir)
	assert.NotContains(t, g.Body, g.Food)
	assert.Equal(t, 0, g.Food.X%Cell)
	assert.Equal(t, 0, g.Food.Y%Cell)

	// Ticks before the first input do nothing.
	g.Tick()
	assert.Equal(t, Point{200, 200}, g.Head())
}

func TestReverseRejectedAtStart(t *testing.T) {
	g := newGame()
	_, err := g.Steer(Left)
	assert.ErrorIs(t, err, ErrReverse)
	assert.Equal(t, Idle, g.Status())

	started, err := g.Steer(Up)
	require.NoError(t, err)
	assert.True(t, started)
	assert.Equal(t, Running, g.Status())
}

func TestReverseRejectedMidGame(t *testing.T) {
	g := newGame()
	g.Food = Point{0, 0}
	_, err := g.Steer(Right)
	require.NoError(t, err)
	g.Tick()

	_, err = g.Steer(Left)
	assert.ErrorIs(t, err, ErrReverse)

	// Two quick turns inside one tick still cannot fold back.
	_, err = g.Steer(Up)
	require.NoError(t, err)
	_, err = g.Steer(Left)
	assert.ErrorIs(t, err, ErrReverse)
	assert.Equal(t, Up, g.Dir)
}

func TestWallsEndTheGame(t *testing.T) {
	cases := []struct {
		name string
		body []Point
		dir  Direction
	}{
		{"right", []Point{{380, 200}, {360, 200}}, Right},
		{"left", []Point{{0, 200}, {20, 200}}, Left},
		{"top", []Point{{200, 0}, {200, 20}}, Up},
		{"bottom", []Point{{200, 380}, {200, 360}}, Down},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := newGame()
			g.Body = tc.body
			g.Food = Point{100, 100}
			_, err := g.Steer(tc.dir)
			require.NoError(t, err)

			res := g.Tick()
			assert.True(t, res.Crashed)
			assert.Equal(t, GameOver, g.Status())

			_, err = g.Steer(Up)
			assert.ErrorIs(t, err, ErrGameOver)
		})
	}
}

func TestSelfCollisionEndsTheGame(t *testing.T) {
	g := newGame()
	g.Body = []Point{{100, 100}, {120, 100}, {120, 120}, {100, 120}, {80, 120}}
	g.Food = Point{0, 0}
	_, err := g.Steer(Down)
	require.NoError(t, err)

	res := g.Tick()
	assert.True(t, res.Crashed)
	assert.Equal(t, GameOver, g.Status())
}

func TestEatingGrowsScoresAndTightens(t *testing.T) {
	g := newGame()
	g.Food = Point{220, 200}
	_, err := g.Steer(Right)
	require.NoError(t, err)
	before := g.Interval()

	res := g.Tick()
	assert.True(t, res.Ate)
	assert.True(t, res.NewHighScore)
	assert.Equal(t, FoodScore, g.Score)
	assert.Equal(t, FoodScore, g.HighScore)
	assert.Len(t, g.Body, 3)
	assert.Equal(t, Point{220, 200}, g.Head())
	assert.Less(t, g.Interval(), before)
	assert.NotContains(t, g.Body, g.Food)

	// Moving without food keeps the length.
	g.Food = Point{0, 0}
	g.Tick()
	assert.Len(t, g.Body, 3)
	assert.Equal(t, Running, g.Status())
}

func TestIntervalFloor(t *testing.T) {
	assert.Equal(t, InitialInterval, IntervalFor(0))
	prev := IntervalFor(0)
	for eaten := 1; eaten < 100; eaten++ {
		d := IntervalFor(eaten)
		assert.GreaterOrEqual(t, d, MinInterval)
		assert.LessOrEqual(t, d, prev)
		prev = d
	}
	assert.Equal(t, MinInterval, IntervalFor(1000))
}

func TestRestartKeepsHighScore(t *testing.T) {
	g := New(rand.New(rand.NewPCG(1, 1)), 50)
	g.Food = Point{220, 200}
	_, _ = g.Steer(Right)
	g.Tick()
	e := g.Epoch()
	g.Body = []Point{{380, 200}, {360, 200}}
	g.Tick()
	g.Tick()
	require.Equal(t, GameOver, g.Status())

	g.Restart()
	assert.Equal(t, Idle, g.Status())
	assert.Equal(t, 0, g.Score)
	assert.Equal(t, 50, g.HighScore)
	assert.Equal(t, e+1, g.Epoch())
	assert.Len(t, g.Body, 2)
}

func TestParseDirection(t *testing.T) {
	for in, want := range map[string]Direction{
		"ArrowUp": Up, "w": Up, "S": Down, "swipe-left": Left, "d": Right,
	} {
		got, ok := ParseDirection(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseDirection("Enter")
	assert.False(t, ok)

	g := newGame()
	_, err := g.Steer(Direction{DX: 1, DY: 1})
	assert.ErrorIs(t, err, ErrBadDirection)
}
