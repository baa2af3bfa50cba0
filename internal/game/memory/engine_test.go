package memory

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGame() *Game { return New(rand.New(rand.NewPCG(7, 11))) }

// pairOf returns two indexes holding the same symbol, skipping matched cards.
func pairOf(g *Game) (int, int) {
	seen := map[string]int{}
	for i, c := range g.Cards {
		if c.Matched {
			continue
		}
		if j, ok := seen[c.Symbol]; ok {
			return j, i
		}
		seen[c.Symbol] = i
	}
	return -1, -1
}

// mismatch returns two unmatched indexes with different symbols.
func mismatch(g *Game) (int, int) {
	for i := range g.Cards {
		for j := i + 1; j < len(g.Cards); j++ {
			if !g.Cards[i].Matched && !g.Cards[j].Matched && g.Cards[i].Symbol != g.Cards[j].Symbol {
				return i, j
			}
		}
	}
	return -1, -1
}

func TestDeckHasEveryPairOnce(t *testing.T) {
	for seed := uint64(0); seed < 20; seed++ {
		g := New(rand.New(rand.NewPCG(seed, seed)))
		require.Len(t, g.Cards, 16)
		counts := map[string]int{}
		for i, c := range g.Cards {
			assert.Equal(t, i, c.ID)
			assert.False(t, c.Flipped)
			assert.False(t, c.Matched)
			counts[c.Symbol]++
		}
		require.Len(t, counts, 8)
		for s, n := range counts {
			assert.Equal(t, 2, n, s)
		}
	}
}

func TestMatchKeepsTurnAndScoresOne(t *testing.T) {
	g := newGame()
	a, b := pairOf(g)

	second, err := g.Flip(a)
	require.NoError(t, err)
	assert.False(t, second)
	second, err = g.Flip(b)
	require.NoError(t, err)
	assert.True(t, second)
	assert.Equal(t, Comparing, g.Status())

	res := g.Resolve(g.Epoch())
	assert.True(t, res.Matched)
	assert.Equal(t, [2]int{1, 0}, g.Scores)
	assert.Equal(t, 0, g.Current)
	assert.True(t, g.Cards[a].Matched)
	assert.True(t, g.Cards[b].Matched)
	assert.Equal(t, Playing, g.Status())
}

func TestMismatchFlipsBackAndPassesTurn(t *testing.T) {
	g := newGame()
	a, b := mismatch(g)

	_, err := g.Flip(a)
	require.NoError(t, err)
	_, err = g.Flip(b)
	require.NoError(t, err)

	res := g.Resolve(g.Epoch())
	assert.False(t, res.Matched)
	assert.False(t, g.Cards[a].Flipped)
	assert.False(t, g.Cards[b].Flipped)
	assert.Equal(t, 1, g.Current)
	assert.Equal(t, [2]int{0, 0}, g.Scores)

	// The other player mismatches: turn returns.
	a, b = mismatch(g)
	_, _ = g.Flip(a)
	_, _ = g.Flip(b)
	g.Resolve(g.Epoch())
	assert.Equal(t, 0, g.Current)
}

func TestFlipRules(t *testing.T) {
	g := newGame()
	a, b := mismatch(g)

	_, err := g.Flip(16)
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = g.Flip(a)
	require.NoError(t, err)
	_, err = g.Flip(a)
	assert.ErrorIs(t, err, ErrNotFlippable)

	_, err = g.Flip(b)
	require.NoError(t, err)
	c := 0
	for c == a || c == b {
		c++
	}
	_, err = g.Flip(c)
	assert.ErrorIs(t, err, ErrBusy)
}

func TestFullGameFinishesWithWinner(t *testing.T) {
	g := newGame()

	// Player 1 misses once, then player 2 clears the board.
	a, b := mismatch(g)
	_, _ = g.Flip(a)
	_, _ = g.Flip(b)
	g.Resolve(g.Epoch())

	var last Resolution
	for g.Status() != Finished {
		a, b := pairOf(g)
		_, err := g.Flip(a)
		require.NoError(t, err)
		_, err = g.Flip(b)
		require.NoError(t, err)
		last = g.Resolve(g.Epoch())
	}
	assert.True(t, last.Finished)
	assert.Equal(t, [2]int{0, 8}, g.Scores)
	assert.Equal(t, 2, g.Winner())

	v := g.View()
	assert.Equal(t, 2, v.Winner)
	assert.Equal(t, "Player 2 wins!", v.Message)

	_, err := g.Flip(0)
	assert.ErrorIs(t, err, ErrGameOver)
}

func TestStaleResolveIgnoredAfterReset(t *testing.T) {
	g := newGame()
	a, b := pairOf(g)
	_, _ = g.Flip(a)
	_, _ = g.Flip(b)
	old := g.Epoch()

	g.Reset()
	res := g.Resolve(old)
	assert.True(t, res.Stale)
	assert.Equal(t, [2]int{0, 0}, g.Scores)
	assert.Equal(t, Playing, g.Status())
	for _, c := range g.Cards {
		assert.False(t, c.Flipped)
	}
}

func TestViewHidesFaceDownSymbols(t *testing.T) {
	g := newGame()
	_, _ = g.Flip(3)
	v := g.View()
	for i, c := range v.Cards {
		if i == 3 {
			assert.Equal(t, g.Cards[3].Symbol, c.Symbol)
		} else {
			assert.Empty(t, c.Symbol)
		}
	}
	assert.Equal(t, 1, v.CurrentPlayer)
}
