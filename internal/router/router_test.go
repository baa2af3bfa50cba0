package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func visibleCount(v View) int {
	n := 0
	for _, on := range v.Visible {
		if on {
			n++
		}
	}
	return n
}

func TestEverySectionShowsExactlyOne(t *testing.T) {
	require.Len(t, Sections, 9)
	for _, s := range Sections {
		n := NewNavigator()
		v := n.Follow(s.Fragment())

		assert.Equal(t, s, v.Active, s)
		assert.Equal(t, 1, visibleCount(v), s)
		assert.Len(t, v.Visible, 9)
		assert.True(t, v.Visible[s])
		assert.Equal(t, "#"+string(s), v.ActiveLink)
	}
}

func TestUnknownFragmentBehavesLikeHome(t *testing.T) {
	home := NewNavigator().Load("#home")
	for _, f := range []string{"#bogus", "", "#", "nope", "#HOME "} {
		v := NewNavigator().Load(f)
		assert.Equal(t, home.Active, v.Active, f)
		assert.Equal(t, home.Visible, v.Visible, f)
		assert.Equal(t, home.ActiveLink, v.ActiveLink, f)
	}
}

func TestParseNormalizes(t *testing.T) {
	assert.Equal(t, Games, Parse("#Games"))
	assert.Equal(t, TicTacToe, Parse(" tic-tac-toe "))
	assert.Equal(t, Home, Parse("#tic_tac_toe"))
}

func TestFollowPushesPopStateDoesNot(t *testing.T) {
	n := NewNavigator()
	n.Load("#home")

	v := n.Follow("#about")
	assert.True(t, v.Pushed)
	assert.Equal(t, []Section{Home, About}, n.History())

	v = n.PopState("#about")
	assert.False(t, v.Pushed)
	assert.Len(t, n.History(), 2)
}

func TestBackForward(t *testing.T) {
	n := NewNavigator()
	n.Follow("#games")
	n.Follow("#snake-game")

	v := n.Back()
	assert.Equal(t, Games, v.Active)
	assert.True(t, v.CanFwd)

	v = n.Back()
	assert.Equal(t, Home, v.Active)
	assert.False(t, v.CanBack)

	v = n.Back()
	assert.Equal(t, Home, v.Active)

	v = n.Forward()
	assert.Equal(t, Games, v.Active)

	// Following a link from the middle drops forward entries.
	n.Follow("#contact")
	assert.Equal(t, []Section{Home, Games, Contact}, n.History())
	assert.False(t, n.View().CanFwd)
}

func TestHistoryIsBounded(t *testing.T) {
	n := NewNavigator()
	n.Follow("#about")
	for i := 0; i < 3*MaxHistory; i++ {
		n.Follow("#games")
		n.Follow("#contact")
	}
	h := n.History()
	require.Len(t, h, MaxHistory)
	assert.Equal(t, Contact, h[len(h)-1])
	assert.NotContains(t, h, About, "oldest entries are dropped")

	v := n.Back()
	assert.Equal(t, Games, v.Active)
	assert.True(t, v.CanFwd)
	v = n.Forward()
	assert.Equal(t, Contact, v.Active)
	assert.False(t, v.CanFwd)
}
