package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/portfolio/apps/go-server/internal/clock"
	"github.com/robalobadob/portfolio/apps/go-server/internal/game/snake"
	"github.com/robalobadob/portfolio/apps/go-server/internal/workspace"
)

func newTestStore(clk *clock.Fake) (*memory, *int) {
	built := 0
	s := NewMemoryStore(func(ctx context.Context, id string) *workspace.Workspace {
		built++
		return workspace.New(ctx, id, workspace.Options{Clock: clk})
	}, WithNow(clk.Now)).(*memory)
	return s, &built
}

func TestGetOrCreateReusesWorkspace(t *testing.T) {
	clk := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	s, built := newTestStore(clk)
	ctx := context.Background()

	_, err := s.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)

	a := s.GetOrCreate(ctx, "a")
	assert.Same(t, a, s.GetOrCreate(ctx, "a"))
	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Same(t, a, got)

	b := s.GetOrCreate(ctx, "b")
	assert.NotSame(t, a, b)
	assert.Equal(t, 2, *built)
	assert.Equal(t, 2, s.Len())
}

func TestConcurrentGetOrCreate(t *testing.T) {
	clk := clock.NewFake(time.Now())
	s := NewMemoryStore(func(ctx context.Context, id string) *workspace.Workspace {
		return workspace.New(ctx, id, workspace.Options{Clock: clk})
	})

	var wg sync.WaitGroup
	got := make([]*workspace.Workspace, 16)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = s.GetOrCreate(context.Background(), "same")
		}(i)
	}
	wg.Wait()
	for _, ws := range got {
		assert.Same(t, got[0], ws)
	}
}

func TestSweepDropsIdleWorkspaces(t *testing.T) {
	clk := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	var evicted []string
	s := NewMemoryStore(func(ctx context.Context, id string) *workspace.Workspace {
		return workspace.New(ctx, id, workspace.Options{Clock: clk})
	}, WithNow(clk.Now), OnEvict(func(id string) { evicted = append(evicted, id) }))
	ctx := context.Background()

	old := s.GetOrCreate(ctx, "old")
	clk.Advance(20 * time.Minute)
	s.GetOrCreate(ctx, "fresh")

	// a finished board waits for its auto-reset
	for _, c := range []int{0, 3, 1, 4, 2} {
		_, err := old.PlayTicTacToe(c)
		require.NoError(t, err)
	}
	require.Equal(t, 1, clk.Pending())

	assert.Equal(t, 0, s.Sweep(time.Hour))
	assert.Equal(t, 1, s.Sweep(10*time.Minute))
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 0, clk.Pending(), "closed workspace cancels its timers")
	assert.Equal(t, []string{"old"}, evicted)

	_, err := s.Get(ctx, "old")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSnakeInputKeepsWorkspaceAlive(t *testing.T) {
	clk := clock.NewFake(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))
	s, _ := newTestStore(clk)

	ws := s.GetOrCreate(context.Background(), "player")
	for i := 0; i < 12; i++ {
		clk.Advance(5 * time.Minute)
		ws.RestartSnake()
		_, err := ws.SteerSnake("up")
		require.NoError(t, err)
	}
	assert.Equal(t, clk.Now(), ws.LastSeen())
	assert.Equal(t, 0, s.Sweep(30*time.Minute))
	assert.Equal(t, 1, s.Len())
}

func TestSubscribedWorkspaceIsNotSwept(t *testing.T) {
	clk := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	s, _ := newTestStore(clk)

	ws := s.GetOrCreate(context.Background(), "watcher")
	unsubscribe := ws.Subscribe(func(snake.Frame) {})
	clk.Advance(2 * time.Hour)
	assert.Equal(t, 0, s.Sweep(30*time.Minute), "an open frame stream counts as activity")

	unsubscribe()
	assert.Equal(t, 1, s.Sweep(30*time.Minute))
	assert.Equal(t, 0, s.Len())
}

func TestFactoryRunsOutsideLock(t *testing.T) {
	clk := clock.NewFake(time.Now())
	entered := make(chan struct{})
	release := make(chan struct{})
	s := NewMemoryStore(func(ctx context.Context, id string) *workspace.Workspace {
		if id == "slow" {
			close(entered)
			<-release
		}
		return workspace.New(ctx, id, workspace.Options{Clock: clk})
	})
	ctx := context.Background()
	fast := s.GetOrCreate(ctx, "fast")

	created := make(chan *workspace.Workspace)
	go func() { created <- s.GetOrCreate(ctx, "slow") }()
	<-entered

	done := make(chan *workspace.Workspace)
	go func() { done <- s.GetOrCreate(ctx, "fast") }()
	select {
	case got := <-done:
		assert.Same(t, fast, got)
	case <-time.After(2 * time.Second):
		t.Fatal("lookup blocked behind a workspace being built")
	}

	close(release)
	slow := <-created
	assert.Same(t, slow, s.GetOrCreate(ctx, "slow"))
	assert.Equal(t, 2, s.Len())
}
