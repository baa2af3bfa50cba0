// internal/store/memory.go
//
// In-memory registry of visitor workspaces.
// Workspaces are keyed by the anonymous visitor id and created on first use.
//
// Characteristics:
//   - Concurrency-safe via RWMutex; new workspaces are built outside it.
//   - State is lost when the process restarts; the per-visitor flat cache
//     (theme, high score, current user) lives in kv and survives when Redis
//     backs it.
//   - Sweep closes workspaces idle for longer than a cutoff so their
//     scheduled timers stop.

package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/portfolio/apps/go-server/internal/workspace"
)

// ErrNotFound is returned by Get for unknown visitor ids.
var ErrNotFound = errors.New("workspace not found")

// Factory builds the workspace for a new visitor.
type Factory func(ctx context.Context, id string) *workspace.Workspace

// Store defines the lookup interface for visitor workspaces.
type Store interface {
	// Get retrieves the workspace of visitor id.
	Get(ctx context.Context, id string) (*workspace.Workspace, error)

	// GetOrCreate returns the workspace of visitor id, building it on first use.
	GetOrCreate(ctx context.Context, id string) *workspace.Workspace

	// Sweep closes and drops workspaces idle for longer than idle.
	// Returns how many were dropped.
	Sweep(idle time.Duration) int

	// Len reports how many workspaces are live.
	Len() int
}

// Option configures the in-memory store.
type Option func(*memory)

// OnEvict registers fn to run with the visitor id of every swept workspace.
func OnEvict(fn func(id string)) Option {
	return func(m *memory) { m.evicted = fn }
}

// WithNow sets the time source Sweep measures idleness against. It should
// match the workspaces' clock.
func WithNow(now func() time.Time) Option {
	return func(m *memory) { m.now = now }
}

// memory is an in-memory map-based Store implementation.
type memory struct {
	factory Factory
	evicted func(id string)
	now     func() time.Time

	mu         sync.RWMutex
	workspaces map[string]*workspace.Workspace
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore(f Factory, opts ...Option) Store {
	m := &memory{factory: f, now: time.Now, workspaces: make(map[string]*workspace.Workspace)}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *memory) Get(_ context.Context, id string) (*workspace.Workspace, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if ws, ok := m.workspaces[id]; ok {
		ws.Touch()
		return ws, nil
	}
	return nil, ErrNotFound
}

// GetOrCreate builds new workspaces outside the lock (the factory reads the
// flat cache) and keeps the first one inserted when two requests race.
func (m *memory) GetOrCreate(ctx context.Context, id string) *workspace.Workspace {
	if ws, err := m.Get(ctx, id); err == nil {
		return ws
	}
	built := m.factory(ctx, id)

	m.mu.Lock()
	ws, ok := m.workspaces[id]
	if !ok {
		m.workspaces[id] = built
	}
	m.mu.Unlock()

	if ok {
		built.Close()
		ws.Touch()
		return ws
	}
	return built
}

// Sweep skips workspaces that still stream snake frames to a client.
func (m *memory) Sweep(idle time.Duration) int {
	cutoff := m.now().Add(-idle)
	var stale []*workspace.Workspace

	m.mu.Lock()
	for id, ws := range m.workspaces {
		if ws.LastSeen().Before(cutoff) && ws.Subscribers() == 0 {
			stale = append(stale, ws)
			delete(m.workspaces, id)
		}
	}
	m.mu.Unlock()

	for _, ws := range stale {
		ws.Close()
		if m.evicted != nil {
			m.evicted(ws.ID())
		}
	}
	if len(stale) > 0 {
		log.Debug().Int("dropped", len(stale)).Msg("store: swept idle workspaces")
	}
	return len(stale)
}

func (m *memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.workspaces)
}

// RunSweeper calls Sweep every interval until ctx is done.
func RunSweeper(ctx context.Context, s Store, interval, idle time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Sweep(idle)
		}
	}
}
