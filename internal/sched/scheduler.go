// internal/sched/scheduler.go
//
// Keyed, cancellable delayed tasks.
// Each game instance schedules its delayed transitions (auto-reset, card
// resolve, snake tick) under a key such as "tictactoe:reset". Scheduling a key
// that is already pending replaces the old task; Cancel/CancelPrefix drop
// pending work when a game is reset mid-transition.

package sched

import (
	"strings"
	"sync"
	"time"

	"github.com/robalobadob/portfolio/apps/go-server/internal/clock"
)

// Scheduler runs functions after a delay, at most one pending task per key.
type Scheduler struct {
	clock clock.Clock

	mu    sync.Mutex
	tasks map[string]*task
	seq   uint64
	done  bool
}

type task struct {
	id    uint64
	timer clock.Timer
}

// New returns a Scheduler driven by c.
func New(c clock.Clock) *Scheduler {
	return &Scheduler{clock: c, tasks: make(map[string]*task)}
}

// Schedule runs fn after d under key, replacing any pending task for key.
func (s *Scheduler) Schedule(key string, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	if old, ok := s.tasks[key]; ok {
		old.timer.Stop()
	}
	s.seq++
	t := &task{id: s.seq}
	id := t.id
	t.timer = s.clock.AfterFunc(d, func() {
		s.mu.Lock()
		cur, ok := s.tasks[key]
		if !ok || cur.id != id {
			s.mu.Unlock()
			return
		}
		delete(s.tasks, key)
		s.mu.Unlock()
		fn()
	})
	s.tasks[key] = t
}

// Cancel drops the pending task for key. Reports whether one was pending.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[key]
	if !ok {
		return false
	}
	t.timer.Stop()
	delete(s.tasks, key)
	return true
}

// CancelPrefix drops every pending task whose key starts with prefix and
// returns how many were dropped.
func (s *Scheduler) CancelPrefix(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, t := range s.tasks {
		if strings.HasPrefix(k, prefix) {
			t.timer.Stop()
			delete(s.tasks, k)
			n++
		}
	}
	return n
}

// Pending reports whether a task is waiting under key.
func (s *Scheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[key]
	return ok
}

// Close cancels everything and rejects further scheduling.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, t := range s.tasks {
		t.timer.Stop()
		delete(s.tasks, k)
	}
	s.done = true
}
