// internal/kv/kv.go
//
// Flat key-value cache (the "local storage" of a visitor).
// Implementations: an in-memory map (default) and Redis (redis.go).
// Namespaced() scopes a shared backend to one visitor so keys such as
// "theme", "current_user" and "snakeHighScore" do not collide.

package kv

import (
	"context"
	"errors"
	"sync"
)

// Well-known keys.
const (
	KeyTheme          = "theme"
	KeyAppVersion     = "app_version"
	KeyCurrentUser    = "current_user"
	KeySnakeHighScore = "snakeHighScore"
)

// ErrNotFound is returned by Get for missing keys.
var ErrNotFound = errors.New("kv: not found")

// Store is a string key-value store.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// memory is a map-based Store guarded by an RWMutex.
type memory struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemory returns an empty in-memory Store.
func NewMemory() Store {
	return &memory{data: make(map[string]string)}
}

func (m *memory) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

type namespaced struct {
	prefix string
	next   Store
}

// Namespaced prefixes every key with ns + ":".
func Namespaced(next Store, ns string) Store {
	return &namespaced{prefix: ns + ":", next: next}
}

func (n *namespaced) Get(ctx context.Context, key string) (string, error) {
	return n.next.Get(ctx, n.prefix+key)
}

func (n *namespaced) Set(ctx context.Context, key, value string) error {
	return n.next.Set(ctx, n.prefix+key, value)
}

func (n *namespaced) Delete(ctx context.Context, key string) error {
	return n.next.Delete(ctx, n.prefix+key)
}
