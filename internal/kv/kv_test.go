package kv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	_, err := s.Get(ctx, KeyTheme)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, KeyTheme, "light"))
	v, err := s.Get(ctx, KeyTheme)
	require.NoError(t, err)
	assert.Equal(t, "light", v)

	require.NoError(t, s.Delete(ctx, KeyTheme))
	_, err = s.Get(ctx, KeyTheme)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNamespacesAreIsolated(t *testing.T) {
	ctx := context.Background()
	shared := NewMemory()
	a := Namespaced(shared, "visitor-a")
	b := Namespaced(shared, "visitor-b")

	require.NoError(t, a.Set(ctx, KeySnakeHighScore, "120"))
	_, err := b.Get(ctx, KeySnakeHighScore)
	assert.ErrorIs(t, err, ErrNotFound)

	raw, err := shared.Get(ctx, "visitor-a:"+KeySnakeHighScore)
	require.NoError(t, err)
	assert.Equal(t, "120", raw)
}
