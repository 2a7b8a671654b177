package kv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Get(ctx, "settings")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Set(ctx, "settings", []byte(`{"debugMode":true}`)))

	got, err := m.Get(ctx, "settings")
	require.NoError(t, err)
	assert.Equal(t, `{"debugMode":true}`, string(got))

	// Returned slices are copies.
	got[0] = 'X'
	again, err := m.Get(ctx, "settings")
	require.NoError(t, err)
	assert.Equal(t, byte('{'), again[0])

	require.NoError(t, m.Set(ctx, "settings", []byte(`{}`)))
	got, err = m.Get(ctx, "settings")
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(got))
}
