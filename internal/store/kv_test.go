package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKV_SetGetDelete(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, found, err := s.Value(ctx, "session")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.SetValue(ctx, "session", "one"))
	require.NoError(t, s.SetValue(ctx, "session", "two"))

	v, found, err := s.Value(ctx, "session")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "two", v)

	require.NoError(t, s.DeleteValue(ctx, "session"))
	require.NoError(t, s.DeleteValue(ctx, "session"))

	_, found, err = s.Value(ctx, "session")
	require.NoError(t, err)
	assert.False(t, found)
}
