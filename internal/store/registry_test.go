package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/storysync/internal/story"
)

func TestRegistry_ConcurrentAcquireSharesHandle(t *testing.T) {
	reg := NewRegistry()
	t.Cleanup(func() { reg.Close() })
	path := filepath.Join(t.TempDir(), "shared.db")
	ctx := context.Background()

	const callers = 8
	got := make([]*Store, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i], errs[i] = reg.Acquire(ctx, path)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, got[0], got[i], "caller %d got a different handle", i)
	}

	_, err := got[0].EnqueuePending(ctx, story.Submission{Description: "x"})
	require.NoError(t, err)
	pending, err := got[callers-1].ListUnsynced(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestRegistry_OpenFailureNotCached(t *testing.T) {
	reg := NewRegistry()
	t.Cleanup(func() { reg.Close() })

	_, err := reg.Acquire(context.Background(), "/nonexistent/dir/test.db")
	require.Error(t, err)
	assert.True(t, story.IsStorageUnavailable(err))
	assert.Nil(t, reg.lookup("/nonexistent/dir/test.db"))
}

func TestRegistry_CancelledContext(t *testing.T) {
	reg := NewRegistry()
	t.Cleanup(func() { reg.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	path := filepath.Join(t.TempDir(), "test.db")
	// Either the open wins the race or the cancellation does; both are fine,
	// but a cancelled caller must never receive a nil store without an error.
	s, err := reg.Acquire(ctx, path)
	if err == nil {
		assert.NotNil(t, s)
	} else {
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestRegistry_CloseClosesStores(t *testing.T) {
	reg := NewRegistry()
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := reg.Acquire(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, reg.Close())

	_, err = s.ListUnsynced(context.Background())
	assert.True(t, story.IsStorageUnavailable(err))
}
