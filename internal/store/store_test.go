package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/storysync/internal/story"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.False(t, os.IsNotExist(err), "database file was not created")
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "Open() iteration %d", i)
		require.NoError(t, s.Close())
	}

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	tables := []string{"stories", "pending_stories", "kv"}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		assert.NoError(t, err, "table %q not found after idempotent opens", table)
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	var mode string
	require.NoError(t, s.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var timeout int
	require.NoError(t, s.db.QueryRow("PRAGMA busy_timeout").Scan(&timeout))
	assert.Equal(t, 5000, timeout)

	var version int
	require.NoError(t, s.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	require.Error(t, err)
	assert.ErrorIs(t, err, story.ErrStorageUnavailable)
}

func TestOpen_InMemory(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Put(ctx, createTestRecord("s1", "Ann", "hello", day(1))))
	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestOpen_ConcurrentSamePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")
	ctx := context.Background()

	stores := make([]*Store, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range stores {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stores[i], errs[i] = Open(path)
		}(i)
	}
	wg.Wait()

	for i := range stores {
		require.NoError(t, errs[i], "open %d", i)
		defer stores[i].Close()
	}

	// Both handles write; neither write may be lost.
	var writeWG sync.WaitGroup
	for i, s := range stores {
		writeWG.Add(1)
		go func(i int, s *Store) {
			defer writeWG.Done()
			_, err := s.EnqueuePending(ctx, story.Submission{Description: "from handle"})
			assert.NoError(t, err)
			assert.NoError(t, s.Put(ctx, createTestRecord("s"+string(rune('a'+i)), "n", "d", day(1))))
		}(i, s)
	}
	writeWG.Wait()

	for _, s := range stores {
		pending, err := s.ListUnsynced(ctx)
		require.NoError(t, err)
		assert.Len(t, pending, 2)

		all, err := s.GetAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	assert.NoError(t, s.Close())
}

func TestClose_MultipleCalls(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)

	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}

func TestClosedStore_ReportsStorageUnavailable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	ctx := context.Background()

	_, err = s.ListUnsynced(ctx)
	assert.True(t, story.IsStorageUnavailable(err))

	err = s.Put(ctx, createTestRecord("s1", "n", "d", day(1)))
	assert.True(t, story.IsStorageUnavailable(err))

	_, err = s.EnqueuePending(ctx, story.Submission{Description: "x"})
	assert.True(t, story.IsStorageUnavailable(err))

	_, err = s.MarkSynced(ctx, "L1")
	assert.True(t, story.IsStorageUnavailable(err))
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "a.db?_busy_timeout=5000&_txlock=immediate", dsn("a.db"))
	assert.Equal(t, "file:a.db?mode=rwc&_busy_timeout=5000&_txlock=immediate", dsn("file:a.db?mode=rwc"))
}

func TestParseTime_FixedLayoutOnly(t *testing.T) {
	want := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	got, err := parseTime(formatTime(want))
	require.NoError(t, err)
	assert.True(t, want.Equal(got))

	_, err = parseTime("2024-05-01T09:30:00Z")
	assert.Error(t, err, "short RFC 3339 would break TEXT range comparison")
}

func TestGet_RejectsForeignTimeFormat(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stories (id, name, description, photo_url, created_at) VALUES (?, ?, ?, ?, ?)`,
		"x1", "Ann", "hand written", "", "2024-05-01T09:30:00Z")
	require.NoError(t, err)

	_, _, err = s.Get(ctx, "x1")
	assert.Error(t, err)
}
