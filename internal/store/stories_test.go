package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/storysync/internal/story"
)

func TestPut_Get_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	want := story.Record{
		ID:          "story-1",
		Name:        "Dimas",
		Description: "Morning at the harbour",
		PhotoURL:    "https://example.test/photos/1.jpg",
		Lat:         story.Float(-6.1751),
		Lon:         story.Float(106.865),
		CreatedAt:   time.Date(2024, 3, 4, 5, 6, 7, 890000000, time.UTC),
	}
	require.NoError(t, s.Put(ctx, want))

	got, found, err := s.Get(ctx, "story-1")
	require.NoError(t, err)
	require.True(t, found)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Get() mismatch (-want +got):\n%s", diff)
	}
}

func TestPut_Overwrites(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, createTestRecord("s1", "Ann", "first", day(1))))
	require.NoError(t, s.Put(ctx, createTestRecord("s1", "Ann", "second", day(2))))

	got, found, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "second", got.Description)
	assert.Equal(t, day(2), got.CreatedAt)

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestPut_RequiresID(t *testing.T) {
	s := createTestStore(t)
	err := s.Put(context.Background(), story.Record{Name: "no id"})
	assert.Error(t, err)
}

func TestPut_NullLocation(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, createTestRecord("s1", "Ann", "no location", day(1))))

	got, _, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, got.Lat)
	assert.Nil(t, got.Lon)
	assert.False(t, got.HasLocation())
}

func TestGet_Missing(t *testing.T) {
	s := createTestStore(t)

	got, found, err := s.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, story.Record{}, got)
}

func TestGetAll_Empty(t *testing.T) {
	s := createTestStore(t)

	all, err := s.GetAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)
}

func TestGetAll_OrderedByID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, s.Put(ctx, createTestRecord(id, "n", "d", day(1))))
	}

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].ID)
	assert.Equal(t, "b", all[1].ID)
	assert.Equal(t, "c", all[2].ID)
}

func TestPutAll(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	records := []story.Record{
		createTestRecord("s1", "Ann", "one", day(1)),
		createTestRecord("s2", "Budi", "two", day(2)),
	}
	require.NoError(t, s.PutAll(ctx, records))

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestPutAll_RollsBackOnError(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	records := []story.Record{
		createTestRecord("s1", "Ann", "one", day(1)),
		{Name: "missing id"},
	}
	require.Error(t, s.PutAll(ctx, records))

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all, "partial batch must not be committed")
}

func TestDelete_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, createTestRecord("s1", "Ann", "d", day(1))))
	require.NoError(t, s.Delete(ctx, "s1"))
	require.NoError(t, s.Delete(ctx, "s1"), "second delete must not error")
	require.NoError(t, s.Delete(ctx, "never-existed"))

	_, found, err := s.Get(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, found)
}
