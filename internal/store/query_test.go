package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/storysync/internal/story"
)

func seedStories(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	records := []story.Record{
		createTestRecord("s1", "Ann", "Walking in the park", day(3)),
		createTestRecord("s2", "budi", "Café by the sea", day(1)),
		createTestRecord("s3", "Émile", "Night market", day(2)),
		createTestRecord("s4", "Cici", "PARK cleanup day", day(4)),
	}
	require.NoError(t, s.PutAll(ctx, records))
}

func ids(records []story.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestSearch_CaseInsensitive(t *testing.T) {
	s := createTestStore(t)
	seedStories(t, s)
	ctx := context.Background()

	got, err := s.Search(ctx, "park")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s4"}, ids(got))

	got, err = s.Search(ctx, "CAFÉ")
	require.NoError(t, err)
	assert.Equal(t, []string{"s2"}, ids(got))

	got, err = s.Search(ctx, "émile")
	require.NoError(t, err)
	assert.Equal(t, []string{"s3"}, ids(got), "name matches too")
}

func TestSearch_EmptyQueryMatchesAll(t *testing.T) {
	s := createTestStore(t)
	seedStories(t, s)

	got, err := s.Search(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, got, 4)
}

func TestSearch_NoMatch(t *testing.T) {
	s := createTestStore(t)
	seedStories(t, s)

	got, err := s.Search(context.Background(), "volcano")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFilterByDate_Inclusive(t *testing.T) {
	s := createTestStore(t)
	seedStories(t, s)
	ctx := context.Background()

	got, err := s.FilterByDate(ctx, day(2), day(3))
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s3"}, ids(got))
}

func TestFilterByDate_OpenBounds(t *testing.T) {
	s := createTestStore(t)
	seedStories(t, s)
	ctx := context.Background()

	got, err := s.FilterByDate(ctx, day(3), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s4"}, ids(got))

	got, err = s.FilterByDate(ctx, time.Time{}, day(1))
	require.NoError(t, err)
	assert.Equal(t, []string{"s2"}, ids(got))
}

func TestFilterRecordsByDate_MatchesSQLFilter(t *testing.T) {
	s := createTestStore(t)
	seedStories(t, s)
	ctx := context.Background()

	all, err := s.GetAll(ctx)
	require.NoError(t, err)

	got, err := FilterRecordsByDate(all, day(2), day(3))
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s3"}, ids(got))

	got, err = FilterRecordsByDate(all, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, got, 4)

	_, err = FilterRecordsByDate(all, day(3), day(1))
	assert.Error(t, err)
}

func TestFilterByDate_InvertedRange(t *testing.T) {
	s := createTestStore(t)
	_, err := s.FilterByDate(context.Background(), day(3), day(1))
	assert.Error(t, err)
}

func TestSort(t *testing.T) {
	s := createTestStore(t)
	seedStories(t, s)
	ctx := context.Background()

	tests := []struct {
		field     SortField
		ascending bool
		want      []string
	}{
		{SortByCreatedAt, false, []string{"s4", "s1", "s3", "s2"}},
		{SortByCreatedAt, true, []string{"s2", "s3", "s1", "s4"}},
		{SortByName, true, []string{"s1", "s2", "s4", "s3"}},
		{SortByID, false, []string{"s4", "s3", "s2", "s1"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.field), func(t *testing.T) {
			got, err := s.Sort(ctx, tt.field, tt.ascending)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestSort_UnknownField(t *testing.T) {
	s := createTestStore(t)
	_, err := s.Sort(context.Background(), SortField("photoUrl"), true)
	assert.Error(t, err)
}

func TestParseSortField(t *testing.T) {
	f, err := ParseSortField("")
	require.NoError(t, err)
	assert.Equal(t, SortByCreatedAt, f)

	f, err = ParseSortField("name")
	require.NoError(t, err)
	assert.Equal(t, SortByName, f)

	_, err = ParseSortField("Name")
	assert.Error(t, err)
}
