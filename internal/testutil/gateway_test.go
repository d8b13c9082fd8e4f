package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/storysync/internal/story"
)

func TestFakeGateway_RecordsCallsInOrder(t *testing.T) {
	g := NewFakeGateway()
	ctx := context.Background()

	for _, d := range []string{"one", "two", "three"} {
		rec, err := g.CreateStory(ctx, story.Submission{Description: d})
		require.NoError(t, err)
		assert.Nil(t, rec)
	}

	assert.Equal(t, []string{"one", "two", "three"}, g.Calls())
	require.Len(t, g.Created(), 3)
	assert.Equal(t, "story-3", g.Created()[2].ID)
}

func TestFakeGateway_FailNext(t *testing.T) {
	g := NewFakeGateway()
	g.FailNext(NetworkDown(), nil)
	ctx := context.Background()

	_, err := g.CreateStory(ctx, story.Submission{Description: "a"})
	assert.True(t, story.IsRetryable(err))
	assert.ErrorIs(t, err, ErrSimulatedNetwork)

	_, err = g.CreateStory(ctx, story.Submission{Description: "b"})
	assert.NoError(t, err)

	_, err = g.CreateStory(ctx, story.Submission{Description: "c"})
	assert.NoError(t, err)

	assert.Len(t, g.Created(), 2)
}

func TestFakeGateway_FailOn(t *testing.T) {
	g := NewFakeGateway()
	g.FailOn("bad", Rejected(400, "photo too large"))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := g.CreateStory(ctx, story.Submission{Description: "bad"})
		assert.Equal(t, story.ErrCodeRemoteRejected, story.CodeOf(err))
	}

	g.FailOn("bad", nil)
	_, err := g.CreateStory(ctx, story.Submission{Description: "bad"})
	assert.NoError(t, err)
}

func TestFakeGateway_Echo(t *testing.T) {
	g := NewFakeGateway()
	g.EchoRecords(true)

	rec, err := g.CreateStory(context.Background(), story.Submission{Description: "hello", Lat: story.Float(1), Lon: story.Float(2)})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "story-1", rec.ID)
	assert.True(t, rec.HasLocation())
}

func TestFakeGateway_BeforeCreate(t *testing.T) {
	g := NewFakeGateway()
	var seen []int
	g.BeforeCreate = func(call int, _ story.Submission) { seen = append(seen, call) }

	ctx := context.Background()
	_, _ = g.CreateStory(ctx, story.Submission{Description: "a"})
	_, _ = g.CreateStory(ctx, story.Submission{Description: "b"})

	assert.Equal(t, []int{1, 2}, seen)
}

func TestFakeGateway_CancelledContext(t *testing.T) {
	g := NewFakeGateway()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.CreateStory(ctx, story.Submission{Description: "a"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, g.Created())
	assert.Equal(t, []string{"a"}, g.Calls())
}
