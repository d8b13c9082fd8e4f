package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/roach88/storysync/internal/story"
)

func newTestClient(t *testing.T, h http.HandlerFunc, token string) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL, WithTokenSource(StaticToken(token)), WithLogger(zaptest.NewLogger(t)))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestLogin(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/login", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ann@example.com", body["email"])
		assert.Equal(t, "secret123", body["password"])

		writeJSON(w, http.StatusOK, map[string]any{
			"error":   false,
			"message": "success",
			"loginResult": map[string]string{
				"userId": "user-1",
				"name":   "Ann",
				"token":  "tok-1",
			},
		})
	}, "")

	res, err := c.Login(context.Background(), "ann@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, LoginResult{UserID: "user-1", Name: "Ann", Token: "tok-1"}, res)
}

func TestLogin_Rejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": true, "message": "Invalid password"})
	}, "")

	_, err := c.Login(context.Background(), "ann@example.com", "wrong")
	require.Error(t, err)

	var se *story.Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, story.ErrCodeRemoteRejected, se.Code)
	assert.Equal(t, http.StatusUnauthorized, se.Status)
	assert.Equal(t, "Invalid password", se.Message)
	assert.True(t, story.IsRetryable(err))
}

func TestRegister(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/register", r.URL.Path)
		var body RegisterRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, RegisterRequest{Name: "Ann", Email: "ann@example.com", Password: "secret123"}, body)
		writeJSON(w, http.StatusCreated, map[string]any{"error": false, "message": "User Created"})
	}, "")

	err := c.Register(context.Background(), RegisterRequest{Name: "Ann", Email: "ann@example.com", Password: "secret123"})
	require.NoError(t, err)
}

func TestListStories(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stories", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "10", r.URL.Query().Get("size"))
		assert.Equal(t, "1", r.URL.Query().Get("location"))
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))

		writeJSON(w, http.StatusOK, map[string]any{
			"error":   false,
			"message": "Stories fetched successfully",
			"listStory": []map[string]any{
				{
					"id":          "story-1",
					"name":        "Ann",
					"description": "Walking in the park",
					"photoUrl":    "https://example.com/1.jpg",
					"createdAt":   "2024-05-01T09:00:00.000Z",
					"lat":         -6.2,
					"lon":         106.8,
				},
				{
					"id":          "story-2",
					"name":        "Budi",
					"description": "No location",
					"photoUrl":    "https://example.com/2.jpg",
					"createdAt":   "2024-05-02T09:00:00.000Z",
					"lat":         nil,
					"lon":         nil,
				},
			},
		})
	}, "tok-1")

	got, err := c.ListStories(context.Background(), ListOptions{Page: 2, Size: 10, WithLocation: true})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "story-1", got[0].ID)
	require.True(t, got[0].HasLocation())
	assert.InDelta(t, -6.2, *got[0].Lat, 1e-9)
	assert.Equal(t, time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), got[0].CreatedAt.UTC())

	assert.False(t, got[1].HasLocation())
}

func TestListStories_EmptyIsNonNil(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"error": false, "message": "ok"})
	}, "tok-1")

	got, err := c.ListStories(context.Background(), ListOptions{})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestGetStory(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stories/story-9", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{
			"error":   false,
			"message": "Story fetched successfully",
			"story": map[string]any{
				"id":          "story-9",
				"name":        "Cici",
				"description": "Night market",
				"createdAt":   "2024-05-03T19:30:00.000Z",
			},
		})
	}, "tok-1")

	got, err := c.GetStory(context.Background(), "story-9")
	require.NoError(t, err)
	assert.Equal(t, "story-9", got.ID)
	assert.Equal(t, "Night market", got.Description)
}

func TestCreateStory_Multipart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/stories", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))

		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Sunset", r.FormValue("description"))
		assert.Equal(t, "-6.2", r.FormValue("lat"))
		assert.Equal(t, "106.8", r.FormValue("lon"))

		f, hdr, err := r.FormFile("photo")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		assert.NoError(t, err)
		assert.Equal(t, "sunset.jpg", hdr.Filename)
		assert.Equal(t, "image/jpeg", hdr.Header.Get("Content-Type"))
		assert.Equal(t, []byte{0xff, 0xd8, 0xff}, data)

		writeJSON(w, http.StatusCreated, map[string]any{"error": false, "message": "success"})
	}, "tok-1")

	rec, err := c.CreateStory(context.Background(), story.Submission{
		Description: "Sunset",
		Photo:       &story.Photo{Name: "sunset.jpg", ContentType: "image/jpeg", Data: []byte{0xff, 0xd8, 0xff}},
		Lat:         story.Float(-6.2),
		Lon:         story.Float(106.8),
	})
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestCreateStory_GuestWithoutToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stories/guest", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Guest post", r.FormValue("description"))
		_, hasLat := r.MultipartForm.Value["lat"]
		assert.False(t, hasLat)

		writeJSON(w, http.StatusCreated, map[string]any{"error": false, "message": "success"})
	}, "")

	_, err := c.CreateStory(context.Background(), story.Submission{Description: "Guest post"})
	require.NoError(t, err)
}

func TestCreateStory_EchoedStory(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]any{
			"error":   false,
			"message": "success",
			"story":   map[string]any{"id": "story-new", "name": "Ann", "description": "Hi"},
		})
	}, "tok-1")

	rec, err := c.CreateStory(context.Background(), story.Submission{Description: "Hi"})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "story-new", rec.ID)
}

func TestCreateStory_ErrorPayloadWith200(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"error": true, "message": "Payload content length greater than maximum allowed: 1000000"})
	}, "tok-1")

	_, err := c.CreateStory(context.Background(), story.Submission{Description: "big"})
	require.Error(t, err)
	assert.Equal(t, story.ErrCodeRemoteRejected, story.CodeOf(err))
	assert.Contains(t, err.Error(), "maximum allowed")
}

func TestServerErrorWithoutBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}, "tok-1")

	err := c.DeleteStory(context.Background(), "story-1")
	require.Error(t, err)

	var se *story.Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, story.ErrCodeRemoteRejected, se.Code)
	assert.Equal(t, http.StatusBadGateway, se.Status)
	assert.Equal(t, "Bad Gateway", se.Message)
}

func TestUpdateAndDelete(t *testing.T) {
	var calls []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{"error": false, "message": "ok"})
	}, "tok-1")

	_, err := c.UpdateStory(context.Background(), "story-1", story.Submission{Description: "edited"})
	require.NoError(t, err)
	require.NoError(t, c.DeleteStory(context.Background(), "story-1"))

	assert.Equal(t, []string{"PUT /stories/story-1", "DELETE /stories/story-1"}, calls)
}

func TestDelete_NoContent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, "tok-1")

	require.NoError(t, c.DeleteStory(context.Background(), "story-1"))
}

func TestEmptyBodyWhereDataExpected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}, "tok-1")

	_, err := c.GetStory(context.Background(), "story-1")
	require.Error(t, err)
	assert.Equal(t, story.ErrCodeRemoteRejected, story.CodeOf(err))
}

func TestNetworkUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url)
	_, err := c.ListStories(context.Background(), ListOptions{})
	require.Error(t, err)
	assert.Equal(t, story.ErrCodeNetworkUnreachable, story.CodeOf(err))
	assert.True(t, story.IsRetryable(err))
}

func TestCancelledContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"error": false})
	}, "tok-1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ListStories(ctx, ListOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, story.IsRetryable(err))
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	c := New("https://example.com/v1/")
	assert.Equal(t, "https://example.com/v1", c.BaseURL())
}
