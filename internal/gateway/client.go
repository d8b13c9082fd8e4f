// Package gateway is the REST client for the remote Story API.
//
// Every failure is reported as a *story.Error: an error payload or non-2xx
// status becomes ErrCodeRemoteRejected, and a request that never got an
// answer becomes ErrCodeNetworkUnreachable. Callers that sync treat both as
// retryable.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/storysync/internal/story"
)

// DefaultBaseURL is the public Story API.
const DefaultBaseURL = "https://story-api.dicoding.dev/v1"

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 10 << 20

// TokenSource supplies the bearer token for authenticated calls.
// An empty token means "not logged in".
type TokenSource interface {
	Token() string
}

// StaticToken is a fixed TokenSource.
type StaticToken string

// Token returns the fixed token.
func (t StaticToken) Token() string { return string(t) }

// Client talks to the Story API.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	logger  *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client (30s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTokenSource sets where bearer tokens come from.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) {
		c.tokens = ts
	}
}

// WithLogger sets the logger. Default: no-op.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		tokens:  StaticToken(""),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// envelope is the status part every Story API response carries.
type envelope struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

// RegisterRequest is the body of POST /register.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult is the identity returned by POST /login.
type LoginResult struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Token  string `json:"token"`
}

// ListOptions controls GET /stories paging.
type ListOptions struct {
	Page         int
	Size         int
	WithLocation bool
}

// Register creates a new account.
func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("register: encode: %w", err)
	}
	return c.do(ctx, "register", http.MethodPost, "/register", bytes.NewReader(body), "application/json", false, nil)
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return LoginResult{}, fmt.Errorf("login: encode: %w", err)
	}

	var out struct {
		LoginResult LoginResult `json:"loginResult"`
	}
	if err := c.do(ctx, "login", http.MethodPost, "/login", bytes.NewReader(body), "application/json", false, &out); err != nil {
		return LoginResult{}, err
	}
	return out.LoginResult, nil
}

// ListStories fetches one page of stories.
func (c *Client) ListStories(ctx context.Context, opts ListOptions) ([]story.Record, error) {
	q := url.Values{}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.Size > 0 {
		q.Set("size", strconv.Itoa(opts.Size))
	}
	if opts.WithLocation {
		q.Set("location", "1")
	} else {
		q.Set("location", "0")
	}

	var out struct {
		ListStory []story.Record `json:"listStory"`
	}
	if err := c.do(ctx, "list stories", http.MethodGet, "/stories?"+q.Encode(), nil, "", true, &out); err != nil {
		return nil, err
	}
	if out.ListStory == nil {
		out.ListStory = []story.Record{}
	}
	return out.ListStory, nil
}

// GetStory fetches one story by id.
func (c *Client) GetStory(ctx context.Context, id string) (story.Record, error) {
	var out struct {
		Story story.Record `json:"story"`
	}
	if err := c.do(ctx, "get story", http.MethodGet, "/stories/"+url.PathEscape(id), nil, "", true, &out); err != nil {
		return story.Record{}, err
	}
	return out.Story, nil
}

// CreateStory submits a new story. Without a token it posts to the guest
// endpoint. The returned record is nil when the API does not echo the story.
func (c *Client) CreateStory(ctx context.Context, sub story.Submission) (*story.Record, error) {
	path, op := "/stories", "create story"
	if c.tokens.Token() == "" {
		path, op = "/stories/guest", "create guest story"
	}
	return c.sendStory(ctx, op, http.MethodPost, path, sub)
}

// UpdateStory replaces an existing story.
func (c *Client) UpdateStory(ctx context.Context, id string, sub story.Submission) (*story.Record, error) {
	return c.sendStory(ctx, "update story", http.MethodPut, "/stories/"+url.PathEscape(id), sub)
}

// DeleteStory removes a story.
func (c *Client) DeleteStory(ctx context.Context, id string) error {
	return c.do(ctx, "delete story", http.MethodDelete, "/stories/"+url.PathEscape(id), nil, "", true, nil)
}

func (c *Client) sendStory(ctx context.Context, op, method, path string, sub story.Submission) (*story.Record, error) {
	body, contentType, err := encodeSubmission(sub)
	if err != nil {
		return nil, fmt.Errorf("%s: encode: %w", op, err)
	}

	var out struct {
		Story *story.Record `json:"story"`
	}
	if err := c.do(ctx, op, method, path, body, contentType, true, &out); err != nil {
		return nil, err
	}
	return out.Story, nil
}

// encodeSubmission builds the multipart form the API expects:
// description, optional photo file, optional lat/lon.
func encodeSubmission(sub story.Submission) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("description", sub.Description); err != nil {
		return nil, "", err
	}

	if sub.Photo != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="photo"; filename=%q`, photoName(sub.Photo)))
		ct := sub.Photo.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(sub.Photo.Data); err != nil {
			return nil, "", err
		}
	}

	if sub.HasLocation() {
		if err := w.WriteField("lat", strconv.FormatFloat(*sub.Lat, 'f', -1, 64)); err != nil {
			return nil, "", err
		}
		if err := w.WriteField("lon", strconv.FormatFloat(*sub.Lon, 'f', -1, 64)); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func photoName(p *story.Photo) string {
	if p.Name != "" {
		return p.Name
	}
	return "photo"
}

// do performs one request and decodes the envelope plus out.
func (c *Client) do(ctx context.Context, op, method, path string, body io.Reader, contentType string, auth bool, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if auth {
		if tok := c.tokens.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", op, ctxErr)
		}
		c.logger.Debug("request failed",
			zap.String("op", op),
			zap.String("method", method),
			zap.Error(err),
		)
		return story.NetworkUnreachable(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return story.NetworkUnreachable(op, fmt.Errorf("read body: %w", err))
	}

	c.logger.Debug("request completed",
		zap.String("op", op),
		zap.String("method", method),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	ok := resp.StatusCode >= 200 && resp.StatusCode <= 299
	if ok && out == nil && len(bytes.TrimSpace(data)) == 0 {
		// e.g. 204 No Content on delete
		return nil
	}

	var env envelope
	decodeErr := json.Unmarshal(data, &env)

	if !ok {
		msg := env.Message
		if decodeErr != nil || msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return story.RemoteRejected(op, resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return story.RemoteRejected(op, resp.StatusCode, "malformed response: "+decodeErr.Error())
	}
	if env.Error {
		return story.RemoteRejected(op, resp.StatusCode, env.Message)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return story.RemoteRejected(op, resp.StatusCode, "malformed response: "+err.Error())
		}
	}
	return nil
}
