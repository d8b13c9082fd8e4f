package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/roach88/storysync/internal/story"
)

// StoryAPI is an in-memory Story API served over httptest.
//
// It follows the real API's shapes: every response carries
// {"error", "message"}, login returns "loginResult", lists return
// "listStory", details return "story", and creates do not echo the story.
// SetDown makes every request, probes included, fail at the transport level.
type StoryAPI struct {
	server *httptest.Server
	clock  *StepClock

	mu       sync.Mutex
	users    map[string]apiUser // by email
	tokens   map[string]apiUser
	stories  []story.Record // newest first
	nextID   int
	down     bool
	requests []string
	rejects  []apiReject
}

type apiUser struct {
	ID       string
	Name     string
	Email    string
	Password string
}

type apiReject struct {
	status  int
	message string
}

// NewStoryAPI starts a fake API that is shut down with the test.
func NewStoryAPI(t *testing.T) *StoryAPI {
	t.Helper()

	a := &StoryAPI{
		clock:  NewStepClock(),
		users:  make(map[string]apiUser),
		tokens: make(map[string]apiUser),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /register", a.register)
	mux.HandleFunc("POST /login", a.login)
	mux.HandleFunc("GET /stories", a.auth(a.list))
	mux.HandleFunc("GET /stories/{id}", a.auth(a.detail))
	mux.HandleFunc("POST /stories", a.auth(a.create))
	mux.HandleFunc("POST /stories/guest", func(w http.ResponseWriter, r *http.Request) {
		a.create(w, r, apiUser{Name: "Guest"})
	})
	mux.HandleFunc("PUT /stories/{id}", a.auth(a.update))
	mux.HandleFunc("DELETE /stories/{id}", a.auth(a.remove))

	a.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		down := a.down
		if !down && r.Method != http.MethodHead {
			a.requests = append(a.requests, r.Method+" "+r.URL.Path)
		}
		a.mu.Unlock()

		if down {
			dropConnection(w)
			return
		}
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(a.server.Close)
	return a
}

// URL is the API root to hand to gateway.New.
func (a *StoryAPI) URL() string {
	return a.server.URL
}

// AddUser registers an account directly and returns its token.
func (a *StoryAPI) AddUser(name, email, password string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	u := a.addUserLocked(name, email, password)
	return tokenFor(u)
}

// SeedStory adds a story as if someone else had posted it.
func (a *StoryAPI) SeedStory(r story.Record) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stories = append([]story.Record{r}, a.stories...)
}

// SetDown switches transport-level failure on or off.
func (a *StoryAPI) SetDown(down bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.down = down
}

// RejectNextCreates makes the next n creates answer with status and message.
func (a *StoryAPI) RejectNextCreates(n, status int, message string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := 0; i < n; i++ {
		a.rejects = append(a.rejects, apiReject{status: status, message: message})
	}
}

// Stories returns the server's stories, newest first.
func (a *StoryAPI) Stories() []story.Record {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]story.Record, len(a.stories))
	copy(out, a.stories)
	return out
}

// Requests returns "METHOD /path" for every request served, probes excluded.
func (a *StoryAPI) Requests() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.requests))
	copy(out, a.requests)
	return out
}

func (a *StoryAPI) addUserLocked(name, email, password string) apiUser {
	u := apiUser{
		ID:       fmt.Sprintf("user-%d", len(a.users)+1),
		Name:     name,
		Email:    email,
		Password: password,
	}
	a.users[email] = u
	a.tokens[tokenFor(u)] = u
	return u
}

func tokenFor(u apiUser) string {
	return "token-" + u.ID
}

func (a *StoryAPI) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		reply(w, http.StatusBadRequest, "invalid JSON", nil)
		return
	}
	if len(req.Password) < 8 {
		reply(w, http.StatusBadRequest, `"password" length must be at least 8 characters long`, nil)
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, taken := a.users[req.Email]; taken {
		reply(w, http.StatusBadRequest, "Email is already taken", nil)
		return
	}
	a.addUserLocked(req.Name, req.Email, req.Password)
	reply(w, http.StatusCreated, "User Created", nil)
}

func (a *StoryAPI) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		reply(w, http.StatusBadRequest, "invalid JSON", nil)
		return
	}

	a.mu.Lock()
	u, ok := a.users[req.Email]
	a.mu.Unlock()

	if !ok {
		reply(w, http.StatusUnauthorized, "User not found", nil)
		return
	}
	if u.Password != req.Password {
		reply(w, http.StatusUnauthorized, "Invalid password", nil)
		return
	}
	reply(w, http.StatusOK, "success", map[string]any{
		"loginResult": map[string]string{"userId": u.ID, "name": u.Name, "token": tokenFor(u)},
	})
}

func (a *StoryAPI) auth(next func(http.ResponseWriter, *http.Request, apiUser)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		a.mu.Lock()
		u, ok := a.tokens[tok]
		a.mu.Unlock()
		if !ok {
			reply(w, http.StatusUnauthorized, "Missing authentication", nil)
			return
		}
		next(w, r, u)
	}
}

func (a *StoryAPI) list(w http.ResponseWriter, r *http.Request, _ apiUser) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	withLocation := r.URL.Query().Get("location") == "1"

	a.mu.Lock()
	var matched []story.Record
	for _, s := range a.stories {
		if withLocation && !s.HasLocation() {
			continue
		}
		matched = append(matched, s)
	}
	a.mu.Unlock()

	if page > 0 && size > 0 {
		start := (page - 1) * size
		if start > len(matched) {
			start = len(matched)
		}
		end := start + size
		if end > len(matched) {
			end = len(matched)
		}
		matched = matched[start:end]
	}
	if matched == nil {
		matched = []story.Record{}
	}
	reply(w, http.StatusOK, "Stories fetched successfully", map[string]any{"listStory": matched})
}

func (a *StoryAPI) detail(w http.ResponseWriter, r *http.Request, _ apiUser) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if i := a.indexLocked(r.PathValue("id")); i >= 0 {
		reply(w, http.StatusOK, "Story fetched successfully", map[string]any{"story": a.stories[i]})
		return
	}
	reply(w, http.StatusNotFound, "Story not found", nil)
}

func (a *StoryAPI) create(w http.ResponseWriter, r *http.Request, u apiUser) {
	rec, ok := parseStoryForm(w, r)
	if !ok {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.rejects) > 0 {
		rej := a.rejects[0]
		a.rejects = a.rejects[1:]
		reply(w, rej.status, rej.message, nil)
		return
	}

	a.nextID++
	rec.ID = fmt.Sprintf("story-%d", a.nextID)
	rec.Name = u.Name
	rec.CreatedAt = a.clock.Now()
	a.stories = append([]story.Record{rec}, a.stories...)
	reply(w, http.StatusCreated, "success", nil)
}

func (a *StoryAPI) update(w http.ResponseWriter, r *http.Request, _ apiUser) {
	rec, ok := parseStoryForm(w, r)
	if !ok {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	i := a.indexLocked(r.PathValue("id"))
	if i < 0 {
		reply(w, http.StatusNotFound, "Story not found", nil)
		return
	}
	cur := a.stories[i]
	cur.Description = rec.Description
	if rec.PhotoURL != "" {
		cur.PhotoURL = rec.PhotoURL
	}
	if rec.HasLocation() {
		cur.Lat, cur.Lon = rec.Lat, rec.Lon
	}
	a.stories[i] = cur
	reply(w, http.StatusOK, "Story updated", map[string]any{"story": cur})
}

func (a *StoryAPI) remove(w http.ResponseWriter, r *http.Request, _ apiUser) {
	a.mu.Lock()
	defer a.mu.Unlock()
	i := a.indexLocked(r.PathValue("id"))
	if i < 0 {
		reply(w, http.StatusNotFound, "Story not found", nil)
		return
	}
	a.stories = append(a.stories[:i], a.stories[i+1:]...)
	reply(w, http.StatusOK, "Story deleted", nil)
}

func (a *StoryAPI) indexLocked(id string) int {
	for i, s := range a.stories {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// parseStoryForm reads the multipart body shared by create and update.
func parseStoryForm(w http.ResponseWriter, r *http.Request) (story.Record, bool) {
	if err := r.ParseMultipartForm(2 << 20); err != nil {
		reply(w, http.StatusBadRequest, "invalid multipart body", nil)
		return story.Record{}, false
	}

	rec := story.Record{Description: r.FormValue("description")}
	if rec.Description == "" {
		reply(w, http.StatusBadRequest, `"description" is required`, nil)
		return story.Record{}, false
	}

	if f, hdr, err := r.FormFile("photo"); err == nil {
		n, _ := io.Copy(io.Discard, f)
		f.Close()
		if n > story.MaxPhotoBytes {
			reply(w, http.StatusRequestEntityTooLarge, "Payload content length greater than maximum allowed: 1000000", nil)
			return story.Record{}, false
		}
		rec.PhotoURL = "https://photos.example/" + hdr.Filename
	}

	if lat, lon := r.FormValue("lat"), r.FormValue("lon"); lat != "" && lon != "" {
		la, err1 := strconv.ParseFloat(lat, 64)
		lo, err2 := strconv.ParseFloat(lon, 64)
		if err1 != nil || err2 != nil {
			reply(w, http.StatusBadRequest, "invalid location", nil)
			return story.Record{}, false
		}
		rec.Lat, rec.Lon = &la, &lo
	}
	return rec, true
}

func reply(w http.ResponseWriter, status int, message string, extra map[string]any) {
	body := map[string]any{"error": status >= 400, "message": message}
	for k, v := range extra {
		body[k] = v
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func dropConnection(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	conn, _, err := hj.Hijack()
	if err == nil {
		conn.Close()
	}
}
