package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/storysync/internal/gateway"
	"github.com/roach88/storysync/internal/session"
	"github.com/roach88/storysync/internal/store"
	"github.com/roach88/storysync/internal/story"
	"github.com/roach88/storysync/internal/syncer"
)

// Command is a request the presentation layer can make, typed by its
// result. The set of commands is closed: only this package implements it.
type Command[R any] interface {
	execute(ctx context.Context, a *App) (R, error)
}

// Execute runs cmd against a.
func Execute[R any](ctx context.Context, a *App, cmd Command[R]) (R, error) {
	a.logger.Debug("executing command", zap.String("command", fmt.Sprintf("%T", cmd)))
	return cmd.execute(ctx, a)
}

// Done is the result of commands that only succeed or fail.
type Done struct{}

// Register creates an account. It does not log in.
type Register struct {
	Name     string
	Email    string
	Password string
}

func (c Register) execute(ctx context.Context, a *App) (Done, error) {
	if err := a.requireOnline(); err != nil {
		return Done{}, fmt.Errorf("register: %w", err)
	}
	err := a.gateway.Register(ctx, gateway.RegisterRequest{Name: c.Name, Email: c.Email, Password: c.Password})
	return Done{}, err
}

// Login exchanges credentials for a token and persists the session.
type Login struct {
	Email    string
	Password string
}

func (c Login) execute(ctx context.Context, a *App) (session.Session, error) {
	if err := a.requireOnline(); err != nil {
		return session.Session{}, fmt.Errorf("login: %w", err)
	}
	res, err := a.gateway.Login(ctx, c.Email, c.Password)
	if err != nil {
		return session.Session{}, err
	}
	s := session.Session{UserID: res.UserID, Name: res.Name, Token: res.Token}
	if err := a.session.Save(ctx, s); err != nil {
		return session.Session{}, err
	}
	return s, nil
}

// Logout forgets the session. Pending stories stay queued.
type Logout struct{}

func (Logout) execute(ctx context.Context, a *App) (Done, error) {
	return Done{}, a.session.Clear(ctx)
}

// WhoAmI returns the current session; empty when logged out.
type WhoAmI struct{}

func (WhoAmI) execute(_ context.Context, a *App) (session.Session, error) {
	return a.session.Current(), nil
}

// SubmitStory validates and submits a story, sending it now when online
// and queuing it otherwise.
type SubmitStory struct {
	Submission story.Submission
}

func (c SubmitStory) execute(ctx context.Context, a *App) (syncer.SubmitResult, error) {
	if err := c.Submission.Validate(); err != nil {
		return syncer.SubmitResult{}, err
	}
	return a.coordinator.Submit(ctx, c.Submission)
}

// RefreshStories fetches a page of stories and caches them.
type RefreshStories struct {
	Page         int
	Size         int
	WithLocation bool
}

// RefreshResult reports what a refresh fetched.
type RefreshResult struct {
	Fetched int `json:"fetched"`
}

func (c RefreshStories) execute(ctx context.Context, a *App) (RefreshResult, error) {
	if err := a.requireOnline(); err != nil {
		return RefreshResult{}, fmt.Errorf("refresh: %w", err)
	}
	records, err := a.gateway.ListStories(ctx, gateway.ListOptions{Page: c.Page, Size: c.Size, WithLocation: c.WithLocation})
	if err != nil {
		return RefreshResult{}, err
	}
	if err := a.store.PutAll(ctx, records); err != nil {
		return RefreshResult{}, err
	}
	return RefreshResult{Fetched: len(records)}, nil
}

// ListStories queries the local cache. Query matches name or description;
// zero From/To leave the date range open; the default order is newest first.
type ListStories struct {
	Query     string
	From      time.Time
	To        time.Time
	SortBy    store.SortField
	Ascending bool
}

func (c ListStories) execute(ctx context.Context, a *App) ([]story.Record, error) {
	records, err := a.store.Search(ctx, c.Query)
	if err != nil {
		return nil, err
	}
	if records, err = store.FilterRecordsByDate(records, c.From, c.To); err != nil {
		return nil, err
	}

	field := c.SortBy
	if field == "" {
		field = store.SortByCreatedAt
	}
	if err := store.SortRecords(records, field, c.Ascending); err != nil {
		return nil, err
	}
	return records, nil
}

// ShowStory fetches one story, from the API when online and from the cache
// otherwise. A missing story is not an error.
type ShowStory struct {
	ID string
}

// StoryView is one story and where it came from.
type StoryView struct {
	Record story.Record `json:"story"`
	Found  bool         `json:"found"`
	Source string       `json:"source"` // "remote" or "cache"
}

func (c ShowStory) execute(ctx context.Context, a *App) (StoryView, error) {
	if a.monitor.IsOnline() {
		rec, err := a.gateway.GetStory(ctx, c.ID)
		if err == nil {
			if err := a.store.Put(ctx, rec); err != nil {
				return StoryView{}, err
			}
			return StoryView{Record: rec, Found: true, Source: "remote"}, nil
		}
		a.logger.Debug("remote fetch failed, using cache", zap.String("id", c.ID), zap.Error(err))
	}

	rec, found, err := a.store.Get(ctx, c.ID)
	if err != nil {
		return StoryView{}, err
	}
	return StoryView{Record: rec, Found: found, Source: "cache"}, nil
}

// UpdateStory replaces a story on the server and refreshes its cache entry.
type UpdateStory struct {
	ID         string
	Submission story.Submission
}

func (c UpdateStory) execute(ctx context.Context, a *App) (story.Record, error) {
	if err := c.Submission.Validate(); err != nil {
		return story.Record{}, err
	}
	if err := a.requireOnline(); err != nil {
		return story.Record{}, fmt.Errorf("update: %w", err)
	}

	echoed, err := a.gateway.UpdateStory(ctx, c.ID, c.Submission)
	if err != nil {
		return story.Record{}, err
	}

	var rec story.Record
	if echoed != nil {
		rec = *echoed
	} else if rec, err = a.gateway.GetStory(ctx, c.ID); err != nil {
		return story.Record{}, err
	}
	if err := a.store.Put(ctx, rec); err != nil {
		return story.Record{}, err
	}
	return rec, nil
}

// DeleteStory removes a story on the server, then from the cache.
type DeleteStory struct {
	ID string
}

func (c DeleteStory) execute(ctx context.Context, a *App) (Done, error) {
	if err := a.requireOnline(); err != nil {
		return Done{}, fmt.Errorf("delete: %w", err)
	}
	if err := a.gateway.DeleteStory(ctx, c.ID); err != nil {
		return Done{}, err
	}
	return Done{}, a.store.Delete(ctx, c.ID)
}

// ListPending lists queued submissions in queue order.
type ListPending struct {
	IncludeSynced bool
}

func (c ListPending) execute(ctx context.Context, a *App) ([]story.Pending, error) {
	if c.IncludeSynced {
		return a.store.ListPending(ctx)
	}
	return a.store.ListUnsynced(ctx)
}

// DeletePending drops one queued submission. Deleting a missing entry is
// not an error.
type DeletePending struct {
	LocalID string
}

func (c DeletePending) execute(ctx context.Context, a *App) (Done, error) {
	return Done{}, a.store.DeletePending(ctx, c.LocalID)
}

// PrunePending deletes every entry already confirmed by the server and
// returns how many were removed.
type PrunePending struct{}

func (PrunePending) execute(ctx context.Context, a *App) (int64, error) {
	return a.store.PruneSynced(ctx)
}

// SyncNow drains the queue immediately.
type SyncNow struct{}

func (SyncNow) execute(ctx context.Context, a *App) (syncer.DrainReport, error) {
	if err := a.requireOnline(); err != nil {
		return syncer.DrainReport{}, fmt.Errorf("sync: %w", err)
	}
	return a.coordinator.Drain(ctx)
}

// Status summarizes the local state.
type Status struct{}

// StatusReport is the result of Status.
type StatusReport struct {
	Online   bool   `json:"online"`
	APIURL   string `json:"apiUrl"`
	Database string `json:"database"`
	User     string `json:"user,omitempty"`
	Pending  int    `json:"pending"`
	Cached   int    `json:"cached"`
}

func (Status) execute(ctx context.Context, a *App) (StatusReport, error) {
	pending, err := a.store.CountUnsynced(ctx)
	if err != nil {
		return StatusReport{}, err
	}
	cached, err := a.store.GetAll(ctx)
	if err != nil {
		return StatusReport{}, err
	}
	return StatusReport{
		Online:   a.monitor.IsOnline(),
		APIURL:   a.cfg.APIURL,
		Database: a.store.Path(),
		User:     a.session.Current().Name,
		Pending:  pending,
		Cached:   len(cached),
	}, nil
}

func (a *App) requireOnline() error {
	if !a.monitor.IsOnline() {
		return ErrOffline
	}
	return nil
}
