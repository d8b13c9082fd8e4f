package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/storysync/internal/story"
)

// ErrSimulatedNetwork is the cause carried by scripted network failures.
var ErrSimulatedNetwork = errors.New("simulated network failure")

// NetworkDown returns a retryable transport error as the real gateway would.
func NetworkDown() error {
	return story.NetworkUnreachable("create story", ErrSimulatedNetwork)
}

// Rejected returns a retryable server rejection as the real gateway would.
func Rejected(status int, message string) error {
	return story.RemoteRejected("create story", status, message)
}

// FakeGateway is an in-memory story creator that records every call.
//
// Failures are scripted two ways: FailNext queues results for the next
// calls in order, and FailOn fails every attempt for one description until
// cleared. Queued results take precedence.
//
// Thread-safety: All methods are safe for concurrent use.
type FakeGateway struct {
	mu       sync.Mutex
	calls    []story.Submission
	created  []story.Record
	next     []error
	failOn   map[string]error
	echo     bool
	idPrefix string

	// BeforeCreate, when set, runs at the start of every call with the
	// 1-based call number. Used to change the world mid-drain.
	BeforeCreate func(call int, sub story.Submission)
}

// NewFakeGateway creates a gateway where every call succeeds.
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		failOn:   make(map[string]error),
		idPrefix: "story",
	}
}

// EchoRecords makes successful calls return the created record, the way
// some API versions do. By default CreateStory returns nil.
func (g *FakeGateway) EchoRecords(on bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.echo = on
}

// FailNext scripts the results of the next len(errs) calls. A nil entry
// means that call succeeds.
func (g *FakeGateway) FailNext(errs ...error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next = append(g.next, errs...)
}

// FailOn makes every attempt with this description fail with err.
// Pass a nil err to clear.
func (g *FakeGateway) FailOn(description string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err == nil {
		delete(g.failOn, description)
		return
	}
	g.failOn[description] = err
}

// CreateStory records the call and returns the scripted outcome.
func (g *FakeGateway) CreateStory(ctx context.Context, sub story.Submission) (*story.Record, error) {
	g.mu.Lock()
	g.calls = append(g.calls, sub)
	call := len(g.calls)
	hook := g.BeforeCreate
	g.mu.Unlock()

	if hook != nil {
		hook(call, sub)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	var err error
	if len(g.next) > 0 {
		err = g.next[0]
		g.next = g.next[1:]
	} else if e, ok := g.failOn[sub.Description]; ok {
		err = e
	}
	if err != nil {
		return nil, err
	}

	rec := story.Record{
		ID:          fmt.Sprintf("%s-%d", g.idPrefix, len(g.created)+1),
		Name:        "tester",
		Description: sub.Description,
		Lat:         sub.Lat,
		Lon:         sub.Lon,
	}
	g.created = append(g.created, rec)
	if !g.echo {
		return nil, nil
	}
	return &rec, nil
}

// Calls returns the descriptions of every attempted create, in call order.
func (g *FakeGateway) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.calls))
	for i, c := range g.calls {
		out[i] = c.Description
	}
	return out
}

// Submissions returns every attempted submission, in call order.
func (g *FakeGateway) Submissions() []story.Submission {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]story.Submission, len(g.calls))
	copy(out, g.calls)
	return out
}

// Created returns the records the fake accepted, in acceptance order.
func (g *FakeGateway) Created() []story.Record {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]story.Record, len(g.created))
	copy(out, g.created)
	return out
}
