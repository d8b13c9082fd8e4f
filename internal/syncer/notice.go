package syncer

import (
	"sync"

	"github.com/roach88/storysync/internal/story"
)

// Notice is a user-visible sync event. The set of variants is closed.
type Notice interface {
	notice()
}

// NoticeSent reports a submission that reached the API directly.
type NoticeSent struct {
	// Record is the created story when the API echoed it, nil otherwise.
	Record *story.Record
}

// NoticeQueued reports a submission saved offline for a later drain.
type NoticeQueued struct {
	Pending story.Pending
	// Cause is the direct-send failure that forced queuing, nil when the
	// device was offline.
	Cause error
}

// NoticeSynced reports a background drain that confirmed Count entries.
// Never emitted with Count == 0.
type NoticeSynced struct {
	Count int
}

func (NoticeSent) notice()   {}
func (NoticeQueued) notice() {}
func (NoticeSynced) notice() {}

// Notifier receives notices. Implementations must not block.
type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

// Notify calls f(n).
func (f NotifierFunc) Notify(n Notice) { f(n) }

type discard struct{}

func (discard) Notify(Notice) {}

// Recorder keeps every notice in arrival order.
//
// Thread-safety: safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

// Notify appends n.
func (r *Recorder) Notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

// Notices returns a copy of everything recorded so far.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notice, len(r.notices))
	copy(out, r.notices)
	return out
}

// Reset drops everything recorded.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = nil
}
