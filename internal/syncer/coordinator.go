package syncer

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/roach88/storysync/internal/story"
)

// Store is the slice of the local store the coordinator reads and writes.
// *store.Store satisfies it.
type Store interface {
	Put(ctx context.Context, r story.Record) error
	EnqueuePending(ctx context.Context, sub story.Submission) (story.Pending, error)
	ListUnsynced(ctx context.Context) ([]story.Pending, error)
	MarkSynced(ctx context.Context, localID string) (bool, error)
	PruneSynced(ctx context.Context) (int64, error)
}

// Gateway creates stories remotely. *gateway.Client satisfies it.
type Gateway interface {
	CreateStory(ctx context.Context, sub story.Submission) (*story.Record, error)
}

// Connectivity reports the cached online state. *connectivity.Monitor
// satisfies it.
type Connectivity interface {
	IsOnline() bool
}

// Outcome says where a submission ended up.
type Outcome int

const (
	// OutcomeSent means the API accepted the submission directly.
	OutcomeSent Outcome = iota + 1
	// OutcomeQueued means the submission was saved to the pending queue.
	OutcomeQueued
)

// String returns "sent" or "queued".
func (o Outcome) String() string {
	switch o {
	case OutcomeSent:
		return "sent"
	case OutcomeQueued:
		return "queued"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// SubmitResult describes one Submit call.
type SubmitResult struct {
	Outcome Outcome
	// Record is set for OutcomeSent when the API echoed the story.
	Record *story.Record
	// Pending is set for OutcomeQueued.
	Pending *story.Pending
	// Cause is the direct-send error that forced queuing, if any.
	Cause error
}

// DrainReport summarizes one pass over the pending queue.
type DrainReport struct {
	Attempted int `json:"attempted"`
	Synced    int `json:"synced"`
	Failed    int `json:"failed"`
	// Unmarked counts entries the API accepted but the store could not mark.
	// Each one will be sent again by the next drain.
	Unmarked int `json:"unmarked"`
	// Pruned counts synced entries deleted after the pass.
	Pruned int64 `json:"pruned"`
	// Interrupted is true when the context ended before the queue was done.
	Interrupted bool `json:"interrupted"`
}

// Coordinator decides between direct sends and queuing, and drains the
// queue when asked.
//
// Thread-safety: all methods are safe for concurrent use. Drains are
// serialized; a drain requested while another runs waits for it.
type Coordinator struct {
	store    Store
	gateway  Gateway
	conn     Connectivity
	notifier Notifier
	logger   *zap.Logger
	prune    bool

	drainMu sync.Mutex
	signal  chan struct{} // drain requests (buffered, size 1)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithNotifier sets where user-visible notices go. Default: discarded.
func WithNotifier(n Notifier) Option {
	return func(c *Coordinator) {
		c.notifier = n
	}
}

// WithLogger sets the logger. Default: no-op.
func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) {
		c.logger = l
	}
}

// WithPruneAfterDrain deletes synced entries at the end of every drain
// that synced something.
func WithPruneAfterDrain(on bool) Option {
	return func(c *Coordinator) {
		c.prune = on
	}
}

// New creates a coordinator.
func New(s Store, gw Gateway, conn Connectivity, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:    s,
		gateway:  gw,
		conn:     conn,
		notifier: discard{},
		logger:   zap.NewNop(),
		signal:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit sends sub directly when online, falling back to the pending queue
// when offline or when the direct attempt fails. Remote failures are never
// returned; store failures are.
func (c *Coordinator) Submit(ctx context.Context, sub story.Submission) (SubmitResult, error) {
	var cause error

	if c.conn.IsOnline() {
		rec, err := c.gateway.CreateStory(ctx, sub)
		if err == nil {
			c.cache(ctx, rec)
			c.notifier.Notify(NoticeSent{Record: rec})
			return SubmitResult{Outcome: OutcomeSent, Record: rec}, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return SubmitResult{}, fmt.Errorf("submit: %w", ctxErr)
		}
		c.logger.Warn("direct submit failed, queuing for later sync",
			zap.String("code", string(story.CodeOf(err))),
			zap.Error(err),
		)
		cause = err
	}

	p, err := c.store.EnqueuePending(ctx, sub)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("submit: %w", err)
	}

	c.logger.Info("story queued",
		zap.String("local_id", p.LocalID),
		zap.Int64("seq", p.Seq),
	)
	c.notifier.Notify(NoticeQueued{Pending: p, Cause: cause})
	return SubmitResult{Outcome: OutcomeQueued, Pending: &p, Cause: cause}, nil
}

// Drain sends every unsynced entry to the API, oldest first, marking each
// synced as soon as it is confirmed. Per-entry failures are logged and
// counted, never returned. Only a failure to read the queue is an error.
//
// If ctx ends mid-drain the pass stops before the next entry; what remains
// stays pending for the next drain.
func (c *Coordinator) Drain(ctx context.Context) (DrainReport, error) {
	c.drainMu.Lock()
	defer c.drainMu.Unlock()

	ctx, span := otel.Tracer("storysync/syncer").Start(ctx, "Coordinator.Drain")
	defer span.End()

	var report DrainReport

	pending, err := c.store.ListUnsynced(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list unsynced")
		return report, fmt.Errorf("drain: %w", err)
	}
	if len(pending) == 0 {
		return report, nil
	}

	c.logger.Info("drain starting", zap.Int("pending", len(pending)))

	for _, p := range pending {
		if ctx.Err() != nil {
			report.Interrupted = true
			c.logger.Info("drain interrupted", zap.Int("remaining", len(pending)-report.Attempted))
			break
		}
		report.Attempted++

		rec, err := c.gateway.CreateStory(ctx, p.Submission())
		if err != nil {
			report.Failed++
			c.logger.Warn("sync failed, entry stays pending",
				zap.String("local_id", p.LocalID),
				zap.Int64("seq", p.Seq),
				zap.String("code", string(story.CodeOf(err))),
				zap.Error(err),
			)
			continue
		}

		found, err := c.store.MarkSynced(ctx, p.LocalID)
		if err != nil {
			report.Unmarked++
			c.logger.Error("entry accepted remotely but not marked synced, next drain may duplicate it",
				zap.String("local_id", p.LocalID),
				zap.Int64("seq", p.Seq),
				zap.Error(err),
			)
			continue
		}
		if !found {
			c.logger.Warn("synced entry was deleted during drain", zap.String("local_id", p.LocalID))
		}
		report.Synced++
		c.cache(ctx, rec)
	}

	if report.Synced > 0 {
		c.notifier.Notify(NoticeSynced{Count: report.Synced})

		if c.prune {
			n, err := c.store.PruneSynced(ctx)
			if err != nil {
				c.logger.Warn("prune after drain failed", zap.Error(err))
			} else {
				report.Pruned = n
			}
		}
	}

	span.SetAttributes(
		attribute.Int("drain.attempted", report.Attempted),
		attribute.Int("drain.synced", report.Synced),
		attribute.Int("drain.failed", report.Failed),
		attribute.Bool("drain.interrupted", report.Interrupted),
	)
	c.logger.Info("drain finished",
		zap.Int("attempted", report.Attempted),
		zap.Int("synced", report.Synced),
		zap.Int("failed", report.Failed),
		zap.Int("unmarked", report.Unmarked),
	)
	return report, nil
}

// Trigger requests a drain from Run. Never blocks; requests made while one
// is already waiting are coalesced.
func (c *Coordinator) Trigger() {
	select {
	case c.signal <- struct{}{}:
	default:
	}
}

// Run drains once at start when online (catch-up for entries left by an
// earlier session), then once per Trigger while online, until ctx ends.
func (c *Coordinator) Run(ctx context.Context) error {
	c.logger.Info("coordinator starting")

	if c.conn.IsOnline() {
		// The catch-up drain covers any trigger raised before Run started.
		c.clearSignal()
		c.runDrain(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("coordinator stopping: context cancelled")
			return ctx.Err()

		case <-c.signal:
			if !c.conn.IsOnline() {
				c.logger.Debug("drain requested while offline, skipping")
				continue
			}
			c.runDrain(ctx)
		}
	}
}

func (c *Coordinator) clearSignal() {
	select {
	case <-c.signal:
	default:
	}
}

func (c *Coordinator) runDrain(ctx context.Context) {
	if _, err := c.Drain(ctx); err != nil {
		c.logger.Error("drain failed", zap.Error(err))
	}
}

// cache stores a record the API echoed. Failure only costs a stale cache.
func (c *Coordinator) cache(ctx context.Context, rec *story.Record) {
	if rec == nil || rec.ID == "" {
		return
	}
	if err := c.store.Put(ctx, *rec); err != nil {
		c.logger.Warn("caching created story failed", zap.String("id", rec.ID), zap.Error(err))
	}
}
