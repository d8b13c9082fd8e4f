// Package app is the application context: it owns every long-lived
// component and is the only way commands reach them.
//
// A process builds one App with New, runs commands through Execute, and
// tears it down with Close. Nothing is global.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/storysync/internal/config"
	"github.com/roach88/storysync/internal/connectivity"
	"github.com/roach88/storysync/internal/gateway"
	"github.com/roach88/storysync/internal/session"
	"github.com/roach88/storysync/internal/store"
	"github.com/roach88/storysync/internal/syncer"
)

// ErrOffline is returned by commands that need the API while the monitor
// reports offline.
var ErrOffline = errors.New("offline: the Story API is not reachable")

// App wires the store, session, gateway, monitor and coordinator together.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	store     *store.Store
	ownsStore bool

	session     *session.Manager
	gateway     *gateway.Client
	monitor     *connectivity.Monitor
	prober      *connectivity.Prober
	coordinator *syncer.Coordinator
}

type options struct {
	logger   *zap.Logger
	notifier syncer.Notifier
	registry *store.Registry
	storeOps []store.Option
}

// Option configures New.
type Option func(*options)

// WithLogger sets the logger shared by every component. Default: no-op.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithNotifier sets where sync notices go. Default: discarded.
func WithNotifier(n syncer.Notifier) Option {
	return func(o *options) {
		o.notifier = n
	}
}

// WithRegistry takes the store from a shared registry instead of opening a
// private handle. The registry keeps ownership; Close leaves it open.
func WithRegistry(r *store.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithStoreOptions passes options to store.Open. Ignored with WithRegistry,
// which carries its own.
func WithStoreOptions(opts ...store.Option) Option {
	return func(o *options) {
		o.storeOps = append(o.storeOps, opts...)
	}
}

// New builds the application context. Unless cfg.Offline is set it probes
// the API once so the first command sees a real connectivity state.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{cfg: cfg, logger: o.logger}

	if err := a.openStore(ctx, o); err != nil {
		return nil, err
	}

	a.session = session.NewManager(a.store)
	if _, err := a.session.Load(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.gateway = gateway.New(cfg.APIURL,
		gateway.WithHTTPClient(&http.Client{
			Timeout:   cfg.RequestTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}),
		gateway.WithTokenSource(a.session),
		gateway.WithLogger(o.logger.Named("gateway")),
	)

	a.monitor = connectivity.NewMonitor(false, connectivity.WithMonitorLogger(o.logger.Named("connectivity")))
	a.prober = connectivity.NewProber(a.monitor, cfg.APIURL,
		connectivity.WithInterval(cfg.ProbeInterval),
		connectivity.WithTimeout(cfg.ProbeTimeout),
		connectivity.WithProberLogger(o.logger.Named("prober")),
	)

	coordOpts := []syncer.Option{
		syncer.WithLogger(o.logger.Named("sync")),
		syncer.WithPruneAfterDrain(cfg.PruneSynced),
	}
	if o.notifier != nil {
		coordOpts = append(coordOpts, syncer.WithNotifier(o.notifier))
	}
	a.coordinator = syncer.New(a.store, a.gateway, a.monitor, coordOpts...)

	// The first probe only establishes the starting state. Catching up on
	// entries left from an earlier session is Run's job, not a reconnect.
	if !cfg.Offline {
		a.prober.Check(ctx)
	}
	a.monitor.SetReconnectHook(a.coordinator.Trigger)

	a.logger.Debug("app ready",
		zap.String("api", cfg.APIURL),
		zap.String("db", a.store.Path()),
		zap.Bool("online", a.monitor.IsOnline()),
	)
	return a, nil
}

func (a *App) openStore(ctx context.Context, o options) error {
	if dir := filepath.Dir(a.cfg.DBPath); dir != "." && a.cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}

	if o.registry != nil {
		s, err := o.registry.Acquire(ctx, a.cfg.DBPath)
		if err != nil {
			return err
		}
		a.store = s
		return nil
	}

	storeOpts := append([]store.Option{store.WithLogger(o.logger.Named("store"))}, o.storeOps...)
	s, err := store.Open(a.cfg.DBPath, storeOpts...)
	if err != nil {
		return err
	}
	a.store = s
	a.ownsStore = true
	return nil
}

// Run keeps the app alive as a background syncer: it probes connectivity
// and drains the queue on every reconnect until ctx ends. Returns nil on
// cancellation.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if !a.cfg.Offline {
		g.Go(func() error {
			return a.prober.Run(gctx)
		})
	}
	g.Go(func() error {
		return a.coordinator.Run(gctx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// Close releases the store if the app opened it. Safe to call twice.
func (a *App) Close() error {
	if a.store == nil || !a.ownsStore {
		return nil
	}
	return a.store.Close()
}

// Config returns the configuration the app was built with.
func (a *App) Config() config.Config { return a.cfg }

// Online reports the monitor's cached state.
func (a *App) Online() bool { return a.monitor.IsOnline() }

// Monitor exposes the connectivity monitor, e.g. for subscriptions.
func (a *App) Monitor() *connectivity.Monitor { return a.monitor }

// Coordinator exposes the sync coordinator.
func (a *App) Coordinator() *syncer.Coordinator { return a.coordinator }

// Store exposes the local store.
func (a *App) Store() *store.Store { return a.store }
