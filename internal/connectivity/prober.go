package connectivity

import (
	"context"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// Default probe timings.
const (
	DefaultProbeInterval = 30 * time.Second
	DefaultProbeTimeout  = 5 * time.Second
	DefaultMaxBackoff    = 2 * time.Minute
)

// Prober turns reachability of the API into Monitor signals.
//
// Any HTTP response, whatever its status, counts as online. Only a request
// that gets no answer within the timeout counts as offline.
type Prober struct {
	monitor    *Monitor
	target     string
	client     *http.Client
	interval   time.Duration
	timeout    time.Duration
	maxBackoff time.Duration
	logger     *zap.Logger
}

// ProberOption configures a Prober.
type ProberOption func(*Prober)

// WithInterval sets the delay between probes while online.
func WithInterval(d time.Duration) ProberOption {
	return func(p *Prober) {
		p.interval = d
	}
}

// WithTimeout sets the per-probe timeout.
func WithTimeout(d time.Duration) ProberOption {
	return func(p *Prober) {
		p.timeout = d
	}
}

// WithMaxBackoff caps the delay between probes while offline.
func WithMaxBackoff(d time.Duration) ProberOption {
	return func(p *Prober) {
		p.maxBackoff = d
	}
}

// WithProbeClient replaces the HTTP client used for probes.
func WithProbeClient(c *http.Client) ProberOption {
	return func(p *Prober) {
		p.client = c
	}
}

// WithProberLogger sets the logger. Default: no-op.
func WithProberLogger(l *zap.Logger) ProberOption {
	return func(p *Prober) {
		p.logger = l
	}
}

// NewProber creates a prober that checks target and reports to monitor.
func NewProber(monitor *Monitor, target string, opts ...ProberOption) *Prober {
	p := &Prober{
		monitor:    monitor,
		target:     target,
		client:     &http.Client{},
		interval:   DefaultProbeInterval,
		timeout:    DefaultProbeTimeout,
		maxBackoff: DefaultMaxBackoff,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe checks reachability once without touching the monitor.
func (p *Prober) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.target, nil)
	if err != nil {
		p.logger.Warn("probe request invalid", zap.String("target", p.target), zap.Error(err))
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Debug("probe failed", zap.String("target", p.target), zap.Error(err))
		return false
	}
	resp.Body.Close()
	return true
}

// Check probes once and feeds the result to the monitor.
// Returns the probed state.
func (p *Prober) Check(ctx context.Context) bool {
	online := p.Probe(ctx)
	if ctx.Err() != nil {
		// A probe cut short by shutdown says nothing about the network.
		return p.monitor.IsOnline()
	}
	p.monitor.Set(online)
	return online
}

// Run probes until ctx is cancelled. While online it waits the fixed
// interval between probes; while offline the wait grows exponentially up to
// the configured maximum and resets on reconnect.
func (p *Prober) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = p.maxBackoff
	if b.MaxInterval < b.InitialInterval {
		b.InitialInterval = b.MaxInterval
	}

	p.logger.Info("prober starting", zap.String("target", p.target))

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("prober stopping: context cancelled")
			return ctx.Err()
		case <-timer.C:
		}

		var wait time.Duration
		if p.Check(ctx) {
			b.Reset()
			wait = p.interval
		} else {
			wait = b.NextBackOff()
			if wait <= 0 {
				wait = p.maxBackoff
			}
		}
		timer.Reset(wait)
	}
}
