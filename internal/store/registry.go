package store

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Registry hands out one shared Store per database path.
//
// Concurrent Acquire calls for a path that is not open yet are collapsed
// into a single Open, so every caller ends up with the same usable handle
// and schema setup never races against itself in-process.
type Registry struct {
	opts []Option

	mu     sync.Mutex
	stores map[string]*Store
	group  singleflight.Group
}

// NewRegistry creates a registry that opens stores with opts.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{
		opts:   opts,
		stores: make(map[string]*Store),
	}
}

// Acquire returns the shared store for path, opening it on first use.
// Open failures are not cached; the next Acquire tries again.
func (r *Registry) Acquire(ctx context.Context, path string) (*Store, error) {
	if s := r.lookup(path); s != nil {
		return s, nil
	}

	ch := r.group.DoChan(path, func() (any, error) {
		if s := r.lookup(path); s != nil {
			return s, nil
		}
		s, err := Open(path, r.opts...)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.stores[path] = s
		r.mu.Unlock()
		return s, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Store), nil
	}
}

// Close closes every store opened through the registry.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for path, s := range r.stores {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(r.stores, path)
	}
	return errors.Join(errs...)
}

func (r *Registry) lookup(path string) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stores[path]
}
