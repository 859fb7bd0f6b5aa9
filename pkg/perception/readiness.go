package perception

import (
	"context"
	"fmt"
	"sync"
)

// Readiness is a one-shot signal that resolves once model loading finishes,
// either successfully or with a ModelLoadFailure. It never resets.
type Readiness struct {
	mu   sync.RWMutex
	done chan struct{}
	set  bool
	err  error
}

// NewReadiness creates an unresolved readiness signal.
func NewReadiness() *Readiness {
	return &Readiness{done: make(chan struct{})}
}

// MarkReady resolves the signal as ready. Later calls are ignored.
func (r *Readiness) MarkReady() {
	r.resolve(nil)
}

// MarkFailed resolves the signal as failed. err is wrapped in ErrModelLoad.
// Later calls are ignored.
func (r *Readiness) MarkFailed(err error) {
	if err == nil {
		err = ErrModelLoad
	}
	r.resolve(fmt.Errorf("%w: %v", ErrModelLoad, err))
}

func (r *Readiness) resolve(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.set {
		return
	}
	r.set = true
	r.err = err
	close(r.done)
}

// Ready reports whether models loaded successfully.
func (r *Readiness) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.set && r.err == nil
}

// Err returns the load failure, or nil while pending or after success.
func (r *Readiness) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}

// Resolved reports whether loading has finished either way.
func (r *Readiness) Resolved() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.set
}

// Done is closed once the signal resolves.
func (r *Readiness) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the signal resolves or ctx is done.
func (r *Readiness) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LoadAsync runs load in a goroutine and resolves the returned Readiness
// with its outcome. Panics inside load are reported as load failures.
func LoadAsync(ctx context.Context, load func(ctx context.Context) error) *Readiness {
	r := NewReadiness()
	go func() {
		defer func() {
			if p := recover(); p != nil {
				r.MarkFailed(fmt.Errorf("panic: %v", p))
			}
		}()
		if err := load(ctx); err != nil {
			r.MarkFailed(err)
			return
		}
		r.MarkReady()
	}()
	return r
}
