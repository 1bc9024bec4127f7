// Package worker runs background jobs keyed by owner so a newer job for the
// same key replaces the older one.
package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/charmbracelet/log"
)

// ErrClosed is returned by Submit after Shutdown
var ErrClosed = errors.New("worker pool closed")

// Job is a unit of background work. It must return when ctx is done.
type Job func(ctx context.Context)

type running struct {
	id     uint64
	cancel context.CancelFunc
}

// Pool runs at most one job per key and at most size jobs at once
type Pool struct {
	logger *log.Logger
	slots  chan struct{}

	mu     sync.Mutex
	jobs   map[string]running
	nextID uint64
	closed bool
	base   context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool creates a pool running up to size jobs concurrently
func NewPool(size int, logger *log.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	base, stop := context.WithCancel(context.Background())
	return &Pool{
		logger: logger,
		slots:  make(chan struct{}, size),
		jobs:   make(map[string]running),
		base:   base,
		stop:   stop,
	}
}

// Submit starts fn under key, cancelling any job already running for key
func (p *Pool) Submit(key string, fn Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	if prev, ok := p.jobs[key]; ok {
		prev.cancel()
		p.logger.Debug("replacing job", "key", key)
	}

	ctx, cancel := context.WithCancel(p.base)
	p.nextID++
	id := p.nextID
	p.jobs[key] = running{id: id, cancel: cancel}

	p.wg.Add(1)
	go p.run(ctx, key, id, fn)
	return nil
}

func (p *Pool) run(ctx context.Context, key string, id uint64, fn Job) {
	defer p.wg.Done()
	defer p.finish(key, id)

	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return
	}
	defer func() { <-p.slots }()

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("job panicked", "key", key, "panic", r)
		}
	}()
	fn(ctx)
}

// finish drops the bookkeeping for a job unless a newer one took its key
func (p *Pool) finish(key string, id uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cur, ok := p.jobs[key]; ok && cur.id == id {
		cur.cancel()
		delete(p.jobs, key)
	}
}

// Cancel stops the job running for key, if any
func (p *Pool) Cancel(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	cur, ok := p.jobs[key]
	if ok {
		cur.cancel()
		delete(p.jobs, key)
	}
	return ok
}

// Running reports whether a job is registered for key
func (p *Pool) Running(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.jobs[key]
	return ok
}

// Shutdown cancels every job and waits for them to return or ctx to end
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.stop()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		p.logger.Warn("worker pool shutdown timed out")
		return ctx.Err()
	}
}
