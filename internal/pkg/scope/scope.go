// Package scope runs provider work off the interactive goroutine.
//
// A Scope is a process-wide task scope: tasks started with Go share its root
// context and a global concurrency limit, and Close cancels the context and
// waits for every task to return. Results come back as a Future, and
// observers are run on a Dispatcher so that all UI-visible updates happen on
// one goroutine.
package scope

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	apperrors "github.com/aicommits/aicommits/internal/pkg/errors"
)

// DefaultConcurrency bounds the number of tasks running at once.
const DefaultConcurrency = 4

// ErrClosed is the error of tasks started after Close.
var ErrClosed = fmt.Errorf("task scope is closed")

// Scope owns a root context and the tasks started on it.
type Scope struct {
	ctx    context.Context
	cancel context.CancelFunc
	sem    *semaphore.Weighted
	wg     sync.WaitGroup

	// mu orders wg.Add in Go against Close.
	mu     sync.Mutex
	closed bool
}

// New creates a scope derived from parent allowing maxConcurrent tasks to
// run simultaneously. Non-positive values select DefaultConcurrency.
func New(parent context.Context, maxConcurrent int64) *Scope {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultConcurrency
	}
	ctx, cancel := context.WithCancel(parent)
	return &Scope{
		ctx:    ctx,
		cancel: cancel,
		sem:    semaphore.NewWeighted(maxConcurrent),
	}
}

// Context returns the root context of the scope.
func (s *Scope) Context() context.Context {
	return s.ctx
}

// Wait blocks until every started task has finished.
func (s *Scope) Wait() {
	s.wg.Wait()
}

// Close cancels the root context and waits for running tasks.
func (s *Scope) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}

// Future is the eventual result of a task.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func (f *Future[T]) resolve(v T, err error) {
	f.value, f.err = v, err
	close(f.done)
}

// Resolved returns a future that is already complete.
func Resolved[T any](v T, err error) *Future[T] {
	f := newFuture[T]()
	f.resolve(v, err)
	return f
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the task finished and returns its result.
func (f *Future[T]) Wait() (T, error) {
	<-f.done
	return f.value, f.err
}

// WaitContext is Wait bounded by ctx.
func (f *Future[T]) WaitContext(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Then runs fn on d once the result is available.
func (f *Future[T]) Then(d Dispatcher, fn func(T, error)) {
	go func() {
		<-f.done
		d.Dispatch(func() { fn(f.value, f.err) })
	}()
}

// Go starts fn on the scope and returns its future. It never blocks the
// caller: waiting for a concurrency slot happens on the task goroutine. A
// panic inside fn resolves the future with an error instead of crashing the
// process.
func Go[T any](s *Scope, fn func(ctx context.Context) (T, error)) *Future[T] {
	f := newFuture[T]()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		var zero T
		f.resolve(zero, ErrClosed)
		return f
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()

		var (
			value T
			err   error
		)
		defer func() {
			if r := recover(); r != nil {
				apperrors.Error("task panicked: %v", r)
				var zero T
				value, err = zero, fmt.Errorf("task panicked: %v", r)
			}
			f.resolve(value, err)
		}()

		if acqErr := s.sem.Acquire(s.ctx, 1); acqErr != nil {
			err = acqErr
			return
		}
		defer s.sem.Release(1)

		value, err = fn(s.ctx)
	}()
	return f
}
