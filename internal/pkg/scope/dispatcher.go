package scope

import (
	"context"
	"sync"
)

// Dispatcher decides where observer callbacks run.
type Dispatcher interface {
	Dispatch(fn func())
}

// Immediate runs callbacks on the goroutine that completed the task.
type Immediate struct{}

// Dispatch runs fn inline.
func (Immediate) Dispatch(fn func()) {
	fn()
}

// Loop runs callbacks one at a time, in submission order, on the goroutine
// that called Run. It plays the part of a UI thread.
type Loop struct {
	queue chan func()

	mu      sync.Mutex
	stopped bool
	stop    chan struct{}
	done    chan struct{}
}

// NewLoop creates a loop buffering up to size pending callbacks.
func NewLoop(size int) *Loop {
	if size <= 0 {
		size = 64
	}
	return &Loop{
		queue: make(chan func(), size),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Dispatch queues fn. Callbacks submitted after Stop are dropped.
func (l *Loop) Dispatch(fn func()) {
	l.mu.Lock()
	stopped := l.stopped
	l.mu.Unlock()
	if stopped {
		return
	}

	select {
	case l.queue <- fn:
	case <-l.stop:
	}
}

// Run processes callbacks until Stop is called or ctx is done. Callbacks
// already queued when Stop is called still run.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case fn := <-l.queue:
			fn()
		case <-l.stop:
			l.drain()
			return
		case <-ctx.Done():
			return
		}
	}
}

func (l *Loop) drain() {
	for {
		select {
		case fn := <-l.queue:
			fn()
		default:
			return
		}
	}
}

// Stop ends Run after the queued callbacks and waits for it to return.
// It must only be called while Run is running or after it was started.
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		<-l.done
		return
	}
	l.stopped = true
	close(l.stop)
	l.mu.Unlock()
	<-l.done
}
