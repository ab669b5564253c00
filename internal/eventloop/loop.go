// Package eventloop runs posted functions one at a time on a single
// goroutine. Every piece of bridge state is touched only from inside the
// loop, so none of it needs locking.
package eventloop

import (
	"context"
	"errors"
	"sync"
)

// ErrStopped is returned when posting to a loop that is no longer running.
var ErrStopped = errors.New("event loop stopped")

// DefaultQueueSize is used when New is given a size below 1.
const DefaultQueueSize = 1024

// Loop is a FIFO of functions executed by Run.
type Loop struct {
	queue    chan func()
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a loop buffering up to size pending functions.
func New(size int) *Loop {
	if size < 1 {
		size = DefaultQueueSize
	}
	return &Loop{
		queue: make(chan func(), size),
		done:  make(chan struct{}),
	}
}

// Post enqueues fn, waiting for room if the queue is full.
func (l *Loop) Post(ctx context.Context, fn func()) error {
	select {
	case <-l.done:
		return ErrStopped
	default:
	}
	select {
	case l.queue <- fn:
		return nil
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryPost enqueues fn only if there is room right now.
func (l *Loop) TryPost(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.queue <- fn:
		return true
	default:
		return false
	}
}

// Do posts fn and waits until it has run.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	if err := l.Post(ctx, func() {
		defer close(ran)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-ran:
		return nil
	case <-l.done:
		// Run drains the queue before closing done.
		select {
		case <-ran:
			return nil
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes posted functions until ctx is done, then runs whatever is
// already queued and returns. A loop runs at most once.
func (l *Loop) Run(ctx context.Context) error {
	defer l.stop()
	for {
		select {
		case fn := <-l.queue:
			fn()
		case <-ctx.Done():
			l.drain()
			return nil
		}
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Pending returns the number of queued functions.
func (l *Loop) Pending() int {
	return len(l.queue)
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

func (l *Loop) stop() {
	l.stopOnce.Do(func() { close(l.done) })
}
