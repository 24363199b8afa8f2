package engine

import (
	"context"
	"sync"
)

// Loop is a single cooperative event loop. Every task posted to it runs on
// one goroutine in posting order, so code executed on the loop never races
// with itself and needs no locking.
type Loop struct {
	tasks chan func()
	done  chan struct{}
	once  sync.Once
}

// NewLoop returns a loop whose queue holds up to buffer pending tasks.
func NewLoop(buffer int) *Loop {
	if buffer <= 0 {
		buffer = 256
	}
	return &Loop{
		tasks: make(chan func(), buffer),
		done:  make(chan struct{}),
	}
}

// Post enqueues fn. It is safe to call from any goroutine. Tasks posted after
// Close are dropped.
func (l *Loop) Post(fn func()) {
	select {
	case <-l.done:
		return
	default:
	}
	select {
	case l.tasks <- fn:
	case <-l.done:
	}
}

// Run executes tasks until ctx is cancelled or the loop is closed.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case fn := <-l.tasks:
			fn()
		case <-l.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunPending executes every task currently queued on the calling goroutine
// and returns how many ran. It must not be used while Run is active.
func (l *Loop) RunPending() int {
	n := 0
	for {
		select {
		case fn := <-l.tasks:
			fn()
			n++
		default:
			return n
		}
	}
}

// Close stops the loop. Queued tasks are discarded.
func (l *Loop) Close() {
	l.once.Do(func() { close(l.done) })
}
