package addons

import (
	"context"
	"sync"
	"sync/atomic"
)

// Scheduler runs functions on the goroutine that owns the tree. Tree state is
// not locked; every mutation coming from a background goroutine is posted.
type Scheduler interface {
	Post(fn func())
}

// LoopScheduler is a Scheduler backed by a single goroutine draining an
// unbounded FIFO queue.
type LoopScheduler struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
	done   chan struct{}
}

// NewLoopScheduler starts the loop goroutine
func NewLoopScheduler() *LoopScheduler {
	s := &LoopScheduler{done: make(chan struct{})}
	s.cond = sync.NewCond(&s.mu)
	go s.run()
	return s
}

func (s *LoopScheduler) run() {
	defer close(s.done)
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		fn := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()

		fn()
	}
}

// Post queues fn. Calls after Close are dropped.
func (s *LoopScheduler) Post(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.queue = append(s.queue, fn)
	s.cond.Signal()
}

// Do runs fn on the loop and waits for it. It must not be called from the
// loop goroutine itself.
func (s *LoopScheduler) Do(fn func()) {
	done := make(chan struct{})
	s.Post(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
	case <-s.done:
	}
}

// Close lets the queued functions run, then stops the loop
func (s *LoopScheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.cond.Signal()
	s.mu.Unlock()
	<-s.done
}

// postWait runs fn on sched and waits for it or for ctx to end. Once fn has
// started it is always waited for, so the caller never races with it.
func postWait(ctx context.Context, sched Scheduler, fn func()) error {
	const (
		queued int32 = iota
		running
		abandoned
	)
	var state atomic.Int32
	done := make(chan struct{})
	sched.Post(func() {
		if !state.CompareAndSwap(queued, running) {
			return
		}
		defer close(done)
		if ctx.Err() != nil {
			return
		}
		fn()
	})
	select {
	case <-done:
	case <-ctx.Done():
		if state.CompareAndSwap(queued, abandoned) {
			return ctx.Err()
		}
		<-done
	}
	return ctx.Err()
}
