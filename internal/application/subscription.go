package application

import (
	"context"
	"sync"
	"sync/atomic"
)

// Subscription is the handle of a running room watch.
type Subscription struct {
	ctx     context.Context
	cancel  context.CancelFunc
	once    sync.Once
	stopped atomic.Bool
	done    chan struct{}
	err     error
}

func newSubscription(parent context.Context) *Subscription {
	ctx, cancel := context.WithCancel(parent)
	return &Subscription{ctx: ctx, cancel: cancel, done: make(chan struct{})}
}

// Cancel stops delivery and releases the watch. It may be called any number
// of times, from any goroutine, including from inside the update callback.
// A callback already running when Cancel is called is not interrupted.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.stopped.Store(true)
		s.cancel()
	})
}

// Done is closed once the watch has been released.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err reports the backend failure that ended the subscription. It is nil
// while running and after a normal cancellation.
func (s *Subscription) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

func (s *Subscription) deliver(room Room, fn func(Room)) {
	if s.stopped.Load() || s.ctx.Err() != nil {
		return
	}
	fn(room)
}

func (s *Subscription) finish(err error) {
	s.err = err
	s.stopped.Store(true)
	s.cancel()
	close(s.done)
}
