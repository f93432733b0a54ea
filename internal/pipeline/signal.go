package pipeline

import (
	"context"
	"sync"
)

// completionSignal is a one-shot job outcome. The first settlement wins and
// wakes every waiter; later calls are ignored, so the manager and the cancel
// path can both settle without coordination.
type completionSignal struct {
	done chan struct{}
	once sync.Once
	err  error
}

func newCompletionSignal() *completionSignal {
	return &completionSignal{done: make(chan struct{})}
}

// Resolve marks the job successful.
func (s *completionSignal) Resolve() {
	s.settle(nil)
}

// Reject records the job's terminal error. Rejecting with a
// *CancellationError marks cooperative cancellation, which waiters observe
// as a normal outcome.
func (s *completionSignal) Reject(err error) {
	s.settle(err)
}

func (s *completionSignal) settle(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.done)
	})
}

// Wait blocks until the job settles or ctx expires. Cancellation yields nil;
// a failed job yields its original error.
func (s *completionSignal) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		if IsCancellation(s.err) {
			return nil
		}
		return s.err
	}
}
