package pipeline

import (
	"sync"
	"sync/atomic"

	"github.com/ternarybob/scriptor/internal/interfaces"
)

// CancellationToken is the cooperative cancel signal handed to scrapers.
// Cancel may be called any number of times; the first call wins and closes
// the Done channel for every waiter.
type CancellationToken struct {
	cancelled atomic.Bool
	done      chan struct{}
	once      sync.Once
}

var _ interfaces.CancellationToken = (*CancellationToken)(nil)

func NewCancellationToken() *CancellationToken {
	return &CancellationToken{done: make(chan struct{})}
}

func (t *CancellationToken) Cancel() {
	t.once.Do(func() {
		t.cancelled.Store(true)
		close(t.done)
	})
}

func (t *CancellationToken) IsCancelled() bool {
	return t.cancelled.Load()
}

func (t *CancellationToken) Done() <-chan struct{} {
	return t.done
}
