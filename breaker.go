package hindsight

import (
	"errors"
	"sync"
)

var errBreakerOpen = errors.New("hindsight: oracle breaker open")

// breaker stops a run from querying an oracle that keeps failing. It
// opens after threshold consecutive failures and stays open for the rest
// of the run.
type breaker struct {
	threshold int

	mu          sync.Mutex
	consecutive int
	open        bool
}

func newBreaker(threshold int) *breaker {
	return &breaker{threshold: threshold}
}

// allow reports whether a request may go through.
func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.open
}

// record notes the outcome of a request and reports whether this failure
// opened the breaker.
func (b *breaker) record(failed bool) (tripped bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !failed {
		b.consecutive = 0
		return false
	}
	b.consecutive++
	if b.threshold > 0 && !b.open && b.consecutive >= b.threshold {
		b.open = true
		return true
	}
	return false
}
