package executor

import "sync"

const circuitBreakerThreshold = 5

// Breaker is the per-fingerprint consecutive-failure counter of §4.5.
// It is shared mutable state between Submission (reads IsOpen) and the
// Executor (writes via RecordFailure/RecordSuccess), guarded by a single
// mutex per §5's shared-resource table — contention is negligible next
// to a job's multi-second execution time.
type Breaker struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewBreaker() *Breaker {
	return &Breaker{counts: make(map[string]int)}
}

func (b *Breaker) IsOpen(fingerprint string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts[fingerprint] >= circuitBreakerThreshold
}

func (b *Breaker) RecordFailure(fingerprint string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.counts[fingerprint]++
}

func (b *Breaker) RecordSuccess(fingerprint string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.counts, fingerprint)
}
