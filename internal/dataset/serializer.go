package dataset

import (
	"context"
	"sync"
)

// Serializer wraps a Gateway so that at most one query is in flight at any
// instant, across all goroutines. The underlying analytic engine is not safe
// under concurrent invocation, so this is a hard requirement, not an
// optimization. Go's mutex enters starvation mode under contention, which
// gives waiting callers the FIFO-or-better fairness the contract asks for.
type Serializer struct {
	mu sync.Mutex
	gw Gateway
}

// NewSerializer wraps gw. The serializer owns the gateway from here on;
// callers must not use gw directly afterwards.
func NewSerializer(gw Gateway) *Serializer {
	return &Serializer{gw: gw}
}

// Execute runs one query under the exclusion lock. The lock is held for the
// duration of the query and released on every exit path, error included.
// Abandoning callers do not interrupt an in-flight query; they only discard
// the result.
func (s *Serializer) Execute(ctx context.Context, q Query) ([]Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gw.Execute(ctx, q)
}

// Version reads the snapshot version under the exclusion lock.
func (s *Serializer) Version(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gw.Version(ctx)
}

// Close closes the underlying gateway once no query is in flight.
func (s *Serializer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gw.Close()
}
