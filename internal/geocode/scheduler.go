package geocode

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrSkipped is returned by DoWhen when the job was dropped without using a
// rate slot.
var ErrSkipped = errors.New("geocode job skipped")

// DefaultMinInterval is the politeness spacing between outbound calls.
const DefaultMinInterval = 1100 * time.Millisecond

// Scheduler serializes geocoding work. At most one job runs at a time and
// job starts are at least the minimum interval apart. One Scheduler is shared
// by every caller in the process.
type Scheduler struct {
	mu      sync.Mutex
	limiter *rate.Limiter
}

// NewScheduler creates a scheduler with the given minimum spacing.
func NewScheduler(minInterval time.Duration) *Scheduler {
	if minInterval < 0 {
		minInterval = 0
	}
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &Scheduler{limiter: rate.NewLimiter(limit, 1)}
}

// Do waits for its turn and runs fn. It returns ctx's error if the context
// ends while queued; fn is not run in that case.
func (s *Scheduler) Do(ctx context.Context, fn func(ctx context.Context)) error {
	return s.DoWhen(ctx, nil, fn)
}

// DoWhen is Do with a precondition checked once the job reaches the head of
// the queue. When ready reports false the job is dropped with ErrSkipped and
// the next job keeps the slot.
func (s *Scheduler) DoWhen(ctx context.Context, ready func() bool, fn func(ctx context.Context)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ready != nil && !ready() {
		return ErrSkipped
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	fn(ctx)
	return nil
}
