package sweep

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// TokenBucket provides a simple thread-safe token bucket implementation.
// A nil bucket never throttles.
type TokenBucket struct {
	rate float64
	cap  float64

	mu   sync.Mutex
	tok  float64
	last time.Time
}

func NewTokenBucket(rate float64, capacity int) *TokenBucket {
	if rate <= 0 {
		return nil
	}
	if capacity <= 0 {
		capacity = int(rate)
		if capacity <= 0 {
			capacity = 1
		}
	}
	return &TokenBucket{rate: rate, cap: float64(capacity), tok: float64(capacity), last: time.Now()}
}

func newTokenBucketFromPPS(pps int) *TokenBucket {
	if pps <= 0 {
		return nil
	}
	capacity := pps / 4
	if capacity <= 0 {
		capacity = 1
	}
	return NewTokenBucket(float64(pps), capacity)
}

// Wait takes n tokens and returns how long the caller must sleep before
// proceeding. Tokens are reserved even when a wait is returned.
func (b *TokenBucket) Wait(n int) time.Duration {
	if b == nil || n <= 0 {
		return 0
	}
	need := float64(n)

	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tok = math.Min(b.cap, b.tok+b.rate*elapsed)
		b.last = now
	}
	b.tok -= need
	if b.tok >= 0 {
		return 0
	}
	return time.Duration(-b.tok / b.rate * float64(time.Second))
}

// executionStats gathers counters for progress snapshots and the scan summary.
type executionStats struct {
	responded   atomic.Uint64
	silent      atomic.Uint64
	durationsNS atomic.Uint64
	inflight    atomic.Int64
}

func (s *executionStats) recordStart() {
	s.inflight.Add(1)
}

func (s *executionStats) recordFinish(responded bool, duration time.Duration) {
	if responded {
		s.responded.Add(1)
	} else {
		s.silent.Add(1)
	}
	if dur := duration.Nanoseconds(); dur > 0 {
		s.durationsNS.Add(uint64(dur))
	}
	s.inflight.Add(-1)
}

func (s *executionStats) averageDuration() time.Duration {
	total := s.responded.Load() + s.silent.Load()
	if total == 0 {
		return 0
	}
	return time.Duration(s.durationsNS.Load() / total)
}
