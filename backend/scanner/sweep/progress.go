package sweep

import (
	"context"
	"sync/atomic"
	"time"
)

const progressInterval = 200 * time.Millisecond

// Progress is a point-in-time view of a running sweep.
type Progress struct {
	Planned    int       `json:"planned"`
	Dispatched int       `json:"dispatched"`
	Completed  int       `json:"completed"`
	Responded  int       `json:"responded"`
	Active     int       `json:"active"`
	PPS        float64   `json:"pps"`
	UptimeMs   int64     `json:"uptimeMs"`
	Timestamp  time.Time `json:"timestamp"`
}

// progressReporter publishes counter snapshots at most every progressInterval,
// skipping ticks where nothing moved, plus one final snapshot on Close.
type progressReporter struct {
	ctx     context.Context
	out     chan<- Progress
	stats   *executionStats
	planned int
	start   time.Time

	dispatched atomic.Int64
	completed  atomic.Int64
	responded  atomic.Int64

	stop chan struct{}
	done chan struct{}
}

// newProgressReporter returns nil when out is nil; all methods accept a nil receiver.
func newProgressReporter(ctx context.Context, out chan<- Progress, planned int, stats *executionStats) *progressReporter {
	if out == nil {
		return nil
	}
	r := &progressReporter{
		ctx:     ctx,
		out:     out,
		stats:   stats,
		planned: planned,
		start:   time.Now(),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go r.loop()
	return r
}

func (r *progressReporter) Dispatched(n int) {
	if r != nil {
		r.dispatched.Add(int64(n))
	}
}

func (r *progressReporter) Completed(responded bool) {
	if r == nil {
		return
	}
	r.completed.Add(1)
	if responded {
		r.responded.Add(1)
	}
}

func (r *progressReporter) snapshot() Progress {
	now := time.Now()
	uptime := now.Sub(r.start)
	p := Progress{
		Planned:    r.planned,
		Dispatched: int(r.dispatched.Load()),
		Completed:  int(r.completed.Load()),
		Responded:  int(r.responded.Load()),
		UptimeMs:   uptime.Milliseconds(),
		Timestamp:  now,
	}
	if r.stats != nil {
		p.Active = int(r.stats.inflight.Load())
	}
	if secs := uptime.Seconds(); secs > 0 {
		p.PPS = float64(p.Completed) / secs
	}
	return p
}

func (r *progressReporter) loop() {
	defer close(r.done)
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	lastMoved := int64(-1)
	for {
		select {
		case <-r.stop:
			select {
			case r.out <- r.snapshot():
			case <-r.ctx.Done():
			}
			return
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			moved := r.dispatched.Load() + r.completed.Load()
			if moved == lastMoved {
				continue
			}
			lastMoved = moved
			select {
			case r.out <- r.snapshot():
			case <-r.ctx.Done():
				return
			}
		}
	}
}

// Close publishes the final snapshot and waits for the loop to exit.
func (r *progressReporter) Close() {
	if r == nil {
		return
	}
	close(r.stop)
	<-r.done
}
