package sweep

import (
	"context"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Sink receives each observation as soon as its probe settles. Calls are
// serialized: a Sink is never invoked concurrently with itself.
type Sink func(Observation)

const poolReleaseTimeout = 5 * time.Second

type outcome struct {
	observation Observation
	ok          bool
}

// Engine dispatches probes across a bounded worker pool. Each call to Scan owns
// its own pool and accumulator, so concurrent scans do not share state.
type Engine struct {
	mu       sync.RWMutex
	defaults DefaultOptions
	prober   Prober
	logger   *logrus.Logger
}

type Option func(*Engine)

// WithProber replaces the probe built from scan parameters.
func WithProber(p Prober) Option {
	return func(e *Engine) {
		e.prober = p
	}
}

func WithLogger(logger *logrus.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine returns an engine whose scans fill unset parameters from defaults.
// Zero fields of defaults take the package Default* values.
func NewEngine(defaults DefaultOptions, opts ...Option) *Engine {
	e := &Engine{
		defaults: normalizeDefaults(defaults),
		logger:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// UpdateDefaults affects scans started after it returns.
func (e *Engine) UpdateDefaults(next DefaultOptions) {
	e.mu.Lock()
	e.defaults = normalizeDefaults(next)
	e.mu.Unlock()
}

// Defaults returns a copy safe to modify.
func (e *Engine) Defaults() DefaultOptions {
	e.mu.RLock()
	defer e.mu.RUnlock()
	d := e.defaults
	d.DNSServers = append([]string(nil), e.defaults.DNSServers...)
	return d
}

// Scan probes every address of params.Prefix and returns once all dispatched
// probes have settled. sink may be nil.
func (e *Engine) Scan(ctx context.Context, params ScanParams, sink Sink) (*ScanResult, error) {
	return e.ScanWithProgress(ctx, params, sink, nil)
}

// ScanWithProgress is Scan plus throttled Progress snapshots on progress. The
// channel is not closed by the engine.
//
// Cancelling ctx stops dispatching; the partial result is returned together
// with ctx.Err().
func (e *Engine) ScanWithProgress(ctx context.Context, params ScanParams, sink Sink, progress chan<- Progress) (*ScanResult, error) {
	params = params.WithDefaults(e.Defaults())
	addresses := ExpandPrefix(params.Prefix, params.FirstHost, params.LastHost)
	result := newScanResult(params.Prefix, len(addresses))

	prober := e.prober
	if prober == nil {
		prober = NewHostProber(params)
	}
	if c, ok := prober.(Checker); ok {
		if err := c.Check(ctx); err != nil {
			return nil, errors.Wrap(err, "probe setup")
		}
	}

	workers := params.Workers
	if fdCap := fdAwareWorkerCap(); fdCap > 0 && workers > fdCap {
		workers = fdCap
	}
	if workers > len(addresses) && len(addresses) > 0 {
		workers = len(addresses)
	}

	stats := &executionStats{}
	reporter := newProgressReporter(ctx, progress, len(addresses), stats)
	defer reporter.Close()

	// sized to the whole range so a worker never waits on the drain loop
	completions := make(chan outcome, len(addresses))

	var wg sync.WaitGroup
	pool, err := ants.NewPoolWithFunc(workers, func(item interface{}) {
		address := item.(string)
		defer wg.Done()

		stats.recordStart()
		begin := time.Now()
		observation, ok := prober.Probe(ctx, address)
		stats.recordFinish(ok, time.Since(begin))
		if ok {
			observation.Address = address
		}
		completions <- outcome{observation: observation, ok: ok}
	})
	if err != nil {
		return nil, errors.Wrap(err, "create probe pool")
	}
	defer func() {
		// wait for the workers to exit, not only for their tasks
		if err := pool.ReleaseTimeout(poolReleaseTimeout); err != nil {
			e.logger.WithError(err).Warn("probe pool release")
		}
	}()

	dispatchErr := make(chan error, 1)
	go func() {
		err := dispatch(ctx, &wg, pool, addresses, newTokenBucketFromPPS(params.MaxPPS), reporter)
		wg.Wait()
		close(completions)
		dispatchErr <- err
	}()

	for oc := range completions {
		reporter.Completed(oc.ok)
		if !oc.ok {
			continue
		}
		result.append(oc.observation)
		if sink != nil {
			sink(oc.observation)
		}
	}
	result.CompletedAt = time.Now()

	e.logger.WithFields(logrus.Fields{
		"prefix":    params.Prefix,
		"planned":   len(addresses),
		"responded": result.Len(),
		"workers":   workers,
		"avgProbe":  stats.averageDuration().String(),
		"elapsed":   result.Elapsed().String(),
	}).Debug("sweep finished")

	if err := <-dispatchErr; err != nil {
		return result, err
	}
	return result, nil
}

func dispatch(ctx context.Context, wg *sync.WaitGroup, pool *ants.PoolWithFunc, addresses []string, limiter *TokenBucket, reporter *progressReporter) error {
	for _, address := range addresses {
		if err := ctx.Err(); err != nil {
			return err
		}
		if wait := limiter.Wait(1); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}
		wg.Add(1)
		// Invoke blocks while every worker is busy
		if err := pool.Invoke(address); err != nil {
			wg.Done()
			return errors.Wrapf(err, "dispatch %s", address)
		}
		reporter.Dispatched(1)
	}
	return nil
}
