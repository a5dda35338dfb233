// Package jobq runs thumbnail work on a fixed set of worker goroutines fed by
// a bounded priority queue.
//
// A [Pool] never touches engine or cache state. Workers run a pure work
// function on the job payload and hand the outcome back over [Pool.Results];
// the goroutine that owns the engine applies it. Jobs are picked strictly by
// [Kind] priority: shown thumbnails first, then prefetch of hidden ones, then
// cache warming.
package jobq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/calvinalkan/thumbs/internal/logger"
	"github.com/calvinalkan/thumbs/pkg/pqueue"
)

// Kind is a job class. Its numeric value is the queue priority.
type Kind int

// Job kinds, lowest priority first.
const (
	KindCacheWarm  Kind = 10
	KindLoadHidden Kind = 20
	KindLoadShown  Kind = 30
)

// Sentinels sit below every real kind so queued work drains before workers exit.
const stopPriority = 0

func (k Kind) String() string {
	switch k {
	case KindCacheWarm:
		return "cache_warm"
	case KindLoadHidden:
		return "load_hidden"
	case KindLoadShown:
		return "load_shown"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var (
	// ErrInvalidWorkers is returned by [New] for a worker count below one.
	ErrInvalidWorkers = errors.New("workers must be at least 1")

	// ErrInvalidCapacity is returned by [New] for a queue capacity below one.
	ErrInvalidCapacity = errors.New("queue capacity must be at least 1")

	// ErrNotStarted is returned by [Pool.Stop] before [Pool.Start].
	ErrNotStarted = errors.New("pool not started")

	// ErrStopped is returned by [Pool.Stop] on a second call.
	ErrStopped = errors.New("pool already stopped")

	// ErrPanic wraps a panic raised by the work function.
	ErrPanic = errors.New("job panicked")
)

// Job is one unit of queued work.
type Job[T any] struct {
	ID      uuid.UUID
	Kind    Kind
	Payload T
}

// Result is the outcome of a [Job].
type Result[T, R any] struct {
	Job      Job[T]
	Value    R
	Err      error
	Duration time.Duration
	Worker   int
}

// WorkFunc does the work for one payload. It runs on a worker goroutine and
// must only touch state that is safe for concurrent use.
type WorkFunc[T, R any] func(ctx context.Context, payload T) (R, error)

// Metrics receives pool events. *metrics.JobMetrics implements it.
type Metrics interface {
	ObserveSubmit(kind string, accepted bool, depth int)
	ObserveDone(kind string, d time.Duration, err error)
	SetDepth(depth int)
}

// Options configures a [Pool].
type Options struct {
	Workers  int
	Capacity int
	Logger   *slog.Logger
	Metrics  Metrics
}

type envelope[T any] struct {
	job  Job[T]
	stop bool
}

// Pool is a fixed-size worker pool over a [pqueue.Queue].
//
// Submit is safe from any goroutine. Results are delivered on a buffered
// channel that the owner must keep draining while the pool runs; [Pool.Stop]
// drains it itself while shutting down.
type Pool[T, R any] struct {
	queue   *pqueue.Queue[envelope[T]]
	work    WorkFunc[T, R]
	results chan Result[T, R]
	workers int
	log     *slog.Logger
	metrics Metrics

	mu      sync.Mutex
	group   *errgroup.Group
	started bool
	stopped bool
	discard func(Result[T, R])
}

// New creates a pool. Workers are not running until [Pool.Start].
// Panics if work is nil.
func New[T, R any](opts Options, work WorkFunc[T, R]) (*Pool[T, R], error) {
	if work == nil {
		panic("jobq: work func is nil")
	}

	if opts.Workers < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWorkers, opts.Workers)
	}

	if opts.Capacity < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, opts.Capacity)
	}

	m := opts.Metrics
	if m == nil {
		m = noopMetrics{}
	}

	return &Pool[T, R]{
		queue:   pqueue.New[envelope[T]](opts.Capacity),
		work:    work,
		results: make(chan Result[T, R], opts.Capacity+opts.Workers),
		workers: opts.Workers,
		log:     logger.OrDiscard(opts.Logger),
		metrics: m,
	}, nil
}

// OnDiscard registers fn to receive results that [Pool.Stop] drains instead
// of delivering, so their values can be released. Call before Stop.
func (p *Pool[T, R]) OnDiscard(fn func(Result[T, R])) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.discard = fn
}

// Start launches the workers. ctx is passed to every work call; cancelling it
// does not stop the workers, [Pool.Stop] does. Calling Start twice is a no-op.
func (p *Pool[T, R]) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return
	}

	p.started = true
	p.group, ctx = errgroup.WithContext(ctx)

	for id := range p.workers {
		p.group.Go(func() error {
			return p.run(ctx, id)
		})
	}
}

// Submit queues payload under kind. It never blocks: a full queue (or a
// stopped pool) returns false and the caller decides whether to retry.
func (p *Pool[T, R]) Submit(kind Kind, payload T) (uuid.UUID, bool) {
	p.mu.Lock()
	stopped := p.stopped
	p.mu.Unlock()

	if stopped {
		return uuid.Nil, false
	}

	job := Job[T]{ID: uuid.New(), Kind: kind, Payload: payload}

	ok := p.queue.Enqueue(envelope[T]{job: job}, int(kind))
	p.metrics.ObserveSubmit(kind.String(), ok, p.queue.Len())

	if !ok {
		return uuid.Nil, false
	}

	return job.ID, true
}

// Results returns the channel finished jobs are delivered on. It is closed
// when [Pool.Stop] returns.
func (p *Pool[T, R]) Results() <-chan Result[T, R] {
	return p.results
}

// Pending returns the number of queued jobs not yet picked up by a worker.
func (p *Pool[T, R]) Pending() int {
	return p.queue.Len()
}

// Free returns how many more jobs the queue accepts right now.
func (p *Pool[T, R]) Free() int {
	return p.queue.Cap() - p.queue.Len()
}

// Stop shuts the pool down cooperatively. One sentinel per worker is queued
// at the lowest priority, so jobs already queued still run; their results
// are handed to the [Pool.OnDiscard] callback instead of the channel owner.
// Stop returns after every worker exited and closes the results channel.
func (p *Pool[T, R]) Stop() error {
	p.mu.Lock()

	if !p.started {
		p.mu.Unlock()

		return ErrNotStarted
	}

	if p.stopped {
		p.mu.Unlock()

		return ErrStopped
	}

	p.stopped = true
	discard := p.discard
	p.mu.Unlock()

	done := make(chan error, 1)

	go func() {
		for range p.workers {
			// A full queue frees up as workers drain it.
			for !p.queue.Enqueue(envelope[T]{stop: true}, stopPriority) {
				time.Sleep(time.Millisecond)
			}
		}

		done <- p.group.Wait()
	}()

	for {
		select {
		case err := <-done:
			close(p.results)
			p.drain(discard)
			p.metrics.SetDepth(p.queue.Len())

			return err
		case res := <-p.results:
			if discard != nil {
				discard(res)
			}
		}
	}
}

func (p *Pool[T, R]) drain(discard func(Result[T, R])) {
	for res := range p.results {
		if discard != nil {
			discard(res)
		}
	}
}

func (p *Pool[T, R]) run(ctx context.Context, id int) error {
	p.log.Debug("worker started", slog.Int(logger.KeyWorker, id))

	for {
		env := p.queue.Dequeue()
		if env.stop {
			p.log.Debug("worker stopped", slog.Int(logger.KeyWorker, id))

			return nil
		}

		p.metrics.SetDepth(p.queue.Len())

		start := time.Now()
		value, err := p.call(ctx, env.job.Payload)
		elapsed := time.Since(start)

		p.metrics.ObserveDone(env.job.Kind.String(), elapsed, err)

		if err != nil {
			p.log.Debug("job failed",
				slog.String(logger.KeyJobID, env.job.ID.String()),
				slog.String(logger.KeyJobKind, env.job.Kind.String()),
				slog.Int(logger.KeyWorker, id),
				logger.Err(err),
			)
		}

		p.results <- Result[T, R]{
			Job:      env.job,
			Value:    value,
			Err:      err,
			Duration: elapsed,
			Worker:   id,
		}
	}
}

// call runs the work function and turns a panic into an error so one bad
// image cannot take the worker down.
func (p *Pool[T, R]) call(ctx context.Context, payload T) (value R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v\n%s", ErrPanic, r, debug.Stack())
		}
	}()

	return p.work(ctx, payload)
}

type noopMetrics struct{}

func (noopMetrics) ObserveSubmit(string, bool, int)         {}
func (noopMetrics) ObserveDone(string, time.Duration, error) {}
func (noopMetrics) SetDepth(int)                             {}
