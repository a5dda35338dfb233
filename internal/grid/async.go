package grid

import (
	"context"
	"errors"
	"log/slog"

	"github.com/calvinalkan/thumbs/internal/jobq"
	"github.com/calvinalkan/thumbs/internal/logger"
)

// DecodePool is a job pool running an engine's [Decoder].
type DecodePool = jobq.Pool[Request, Result]

// NewDecodePool creates a job pool whose workers decode requests with the
// engine's [Decoder]. The pool still has to be started.
func NewDecodePool(e *Engine, opts jobq.Options) (*DecodePool, error) {
	dec := e.Decoder()

	return jobq.New(opts, func(_ context.Context, req Request) (Result, error) {
		res := dec.Decode(req)

		return res, res.Err
	})
}

// Prefetcher drives an [Engine] through a [DecodePool]. It submits decode
// jobs for missing thumbnails, most urgent first, and applies their results.
//
// All Prefetcher methods must be called from the goroutine that owns the
// engine. Only decoding runs on the pool.
type Prefetcher struct {
	engine   *Engine
	pool     *DecodePool
	inflight map[int]jobq.Kind
	pending  int
	gen      uint64
	log      *slog.Logger
}

// NewPrefetcher wires e to pool. Results the pool discards on shutdown are
// released through the engine's codec.
func NewPrefetcher(e *Engine, pool *DecodePool, log *slog.Logger) *Prefetcher {
	release := e.release

	pool.OnDiscard(func(res jobq.Result[Request, Result]) {
		if res.Value.Image != nil {
			release(res.Value.Image)
		}
	})

	return &Prefetcher{
		engine:   e,
		pool:     pool,
		inflight: make(map[int]jobq.Kind),
		gen:      e.Generation(),
		log:      logger.OrDiscard(log),
	}
}

// InFlight returns the number of submitted jobs whose results were not
// applied yet, stale ones included.
func (p *Prefetcher) InFlight() int {
	return p.pending
}

// Pump queues work while the pool has room: missing visible thumbnails
// first, then the rest of the prefetch range, then cache-only
// initialization of files never seen. Loads the disk cache satisfies are
// applied immediately. Returns the number of jobs submitted.
func (p *Prefetcher) Pump() int {
	p.sync()

	e := p.engine
	count := e.Count()
	submitted := 0

	visible := e.Visible()
	for i := int(visible.Start); i < int(visible.End) && i < count; i++ {
		if e.slots[i].Image != nil {
			continue
		}

		ok, more := p.submit(i, false, jobq.KindLoadShown)
		if ok {
			submitted++
		}

		if !more {
			return submitted
		}
	}

	loaded := e.Loaded()
	for i := int(loaded.Start); i < int(loaded.End) && i < count; i++ {
		if visible.has(i) || e.slots[i].Image != nil {
			continue
		}

		ok, more := p.submit(i, false, jobq.KindLoadHidden)
		if ok {
			submitted++
		}

		if !more {
			return submitted
		}
	}

	next, _ := e.Cursors()
	for i := next; i < e.Count(); i++ {
		if e.files.At(i).Flags.Has(FlagThumbInit) {
			continue
		}

		ok, more := p.submit(i, true, jobq.KindCacheWarm)
		if ok {
			submitted++
		}

		if !more {
			return submitted
		}
	}

	return submitted
}

// submit starts the load of n. ok reports whether a job was queued; more is
// false when pumping has to stop, because the queue is full or indices
// shifted.
//
// An index already in flight under a lower kind is submitted again under
// kind: the queue cannot reorder a job, and a cache-warm job for a shown
// thumbnail would wait behind every other load. Whichever result arrives
// first is applied, the other one only initializes the file.
func (p *Prefetcher) submit(n int, cacheOnly bool, kind jobq.Kind) (ok, more bool) {
	if prev, busy := p.inflight[n]; busy && prev >= kind {
		return false, true
	}

	if p.pool.Free() == 0 {
		return false, false
	}

	req, pending, err := p.engine.Begin(n, false, cacheOnly)
	if err != nil {
		p.engine.Drop(n, err)
		p.sync()

		return false, false
	}

	if !pending {
		return false, true
	}

	id, queued := p.pool.Submit(kind, req)
	if !queued {
		return false, false
	}

	p.inflight[n] = kind
	p.pending++

	p.log.Debug("job submitted",
		slog.String(logger.KeyJobID, id.String()),
		slog.String(logger.KeyJobKind, kind.String()),
		slog.Int(logger.KeyIndex, n),
	)

	return true, true
}

// Apply hands one pool result to the engine. Stale results are dropped;
// files that failed to decode are removed.
func (p *Prefetcher) Apply(res jobq.Result[Request, Result]) {
	p.sync()
	p.pending--

	r := res.Value
	if r.Path == "" {
		// The work function panicked and produced nothing.
		r = Result{Request: res.Job.Payload, Err: res.Err}
	}

	// Only the newest submission of an index clears it.
	if kind, ok := p.inflight[r.Index]; ok && r.Generation == p.gen && kind == res.Job.Kind {
		delete(p.inflight, r.Index)
	}

	err := p.engine.Complete(r)

	switch {
	case err == nil:
	case errors.Is(err, ErrStale):
		p.log.Debug("stale result dropped", slog.String(logger.KeyPath, r.Path))
	default:
		p.engine.Drop(r.Index, err)
		p.sync()
	}
}

// Poll applies every result that is ready without blocking and returns how
// many were applied.
func (p *Prefetcher) Poll() int {
	n := 0

	for {
		select {
		case res, ok := <-p.pool.Results():
			if !ok {
				return n
			}

			p.Apply(res)
			n++
		default:
			return n
		}
	}
}

// Await blocks until one result is applied, the pool shut down or ctx is
// done. It returns false in the latter two cases.
func (p *Prefetcher) Await(ctx context.Context) bool {
	select {
	case res, ok := <-p.pool.Results():
		if !ok {
			return false
		}

		p.Apply(res)

		return true
	case <-ctx.Done():
		return false
	}
}

// Run pumps and applies results until the engine has nothing left to load
// and no job is outstanding, or ctx is done.
func (p *Prefetcher) Run(ctx context.Context) error {
	for {
		submitted := p.Pump()

		if p.InFlight() == 0 {
			inView, init := p.engine.Pending()
			if !inView && !init {
				return nil
			}

			// Nothing was queued, so the cache answered everything Pump
			// looked at. A synchronous step guarantees progress.
			if submitted == 0 {
				p.engine.Tick()
			}

			continue
		}

		if !p.Await(ctx) {
			return ctx.Err()
		}
	}
}

// sync forgets in-flight indices once they shifted. Their results arrive
// stale and are dropped by the engine.
func (p *Prefetcher) sync() {
	if gen := p.engine.Generation(); gen != p.gen {
		clear(p.inflight)
		p.gen = gen
	}
}
