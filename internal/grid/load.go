package grid

import (
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/calvinalkan/thumbs/internal/imaging"
	"github.com/calvinalkan/thumbs/internal/logger"
)

// Request is the decode work left for one index once the disk cache has
// been consulted. It is produced by [Engine.Begin] and turned into a
// [Result] by a [Decoder], possibly on another goroutine.
type Request struct {
	Index      int
	Path       string
	Generation uint64
	CacheOnly  bool

	// Preview allows the embedded preview shortcut before a full decode.
	Preview bool
}

// Result is a decoded thumbnail at the largest thumb size, ready for
// [Engine.Complete].
type Result struct {
	Request

	Image   image.Image
	Source  string
	Elapsed time.Duration
	Err     error
}

// Decoder turns requests into max-size thumbnails. It only holds the codec
// and is safe for concurrent use.
type Decoder struct {
	codec   Codec
	preview PreviewSource
	release func(image.Image)
	max     int
}

// Decode produces the thumbnail for req: the embedded preview when allowed
// and large enough, a full decode otherwise, scaled down to the largest
// thumb size.
func (d *Decoder) Decode(req Request) Result {
	start := time.Now()
	res := Result{Request: req}

	if req.Preview && d.preview != nil {
		img, err := d.preview.Preview(req.Path)
		if err == nil {
			b := img.Bounds()
			if b.Dx() >= d.max || b.Dy() >= d.max {
				res.Image, res.Source = d.scale(img, d.max), SourcePreview
				res.Elapsed = time.Since(start)

				return res
			}

			d.release(img)
		}
	}

	img, err := d.codec.Decode(req.Path)
	if err != nil {
		res.Err = fmt.Errorf("decode %q: %w", req.Path, err)
		res.Elapsed = time.Since(start)

		return res
	}

	res.Image, res.Source = d.scale(img, d.max), SourceDecode
	res.Elapsed = time.Since(start)

	return res
}

// scale shrinks img so its shorter side is limit, releasing img when a new
// image was made.
func (d *Decoder) scale(img image.Image, limit int) image.Image {
	b := img.Bounds()

	w, h := imaging.CoverSize(b.Dx(), b.Dy(), limit)
	if w == b.Dx() && h == b.Dy() {
		return img
	}

	scaled := d.codec.Scale(img, w, h)
	d.release(img)

	return scaled
}

// Decoder returns the engine's decoder for use on worker goroutines.
func (e *Engine) Decoder() *Decoder { return e.decoder }

// Load produces the thumbnail of n and advances the load cursors.
//
// Unless force is set, the disk cache is tried first. A cached thumbnail
// smaller than the largest thumb size on both sides is stale: it is removed
// from the cache and ignored. Otherwise the file's embedded preview or a full
// decode is scaled to the largest thumb size and written through to the
// cache. With cacheOnly the thumbnail is not kept in memory.
//
// A non-nil error means the file is unusable; callers usually [Engine.Remove]
// it.
func (e *Engine) Load(n int, force, cacheOnly bool) error {
	req, pending, err := e.Begin(n, force, cacheOnly)
	if err != nil || !pending {
		return err
	}

	return e.Complete(e.decoder.Decode(req))
}

// Begin runs the part of [Engine.Load] that touches the cache. If the cache
// satisfied the load it returns pending=false and the load is complete;
// otherwise the returned request must be decoded and passed to
// [Engine.Complete].
func (e *Engine) Begin(n int, force, cacheOnly bool) (Request, bool, error) {
	if n < 0 || n >= len(e.slots) {
		return Request{}, false, fmt.Errorf("%w: %d", ErrIndexOutOfRange, n)
	}

	f := e.files.At(n)
	if f.Path == "" || f.Name == "" {
		return Request{}, false, fmt.Errorf("%w: index %d", ErrNoPath, n)
	}

	e.unload(n)

	req := Request{Index: n, Path: f.Path, Generation: e.gen, CacheOnly: cacheOnly}
	if force {
		return req, true, nil
	}

	start := time.Now()
	maxSize := e.maxSize()

	img, outdated := e.cache.Load(f.Path)
	if img == nil {
		req.Preview = !outdated

		return req, true, nil
	}

	if b := img.Bounds(); b.Dx() < maxSize && b.Dy() < maxSize {
		e.log.Debug("dropping undersized cache entry",
			slog.String(logger.KeyPath, f.Path),
			slog.Int(logger.KeyIndex, n),
		)
		e.cache.Remove(f.Path)
		e.release(img)

		return req, true, nil
	}

	e.finish(n, img, cacheOnly)
	e.metrics.ObserveLoad(SourceCache, time.Since(start))

	return Request{}, false, nil
}

// Complete applies a decoded result. Results from before the last
// [Engine.Remove] or [Engine.Replace] no longer match their index: they are
// still written to the disk cache, which is keyed by path, then released and
// reported as [ErrStale]. A decode error is returned as is and flags the
// file.
func (e *Engine) Complete(res Result) error {
	if res.Generation != e.gen || res.Index >= len(e.slots) {
		if res.Err == nil && res.Image != nil {
			e.writeThrough(res)
			e.release(res.Image)
		}

		return fmt.Errorf("%w: index %d", ErrStale, res.Index)
	}

	if res.Err != nil {
		e.files.At(res.Index).Flags |= FlagWarn
		e.metrics.ObserveLoadFailure()

		return res.Err
	}

	e.writeThrough(res)
	e.finish(res.Index, res.Image, res.CacheOnly)
	e.metrics.ObserveLoad(res.Source, res.Elapsed)

	e.log.Debug("thumbnail loaded",
		slog.String(logger.KeyPath, res.Path),
		slog.Int(logger.KeyIndex, res.Index),
		slog.String(logger.KeySource, res.Source),
	)

	return nil
}

// writeThrough caches a decoded thumbnail that reached the largest size.
func (e *Engine) writeThrough(res Result) {
	maxSize := e.maxSize()
	if b := res.Image.Bounds(); b.Dx() == maxSize || b.Dy() == maxSize {
		e.cache.Write(res.Image, res.Path, true)
	}
}

// finish stores a max-size thumbnail for n, marks it initialized and pushes
// the cursors past every contiguous completed index.
//
// Once a render has fixed the windows, a thumbnail for an index outside both
// of them is handled as cache-only: it would be evicted by the next render
// anyway.
func (e *Engine) finish(n int, img image.Image, cacheOnly bool) {
	if !cacheOnly && e.windowed && !e.loaded.has(n) && !e.visible.has(n) {
		cacheOnly = true
	}

	if cacheOnly {
		e.release(img)
	} else {
		e.unload(n)
		e.attach(n, e.decoder.scale(img, e.sizes[e.zoom]))
		e.dirty = true
	}

	e.files.At(n).Flags |= FlagThumbInit

	if n == e.nextToInit {
		e.nextToInit++
		e.advanceInit()
	}

	if n == e.nextToLoadInView && !cacheOnly && e.visible.has(n) {
		e.nextToLoadInView++
		e.advanceInView()
	}
}

func (e *Engine) advanceInit() {
	for e.nextToInit < len(e.slots) && e.files.At(e.nextToInit).Flags.Has(FlagThumbInit) {
		e.nextToInit++
	}
}

func (e *Engine) advanceInView() {
	for e.nextToLoadInView < int(e.visible.End) && e.slots[e.nextToLoadInView].Image != nil {
		e.nextToLoadInView++
	}
}

// Pending reports whether a visible thumbnail is missing and whether some
// file has not been initialized yet.
func (e *Engine) Pending() (inView, init bool) {
	return e.nextToLoadInView < int(e.visible.End), e.nextToInit < len(e.slots)
}

// Tick does one unit of idle work: load the next missing visible thumbnail,
// or else initialize the next file cache-only. A file that fails to load is
// removed. Tick returns false when there was nothing to do.
func (e *Engine) Tick() bool {
	inView, init := e.Pending()

	switch {
	case inView:
		e.loadOrDrop(e.nextToLoadInView, false)
	case init:
		e.loadOrDrop(e.nextToInit, true)
	default:
		return false
	}

	return true
}

func (e *Engine) loadOrDrop(n int, cacheOnly bool) {
	err := e.Load(n, false, cacheOnly)
	if err == nil {
		return
	}

	e.Drop(n, err)
}

// Drop removes a file that failed to load, logging why.
func (e *Engine) Drop(n int, cause error) {
	if n < 0 || n >= len(e.slots) {
		return
	}

	e.log.Warn("removing unloadable file",
		slog.String(logger.KeyPath, e.files.At(n).Path),
		slog.Int(logger.KeyIndex, n),
		logger.Err(cause),
	)

	_ = e.Remove(n)
}
