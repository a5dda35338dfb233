// Package grid implements the thumbnail grid: a window of decoded thumbnails
// over a possibly huge file collection.
//
// The [Engine] keeps at most the visible cells plus a prefetch margin in
// memory, loads thumbnails one step at a time (disk cache first, then an
// embedded preview, then a full decode), and walks a cache-only pass over the
// rest of the collection when idle. It owns layout and navigation state
// (selection, scrolling, zoom) and hands an external renderer a [Frame] of
// cells to draw.
//
// An Engine is not safe for concurrent use. The [Prefetcher] moves decoding
// onto a job pool while keeping every engine call on the owning goroutine.
package grid

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"slices"

	"github.com/calvinalkan/thumbs/internal/logger"
)

const (
	// MaxBorderWidth caps the highlight border drawn around the selection.
	MaxBorderWidth = 3

	// markBorder is the inset of the mark square's inner fill.
	markBorder = 1
)

// DefaultThumbSizes are the zoom steps in pixels.
var DefaultThumbSizes = []int{32, 64, 96, 128, 160}

var (
	// ErrIndexOutOfRange is returned for an index outside the collection.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrNoPath is returned when a file entry has no path or name.
	ErrNoPath = errors.New("file has no path")

	// ErrStale is returned by [Engine.Complete] for a result produced before
	// the collection changed.
	ErrStale = errors.New("stale load result")

	// ErrThumbSizes is returned by [New] when the zoom steps are empty, not
	// positive or not strictly ascending.
	ErrThumbSizes = errors.New("thumb sizes must be positive and ascending")

	// ErrZoomLevel is returned by [New] for a zoom level outside ThumbSizes.
	ErrZoomLevel = errors.New("zoom level out of range")
)

// Slot is the in-memory state of one collection index.
type Slot struct {
	// Image is the thumbnail at the current zoom size, nil when unloaded.
	Image image.Image

	// W and H are the dimensions of Image.
	W, H int

	// X and Y are the top-left of the cell image in the last rendered frame.
	X, Y int

	// Scale maps Image onto the cell in the last rendered frame.
	Scale float64
}

// Options configures an [Engine]. Files, Cache and Codec are required.
type Options struct {
	Files Collection
	Cache Cache
	Codec Codec

	// ThumbSizes are the zoom steps in pixels. The largest is the size
	// written to the disk cache. Defaults to [DefaultThumbSizes].
	ThumbSizes []int

	// ZoomLevel indexes ThumbSizes.
	ZoomLevel int

	// GridGap is the spacing between cells in pixels.
	GridGap int

	// PrefetchMargin is how many indices on each side of the visible range
	// may stay resident.
	PrefetchMargin int

	Logger  *slog.Logger
	Metrics Metrics
}

// Engine is the thumbnail grid state machine.
type Engine struct {
	files   Collection
	slots   []Slot
	cache   Cache
	codec   Codec
	release func(image.Image)
	decoder *Decoder
	log     *slog.Logger
	metrics Metrics

	sizes     []int
	zoom      int
	startZoom int
	gap       int
	margin    int

	cols, rows int
	dim        int
	border     int
	x, y       int

	visible IndexRange
	loaded  IndexRange

	// windowed is set once Render fixed visible and loaded.
	windowed bool

	// Indices in [residentLo, residentHi) may hold an image, residentN do.
	residentLo, residentHi int
	residentN              int

	nextToInit       int
	nextToLoadInView int

	sel    int
	square bool
	dirty  bool
	gen    uint64
}

// New creates an engine over opts.Files. Panics if Files, Cache or Codec is
// nil.
func New(opts Options) (*Engine, error) {
	if opts.Files == nil || opts.Cache == nil || opts.Codec == nil {
		panic("grid: Files, Cache and Codec are required")
	}

	sizes := opts.ThumbSizes
	if len(sizes) == 0 {
		sizes = DefaultThumbSizes
	}

	for i, s := range sizes {
		if s <= 0 || (i > 0 && s <= sizes[i-1]) {
			return nil, fmt.Errorf("%w: %v", ErrThumbSizes, sizes)
		}
	}

	if opts.ZoomLevel < 0 || opts.ZoomLevel >= len(sizes) {
		return nil, fmt.Errorf("%w: %d (have %d sizes)", ErrZoomLevel, opts.ZoomLevel, len(sizes))
	}

	m := opts.Metrics
	if m == nil {
		m = noopMetrics{}
	}

	e := &Engine{
		files:     opts.Files,
		slots:     make([]Slot, opts.Files.Len()),
		cache:     opts.Cache,
		codec:     opts.Codec,
		release:   func(image.Image) {},
		log:       logger.OrDiscard(opts.Logger),
		metrics:   m,
		sizes:     slices.Clone(sizes),
		zoom:      opts.ZoomLevel,
		startZoom: opts.ZoomLevel,
		gap:       max(opts.GridGap, 0),
		margin:    max(opts.PrefetchMargin, 0),
		cols:      1,
		rows:      1,
		dirty:     true,
	}

	if r, ok := opts.Codec.(Releaser); ok {
		e.release = r.Release
	}

	var preview PreviewSource
	if p, ok := opts.Codec.(PreviewSource); ok && !opts.Cache.Private() {
		preview = p
	}

	e.decoder = &Decoder{codec: opts.Codec, preview: preview, release: e.release, max: e.maxSize()}
	e.applyZoom()

	return e, nil
}

// Count returns the number of files.
func (e *Engine) Count() int { return len(e.slots) }

// Files returns the collection the engine works on.
func (e *Engine) Files() Collection { return e.files }

// Slot returns a copy of the slot for index n.
func (e *Engine) Slot(n int) Slot { return e.slots[n] }

// Selection returns the selected index.
func (e *Engine) Selection() int { return e.sel }

// Visible returns the range shown by the last render.
func (e *Engine) Visible() IndexRange { return e.visible }

// Loaded returns the range allowed to stay resident after the last render.
func (e *Engine) Loaded() IndexRange { return e.loaded }

// ZoomLevel returns the zoom level and its thumbnail size in pixels.
func (e *Engine) ZoomLevel() (level, size int) { return e.zoom, e.sizes[e.zoom] }

// Layout returns the column and row count of the last render.
func (e *Engine) Layout() (cols, rows int) { return e.cols, e.rows }

// Square reports whether the square-crop layout is on.
func (e *Engine) Square() bool { return e.square }

// Dirty reports whether the next [Engine.Render] produces a frame.
func (e *Engine) Dirty() bool { return e.dirty }

// Resident returns the number of slots holding an image.
func (e *Engine) Resident() int { return e.residentN }

// Generation changes whenever indices shift or the collection is replaced.
func (e *Engine) Generation() uint64 { return e.gen }

// Cursors returns the next index to initialize and the next visible index
// to load.
func (e *Engine) Cursors() (nextToInit, nextToLoadInView int) {
	return e.nextToInit, e.nextToLoadInView
}

// SetDirty forces the next render, e.g. after the window was exposed.
func (e *Engine) SetDirty() { e.dirty = true }

// Mark sets or clears the user mark on n.
func (e *Engine) Mark(n int, on bool) error {
	if n < 0 || n >= len(e.slots) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, n)
	}

	f := e.files.At(n)
	if on {
		f.Flags |= FlagMarked
	} else {
		f.Flags &^= FlagMarked
	}

	e.dirty = true

	return nil
}

// Reload drops the thumbnail of n so it is loaded again, e.g. after the file
// changed on disk.
func (e *Engine) Reload(n int) error {
	if n < 0 || n >= len(e.slots) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, n)
	}

	e.unload(n)

	if e.visible.has(n) {
		e.nextToLoadInView = min(e.nextToLoadInView, n)
	}

	e.dirty = true

	return nil
}

// Remove deletes n from the collection and its slot. Cursors and the
// selection keep pointing at the same entries.
func (e *Engine) Remove(n int) error {
	if n < 0 || n >= len(e.slots) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, n)
	}

	e.unload(n)
	e.files.Remove(n)
	e.slots = slices.Delete(e.slots, n, n+1)
	e.gen++

	count := len(e.slots)

	if e.sel > n || (e.sel == count && count > 0) {
		e.sel--
	}

	if e.nextToInit > n {
		e.nextToInit--
	}

	if e.nextToLoadInView > n {
		e.nextToLoadInView--
	}

	switch {
	case n < e.residentLo:
		e.residentLo--
		e.residentHi--
	case n < e.residentHi:
		e.residentHi--
	}

	if int(e.visible.End) > count {
		e.visible.End = int32(count)
	}

	e.advanceInit()
	e.advanceInView()
	e.dirty = true

	return nil
}

// Replace swaps in a new collection. All thumbnails are dropped and
// the cursors restart. The zoom level is kept if keepZoom is set, otherwise
// it returns to the configured one.
func (e *Engine) Replace(files Collection, keepZoom bool) {
	if files == nil {
		panic("grid: Replace with nil collection")
	}

	e.unloadAll()

	e.files = files
	e.slots = make([]Slot, files.Len())
	e.residentLo, e.residentHi, e.residentN = 0, 0, 0
	e.nextToInit, e.nextToLoadInView = 0, 0
	e.visible, e.loaded = IndexRange{}, IndexRange{}
	e.windowed = false
	e.sel = 0
	e.gen++

	if !keepZoom {
		e.zoom = e.startZoom
	}

	e.applyZoom()
	e.dirty = true
	e.metrics.SetResident(0)
}

// Close releases every resident thumbnail. The engine is unusable afterwards.
func (e *Engine) Close() {
	e.unloadAll()
	e.slots = nil
	e.gen++
}

func (e *Engine) maxSize() int {
	return e.sizes[len(e.sizes)-1]
}

func (e *Engine) attach(n int, img image.Image) {
	b := img.Bounds()
	e.slots[n] = Slot{Image: img, W: b.Dx(), H: b.Dy()}

	if e.residentN == 0 {
		e.residentLo, e.residentHi = n, n+1
	} else {
		e.residentLo = min(e.residentLo, n)
		e.residentHi = max(e.residentHi, n+1)
	}

	e.residentN++
	e.metrics.SetResident(e.residentN)
}

func (e *Engine) unload(n int) bool {
	s := &e.slots[n]
	if s.Image == nil {
		return false
	}

	e.release(s.Image)
	*s = Slot{}

	e.residentN--
	if e.residentN == 0 {
		e.residentLo, e.residentHi = 0, 0
	}

	e.metrics.SetResident(e.residentN)

	return true
}

func (e *Engine) unloadAll() {
	for i := e.residentLo; i < e.residentHi && i < len(e.slots); i++ {
		e.unload(i)
	}
}

// evict unloads every resident slot outside keep and shrinks the resident
// hull to what is left. It returns the number of slots unloaded.
func (e *Engine) evict(keep IndexRange) int {
	n := 0
	lo, hi := -1, -1

	for i := e.residentLo; i < e.residentHi && i < len(e.slots); i++ {
		if e.slots[i].Image == nil {
			continue
		}

		if !keep.has(i) {
			e.unload(i)
			n++

			continue
		}

		if lo < 0 {
			lo = i
		}

		hi = i + 1
	}

	if lo >= 0 {
		e.residentLo, e.residentHi = lo, hi
	}

	return n
}
