package grid_test

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"testing"

	"github.com/calvinalkan/thumbs/internal/grid"
)

var errUndecodable = errors.New("undecodable")

// fakeCodec makes blank images of configured sizes and tracks every image it
// hands out so tests can check releases.
type fakeCodec struct {
	mu       sync.Mutex
	sizes    map[string]image.Point
	previews map[string]image.Point
	decodes  map[string]int
	live     map[image.Image]bool
	doubles  int
}

func newFakeCodec() *fakeCodec {
	return &fakeCodec{
		sizes:    make(map[string]image.Point),
		previews: make(map[string]image.Point),
		decodes:  make(map[string]int),
		live:     make(map[image.Image]bool),
	}
}

func (c *fakeCodec) add(path string, w, h int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sizes[path] = image.Pt(w, h)
}

func (c *fakeCodec) addPreview(path string, w, h int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.previews[path] = image.Pt(w, h)
}

func (c *fakeCodec) newImage(w, h int) image.Image {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.newImageLocked(w, h)
}

func (c *fakeCodec) newImageLocked(w, h int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	c.live[img] = true

	return img
}

func (c *fakeCodec) Decode(path string) (image.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sz, ok := c.sizes[path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, errUndecodable)
	}

	c.decodes[path]++

	return c.newImageLocked(sz.X, sz.Y), nil
}

func (c *fakeCodec) Preview(path string) (image.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sz, ok := c.previews[path]
	if !ok {
		return nil, errors.New("no preview")
	}

	return c.newImageLocked(sz.X, sz.Y), nil
}

func (c *fakeCodec) Scale(_ image.Image, w, h int) image.Image {
	return c.newImage(w, h)
}

func (c *fakeCodec) Release(img image.Image) {
	c.mu.Lock()
	defer c.mu.Unlock()

	live, known := c.live[img]
	if known && !live {
		c.doubles++

		return
	}

	c.live[img] = false
}

func (c *fakeCodec) liveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0

	for _, live := range c.live {
		if live {
			n++
		}
	}

	return n
}

func (c *fakeCodec) decodeCount(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.decodes[path]
}

func (c *fakeCodec) doubleReleases() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.doubles
}

// fakeCache is an in-memory disk cache keyed by path. Only the engine's
// goroutine touches it.
type fakeCache struct {
	codec    *fakeCodec
	entries  map[string]image.Point
	outdated map[string]bool
	writes   map[string]int
	removed  []string
	private  bool
}

func newFakeCache(codec *fakeCodec) *fakeCache {
	return &fakeCache{
		codec:    codec,
		entries:  make(map[string]image.Point),
		outdated: make(map[string]bool),
		writes:   make(map[string]int),
	}
}

func (c *fakeCache) Load(path string) (image.Image, bool) {
	if c.outdated[path] {
		return nil, true
	}

	sz, ok := c.entries[path]
	if !ok {
		return nil, false
	}

	return c.codec.newImage(sz.X, sz.Y), false
}

func (c *fakeCache) Write(img image.Image, path string, _ bool) {
	if c.private {
		return
	}

	b := img.Bounds()
	c.entries[path] = image.Pt(b.Dx(), b.Dy())
	c.writes[path]++
	delete(c.outdated, path)
}

func (c *fakeCache) Remove(path string) {
	delete(c.entries, path)
	c.removed = append(c.removed, path)
}

func (c *fakeCache) Private() bool { return c.private }

// fixture bundles an engine with its fakes.
type fixture struct {
	engine *grid.Engine
	files  *grid.FileList
	codec  *fakeCodec
	cache  *fakeCache
}

// paths returns n paths /img/0.jpg .. /img/<n-1>.jpg.
func paths(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("/img/%d.jpg", i)
	}

	return out
}

// newFixture creates n decodable 800x600 files at the default zoom (128px,
// largest size 160px) with a 10px gap.
func newFixture(t *testing.T, n int, mutate ...func(*grid.Options)) fixture {
	t.Helper()

	codec := newFakeCodec()
	cache := newFakeCache(codec)
	files := grid.NewFileList(paths(n)...)

	for _, p := range paths(n) {
		codec.add(p, 800, 600)
	}

	opts := grid.Options{
		Files:     files,
		Cache:     cache,
		Codec:     codec,
		ZoomLevel: 3,
		GridGap:   10,
	}

	for _, m := range mutate {
		m(&opts)
	}

	engine, err := grid.New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	return fixture{engine: engine, files: files, codec: codec, cache: cache}
}

// viewport returns a viewport fitting exactly cols×rows cells of 138px
// (128px thumbnails plus the 10px gap).
func viewport(cols, rows int) grid.Viewport {
	return grid.Viewport{W: cols * 138, H: rows * 138}
}

// settle renders and ticks until the engine has no work left.
func (f fixture) settle(t *testing.T, vp grid.Viewport) grid.Frame {
	t.Helper()

	f.engine.Render(vp)

	for range 10_000 {
		if !f.engine.Tick() {
			frame, _ := f.engine.Render(vp)

			return frame
		}
	}

	t.Fatal("engine never settled")

	return grid.Frame{}
}

// assertResidentWithin fails if any slot outside r holds an image.
func assertResidentWithin(t *testing.T, e *grid.Engine, r grid.IndexRange) {
	t.Helper()

	for i := range e.Count() {
		if e.Slot(i).Image != nil && !r.Contains(int32(i)) {
			t.Fatalf("slot %d resident outside %s", i, r)
		}
	}
}
