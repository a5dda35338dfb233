package grid

import (
	"image"
	"time"
)

// Codec decodes and scales images. Decode must apply the file's orientation.
//
// Decode and Scale are called from job pool workers as well as from the
// engine's goroutine, so implementations must be safe for concurrent use.
// *imaging.Codec implements Codec.
type Codec interface {
	Decode(path string) (image.Image, error)
	Scale(img image.Image, w, h int) image.Image
}

// Releaser is implemented by codecs that pool image buffers. Every image the
// engine or its [Decoder] drops is released exactly once, possibly from a
// worker goroutine.
type Releaser interface {
	Release(img image.Image)
}

// PreviewSource is implemented by codecs that can pull a small embedded
// preview (an EXIF thumbnail) out of a file without a full decode.
// *imaging.Codec implements PreviewSource.
type PreviewSource interface {
	Preview(path string) (image.Image, error)
}

// Cache is the disk cache the engine consults before decoding.
// *thumbcache.Cache implements Cache.
type Cache interface {
	// Load returns the cached thumbnail for path, or nil. outdated is true
	// when an entry exists but no longer matches the source.
	Load(path string) (img image.Image, outdated bool)

	// Write stores img for path. Failures are handled by the cache.
	Write(img image.Image, path string, force bool)

	// Remove drops the entry for path.
	Remove(path string)

	// Private reports whether the cache is read-only and previews are off.
	Private() bool
}

// Metrics receives engine events. *metrics.GridMetrics implements it.
type Metrics interface {
	ObserveLoad(source string, d time.Duration)
	ObserveLoadFailure()
	ObserveEvictions(n int)
	SetResident(n int)
	ObserveRender()
}

// Thumbnail sources reported to [Metrics.ObserveLoad].
const (
	SourceCache   = "cache"
	SourcePreview = "preview"
	SourceDecode  = "decode"
)

type noopMetrics struct{}

func (noopMetrics) ObserveLoad(string, time.Duration) {}
func (noopMetrics) ObserveLoadFailure()               {}
func (noopMetrics) ObserveEvictions(int)              {}
func (noopMetrics) SetResident(int)                   {}
func (noopMetrics) ObserveRender()                    {}
