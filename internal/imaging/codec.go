// Package imaging is the default image codec for thumbs: it decodes source
// images (with EXIF auto-orientation), extracts embedded EXIF previews,
// scales, and encodes cache files.
//
// All file access goes through a [fs.FS] so tests can inject faults.
package imaging

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // register decoder
	"image/jpeg"
	_ "image/png" // register decoder
	"io"
	"log/slog"

	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/tiff" // register decoder
	_ "golang.org/x/image/webp" // register decoder

	"github.com/calvinalkan/thumbs/internal/logger"
	"github.com/calvinalkan/thumbs/pkg/fs"
)

var (
	// ErrUnsupported is returned when no registered decoder recognizes the data.
	ErrUnsupported = errors.New("unsupported image format")

	// ErrNoPreview is returned when a file carries no usable EXIF thumbnail.
	ErrNoPreview = errors.New("no embedded preview")
)

// Codec decodes, scales and encodes images.
//
// A Codec holds no mutable state and is safe for concurrent use, which lets
// job pool workers share one instance.
type Codec struct {
	fs  fs.FS
	log *slog.Logger
}

// NewCodec returns a codec reading files through fsys.
func NewCodec(fsys fs.FS, log *slog.Logger) *Codec {
	if fsys == nil {
		panic("fs is nil")
	}

	return &Codec{fs: fsys, log: logger.OrDiscard(log)}
}

// Decode reads the image at path and applies its EXIF orientation.
func (c *Codec) Decode(path string) (image.Image, error) {
	f, err := c.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}
	defer f.Close()

	img, format, err := image.Decode(bufio.NewReader(f))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, fmt.Errorf("decode %q: %w", path, ErrUnsupported)
		}

		return nil, fmt.Errorf("decode %q: %w", path, err)
	}

	// Only formats that carry EXIF are worth a second pass.
	if format != "jpeg" && format != "tiff" && format != "webp" {
		return img, nil
	}

	_, seekErr := f.Seek(0, io.SeekStart)
	if seekErr != nil {
		c.log.Debug("orientation skipped", logger.KeyPath, path, logger.Err(seekErr))

		return img, nil
	}

	meta, err := readExif(f)
	if err != nil {
		return img, nil //nolint:nilerr // missing EXIF is the common case
	}

	return Orient(img, meta.orientation), nil
}

// DecodeStream decodes an already opened cache file. Cache files are written
// upright, so no orientation is applied.
func (c *Codec) DecodeStream(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(bufio.NewReader(r))
	if err != nil {
		return nil, err
	}

	return img, nil
}

// Encode writes img as PNG when any pixel is not fully opaque, otherwise as
// JPEG with quality 90. It returns the format name.
func (c *Codec) Encode(w io.Writer, img image.Image) (string, error) {
	return Encode(w, img)
}

// Scale returns img resized to w×h.
func (c *Codec) Scale(img image.Image, w, h int) image.Image {
	return Resize(img, w, h)
}

// Preview extracts the EXIF thumbnail embedded in path, cropped to the
// aspect ratio of the full image and oriented. It returns [ErrNoPreview]
// when the file has none.
func (c *Codec) Preview(path string) (image.Image, error) {
	f, err := c.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}
	defer f.Close()

	meta, err := readExif(f)
	if err != nil || len(meta.thumbnail) == 0 {
		return nil, ErrNoPreview
	}

	thumb, err := jpeg.Decode(byteReader(meta.thumbnail))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoPreview, err)
	}

	cropped := cropToAspect(thumb, meta.pixelW, meta.pixelH)

	return Orient(cropped, meta.orientation), nil
}
