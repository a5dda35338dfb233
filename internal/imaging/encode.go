package imaging

import (
	"image"
	"image/jpeg"
	"image/png"
	"io"
)

// Encoded format names returned by [Encode].
const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
)

// JPEGQuality is the quality used for opaque thumbnails.
const JPEGQuality = 90

// Encode writes img as PNG when it has any non-opaque pixel, otherwise as
// JPEG. It returns the chosen format.
func Encode(w io.Writer, img image.Image) (string, error) {
	if !IsOpaque(img) {
		return FormatPNG, png.Encode(w, img)
	}

	return FormatJPEG, jpeg.Encode(w, img, &jpeg.Options{Quality: JPEGQuality})
}

// IsOpaque reports whether every pixel of img is fully opaque.
func IsOpaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}

	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			_, _, _, a := img.At(x, y).RGBA()
			if a != 0xffff {
				return false
			}
		}
	}

	return true
}
