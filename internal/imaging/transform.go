package imaging

import (
	"image"
	"image/draw"

	xdraw "golang.org/x/image/draw"
)

// Resize scales img to exactly w×h using bilinear interpolation.
func Resize(img image.Image, w, h int) image.Image {
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return img
	}

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)

	return dst
}

// CoverSize returns the dimensions of a w×h image scaled down so its shorter
// side equals limit. Images whose shorter side is already at most limit keep
// their size. Each side is at least 1.
func CoverSize(w, h, limit int) (int, int) {
	short := min(w, h)
	if short <= limit || short == 0 {
		return w, h
	}

	// Integer math keeps the shorter side exactly at limit; callers compare
	// against it.
	if w < h {
		return limit, max(h*limit/w, 1)
	}

	return max(w*limit/h, 1), limit
}

// ScaleDown shrinks img so its shorter side equals limit. It never upscales.
func ScaleDown(img image.Image, limit int) image.Image {
	b := img.Bounds()

	w, h := CoverSize(b.Dx(), b.Dy(), limit)
	if w == b.Dx() && h == b.Dy() {
		return img
	}

	return Resize(img, w, h)
}

// Crop returns the part of img inside r as a new image with origin (0, 0).
func Crop(img image.Image, r image.Rectangle) image.Image {
	r = r.Intersect(img.Bounds())
	dst := image.NewNRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)

	return dst
}

// CenterSquare returns the centered square of side min(w, h) inside a w×h
// image, as used by the square grid layout.
func CenterSquare(w, h int) image.Rectangle {
	size := min(w, h)
	x := (w - size) / 2
	y := (h - size) / 2

	return image.Rect(x, y, x+size, y+size)
}

// Orient applies an EXIF orientation (1-8) to img. Unknown values return img
// unchanged.
func Orient(img image.Image, orientation int) image.Image {
	if orientation <= 1 || orientation > 8 {
		return img
	}

	src := toNRGBA(img)
	w, h := src.Rect.Dx(), src.Rect.Dy()

	dw, dh := w, h
	if orientation >= 5 {
		dw, dh = h, w
	}

	dst := image.NewNRGBA(image.Rect(0, 0, dw, dh))

	for y := range h {
		for x := range w {
			var dx, dy int

			switch orientation {
			case 2: // mirror horizontal
				dx, dy = w-1-x, y
			case 3: // rotate 180
				dx, dy = w-1-x, h-1-y
			case 4: // mirror vertical
				dx, dy = x, h-1-y
			case 5: // transpose
				dx, dy = y, x
			case 6: // rotate 90 clockwise
				dx, dy = h-1-y, x
			case 7: // transverse
				dx, dy = h-1-y, w-1-x
			case 8: // rotate 90 counter-clockwise
				dx, dy = y, w-1-x
			}

			si := src.PixOffset(src.Rect.Min.X+x, src.Rect.Min.Y+y)
			di := dst.PixOffset(dx, dy)
			copy(dst.Pix[di:di+4], src.Pix[si:si+4])
		}
	}

	return dst
}

func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok {
		return n
	}

	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)

	return dst
}
