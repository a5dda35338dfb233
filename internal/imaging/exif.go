package imaging

import (
	"bytes"
	"image"
	"io"

	"github.com/rwcarlsen/goexif/exif"
)

type exifMeta struct {
	orientation int
	pixelW      int
	pixelH      int
	thumbnail   []byte
}

func readExif(r io.Reader) (exifMeta, error) {
	x, err := exif.Decode(r)
	if err != nil {
		return exifMeta{}, err
	}

	meta := exifMeta{
		orientation: tagInt(x, exif.Orientation),
		pixelW:      tagInt(x, exif.PixelXDimension),
		pixelH:      tagInt(x, exif.PixelYDimension),
	}

	thumb, err := x.JpegThumbnail()
	if err == nil {
		meta.thumbnail = thumb
	}

	return meta, nil
}

func tagInt(x *exif.Exif, name exif.FieldName) int {
	tag, err := x.Get(name)
	if err != nil {
		return 0
	}

	v, err := tag.Int(0)
	if err != nil {
		return 0
	}

	return v
}

func byteReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}

// cropToAspect trims the letterboxing cameras add to EXIF thumbnails when the
// sensor aspect differs from 4:3 or 16:9. pw×ph are the full image
// dimensions. Nothing is cropped unless the full image is larger on both
// axes and has the same orientation (landscape or portrait).
func cropToAspect(img image.Image, pw, ph int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	x, y := 0, 0

	if pw <= w || ph <= h || (pw-ph >= 0) != (w-h >= 0) {
		return img
	}

	zw := float64(pw) / float64(w)
	zh := float64(ph) / float64(h)

	switch {
	case zw < zh:
		cw := int(float64(pw) / zh)
		x = (w - cw) / 2
		w = cw
	case zw > zh:
		ch := int(float64(ph) / zw)
		y = (h - ch) / 2
		h = ch
	default:
		return img
	}

	return Crop(img, image.Rect(b.Min.X+x, b.Min.Y+y, b.Min.X+x+w, b.Min.Y+y+h))
}
