package imaging_test

import (
	"image"
	"image/color"
	"testing"

	"github.com/calvinalkan/thumbs/internal/imaging"
)

func Test_CropToAspect_Trims_Letterbox_When_Full_Image_Is_Wider(t *testing.T) {
	t.Parallel()

	// 160x120 (4:3) preview of a 6000x3000 (2:1) photo keeps 160x80.
	thumb := solid(160, 120, color.NRGBA{A: 255})

	got := imaging.CropToAspectForTesting(thumb, 6000, 3000)

	if size, want := got.Bounds().Size(), image.Pt(160, 80); size != want {
		t.Fatalf("size=%v, want=%v", size, want)
	}
}

func Test_CropToAspect_Keeps_Image_When_Orientation_Differs(t *testing.T) {
	t.Parallel()

	thumb := solid(160, 120, color.NRGBA{A: 255})

	got := imaging.CropToAspectForTesting(thumb, 3000, 6000)
	if got != image.Image(thumb) {
		t.Fatal("portrait full image must not crop a landscape preview")
	}

	got = imaging.CropToAspectForTesting(thumb, 0, 0)
	if got != image.Image(thumb) {
		t.Fatal("missing dimensions must not crop")
	}
}
