package imaging

import "image"

func CropToAspectForTesting(img image.Image, pw, ph int) image.Image {
	return cropToAspect(img, pw, ph)
}
